package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/getmockd/httpmock/pkg/config"
	"github.com/getmockd/httpmock/pkg/engine"
	"github.com/getmockd/httpmock/pkg/logging"
)

// envPrefix namespaces environment overrides, e.g. HTTPMOCK_PORT or
// HTTPMOCK_MAX_LOG_ENTRIES.
const envPrefix = "HTTPMOCK"

func newServeCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the mock server (foreground)",
		Long: `Start the mock server in the foreground until interrupted.

Every flag can also be set through an HTTPMOCK_* environment variable (dashes
become underscores, e.g. HTTPMOCK_MAX_LOG_ENTRIES) or a key of the same name
in the YAML file given with --config. Flags take precedence over the
environment, which takes precedence over the file.`,
		Example: `  # Start with defaults on 127.0.0.1:8082
  httpmock serve

  # Pick a free port and print the URL
  httpmock serve --port 0 --print-url

  # Seed expectations from files
  httpmock serve -e 'mocks/**/*.yaml'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, v)
		},
	}

	defaults := config.DefaultServerConfiguration()
	f := cmd.Flags()
	f.String("host", defaults.Host, "Interface to bind (empty binds all interfaces)")
	f.IntP("port", "p", defaults.Port, "Mock server port (0 picks a free port)")
	f.StringP("config", "c", "", "YAML configuration file")
	f.StringSliceP("expectations", "e", nil, "Expectation seed files or globs, registered in order")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	f.String("log-file", "", "Also write JSON logs to this file")
	f.Int("max-log-entries", defaults.MaxLogEntries, "Maximum recorded requests, oldest dropped first (0 = unlimited)")
	f.Int64("max-body-size", defaults.MaxBodySize, "Maximum request body size in bytes")
	f.Int("read-timeout", defaults.ReadTimeout, "HTTP read timeout in seconds")
	f.Int("write-timeout", defaults.WriteTimeout, "HTTP write timeout in seconds")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address (disabled when empty)")
	f.Bool("print-url", false, "Print the server URL to stdout once listening")

	return cmd
}

// loadServeConfig layers flags, environment and the optional config file
// onto the defaults.
func loadServeConfig(v *viper.Viper, flags *pflag.FlagSet) (*config.ServerConfiguration, error) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := config.DefaultServerConfiguration()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := loadServeConfig(v, cmd.Flags())
	if err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(v.GetString("log-level"))
	logCfg.Format = logging.ParseFormat(v.GetString("log-format"))
	logCfg.Output = cmd.ErrOrStderr()

	logger, closeLog, err := logging.Tee(logCfg, v.GetString("log-file"))
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	defs, err := config.LoadExpectations(cfg.Expectations)
	if err != nil {
		return err
	}

	srv := engine.NewServer(cfg, engine.WithLogger(logger), engine.WithVersion(Version))
	if err := srv.Seed(defs); err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}

	if v.GetBool("print-url") {
		fmt.Fprintln(cmd.OutOrStdout(), srv.URL())
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info("shutting down")
	return srv.Stop()
}
