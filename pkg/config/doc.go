// Package config defines the server configuration and loads expectation
// seed files.
//
// ServerConfiguration holds the runtime settings of the serve command; the
// CLI fills it from flags, HTTPMOCK_* environment variables and an optional
// config file.
//
// Seed files list expectations that are registered at startup, in file
// order. They may be YAML (.yaml, .yml) or JSON with comments and trailing
// commas (any other extension). The top level is either a list or a mapping
// with an "expectations" key:
//
//	expectations:
//	  - matcher:
//	      - method: GET
//	        path: /health
//	    response:
//	      statusCode: 200
//	      body: ok
//	    limiter:
//	      times: 1
//
// Patterns passed to LoadExpectations may use ** globs.
package config
