// Package cli implements the httpmock command line: serve, validate and
// version.
package cli
