// Package cmd implements the command-line interface of dTS, the replicated tuple
// space. It provides a hierarchical command structure with operations for running the
// replicas and the switch and for interacting with them as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts a replica (one tuple store behind a framed transport)
//   - router: Starts the switch that fans client requests out to the replicas
//   - tuple: Client commands (out, in, in-all, copy, copy-all, size, perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set through an environment variable DTS_<FLAG> or a .env file.
//
// See dts -help for a list of all commands.
package cmd
