// Package logview serves the per-run job logs over HTTP and lists them for
// the CLI. Only plain job log file names inside the log directory are ever
// read.
package logview
