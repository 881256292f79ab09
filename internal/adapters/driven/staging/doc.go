// Package staging holds canonical documents on local disk for the lifetime
// of one run and guards runs with a lock file.
package staging
