// Package services implements the driving port interfaces.
// Services hold the reconciliation logic and orchestrate
// calls to driven ports (adapters).
//
// Services never import adapters; everything external arrives through ports.
package services
