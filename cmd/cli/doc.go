// Package cli constructs the procexec command-line interface. It wires the
// Cobra command hierarchy to the configuration loader and zap loggers, and
// cancels supervised processes when the binary receives SIGINT or SIGTERM.
package cli
