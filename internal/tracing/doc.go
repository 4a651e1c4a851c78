// Package tracing records process runs as spans whose events are the run's IO records.
package tracing
