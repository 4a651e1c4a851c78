// Package execshell runs external processes and classifies how they ended.
//
// An Executable materializes a ProcessHandle whose standard streams are fed
// through per-stream LineAssembler instances into an ordered IOLog. The
// SynchronousExecutor drains the streams on the calling goroutine with a
// round-robin poll, while the AsynchronousExecutor consumes them on a bounded
// worker pool. Once the process exits, an ExitStateHandler turns the exit
// code and the captured IOLog into an ExitState. ProcessExecutor ties these
// pieces together with zap logging, lifecycle observers, tracing spans and
// Prometheus metrics.
package execshell
