package execshell

// CommandInvocation identifies one run of an executable.
type CommandInvocation struct {
	RunID            string
	Executable       Executable
	WorkingDirectory string
}

// CommandEventObserver receives lifecycle notifications for process execution.
type CommandEventObserver interface {
	// CommandStarted notifies observers that the process was spawned.
	CommandStarted(invocation CommandInvocation)
	// CommandCompleted notifies observers that the process terminated and supplies its exit state.
	CommandCompleted(invocation CommandInvocation, exitState ExitState)
	// CommandExecutionFailed reports failures that prevented an exit state, such as spawn errors.
	CommandExecutionFailed(invocation CommandInvocation, failure error)
}

// noopCommandEventObserver discards all command events.
type noopCommandEventObserver struct{}

// CommandStarted implements CommandEventObserver for the no-op observer.
func (noopCommandEventObserver) CommandStarted(CommandInvocation) {}

// CommandCompleted implements CommandEventObserver for the no-op observer.
func (noopCommandEventObserver) CommandCompleted(CommandInvocation, ExitState) {}

// CommandExecutionFailed implements CommandEventObserver for the no-op observer.
func (noopCommandEventObserver) CommandExecutionFailed(CommandInvocation, error) {}
