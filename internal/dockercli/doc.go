// Package dockercli classifies Docker CLI terminations and wraps common docker
// subcommands on top of execshell.
//
// ExitStateHandler turns the daemon messages found in a run's output into
// typed Failure details, and Client exposes run, kill, rm, pull and inspect
// operations whose failures carry those details.
package dockercli
