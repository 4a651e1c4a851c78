package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/temirov/procexec/cmd/cli"
	processcmd "github.com/temirov/procexec/cmd/cli/process"
)

const (
	exitErrorTemplateConstant = "%v\n"
)

// main executes the procexec command-line application.
func main() {
	executionError := cli.Execute()
	if executionError == nil {
		return
	}
	var exitError processcmd.ExitError
	if !errors.As(executionError, &exitError) {
		fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
	}
	os.Exit(cli.ExitCode(executionError))
}
