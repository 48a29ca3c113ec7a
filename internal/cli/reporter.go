package cli

import (
	"fmt"
	"io"
)

// consoleReporter prints step progress to stdout. Log output goes to
// stderr, so progress stays visible even when logs are redirected.
type consoleReporter struct {
	w io.Writer
}

func (r consoleReporter) StepStarted(name string) {
	fmt.Fprintf(r.w, "[start]   %s\n", name)
}

func (r consoleReporter) StepCompleted(name string) {
	fmt.Fprintf(r.w, "[done]    %s\n", name)
}

func (r consoleReporter) StepSkipped(name, reason string) {
	fmt.Fprintf(r.w, "[skipped] %s (%s)\n", name, reason)
}

func (r consoleReporter) StepFailed(name string, err error) {
	fmt.Fprintf(r.w, "[failed]  %s: %v\n", name, err)
}
