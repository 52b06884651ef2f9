package shell

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/Paintersrp/gosh/internal/job"
)

// printJob writes the one-line job listing used by jobs, fg, and stop
// notifications.
func (s *Shell) printJob(j *job.Job) {
	fmt.Fprintf(s.stdout, "%s\n", j)
}

// printBackground writes the background announcement for a job.
func (s *Shell) printBackground(j *job.Job) {
	fmt.Fprintf(s.stdout, "[%d] %d\n", j.ID, j.Pgid)
}

// signalCause maps a terminating signal to the message users see. Signals
// outside the table, SIGINT among them, terminate silently.
func signalCause(sig unix.Signal) string {
	switch sig {
	case unix.SIGFPE:
		return "Floating point exception"
	case unix.SIGSEGV:
		return "Segmentation fault"
	case unix.SIGABRT:
		return "Aborted"
	case unix.SIGKILL:
		return "Killed"
	case unix.SIGTERM:
		return "Terminated"
	default:
		return ""
	}
}
