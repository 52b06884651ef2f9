// Package job tracks the shell's view of running pipelines: one Job per
// launched pipeline, addressed by a small reusable integer id.
package job

import (
	"fmt"

	"golang.org/x/term"

	"github.com/Paintersrp/gosh/internal/parser"
)

// Status describes where a job stands relative to the terminal.
type Status int

const (
	// Foreground jobs own the terminal. At most one live job is Foreground.
	Foreground Status = iota
	// Background jobs run detached from the terminal.
	Background
	// Stopped jobs received a stop signal and await fg/bg.
	Stopped
	// NeedsTerminal marks a background job stopped for terminal access.
	NeedsTerminal
)

// String returns the label used in job listings.
func (s Status) String() string {
	switch s {
	case Foreground:
		return "Foreground"
	case Background:
		return "Running"
	case Stopped:
		return "Stopped"
	case NeedsTerminal:
		return "Stopped (tty)"
	default:
		return "Unknown"
	}
}

// Job is one pipeline's execution instance.
type Job struct {
	ID     int
	Status Status

	// Pgid is the OS process group, equal to the pid of the first stage.
	Pgid int

	// Pids holds one entry per launched stage, in stage order. Alive counts
	// the entries not yet reaped; the job may be deleted exactly when it
	// reaches zero.
	Pids  []int
	Alive int

	// SavedModes holds the terminal modes captured when the job was stopped
	// while foreground. It is consumed the next time the job goes foreground.
	SavedModes *term.State

	// Pipeline is the parsed command this job runs. Ownership moves into the
	// job at creation.
	Pipeline *parser.Pipeline
}

// Owns reports whether pid belongs to one of the job's launched stages. The
// scan covers exactly the pids recorded at spawn time.
func (j *Job) Owns(pid int) bool {
	for _, p := range j.Pids {
		if p == pid {
			return true
		}
	}
	return false
}

// String renders the listing line shared by `jobs` and state-change
// notifications.
func (j *Job) String() string {
	return fmt.Sprintf("[%d]\t%s\t\t(%s)", j.ID, j.Status, j.Pipeline.CommandLine())
}
