// Package termstate arbitrates ownership of the shell's controlling
// terminal: which process group is in the foreground, and which terminal
// modes to reinstate when ownership moves.
package termstate

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// ErrNoTerminal is returned by Owner when the shell has no controlling
// terminal to ask about.
var ErrNoTerminal = errors.New("no controlling terminal")

// Arbiter tracks the controlling terminal for one shell session. When stdin
// is not a terminal every mutating operation is a no-op, so scripts and
// tests run without touching terminal state.
type Arbiter struct {
	tty       *os.File
	shellPgid int

	// mu guards lastKnown: the prompt loop and the reaper goroutine both
	// refresh and reinstate the modes.
	mu sync.Mutex

	// lastKnown holds the most recent terminal modes sampled while the
	// shell itself owned the terminal. GiveBack reinstates them so a
	// misbehaving child cannot leave the terminal unusable.
	lastKnown *term.State
}

// New probes f (normally stdin) and returns the session's arbiter. On a
// terminal it records the shell's process group, samples the current modes,
// and ignores SIGTTOU so that handing the terminal around from the
// background cannot stop the shell.
func New(f *os.File) *Arbiter {
	if f == nil || !term.IsTerminal(int(f.Fd())) {
		return &Arbiter{}
	}
	signal.Ignore(syscall.SIGTTOU)
	a := &Arbiter{
		tty:       f,
		shellPgid: unix.Getpgrp(),
	}
	a.Sample()
	return a
}

// Interactive reports whether a controlling terminal is attached.
func (a *Arbiter) Interactive() bool { return a.tty != nil }

// Fd returns the terminal descriptor, or -1 without a terminal. Spawning
// uses it to name the controlling tty when launching foreground groups.
func (a *Arbiter) Fd() int {
	if a.tty == nil {
		return -1
	}
	return int(a.tty.Fd())
}

// ShellPgid returns the shell's own process group id, or 0 without a
// terminal.
func (a *Arbiter) ShellPgid() int { return a.shellPgid }

// Sample refreshes the shell's known-good terminal modes. It only looks
// while the shell owns the terminal; sampling under a foreground job would
// capture that job's modes instead.
func (a *Arbiter) Sample() {
	if a.tty == nil {
		return
	}
	owner, err := a.Owner()
	if err != nil || owner != a.shellPgid {
		return
	}
	if st, err := term.GetState(a.Fd()); err == nil {
		a.mu.Lock()
		a.lastKnown = st
		a.mu.Unlock()
	}
}

// Snapshot captures the terminal's current modes. The shell stores the
// result on a job stopped in the foreground so fg can reinstate exactly
// what the job saw.
func (a *Arbiter) Snapshot() (*term.State, error) {
	if a.tty == nil {
		return nil, nil
	}
	st, err := term.GetState(a.Fd())
	if err != nil {
		return nil, fmt.Errorf("snapshot terminal state: %w", err)
	}
	return st, nil
}

// GiveTo makes pgid the terminal's foreground process group. A non-nil
// modes is reinstated first, before the group can run against the terminal.
func (a *Arbiter) GiveTo(pgid int, modes *term.State) error {
	if a.tty == nil {
		return nil
	}
	if modes != nil {
		if err := term.Restore(a.Fd(), modes); err != nil {
			return fmt.Errorf("restore terminal state: %w", err)
		}
	}
	if err := unix.IoctlSetPointerInt(a.Fd(), unix.TIOCSPGRP, pgid); err != nil {
		return fmt.Errorf("tcsetpgrp %d: %w", pgid, err)
	}
	return nil
}

// GiveBack returns the terminal to the shell and reinstates the shell's
// last sampled modes.
func (a *Arbiter) GiveBack() error {
	if a.tty == nil {
		return nil
	}
	if err := unix.IoctlSetPointerInt(a.Fd(), unix.TIOCSPGRP, a.shellPgid); err != nil {
		return fmt.Errorf("tcsetpgrp %d: %w", a.shellPgid, err)
	}
	a.mu.Lock()
	modes := a.lastKnown
	a.mu.Unlock()
	if modes != nil {
		if err := term.Restore(a.Fd(), modes); err != nil {
			return fmt.Errorf("restore terminal state: %w", err)
		}
	}
	return nil
}

// Owner reports the terminal's current foreground process group.
func (a *Arbiter) Owner() (int, error) {
	if a.tty == nil {
		return 0, ErrNoTerminal
	}
	pgid, err := unix.IoctlGetInt(a.Fd(), unix.TIOCGPGRP)
	if err != nil {
		return 0, fmt.Errorf("tcgetpgrp: %w", err)
	}
	return pgid, nil
}
