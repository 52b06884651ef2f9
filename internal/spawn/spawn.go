// Package spawn launches pipeline stages as external processes with their
// process-group and terminal placement decided at creation time.
package spawn

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// Process describes one stage launch. All three stdio files must be set;
// the caller decides what they are (the terminal, a pipe end, or an opened
// redirection target).
type Process struct {
	Argv []string

	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// Pgid is the process group to join. Zero starts a new group with the
	// child as leader, which is how a pipeline's first stage establishes
	// the group the rest join.
	Pgid int

	// Foreground hands the controlling terminal to the child's process
	// group as part of process creation. Doing it afterwards from the
	// shell races against terminal-generated signals reaching the child.
	Foreground bool

	// TTY is the controlling terminal's descriptor in this process, used
	// only when Foreground is set. A negative value disables the handoff.
	TTY int
}

// Start launches the process and returns its pid without waiting. The
// program is resolved against PATH. The caller owns reaping.
func Start(p Process) (int, error) {
	if len(p.Argv) == 0 {
		return 0, errors.New("spawn: empty argument vector")
	}
	if p.Stdin == nil || p.Stdout == nil || p.Stderr == nil {
		return 0, errors.New("spawn: stdio not fully specified")
	}

	cmd := exec.Command(p.Argv[0], p.Argv[1:]...)
	cmd.Stdin = p.Stdin
	cmd.Stdout = p.Stdout
	cmd.Stderr = p.Stderr
	cmd.SysProcAttr = sysProcAttr(p)

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	return cmd.Process.Pid, nil
}

// sysProcAttr translates the placement request. Foreground implies joining
// the group before the terminal handoff, so later stages of a foreground
// pipeline repeat an idempotent handoff to the same group.
func sysProcAttr(p Process) *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    p.Pgid,
	}
	if p.Foreground && p.TTY >= 0 {
		attr.Foreground = true
		attr.Ctty = p.TTY
	}
	return attr
}
