package shell

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/Paintersrp/gosh/internal/job"
)

// Builtins run synchronously inside the shell with the registry lock held
// (monitor excepted, see runPipeline). Their message texts are part of the
// user-visible surface and are kept stable.

func (s *Shell) builtinJobs() {
	for _, j := range s.reg.Jobs() {
		s.printJob(j)
	}
}

func (s *Shell) builtinFg(argv []string) {
	if len(argv) < 2 {
		s.errorf("No argument given with fg")
		return
	}
	id, _ := strconv.Atoi(argv[1])
	j := s.reg.Lookup(id)
	if j == nil {
		s.errorf("fg %d failed, no such job", id)
		return
	}

	j.Status = job.Foreground
	// A snapshot saved when the job stopped in the foreground is consumed
	// here; a job never stopped gets a plain handoff.
	modes := j.SavedModes
	j.SavedModes = nil
	if err := s.arb.GiveTo(j.Pgid, modes); err != nil {
		s.log.Debug("terminal handoff failed", "job", j.ID, "error", err)
	}
	s.printJob(j)
	if err := unix.Kill(-j.Pgid, unix.SIGCONT); err != nil {
		s.fatalf("kill pgid failed %d", j.Pgid)
		return
	}
	s.publish(EventTypeContinued, j, 0, nil)
	s.waitForJob(j)
}

func (s *Shell) builtinBg(argv []string) {
	if len(argv) < 2 {
		s.errorf("bg: not enough arguments")
		return
	}
	id, _ := strconv.Atoi(argv[1])
	j := s.reg.Lookup(id)
	if j == nil {
		s.errorf("bg %d failed, no such job", id)
		return
	}
	if j.Status != job.Stopped {
		s.errorf("this job: %d is already running", id)
		return
	}

	j.Status = job.Background
	s.printBackground(j)
	if err := unix.Kill(-j.Pgid, unix.SIGCONT); err != nil {
		s.fatalf("kill pgid failed %d", j.Pgid)
		return
	}
	s.publish(EventTypeContinued, j, 0, nil)
}

func (s *Shell) builtinKill(argv []string) {
	if len(argv) < 2 {
		s.errorf("kill: not enough arguments")
		return
	}
	id, _ := strconv.Atoi(argv[1])
	j := s.reg.Lookup(id)
	if j == nil {
		s.errorf("attempt to kill %d failed, no such process", id)
		return
	}
	// One group signal per known alive process: a stage that already left
	// the group cannot hide its siblings from the kill.
	for i := 0; i < j.Alive; i++ {
		_ = unix.Kill(-j.Pgid, unix.SIGKILL)
	}
}

func (s *Shell) builtinStop(argv []string) {
	if len(argv) < 2 {
		s.errorf("stop: not enough arguments")
		return
	}
	id, _ := strconv.Atoi(argv[1])
	j := s.reg.Lookup(id)
	if j == nil {
		s.errorf("attempt to stop %d failed, no such process", id)
		return
	}
	j.Status = job.Stopped
	for i := 0; i < j.Alive; i++ {
		_ = unix.Kill(-j.Pgid, unix.SIGSTOP)
	}
	s.publish(EventTypeStopped, j, 0, nil)
}

// builtinExit force-deletes every job, live processes included; they are
// orphaned, not signalled. The read loop ends the process afterwards.
func (s *Shell) builtinExit() {
	for _, j := range s.reg.Jobs() {
		s.reg.ForceDelete(j.ID)
		s.publish(EventTypeDeleted, j, 0, nil)
	}
	s.exitRequested = true
}

func (s *Shell) builtinCd(argv []string) {
	if len(argv) < 2 {
		home := os.Getenv("HOME")
		if home == "" {
			s.errorf("cd: HOME env variable not set")
			return
		}
		if err := os.Chdir(home); err != nil {
			s.errorf("cd: Changing directory to HOME failed:")
		}
		return
	}

	path := argv[1]
	err := os.Chdir(path)
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, syscall.EACCES):
		s.errorf("cd: Permission denied!")
	case errors.Is(err, syscall.ENOTDIR):
		s.errorf("cd: Can't change directory to a file: %s", path)
	case errors.Is(err, syscall.ENOENT):
		s.errorf("cd: No such file or directory: %s", path)
	default:
		var errno syscall.Errno
		if errors.As(err, &errno) {
			s.errorf("cd: Could not change directory: %s", errno.Error())
		} else {
			s.errorf("cd: Could not change directory: %v", err)
		}
	}
}

func (s *Shell) builtinHistory() {
	for i, line := range s.hist.Entries() {
		fmt.Fprintf(s.stdout, "[%d]: %s\n", i+1, line)
	}
}

// builtinMonitor hands control to the session's monitor UI when one was
// wired in. It owns no locks; the UI pulls snapshots and subscribes to the
// event stream instead.
func (s *Shell) builtinMonitor() {
	if s.monitor == nil {
		s.errorf("monitor: not available in this session")
		return
	}
	if err := s.monitor(s); err != nil {
		s.errorf("monitor: %v", err)
	}
}
