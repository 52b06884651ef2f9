package shell

import (
	"golang.org/x/sys/unix"

	"github.com/Paintersrp/gosh/internal/job"
	"github.com/Paintersrp/gosh/internal/metrics"
)

// reaper owns every wait4 call in the process. It wakes on SIGCHLD, drains
// all pending child status changes under the registry lock, and broadcasts
// to the foreground waiter. Concentrating the waits here means no status is
// ever observed twice and none is consumed behind the registry's back.
func (s *Shell) reaper() {
	defer close(s.reaperExit)
	for {
		select {
		case <-s.done:
			return
		case <-s.sigchld:
			s.mu.Lock()
			s.drainLocked()
			s.mu.Unlock()
		}
	}
}

// drainLocked reaps every child with a pending status change. Wait errors
// here are protocol violations: ECHILD while the registry still counts
// live processes means a status was lost or double-applied, and continuing
// would run the shell against an inconsistent model.
func (s *Shell) drainLocked() {
	changed := false
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG|unix.WUNTRACED|unix.WCONTINUED, nil)
		if err == unix.EINTR {
			continue
		}
		if err == unix.ECHILD {
			if alive := s.reg.TotalAlive(); alive > 0 {
				s.fatalf("no children to wait for, but %d processes are recorded alive", alive)
			}
			break
		}
		if err != nil {
			s.fatalf("wait4: %v", err)
			break
		}
		if pid == 0 {
			break
		}
		s.reconcileLocked(pid, ws)
		changed = true
	}
	if changed {
		s.fgCond.Broadcast()
	}
}

// reconcileLocked applies one (pid, wait status) observation to the job
// owning pid. It mutates only job bookkeeping; its one piece of I/O is the
// user-facing notification prints.
func (s *Shell) reconcileLocked(pid int, ws unix.WaitStatus) {
	j := s.reg.FindByPid(pid)
	if j == nil {
		// The exit builtin force-deletes jobs whose processes are still
		// alive. Their status changes keep arriving until the reaper
		// stops; during teardown an unowned pid is expected, not a
		// protocol violation.
		if s.exitRequested {
			s.log.Debug("ignoring wait status during teardown", "pid", pid)
			return
		}
		s.fatalf("wait status for pid %d, which no job owns", pid)
		return
	}

	switch {
	case ws.Exited(), ws.Signaled():
		wasForeground := j.Status == job.Foreground
		j.Alive--
		if ws.Signaled() {
			if msg := signalCause(ws.Signal()); msg != "" {
				s.errorf("%s", msg)
			}
			metrics.AddProcessReaped("signaled")
		} else {
			metrics.AddProcessReaped("exited")
		}
		// The exiting process may have been holding the terminal.
		if wasForeground {
			s.arb.Sample()
			if err := s.arb.GiveBack(); err != nil {
				s.log.Debug("terminal give back failed", "job", j.ID, "error", err)
			}
		}
		s.log.Debug("reaped process", "pid", pid, "job", j.ID, "alive", j.Alive)
		s.publish(EventTypeExited, j, pid, nil)
		if j.Alive == 0 {
			s.publish(EventTypeFinished, j, pid, nil)
		}

	case ws.Stopped():
		if j.Status == job.Foreground {
			if st, err := s.arb.Snapshot(); err == nil {
				j.SavedModes = st
			}
		}
		j.Status = job.Stopped
		// Keyboard stops get a notification; shell-issued SIGSTOP stays
		// quiet because the stop builtin is its own announcement.
		if ws.StopSignal() == unix.SIGTSTP {
			s.printJob(j)
		}
		if err := s.arb.GiveBack(); err != nil {
			s.log.Debug("terminal give back failed", "job", j.ID, "error", err)
		}
		metrics.AddProcessReaped("stopped")
		s.log.Debug("job stopped", "pid", pid, "job", j.ID, "signal", int(ws.StopSignal()))
		s.publish(EventTypeStopped, j, pid, nil)

	case ws.Continued():
		if j.Status == job.Stopped || j.Status == job.NeedsTerminal {
			j.Status = job.Background
		}
		metrics.AddProcessReaped("continued")
		s.log.Debug("job continued", "pid", pid, "job", j.ID)
		s.publish(EventTypeContinued, j, pid, nil)
	}
}
