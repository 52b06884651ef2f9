package shell

import (
	"fmt"
	stdruntime "runtime"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Paintersrp/gosh/internal/job"
	"github.com/Paintersrp/gosh/internal/parser"
	"github.com/Paintersrp/gosh/internal/spawn"
)

// The reconciler is driven with hand-built wait-status words, which only
// make sense with Linux's encoding.
func skipUnlessLinux(t *testing.T) {
	t.Helper()
	if stdruntime.GOOS != "linux" {
		t.Skip("wait-status words are built with the Linux encoding")
	}
}

func exitWord(code int) unix.WaitStatus {
	return unix.WaitStatus(code << 8)
}

func sigWord(sig unix.Signal) unix.WaitStatus {
	return unix.WaitStatus(sig)
}

func stopWord(sig unix.Signal) unix.WaitStatus {
	return unix.WaitStatus(0x7f | int(sig)<<8)
}

const contWord = unix.WaitStatus(0xffff)

func mustCreateJob(t *testing.T, s *Shell, line string) *job.Job {
	t.Helper()
	ps, err := parser.Parse(line)
	if err != nil {
		t.Fatalf("parse %q: %v", line, err)
	}
	if len(ps) != 1 {
		t.Fatalf("parse %q: got %d pipelines, want 1", line, len(ps))
	}
	j, err := s.reg.Create(ps[0])
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return j
}

// reconcileShell builds a shell for driving reconcileLocked directly: no
// read loop, no reaper, protocol violations recorded instead of fatal.
func reconcileShell(t *testing.T) (*Shell, *syncBuffer, *syncBuffer, *[]string) {
	t.Helper()
	null := devNull(t)
	out := &syncBuffer{}
	errb := &syncBuffer{}
	var fatals []string

	sh := New(Options{
		Stdin:       null,
		Stdout:      out,
		Stderr:      errb,
		ChildStdin:  null,
		ChildStdout: null,
		ChildStderr: null,
		Fatalf: func(format string, args ...any) {
			fatals = append(fatals, fmt.Sprintf(format, args...))
		},
	})
	return sh, out, errb, &fatals
}

func TestReconcileExitCountsDownAlive(t *testing.T) {
	skipUnlessLinux(t)
	sh, _, errb, fatals := reconcileShell(t)

	j := mustCreateJob(t, sh, "cat | wc -l")
	j.Pgid = 100
	j.Pids = []int{100, 101}
	j.Alive = 2

	sh.reconcileLocked(101, exitWord(0))
	if j.Alive != 1 {
		t.Fatalf("alive = %d, want 1", j.Alive)
	}
	sh.reconcileLocked(100, exitWord(3))
	if j.Alive != 0 {
		t.Fatalf("alive = %d, want 0", j.Alive)
	}

	// Reaping never deletes; the sweep owns that.
	if sh.reg.Lookup(j.ID) != j {
		t.Fatal("job vanished during reconcile")
	}
	if got := errb.String(); got != "" {
		t.Fatalf("clean exits printed %q", got)
	}
	if len(*fatals) != 0 {
		t.Fatalf("unexpected protocol violations: %v", *fatals)
	}
}

func TestReconcileFatalSignalMessages(t *testing.T) {
	skipUnlessLinux(t)

	cases := []struct {
		sig  unix.Signal
		want string
	}{
		{unix.SIGFPE, "Floating point exception"},
		{unix.SIGSEGV, "Segmentation fault"},
		{unix.SIGABRT, "Aborted"},
		{unix.SIGKILL, "Killed"},
		{unix.SIGTERM, "Terminated"},
		{unix.SIGINT, ""},
		{unix.SIGHUP, ""},
	}
	for _, tc := range cases {
		sh, _, errb, _ := reconcileShell(t)
		j := mustCreateJob(t, sh, "sleep 5")
		j.Pgid = 200
		j.Pids = []int{200}
		j.Alive = 1

		sh.reconcileLocked(200, sigWord(tc.sig))
		if j.Alive != 0 {
			t.Fatalf("%v: alive = %d, want 0", tc.sig, j.Alive)
		}
		got := strings.TrimSpace(errb.String())
		if got != tc.want {
			t.Fatalf("%v: message %q, want %q", tc.sig, got, tc.want)
		}
	}
}

func TestReconcileStopTransitions(t *testing.T) {
	skipUnlessLinux(t)

	t.Run("keyboard stop prints", func(t *testing.T) {
		sh, out, _, _ := reconcileShell(t)
		j := mustCreateJob(t, sh, "sleep 100")
		j.Status = job.Foreground
		j.Pgid = 300
		j.Pids = []int{300}
		j.Alive = 1

		sh.reconcileLocked(300, stopWord(unix.SIGTSTP))
		if j.Status != job.Stopped {
			t.Fatalf("status = %v, want Stopped", j.Status)
		}
		if j.Alive != 1 {
			t.Fatalf("alive = %d, want 1: stopping is not exiting", j.Alive)
		}
		want := "[1]\tStopped\t\t(sleep 100)\n"
		if got := out.String(); got != want {
			t.Fatalf("notification = %q, want %q", got, want)
		}
	})

	t.Run("shell-issued stop is quiet", func(t *testing.T) {
		sh, out, _, _ := reconcileShell(t)
		j := mustCreateJob(t, sh, "sleep 100")
		j.Status = job.Background
		j.Pgid = 301
		j.Pids = []int{301}
		j.Alive = 1

		sh.reconcileLocked(301, stopWord(unix.SIGSTOP))
		if j.Status != job.Stopped {
			t.Fatalf("status = %v, want Stopped", j.Status)
		}
		if got := out.String(); got != "" {
			t.Fatalf("SIGSTOP printed %q", got)
		}
	})
}

func TestReconcileContinueTransitions(t *testing.T) {
	skipUnlessLinux(t)

	cases := []struct {
		name   string
		before job.Status
		after  job.Status
	}{
		{"stopped goes background", job.Stopped, job.Background},
		{"terminal wait goes background", job.NeedsTerminal, job.Background},
		{"foreground stays put", job.Foreground, job.Foreground},
		{"background stays put", job.Background, job.Background},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sh, _, _, _ := reconcileShell(t)
			j := mustCreateJob(t, sh, "sleep 5")
			j.Status = tc.before
			j.Pgid = 400
			j.Pids = []int{400}
			j.Alive = 1

			sh.reconcileLocked(400, contWord)
			if j.Status != tc.after {
				t.Fatalf("status = %v, want %v", j.Status, tc.after)
			}
			if j.Alive != 1 {
				t.Fatalf("alive = %d, want 1", j.Alive)
			}
		})
	}
}

func TestExitTeardownToleratesOrphanedWaitStatus(t *testing.T) {
	skipUnlessLinux(t)
	sh, _, _, fatals := reconcileShell(t)
	null := devNull(t)

	j := mustCreateJob(t, sh, "sleep 60")
	pid, err := spawn.Start(spawn.Process{
		Argv:   []string{"sleep", "60"},
		Stdin:  null,
		Stdout: null,
		Stderr: null,
		TTY:    -1,
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	j.Pgid = pid
	j.Pids = []int{pid}
	j.Alive = 1

	// Exit with the child still alive: the job is force-deleted and the
	// process orphaned, but its status changes still reach this shell.
	sh.mu.Lock()
	sh.builtinExit()
	sh.mu.Unlock()
	if sh.reg.Len() != 0 {
		t.Fatalf("registry holds %d jobs after exit", sh.reg.Len())
	}

	if err := unix.Kill(pid, unix.SIGKILL); err != nil {
		t.Fatalf("kill orphan: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for unix.Kill(pid, 0) != unix.ESRCH {
		if time.Now().After(deadline) {
			t.Fatal("orphaned child never reaped")
		}
		sh.mu.Lock()
		sh.drainLocked()
		sh.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}

	if len(*fatals) != 0 {
		t.Fatalf("teardown raised protocol violations: %v", *fatals)
	}
}

func TestReconcileUnknownPidIsProtocolViolation(t *testing.T) {
	skipUnlessLinux(t)
	sh, _, _, fatals := reconcileShell(t)

	j := mustCreateJob(t, sh, "sleep 5")
	j.Pgid = 500
	j.Pids = []int{500}
	j.Alive = 1

	sh.reconcileLocked(9999, exitWord(0))

	if len(*fatals) != 1 || !strings.Contains((*fatals)[0], "9999") {
		t.Fatalf("fatals = %v, want one violation naming pid 9999", *fatals)
	}
	if j.Alive != 1 {
		t.Fatalf("alive = %d, violation mutated the job", j.Alive)
	}
}

func TestSignalCauseTable(t *testing.T) {
	cases := map[unix.Signal]string{
		unix.SIGFPE:  "Floating point exception",
		unix.SIGSEGV: "Segmentation fault",
		unix.SIGABRT: "Aborted",
		unix.SIGKILL: "Killed",
		unix.SIGTERM: "Terminated",
		unix.SIGINT:  "",
		unix.SIGPIPE: "",
		unix.SIGQUIT: "",
	}
	for sig, want := range cases {
		if got := signalCause(sig); got != want {
			t.Fatalf("signalCause(%v) = %q, want %q", sig, got, want)
		}
	}
}
