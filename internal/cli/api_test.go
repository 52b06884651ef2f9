package cli

import (
	stdcontext "context"
	"errors"
	"os"
	"testing"

	"github.com/Paintersrp/gosh/internal/api"
	"github.com/Paintersrp/gosh/internal/readline"
	"github.com/Paintersrp/gosh/internal/shell"
)

func newIdleShell(t *testing.T) *shell.Shell {
	t.Helper()
	null, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("open %s: %v", os.DevNull, err)
	}
	t.Cleanup(func() { null.Close() })

	sh := shell.New(shell.Options{
		Stdin:       null,
		Stdout:      os.Stderr,
		Stderr:      os.Stderr,
		ChildStdin:  null,
		ChildStdout: null,
		ChildStderr: null,
		Reader:      readline.FromString("echo alpha\necho bravo"),
	})
	if code := sh.Run(); code != 0 {
		t.Fatalf("session exit code = %d, want 0", code)
	}
	return sh
}

func TestNewShellControllerNilGuard(t *testing.T) {
	t.Parallel()

	if ctrl := NewShellController(nil); ctrl != nil {
		t.Fatal("expected nil controller for a nil shell")
	}
}

func TestShellControllerStatus(t *testing.T) {
	ctrl := NewShellController(newIdleShell(t))

	report, err := ctrl.Status(stdcontext.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if report.Pid != os.Getpid() {
		t.Fatalf("pid = %d, want %d", report.Pid, os.Getpid())
	}
	if report.Prompt != shell.DefaultPrompt {
		t.Fatalf("prompt = %q, want %q", report.Prompt, shell.DefaultPrompt)
	}
	if report.Interactive {
		t.Fatal("a /dev/null session reported itself interactive")
	}
	if len(report.Jobs) != 0 {
		t.Fatalf("jobs = %+v, want an empty table after the session drained", report.Jobs)
	}
}

func TestShellControllerHistory(t *testing.T) {
	ctrl := NewShellController(newIdleShell(t))

	entries, err := ctrl.History(stdcontext.Background())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("history = %+v, want the two submitted lines", entries)
	}
	if entries[0].Index != 1 || entries[0].Line != "echo alpha" {
		t.Fatalf("first entry = %+v", entries[0])
	}
	if entries[1].Index != 2 || entries[1].Line != "echo bravo" {
		t.Fatalf("second entry = %+v", entries[1])
	}
}

func TestShellControllerJobLookupErrors(t *testing.T) {
	ctrl := NewShellController(newIdleShell(t))

	if _, err := ctrl.Job(stdcontext.Background(), 0); !errors.Is(err, api.ErrBadJobID) {
		t.Fatalf("expected ErrBadJobID for id 0, got %v", err)
	}
	if _, err := ctrl.Job(stdcontext.Background(), 42); !errors.Is(err, api.ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob for id 42, got %v", err)
	}
}

func TestShellControllerHonorsCancelledContext(t *testing.T) {
	ctrl := NewShellController(newIdleShell(t))

	ctx, cancel := stdcontext.WithCancel(stdcontext.Background())
	cancel()

	if _, err := ctrl.Status(ctx); !errors.Is(err, stdcontext.Canceled) {
		t.Fatalf("expected context.Canceled from Status, got %v", err)
	}
	if _, err := ctrl.Jobs(ctx); !errors.Is(err, stdcontext.Canceled) {
		t.Fatalf("expected context.Canceled from Jobs, got %v", err)
	}
	if _, err := ctrl.History(ctx); !errors.Is(err, stdcontext.Canceled) {
		t.Fatalf("expected context.Canceled from History, got %v", err)
	}
}
