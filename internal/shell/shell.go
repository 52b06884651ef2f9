// Package shell implements the job-control core of gosh: the read loop,
// pipeline execution into process groups, SIGCHLD-driven status
// reconciliation, terminal ownership handoff, and the builtin commands.
package shell

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Paintersrp/gosh/internal/history"
	"github.com/Paintersrp/gosh/internal/job"
	"github.com/Paintersrp/gosh/internal/readline"
	"github.com/Paintersrp/gosh/internal/termstate"
)

// DefaultPrompt is shown when the configuration does not set one.
const DefaultPrompt = "gosh> "

// MonitorFunc runs an interactive job monitor over the shell's snapshots
// and event stream, returning when the user dismisses it. The CLI wires
// the terminal UI in here; the shell itself stays display-agnostic.
type MonitorFunc func(*Shell) error

// Options configure a Shell. Zero values select production defaults.
type Options struct {
	Prompt      string
	MaxJobs     int
	HistoryPath string

	// Stdin is the shell's input and terminal probe. Defaults to os.Stdin.
	Stdin *os.File

	// Stdout and Stderr receive the shell's own output: prompts aside,
	// job notifications and error reports.
	Stdout io.Writer
	Stderr io.Writer

	// ChildStdin, ChildStdout and ChildStderr are inherited by spawned
	// stages where no pipe or redirection overrides them. They default to
	// the process's own stdio.
	ChildStdin  *os.File
	ChildStdout *os.File
	ChildStderr *os.File

	Logger  *slog.Logger
	Events  *Stream
	Reader  readline.Reader
	Monitor MonitorFunc

	// Fatalf handles protocol violations: wait results that contradict
	// the registry. The default prints a diagnostic and exits, since
	// continuing would operate on an inconsistent model.
	Fatalf func(format string, args ...any)
}

// Shell is one interactive session. Methods are called from the main
// goroutine; the reaper goroutine shares access through mu.
type Shell struct {
	prompt string

	reg  *job.Registry
	arb  *termstate.Arbiter
	hist *history.Store
	rdr  readline.Reader
	log  *slog.Logger

	stdout io.Writer
	stderr io.Writer

	childStdin  *os.File
	childStdout *os.File
	childStderr *os.File

	// mu serializes every job-registry access outside the reaper drain.
	// Holding it is the Go rendering of the original's "SIGCHLD blocked"
	// windows: while a spawn or builtin holds it, no reap is applied.
	mu     sync.Mutex
	fgCond *sync.Cond

	events  *Stream
	monitor MonitorFunc

	sigchld    chan os.Signal
	done       chan struct{}
	reaperExit chan struct{}

	fatalf        func(format string, args ...any)
	exitRequested bool
}

// New assembles a session from opts.
func New(opts Options) *Shell {
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.ChildStdin == nil {
		opts.ChildStdin = os.Stdin
	}
	if opts.ChildStdout == nil {
		opts.ChildStdout = os.Stdout
	}
	if opts.ChildStderr == nil {
		opts.ChildStderr = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if opts.Events == nil {
		opts.Events = NewStream(256)
	}

	s := &Shell{
		prompt:      opts.Prompt,
		reg:         job.NewRegistry(opts.MaxJobs),
		arb:         termstate.New(opts.Stdin),
		hist:        history.New(opts.HistoryPath),
		log:         opts.Logger,
		stdout:      opts.Stdout,
		stderr:      opts.Stderr,
		childStdin:  opts.ChildStdin,
		childStdout: opts.ChildStdout,
		childStderr: opts.ChildStderr,
		events:      opts.Events,
		monitor:     opts.Monitor,
		sigchld:     make(chan os.Signal, 16),
		done:        make(chan struct{}),
		reaperExit:  make(chan struct{}),
		fatalf:      opts.Fatalf,
	}
	s.fgCond = sync.NewCond(&s.mu)

	if s.fatalf == nil {
		s.fatalf = func(format string, args ...any) {
			fmt.Fprintf(s.stderr, "gosh: protocol violation: "+format+"\n", args...)
			os.Exit(1)
		}
	}

	if opts.Reader != nil {
		s.rdr = opts.Reader
	} else {
		s.rdr = readline.New(opts.Stdin, opts.ChildStdout)
	}

	if err := s.hist.Load(); err != nil {
		s.log.Warn("history load failed", "path", opts.HistoryPath, "error", err)
	}

	return s
}

// Run drives the session: prompt, read, execute, sweep, until end of input
// or the exit builtin. The exit code is 0 on both paths.
func (s *Shell) Run() int {
	signal.Notify(s.sigchld, syscall.SIGCHLD)
	go s.reaper()
	defer s.shutdown()

	for !s.exitRequested {
		s.assertOwnership()
		line, err := s.rdr.ReadLine(s.prompt)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debug("read line failed", "error", err)
			}
			break
		}
		s.Execute(line)
		s.sweep()
	}
	return 0
}

// assertOwnership enforces the quiescent-point invariant: between prompt
// cycles the shell's own process group owns the terminal.
func (s *Shell) assertOwnership() {
	if !s.arb.Interactive() {
		return
	}
	owner, err := s.arb.Owner()
	if err != nil {
		return
	}
	if owner != s.arb.ShellPgid() {
		s.fatalf("terminal owned by group %d at prompt, expected %d", owner, s.arb.ShellPgid())
	}
}

func (s *Shell) shutdown() {
	close(s.done)
	signal.Stop(s.sigchld)
	<-s.reaperExit

	s.mu.Lock()
	if err := s.hist.Save(); err != nil {
		s.log.Warn("history save failed", "error", err)
	}
	s.mu.Unlock()

	if err := s.arb.GiveBack(); err != nil {
		s.log.Debug("terminal give back failed", "error", err)
	}
	s.events.Close()
	if err := s.rdr.Close(); err != nil {
		s.log.Debug("reader close failed", "error", err)
	}
}

func (s *Shell) errorf(format string, args ...any) {
	fmt.Fprintf(s.stderr, format+"\n", args...)
}

// Events exposes the session's job event stream for display surfaces.
func (s *Shell) Events() *Stream { return s.events }

// Interactive reports whether the session has a controlling terminal.
func (s *Shell) Interactive() bool { return s.arb.Interactive() }

// Prompt returns the configured prompt string.
func (s *Shell) Prompt() string { return s.prompt }

// JobSnapshot is a read-only copy of one job's state.
type JobSnapshot struct {
	ID      int
	Status  string
	Pgid    int
	Pids    []int
	Alive   int
	Command string
}

// SnapshotJobs copies the live job table, ascending id.
func (s *Shell) SnapshotJobs() []JobSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := s.reg.Jobs()
	out := make([]JobSnapshot, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, JobSnapshot{
			ID:      j.ID,
			Status:  j.Status.String(),
			Pgid:    j.Pgid,
			Pids:    append([]int(nil), j.Pids...),
			Alive:   j.Alive,
			Command: j.Pipeline.CommandLine(),
		})
	}
	return out
}

// HistoryEntries copies the retained history, oldest first.
func (s *Shell) HistoryEntries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.Entries()
}
