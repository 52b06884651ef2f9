package shell

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/Paintersrp/gosh/internal/history"
	"github.com/Paintersrp/gosh/internal/job"
	"github.com/Paintersrp/gosh/internal/metrics"
	"github.com/Paintersrp/gosh/internal/parser"
	"github.com/Paintersrp/gosh/internal/spawn"
)

// command is the closed classification of a pipeline's first stage,
// resolved exactly once before any spawning decision.
type command int

const (
	cmdExternal command = iota
	cmdJobs
	cmdFg
	cmdBg
	cmdKill
	cmdStop
	cmdExit
	cmdCd
	cmdHistory
	cmdRecall
	cmdMonitor
)

func classify(name string) command {
	switch name {
	case "jobs":
		return cmdJobs
	case "fg":
		return cmdFg
	case "bg":
		return cmdBg
	case "kill":
		return cmdKill
	case "stop":
		return cmdStop
	case "exit":
		return cmdExit
	case "cd":
		return cmdCd
	case "history":
		return cmdHistory
	case "monitor":
		return cmdMonitor
	}
	if history.IsDesignator(name) {
		return cmdRecall
	}
	return cmdExternal
}

// Execute runs one submitted line: record it, parse it, and run each of its
// pipelines in order. Parse failures are reported and skip the whole line.
func (s *Shell) Execute(line string) {
	s.mu.Lock()
	s.hist.Append(line)
	s.mu.Unlock()

	pipelines, err := parser.Parse(line)
	if err != nil {
		s.errorf("gosh: %v", err)
		return
	}
	for _, p := range pipelines {
		if s.exitRequested {
			break
		}
		s.runPipeline(p)
	}
}

// runPipeline resolves history recall, classifies the first stage, and
// dispatches: builtins run inside the shell, everything else spawns.
func (s *Shell) runPipeline(p *parser.Pipeline) {
	if len(p.Stages) == 0 || len(p.Stages[0].Argv) == 0 {
		return
	}

	first := p.Stages[0]
	if classify(first.Argv[0]) == cmdRecall {
		rec, err := s.hist.Recall(first.Argv[0])
		if err != nil {
			fmt.Fprintln(s.stderr, err)
			return
		}
		fmt.Fprintf(s.stdout, "Running command from history: %s\n", rec.Line)
		// The rewritten stage goes through the normal builtin/spawn
		// decision, so a recalled builtin dispatches as a builtin.
		first.Argv = rec.Argv
		metrics.IncBuiltin("history-recall")
	}

	c := classify(first.Argv[0])
	if c == cmdMonitor {
		// The monitor runs a full-screen UI and must not hold the
		// registry lock while it blocks.
		metrics.IncBuiltin("monitor")
		s.builtinMonitor()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Refreshing the known-good terminal modes happens under the same
	// lock the reaper holds while it samples, so the two never race on
	// the arbiter's state.
	s.arb.Sample()

	switch c {
	case cmdJobs:
		metrics.IncBuiltin("jobs")
		s.builtinJobs()
	case cmdFg:
		metrics.IncBuiltin("fg")
		s.builtinFg(first.Argv)
	case cmdBg:
		metrics.IncBuiltin("bg")
		s.builtinBg(first.Argv)
	case cmdKill:
		metrics.IncBuiltin("kill")
		s.builtinKill(first.Argv)
	case cmdStop:
		metrics.IncBuiltin("stop")
		s.builtinStop(first.Argv)
	case cmdExit:
		metrics.IncBuiltin("exit")
		s.builtinExit()
	case cmdCd:
		metrics.IncBuiltin("cd")
		s.builtinCd(first.Argv)
	case cmdHistory:
		metrics.IncBuiltin("history")
		s.builtinHistory()
	default:
		s.spawnPipeline(p)
	}
}

// spawnPipeline launches every stage of p into one process group, wires the
// stage-to-stage pipes and redirections, and either waits (foreground) or
// announces (background). The registry lock is held throughout, so no reap
// can observe a half-built job.
func (s *Shell) spawnPipeline(p *parser.Pipeline) {
	j, err := s.reg.Create(p)
	if err != nil {
		if errors.Is(err, job.ErrCapacityExceeded) {
			s.errorf("Maximum number of jobs exceeded")
		} else {
			s.errorf("gosh: %v", err)
		}
		metrics.IncSpawnFailure()
		return
	}
	j.Pids = make([]int, 0, len(p.Stages))

	var prevRead *os.File
	last := len(p.Stages) - 1
	for i, st := range p.Stages {
		stdin, stdout, stderr := s.childStdin, s.childStdout, s.childStderr
		var parentClose []*os.File

		// The previous pipe's read end goes first so every failure path
		// below closes it along with whatever else was opened.
		if prevRead != nil {
			stdin = prevRead
			parentClose = append(parentClose, prevRead)
		}
		if i == 0 && p.Input != "" {
			in, err := os.Open(p.Input)
			if err != nil {
				closeAll(parentClose)
				s.abortSpawn(j, p, err)
				return
			}
			stdin = in
			parentClose = append(parentClose, in)
		}
		if i == last && p.Output != "" {
			flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			if p.Append {
				flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
			}
			out, err := os.OpenFile(p.Output, flags, 0o666)
			if err != nil {
				closeAll(parentClose)
				s.abortSpawn(j, p, err)
				return
			}
			stdout = out
			parentClose = append(parentClose, out)
		}

		var nextRead *os.File
		if i < last {
			r, w, err := os.Pipe()
			if err != nil {
				closeAll(parentClose)
				s.abortSpawn(j, p, err)
				return
			}
			stdout = w
			nextRead = r
			parentClose = append(parentClose, w)
		}
		// Merged stderr follows stdout wherever it points, pipe or
		// redirection included.
		if st.MergeStderr {
			stderr = stdout
		}

		pid, err := spawn.Start(spawn.Process{
			Argv:       st.Argv,
			Stdin:      stdin,
			Stdout:     stdout,
			Stderr:     stderr,
			Pgid:       j.Pgid,
			Foreground: !p.Background,
			TTY:        s.arb.Fd(),
		})
		closeAll(parentClose)
		if err != nil {
			if nextRead != nil {
				nextRead.Close()
			}
			s.abortSpawn(j, p, err)
			return
		}

		// Stage 0's pid is the group every later stage joins.
		if i == 0 {
			j.Pgid = pid
		}
		j.Pids = append(j.Pids, pid)
		j.Alive++
		prevRead = nextRead

		s.log.Debug("spawned stage", "job", j.ID, "stage", i, "pid", pid, "pgid", j.Pgid)
	}

	metrics.IncJobLaunched()
	metrics.SetJobsLive(s.reg.Len())

	if p.Background {
		j.Status = job.Background
		s.printBackground(j)
		s.publish(EventTypeLaunched, j, 0, nil)
		return
	}
	j.Status = job.Foreground
	s.publish(EventTypeLaunched, j, 0, nil)
	s.waitForJob(j)
}

// abortSpawn reports a stage launch failure and abandons the job. Stages
// already launched are killed as a group; their reaping retires the job
// through the normal sweep. The terminal returns to the shell if the
// pipeline had started taking it.
func (s *Shell) abortSpawn(j *job.Job, p *parser.Pipeline, err error) {
	s.errorf("%v", err)
	metrics.IncSpawnFailure()
	s.publish(EventTypeSpawnFailed, j, 0, err)

	if j.Alive > 0 {
		if kerr := unix.Kill(-j.Pgid, unix.SIGKILL); kerr != nil {
			s.log.Debug("kill abandoned group failed", "pgid", j.Pgid, "error", kerr)
		}
		j.Status = job.Background
	} else {
		if derr := s.reg.Delete(j.ID); derr == nil {
			s.publish(EventTypeDeleted, j, 0, nil)
		}
	}
	metrics.SetJobsLive(s.reg.Len())

	if !p.Background {
		if terr := s.arb.GiveBack(); terr != nil {
			s.log.Debug("terminal give back failed", "error", terr)
		}
	}
}

// sweep deletes jobs whose processes have all been reaped. It runs between
// prompt cycles, the quiescent point at which deletion is safe.
func (s *Shell) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.reg.Jobs() {
		if j.Alive == 0 {
			if err := s.reg.Delete(j.ID); err != nil {
				s.log.Debug("sweep delete failed", "job", j.ID, "error", err)
				continue
			}
			s.publish(EventTypeDeleted, j, 0, nil)
		}
	}
	metrics.SetJobsLive(s.reg.Len())
}

func closeAll(files []*os.File) {
	for _, f := range files {
		f.Close()
	}
}
