package shell

import (
	"time"

	"github.com/Paintersrp/gosh/internal/job"
	"github.com/Paintersrp/gosh/internal/metrics"
)

// waitForJob blocks until j vacates the foreground: every process reaped,
// or the job stopped. The caller must hold the registry lock; the
// condition wait releases it exactly while blocked, which is the only
// window in which the reaper can run and update the job. On return the
// terminal belongs to the shell again.
func (s *Shell) waitForJob(j *job.Job) {
	start := time.Now()
	for j.Status == job.Foreground && j.Alive > 0 {
		s.fgCond.Wait()
	}
	metrics.ObserveForegroundWait(time.Since(start))
	if err := s.arb.GiveBack(); err != nil {
		s.log.Debug("terminal give back failed", "job", j.ID, "error", err)
	}
}
