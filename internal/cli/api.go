package cli

import (
	stdcontext "context"
	"fmt"
	"os"
	"time"

	"github.com/Paintersrp/gosh/internal/api"
	"github.com/Paintersrp/gosh/internal/shell"
)

// ShellController exposes read-only session introspection for the HTTP
// control API. Every answer is a snapshot; nothing here can mutate jobs.
type ShellController struct {
	sh  *shell.Shell
	pid int
}

// NewShellController wraps a live session for the control API.
func NewShellController(sh *shell.Shell) *ShellController {
	if sh == nil {
		return nil
	}
	return &ShellController{sh: sh, pid: os.Getpid()}
}

// Status returns the session snapshot: identity, interactivity and the
// current job table.
func (ctrl *ShellController) Status(ctx stdcontext.Context) (*api.StatusReport, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return &api.StatusReport{
		Pid:         ctrl.pid,
		Prompt:      ctrl.sh.Prompt(),
		Interactive: ctrl.sh.Interactive(),
		GeneratedAt: time.Now(),
		Jobs:        ctrl.jobReports(),
	}, nil
}

// Jobs returns the live job table, ascending id.
func (ctrl *ShellController) Jobs(ctx stdcontext.Context) ([]api.JobReport, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return ctrl.jobReports(), nil
}

// Job returns a single job by id.
func (ctrl *ShellController) Job(ctx stdcontext.Context, id int) (*api.JobReport, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, fmt.Errorf("%w: %d", api.ErrBadJobID, id)
	}
	for _, report := range ctrl.jobReports() {
		if report.ID == id {
			return &report, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", api.ErrUnknownJob, id)
}

// History returns the retained command history, oldest first. Indexes
// match the shell's !n designators.
func (ctrl *ShellController) History(ctx stdcontext.Context) ([]api.HistoryEntry, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	lines := ctrl.sh.HistoryEntries()
	entries := make([]api.HistoryEntry, 0, len(lines))
	for i, line := range lines {
		entries = append(entries, api.HistoryEntry{Index: i + 1, Line: line})
	}
	return entries, nil
}

func (ctrl *ShellController) jobReports() []api.JobReport {
	snaps := ctrl.sh.SnapshotJobs()
	reports := make([]api.JobReport, 0, len(snaps))
	for _, snap := range snaps {
		reports = append(reports, api.JobReport{
			ID:      snap.ID,
			Status:  snap.Status,
			Pgid:    snap.Pgid,
			Pids:    snap.Pids,
			Alive:   snap.Alive,
			Command: snap.Command,
		})
	}
	return reports
}

func ctxErr(ctx stdcontext.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// Ensure interface compliance at compile time.
var _ api.Controller = (*ShellController)(nil)
