package api

import (
	stdcontext "context"
	"errors"
	"time"
)

var (
	ErrUnknownJob = errors.New("no such job")
	ErrBadJobID   = errors.New("invalid job id")
)

// JobReport describes one entry in the session's job table.
type JobReport struct {
	ID      int    `json:"id"`
	Status  string `json:"status"`
	Pgid    int    `json:"pgid"`
	Pids    []int  `json:"pids"`
	Alive   int    `json:"alive"`
	Command string `json:"command"`
}

// HistoryEntry is one retained command line.
type HistoryEntry struct {
	Index int    `json:"index"`
	Line  string `json:"line"`
}

// StatusReport aggregates session-wide state.
type StatusReport struct {
	Pid         int         `json:"pid"`
	Prompt      string      `json:"prompt"`
	Interactive bool        `json:"interactive"`
	GeneratedAt time.Time   `json:"generated_at"`
	Jobs        []JobReport `json:"jobs"`
}

// Controller exposes the shell state required by control servers.
type Controller interface {
	Status(stdcontext.Context) (*StatusReport, error)
	Jobs(stdcontext.Context) ([]JobReport, error)
	Job(stdcontext.Context, int) (*JobReport, error)
	History(stdcontext.Context) ([]HistoryEntry, error)
}
