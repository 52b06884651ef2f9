package shell

import (
	"time"

	"github.com/Paintersrp/gosh/internal/job"
)

// EventType captures job lifecycle notifications emitted by the executor,
// the reaper, and the builtins.
type EventType string

const (
	EventTypeLaunched    EventType = "launched"
	EventTypeStopped     EventType = "stopped"
	EventTypeContinued   EventType = "continued"
	EventTypeExited      EventType = "process_exited"
	EventTypeFinished    EventType = "finished"
	EventTypeDeleted     EventType = "deleted"
	EventTypeSpawnFailed EventType = "spawn_failed"
)

// Event represents a single job lifecycle notification.
type Event struct {
	Timestamp time.Time
	Type      EventType
	JobID     int
	Pgid      int
	Status    job.Status
	Command   string
	Pid       int
	Err       error
}

func (s *Shell) publish(t EventType, j *job.Job, pid int, err error) {
	if s.events == nil {
		return
	}
	s.events.Publish(Event{
		Timestamp: time.Now(),
		Type:      t,
		JobID:     j.ID,
		Pgid:      j.Pgid,
		Status:    j.Status,
		Command:   j.Pipeline.CommandLine(),
		Pid:       pid,
		Err:       err,
	})
}
