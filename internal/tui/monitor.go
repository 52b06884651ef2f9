// Package tui implements the monitor builtin: a full-screen live view of
// the session's job table.
package tui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Paintersrp/gosh/internal/shell"
)

const (
	tableTitle      = "Jobs"
	defaultInterval = 500 * time.Millisecond
)

// Option configures Monitor behaviour.
type Option func(*Monitor)

// WithRefreshInterval overrides the periodic refresh cadence.
func WithRefreshInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// Monitor renders the job table until the user dismisses it.
type Monitor struct {
	app    *tview.Application
	table  *tview.Table
	footer *tview.TextView

	sh       *shell.Shell
	interval time.Duration

	mu   sync.Mutex
	rows []shell.JobSnapshot

	wg       sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}
}

// New constructs a Monitor over the provided session.
func New(sh *shell.Shell, opts ...Option) *Monitor {
	app := tview.NewApplication()
	table := tview.NewTable().SetFixed(1, 0).SetSelectable(true, false)
	table.SetBorder(true).SetTitle(tableTitle)

	footer := tview.NewTextView().SetDynamicColors(true)

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(table, 0, 1, true).
		AddItem(footer, 1, 0, false)

	m := &Monitor{
		app:      app,
		table:    table,
		footer:   footer,
		sh:       sh,
		interval: defaultInterval,
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	app.SetRoot(flex, true)
	app.SetInputCapture(m.handleKey)

	m.mu.Lock()
	m.rows = sh.SnapshotJobs()
	m.renderLocked()
	m.mu.Unlock()

	return m
}

// Done returns a channel that is closed when the monitor stops.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Run starts the tview application and refreshes on job events until the
// user quits or the provided context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, release, ok := m.sh.Events().Subscribe(64)
	if ok {
		defer release()
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.consume(ctx, events)
	}()

	go func() {
		<-ctx.Done()
		m.Stop()
	}()

	err := m.app.Run()
	cancel()
	m.wg.Wait()
	m.Stop()
	return err
}

// Stop terminates the application loop.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		m.app.Stop()
		close(m.done)
	})
}

func (m *Monitor) consume(ctx context.Context, events <-chan shell.Event) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			m.refresh()
		case <-ticker.C:
			m.refresh()
		}
	}
}

func (m *Monitor) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyEscape:
		go m.Stop()
		return nil
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			go m.Stop()
			return nil
		}
	}
	return event
}

func (m *Monitor) refresh() {
	rows := m.sh.SnapshotJobs()
	m.app.QueueUpdateDraw(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.rows = rows
		m.renderLocked()
	})
}

func (m *Monitor) renderLocked() {
	m.table.Clear()

	headers := []string{"ID", "STATUS", "PGID", "ALIVE", "COMMAND"}
	for col, header := range headers {
		cell := tview.NewTableCell(header).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold)
		m.table.SetCell(0, col, cell)
	}

	alive := 0
	for row, snap := range m.rows {
		alive += snap.Alive
		values := []string{
			fmt.Sprintf("%d", snap.ID),
			snap.Status,
			fmt.Sprintf("%d", snap.Pgid),
			fmt.Sprintf("%d", snap.Alive),
			snap.Command,
		}
		for col, value := range values {
			m.table.SetCell(row+1, col, tview.NewTableCell(value))
		}
	}

	m.footer.SetText(fmt.Sprintf(" %d jobs, %d processes alive  (q to quit)", len(m.rows), alive))
}

// Run drives a Monitor over the session until dismissed. It matches the
// shape the shell expects for its monitor hook.
func Run(sh *shell.Shell) error {
	return New(sh).Run(context.Background())
}
