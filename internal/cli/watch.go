package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/myssh/internal/engine"
	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/ui"
)

// sampleFunc takes one monitor sample of the watched server.
type sampleFunc func(ctx context.Context) (*engine.MonitorResponse, error)

// watchModel is the Bubble Tea model behind monitor --watch.
type watchModel struct {
	ctx      context.Context
	sample   sampleFunc
	interval time.Duration

	last     *engine.MonitorResponse
	history  []float64
	err      error
	fatal    error
	quitting bool
}

// watchTickMsg asks for the next sample.
type watchTickMsg time.Time

// watchSampleMsg carries the result of one sample.
type watchSampleMsg struct {
	resp *engine.MonitorResponse
	err  error
}

func newWatchModel(ctx context.Context, sample sampleFunc, interval time.Duration) watchModel {
	return watchModel{ctx: ctx, sample: sample, interval: interval}
}

// Init takes the first sample right away.
func (m watchModel) Init() tea.Cmd {
	return m.sampleCmd()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case watchTickMsg:
		return m, m.sampleCmd()

	case watchSampleMsg:
		if msg.err != nil {
			if m.ctx.Err() != nil {
				m.quitting = true
				return m, tea.Quit
			}
			// A lost connection reconnects in the background; anything else
			// ends the watch.
			if !errors.IsCode(msg.err, errors.ErrTransportLost) {
				m.fatal = msg.err
				return m, tea.Quit
			}
			m.err = msg.err
			return m, m.tickCmd()
		}
		m.err = nil
		m.last = msg.resp
		if c := msg.resp.Snapshot.CPU; c != nil {
			m.history = append(m.history, c.UsagePercent)
			if len(m.history) > historyWidth {
				m.history = m.history[len(m.history)-historyWidth:]
			}
		}
		return m, m.tickCmd()
	}
	return m, nil
}

func (m watchModel) View() string {
	if m.quitting || m.fatal != nil {
		return ""
	}

	var b strings.Builder
	switch {
	case m.last != nil:
		b.WriteString(ui.RenderSnapshot(m.last.Snapshot))
	default:
		b.WriteString(ui.Muted("sampling...") + "\n")
	}
	if len(m.history) > 0 {
		fmt.Fprintf(&b, "\n%-8s %s\n", "CPU", ui.Sparkline(m.history, historyWidth))
	}
	if m.err != nil {
		fmt.Fprintf(&b, "\n%s\n", ui.Failure(errors.Detail(m.err)))
	}
	b.WriteString(ui.Muted(fmt.Sprintf("\nevery %s, q to quit", m.interval)) + "\n")
	return b.String()
}

func (m watchModel) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m watchModel) sampleCmd() tea.Cmd {
	ctx, sample := m.ctx, m.sample
	return func() tea.Msg {
		resp, err := sample(ctx)
		return watchSampleMsg{resp: resp, err: err}
	}
}
