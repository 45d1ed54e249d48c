package cli

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/myssh/internal/engine"
	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cpuSample(usage float64) *engine.MonitorResponse {
	return &engine.MonitorResponse{Snapshot: &monitor.Snapshot{
		Timestamp: time.Now(),
		Platform:  monitor.PlatformLinux,
		CPU:       &monitor.CPU{UsagePercent: usage, Cores: 4},
	}}
}

func TestWatchModel_InitSamples(t *testing.T) {
	calls := 0
	m := newWatchModel(context.Background(), func(context.Context) (*engine.MonitorResponse, error) {
		calls++
		return cpuSample(42), nil
	}, time.Millisecond)

	cmd := m.Init()
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, watchSampleMsg{}, msg)
	assert.Equal(t, 1, calls)

	next, tick := m.Update(msg)
	require.NotNil(t, tick, "a sample schedules the next tick")
	wm := next.(watchModel)
	assert.Equal(t, []float64{42}, wm.history)
	assert.Contains(t, wm.View(), "CPU")
	assert.Contains(t, wm.View(), "q to quit")

	_, cmd = wm.Update(watchTickMsg(time.Now()))
	require.NotNil(t, cmd)
	require.IsType(t, watchSampleMsg{}, cmd())
	assert.Equal(t, 2, calls)
}

func TestWatchModel_HistoryIsCapped(t *testing.T) {
	var m tea.Model = newWatchModel(context.Background(), nil, time.Second)
	for i := 0; i < historyWidth+10; i++ {
		m, _ = m.Update(watchSampleMsg{resp: cpuSample(float64(i))})
	}

	wm := m.(watchModel)
	require.Len(t, wm.history, historyWidth)
	assert.Equal(t, float64(10), wm.history[0], "oldest samples drop first")
	assert.Equal(t, float64(historyWidth+9), wm.history[historyWidth-1])
}

func TestWatchModel_SampleErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantQuit  bool
		wantFatal bool
	}{
		{
			name: "lost connection keeps watching",
			err:  errors.New(errors.ErrTransportLost, "Lost the connection to db1", ""),
		},
		{
			name:      "other failure ends the watch",
			err:       errors.New(errors.ErrExec, "Failed to run command on db1", ""),
			wantQuit:  true,
			wantFatal: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newWatchModel(context.Background(), nil, time.Millisecond)
			next, _ := m.Update(watchSampleMsg{resp: cpuSample(10)})

			next, cmd := next.Update(watchSampleMsg{err: tt.err})
			require.NotNil(t, cmd)
			wm := next.(watchModel)

			if tt.wantQuit {
				assert.IsType(t, tea.QuitMsg{}, cmd())
			} else {
				assert.IsType(t, watchTickMsg{}, cmd())
				assert.Contains(t, wm.View(), "Lost the connection")
				assert.Contains(t, wm.View(), "CPU", "the last good sample stays on screen")
			}
			if tt.wantFatal {
				assert.Equal(t, tt.err, wm.fatal)
			} else {
				assert.NoError(t, wm.fatal)
			}
		})
	}
}

func TestWatchModel_Quit(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.Msg
	}{
		{"q", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}},
		{"ctrl+c", tea.KeyMsg{Type: tea.KeyCtrlC}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newWatchModel(context.Background(), nil, time.Second)
			next, cmd := m.Update(tt.msg)
			require.NotNil(t, cmd)
			assert.IsType(t, tea.QuitMsg{}, cmd())
			assert.Empty(t, next.View())
		})
	}
}

func TestWatchModel_CanceledContextQuits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := newWatchModel(ctx, nil, time.Second)
	next, cmd := m.Update(watchSampleMsg{err: ctx.Err()})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.NoError(t, next.(watchModel).fatal)
}
