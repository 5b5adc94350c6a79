package task

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	mu    sync.Mutex
	calls []time.Duration
	ids   []string
}

func (f *fakeSweeper) SweepIdle(ttl time.Duration) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ttl)
	out := f.ids
	f.ids = nil
	return out
}

func TestSessionSweepTask_RunOnceInvokesHooks(t *testing.T) {
	sweeper := &fakeSweeper{ids: []string{"a", "b"}}
	var hooked []string
	task := NewSessionSweepTask(sweeper, "0 * * * * *", 10*time.Minute, nil, func(id string) {
		hooked = append(hooked, id)
	})

	task.RunOnce()
	task.RunOnce()

	assert.Equal(t, []time.Duration{10 * time.Minute, 10 * time.Minute}, sweeper.calls)
	assert.Equal(t, []string{"a", "b"}, hooked)
}

func TestSessionSweepTask_StartRejectsBadSpec(t *testing.T) {
	task := NewSessionSweepTask(&fakeSweeper{}, "not a cron", time.Minute, nil)
	assert.Error(t, task.Start())
}

func TestSessionSweepTask_StartAndStop(t *testing.T) {
	sweeper := &fakeSweeper{}
	task := NewSessionSweepTask(sweeper, "* * * * * *", time.Minute, nil)
	require.NoError(t, task.Start())
	assert.Len(t, task.Cron.Entries(), 1)
	task.Stop()
}
