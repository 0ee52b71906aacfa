package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (c *countingSweeper) Sweep() int {
	c.calls.Add(1)
	return 1
}

func TestScheduler_SweepsPeriodically(t *testing.T) {
	sweeper := &countingSweeper{}
	s := New(sweeper, 50*time.Millisecond, zap.NewNop())
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return sweeper.calls.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_DefaultInterval(t *testing.T) {
	s := New(&countingSweeper{}, 0, nil)
	assert.Equal(t, defaultInterval, s.interval)
}
