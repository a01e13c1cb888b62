package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRequiresJobs(t *testing.T) {
	assert.ErrorIs(t, (&Scheduler{}).Run(context.Background()), ErrNoJobs)
}

func TestRunTicksUntilCancelled(t *testing.T) {
	fixed := time.Date(2031, 6, 1, 10, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
	var runs atomic.Int32
	var seen atomic.Value
	s := &Scheduler{
		Clock: func() time.Time { return fixed },
		Jobs: []Job{
			{
				Name:     "sweep",
				Interval: 5 * time.Millisecond,
				Run: func(ctx context.Context, now time.Time) error {
					seen.Store(now)
					if runs.Add(1) == 1 {
						return errors.New("store unavailable")
					}
					return nil
				},
			},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	now, _ := seen.Load().(time.Time)
	assert.Equal(t, time.UTC, now.Location())
	assert.True(t, now.Equal(fixed))
}
