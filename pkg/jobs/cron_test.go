package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsRegisteredTask(t *testing.T) {
	s := NewScheduler(nil)
	ran := make(chan struct{}, 1)
	require.NoError(t, s.Register("tick", "@every 1s", func(ctx context.Context) {
		select {
		case ran <- struct{}{}:
		default:
		}
	}))
	s.Start(context.Background())
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestSchedulerRejectsInvalidSpec(t *testing.T) {
	s := NewScheduler(nil)
	err := s.Register("broken", "every now and then", func(context.Context) {})
	assert.Error(t, err)
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := NewScheduler(nil)
	s.Stop()
	s.Start(context.Background())
	s.Stop()
	s.Stop()
}
