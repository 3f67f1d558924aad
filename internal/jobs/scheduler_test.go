package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegisterRejectsInvalidSchedule(t *testing.T) {
	s := NewScheduler(zap.NewNop().Sugar())
	err := s.Register(Job{Name: "broken", Schedule: "every now and then", Run: func() {}})
	assert.ErrorContains(t, err, "schedule broken job")
}

func TestScheduledJobRunsAndRecoversFromPanic(t *testing.T) {
	s := NewScheduler(zap.NewNop().Sugar())
	ran := make(chan struct{}, 4)

	require.NoError(t, s.Register(Job{Name: "panicky", Schedule: "@every 1s", Run: func() { panic("boom") }}))
	require.NoError(t, s.Register(Job{Name: "tick", Schedule: "@every 1s", Run: func() {
		select {
		case ran <- struct{}{}:
		default:
		}
	}}))
	s.Start()
	defer func() { <-s.Stop().Done() }()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled job did not run")
	}
}
