package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/authguard/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestTimingDelay_WaitFrom_OnFailure(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   50 * time.Millisecond,
		RandomDelay: 10 * time.Millisecond,
	})
	start := time.Now()

	err := timing.WaitFrom(context.Background(), start, false)

	assert.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestTimingDelay_WaitFrom_OnSuccess_NoDelay(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelay: 200 * time.Millisecond})
	start := time.Now()

	err := timing.WaitFrom(context.Background(), start, true)

	assert.NoError(t, err)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestTimingDelay_WaitFrom_NoWaitIfAlreadyExceeded(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelay: 20 * time.Millisecond})
	start := time.Now().Add(-time.Second)
	before := time.Now()

	err := timing.WaitFrom(context.Background(), start, false)

	assert.NoError(t, err)
	assert.Less(t, time.Since(before), 10*time.Millisecond)
}

func TestTimingDelay_WaitFrom_ContextCanceled(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelay: 5 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := timing.WaitFrom(ctx, time.Now(), false)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestTimingDelay_NilIsNoop(t *testing.T) {
	var timing *auth.TimingDelay

	assert.NoError(t, timing.WaitFrom(context.Background(), time.Now(), false))
	assert.Zero(t, timing.Target())
}
