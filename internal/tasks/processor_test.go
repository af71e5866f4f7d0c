package tasks

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDelayProcessorScalesWithRequirement(t *testing.T) {
	p := DelayProcessor{UnitDelay: time.Millisecond, MaxDelay: time.Second}

	start := time.Now()
	result, err := p.Process(context.Background(), Task{ID: "t-1", ResourceRequirement: 5})
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
	require.Contains(t, result, `"taskId":"t-1"`)
	require.Contains(t, result, `"durationMs":5`)
}

func TestDelayProcessorBoundsAbsurdRequirement(t *testing.T) {
	p := DelayProcessor{UnitDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}

	start := time.Now()
	result, err := p.Process(context.Background(), Task{ID: "t-big", ResourceRequirement: math.MaxInt})
	require.NoError(t, err)
	// The bounded multiplication must not overflow into a negative
	// delay that fires immediately; MaxDelay caps the wait.
	require.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	require.Contains(t, result, `"durationMs":10`)
}

func TestDelayProcessorStopsOnCancel(t *testing.T) {
	p := DelayProcessor{UnitDelay: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Process(ctx, Task{ID: "t-2"})
	require.ErrorIs(t, err, context.Canceled)
}
