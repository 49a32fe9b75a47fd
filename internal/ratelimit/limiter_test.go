package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacer_ZeroRateDoesNotBlock(t *testing.T) {
	p := NewPacer(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.Zero(t, p.Rate())
}

func TestPacer_LimitsRate(t *testing.T) {
	p := NewPacer(100)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 11; i++ {
		require.NoError(t, p.Wait(ctx))
	}
	// The first token is immediate, the next ten take ~10ms each.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestPacer_ContextCancelled(t *testing.T) {
	p := NewPacer(1)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, p.Wait(ctx))
}

func TestPacer_UnpacedHonoursCancelledContext(t *testing.T) {
	p := NewPacer(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.Canceled)
}

func TestPacer_Rate(t *testing.T) {
	assert.Equal(t, 250.0, NewPacer(250).Rate())
	assert.Zero(t, NewPacer(-1).Rate())
}

// Each agent owns a pacer, so two pacers together run at twice the rate.
func TestPacer_IndependentPacers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	counts := make([]int, 2)
	for i := range counts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := NewPacer(100)
			for p.Wait(ctx) == nil {
				counts[i]++
			}
		}(i)
	}
	wg.Wait()
	for _, n := range counts {
		assert.InDelta(t, 50, n, 15)
	}
}
