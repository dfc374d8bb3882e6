package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hlclient/pkg/venueerr"
)

func TestExchangeWeight(t *testing.T) {
	cases := map[int]int{0: 1, 1: 1, 39: 1, 40: 2, 79: 2, 80: 3, 400: 11}
	for n, want := range cases {
		assert.Equal(t, want, ExchangeWeight(n), "n=%d", n)
	}
}

func TestInfoWeight(t *testing.T) {
	assert.Equal(t, 20, InfoWeight("meta"))
	assert.Equal(t, 20, InfoWeight("spotMeta"))
	assert.Equal(t, 2, InfoWeight("allMids"))
	assert.Equal(t, 20, InfoWeight("somethingNew"))
}

func TestAdmitWithinBurst(t *testing.T) {
	l := New(60, 10, nil)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Admit(ctx, Exchange, 1))
	}
}

func TestAdmitBlocksThenProceeds(t *testing.T) {
	// 1ms per token, burst of one.
	l := New(60_000, 1, nil)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Admit(ctx, Exchange, 1))
	}
	assert.GreaterOrEqual(t, time.Since(start), 3*time.Millisecond)
}

func TestAdmitTimeoutIsTyped(t *testing.T) {
	l := New(1, 2, nil)
	require.NoError(t, l.Admit(context.Background(), Exchange, 2))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Admit(ctx, Exchange, 1)

	var rl *venueerr.RateLimitTimeoutError
	require.True(t, errors.As(err, &rl), "err = %v", err)
	assert.Equal(t, Exchange, rl.Endpoint)
	assert.Equal(t, 1, rl.Weight)
	assert.ErrorIs(t, err, venueerr.ErrRateLimitTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAdmitCancelled(t *testing.T) {
	l := New(1, 1, nil)
	require.NoError(t, l.Admit(context.Background(), Info, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Admit(ctx, Info, 1)
	assert.ErrorIs(t, err, venueerr.ErrRateLimitTimeout)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdmitClampsOversizedWeight(t *testing.T) {
	l := New(60, 5, nil)
	require.NoError(t, l.Admit(context.Background(), Exchange, 50))
	assert.Less(t, l.Tokens(Exchange), 1.0)
}

func TestEndpointsAreIndependent(t *testing.T) {
	l := New(1, 1, nil)
	require.NoError(t, l.Admit(context.Background(), Exchange, 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.NoError(t, l.Admit(ctx, Info, 1))
}

func TestAdmitConcurrentNeverOverspends(t *testing.T) {
	l := New(1, 20, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit(ctx, Exchange, 1) == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, admitted)
}
