package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hlclient/pkg/venueerr"
)

type fakeSource struct {
	calls  atomic.Int32
	gate   chan struct{}
	err    error
	assets []AssetInfo
}

func (f *fakeSource) FetchAssets(ctx context.Context) ([]AssetInfo, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.assets, nil
}

type memSnapshot struct {
	mu      sync.Mutex
	assets  []AssetInfo
	savedAt time.Time
	saves   int
}

func (m *memSnapshot) LoadAssets() ([]AssetInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assets, nil
}

func (m *memSnapshot) SaveAssets(assets []AssetInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets = assets
	m.savedAt = time.Now()
	m.saves++
	return nil
}

func (m *memSnapshot) SavedAt() (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.savedAt, !m.savedAt.IsZero(), nil
}

// fixedClock reports a fixed time.
type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func (c fixedClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

var venueAssets = []AssetInfo{
	{Symbol: "BTC", Index: 0, SzDecimals: 5},
	{Symbol: "ETH", Index: 1, SzDecimals: 4},
	{Symbol: "SOL", Index: 5, SzDecimals: 2},
	{Symbol: "PURR/USDC", Index: 10000, SzDecimals: 0, IsSpot: true},
}

func TestResolveIsStable(t *testing.T) {
	src := &fakeSource{assets: venueAssets}
	r := New(src)

	first, err := r.Resolve(context.Background(), "ETH")
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "ETH")
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestResolveStampedeFetchesOnce(t *testing.T) {
	src := &fakeSource{assets: venueAssets, gate: make(chan struct{})}
	r := New(src)

	const callers = 64
	start := make(chan struct{})
	results := make([]int, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i], errs[i] = r.Resolve(context.Background(), "BTC")
		}()
	}
	close(start)

	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	// Let stragglers reach the cache check before the fetch lands.
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, 0, results[i])
	}
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestResolveUnknownAfterOneRefresh(t *testing.T) {
	src := &fakeSource{assets: venueAssets}
	r := New(src)

	_, err := r.Resolve(context.Background(), "ZZZ")

	var unknown *venueerr.UnknownSymbolError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "ZZZ", unknown.Symbol)
	assert.ErrorIs(t, err, venueerr.ErrUnknownSymbol)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestResolveUnknownRefreshesOnEachMiss(t *testing.T) {
	src := &fakeSource{assets: venueAssets}
	r := New(src)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "BTC")
	require.NoError(t, err)
	_, err = r.Resolve(ctx, "ZZZ")
	require.Error(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestResolveFetchError(t *testing.T) {
	boom := errors.New("venue down")
	r := New(&fakeSource{err: boom})

	_, err := r.Resolve(context.Background(), "BTC")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, venueerr.ErrUnknownSymbol)
}

func TestResolveHonorsContext(t *testing.T) {
	src := &fakeSource{assets: venueAssets, gate: make(chan struct{})}
	defer close(src.gate)
	r := New(src)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := r.Resolve(ctx, "BTC")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResolveAllPositional(t *testing.T) {
	src := &fakeSource{assets: venueAssets}
	r := New(src)

	got, err := r.ResolveAll(context.Background(), []string{"SOL", "BTC", "SOL", "ETH", "BTC", "PURR/USDC"})
	require.NoError(t, err)
	assert.Equal(t, []int{5, 0, 5, 1, 0, 10000}, got)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestResolveAllFailsOnUnknown(t *testing.T) {
	r := New(&fakeSource{assets: venueAssets})

	_, err := r.ResolveAll(context.Background(), []string{"BTC", "ZZZ"})
	assert.ErrorIs(t, err, venueerr.ErrUnknownSymbol)
}

func TestInvalidateForcesFetch(t *testing.T) {
	src := &fakeSource{assets: venueAssets}
	r := New(src)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "BTC")
	require.NoError(t, err)
	r.Invalidate()
	assert.Equal(t, 0, r.Len())

	_, err = r.Resolve(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestSnapshotWarmStart(t *testing.T) {
	snap := &memSnapshot{
		assets:  []AssetInfo{{Symbol: "BTC", Index: 0, SzDecimals: 5}},
		savedAt: time.Now().Add(-time.Minute),
	}
	src := &fakeSource{assets: venueAssets}
	r := New(src, WithSnapshot(snap, time.Hour))

	idx, err := r.Resolve(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, int32(0), src.calls.Load(), "warm cache should not hit the venue")

	require.NoError(t, r.Refresh(context.Background()))
	assert.Equal(t, 1, snap.saves)
	assert.Len(t, snap.assets, len(venueAssets))
}

func TestStaleSnapshotIsIgnored(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	snap := &memSnapshot{
		assets:  []AssetInfo{{Symbol: "BTC", Index: 3, SzDecimals: 5}},
		savedAt: now.Add(-2 * time.Hour),
	}
	src := &fakeSource{assets: venueAssets}
	r := New(src, WithSnapshot(snap, time.Hour), WithClock(fixedClock{now: now}))
	assert.Equal(t, 0, r.Len())

	idx, err := r.Resolve(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, 0, idx, "index must come from the venue, not the stale snapshot")
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestFreshSnapshotWithinMaxAge(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	snap := &memSnapshot{
		assets:  []AssetInfo{{Symbol: "BTC", Index: 3, SzDecimals: 5}},
		savedAt: now.Add(-30 * time.Minute),
	}
	src := &fakeSource{assets: venueAssets}
	r := New(src, WithSnapshot(snap, time.Hour), WithClock(fixedClock{now: now}))

	idx, err := r.Resolve(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, 3, idx)
	assert.Equal(t, int32(0), src.calls.Load())
}

func TestUndatedSnapshotIsIgnored(t *testing.T) {
	snap := &memSnapshot{assets: []AssetInfo{{Symbol: "BTC", Index: 3, SzDecimals: 5}}}
	src := &fakeSource{assets: venueAssets}
	r := New(src, WithSnapshot(snap, 0))

	idx, err := r.Resolve(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestLookupCarriesMetadata(t *testing.T) {
	r := New(&fakeSource{assets: venueAssets})

	info, err := r.Lookup(context.Background(), "PURR/USDC")
	require.NoError(t, err)
	assert.True(t, info.IsSpot)
	assert.Equal(t, 10000, info.Index)
	assert.Equal(t, int32(0), info.SzDecimals)
}
