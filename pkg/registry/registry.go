// Package registry maps venue symbols to asset indices.
//
// Entries are cached for the life of the Registry. A miss triggers a
// metadata fetch that is shared by every caller missing at the same time;
// Invalidate drops the cache so the next miss goes back to the venue.
package registry

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/uhyunpark/hlclient/pkg/util"
	"github.com/uhyunpark/hlclient/pkg/venueerr"
)

const (
	// SpotIndexOffset is added to a spot pair's index to form its asset index.
	SpotIndexOffset = 10000

	// DefaultSnapshotMaxAge bounds how old a snapshot may be and still warm
	// the cache.
	DefaultSnapshotMaxAge = time.Hour
)

// AssetInfo is one tradable asset as published by the venue.
type AssetInfo struct {
	Symbol     string `json:"symbol"`
	Index      int    `json:"index"`
	SzDecimals int32  `json:"szDecimals"`
	IsSpot     bool   `json:"isSpot"`
}

// MetaSource fetches the venue's current asset list.
type MetaSource interface {
	FetchAssets(ctx context.Context) ([]AssetInfo, error)
}

// Snapshot persists the last fetched asset list between runs. SavedAt
// reports false when no write time is recorded.
type Snapshot interface {
	LoadAssets() ([]AssetInfo, error)
	SaveAssets(assets []AssetInfo) error
	SavedAt() (time.Time, bool, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSnapshot warms the cache from s at construction and saves every
// successful fetch back to it. A snapshot older than maxAge, or with no
// recorded write time, is ignored and the first lookup fetches instead.
// maxAge <= 0 means DefaultSnapshotMaxAge.
func WithSnapshot(s Snapshot, maxAge time.Duration) Option {
	return func(r *Registry) {
		r.snapshot = s
		if maxAge <= 0 {
			maxAge = DefaultSnapshotMaxAge
		}
		r.snapshotMaxAge = maxAge
	}
}

// WithClock sets the time source used to age snapshots.
func WithClock(c util.Clock) Option {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// Registry is a concurrency-safe symbol -> asset cache.
type Registry struct {
	source         MetaSource
	snapshot       Snapshot
	snapshotMaxAge time.Duration
	clock          util.Clock
	logger         *zap.Logger
	group          singleflight.Group

	mu     sync.RWMutex
	assets map[string]AssetInfo
	// gen counts completed fetches. A caller that missed at generation g
	// only fetches if nobody has completed a fetch since.
	gen uint64
}

// New creates a registry backed by source.
func New(source MetaSource, opts ...Option) *Registry {
	r := &Registry{
		source: source,
		clock:  util.RealClock{},
		logger: zap.NewNop(),
		assets: make(map[string]AssetInfo),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.snapshot != nil {
		r.warm()
	}
	return r
}

func (r *Registry) warm() {
	savedAt, ok, err := r.snapshot.SavedAt()
	if err != nil {
		r.logger.Warn("registry_snapshot_load_failed", zap.Error(err))
		return
	}
	if !ok {
		r.logger.Debug("registry_snapshot_undated")
		return
	}
	if age := r.clock.Now().Sub(savedAt); age > r.snapshotMaxAge {
		r.logger.Info("registry_snapshot_stale", zap.Duration("age", age), zap.Duration("max_age", r.snapshotMaxAge))
		return
	}

	assets, err := r.snapshot.LoadAssets()
	if err != nil {
		r.logger.Warn("registry_snapshot_load_failed", zap.Error(err))
		return
	}
	r.mu.Lock()
	for _, a := range assets {
		r.assets[a.Symbol] = a
	}
	r.mu.Unlock()
	r.logger.Debug("registry_warmed", zap.Int("assets", len(assets)))
}

// Resolve returns the asset index for symbol.
func (r *Registry) Resolve(ctx context.Context, symbol string) (int, error) {
	info, err := r.Lookup(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return info.Index, nil
}

// Lookup returns the full asset record for symbol. A cache miss triggers at
// most one metadata refresh; a symbol still absent afterwards yields an
// UnknownSymbolError.
func (r *Registry) Lookup(ctx context.Context, symbol string) (AssetInfo, error) {
	info, ok, gen := r.lookup(symbol)
	if ok {
		return info, nil
	}
	if err := r.refresh(ctx, gen); err != nil {
		return AssetInfo{}, err
	}
	if info, ok, _ = r.lookup(symbol); ok {
		return info, nil
	}
	return AssetInfo{}, &venueerr.UnknownSymbolError{Symbol: symbol}
}

// ResolveAll resolves symbols concurrently and returns indices in the same
// order. Repeated symbols share a single resolution.
func (r *Registry) ResolveAll(ctx context.Context, symbols []string) ([]int, error) {
	unique := make([]string, 0, len(symbols))
	slot := make(map[string]int, len(symbols))
	for _, s := range symbols {
		if _, seen := slot[s]; !seen {
			slot[s] = len(unique)
			unique = append(unique, s)
		}
	}

	resolved := make([]int, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range unique {
		g.Go(func() error {
			idx, err := r.Resolve(gctx, s)
			if err != nil {
				return err
			}
			resolved[i] = idx
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]int, len(symbols))
	for i, s := range symbols {
		out[i] = resolved[slot[s]]
	}
	return out, nil
}

// Refresh fetches metadata now, regardless of cache state. Concurrent
// callers share the fetch.
func (r *Registry) Refresh(ctx context.Context) error {
	r.mu.RLock()
	gen := r.gen
	r.mu.RUnlock()
	return r.refresh(ctx, gen)
}

// Invalidate drops every cached entry. The snapshot is left untouched.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	r.assets = make(map[string]AssetInfo)
	r.mu.Unlock()
	r.logger.Info("registry_invalidated")
}

// Len returns the number of cached assets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assets)
}

func (r *Registry) lookup(symbol string) (AssetInfo, bool, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.assets[symbol]
	return info, ok, r.gen
}

func (r *Registry) refresh(ctx context.Context, gen uint64) error {
	// The fetch outlives any single waiter so one caller giving up does not
	// fail the others sharing it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		r.mu.RLock()
		stale := r.gen != gen
		r.mu.RUnlock()
		if stale {
			return nil, nil
		}
		return nil, r.fetch(fetchCtx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) fetch(ctx context.Context) error {
	assets, err := r.source.FetchAssets(ctx)
	if err != nil {
		r.logger.Warn("registry_fetch_failed", zap.Error(err))
		return fmt.Errorf("fetch asset metadata: %w", err)
	}

	next := make(map[string]AssetInfo, len(assets))
	for _, a := range assets {
		if _, dup := next[a.Symbol]; dup {
			continue
		}
		next[a.Symbol] = a
	}

	r.mu.Lock()
	r.assets = next
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	r.logger.Info("registry_refreshed", zap.Int("assets", len(next)), zap.Uint64("generation", gen))

	if r.snapshot != nil {
		if err := r.snapshot.SaveAssets(assets); err != nil {
			r.logger.Warn("registry_snapshot_save_failed", zap.Error(err))
		}
	}
	return nil
}
