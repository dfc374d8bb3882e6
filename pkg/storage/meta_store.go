// Package storage persists client-side state: the last asset metadata
// snapshot (pebble) and an append-only dispatch journal.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/hlclient/pkg/registry"
)

// MetaStore keeps one asset snapshot per namespace (typically the network
// name) so mainnet and testnet indices never mix.
type MetaStore struct {
	db  *pebble.DB
	ns  string
	now func() time.Time
}

// OpenMetaStore opens (or creates) the pebble database at path.
func OpenMetaStore(path, namespace string) (*MetaStore, error) {
	if namespace == "" {
		return nil, errors.New("meta store: namespace required")
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open meta store: %w", err)
	}
	return &MetaStore{db: db, ns: namespace, now: time.Now}, nil
}

func (s *MetaStore) Close() error { return s.db.Close() }

// SaveAssets replaces the namespace's snapshot atomically.
func (s *MetaStore) SaveAssets(assets []registry.AssetInfo) error {
	prefix := assetPrefix(s.ns)
	b := s.db.NewBatch()
	defer b.Close()

	if err := b.DeleteRange(prefix, keyUpperBound(prefix), nil); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	for _, a := range assets {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to marshal asset %s: %w", a.Symbol, err)
		}
		if err := b.Set(assetKey(s.ns, a.Symbol), data, nil); err != nil {
			return fmt.Errorf("failed to stage asset %s: %w", a.Symbol, err)
		}
	}
	if err := b.Set(savedAtKey(s.ns), encodeTime(s.now()), nil); err != nil {
		return fmt.Errorf("failed to stage timestamp: %w", err)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadAssets returns the saved snapshot, or nil if none exists.
func (s *MetaStore) LoadAssets() ([]registry.AssetInfo, error) {
	prefix := assetPrefix(s.ns)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	var assets []registry.AssetInfo
	for iter.First(); iter.Valid(); iter.Next() {
		var a registry.AssetInfo
		if err := json.Unmarshal(iter.Value(), &a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %q: %w", iter.Key(), err)
		}
		assets = append(assets, a)
	}
	return assets, iter.Error()
}

// SavedAt reports when the snapshot was last written.
func (s *MetaStore) SavedAt() (time.Time, bool, error) {
	val, closer, err := s.db.Get(savedAtKey(s.ns))
	if errors.Is(err, pebble.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get timestamp: %w", err)
	}
	defer closer.Close()

	t, err := decodeTime(val)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

var _ registry.Snapshot = (*MetaStore)(nil)
