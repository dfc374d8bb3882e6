package storage

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Key schema, per network namespace:
//
//	meta:<ns>:asset:<symbol> -> JSON registry.AssetInfo
//	meta:<ns>:saved          -> 8-byte big-endian unix ms of the last save
const prefixMeta = "meta:"

func assetPrefix(ns string) []byte {
	return []byte(fmt.Sprintf("%s%s:asset:", prefixMeta, ns))
}

func assetKey(ns, symbol string) []byte {
	return append(assetPrefix(ns), symbol...)
}

func savedAtKey(ns string) []byte {
	return []byte(fmt.Sprintf("%s%s:saved", prefixMeta, ns))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}

func encodeTime(t time.Time) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(t.UnixMilli()))
	return b[:]
}

func decodeTime(b []byte) (time.Time, error) {
	if len(b) != 8 {
		return time.Time{}, fmt.Errorf("timestamp: want 8 bytes, got %d", len(b))
	}
	return time.UnixMilli(int64(binary.BigEndian.Uint64(b))), nil
}
