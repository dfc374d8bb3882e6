package crypto

import (
	"sync/atomic"

	"github.com/uhyunpark/hlclient/pkg/util"
)

// NonceSource yields strictly increasing nonces for one signing key.
type NonceSource interface {
	Next() int64
}

// MonotonicNonce issues millisecond-timestamp nonces that never repeat or
// go backwards, even under concurrent callers or a clock that steps back.
type MonotonicNonce struct {
	clock util.Clock
	last  atomic.Int64
}

// NewMonotonicNonce returns a nonce source driven by clock.
func NewMonotonicNonce(clock util.Clock) *MonotonicNonce {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &MonotonicNonce{clock: clock}
}

// Next returns max(now_ms, last+1).
func (n *MonotonicNonce) Next() int64 {
	for {
		last := n.last.Load()
		next := n.clock.Now().UnixMilli()
		if next <= last {
			next = last + 1
		}
		if n.last.CompareAndSwap(last, next) {
			return next
		}
	}
}

// Last returns the most recently issued nonce, or 0.
func (n *MonotonicNonce) Last() int64 {
	return n.last.Load()
}
