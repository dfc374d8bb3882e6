// Package venueerr holds the typed failures returned by the client.
//
// Every type wraps one of the sentinels below, so callers can branch with
// either errors.Is (category) or errors.As (details).
package venueerr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownSymbol    = errors.New("unknown symbol")
	ErrSigning          = errors.New("signing failed")
	ErrRateLimitTimeout = errors.New("rate limit wait abandoned")
	ErrTransientNetwork = errors.New("transient network failure")
	ErrVenueRejection   = errors.New("venue rejected request")
	ErrIndeterminate    = errors.New("indeterminate outcome")
)

// UnknownSymbolError is returned when a symbol is absent from venue metadata
// even after a refresh.
type UnknownSymbolError struct {
	Symbol string
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("unknown symbol %q", e.Symbol)
}

func (e *UnknownSymbolError) Unwrap() error { return ErrUnknownSymbol }

// SigningError reports a malformed action or an unusable key.
type SigningError struct {
	Action string
	Err    error
}

func (e *SigningError) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("signing: %v", e.Err)
	}
	return fmt.Sprintf("signing %s: %v", e.Action, e.Err)
}

func (e *SigningError) Unwrap() []error { return []error{ErrSigning, e.Err} }

// RateLimitTimeoutError means the caller's context ended while waiting for
// budget. Nothing was sent.
type RateLimitTimeoutError struct {
	Endpoint string
	Weight   int
	Err      error
}

func (e *RateLimitTimeoutError) Error() string {
	return fmt.Sprintf("rate limit wait on %s (weight %d): %v", e.Endpoint, e.Weight, e.Err)
}

func (e *RateLimitTimeoutError) Unwrap() []error { return []error{ErrRateLimitTimeout, e.Err} }

// TransientNetworkError is surfaced only after all retries were spent.
type TransientNetworkError struct {
	Attempts   int
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransientNetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient failure after %d attempts (http %d): %v", e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient failure after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransientNetworkError) Unwrap() []error { return []error{ErrTransientNetwork, e.Err} }

// VenueRejectionError carries the venue's message. For batched actions
// Statuses holds every per-order status in submission order and Index points
// at the first failing entry (-1 for a top-level rejection).
type VenueRejectionError struct {
	StatusCode int
	Message    string
	Index      int
	Statuses   []string
}

func (e *VenueRejectionError) Error() string {
	var b strings.Builder
	b.WriteString("venue rejected")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (http %d)", e.StatusCode)
	}
	if e.Index >= 0 && len(e.Statuses) > 0 {
		fmt.Fprintf(&b, " item %d of %d", e.Index, len(e.Statuses))
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

func (e *VenueRejectionError) Unwrap() error { return ErrVenueRejection }

// IndeterminateOutcomeError means the request may or may not have reached
// the venue. Callers must reconcile state before retrying with a new nonce.
type IndeterminateOutcomeError struct {
	Nonce int64
	Err   error
}

func (e *IndeterminateOutcomeError) Error() string {
	return fmt.Sprintf("outcome unknown for nonce %d: %v", e.Nonce, e.Err)
}

func (e *IndeterminateOutcomeError) Unwrap() []error { return []error{ErrIndeterminate, e.Err} }
