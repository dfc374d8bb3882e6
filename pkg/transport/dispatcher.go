// Package transport posts signed envelopes and info queries to the venue
// and normalizes the responses into typed results and errors.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/uhyunpark/hlclient/pkg/util"
	"github.com/uhyunpark/hlclient/pkg/venueerr"
)

const (
	MainnetURL = "https://api.hyperliquid.xyz"
	TestnetURL = "https://api.hyperliquid-testnet.xyz"

	DefaultMaxRetries = 3
	DefaultRetryBase  = 200 * time.Millisecond
	maxBackoff        = 5 * time.Second

	exchangePath = "/exchange"
	infoPath     = "/info"

	maxErrorBody = 512
)

var (
	// errAbandoned marks a round trip the caller's context ended before a
	// usable response arrived.
	errAbandoned = errors.New("request abandoned")

	// errNotSent marks an attempt that failed before any request bytes left
	// the host.
	errNotSent = errors.New("request not sent")
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.client = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithRetry sets the retry budget and the first backoff step. Negative
// maxRetries disables retries.
func WithRetry(maxRetries int, base time.Duration) Option {
	return func(d *Dispatcher) {
		if maxRetries < 0 {
			maxRetries = 0
		}
		d.maxRetries = maxRetries
		if base > 0 {
			d.retryBase = base
		}
	}
}

func WithClock(c util.Clock) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithMetrics registers the dispatcher's collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(d *Dispatcher) { d.registerer = reg }
}

// Dispatcher sends requests to one venue base URL.
type Dispatcher struct {
	baseURL    string
	client     *http.Client
	logger     *zap.Logger
	clock      util.Clock
	maxRetries int
	retryBase  time.Duration
	registerer prometheus.Registerer
	metrics    *metrics
}

// New creates a dispatcher for baseURL.
func New(baseURL string, opts ...Option) (*Dispatcher, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("transport: base url required")
	}
	d := &Dispatcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     zap.NewNop(),
		clock:      util.RealClock{},
		maxRetries: DefaultMaxRetries,
		retryBase:  DefaultRetryBase,
		metrics:    newMetrics(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.registerer != nil {
		if err := d.metrics.register(d.registerer); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return d, nil
}

// BaseURL returns the venue root the dispatcher posts to.
func (d *Dispatcher) BaseURL() string { return d.baseURL }

// Send posts env to the exchange endpoint. The body is serialized once and
// the same bytes are re-sent on every retry, so a retried request can never
// carry a different nonce.
//
// A response whose per-item statuses contain a rejection yields both the
// full Result and a VenueRejectionError pointing at the first failed item.
//
// Once an attempt has failed after its request may have reached the venue,
// the outcome of that nonce is unknown: a later rejection (typically a
// duplicate nonce) or running out of retries is reported as an
// IndeterminateOutcomeError rather than as a rejection or transient failure.
func (d *Dispatcher) Send(ctx context.Context, env *Envelope) (*Result, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, &venueerr.SigningError{Action: "envelope", Err: fmt.Errorf("marshal envelope: %w", err)}
	}

	start := d.clock.Now()
	defer func() {
		d.metrics.latency.WithLabelValues(exchangePath).Observe(d.clock.Now().Sub(start).Seconds())
	}()

	status, resp, delivered, err := d.roundTrip(ctx, exchangePath, body)
	if err != nil {
		if errors.Is(err, errAbandoned) {
			return nil, d.indeterminate(env.Nonce, err)
		}
		var tr *venueerr.TransientNetworkError
		if delivered && errors.As(err, &tr) {
			return nil, d.indeterminate(env.Nonce, fmt.Errorf("no answer after %d attempts: %w", tr.Attempts, tr.Err))
		}
		d.outcome(exchangePath, outcomeTransient)
		return nil, err
	}

	if status >= 400 {
		rej := &venueerr.VenueRejectionError{StatusCode: status, Message: errorBody(resp), Index: -1}
		if delivered {
			return nil, d.indeterminate(env.Nonce, resendRefused(rej))
		}
		d.outcome(exchangePath, outcomeRejected)
		return nil, rej
	}

	res, err := parseExchangeResponse(status, resp)
	var rejection *venueerr.VenueRejectionError
	switch {
	case errors.As(err, &rejection):
		if delivered {
			return res, d.indeterminate(env.Nonce, resendRefused(rejection))
		}
		d.outcome(exchangePath, outcomeRejected)
		d.logger.Info("dispatch_rejected",
			zap.Int64("nonce", env.Nonce),
			zap.Int("index", rejection.Index),
			zap.String("message", rejection.Message))
		return res, err
	case err != nil:
		// The request was delivered and answered, but the answer cannot be
		// read, so the venue state is unknown.
		return nil, d.indeterminate(env.Nonce, err)
	}

	d.outcome(exchangePath, outcomeOK)
	d.logger.Debug("dispatch_ok", zap.Int64("nonce", env.Nonce), zap.String("type", res.Type), zap.Int("statuses", len(res.Statuses)))
	return res, nil
}

func (d *Dispatcher) indeterminate(nonce int64, err error) error {
	d.outcome(exchangePath, outcomeIndeterminate)
	d.logger.Warn("dispatch_indeterminate", zap.Int64("nonce", nonce), zap.Error(err))
	return &venueerr.IndeterminateOutcomeError{Nonce: nonce, Err: err}
}

// resendRefused describes a rejection of a resend without wrapping it, so
// callers matching on VenueRejectionError do not treat it as final.
func resendRefused(rej *venueerr.VenueRejectionError) error {
	return fmt.Errorf("resend refused after an earlier attempt may have been delivered: %s", rej.Error())
}

// PostInfo posts a read query to the info endpoint and decodes the body into
// out. Info queries are side-effect free, so an abandoned call is reported
// as the context's error.
func (d *Dispatcher) PostInfo(ctx context.Context, query any, out any) error {
	body, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("marshal info query: %w", err)
	}

	start := d.clock.Now()
	defer func() {
		d.metrics.latency.WithLabelValues(infoPath).Observe(d.clock.Now().Sub(start).Seconds())
	}()

	status, resp, _, err := d.roundTrip(ctx, infoPath, body)
	if err != nil {
		if errors.Is(err, errAbandoned) {
			d.outcome(infoPath, outcomeIndeterminate)
			return fmt.Errorf("info query: %w", ctx.Err())
		}
		d.outcome(infoPath, outcomeTransient)
		return err
	}
	if status >= 400 {
		d.outcome(infoPath, outcomeRejected)
		return &venueerr.VenueRejectionError{StatusCode: status, Message: errorBody(resp), Index: -1}
	}
	if err := json.Unmarshal(resp, out); err != nil {
		d.outcome(infoPath, outcomeRejected)
		return fmt.Errorf("decode info response: %w", err)
	}
	d.outcome(infoPath, outcomeOK)
	return nil
}

// roundTrip posts body, retrying transport failures and 5xx responses.
// Any other response, including 4xx, is returned to the caller as is.
// The returned bool reports whether a failed attempt may have reached the
// venue before the final response or error.
func (d *Dispatcher) roundTrip(ctx context.Context, path string, body []byte) (int, []byte, bool, error) {
	var (
		lastErr    error
		lastStatus int
		delivered  bool
	)
	attempts := d.maxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			d.metrics.retries.WithLabelValues(path).Inc()
			wait := backoff(d.retryBase, attempt-1)
			d.logger.Debug("dispatch_retry",
				zap.String("endpoint", path),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.Bool("delivered", delivered),
				zap.Error(lastErr))
			select {
			case <-d.clock.After(wait):
			case <-ctx.Done():
				return 0, nil, delivered, fmt.Errorf("%w after %d attempts: %w", errAbandoned, attempt, ctx.Err())
			}
		}

		status, resp, err := d.post(ctx, path, body)
		if err != nil {
			if ctx.Err() != nil {
				return 0, nil, delivered, fmt.Errorf("%w: %w", errAbandoned, ctx.Err())
			}
			if !errors.Is(err, errNotSent) {
				delivered = true
			}
			lastErr, lastStatus = err, 0
			continue
		}
		if status >= 500 {
			lastErr, lastStatus = fmt.Errorf("server error: %s", errorBody(resp)), status
			continue
		}
		return status, resp, delivered, nil
	}

	d.logger.Warn("dispatch_retries_exhausted",
		zap.String("endpoint", path),
		zap.Int("attempts", attempts),
		zap.Int("status", lastStatus),
		zap.Bool("delivered", delivered),
		zap.Error(lastErr))
	return 0, nil, delivered, &venueerr.TransientNetworkError{Attempts: attempts, StatusCode: lastStatus, Err: lastErr}
}

// post makes one attempt. Failures that prove the request never left the
// host wrap errNotSent; any other failure may follow a delivered request.
func (d *Dispatcher) post(ctx context.Context, path string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", errNotSent, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		if neverSent(err) {
			return 0, nil, fmt.Errorf("%w: %w", errNotSent, err)
		}
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// neverSent reports whether err happened while resolving or dialing the
// venue, before a connection existed to carry the request.
func neverSent(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func (d *Dispatcher) outcome(path, outcome string) {
	d.metrics.requests.WithLabelValues(path, outcome).Inc()
}

// backoff is base * 2^attempt, capped at maxBackoff.
func backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		return base
	}
	if attempt > 30 {
		return maxBackoff
	}
	wait := base * time.Duration(1<<attempt)
	if wait > maxBackoff || wait <= 0 {
		return maxBackoff
	}
	return wait
}

func errorBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	if s == "" {
		return "empty response body"
	}
	return s
}
