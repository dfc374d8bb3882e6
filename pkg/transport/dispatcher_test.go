package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hlclient/pkg/crypto"
	"github.com/uhyunpark/hlclient/pkg/venueerr"
	"github.com/uhyunpark/hlclient/pkg/wire"
)

// recordingClock fires timers immediately and remembers the requested waits.
type recordingClock struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (c *recordingClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (c *recordingClock) Now() time.Time { return time.Now() }

// venue is a scripted exchange endpoint. Each request pops the next reply;
// the last reply repeats.
type venue struct {
	mu      sync.Mutex
	bodies  [][]byte
	replies []reply
}

type reply struct {
	status int
	body   string
}

func (v *venue) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	v.mu.Lock()
	v.bodies = append(v.bodies, body)
	rep := v.replies[0]
	if len(v.replies) > 1 {
		v.replies = v.replies[1:]
	}
	v.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	_, _ = io.WriteString(w, rep.body)
}

func (v *venue) calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.bodies)
}

func newVenue(t *testing.T, replies ...reply) (*venue, *httptest.Server) {
	t.Helper()
	v := &venue{replies: replies}
	r := mux.NewRouter()
	r.HandleFunc("/exchange", v.handler).Methods(http.MethodPost)
	r.HandleFunc("/info", v.handler).Methods(http.MethodPost)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return v, srv
}

func newDispatcher(t *testing.T, url string, opts ...Option) (*Dispatcher, *recordingClock) {
	t.Helper()
	clock := &recordingClock{}
	d, err := New(url, append([]Option{WithClock(clock)}, opts...)...)
	require.NoError(t, err)
	return d, clock
}

func testEnvelope() *Envelope {
	return &Envelope{
		Action:    &wire.SetReferrerAction{Type: wire.KindSetReferrer, Code: "ALPHA"},
		Nonce:     1_700_000_000_000,
		Signature: crypto.Signature{R: "0x1", S: "0x2", V: 27},
	}
}

const okOrderBody = `{"status":"ok","response":{"type":"order","data":{"statuses":[
	{"resting":{"oid":77738308}},
	{"filled":{"totalSz":"0.02","avgPx":"1891.4","oid":77747314}}
]}}}`

func TestSendOK(t *testing.T) {
	v, srv := newVenue(t, reply{200, okOrderBody})
	d, _ := newDispatcher(t, srv.URL)

	res, err := d.Send(context.Background(), testEnvelope())
	require.NoError(t, err)
	assert.Equal(t, "order", res.Type)
	require.Len(t, res.Statuses, 2)

	oid, ok := res.Statuses[0].Oid()
	assert.True(t, ok)
	assert.Equal(t, int64(77738308), oid)
	require.NotNil(t, res.Statuses[1].Filled)
	assert.Equal(t, "1891.4", res.Statuses[1].Filled.AvgPx)
	assert.Equal(t, -1, res.FirstError())
	assert.Equal(t, 1, v.calls())
}

func TestSendEnvelopeShape(t *testing.T) {
	v, srv := newVenue(t, reply{200, `{"status":"ok","response":{"type":"default"}}`})
	d, _ := newDispatcher(t, srv.URL)

	res, err := d.Send(context.Background(), testEnvelope())
	require.NoError(t, err)
	assert.Equal(t, "default", res.Type)
	assert.Empty(t, res.Statuses)

	assert.JSONEq(t, `{
		"action":{"type":"setReferrer","code":"ALPHA"},
		"nonce":1700000000000,
		"signature":{"r":"0x1","s":"0x2","v":27},
		"vaultAddress":null
	}`, string(v.bodies[0]))
}

func TestSendPartialBatchFailure(t *testing.T) {
	body := `{"status":"ok","response":{"type":"order","data":{"statuses":[
		{"resting":{"oid":1}},
		{"error":"Order must have minimum value of $10."},
		{"filled":{"totalSz":"1","avgPx":"2","oid":3}},
		"success"
	]}}}`
	_, srv := newVenue(t, reply{200, body})
	d, _ := newDispatcher(t, srv.URL)

	res, err := d.Send(context.Background(), testEnvelope())

	var rej *venueerr.VenueRejectionError
	require.True(t, errors.As(err, &rej), "err = %v", err)
	assert.Equal(t, 1, rej.Index)
	assert.Equal(t, "Order must have minimum value of $10.", rej.Message)
	assert.Len(t, rej.Statuses, 4)

	require.NotNil(t, res, "partial failure must still expose every status")
	require.Len(t, res.Statuses, 4)
	assert.NotNil(t, res.Statuses[0].Resting)
	assert.True(t, res.Statuses[1].Failed())
	assert.NotNil(t, res.Statuses[2].Filled)
	assert.Equal(t, "success", res.Statuses[3].Text)
}

func TestSendTopLevelRejectionIsTerminal(t *testing.T) {
	v, srv := newVenue(t, reply{200, `{"status":"err","response":"User or API Wallet does not exist."}`})
	d, _ := newDispatcher(t, srv.URL)

	res, err := d.Send(context.Background(), testEnvelope())
	assert.Nil(t, res)

	var rej *venueerr.VenueRejectionError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, -1, rej.Index)
	assert.Equal(t, "User or API Wallet does not exist.", rej.Message)
	assert.Equal(t, 1, v.calls())
}

func TestSend4xxIsTerminal(t *testing.T) {
	v, srv := newVenue(t, reply{422, `Failed to deserialize the JSON body`})
	d, _ := newDispatcher(t, srv.URL)

	_, err := d.Send(context.Background(), testEnvelope())

	var rej *venueerr.VenueRejectionError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, 422, rej.StatusCode)
	assert.Contains(t, rej.Message, "deserialize")
	assert.Equal(t, 1, v.calls())
}

func TestSendRetriesWithSameBytes(t *testing.T) {
	v, srv := newVenue(t,
		reply{502, "bad gateway"},
		reply{503, "unavailable"},
		reply{200, okOrderBody},
	)
	reg := prometheus.NewRegistry()
	d, clock := newDispatcher(t, srv.URL, WithRetry(3, 100*time.Millisecond), WithMetrics(reg))

	_, err := d.Send(context.Background(), testEnvelope())
	require.NoError(t, err)

	require.Equal(t, 3, v.calls())
	assert.Equal(t, v.bodies[0], v.bodies[1])
	assert.Equal(t, v.bodies[0], v.bodies[2])
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, clock.waits)

	assert.Equal(t, 2.0, testutil.ToFloat64(d.metrics.retries.WithLabelValues(exchangePath)))
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.requests.WithLabelValues(exchangePath, outcomeOK)))
}

func TestSendRetriesExhausted(t *testing.T) {
	v, srv := newVenue(t, reply{500, "boom"})
	d, _ := newDispatcher(t, srv.URL, WithRetry(2, time.Millisecond))

	_, err := d.Send(context.Background(), testEnvelope())

	var tr *venueerr.TransientNetworkError
	require.True(t, errors.As(err, &tr), "err = %v", err)
	assert.Equal(t, 3, tr.Attempts)
	assert.Equal(t, 500, tr.StatusCode)
	assert.Equal(t, 3, v.calls())
}

func TestSendNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	d, _ := newDispatcher(t, url, WithRetry(1, time.Millisecond))
	_, err := d.Send(context.Background(), testEnvelope())

	var tr *venueerr.TransientNetworkError
	require.True(t, errors.As(err, &tr), "err = %v", err)
	assert.Equal(t, 0, tr.StatusCode)
	assert.Equal(t, 2, tr.Attempts)
}

func TestSendTimeoutIsIndeterminate(t *testing.T) {
	release := make(chan struct{})
	r := mux.NewRouter()
	r.HandleFunc("/exchange", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	srv := httptest.NewServer(r)
	defer srv.Close()
	defer close(release)

	d, _ := newDispatcher(t, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	env := testEnvelope()
	res, err := d.Send(ctx, env)
	assert.Nil(t, res)

	var ind *venueerr.IndeterminateOutcomeError
	require.True(t, errors.As(err, &ind), "err = %v", err)
	assert.Equal(t, env.Nonce, ind.Nonce)
	assert.ErrorIs(t, err, venueerr.ErrIndeterminate)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// slowVenue answers every request after delay, or after delays[i] for the
// i-th request when set, with the matching body.
func slowVenue(t *testing.T, delays []time.Duration, bodies ...string) (*atomic.Int32, *httptest.Server) {
	t.Helper()
	var calls atomic.Int32
	r := mux.NewRouter()
	r.HandleFunc("/exchange", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		i := int(calls.Add(1)) - 1
		if i < len(delays) {
			time.Sleep(delays[i])
		} else if len(delays) > 0 {
			time.Sleep(delays[len(delays)-1])
		}
		body := bodies[len(bodies)-1]
		if i < len(bodies) {
			body = bodies[i]
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}).Methods(http.MethodPost)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &calls, srv
}

func TestSendDuplicateNonceAfterTimeoutIsIndeterminate(t *testing.T) {
	calls, srv := slowVenue(t,
		[]time.Duration{100 * time.Millisecond, 0},
		`{"status":"ok","response":{"type":"order","data":{"statuses":[{"resting":{"oid":1}}]}}}`,
		`{"status":"err","response":"Invalid nonce: duplicate nonce"}`,
	)
	reg := prometheus.NewRegistry()
	d, _ := newDispatcher(t, srv.URL,
		WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}),
		WithRetry(1, time.Millisecond),
		WithMetrics(reg))

	env := testEnvelope()
	_, err := d.Send(context.Background(), env)

	var ind *venueerr.IndeterminateOutcomeError
	require.True(t, errors.As(err, &ind), "err = %v", err)
	assert.Equal(t, env.Nonce, ind.Nonce)
	assert.ErrorContains(t, err, "duplicate nonce")
	assert.NotErrorIs(t, err, venueerr.ErrVenueRejection)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.requests.WithLabelValues(exchangePath, outcomeIndeterminate)))
}

func TestSendClientTimeoutExhaustedIsIndeterminate(t *testing.T) {
	calls, srv := slowVenue(t, []time.Duration{100 * time.Millisecond}, okOrderBody)
	d, _ := newDispatcher(t, srv.URL,
		WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}),
		WithRetry(2, time.Millisecond))

	env := testEnvelope()
	_, err := d.Send(context.Background(), env)

	var ind *venueerr.IndeterminateOutcomeError
	require.True(t, errors.As(err, &ind), "err = %v", err)
	assert.Equal(t, env.Nonce, ind.Nonce)
	assert.NotErrorIs(t, err, venueerr.ErrTransientNetwork)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendRejectionAfterServerErrorIsTerminal(t *testing.T) {
	v, srv := newVenue(t,
		reply{503, "unavailable"},
		reply{200, `{"status":"err","response":"Insufficient margin"}`},
	)
	d, _ := newDispatcher(t, srv.URL, WithRetry(1, time.Millisecond))

	_, err := d.Send(context.Background(), testEnvelope())
	assert.ErrorIs(t, err, venueerr.ErrVenueRejection)
	assert.NotErrorIs(t, err, venueerr.ErrIndeterminate)
	assert.Equal(t, 2, v.calls())
}

func TestNeverSent(t *testing.T) {
	dial := &url.Error{Op: "Post", URL: "http://x", Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}
	assert.True(t, neverSent(dial))
	assert.True(t, neverSent(&url.Error{Op: "Post", URL: "http://x", Err: &net.DNSError{Err: "no such host", Name: "x"}}))

	read := &url.Error{Op: "Post", URL: "http://x", Err: &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}}
	assert.False(t, neverSent(read))
	assert.False(t, neverSent(&url.Error{Op: "Post", URL: "http://x", Err: context.DeadlineExceeded}))
	assert.False(t, neverSent(io.ErrUnexpectedEOF))
}

func TestSendUnparseableIsIndeterminate(t *testing.T) {
	_, srv := newVenue(t, reply{200, `<html>oops</html>`})
	d, _ := newDispatcher(t, srv.URL)

	_, err := d.Send(context.Background(), testEnvelope())
	assert.ErrorIs(t, err, venueerr.ErrIndeterminate)
}

func TestPostInfo(t *testing.T) {
	v, srv := newVenue(t, reply{200, `{"BTC":"30000.5","ETH":"1800"}`})
	d, _ := newDispatcher(t, srv.URL)

	var mids map[string]string
	require.NoError(t, d.PostInfo(context.Background(), map[string]string{"type": "allMids"}, &mids))
	assert.Equal(t, "30000.5", mids["BTC"])

	var q map[string]string
	require.NoError(t, json.Unmarshal(v.bodies[0], &q))
	assert.Equal(t, "allMids", q["type"])
}

func TestPostInfoRejection(t *testing.T) {
	_, srv := newVenue(t, reply{400, `unknown type`})
	d, _ := newDispatcher(t, srv.URL)

	var out any
	err := d.PostInfo(context.Background(), map[string]string{"type": "bogus"}, &out)
	assert.ErrorIs(t, err, venueerr.ErrVenueRejection)
}

func TestNewRejectsEmptyURL(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestBackoff(t *testing.T) {
	base := 200 * time.Millisecond
	cases := map[int]time.Duration{
		-1: base,
		0:  200 * time.Millisecond,
		1:  400 * time.Millisecond,
		2:  800 * time.Millisecond,
		4:  3200 * time.Millisecond,
		5:  maxBackoff,
		40: maxBackoff,
	}
	for attempt, want := range cases {
		assert.Equal(t, want, backoff(base, attempt), "attempt %d", attempt)
	}
}

func TestOrderStatusRoundTrip(t *testing.T) {
	in := `[{"resting":{"oid":1}},{"error":"bad"},"waitingForFill"]`
	var statuses []OrderStatus
	require.NoError(t, json.Unmarshal([]byte(in), &statuses))
	out, err := json.Marshal(statuses)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))

	var bad OrderStatus
	assert.Error(t, json.Unmarshal([]byte(`{"unexpected":1}`), &bad))
}
