// Package exchange turns trading intents into signed venue requests.
//
// Every operation follows the same path: resolve symbols, encode the action,
// sign it, wait for rate budget, send it. Resolution and encoding failures
// abort before anything reaches the network.
package exchange

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/hlclient/pkg/crypto"
	"github.com/uhyunpark/hlclient/pkg/ratelimit"
	"github.com/uhyunpark/hlclient/pkg/registry"
	"github.com/uhyunpark/hlclient/pkg/storage"
	"github.com/uhyunpark/hlclient/pkg/transport"
	"github.com/uhyunpark/hlclient/pkg/util"
	"github.com/uhyunpark/hlclient/pkg/venueerr"
	"github.com/uhyunpark/hlclient/pkg/wire"
)

var errNotUserSigned = errors.New("action is not user-signed")

// Resolver maps symbols to asset records.
type Resolver interface {
	Lookup(ctx context.Context, symbol string) (registry.AssetInfo, error)
	ResolveAll(ctx context.Context, symbols []string) ([]int, error)
}

// Admitter gates requests against a weight budget.
type Admitter interface {
	Admit(ctx context.Context, endpoint string, weight int) error
}

// Sender delivers a signed envelope.
type Sender interface {
	Send(ctx context.Context, env *transport.Envelope) (*transport.Result, error)
}

// MidSource supplies current mid prices keyed by venue coin name.
type MidSource interface {
	AllMids(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Journal records every dispatched nonce and its outcome.
type Journal interface {
	Record(e storage.JournalEntry) error
}

// Option configures an Exchange.
type Option func(*Exchange) error

func WithLogger(l *zap.Logger) Option {
	return func(e *Exchange) error {
		if l != nil {
			e.logger = l
		}
		return nil
	}
}

// WithVault trades on behalf of a vault or sub-account. Venue actions commit
// to the vault in their hash; usdClassTransfer folds it into the amount.
func WithVault(address string) Option {
	return func(e *Exchange) error {
		if !common.IsHexAddress(address) {
			return &venueerr.SigningError{Action: "config", Err: errors.New("invalid vault address " + address)}
		}
		v := common.HexToAddress(address)
		e.vault = &v
		return nil
	}
}

// WithExpiresAfter makes venue actions invalid after the given unix-ms time.
func WithExpiresAfter(ms int64) Option {
	return func(e *Exchange) error {
		e.expiresAfter = &ms
		return nil
	}
}

func WithNonceSource(n crypto.NonceSource) Option {
	return func(e *Exchange) error {
		if n != nil {
			e.nonces = n
		}
		return nil
	}
}

func WithLimiter(a Admitter) Option {
	return func(e *Exchange) error {
		if a != nil {
			e.limiter = a
		}
		return nil
	}
}

// WithMids sets the price source used by MarketOpen when no price is given.
func WithMids(m MidSource) Option {
	return func(e *Exchange) error {
		e.mids = m
		return nil
	}
}

func WithJournal(j Journal) Option {
	return func(e *Exchange) error {
		if j != nil {
			e.journal = j
		}
		return nil
	}
}

func WithClock(c util.Clock) Option {
	return func(e *Exchange) error {
		if c != nil {
			e.clock = c
		}
		return nil
	}
}

// Exchange is a signing session bound to one key and one network. It is
// safe for concurrent use.
type Exchange struct {
	key     *crypto.Signer
	encoder *wire.Encoder
	signer  *crypto.ActionSigner
	assets  Resolver
	sender  Sender
	limiter Admitter
	nonces  crypto.NonceSource
	mids    MidSource
	journal Journal
	clock   util.Clock
	logger  *zap.Logger

	vault        *common.Address
	expiresAfter *int64
}

// New creates a session. The key is held for the life of the Exchange and
// never leaves it except as signatures.
func New(key *crypto.Signer, network wire.Network, assets Resolver, sender Sender, opts ...Option) (*Exchange, error) {
	if key == nil {
		return nil, &venueerr.SigningError{Action: "config", Err: errors.New("signing key required")}
	}
	if !network.Valid() {
		return nil, &venueerr.SigningError{Action: "config", Err: errors.New("network not set")}
	}
	e := &Exchange{
		key:     key,
		encoder: wire.NewEncoder(network),
		signer:  crypto.NewActionSigner(network),
		assets:  assets,
		sender:  sender,
		clock:   util.RealClock{},
		logger:  zap.NewNop(),
		journal: storage.NewNopJournal(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.nonces == nil {
		e.nonces = crypto.NewMonotonicNonce(e.clock)
	}
	if e.limiter == nil {
		e.limiter = ratelimit.New(ratelimit.DefaultPerMinute, ratelimit.DefaultBurst, e.logger)
	}
	return e, nil
}

// Address is the signing account.
func (e *Exchange) Address() common.Address { return e.key.Address() }

func (e *Exchange) Network() wire.Network { return e.encoder.Network() }

// postL1 signs a venue action and sends it. items is the number of orders
// or cancels the action touches, for rate weighting.
func (e *Exchange) postL1(ctx context.Context, action wire.Action, items int, accountScoped bool) (*transport.Result, error) {
	p := crypto.L1Params{Nonce: e.nonces.Next(), ExpiresAfter: e.expiresAfter}
	if accountScoped {
		p.Vault = e.vault
	}
	sig, err := e.signer.SignL1Action(e.key, action, p)
	if err != nil {
		return nil, err
	}

	env := &transport.Envelope{
		Action:       action,
		Nonce:        p.Nonce,
		Signature:    sig,
		ExpiresAfter: p.ExpiresAfter,
	}
	if p.Vault != nil {
		v := strings.ToLower(p.Vault.Hex())
		env.VaultAddress = &v
	}
	return e.dispatch(ctx, action.Kind(), env, ratelimit.ExchangeWeight(items))
}

// postUser sends a user-signed action. Its nonce is the one embedded in the
// signed message, and it is never sent with a vault address.
func (e *Exchange) postUser(ctx context.Context, action wire.UserSignedAction) (*transport.Result, error) {
	sig, err := e.signer.SignUserAction(e.key, action)
	if err != nil {
		return nil, err
	}
	env := &transport.Envelope{
		Action:    action,
		Nonce:     action.SigningNonce(),
		Signature: sig,
	}
	return e.dispatch(ctx, action.Kind(), env, ratelimit.ExchangeWeight(1))
}

func (e *Exchange) dispatch(ctx context.Context, kind wire.Kind, env *transport.Envelope, weight int) (*transport.Result, error) {
	if err := e.limiter.Admit(ctx, ratelimit.Exchange, weight); err != nil {
		return nil, err
	}

	res, err := e.sender.Send(ctx, env)
	outcome := outcomeOf(err)
	e.record(kind, env.Nonce, outcome, err)

	fields := []zap.Field{
		zap.String("action", string(kind)),
		zap.Int64("nonce", env.Nonce),
		zap.Int("weight", weight),
		zap.String("outcome", outcome),
	}
	if err != nil {
		e.logger.Warn("action_failed", append(fields, zap.Error(err))...)
	} else {
		e.logger.Info("action_sent", fields...)
	}
	return res, err
}

func (e *Exchange) record(kind wire.Kind, nonce int64, outcome string, err error) {
	entry := storage.JournalEntry{
		Time:    e.clock.Now(),
		Nonce:   nonce,
		Action:  string(kind),
		Outcome: outcome,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if jerr := e.journal.Record(entry); jerr != nil {
		e.logger.Error("journal_write_failed", zap.Int64("nonce", nonce), zap.Error(jerr))
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, venueerr.ErrIndeterminate):
		return "indeterminate"
	case errors.Is(err, venueerr.ErrVenueRejection):
		return "rejected"
	case errors.Is(err, venueerr.ErrTransientNetwork):
		return "transient"
	default:
		return "failed"
	}
}
