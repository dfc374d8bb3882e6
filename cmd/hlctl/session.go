package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/uhyunpark/hlclient/params"
	"github.com/uhyunpark/hlclient/pkg/crypto"
	"github.com/uhyunpark/hlclient/pkg/exchange"
	"github.com/uhyunpark/hlclient/pkg/info"
	"github.com/uhyunpark/hlclient/pkg/ratelimit"
	"github.com/uhyunpark/hlclient/pkg/registry"
	"github.com/uhyunpark/hlclient/pkg/storage"
	"github.com/uhyunpark/hlclient/pkg/transport"
	"github.com/uhyunpark/hlclient/pkg/venueerr"
)

// session is everything one command needs to talk to the venue.
type session struct {
	ex      *exchange.Exchange
	metrics *prometheus.Registry
	closers []func() error
}

func loadKey(c params.Config) (*crypto.Signer, error) {
	if c.Account.PrivateKey == "" {
		return nil, errors.New("HL_PRIVATE_KEY is not set")
	}
	key, err := crypto.FromPrivateKeyHex(c.Account.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("HL_PRIVATE_KEY: %w", err)
	}
	return key, nil
}

func openSession(c params.Config, log *zap.Logger) (*session, error) {
	key, err := loadKey(c)
	if err != nil {
		return nil, err
	}

	s := &session{metrics: prometheus.NewRegistry()}

	disp, err := transport.New(c.Venue.BaseURL,
		transport.WithLogger(log),
		transport.WithRetry(c.Dispatch.MaxRetries, c.Dispatch.RetryBase),
		transport.WithMetrics(s.metrics),
	)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.New(c.Dispatch.RatePerMinute, c.Dispatch.RateBurst, log)
	infoClient := info.New(disp, info.WithLimiter(limiter), info.WithLogger(log))

	regOpts := []registry.Option{registry.WithLogger(log)}
	if c.Storage.MetaCacheDir != "" {
		store, err := storage.OpenMetaStore(c.Storage.MetaCacheDir, c.Venue.Network.String())
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, store.Close)
		regOpts = append(regOpts, registry.WithSnapshot(store, c.Storage.MetaCacheMaxAge))
	}
	assets := registry.New(infoClient, regOpts...)

	exOpts := []exchange.Option{
		exchange.WithLogger(log),
		exchange.WithLimiter(limiter),
		exchange.WithMids(infoClient),
	}
	if c.Account.Vault != "" {
		exOpts = append(exOpts, exchange.WithVault(c.Account.Vault))
	}
	if c.Storage.JournalPath != "" {
		if err := os.MkdirAll(filepath.Dir(c.Storage.JournalPath), 0o755); err != nil {
			s.Close()
			return nil, err
		}
		journal, err := storage.NewFileJournal(c.Storage.JournalPath)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, journal.Close)
		exOpts = append(exOpts, exchange.WithJournal(journal))
	}

	s.ex, err = exchange.New(key, c.Venue.Network, assets, disp, exOpts...)
	if err != nil {
		s.Close()
		return nil, err
	}

	fields := []zap.Field{
		zap.String("network", c.Venue.Network.String()),
		zap.String("base_url", disp.BaseURL()),
		zap.String("signer", key.Address().Hex()),
	}
	if c.Account.Address != "" {
		fields = append(fields, zap.String("account", c.Account.Address))
	}
	log.Debug("session_opened", fields...)
	return s, nil
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
	s.closers = nil
}

// logMetrics writes the dispatcher counters at debug level.
func (s *session) logMetrics(log *zap.Logger) {
	families, err := s.metrics.Gather()
	if err != nil {
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fields := []zap.Field{zap.String("metric", mf.GetName())}
			for _, lp := range m.GetLabel() {
				fields = append(fields, zap.String(lp.GetName(), lp.GetValue()))
			}
			switch {
			case m.GetCounter() != nil:
				fields = append(fields, zap.Float64("value", m.GetCounter().GetValue()))
			case m.GetHistogram() != nil:
				fields = append(fields,
					zap.Uint64("count", m.GetHistogram().GetSampleCount()),
					zap.Float64("sum", m.GetHistogram().GetSampleSum()))
			}
			log.Debug("dispatch_metric", fields...)
		}
	}
}

// withSession opens a session bounded by the configured request timeout and
// prints whatever fn returns.
func withSession(fn func(ctx context.Context, ex *exchange.Exchange) (*transport.Result, error)) error {
	s, err := openSession(cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()
	defer s.logMetrics(logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Dispatch.RequestTimeout)
	defer cancel()

	res, err := fn(ctx, s.ex)
	if res != nil {
		if perr := printJSON(res); perr != nil {
			return perr
		}
	}
	var ind *venueerr.IndeterminateOutcomeError
	if errors.As(err, &ind) {
		return fmt.Errorf("%w (check open orders or fills for nonce %d before retrying)", err, ind.Nonce)
	}
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
