// Package info reads public venue metadata over the info endpoint.
package info

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/hlclient/pkg/ratelimit"
	"github.com/uhyunpark/hlclient/pkg/registry"
)

const SpotIndexOffset = registry.SpotIndexOffset

// Poster sends an info query and decodes the reply into out.
type Poster interface {
	PostInfo(ctx context.Context, query any, out any) error
}

// Admitter gates requests against a weight budget.
type Admitter interface {
	Admit(ctx context.Context, endpoint string, weight int) error
}

type PerpAsset struct {
	Name         string `json:"name"`
	SzDecimals   int32  `json:"szDecimals"`
	MaxLeverage  int    `json:"maxLeverage"`
	OnlyIsolated bool   `json:"onlyIsolated,omitempty"`
	IsDelisted   bool   `json:"isDelisted,omitempty"`
}

type Meta struct {
	Universe []PerpAsset `json:"universe"`
}

type SpotToken struct {
	Name        string `json:"name"`
	SzDecimals  int32  `json:"szDecimals"`
	WeiDecimals int32  `json:"weiDecimals"`
	Index       int    `json:"index"`
	TokenID     string `json:"tokenId"`
	IsCanonical bool   `json:"isCanonical"`
}

// SpotPair lists its base and quote token indices in Tokens.
type SpotPair struct {
	Name        string `json:"name"`
	Tokens      [2]int `json:"tokens"`
	Index       int    `json:"index"`
	IsCanonical bool   `json:"isCanonical"`
}

type SpotMeta struct {
	Universe []SpotPair  `json:"universe"`
	Tokens   []SpotToken `json:"tokens"`
}

// Client issues info queries through a rate-limited poster.
type Client struct {
	poster      Poster
	limiter     Admitter
	logger      *zap.Logger
	includeSpot bool
}

type Option func(*Client)

func WithLimiter(l Admitter) Option { return func(c *Client) { c.limiter = l } }

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithoutSpot restricts FetchAssets to perpetuals.
func WithoutSpot() Option { return func(c *Client) { c.includeSpot = false } }

func New(poster Poster, opts ...Option) *Client {
	c := &Client{poster: poster, logger: zap.NewNop(), includeSpot: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) query(ctx context.Context, kind string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Admit(ctx, ratelimit.Info, ratelimit.InfoWeight(kind)); err != nil {
			return err
		}
	}
	if err := c.poster.PostInfo(ctx, map[string]string{"type": kind}, out); err != nil {
		return fmt.Errorf("info %s: %w", kind, err)
	}
	return nil
}

// Meta returns the perpetuals universe. An asset's index is its position.
func (c *Client) Meta(ctx context.Context) (*Meta, error) {
	var m Meta
	if err := c.query(ctx, "meta", &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) SpotMeta(ctx context.Context) (*SpotMeta, error) {
	var m SpotMeta
	if err := c.query(ctx, "spotMeta", &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// AllMids returns the mid price of every listed coin.
func (c *Client) AllMids(ctx context.Context) (map[string]decimal.Decimal, error) {
	var raw map[string]string
	if err := c.query(ctx, "allMids", &raw); err != nil {
		return nil, err
	}
	mids := make(map[string]decimal.Decimal, len(raw))
	for coin, s := range raw {
		d, err := decimal.NewFromString(s)
		if err != nil {
			c.logger.Debug("info_mid_unparseable", zap.String("coin", coin), zap.String("value", s))
			continue
		}
		mids[coin] = d
	}
	return mids, nil
}

// FetchAssets lists every tradable asset. Spot pairs are addressable both by
// their venue name (e.g. "@107") and as "BASE/QUOTE".
func (c *Client) FetchAssets(ctx context.Context) ([]registry.AssetInfo, error) {
	meta, err := c.Meta(ctx)
	if err != nil {
		return nil, err
	}
	assets := make([]registry.AssetInfo, 0, len(meta.Universe))
	for i, a := range meta.Universe {
		assets = append(assets, registry.AssetInfo{Symbol: a.Name, Index: i, SzDecimals: a.SzDecimals})
	}
	if !c.includeSpot {
		return assets, nil
	}

	spot, err := c.SpotMeta(ctx)
	if err != nil {
		return nil, err
	}
	return append(assets, SpotAssets(spot)...), nil
}

// SpotAssets flattens spot metadata into registry entries.
func SpotAssets(m *SpotMeta) []registry.AssetInfo {
	tokens := make(map[int]SpotToken, len(m.Tokens))
	for _, t := range m.Tokens {
		tokens[t.Index] = t
	}

	var out []registry.AssetInfo
	for _, p := range m.Universe {
		base, okBase := tokens[p.Tokens[0]]
		quote, okQuote := tokens[p.Tokens[1]]
		if !okBase {
			continue
		}
		idx := SpotIndexOffset + p.Index
		out = append(out, registry.AssetInfo{Symbol: p.Name, Index: idx, SzDecimals: base.SzDecimals, IsSpot: true})
		if okQuote {
			pair := base.Name + "/" + quote.Name
			if pair != p.Name {
				out = append(out, registry.AssetInfo{Symbol: pair, Index: idx, SzDecimals: base.SzDecimals, IsSpot: true})
			}
		}
	}
	return out
}
