package exchange

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/hlclient/pkg/registry"
	"github.com/uhyunpark/hlclient/pkg/transport"
	"github.com/uhyunpark/hlclient/pkg/venueerr"
	"github.com/uhyunpark/hlclient/pkg/wire"
)

// DefaultSlippage is the price tolerance MarketOpen uses when given zero.
var DefaultSlippage = decimal.RequireFromString("0.05")

const (
	priceSigFigs   = 5
	perpPxDecimals = 6
	spotPxDecimals = 8
)

// CancelRequest targets an order by venue id.
type CancelRequest struct {
	Symbol string
	Oid    int64
}

// CancelByCloidRequest targets an order by client order id.
type CancelByCloidRequest struct {
	Symbol string
	Cloid  wire.Cloid
}

// ModifyRequest replaces the order Ref points at with Order.
type ModifyRequest struct {
	Ref   wire.OrderRef
	Order wire.Order
}

// Order places a single order.
func (e *Exchange) Order(ctx context.Context, o wire.Order, builder *wire.Builder) (*transport.Result, error) {
	return e.BulkOrders(ctx, []wire.Order{o}, wire.GroupingNA, builder)
}

// BulkOrders places orders as one action. The i-th status in the result
// describes orders[i]. An empty list is rejected without touching the
// network.
func (e *Exchange) BulkOrders(ctx context.Context, orders []wire.Order, grouping wire.Grouping, builder *wire.Builder) (*transport.Result, error) {
	if len(orders) == 0 {
		return nil, &venueerr.SigningError{Action: string(wire.KindOrder), Err: wire.ErrEmptyBatch}
	}

	symbols := make([]string, len(orders))
	for i, o := range orders {
		symbols[i] = o.Symbol
	}
	assets, err := e.assets.ResolveAll(ctx, symbols)
	if err != nil {
		return nil, err
	}

	wires := make([]wire.OrderWire, len(orders))
	for i, o := range orders {
		w, err := e.encoder.EncodeOrder(o, assets[i])
		if err != nil {
			return nil, fmt.Errorf("order %d (%s): %w", i, o.Symbol, err)
		}
		wires[i] = w
	}

	action, err := e.encoder.EncodeOrderAction(wires, grouping, builder)
	if err != nil {
		return nil, err
	}
	return e.postL1(ctx, action, len(wires), true)
}

// MarketOpen sends an aggressive IOC limit order priced slippage away from
// px, or from the current mid when px is nil. reduceOnly limits the order to
// shrinking an existing position.
func (e *Exchange) MarketOpen(ctx context.Context, symbol string, isBuy bool, size decimal.Decimal, reduceOnly bool, px *decimal.Decimal, slippage decimal.Decimal, cloid *wire.Cloid) (*transport.Result, error) {
	limitPx, err := e.SlippagePrice(ctx, symbol, isBuy, slippage, px)
	if err != nil {
		return nil, err
	}
	return e.Order(ctx, wire.Order{
		Symbol:     symbol,
		IsBuy:      isBuy,
		LimitPx:    limitPx,
		Size:       size,
		ReduceOnly: reduceOnly,
		OrderType:  wire.Limit(wire.TifIoc),
		Cloid:      cloid,
	}, nil)
}

// SlippagePrice returns the limit price a market order should carry: the
// reference price moved by slippage against the taker, cut to five
// significant figures and to the asset's price decimals.
func (e *Exchange) SlippagePrice(ctx context.Context, symbol string, isBuy bool, slippage decimal.Decimal, px *decimal.Decimal) (decimal.Decimal, error) {
	if slippage.IsZero() {
		slippage = DefaultSlippage
	}
	one := decimal.NewFromInt(1)
	if slippage.IsNegative() || slippage.GreaterThanOrEqual(one) {
		return decimal.Zero, &venueerr.SigningError{Action: string(wire.KindOrder), Err: fmt.Errorf("slippage %s out of range", slippage)}
	}

	info, err := e.assets.Lookup(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}

	var ref decimal.Decimal
	if px != nil {
		ref = *px
	} else {
		if e.mids == nil {
			return decimal.Zero, errors.New("no price given and no mid source configured")
		}
		mids, err := e.mids.AllMids(ctx)
		if err != nil {
			return decimal.Zero, fmt.Errorf("read mids: %w", err)
		}
		mid, ok := mids[symbol]
		if !ok && info.IsSpot {
			// Non-canonical spot pairs are quoted under "@<pair index>".
			mid, ok = mids["@"+strconv.Itoa(info.Index-registry.SpotIndexOffset)]
		}
		if !ok {
			return decimal.Zero, fmt.Errorf("no mid price for %s", symbol)
		}
		ref = mid
	}

	if isBuy {
		ref = ref.Mul(one.Add(slippage))
	} else {
		ref = ref.Mul(one.Sub(slippage))
	}

	decimals := int32(perpPxDecimals)
	if info.IsSpot {
		decimals = spotPxDecimals
	}
	decimals -= info.SzDecimals
	if decimals < 0 {
		decimals = 0
	}
	return wire.RoundSignificant(ref, priceSigFigs).Round(decimals), nil
}

// Cancel cancels one order by venue id.
func (e *Exchange) Cancel(ctx context.Context, symbol string, oid int64) (*transport.Result, error) {
	return e.BulkCancel(ctx, []CancelRequest{{Symbol: symbol, Oid: oid}})
}

// BulkCancel cancels orders by venue id in one action.
func (e *Exchange) BulkCancel(ctx context.Context, reqs []CancelRequest) (*transport.Result, error) {
	if len(reqs) == 0 {
		return nil, &venueerr.SigningError{Action: string(wire.KindCancel), Err: wire.ErrEmptyBatch}
	}
	symbols := make([]string, len(reqs))
	for i, r := range reqs {
		symbols[i] = r.Symbol
	}
	assets, err := e.assets.ResolveAll(ctx, symbols)
	if err != nil {
		return nil, err
	}
	cancels := make([]wire.Cancel, len(reqs))
	for i, r := range reqs {
		cancels[i] = wire.Cancel{Asset: assets[i], Oid: r.Oid}
	}
	action, err := e.encoder.EncodeAction(wire.KindCancel, cancels)
	if err != nil {
		return nil, err
	}
	return e.postL1(ctx, action, len(cancels), true)
}

// CancelByCloid cancels one order by client order id.
func (e *Exchange) CancelByCloid(ctx context.Context, symbol string, cloid wire.Cloid) (*transport.Result, error) {
	return e.BulkCancelByCloid(ctx, []CancelByCloidRequest{{Symbol: symbol, Cloid: cloid}})
}

func (e *Exchange) BulkCancelByCloid(ctx context.Context, reqs []CancelByCloidRequest) (*transport.Result, error) {
	if len(reqs) == 0 {
		return nil, &venueerr.SigningError{Action: string(wire.KindCancelByCloid), Err: wire.ErrEmptyBatch}
	}
	symbols := make([]string, len(reqs))
	for i, r := range reqs {
		symbols[i] = r.Symbol
	}
	assets, err := e.assets.ResolveAll(ctx, symbols)
	if err != nil {
		return nil, err
	}
	cancels := make([]wire.CancelByCloid, len(reqs))
	for i, r := range reqs {
		cancels[i] = wire.CancelByCloid{Asset: assets[i], Cloid: r.Cloid}
	}
	action, err := e.encoder.EncodeAction(wire.KindCancelByCloid, cancels)
	if err != nil {
		return nil, err
	}
	return e.postL1(ctx, action, len(cancels), true)
}

// Modify replaces a single resting order.
func (e *Exchange) Modify(ctx context.Context, ref wire.OrderRef, o wire.Order) (*transport.Result, error) {
	info, err := e.assets.Lookup(ctx, o.Symbol)
	if err != nil {
		return nil, err
	}
	action, err := e.encoder.EncodeAction(wire.KindModify, wire.Modify{Ref: ref, Asset: info.Index, Order: o})
	if err != nil {
		return nil, err
	}
	return e.postL1(ctx, action, 1, true)
}

// BatchModify replaces several orders in one action, keeping request order.
func (e *Exchange) BatchModify(ctx context.Context, reqs []ModifyRequest) (*transport.Result, error) {
	if len(reqs) == 0 {
		return nil, &venueerr.SigningError{Action: string(wire.KindBatchModify), Err: wire.ErrEmptyBatch}
	}
	symbols := make([]string, len(reqs))
	for i, r := range reqs {
		symbols[i] = r.Order.Symbol
	}
	assets, err := e.assets.ResolveAll(ctx, symbols)
	if err != nil {
		return nil, err
	}
	mods := make([]wire.Modify, len(reqs))
	for i, r := range reqs {
		mods[i] = wire.Modify{Ref: r.Ref, Asset: assets[i], Order: r.Order}
	}
	action, err := e.encoder.EncodeAction(wire.KindBatchModify, mods)
	if err != nil {
		return nil, err
	}
	return e.postL1(ctx, action, len(mods), true)
}

// ScheduleCancel arms a dead man's switch that cancels every open order at
// the given time. A nil time disarms it.
func (e *Exchange) ScheduleCancel(ctx context.Context, at *time.Time) (*transport.Result, error) {
	var payload wire.ScheduleCancel
	if at != nil {
		ms := at.UnixMilli()
		payload.Time = &ms
	}
	action, err := e.encoder.EncodeAction(wire.KindScheduleCancel, payload)
	if err != nil {
		return nil, err
	}
	return e.postL1(ctx, action, 1, true)
}
