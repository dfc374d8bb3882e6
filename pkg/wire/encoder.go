package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/hlclient/pkg/venueerr"
)

var ErrEmptyBatch = errors.New("empty batch")

// Encoder turns domain payloads into wire actions for one network. Encoding
// is pure: the same input always produces the same action.
type Encoder struct {
	network Network
}

// NewEncoder returns an encoder for the given network.
func NewEncoder(network Network) *Encoder {
	return &Encoder{network: network}
}

func (e *Encoder) Network() Network { return e.network }

func malformed(kind Kind, format string, args ...any) error {
	return &venueerr.SigningError{Action: string(kind), Err: fmt.Errorf(format, args...)}
}

// EncodeOrder converts an order into its wire form for the given asset.
func (e *Encoder) EncodeOrder(o Order, asset int) (OrderWire, error) {
	if asset < 0 {
		return OrderWire{}, malformed(KindOrder, "negative asset index %d", asset)
	}
	if !o.Size.IsPositive() {
		return OrderWire{}, malformed(KindOrder, "size must be positive, got %s", o.Size)
	}
	if !o.LimitPx.IsPositive() {
		return OrderWire{}, malformed(KindOrder, "limit price must be positive, got %s", o.LimitPx)
	}
	px, err := FormatDecimal(o.LimitPx)
	if err != nil {
		return OrderWire{}, malformed(KindOrder, "limit price: %w", err)
	}
	sz, err := FormatDecimal(o.Size)
	if err != nil {
		return OrderWire{}, malformed(KindOrder, "size: %w", err)
	}
	ot, err := encodeOrderType(o.OrderType)
	if err != nil {
		return OrderWire{}, err
	}

	w := OrderWire{
		Asset:      asset,
		IsBuy:      o.IsBuy,
		LimitPx:    px,
		Size:       sz,
		ReduceOnly: o.ReduceOnly,
		OrderType:  ot,
	}
	if o.Cloid != nil {
		w.Cloid = o.Cloid.String()
	}
	return w, nil
}

func encodeOrderType(t OrderType) (OrderTypeWire, error) {
	switch {
	case t.Limit != nil && t.Trigger != nil:
		return OrderTypeWire{}, malformed(KindOrder, "order type has both limit and trigger")
	case t.Limit != nil:
		if !t.Limit.Tif.Valid() {
			return OrderTypeWire{}, malformed(KindOrder, "invalid time in force %q", t.Limit.Tif)
		}
		return OrderTypeWire{Limit: &LimitWire{Tif: t.Limit.Tif}}, nil
	case t.Trigger != nil:
		if t.Trigger.TpSl != TakeProfit && t.Trigger.TpSl != StopLoss {
			return OrderTypeWire{}, malformed(KindOrder, "invalid tpsl %q", t.Trigger.TpSl)
		}
		if !t.Trigger.TriggerPx.IsPositive() {
			return OrderTypeWire{}, malformed(KindOrder, "trigger price must be positive, got %s", t.Trigger.TriggerPx)
		}
		px, err := FormatDecimal(t.Trigger.TriggerPx)
		if err != nil {
			return OrderTypeWire{}, malformed(KindOrder, "trigger price: %w", err)
		}
		return OrderTypeWire{Trigger: &TriggerWire{
			IsMarket:  t.Trigger.IsMarket,
			TriggerPx: px,
			TpSl:      t.Trigger.TpSl,
		}}, nil
	default:
		return OrderTypeWire{}, malformed(KindOrder, "order type missing")
	}
}

// EncodeOrderAction builds an order action from orders already encoded in
// submission order. The builder, if any, is attached once to the action.
func (e *Encoder) EncodeOrderAction(orders []OrderWire, grouping Grouping, builder *Builder) (*OrderAction, error) {
	if len(orders) == 0 {
		return nil, &venueerr.SigningError{Action: string(KindOrder), Err: ErrEmptyBatch}
	}
	if grouping == "" {
		grouping = GroupingNA
	}
	if !grouping.Valid() {
		return nil, malformed(KindOrder, "invalid grouping %q", grouping)
	}
	action := &OrderAction{
		Type:     KindOrder,
		Orders:   orders,
		Grouping: grouping,
	}
	if builder != nil {
		if !common.IsHexAddress(builder.Address) {
			return nil, malformed(KindOrder, "invalid builder address %q", builder.Address)
		}
		if builder.Fee < 0 {
			return nil, malformed(KindOrder, "negative builder fee %d", builder.Fee)
		}
		action.Builder = &BuilderWire{Address: strings.ToLower(builder.Address), Fee: builder.Fee}
	}
	return action, nil
}

// EncodeAction assembles a non-order action. The payload type must match the
// kind; a mismatch or missing field is reported as a SigningError.
func (e *Encoder) EncodeAction(kind Kind, payload any) (Action, error) {
	switch kind {
	case KindCancel:
		cancels, ok := payload.([]Cancel)
		if !ok {
			return nil, mismatch(kind, payload)
		}
		if len(cancels) == 0 {
			return nil, &venueerr.SigningError{Action: string(kind), Err: ErrEmptyBatch}
		}
		out := make([]CancelWire, len(cancels))
		for i, c := range cancels {
			if c.Asset < 0 {
				return nil, malformed(kind, "cancel %d: negative asset index", i)
			}
			out[i] = CancelWire{Asset: c.Asset, Oid: c.Oid}
		}
		return &CancelAction{Type: kind, Cancels: out}, nil

	case KindCancelByCloid:
		cancels, ok := payload.([]CancelByCloid)
		if !ok {
			return nil, mismatch(kind, payload)
		}
		if len(cancels) == 0 {
			return nil, &venueerr.SigningError{Action: string(kind), Err: ErrEmptyBatch}
		}
		out := make([]CancelByCloidWire, len(cancels))
		for i, c := range cancels {
			if c.Asset < 0 {
				return nil, malformed(kind, "cancel %d: negative asset index", i)
			}
			out[i] = CancelByCloidWire{Asset: c.Asset, Cloid: c.Cloid.String()}
		}
		return &CancelByCloidAction{Type: kind, Cancels: out}, nil

	case KindModify:
		m, ok := payload.(Modify)
		if !ok {
			return nil, mismatch(kind, payload)
		}
		order, err := e.EncodeOrder(m.Order, m.Asset)
		if err != nil {
			return nil, err
		}
		return &ModifyAction{Type: kind, Oid: m.Ref.wire(), Order: order}, nil

	case KindBatchModify:
		mods, ok := payload.([]Modify)
		if !ok {
			return nil, mismatch(kind, payload)
		}
		if len(mods) == 0 {
			return nil, &venueerr.SigningError{Action: string(kind), Err: ErrEmptyBatch}
		}
		out := make([]ModifyWire, len(mods))
		for i, m := range mods {
			order, err := e.EncodeOrder(m.Order, m.Asset)
			if err != nil {
				return nil, fmt.Errorf("modify %d: %w", i, err)
			}
			out[i] = ModifyWire{Oid: m.Ref.wire(), Order: order}
		}
		return &BatchModifyAction{Type: kind, Modifies: out}, nil

	case KindScheduleCancel:
		s, ok := payload.(ScheduleCancel)
		if !ok {
			return nil, mismatch(kind, payload)
		}
		return &ScheduleCancelAction{Type: kind, Time: s.Time}, nil

	case KindUpdateLeverage:
		l, ok := payload.(LeverageUpdate)
		if !ok {
			return nil, mismatch(kind, payload)
		}
		if l.Leverage <= 0 {
			return nil, malformed(kind, "leverage must be positive, got %d", l.Leverage)
		}
		return &UpdateLeverageAction{Type: kind, Asset: l.Asset, IsCross: l.IsCross, Leverage: l.Leverage}, nil

	case KindUpdateIsolatedMargin:
		m, ok := payload.(IsolatedMarginUpdate)
		if !ok {
			return nil, mismatch(kind, payload)
		}
		ntli, err := ToUsdInt(m.Amount)
		if err != nil {
			return nil, malformed(kind, "amount: %w", err)
		}
		return &UpdateIsolatedMarginAction{Type: kind, Asset: m.Asset, IsBuy: true, Ntli: ntli}, nil

	case KindVaultTransfer:
		v, ok := payload.(VaultTransfer)
		if !ok {
			return nil, mismatch(kind, payload)
		}
		if !common.IsHexAddress(v.Vault) {
			return nil, malformed(kind, "invalid vault address %q", v.Vault)
		}
		usd, err := ToUsdInt(v.Usd)
		if err != nil || usd <= 0 {
			return nil, malformed(kind, "usd must be a positive amount with at most %d decimals, got %s", usdDecimals, v.Usd)
		}
		return &VaultTransferAction{Type: kind, VaultAddress: strings.ToLower(v.Vault), IsDeposit: v.IsDeposit, Usd: usd}, nil

	case KindSetReferrer:
		r, ok := payload.(SetReferrer)
		if !ok {
			return nil, mismatch(kind, payload)
		}
		if r.Code == "" {
			return nil, malformed(kind, "referral code missing")
		}
		return &SetReferrerAction{Type: kind, Code: r.Code}, nil

	case KindUsdSend, KindSpotSend, KindWithdraw, KindUsdClassTransfer, KindApproveAgent, KindApproveBuilderFee:
		return e.encodeUserSigned(kind, payload)

	case KindOrder:
		return nil, malformed(kind, "use EncodeOrderAction for orders")
	default:
		return nil, malformed(kind, "unknown action type")
	}
}

func (e *Encoder) encodeUserSigned(kind Kind, payload any) (Action, error) {
	if !e.network.Valid() {
		return nil, malformed(kind, "network not set")
	}
	chain := e.network.ChainName()

	switch kind {
	case KindUsdSend:
		s, ok := payload.(UsdSend)
		if !ok {
			return nil, mismatch(kind, payload)
		}
		amount, err := positiveAmount(kind, s.Amount)
		if err != nil {
			return nil, err
		}
		if err := checkDestination(kind, s.Destination); err != nil {
			return nil, err
		}
		if s.Time <= 0 {
			return nil, malformed(kind, "time missing")
		}
		return &UsdSendAction{
			Type:             kind,
			SignatureChainID: SignatureChainID,
			HyperliquidChain: chain,
			Destination:      s.Destination,
			Amount:           amount,
			Time:             s.Time,
		}, nil

	case KindSpotSend:
		s, ok := payload.(SpotSend)
		if !ok {
			return nil, mismatch(kind, payload)
		}
		amount, err := positiveAmount(kind, s.Amount)
		if err != nil {
			return nil, err
		}
		if err := checkDestination(kind, s.Destination); err != nil {
			return nil, err
		}
		if s.Token == "" {
			return nil, malformed(kind, "token missing")
		}
		if s.Time <= 0 {
			return nil, malformed(kind, "time missing")
		}
		return &SpotSendAction{
			Type:             kind,
			SignatureChainID: SignatureChainID,
			HyperliquidChain: chain,
			Destination:      s.Destination,
			Token:            s.Token,
			Amount:           amount,
			Time:             s.Time,
		}, nil

	case KindWithdraw:
		w, ok := payload.(Withdraw)
		if !ok {
			return nil, mismatch(kind, payload)
		}
		amount, err := positiveAmount(kind, w.Amount)
		if err != nil {
			return nil, err
		}
		if err := checkDestination(kind, w.Destination); err != nil {
			return nil, err
		}
		if w.Time <= 0 {
			return nil, malformed(kind, "time missing")
		}
		return &WithdrawAction{
			Type:             kind,
			SignatureChainID: SignatureChainID,
			HyperliquidChain: chain,
			Destination:      w.Destination,
			Amount:           amount,
			Time:             w.Time,
		}, nil

	case KindUsdClassTransfer:
		t, ok := payload.(UsdClassTransfer)
		if !ok {
			return nil, mismatch(kind, payload)
		}
		amount, err := positiveAmount(kind, t.Amount)
		if err != nil {
			return nil, err
		}
		if t.Vault != "" {
			if !common.IsHexAddress(t.Vault) {
				return nil, malformed(kind, "invalid vault address %q", t.Vault)
			}
			amount += " subaccount:" + t.Vault
		}
		if t.Nonce <= 0 {
			return nil, malformed(kind, "nonce missing")
		}
		return &UsdClassTransferAction{
			Type:             kind,
			SignatureChainID: SignatureChainID,
			HyperliquidChain: chain,
			Amount:           amount,
			ToPerp:           t.ToPerp,
			Nonce:            t.Nonce,
		}, nil

	case KindApproveAgent:
		a, ok := payload.(ApproveAgent)
		if !ok {
			return nil, mismatch(kind, payload)
		}
		if !common.IsHexAddress(a.AgentAddress) {
			return nil, malformed(kind, "invalid agent address %q", a.AgentAddress)
		}
		if a.Nonce <= 0 {
			return nil, malformed(kind, "nonce missing")
		}
		return &ApproveAgentAction{
			Type:             kind,
			SignatureChainID: SignatureChainID,
			HyperliquidChain: chain,
			AgentAddress:     a.AgentAddress,
			AgentName:        a.AgentName,
			Nonce:            a.Nonce,
		}, nil

	case KindApproveBuilderFee:
		a, ok := payload.(ApproveBuilderFee)
		if !ok {
			return nil, mismatch(kind, payload)
		}
		if !common.IsHexAddress(a.Builder) {
			return nil, malformed(kind, "invalid builder address %q", a.Builder)
		}
		if a.MaxFeeRate == "" {
			return nil, malformed(kind, "max fee rate missing")
		}
		if a.Nonce <= 0 {
			return nil, malformed(kind, "nonce missing")
		}
		return &ApproveBuilderFeeAction{
			Type:             kind,
			SignatureChainID: SignatureChainID,
			HyperliquidChain: chain,
			MaxFeeRate:       a.MaxFeeRate,
			Builder:          a.Builder,
			Nonce:            a.Nonce,
		}, nil
	}
	return nil, malformed(kind, "unknown action type")
}

func mismatch(kind Kind, payload any) error {
	return malformed(kind, "unexpected payload type %T", payload)
}

func positiveAmount(kind Kind, d decimal.Decimal) (string, error) {
	if !d.IsPositive() {
		return "", malformed(kind, "amount must be positive, got %s", d.String())
	}
	return d.String(), nil
}

func checkDestination(kind Kind, dst string) error {
	if !common.IsHexAddress(dst) {
		return malformed(kind, "invalid destination %q", dst)
	}
	return nil
}

func uintString(n int64) string {
	return strconv.FormatInt(n, 10)
}
