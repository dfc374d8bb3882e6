package wire

import (
	"github.com/shopspring/decimal"
)

// Network selects the chain context actions are encoded and signed for.
// The zero value is deliberately invalid.
type Network int

const (
	Mainnet Network = iota + 1
	Testnet
)

// SignatureChainID is the chain id embedded in user-signed actions.
const SignatureChainID = "0x66eee"

func (n Network) Valid() bool { return n == Mainnet || n == Testnet }

// ChainName is the human-readable chain tag used by user-signed actions.
func (n Network) ChainName() string {
	switch n {
	case Mainnet:
		return "Mainnet"
	case Testnet:
		return "Testnet"
	default:
		return ""
	}
}

func (n Network) String() string {
	if name := n.ChainName(); name != "" {
		return name
	}
	return "unset"
}

// Tif is an order's time-in-force.
type Tif string

const (
	TifAlo Tif = "Alo" // add liquidity only (post-only)
	TifIoc Tif = "Ioc"
	TifGtc Tif = "Gtc"
)

func (t Tif) Valid() bool { return t == TifAlo || t == TifIoc || t == TifGtc }

// TpSl marks a trigger order as take-profit or stop-loss.
type TpSl string

const (
	TakeProfit TpSl = "tp"
	StopLoss   TpSl = "sl"
)

// Grouping tells the venue how orders submitted together relate.
type Grouping string

const (
	GroupingNA           Grouping = "na"
	GroupingNormalTpSl   Grouping = "normalTpsl"
	GroupingPositionTpSl Grouping = "positionTpsl"
)

func (g Grouping) Valid() bool {
	return g == GroupingNA || g == GroupingNormalTpSl || g == GroupingPositionTpSl
}

type LimitOrderType struct {
	Tif Tif
}

type TriggerOrderType struct {
	TriggerPx decimal.Decimal
	IsMarket  bool
	TpSl      TpSl
}

// OrderType holds exactly one of Limit or Trigger.
type OrderType struct {
	Limit   *LimitOrderType
	Trigger *TriggerOrderType
}

// Limit returns a limit order type with the given time-in-force.
func Limit(tif Tif) OrderType {
	return OrderType{Limit: &LimitOrderType{Tif: tif}}
}

// Trigger returns a trigger order type.
func Trigger(triggerPx decimal.Decimal, isMarket bool, tpsl TpSl) OrderType {
	return OrderType{Trigger: &TriggerOrderType{TriggerPx: triggerPx, IsMarket: isMarket, TpSl: tpsl}}
}

// Order is a caller's order intent, keyed by symbol.
type Order struct {
	Symbol     string
	IsBuy      bool
	LimitPx    decimal.Decimal
	Size       decimal.Decimal
	ReduceOnly bool
	OrderType  OrderType
	Cloid      *Cloid
}

// Builder describes a third-party builder fee. Fee is in tenths of a basis
// point.
type Builder struct {
	Address string
	Fee     int
}

// OrderRef points at an existing order by venue id or client id.
type OrderRef struct {
	Oid   int64
	Cloid *Cloid
}

// ByOid references an order by its venue-assigned id.
func ByOid(oid int64) OrderRef { return OrderRef{Oid: oid} }

// ByCloid references an order by its client order id.
func ByCloid(c Cloid) OrderRef { return OrderRef{Cloid: &c} }

func (r OrderRef) wire() any {
	if r.Cloid != nil {
		return r.Cloid.String()
	}
	return r.Oid
}

// Cancel targets one resting order by venue id.
type Cancel struct {
	Asset int
	Oid   int64
}

// CancelByCloid targets one resting order by client order id.
type CancelByCloid struct {
	Asset int
	Cloid Cloid
}

// Modify replaces the order referenced by Ref with Order.
type Modify struct {
	Ref   OrderRef
	Asset int
	Order Order
}

type ScheduleCancel struct {
	// Time is the unix-ms deadline; nil clears any scheduled cancel.
	Time *int64
}

type LeverageUpdate struct {
	Asset    int
	IsCross  bool
	Leverage int
}

// IsolatedMarginUpdate adds (positive) or removes (negative) USD margin.
type IsolatedMarginUpdate struct {
	Asset  int
	Amount decimal.Decimal
}

type VaultTransfer struct {
	Vault     string
	IsDeposit bool
	Usd       decimal.Decimal
}

type SetReferrer struct {
	Code string
}

type UsdSend struct {
	Destination string
	Amount      decimal.Decimal
	Time        int64
}

type SpotSend struct {
	Destination string
	// Token is "<name>:<tokenId>".
	Token  string
	Amount decimal.Decimal
	Time   int64
}

type Withdraw struct {
	Destination string
	Amount      decimal.Decimal
	Time        int64
}

// UsdClassTransfer moves USD between the spot and perp ledgers. A non-empty
// Vault moves funds of that sub-account.
type UsdClassTransfer struct {
	Amount decimal.Decimal
	ToPerp bool
	Vault  string
	Nonce  int64
}

type ApproveAgent struct {
	AgentAddress string
	AgentName    string
	Nonce        int64
}

type ApproveBuilderFee struct {
	Builder    string
	MaxFeeRate string
	Nonce      int64
}
