package wire

// Field order in every struct below is the venue's canonical order. The
// msgpack encoding of these structs is what venue-action signatures commit
// to, so reordering a field changes the hash.

// Kind is the action's "type" tag.
type Kind string

const (
	KindOrder                Kind = "order"
	KindCancel               Kind = "cancel"
	KindCancelByCloid        Kind = "cancelByCloid"
	KindModify               Kind = "modify"
	KindBatchModify          Kind = "batchModify"
	KindScheduleCancel       Kind = "scheduleCancel"
	KindUpdateLeverage       Kind = "updateLeverage"
	KindUpdateIsolatedMargin Kind = "updateIsolatedMargin"
	KindUsdSend              Kind = "usdSend"
	KindSpotSend             Kind = "spotSend"
	KindWithdraw             Kind = "withdraw3"
	KindUsdClassTransfer     Kind = "usdClassTransfer"
	KindVaultTransfer        Kind = "vaultTransfer"
	KindSetReferrer          Kind = "setReferrer"
	KindApproveAgent         Kind = "approveAgent"
	KindApproveBuilderFee    Kind = "approveBuilderFee"
)

// Action is any encoded action body.
type Action interface {
	Kind() Kind
}

// Field is one entry of a user-signed action's typed-data schema.
type Field struct {
	Name string
	Type string
}

// UserSignedAction is an action authorized by the account owner with an
// explicit typed-data schema instead of the venue-action hash.
type UserSignedAction interface {
	Action
	PrimaryType() string
	SignatureTypes() []Field
	// SignatureMessage holds exactly the fields named by SignatureTypes.
	SignatureMessage() map[string]any
	// SigningNonce is the nonce committed to by the message.
	SigningNonce() int64
}

type LimitWire struct {
	Tif Tif `json:"tif" msgpack:"tif"`
}

type TriggerWire struct {
	IsMarket  bool   `json:"isMarket" msgpack:"isMarket"`
	TriggerPx string `json:"triggerPx" msgpack:"triggerPx"`
	TpSl      TpSl   `json:"tpsl" msgpack:"tpsl"`
}

type OrderTypeWire struct {
	Limit   *LimitWire   `json:"limit,omitempty" msgpack:"limit,omitempty"`
	Trigger *TriggerWire `json:"trigger,omitempty" msgpack:"trigger,omitempty"`
}

// OrderWire is the canonical serialized form of an Order.
type OrderWire struct {
	Asset      int           `json:"a" msgpack:"a"`
	IsBuy      bool          `json:"b" msgpack:"b"`
	LimitPx    string        `json:"p" msgpack:"p"`
	Size       string        `json:"s" msgpack:"s"`
	ReduceOnly bool          `json:"r" msgpack:"r"`
	OrderType  OrderTypeWire `json:"t" msgpack:"t"`
	Cloid      string        `json:"c,omitempty" msgpack:"c,omitempty"`
}

type BuilderWire struct {
	Address string `json:"b" msgpack:"b"`
	Fee     int    `json:"f" msgpack:"f"`
}

type OrderAction struct {
	Type     Kind         `json:"type" msgpack:"type"`
	Orders   []OrderWire  `json:"orders" msgpack:"orders"`
	Grouping Grouping     `json:"grouping" msgpack:"grouping"`
	Builder  *BuilderWire `json:"builder,omitempty" msgpack:"builder,omitempty"`
}

func (a *OrderAction) Kind() Kind { return a.Type }

type CancelWire struct {
	Asset int   `json:"a" msgpack:"a"`
	Oid   int64 `json:"o" msgpack:"o"`
}

type CancelAction struct {
	Type    Kind         `json:"type" msgpack:"type"`
	Cancels []CancelWire `json:"cancels" msgpack:"cancels"`
}

func (a *CancelAction) Kind() Kind { return a.Type }

type CancelByCloidWire struct {
	Asset int    `json:"asset" msgpack:"asset"`
	Cloid string `json:"cloid" msgpack:"cloid"`
}

type CancelByCloidAction struct {
	Type    Kind                `json:"type" msgpack:"type"`
	Cancels []CancelByCloidWire `json:"cancels" msgpack:"cancels"`
}

func (a *CancelByCloidAction) Kind() Kind { return a.Type }

// ModifyAction replaces a single order. Oid is an int64 venue id or a cloid
// string.
type ModifyAction struct {
	Type  Kind      `json:"type" msgpack:"type"`
	Oid   any       `json:"oid" msgpack:"oid"`
	Order OrderWire `json:"order" msgpack:"order"`
}

func (a *ModifyAction) Kind() Kind { return a.Type }

type ModifyWire struct {
	Oid   any       `json:"oid" msgpack:"oid"`
	Order OrderWire `json:"order" msgpack:"order"`
}

type BatchModifyAction struct {
	Type     Kind         `json:"type" msgpack:"type"`
	Modifies []ModifyWire `json:"modifies" msgpack:"modifies"`
}

func (a *BatchModifyAction) Kind() Kind { return a.Type }

type ScheduleCancelAction struct {
	Type Kind   `json:"type" msgpack:"type"`
	Time *int64 `json:"time,omitempty" msgpack:"time,omitempty"`
}

func (a *ScheduleCancelAction) Kind() Kind { return a.Type }

type UpdateLeverageAction struct {
	Type     Kind `json:"type" msgpack:"type"`
	Asset    int  `json:"asset" msgpack:"asset"`
	IsCross  bool `json:"isCross" msgpack:"isCross"`
	Leverage int  `json:"leverage" msgpack:"leverage"`
}

func (a *UpdateLeverageAction) Kind() Kind { return a.Type }

type UpdateIsolatedMarginAction struct {
	Type  Kind  `json:"type" msgpack:"type"`
	Asset int   `json:"asset" msgpack:"asset"`
	IsBuy bool  `json:"isBuy" msgpack:"isBuy"`
	Ntli  int64 `json:"ntli" msgpack:"ntli"`
}

func (a *UpdateIsolatedMarginAction) Kind() Kind { return a.Type }

type VaultTransferAction struct {
	Type         Kind   `json:"type" msgpack:"type"`
	VaultAddress string `json:"vaultAddress" msgpack:"vaultAddress"`
	IsDeposit    bool   `json:"isDeposit" msgpack:"isDeposit"`
	Usd          int64  `json:"usd" msgpack:"usd"`
}

func (a *VaultTransferAction) Kind() Kind { return a.Type }

type SetReferrerAction struct {
	Type Kind   `json:"type" msgpack:"type"`
	Code string `json:"code" msgpack:"code"`
}

func (a *SetReferrerAction) Kind() Kind { return a.Type }

// User-signed actions. These are never msgpack-hashed; the JSON form is what
// the venue re-derives the typed-data message from.

type UsdSendAction struct {
	Type             Kind   `json:"type"`
	SignatureChainID string `json:"signatureChainId"`
	HyperliquidChain string `json:"hyperliquidChain"`
	Destination      string `json:"destination"`
	Amount           string `json:"amount"`
	Time             int64  `json:"time"`
}

func (a *UsdSendAction) Kind() Kind          { return a.Type }
func (a *UsdSendAction) PrimaryType() string { return "HyperliquidTransaction:UsdSend" }
func (a *UsdSendAction) SigningNonce() int64 { return a.Time }

func (a *UsdSendAction) SignatureTypes() []Field {
	return []Field{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "destination", Type: "string"},
		{Name: "amount", Type: "string"},
		{Name: "time", Type: "uint64"},
	}
}

func (a *UsdSendAction) SignatureMessage() map[string]any {
	return map[string]any{
		"hyperliquidChain": a.HyperliquidChain,
		"destination":      a.Destination,
		"amount":           a.Amount,
		"time":             uintString(a.Time),
	}
}

type SpotSendAction struct {
	Type             Kind   `json:"type"`
	SignatureChainID string `json:"signatureChainId"`
	HyperliquidChain string `json:"hyperliquidChain"`
	Destination      string `json:"destination"`
	Token            string `json:"token"`
	Amount           string `json:"amount"`
	Time             int64  `json:"time"`
}

func (a *SpotSendAction) Kind() Kind          { return a.Type }
func (a *SpotSendAction) PrimaryType() string { return "HyperliquidTransaction:SpotSend" }
func (a *SpotSendAction) SigningNonce() int64 { return a.Time }

func (a *SpotSendAction) SignatureTypes() []Field {
	return []Field{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "destination", Type: "string"},
		{Name: "token", Type: "string"},
		{Name: "amount", Type: "string"},
		{Name: "time", Type: "uint64"},
	}
}

func (a *SpotSendAction) SignatureMessage() map[string]any {
	return map[string]any{
		"hyperliquidChain": a.HyperliquidChain,
		"destination":      a.Destination,
		"token":            a.Token,
		"amount":           a.Amount,
		"time":             uintString(a.Time),
	}
}

type WithdrawAction struct {
	Type             Kind   `json:"type"`
	SignatureChainID string `json:"signatureChainId"`
	HyperliquidChain string `json:"hyperliquidChain"`
	Destination      string `json:"destination"`
	Amount           string `json:"amount"`
	Time             int64  `json:"time"`
}

func (a *WithdrawAction) Kind() Kind          { return a.Type }
func (a *WithdrawAction) PrimaryType() string { return "HyperliquidTransaction:Withdraw" }
func (a *WithdrawAction) SigningNonce() int64 { return a.Time }

func (a *WithdrawAction) SignatureTypes() []Field {
	return []Field{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "destination", Type: "string"},
		{Name: "amount", Type: "string"},
		{Name: "time", Type: "uint64"},
	}
}

func (a *WithdrawAction) SignatureMessage() map[string]any {
	return map[string]any{
		"hyperliquidChain": a.HyperliquidChain,
		"destination":      a.Destination,
		"amount":           a.Amount,
		"time":             uintString(a.Time),
	}
}

type UsdClassTransferAction struct {
	Type             Kind   `json:"type"`
	SignatureChainID string `json:"signatureChainId"`
	HyperliquidChain string `json:"hyperliquidChain"`
	Amount           string `json:"amount"`
	ToPerp           bool   `json:"toPerp"`
	Nonce            int64  `json:"nonce"`
}

func (a *UsdClassTransferAction) Kind() Kind          { return a.Type }
func (a *UsdClassTransferAction) PrimaryType() string { return "HyperliquidTransaction:UsdClassTransfer" }
func (a *UsdClassTransferAction) SigningNonce() int64 { return a.Nonce }

func (a *UsdClassTransferAction) SignatureTypes() []Field {
	return []Field{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "amount", Type: "string"},
		{Name: "toPerp", Type: "bool"},
		{Name: "nonce", Type: "uint64"},
	}
}

func (a *UsdClassTransferAction) SignatureMessage() map[string]any {
	return map[string]any{
		"hyperliquidChain": a.HyperliquidChain,
		"amount":           a.Amount,
		"toPerp":           a.ToPerp,
		"nonce":            uintString(a.Nonce),
	}
}

// ApproveAgentAction authorizes AgentAddress to sign venue actions on the
// account's behalf. An unnamed agent is signed with an empty name and sent
// without the field.
type ApproveAgentAction struct {
	Type             Kind   `json:"type"`
	SignatureChainID string `json:"signatureChainId"`
	HyperliquidChain string `json:"hyperliquidChain"`
	AgentAddress     string `json:"agentAddress"`
	AgentName        string `json:"agentName,omitempty"`
	Nonce            int64  `json:"nonce"`
}

func (a *ApproveAgentAction) Kind() Kind          { return a.Type }
func (a *ApproveAgentAction) PrimaryType() string { return "HyperliquidTransaction:ApproveAgent" }
func (a *ApproveAgentAction) SigningNonce() int64 { return a.Nonce }

func (a *ApproveAgentAction) SignatureTypes() []Field {
	return []Field{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "agentAddress", Type: "address"},
		{Name: "agentName", Type: "string"},
		{Name: "nonce", Type: "uint64"},
	}
}

func (a *ApproveAgentAction) SignatureMessage() map[string]any {
	return map[string]any{
		"hyperliquidChain": a.HyperliquidChain,
		"agentAddress":     a.AgentAddress,
		"agentName":        a.AgentName,
		"nonce":            uintString(a.Nonce),
	}
}

type ApproveBuilderFeeAction struct {
	Type             Kind   `json:"type"`
	SignatureChainID string `json:"signatureChainId"`
	HyperliquidChain string `json:"hyperliquidChain"`
	MaxFeeRate       string `json:"maxFeeRate"`
	Builder          string `json:"builder"`
	Nonce            int64  `json:"nonce"`
}

func (a *ApproveBuilderFeeAction) Kind() Kind          { return a.Type }
func (a *ApproveBuilderFeeAction) PrimaryType() string { return "HyperliquidTransaction:ApproveBuilderFee" }
func (a *ApproveBuilderFeeAction) SigningNonce() int64 { return a.Nonce }

func (a *ApproveBuilderFeeAction) SignatureTypes() []Field {
	return []Field{
		{Name: "hyperliquidChain", Type: "string"},
		{Name: "maxFeeRate", Type: "string"},
		{Name: "builder", Type: "address"},
		{Name: "nonce", Type: "uint64"},
	}
}

func (a *ApproveBuilderFeeAction) SignatureMessage() map[string]any {
	return map[string]any{
		"hyperliquidChain": a.HyperliquidChain,
		"maxFeeRate":       a.MaxFeeRate,
		"builder":          a.Builder,
		"nonce":            uintString(a.Nonce),
	}
}
