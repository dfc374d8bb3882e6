package exchange

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/hlclient/pkg/crypto"
	"github.com/uhyunpark/hlclient/pkg/transport"
	"github.com/uhyunpark/hlclient/pkg/venueerr"
	"github.com/uhyunpark/hlclient/pkg/wire"
)

// UpdateLeverage sets cross or isolated leverage for symbol.
func (e *Exchange) UpdateLeverage(ctx context.Context, symbol string, leverage int, isCross bool) (*transport.Result, error) {
	info, err := e.assets.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}
	action, err := e.encoder.EncodeAction(wire.KindUpdateLeverage, wire.LeverageUpdate{
		Asset:    info.Index,
		IsCross:  isCross,
		Leverage: leverage,
	})
	if err != nil {
		return nil, err
	}
	return e.postL1(ctx, action, 1, true)
}

// UpdateIsolatedMargin adds (positive amount) or removes (negative) USD
// margin from an isolated position.
func (e *Exchange) UpdateIsolatedMargin(ctx context.Context, symbol string, amount decimal.Decimal) (*transport.Result, error) {
	info, err := e.assets.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}
	action, err := e.encoder.EncodeAction(wire.KindUpdateIsolatedMargin, wire.IsolatedMarginUpdate{
		Asset:  info.Index,
		Amount: amount,
	})
	if err != nil {
		return nil, err
	}
	return e.postL1(ctx, action, 1, true)
}

// UsdTransfer sends USD from the perp balance to another address.
func (e *Exchange) UsdTransfer(ctx context.Context, destination string, amount decimal.Decimal) (*transport.Result, error) {
	return e.userAction(ctx, wire.KindUsdSend, func(nonce int64) any {
		return wire.UsdSend{Destination: destination, Amount: amount, Time: nonce}
	})
}

// SpotTransfer sends a spot token ("NAME:0xTOKENID") to another address.
func (e *Exchange) SpotTransfer(ctx context.Context, destination, token string, amount decimal.Decimal) (*transport.Result, error) {
	return e.userAction(ctx, wire.KindSpotSend, func(nonce int64) any {
		return wire.SpotSend{Destination: destination, Token: token, Amount: amount, Time: nonce}
	})
}

// Withdraw bridges USD out of the venue to destination.
func (e *Exchange) Withdraw(ctx context.Context, destination string, amount decimal.Decimal) (*transport.Result, error) {
	return e.userAction(ctx, wire.KindWithdraw, func(nonce int64) any {
		return wire.Withdraw{Destination: destination, Amount: amount, Time: nonce}
	})
}

// UsdClassTransfer moves USD between the spot and perp balances. With a
// vault configured it moves the vault's funds.
func (e *Exchange) UsdClassTransfer(ctx context.Context, amount decimal.Decimal, toPerp bool) (*transport.Result, error) {
	var vault string
	if e.vault != nil {
		vault = strings.ToLower(e.vault.Hex())
	}
	return e.userAction(ctx, wire.KindUsdClassTransfer, func(nonce int64) any {
		return wire.UsdClassTransfer{Amount: amount, ToPerp: toPerp, Vault: vault, Nonce: nonce}
	})
}

// VaultTransfer deposits into or withdraws from a vault. The action names
// the vault itself, so it is never signed on a vault's behalf.
func (e *Exchange) VaultTransfer(ctx context.Context, vault string, isDeposit bool, usd decimal.Decimal) (*transport.Result, error) {
	action, err := e.encoder.EncodeAction(wire.KindVaultTransfer, wire.VaultTransfer{
		Vault:     vault,
		IsDeposit: isDeposit,
		Usd:       usd,
	})
	if err != nil {
		return nil, err
	}
	return e.postL1(ctx, action, 1, false)
}

// SetReferrer registers a referral code for the signing account.
func (e *Exchange) SetReferrer(ctx context.Context, code string) (*transport.Result, error) {
	action, err := e.encoder.EncodeAction(wire.KindSetReferrer, wire.SetReferrer{Code: code})
	if err != nil {
		return nil, err
	}
	return e.postL1(ctx, action, 1, false)
}

// ApproveAgent creates a fresh agent key and authorizes it to trade for the
// account. The caller owns the returned key. It is returned alongside any
// error once generated: after an IndeterminateOutcomeError the venue may
// already have approved the agent, and the key is the only way to use or
// retire it.
func (e *Exchange) ApproveAgent(ctx context.Context, name string) (*transport.Result, *crypto.Signer, error) {
	agent, err := crypto.GenerateKey()
	if err != nil {
		return nil, nil, &venueerr.SigningError{Action: string(wire.KindApproveAgent), Err: err}
	}
	res, err := e.userAction(ctx, wire.KindApproveAgent, func(nonce int64) any {
		return wire.ApproveAgent{AgentAddress: agent.Address().Hex(), AgentName: name, Nonce: nonce}
	})
	return res, agent, err
}

// ApproveBuilderFee allows builder to charge up to maxFeeRate (e.g. "0.01%").
func (e *Exchange) ApproveBuilderFee(ctx context.Context, builder, maxFeeRate string) (*transport.Result, error) {
	return e.userAction(ctx, wire.KindApproveBuilderFee, func(nonce int64) any {
		return wire.ApproveBuilderFee{Builder: builder, MaxFeeRate: maxFeeRate, Nonce: nonce}
	})
}

// userAction draws a nonce, builds the payload around it and sends the
// resulting user-signed action.
func (e *Exchange) userAction(ctx context.Context, kind wire.Kind, build func(nonce int64) any) (*transport.Result, error) {
	action, err := e.encoder.EncodeAction(kind, build(e.nonces.Next()))
	if err != nil {
		return nil, err
	}
	ua, ok := action.(wire.UserSignedAction)
	if !ok {
		return nil, &venueerr.SigningError{Action: string(kind), Err: errNotUserSigned}
	}
	return e.postUser(ctx, ua)
}
