package crypto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/uhyunpark/hlclient/pkg/venueerr"
	"github.com/uhyunpark/hlclient/pkg/wire"
)

// EIP712Domain represents the domain separator for EIP-712 typed data
// This prevents replay attacks across different chains/contracts
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// ExchangeDomain is the domain of venue-action (phantom agent) signatures.
// It is the same on every network; the network is carried by the agent's
// source field instead.
func ExchangeDomain() EIP712Domain {
	return EIP712Domain{
		Name:    "Exchange",
		Version: "1",
		ChainID: big.NewInt(1337),
	}
}

// UserDomain is the domain of user-signed transfer and approval actions.
func UserDomain() EIP712Domain {
	chainID, _ := new(big.Int).SetString(wire.SignatureChainID[2:], 16)
	return EIP712Domain{
		Name:    "HyperliquidSignTransaction",
		Version: "1",
		ChainID: chainID,
	}
}

var domainTypes = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

var agentTypes = []apitypes.Type{
	{Name: "source", Type: "string"},
	{Name: "connectionId", Type: "bytes32"},
}

// L1Params are the envelope fields a venue-action signature commits to
// besides the action itself.
type L1Params struct {
	Nonce        int64
	Vault        *common.Address
	ExpiresAfter *int64
}

// ActionSigner signs actions for one network. Venue actions are signed via a
// phantom agent over the action hash; user-signed actions are signed over
// their explicit typed-data schema.
type ActionSigner struct {
	network wire.Network
}

// NewActionSigner creates a signer bound to network.
func NewActionSigner(network wire.Network) *ActionSigner {
	return &ActionSigner{network: network}
}

func (a *ActionSigner) Network() wire.Network { return a.network }

// ActionHash is keccak256(msgpack(action) || nonce || vault || expiry).
//
// nonce is 8 bytes big-endian; vault is 0x00 when absent, else 0x01 followed
// by the 20 address bytes; expiry, when present, is 0x00 followed by 8 bytes
// big-endian.
func ActionHash(action wire.Action, p L1Params) (common.Hash, error) {
	packed, err := PackAction(action)
	if err != nil {
		return common.Hash{}, err
	}
	buf := bytes.NewBuffer(packed)

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(p.Nonce))
	buf.Write(n[:])

	if p.Vault == nil {
		buf.WriteByte(0x00)
	} else {
		buf.WriteByte(0x01)
		buf.Write(p.Vault.Bytes())
	}

	if p.ExpiresAfter != nil {
		buf.WriteByte(0x00)
		binary.BigEndian.PutUint64(n[:], uint64(*p.ExpiresAfter))
		buf.Write(n[:])
	}
	return crypto.Keccak256Hash(buf.Bytes()), nil
}

// PackAction msgpack-encodes an action with struct fields in declaration
// order and integers in their smallest encoding.
func PackAction(action wire.Action) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(action); err != nil {
		return nil, fmt.Errorf("failed to pack action: %w", err)
	}
	return buf.Bytes(), nil
}

// agentSource tags the phantom agent with the network; mainnet is "a".
func (a *ActionSigner) agentSource() (string, error) {
	switch a.network {
	case wire.Mainnet:
		return "a", nil
	case wire.Testnet:
		return "b", nil
	default:
		return "", fmt.Errorf("network not set")
	}
}

// HashL1Action returns the EIP-712 digest signed for a venue action.
func (a *ActionSigner) HashL1Action(action wire.Action, p L1Params) ([]byte, error) {
	if action == nil {
		return nil, fmt.Errorf("nil action")
	}
	if _, ok := action.(wire.UserSignedAction); ok {
		return nil, fmt.Errorf("%s is user-signed", action.Kind())
	}
	source, err := a.agentSource()
	if err != nil {
		return nil, err
	}
	connectionID, err := ActionHash(action, p)
	if err != nil {
		return nil, err
	}

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainTypes,
			"Agent":        agentTypes,
		},
		PrimaryType: "Agent",
		Domain:      typedDomain(ExchangeDomain()),
		Message: apitypes.TypedDataMessage{
			"source":       source,
			"connectionId": connectionID.Hex(),
		},
	}
	return hashTypedData(typedData)
}

// SignL1Action signs a venue action (orders, cancels, leverage, ...).
func (a *ActionSigner) SignL1Action(key *Signer, action wire.Action, p L1Params) (Signature, error) {
	if action == nil {
		return Signature{}, &venueerr.SigningError{Err: fmt.Errorf("nil action")}
	}
	if p.Nonce <= 0 {
		return Signature{}, &venueerr.SigningError{Action: string(action.Kind()), Err: fmt.Errorf("nonce must be positive, got %d", p.Nonce)}
	}
	hash, err := a.HashL1Action(action, p)
	if err != nil {
		return Signature{}, &venueerr.SigningError{Action: string(action.Kind()), Err: err}
	}
	return signDigest(key, action.Kind(), hash)
}

// HashUserAction returns the EIP-712 digest signed for a user-signed action.
func (a *ActionSigner) HashUserAction(action wire.UserSignedAction) ([]byte, error) {
	if !a.network.Valid() {
		return nil, fmt.Errorf("network not set")
	}
	msg := action.SignatureMessage()
	if chain, _ := msg["hyperliquidChain"].(string); chain != a.network.ChainName() {
		return nil, fmt.Errorf("action encoded for chain %q, signer is %s", chain, a.network)
	}

	fields := action.SignatureTypes()
	types := make([]apitypes.Type, len(fields))
	for i, f := range fields {
		types[i] = apitypes.Type{Name: f.Name, Type: f.Type}
	}

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain":       domainTypes,
			action.PrimaryType(): types,
		},
		PrimaryType: action.PrimaryType(),
		Domain:      typedDomain(UserDomain()),
		Message:     msg,
	}
	return hashTypedData(typedData)
}

// SignUserAction signs a transfer, withdrawal or approval.
func (a *ActionSigner) SignUserAction(key *Signer, action wire.UserSignedAction) (Signature, error) {
	if action == nil {
		return Signature{}, &venueerr.SigningError{Err: fmt.Errorf("nil action")}
	}
	hash, err := a.HashUserAction(action)
	if err != nil {
		return Signature{}, &venueerr.SigningError{Action: string(action.Kind()), Err: err}
	}
	return signDigest(key, action.Kind(), hash)
}

// RecoverL1Signer returns the address that produced sig over a venue action.
func (a *ActionSigner) RecoverL1Signer(action wire.Action, p L1Params, sig Signature) (common.Address, error) {
	hash, err := a.HashL1Action(action, p)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash action: %w", err)
	}
	return recoverSignature(hash, sig)
}

// RecoverUserSigner returns the address that produced sig over a user-signed
// action.
func (a *ActionSigner) RecoverUserSigner(action wire.UserSignedAction, sig Signature) (common.Address, error) {
	hash, err := a.HashUserAction(action)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash action: %w", err)
	}
	return recoverSignature(hash, sig)
}

func signDigest(key *Signer, kind wire.Kind, hash []byte) (Signature, error) {
	raw, err := key.sign(hash)
	if err != nil {
		return Signature{}, &venueerr.SigningError{Action: string(kind), Err: err}
	}
	sig, err := signatureFromBytes(raw)
	if err != nil {
		return Signature{}, &venueerr.SigningError{Action: string(kind), Err: err}
	}
	return sig, nil
}

func recoverSignature(hash []byte, sig Signature) (common.Address, error) {
	raw, err := sig.Bytes()
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(hash, raw)
}

func typedDomain(d EIP712Domain) apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              d.Name,
		Version:           d.Version,
		ChainId:           (*math.HexOrDecimal256)(d.ChainID),
		VerifyingContract: d.VerifyingContract.Hex(),
	}
}

func hashTypedData(typedData apitypes.TypedData) ([]byte, error) {
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	typedDataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	// Final digest: keccak256("\x19\x01" || domainSeparator || typedDataHash)
	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(typedDataHash)))
	return crypto.Keccak256Hash(rawData).Bytes(), nil
}
