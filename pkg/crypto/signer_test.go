package crypto

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	eth_crypto "github.com/ethereum/go-ethereum/crypto"
)

const testKeyHex = "0x0123456789012345678901234567890123456789012345678901234567890123"

func TestGenerateKey(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	if signer.Address() == (common.Address{}) {
		t.Error("generated zero address")
	}

	// Check private key hex is 64 chars (32 bytes)
	privHex := signer.PrivateKeyHex()
	if len(privHex) != 64 {
		t.Errorf("private key hex length = %d, want 64", len(privHex))
	}
}

func TestFromPrivateKeyHex(t *testing.T) {
	signer1, _ := GenerateKey()
	privHex := signer1.PrivateKeyHex()
	expectedAddr := signer1.Address()

	for _, in := range []string{privHex, "0x" + privHex} {
		signer2, err := FromPrivateKeyHex(in)
		if err != nil {
			t.Fatalf("failed to load key %q: %v", in, err)
		}
		if signer2.Address() != expectedAddr {
			t.Errorf("address = %s, want %s", signer2.Address().Hex(), expectedAddr.Hex())
		}
	}
}

func TestFromPrivateKeyHexInvalid(t *testing.T) {
	for _, in := range []string{"", "0x", "zz", "0x1234"} {
		if _, err := FromPrivateKeyHex(in); err == nil {
			t.Errorf("FromPrivateKeyHex(%q) succeeded, want error", in)
		}
	}
}

func TestSignatureRoundTrip(t *testing.T) {
	signer, _ := FromPrivateKeyHex(testKeyHex)
	hash := eth_crypto.Keccak256([]byte("round trip"))

	raw, err := signer.sign(hash)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	sig, err := signatureFromBytes(raw)
	if err != nil {
		t.Fatalf("failed to split signature: %v", err)
	}
	if sig.V != 27 && sig.V != 28 {
		t.Errorf("v = %d, want 27 or 28", sig.V)
	}

	back, err := sig.Bytes()
	if err != nil {
		t.Fatalf("failed to reassemble signature: %v", err)
	}
	for i := range raw {
		if back[i] != raw[i] {
			t.Fatalf("byte %d mismatch: got %d, want %d", i, back[i], raw[i])
		}
	}

	recovered, err := RecoverAddress(hash, back)
	if err != nil {
		t.Fatalf("failed to recover address: %v", err)
	}
	if recovered != signer.Address() {
		t.Errorf("recovered address = %s, want %s", recovered.Hex(), signer.Address().Hex())
	}
}

func TestSignatureBytesRejectsBadV(t *testing.T) {
	sig := Signature{R: "0x1", S: "0x1", V: 3}
	if _, err := sig.Bytes(); err == nil {
		t.Error("v=3 should be rejected")
	}
}

func TestSignRejectsBadInput(t *testing.T) {
	signer, _ := GenerateKey()
	if _, err := signer.sign([]byte("short")); err == nil {
		t.Error("short hash should not sign")
	}

	var nilSigner *Signer
	if _, err := nilSigner.sign(make([]byte, 32)); err == nil {
		t.Error("nil signer should not sign")
	}
}

func TestRecoverAddressInvalid(t *testing.T) {
	hash := common.BytesToHash([]byte("test")).Bytes()

	if _, err := RecoverAddress(hash, []byte{1, 2, 3}); err == nil {
		t.Error("invalid signature length should not recover")
	}
	if _, err := RecoverAddress([]byte("short"), make([]byte, 65)); err == nil {
		t.Error("invalid hash length should not recover")
	}
}
