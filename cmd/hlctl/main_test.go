package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSide(t *testing.T) {
	for _, s := range []string{"buy", "BUY", "b", "long"} {
		isBuy, err := parseSide(s)
		require.NoError(t, err, s)
		assert.True(t, isBuy, s)
	}
	for _, s := range []string{"sell", "Sell", "s", "short"} {
		isBuy, err := parseSide(s)
		require.NoError(t, err, s)
		assert.False(t, isBuy, s)
	}
	_, err := parseSide("hold")
	assert.Error(t, err)
}

func TestParseDecimal(t *testing.T) {
	d, err := parseDecimal("size", "1.50")
	require.NoError(t, err)
	assert.Equal(t, "1.5", d.String())

	_, err = parseDecimal("size", "abc")
	assert.ErrorContains(t, err, "invalid size")
}

func TestSignOrderOffline(t *testing.T) {
	t.Setenv("HL_PRIVATE_KEY", "0x0123456789012345678901234567890123456789012345678901234567890123")
	t.Setenv("HL_BASE_URL", "http://127.0.0.1:1")
	t.Setenv("LOG_LEVEL", "error")

	var stderr bytes.Buffer
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{
		"--env", filepath.Join(t.TempDir(), "none.env"),
		"sign-order", "--asset", "0", "--side", "buy", "--size", "1.5", "--price", "30000", "--nonce", "1700000000000",
	})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, stderr.String(), "signed for Testnet")
}

func TestSignOrderRejectsBadTif(t *testing.T) {
	t.Setenv("HL_PRIVATE_KEY", "0x0123456789012345678901234567890123456789012345678901234567890123")
	t.Setenv("LOG_LEVEL", "error")

	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{
		"--env", filepath.Join(t.TempDir(), "none.env"),
		"sign-order", "--side", "buy", "--size", "1", "--price", "1", "--tif", "Fok",
	})
	assert.Error(t, rootCmd.Execute())
}

func TestRootRejectsNetworkMismatch(t *testing.T) {
	t.Setenv("HL_PRIVATE_KEY", "0x0123456789012345678901234567890123456789012345678901234567890123")
	t.Setenv("HL_BASE_URL", "https://api.hyperliquid.xyz")
	t.Setenv("HL_MAINNET", "false")
	t.Setenv("LOG_LEVEL", "error")

	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{
		"--env", filepath.Join(t.TempDir(), "none.env"),
		"sign-order", "--asset", "0", "--side", "buy", "--size", "1", "--price", "1",
	})
	assert.ErrorContains(t, rootCmd.Execute(), "HL_MAINNET")
}
