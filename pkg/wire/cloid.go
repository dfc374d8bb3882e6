package wire

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Cloid is a 128-bit client order id, rendered as 0x-prefixed hex.
type Cloid [16]byte

// NewCloid returns a random client order id.
func NewCloid() Cloid {
	return Cloid(uuid.New())
}

// ParseCloid parses "0x" followed by 32 hex characters.
func ParseCloid(s string) (Cloid, error) {
	var c Cloid
	raw, ok := strings.CutPrefix(s, "0x")
	if !ok || len(raw) != 2*len(c) {
		return c, fmt.Errorf("cloid %q: want 0x followed by %d hex chars", s, 2*len(c))
	}
	if _, err := hex.Decode(c[:], []byte(raw)); err != nil {
		return c, fmt.Errorf("cloid %q: %w", s, err)
	}
	return c, nil
}

func (c Cloid) String() string {
	return "0x" + hex.EncodeToString(c[:])
}
