package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address is the fixed-width actor identifier used throughout the settlement
// engine. Callers are expected to have authenticated the actor before handing
// the address to any engine.
type Address = [20]byte

// ZeroAddress reports whether the supplied address is the all-zero value.
func ZeroAddress(addr Address) bool {
	var zero Address
	return addr == zero
}

// ParseAddress decodes a 40-character hex string (with or without the 0x
// prefix) into an Address.
func ParseAddress(s string) (Address, error) {
	var addr Address
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("invalid address %q: expected %d bytes, got %d", s, len(addr), len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// FormatAddress renders the address as a 0x-prefixed hex string.
func FormatAddress(addr Address) string {
	return "0x" + hex.EncodeToString(addr[:])
}
