package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address is a lowercase 0x-prefixed 20-byte account address
type Address string

// ZeroAddress marks "no winner" in a game record
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// ParseAddress validates and normalizes an address
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if len(s) != 42 || !(strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	if _, err := hex.DecodeString(s[2:]); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return Address("0x" + strings.ToLower(s[2:])), nil
}

func (a Address) String() string {
	return string(a)
}

// IsZero reports whether a is empty or the zero address
func (a Address) IsZero() bool {
	return a == "" || a == ZeroAddress
}
