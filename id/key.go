package id

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"

	"github.com/google/uuid"
)

// Key is a 128-bit caller-chosen record identifier. Small numeric keys are
// common (listing 7), so a Key prints as a decimal integer when its high 64
// bits are zero and as a canonical UUID otherwise. ParseKey reads decimal
// input across the whole 128-bit range.
type Key uuid.UUID

// NewKey returns a random Key.
func NewKey() Key { return Key(uuid.New()) }

// KeyFromUint64 returns the Key whose low 64 bits are v.
func KeyFromUint64(v uint64) Key {
	var k Key
	binary.BigEndian.PutUint64(k[8:], v)
	return k
}

// hexLen is the length of the bare hex form. A string of exactly this many
// digits is read as hex, never as decimal.
const hexLen = 32

// ParseKey accepts a decimal integer below 2^128, a UUID, or 32 hex digits.
func ParseKey(s string) (Key, error) {
	if s == "" {
		return Key{}, fmt.Errorf("id: parse key: empty string")
	}
	if len(s) != hexLen && isDecimal(s) {
		return parseDecimal(s)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return Key{}, fmt.Errorf("id: parse key %q: %w", s, err)
	}
	return Key(u), nil
}

func isDecimal(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func parseDecimal(s string) (Key, error) {
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return KeyFromUint64(n), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.BitLen() > 128 {
		return Key{}, fmt.Errorf("id: parse key %q: decimal out of 128-bit range", s)
	}
	var k Key
	n.FillBytes(k[:])
	return k, nil
}

// Uint64 returns the low 64 bits and whether the high bits are zero.
func (k Key) Uint64() (uint64, bool) {
	return binary.BigEndian.Uint64(k[8:]), binary.BigEndian.Uint64(k[:8]) == 0
}

// String implements fmt.Stringer.
func (k Key) String() string {
	if n, ok := k.Uint64(); ok {
		return strconv.FormatUint(n, 10)
	}
	return uuid.UUID(k).String()
}

// Hex returns 32 lowercase hex digits; storage keys use this form.
func (k Key) Hex() string { return hex.EncodeToString(k[:]) }

// MarshalText implements encoding.TextMarshaler.
func (k Key) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Key) UnmarshalText(data []byte) error {
	parsed, err := ParseKey(string(data))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
