package types

import (
	"fmt"
	"strings"
	"unicode"
)

// maxAddressLen bounds an address; strkeys are 56 characters, muxed 69.
const maxAddressLen = 128

// Address is an opaque principal: an account or contract identity. The only
// capability attached to it is whether the runtime considers it authorized
// for the current invocation.
type Address string

// ParseAddress trims and validates s.
func ParseAddress(s string) (Address, error) {
	a := Address(strings.TrimSpace(s))
	if err := a.Validate(); err != nil {
		return "", err
	}
	return a, nil
}

// Validate rejects empty addresses and characters reserved by the key space.
func (a Address) Validate() error {
	if a == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if len(a) > maxAddressLen {
		return fmt.Errorf("%w: longer than %d", ErrInvalidAddress, maxAddressLen)
	}
	for _, r := range string(a) {
		if r == '/' || unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return fmt.Errorf("%w: %q", ErrInvalidAddress, string(a))
		}
	}
	return nil
}

// IsZero reports whether a is the empty address.
func (a Address) IsZero() bool { return a == "" }

func (a Address) String() string { return string(a) }

// Ptr returns a pointer to a copy of a, for optional fields.
func (a Address) Ptr() *Address { return &a }
