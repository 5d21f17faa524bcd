// Package badge is a registry of unique, non-fungible badges. The registry
// owner mints badges under sequential token ids; holders may transfer or
// burn their own badges.
package badge

import (
	"fmt"
	"math"
	"strconv"

	"github.com/xraph/settle"
	"github.com/xraph/settle/event"
	"github.com/xraph/settle/host"
	"github.com/xraph/settle/types"
)

// Metadata describes the collection. A token's URI is BaseURI followed by
// its decimal id.
type Metadata struct {
	BaseURI string `json:"base_uri" yaml:"base_uri"`
	Name    string `json:"name" yaml:"name"`
	Symbol  string `json:"symbol" yaml:"symbol"`
}

// Registry is the badge contract deployed at Address.
type Registry struct {
	Address types.Address
}

// At returns the registry deployed at address.
func At(address types.Address) Registry { return Registry{Address: address} }

func (r Registry) ownerKey() host.Key    { return host.NewKey(r.Address, "owner") }
func (r Registry) metadataKey() host.Key { return host.NewKey(r.Address, "metadata") }
func (r Registry) nextKey() host.Key     { return host.NewKey(r.Address, "next") }
func (r Registry) supplyKey() host.Key   { return host.NewKey(r.Address, "supply") }

func (r Registry) tokenKey(tokenID uint32) host.Key {
	return host.NewKey(r.Address, "token", strconv.FormatUint(uint64(tokenID), 10))
}

func (r Registry) balanceKey(holder types.Address) host.Key {
	return host.NewKey(r.Address, "balance", holder.String())
}

// Init records the owner and collection metadata. It can run once per
// instance.
func (r Registry) Init(env *host.Env, owner types.Address, md Metadata) error {
	has, err := env.Has(r.ownerKey())
	if err != nil {
		return err
	}
	if has {
		return fmt.Errorf("%w: badge registry %s", settle.ErrAlreadyInitialized, r.Address)
	}
	if err := owner.Validate(); err != nil {
		return err
	}
	if err := env.RequireAuth(owner); err != nil {
		return err
	}
	if err := env.Set(r.ownerKey(), owner); err != nil {
		return err
	}
	return env.Set(r.metadataKey(), md)
}

// Owner returns the principal allowed to mint.
func (r Registry) Owner(env *host.Env) (types.Address, error) {
	var owner types.Address
	ok, err := env.Get(r.ownerKey(), &owner)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: badge registry %s", settle.ErrUninitialized, r.Address)
	}
	return owner, nil
}

func (r Registry) requireOwner(env *host.Env) error {
	owner, err := r.Owner(env)
	if err != nil {
		return err
	}
	return env.RequireAuth(owner)
}

// Metadata returns the collection metadata.
func (r Registry) Metadata(env *host.Env) (Metadata, error) {
	if _, err := r.Owner(env); err != nil {
		return Metadata{}, err
	}
	var md Metadata
	if _, err := env.Get(r.metadataKey(), &md); err != nil {
		return Metadata{}, err
	}
	return md, nil
}

// SetMetadata replaces the collection metadata.
func (r Registry) SetMetadata(env *host.Env, md Metadata) error {
	if err := r.requireOwner(env); err != nil {
		return err
	}
	return env.Set(r.metadataKey(), md)
}

// Mint issues the next badge to to and returns its token id.
func (r Registry) Mint(env *host.Env, to types.Address) (uint32, error) {
	if err := r.requireOwner(env); err != nil {
		return 0, err
	}
	if err := to.Validate(); err != nil {
		return 0, err
	}

	var next uint32
	if _, err := env.Get(r.nextKey(), &next); err != nil {
		return 0, err
	}
	if next == math.MaxUint32 {
		return 0, fmt.Errorf("%w: badge ids exhausted", settle.ErrOverflow)
	}
	if err := env.Set(r.tokenKey(next), to); err != nil {
		return 0, err
	}
	if err := env.Set(r.nextKey(), next+1); err != nil {
		return 0, err
	}
	if err := r.adjust(env, r.balanceKey(to), 1); err != nil {
		return 0, err
	}
	if err := r.adjust(env, r.supplyKey(), 1); err != nil {
		return 0, err
	}
	env.Publish(r.Address, event.BadgeMinted{TokenID: next, To: to})
	return next, nil
}

// OwnerOf returns the holder of tokenID.
func (r Registry) OwnerOf(env *host.Env, tokenID uint32) (types.Address, error) {
	var holder types.Address
	ok, err := env.Get(r.tokenKey(tokenID), &holder)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: badge %d", settle.ErrNotFound, tokenID)
	}
	return holder, nil
}

func (r Registry) requireHolder(env *host.Env, from types.Address, tokenID uint32) error {
	if err := env.RequireAuth(from); err != nil {
		return err
	}
	holder, err := r.OwnerOf(env, tokenID)
	if err != nil {
		return err
	}
	if holder != from {
		return fmt.Errorf("%w: %s does not hold badge %d", settle.ErrForbidden, from, tokenID)
	}
	return nil
}

// Transfer moves tokenID from its holder to to.
func (r Registry) Transfer(env *host.Env, from, to types.Address, tokenID uint32) error {
	if err := r.requireHolder(env, from, tokenID); err != nil {
		return err
	}
	if err := to.Validate(); err != nil {
		return err
	}
	if err := env.Set(r.tokenKey(tokenID), to); err != nil {
		return err
	}
	if err := r.adjust(env, r.balanceKey(from), -1); err != nil {
		return err
	}
	if err := r.adjust(env, r.balanceKey(to), 1); err != nil {
		return err
	}
	env.Publish(r.Address, event.BadgeTransferred{TokenID: tokenID, From: from, To: to})
	return nil
}

// Burn destroys tokenID. Its id is never reissued.
func (r Registry) Burn(env *host.Env, from types.Address, tokenID uint32) error {
	if err := r.requireHolder(env, from, tokenID); err != nil {
		return err
	}
	if err := env.Remove(r.tokenKey(tokenID)); err != nil {
		return err
	}
	if err := r.adjust(env, r.balanceKey(from), -1); err != nil {
		return err
	}
	if err := r.adjust(env, r.supplyKey(), -1); err != nil {
		return err
	}
	env.Publish(r.Address, event.BadgeBurned{TokenID: tokenID, From: from})
	return nil
}

// Balance returns the number of badges held by holder.
func (r Registry) Balance(env *host.Env, holder types.Address) (uint32, error) {
	return r.count(env, r.balanceKey(holder))
}

// TotalSupply returns the number of badges minted and not burned.
func (r Registry) TotalSupply(env *host.Env) (uint32, error) {
	return r.count(env, r.supplyKey())
}

// TokenURI returns the metadata URI of an existing badge.
func (r Registry) TokenURI(env *host.Env, tokenID uint32) (string, error) {
	if _, err := r.OwnerOf(env, tokenID); err != nil {
		return "", err
	}
	md, err := r.Metadata(env)
	if err != nil {
		return "", err
	}
	return md.BaseURI + strconv.FormatUint(uint64(tokenID), 10), nil
}

func (r Registry) count(env *host.Env, key host.Key) (uint32, error) {
	var n uint32
	if _, err := env.Get(key, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// adjust adds delta to the counter at key. Counters that reach zero are
// removed.
func (r Registry) adjust(env *host.Env, key host.Key, delta int) error {
	n, err := r.count(env, key)
	if err != nil {
		return err
	}
	switch {
	case delta > 0 && n == math.MaxUint32:
		return fmt.Errorf("%w: badge counter %s", settle.ErrOverflow, key)
	case delta < 0 && n == 0:
		return fmt.Errorf("%w: badge counter %s underflow", settle.ErrInvalidState, key)
	}
	n = uint32(int64(n) + int64(delta))
	if n == 0 {
		return env.Remove(key)
	}
	return env.Set(key, n)
}
