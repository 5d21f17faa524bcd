// Package entitlement is the entitlement ledger: principals buy a membership
// window measured in ledger sequences. Purchases stack. Buying before expiry
// extends from the existing expiry, so unused time is never lost, and the
// price is flat regardless of remaining time. There is no refund, downgrade
// or cancellation.
package entitlement

import (
	"fmt"

	"github.com/xraph/settle"
	"github.com/xraph/settle/event"
	"github.com/xraph/settle/host"
	"github.com/xraph/settle/settlement"
	"github.com/xraph/settle/types"
)

// Config is the write-once offer of an entitlement instance.
type Config struct {
	Creator  types.Address     `json:"creator" yaml:"creator"`
	Asset    types.Address     `json:"asset" yaml:"asset"`
	Price    types.Amount      `json:"price" yaml:"price"`
	Duration uint32            `json:"duration" yaml:"duration"`
	Platform *types.Address    `json:"platform,omitempty" yaml:"platform"`
	FeeBps   types.BasisPoints `json:"fee_bps" yaml:"fee_bps"`
}

// Validate checks the offer.
func (c Config) Validate() error {
	if err := c.Creator.Validate(); err != nil {
		return err
	}
	if err := c.Asset.Validate(); err != nil {
		return err
	}
	if !c.Price.IsPositive() {
		return settle.Invalid("price", "must be positive")
	}
	if c.Duration == 0 {
		return settle.Invalid("duration", "must be positive")
	}
	if !c.FeeBps.Valid() {
		return settle.Invalid("fee_bps", "must not exceed 10000")
	}
	if c.Platform != nil {
		return c.Platform.Validate()
	}
	return nil
}

// Split returns the creator and platform shares of one purchase. The fee is
// waived when FeeBps is zero or no platform is configured.
func (c Config) Split() (creator, platform types.Amount, err error) {
	fee, _, err := settlement.Quote(c.Price, c.FeeBps)
	if err != nil {
		return types.Amount{}, types.Amount{}, err
	}
	if fee.IsPositive() && c.Platform != nil {
		platform = fee
	}
	if creator, err = c.Price.Sub(platform); err != nil {
		return types.Amount{}, types.Amount{}, err
	}
	return creator, platform, nil
}

// Ledger is the entitlement contract deployed at Address.
type Ledger struct {
	Address types.Address
}

// At returns the entitlement ledger deployed at address.
func At(address types.Address) Ledger { return Ledger{Address: address} }

func (l Ledger) configKey() host.Key { return host.NewKey(l.Address, "config") }

func (l Ledger) expiryKey(user types.Address) host.Key {
	return host.NewKey(l.Address, "expiry", string(user))
}

// Init stores the offer. It can run once per instance, and the creator must
// authorize.
func (l Ledger) Init(env *host.Env, cfg Config) error {
	has, err := env.Has(l.configKey())
	if err != nil {
		return err
	}
	if has {
		return fmt.Errorf("%w: entitlement %s", settle.ErrAlreadyInitialized, l.Address)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := env.RequireAuth(cfg.Creator); err != nil {
		return err
	}
	return env.Set(l.configKey(), cfg)
}

// Config returns the offer.
func (l Ledger) Config(env *host.Env) (Config, error) {
	var c Config
	ok, err := env.Get(l.configKey(), &c)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Config{}, fmt.Errorf("%w: entitlement %s", settle.ErrUninitialized, l.Address)
	}
	return c, nil
}

// Price returns the flat purchase price.
func (l Ledger) Price(env *host.Env) (types.Amount, error) {
	c, err := l.Config(env)
	if err != nil {
		return types.Amount{}, err
	}
	return c.Price, nil
}

// Purchase charges user the price and extends the membership by Duration
// from max(current expiry, now). The expiry saturates at the largest
// sequence instead of wrapping. It returns the new expiry.
func (l Ledger) Purchase(env *host.Env, user types.Address) (types.Sequence, error) {
	if err := env.RequireAuth(user); err != nil {
		return 0, err
	}
	cfg, err := l.Config(env)
	if err != nil {
		return 0, err
	}

	toCreator, toPlatform, err := cfg.Split()
	if err != nil {
		return 0, err
	}
	legs := []settlement.Leg{{To: cfg.Creator, Amount: toCreator}}
	if cfg.Platform != nil {
		legs = append(legs, settlement.Leg{To: *cfg.Platform, Amount: toPlatform})
	}
	if err := settlement.Execute(env, cfg.Asset, user, legs); err != nil {
		return 0, err
	}

	now := env.Sequence()
	prior, ok, err := l.ExpiryOf(env, user)
	if err != nil {
		return 0, err
	}
	if !ok {
		prior = now
	}
	expiry := types.Later(prior, now).SaturatingAdd(cfg.Duration)

	if err := env.Set(l.expiryKey(user), expiry); err != nil {
		return 0, err
	}
	env.Publish(l.Address, event.Purchased{User: user, Amount: cfg.Price, Expiry: expiry})
	return expiry, nil
}

// IsActive reports whether user holds a membership at the current sequence.
// The expiry sequence itself still counts as active.
func (l Ledger) IsActive(env *host.Env, user types.Address) (bool, error) {
	expiry, ok, err := l.ExpiryOf(env, user)
	if err != nil || !ok {
		return false, err
	}
	return env.Sequence() <= expiry, nil
}

// ExpiryOf returns the stored expiry of user, or false if user never bought.
func (l Ledger) ExpiryOf(env *host.Env, user types.Address) (types.Sequence, bool, error) {
	var expiry types.Sequence
	ok, err := env.Get(l.expiryKey(user), &expiry)
	if err != nil {
		return 0, false, err
	}
	return expiry, ok, nil
}
