// Package asset is a reference fungible asset contract. It implements the
// Asset Transfer Interface (host.AssetContract) that every settlement
// primitive moves value through: balances are exact, arithmetic never wraps,
// and the sum of balances always equals the total supply.
package asset

import (
	"fmt"

	"github.com/xraph/settle"
	"github.com/xraph/settle/event"
	"github.com/xraph/settle/host"
	"github.com/xraph/settle/types"
)

// Metadata describes an asset. Decimals is informational; amounts are always
// in the smallest unit.
type Metadata struct {
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals uint32 `json:"decimals" yaml:"decimals"`
}

type config struct {
	Admin    types.Address
	Metadata Metadata
}

// Token is the asset contract deployed at Address.
type Token struct {
	Address types.Address
}

// compile-time interface check
var _ host.AssetContract = Token{}

// At returns the asset contract deployed at address.
func At(address types.Address) Token { return Token{Address: address} }

func (t Token) configKey() host.Key { return host.NewKey(t.Address, "config") }
func (t Token) supplyKey() host.Key { return host.NewKey(t.Address, "supply") }

func (t Token) balanceKey(a types.Address) host.Key {
	return host.NewKey(t.Address, "balance", string(a))
}

func (t Token) frozenKey(a types.Address) host.Key {
	return host.NewKey(t.Address, "frozen", string(a))
}

func (t Token) config(env *host.Env) (config, error) {
	var c config
	ok, err := env.Get(t.configKey(), &c)
	if err != nil {
		return config{}, err
	}
	if !ok {
		return config{}, fmt.Errorf("%w: asset %s", settle.ErrUninitialized, t.Address)
	}
	return c, nil
}

// Init configures the asset once. admin must authorize.
func (t Token) Init(env *host.Env, admin types.Address, md Metadata) error {
	has, err := env.Has(t.configKey())
	if err != nil {
		return err
	}
	if has {
		return fmt.Errorf("%w: asset %s", settle.ErrAlreadyInitialized, t.Address)
	}
	if err := env.RequireAuth(admin); err != nil {
		return err
	}
	if md.Name == "" {
		return settle.Invalid("name", "must not be empty")
	}
	if md.Symbol == "" {
		return settle.Invalid("symbol", "must not be empty")
	}
	return env.Set(t.configKey(), config{Admin: admin, Metadata: md})
}

// Mint creates amount new units for to. The admin must authorize.
func (t Token) Mint(env *host.Env, to types.Address, amount types.Amount) error {
	c, err := t.config(env)
	if err != nil {
		return err
	}
	if err := env.RequireAuth(c.Admin); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return settle.Invalid("amount", "must be positive")
	}
	if err := to.Validate(); err != nil {
		return err
	}

	supply, err := t.TotalSupply(env)
	if err != nil {
		return err
	}
	if supply, err = supply.Add(amount); err != nil {
		return err
	}
	balance, err := t.Balance(env, to)
	if err != nil {
		return err
	}
	if balance, err = balance.Add(amount); err != nil {
		return err
	}

	if err := env.Set(t.supplyKey(), supply); err != nil {
		return err
	}
	if err := env.Set(t.balanceKey(to), balance); err != nil {
		return err
	}
	env.Publish(t.Address, event.AssetMinted{To: to, Amount: amount})
	return nil
}

// Transfer moves amount from one account to another. from must authorize.
func (t Token) Transfer(env *host.Env, from, to types.Address, amount types.Amount) error {
	if _, err := t.config(env); err != nil {
		return err
	}
	if err := env.RequireAuth(from); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return settle.Invalid("amount", "must be positive")
	}
	if err := to.Validate(); err != nil {
		return err
	}
	for _, acct := range []types.Address{from, to} {
		frozen, err := t.IsFrozen(env, acct)
		if err != nil {
			return err
		}
		if frozen {
			return fmt.Errorf("%w: %s", settle.ErrFrozen, acct)
		}
	}

	fromBal, err := t.Balance(env, from)
	if err != nil {
		return err
	}
	if fromBal.LessThan(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", settle.ErrInsufficientBalance, from, fromBal, amount)
	}
	if fromBal, err = fromBal.Sub(amount); err != nil {
		return err
	}
	if err := env.Set(t.balanceKey(from), fromBal); err != nil {
		return err
	}

	// Read after the debit so a self-transfer nets to zero.
	toBal, err := t.Balance(env, to)
	if err != nil {
		return err
	}
	if toBal, err = toBal.Add(amount); err != nil {
		return err
	}
	if err := env.Set(t.balanceKey(to), toBal); err != nil {
		return err
	}

	env.Publish(t.Address, event.AssetTransferred{From: from, To: to, Amount: amount})
	return nil
}

// SetFrozen blocks or unblocks an account. The admin must authorize.
func (t Token) SetFrozen(env *host.Env, account types.Address, frozen bool) error {
	c, err := t.config(env)
	if err != nil {
		return err
	}
	if err := env.RequireAuth(c.Admin); err != nil {
		return err
	}
	if frozen {
		err = env.Set(t.frozenKey(account), true)
	} else {
		err = env.Remove(t.frozenKey(account))
	}
	if err != nil {
		return err
	}
	env.Publish(t.Address, event.AssetFrozen{Account: account, Frozen: frozen})
	return nil
}

// IsFrozen reports whether account is blocked.
func (t Token) IsFrozen(env *host.Env, account types.Address) (bool, error) {
	return env.Has(t.frozenKey(account))
}

// Balance returns the balance of account; unknown accounts hold zero.
func (t Token) Balance(env *host.Env, account types.Address) (types.Amount, error) {
	var bal types.Amount
	if _, err := env.Get(t.balanceKey(account), &bal); err != nil {
		return types.Amount{}, err
	}
	return bal, nil
}

// TotalSupply returns the minted supply.
func (t Token) TotalSupply(env *host.Env) (types.Amount, error) {
	var supply types.Amount
	if _, err := env.Get(t.supplyKey(), &supply); err != nil {
		return types.Amount{}, err
	}
	return supply, nil
}

// Metadata returns the asset description.
func (t Token) Metadata(env *host.Env) (Metadata, error) {
	c, err := t.config(env)
	if err != nil {
		return Metadata{}, err
	}
	return c.Metadata, nil
}

// Admin returns the asset administrator.
func (t Token) Admin(env *host.Env) (types.Address, error) {
	c, err := t.config(env)
	if err != nil {
		return "", err
	}
	return c.Admin, nil
}
