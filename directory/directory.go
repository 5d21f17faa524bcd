// Package directory is an owner-gated map from names to principals, used to
// publish the addresses of deployed contracts under stable names.
package directory

import (
	"fmt"

	"github.com/xraph/settle"
	"github.com/xraph/settle/event"
	"github.com/xraph/settle/host"
	"github.com/xraph/settle/types"
)

// Directory is the name directory deployed at Address.
type Directory struct {
	Address types.Address
}

// At returns the directory deployed at address.
func At(address types.Address) Directory { return Directory{Address: address} }

func (d Directory) ownerKey() host.Key { return host.NewKey(d.Address, "owner") }

func (d Directory) entryKey(name string) host.Key { return host.NewKey(d.Address, "entry", name) }

// Init records the owner. It can run once per instance.
func (d Directory) Init(env *host.Env, owner types.Address) error {
	has, err := env.Has(d.ownerKey())
	if err != nil {
		return err
	}
	if has {
		return fmt.Errorf("%w: directory %s", settle.ErrAlreadyInitialized, d.Address)
	}
	if err := owner.Validate(); err != nil {
		return err
	}
	if err := env.RequireAuth(owner); err != nil {
		return err
	}
	return env.Set(d.ownerKey(), owner)
}

// Owner returns the principal allowed to edit the directory.
func (d Directory) Owner(env *host.Env) (types.Address, error) {
	var owner types.Address
	ok, err := env.Get(d.ownerKey(), &owner)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: directory %s", settle.ErrUninitialized, d.Address)
	}
	return owner, nil
}

func (d Directory) requireOwner(env *host.Env) error {
	owner, err := d.Owner(env)
	if err != nil {
		return err
	}
	return env.RequireAuth(owner)
}

// Set binds name to target, replacing any previous binding.
func (d Directory) Set(env *host.Env, name string, target types.Address) error {
	if err := d.requireOwner(env); err != nil {
		return err
	}
	if name == "" {
		return settle.Invalid("name", "must not be empty")
	}
	if err := target.Validate(); err != nil {
		return err
	}
	if err := env.Set(d.entryKey(name), target); err != nil {
		return err
	}
	env.Publish(d.Address, event.NameSet{Name: name, Target: target})
	return nil
}

// Remove unbinds name. Removing an unbound name is a no-op and publishes
// nothing.
func (d Directory) Remove(env *host.Env, name string) error {
	if err := d.requireOwner(env); err != nil {
		return err
	}
	has, err := env.Has(d.entryKey(name))
	if err != nil || !has {
		return err
	}
	if err := env.Remove(d.entryKey(name)); err != nil {
		return err
	}
	env.Publish(d.Address, event.NameRemoved{Name: name})
	return nil
}

// Resolve returns the principal bound to name.
func (d Directory) Resolve(env *host.Env, name string) (types.Address, bool, error) {
	if _, err := d.Owner(env); err != nil {
		return "", false, err
	}
	var target types.Address
	ok, err := env.Get(d.entryKey(name), &target)
	if err != nil {
		return "", false, err
	}
	return target, ok, nil
}
