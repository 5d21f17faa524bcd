package genesis

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/xraph/settle"
	"github.com/xraph/settle/asset"
	"github.com/xraph/settle/badge"
	"github.com/xraph/settle/directory"
	"github.com/xraph/settle/entitlement"
	"github.com/xraph/settle/exchange"
	"github.com/xraph/settle/host"
	"github.com/xraph/settle/runtime"
	"github.com/xraph/settle/types"
)

// Kind names the contract deployed at an address.
type Kind string

const (
	KindAsset       Kind = "asset"
	KindRouter      Kind = "router"
	KindExchange    Kind = "exchange"
	KindEntitlement Kind = "entitlement"
	KindInvoice     Kind = "invoice"
	KindDirectory   Kind = "directory"
	KindBadge       Kind = "badge"
)

// Deployment records what a manifest deployed.
type Deployment struct {
	Contracts map[types.Address]Kind
	// Initialized lists instances configured by this Apply.
	Initialized []types.Address
	// Existing lists instances that were already configured and left as is.
	Existing []types.Address
}

// Is reports whether addr was deployed as kind.
func (d *Deployment) Is(addr types.Address, kind Kind) bool {
	return d != nil && d.Contracts[addr] == kind
}

// Of returns the sorted addresses deployed as kind.
func (d *Deployment) Of(kind Kind) []types.Address {
	var out []types.Address
	for addr, k := range d.Contracts {
		if k == kind {
			out = append(out, addr)
		}
	}
	slices.Sort(out)
	return out
}

// Apply deploys every instance in m on rt. Each instance is initialized in
// its own invocation together with its opening state (asset balances,
// directory entries), so an instance that is already initialized keeps its
// stored state and is reported in Deployment.Existing. Asset instances are
// registered with rt before they are initialized.
func Apply(ctx context.Context, rt *runtime.Runtime, m *Manifest) (*Deployment, error) {
	d := &Deployment{Contracts: make(map[types.Address]Kind)}
	logger := rt.Logger()

	deploy := func(addr types.Address, kind Kind, signer types.Address, fn func(env *host.Env) error) error {
		d.Contracts[addr] = kind
		err := rt.Invoke(ctx, []types.Address{signer}, fn)
		switch {
		case err == nil:
			d.Initialized = append(d.Initialized, addr)
			logger.Info("genesis deployed contract", "contract", addr, "kind", kind)
			return nil
		case errors.Is(err, settle.ErrAlreadyInitialized):
			d.Existing = append(d.Existing, addr)
			logger.Debug("genesis contract already initialized", "contract", addr, "kind", kind)
			return nil
		default:
			return fmt.Errorf("genesis: deploy %s %s: %w", kind, addr, err)
		}
	}

	for _, entry := range m.Assets {
		token := asset.At(entry.Address)
		if _, ok := rt.Asset(entry.Address); !ok {
			if err := rt.RegisterAsset(entry.Address, token); err != nil {
				return nil, fmt.Errorf("genesis: %w", err)
			}
		}
		holders := make([]types.Address, 0, len(entry.Balances))
		for holder := range entry.Balances {
			holders = append(holders, holder)
		}
		slices.Sort(holders)

		err := deploy(entry.Address, KindAsset, entry.Admin, func(env *host.Env) error {
			if err := token.Init(env, entry.Admin, entry.Metadata); err != nil {
				return err
			}
			for _, holder := range holders {
				if err := token.Mint(env, holder, entry.Balances[holder]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	for _, entry := range m.Directories {
		dir := directory.At(entry.Address)
		names := make([]string, 0, len(entry.Entries))
		for name := range entry.Entries {
			names = append(names, name)
		}
		slices.Sort(names)

		err := deploy(entry.Address, KindDirectory, entry.Owner, func(env *host.Env) error {
			if err := dir.Init(env, entry.Owner); err != nil {
				return err
			}
			for _, name := range names {
				if err := dir.Set(env, name, entry.Entries[name]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	for _, entry := range m.Badges {
		err := deploy(entry.Address, KindBadge, entry.Owner, func(env *host.Env) error {
			return badge.At(entry.Address).Init(env, entry.Owner, entry.Metadata)
		})
		if err != nil {
			return nil, err
		}
	}

	// Exchange configuration needs no signature.
	for _, entry := range m.Exchanges {
		err := deploy(entry.Address, KindExchange, entry.Address, func(env *host.Env) error {
			return exchange.At(entry.Address).Init(env, entry.Platform, entry.FeeBps)
		})
		if err != nil {
			return nil, err
		}
	}

	for _, entry := range m.Entitlements {
		err := deploy(entry.Address, KindEntitlement, entry.Creator, func(env *host.Env) error {
			return entitlement.At(entry.Address).Init(env, entry.Config)
		})
		if err != nil {
			return nil, err
		}
	}

	// Routers and invoice registries hold no configuration.
	for _, addr := range m.Routers {
		d.Contracts[addr] = KindRouter
	}
	for _, addr := range m.Invoices {
		d.Contracts[addr] = KindInvoice
	}

	return d, nil
}
