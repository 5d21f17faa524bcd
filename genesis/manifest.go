// Package genesis deploys contract instances from a YAML manifest. A manifest
// names every instance the process serves and carries the write-once
// configuration each needs, so a fresh store can be brought to a known
// starting state and an existing one is left untouched.
package genesis

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xraph/settle"
	"github.com/xraph/settle/asset"
	"github.com/xraph/settle/badge"
	"github.com/xraph/settle/entitlement"
	"github.com/xraph/settle/types"
)

// Manifest is the root of a genesis file.
type Manifest struct {
	Assets       []AssetSpec       `yaml:"assets"`
	Routers      []types.Address   `yaml:"routers"`
	Exchanges    []ExchangeSpec    `yaml:"exchanges"`
	Entitlements []EntitlementSpec `yaml:"entitlements"`
	Invoices     []types.Address   `yaml:"invoices"`
	Directories  []DirectorySpec   `yaml:"directories"`
	Badges       []BadgeSpec       `yaml:"badges"`
}

// AssetSpec deploys a reference asset and mints opening balances.
type AssetSpec struct {
	Address        types.Address `yaml:"address"`
	Admin          types.Address `yaml:"admin"`
	asset.Metadata `yaml:",inline"`
	Balances       map[types.Address]types.Amount `yaml:"balances"`
}

// ExchangeSpec deploys an escrow exchange.
type ExchangeSpec struct {
	Address  types.Address     `yaml:"address"`
	Platform *types.Address    `yaml:"platform"`
	FeeBps   types.BasisPoints `yaml:"fee_bps"`
}

// EntitlementSpec deploys an entitlement ledger.
type EntitlementSpec struct {
	Address            types.Address `yaml:"address"`
	entitlement.Config `yaml:",inline"`
}

// DirectorySpec deploys a name directory with initial bindings.
type DirectorySpec struct {
	Address types.Address            `yaml:"address"`
	Owner   types.Address            `yaml:"owner"`
	Entries map[string]types.Address `yaml:"entries"`
}

// BadgeSpec deploys a badge registry.
type BadgeSpec struct {
	Address        types.Address `yaml:"address"`
	Owner          types.Address `yaml:"owner"`
	badge.Metadata `yaml:",inline"`
}

// Load reads a manifest file, expanding ${VAR} references from the
// environment.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read manifest: %w", err)
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse decodes and validates a manifest. Unknown fields are rejected.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("genesis: parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	return &m, nil
}

// Validate checks addresses and configs. Every address must be unique
// across the manifest.
func (m *Manifest) Validate() error {
	seen := make(map[types.Address]string)
	claim := func(field string, addr types.Address) error {
		if err := addr.Validate(); err != nil {
			return settle.Invalid(field, err.Error())
		}
		if prev, dup := seen[addr]; dup {
			return settle.Invalid(field, fmt.Sprintf("address %s already used by %s", addr, prev))
		}
		seen[addr] = field
		return nil
	}

	for i, a := range m.Assets {
		field := fmt.Sprintf("assets[%d]", i)
		if err := claim(field+".address", a.Address); err != nil {
			return err
		}
		if err := a.Admin.Validate(); err != nil {
			return settle.Invalid(field+".admin", err.Error())
		}
		for holder, amount := range a.Balances {
			if !amount.IsPositive() {
				return settle.Invalid(fmt.Sprintf("%s.balances.%s", field, holder), "must be positive")
			}
		}
	}
	for i, addr := range m.Routers {
		if err := claim(fmt.Sprintf("routers[%d]", i), addr); err != nil {
			return err
		}
	}
	for i, x := range m.Exchanges {
		field := fmt.Sprintf("exchanges[%d]", i)
		if err := claim(field+".address", x.Address); err != nil {
			return err
		}
		if !x.FeeBps.Valid() {
			return settle.Invalid(field+".fee_bps", "must not exceed 10000")
		}
	}
	for i, e := range m.Entitlements {
		field := fmt.Sprintf("entitlements[%d]", i)
		if err := claim(field+".address", e.Address); err != nil {
			return err
		}
		if err := e.Config.Validate(); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	for i, addr := range m.Invoices {
		if err := claim(fmt.Sprintf("invoices[%d]", i), addr); err != nil {
			return err
		}
	}
	for i, d := range m.Directories {
		field := fmt.Sprintf("directories[%d]", i)
		if err := claim(field+".address", d.Address); err != nil {
			return err
		}
		if err := d.Owner.Validate(); err != nil {
			return settle.Invalid(field+".owner", err.Error())
		}
	}
	for i, b := range m.Badges {
		field := fmt.Sprintf("badges[%d]", i)
		if err := claim(field+".address", b.Address); err != nil {
			return err
		}
		if err := b.Owner.Validate(); err != nil {
			return settle.Invalid(field+".owner", err.Error())
		}
	}
	return nil
}
