// Package settlement is the settlement engine: it divides a payment across
// recipients by basis-point shares and moves the parts through the Asset
// Transfer Interface. The split is exact. Every part but the last is
// floor(amount*share/10000) and the last recipient absorbs the remainder, so
// the parts always sum to the amount paid.
package settlement

import (
	"fmt"

	"github.com/xraph/settle"
	"github.com/xraph/settle/event"
	"github.com/xraph/settle/host"
	"github.com/xraph/settle/types"
)

// Leg is one transfer of a settlement.
type Leg struct {
	To     types.Address `json:"to"`
	Amount types.Amount  `json:"amount"`
}

// Allocate divides amount by shares. It does not validate the share vector;
// callers check it first.
func Allocate(amount types.Amount, shares []types.BasisPoints) ([]types.Amount, error) {
	if len(shares) == 0 {
		return nil, nil
	}
	parts := make([]types.Amount, len(shares))
	var allocated types.Amount
	for i, bps := range shares[:len(shares)-1] {
		part, err := amount.MulBps(bps)
		if err != nil {
			return nil, err
		}
		parts[i] = part
		if allocated, err = allocated.Add(part); err != nil {
			return nil, err
		}
	}
	last, err := amount.Sub(allocated)
	if err != nil {
		return nil, err
	}
	parts[len(parts)-1] = last
	return parts, nil
}

// Legs pairs recipients with allocated amounts.
func Legs(recipients []types.Address, amounts []types.Amount) []Leg {
	legs := make([]Leg, len(recipients))
	for i, r := range recipients {
		legs[i] = Leg{To: r, Amount: amounts[i]}
	}
	return legs
}

// Execute transfers each leg from payer. Zero legs are skipped. The first
// failed transfer aborts the invocation, discarding earlier legs with it.
func Execute(env *host.Env, asset, payer types.Address, legs []Leg) error {
	for i, leg := range legs {
		if leg.Amount.IsZero() {
			continue
		}
		if err := env.Transfer(asset, payer, leg.To, leg.Amount); err != nil {
			return fmt.Errorf("settlement: leg %d to %s: %w", i, leg.To, err)
		}
	}
	return nil
}

// Quote splits a price into the fee floor(price*feeBps/10000) and the
// remaining net amount.
func Quote(price types.Amount, feeBps types.BasisPoints) (fee, net types.Amount, err error) {
	if !feeBps.Valid() {
		return types.Amount{}, types.Amount{}, settle.Invalid("fee_bps", "must not exceed 10000")
	}
	if feeBps == 0 {
		return types.Amount{}, price, nil
	}
	if fee, err = price.MulBps(feeBps); err != nil {
		return types.Amount{}, types.Amount{}, err
	}
	if net, err = price.Sub(fee); err != nil {
		return types.Amount{}, types.Amount{}, err
	}
	return fee, net, nil
}

// Router is the split contract deployed at Address. It keeps no state; the
// address only names the publisher of split events.
type Router struct {
	Address types.Address
}

// At returns the router deployed at address.
func At(address types.Address) Router { return Router{Address: address} }

// Split pays amount of asset from payer to recipients in proportion to
// sharesBps. Preconditions are checked in order, and the first failure
// aborts before any transfer: amount > 0, at least one recipient, matching
// lengths, shares summing to exactly 10000, payer authorization.
func (r Router) Split(env *host.Env, asset, payer types.Address, recipients []types.Address, sharesBps []types.BasisPoints, amount types.Amount) error {
	if !amount.IsPositive() {
		return settle.Invalid("amount", "must be positive")
	}
	if len(recipients) == 0 {
		return settle.Invalid("recipients", "at least one recipient required")
	}
	if len(recipients) != len(sharesBps) {
		return settle.Invalid("shares_bps", fmt.Sprintf("got %d shares for %d recipients", len(sharesBps), len(recipients)))
	}
	if err := types.ValidateShares(sharesBps); err != nil {
		return fmt.Errorf("%w: shares_bps: %w", settle.ErrInvalidInput, err)
	}
	if err := env.RequireAuth(payer); err != nil {
		return err
	}

	parts, err := Allocate(amount, sharesBps)
	if err != nil {
		return err
	}
	if err := Execute(env, asset, payer, Legs(recipients, parts)); err != nil {
		return err
	}

	env.Publish(r.Address, event.Split{Payer: payer, Asset: asset, Amount: amount})
	return nil
}
