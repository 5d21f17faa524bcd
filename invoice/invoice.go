// Package invoice is the resource registry: issuers record invoices under
// sequential ids, and invoices are closed either by the issuer marking them
// paid or by a payer settling them through the asset contract.
package invoice

import (
	"fmt"
	"math"
	"strconv"

	"github.com/xraph/settle"
	"github.com/xraph/settle/event"
	"github.com/xraph/settle/host"
	"github.com/xraph/settle/settlement"
	"github.com/xraph/settle/types"
)

// Status is the lifecycle state of an invoice.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
)

// Invoice is the record stored per invoice id.
type Invoice struct {
	ID        uint64         `json:"id"`
	Issuer    types.Address  `json:"issuer"`
	Payer     *types.Address `json:"payer,omitempty"`
	Amount    types.Amount   `json:"amount"`
	Reference string         `json:"reference,omitempty"`
	Status    Status         `json:"status"`
	IssuedAt  types.Sequence `json:"issued_at"`
	PaidAt    types.Sequence `json:"paid_at,omitempty"`
}

// Paid reports whether the invoice is closed.
func (inv Invoice) Paid() bool { return inv.Status == StatusPaid }

// Registry is the invoice contract deployed at Address.
type Registry struct {
	Address types.Address
}

// At returns the registry deployed at address.
func At(address types.Address) Registry { return Registry{Address: address} }

func (r Registry) nextKey() host.Key { return host.NewKey(r.Address, "next") }

func (r Registry) invoiceKey(invoiceID uint64) host.Key {
	return host.NewKey(r.Address, "invoice", strconv.FormatUint(invoiceID, 10))
}

// Count returns the number of invoices issued, which is also the next id.
func (r Registry) Count(env *host.Env) (uint64, error) {
	var n uint64
	if _, err := env.Get(r.nextKey(), &n); err != nil {
		return 0, err
	}
	return n, nil
}

// Issue records a pending invoice and returns its id. A nil payer lets
// anyone settle it.
func (r Registry) Issue(env *host.Env, issuer types.Address, payer *types.Address, amount types.Amount, reference string) (uint64, error) {
	if err := env.RequireAuth(issuer); err != nil {
		return 0, err
	}
	if !amount.IsPositive() {
		return 0, settle.Invalid("amount", "must be positive")
	}
	if payer != nil {
		if err := payer.Validate(); err != nil {
			return 0, err
		}
	}

	next, err := r.Count(env)
	if err != nil {
		return 0, err
	}
	if next == math.MaxUint64 {
		return 0, fmt.Errorf("%w: invoice ids exhausted", settle.ErrOverflow)
	}

	inv := Invoice{
		ID:        next,
		Issuer:    issuer,
		Payer:     payer,
		Amount:    amount,
		Reference: reference,
		Status:    StatusPending,
		IssuedAt:  env.Sequence(),
	}
	if err := env.Set(r.invoiceKey(next), inv); err != nil {
		return 0, err
	}
	if err := env.Set(r.nextKey(), next+1); err != nil {
		return 0, err
	}
	env.Publish(r.Address, event.InvoiceIssued{
		InvoiceID: inv.ID,
		Issuer:    issuer,
		Payer:     payer,
		Amount:    amount,
	})
	return next, nil
}

// Get returns the invoice stored at invoiceID.
func (r Registry) Get(env *host.Env, invoiceID uint64) (Invoice, error) {
	var inv Invoice
	ok, err := env.Get(r.invoiceKey(invoiceID), &inv)
	if err != nil {
		return Invoice{}, err
	}
	if !ok {
		return Invoice{}, fmt.Errorf("%w: invoice %d", settle.ErrNotFound, invoiceID)
	}
	return inv, nil
}

// MarkPaid closes an invoice settled outside the ledger. Only its issuer
// may do so.
func (r Registry) MarkPaid(env *host.Env, invoiceID uint64, issuer types.Address) error {
	inv, err := r.Get(env, invoiceID)
	if err != nil {
		return err
	}
	if err := env.RequireAuth(issuer); err != nil {
		return err
	}
	if inv.Issuer != issuer {
		return fmt.Errorf("%w: %s did not issue invoice %d", settle.ErrForbidden, issuer, invoiceID)
	}
	if inv.Paid() {
		return fmt.Errorf("%w: invoice %d already paid", settle.ErrInvalidState, invoiceID)
	}
	return r.close(env, inv, inv.Payer)
}

// Pay settles an invoice by transferring its amount from payer to the
// issuer.
func (r Registry) Pay(env *host.Env, asset types.Address, invoiceID uint64, payer types.Address) error {
	if err := env.RequireAuth(payer); err != nil {
		return err
	}
	inv, err := r.Get(env, invoiceID)
	if err != nil {
		return err
	}
	if inv.Paid() {
		return fmt.Errorf("%w: invoice %d already paid", settle.ErrInvalidState, invoiceID)
	}
	if inv.Payer != nil && *inv.Payer != payer {
		return fmt.Errorf("%w: invoice %d is addressed to %s", settle.ErrForbidden, invoiceID, *inv.Payer)
	}

	legs := []settlement.Leg{{To: inv.Issuer, Amount: inv.Amount}}
	if err := settlement.Execute(env, asset, payer, legs); err != nil {
		return err
	}
	return r.close(env, inv, payer.Ptr())
}

func (r Registry) close(env *host.Env, inv Invoice, payer *types.Address) error {
	inv.Status = StatusPaid
	inv.PaidAt = env.Sequence()
	if err := env.Set(r.invoiceKey(inv.ID), inv); err != nil {
		return err
	}
	env.Publish(r.Address, event.InvoicePaid{
		InvoiceID: inv.ID,
		Issuer:    inv.Issuer,
		Payer:     payer,
		Amount:    inv.Amount,
	})
	return nil
}
