// Package exchange is the escrow exchange: sellers list items under a
// caller-chosen 128-bit id, buyers fulfill active listings, and the price is
// split between the seller and an optional platform through the settlement
// engine.
//
// A listing id moves NonExistent -> Active -> {Canceled, Fulfilled}. Both end
// states are terminal for that activation, and Create may reactivate the id.
package exchange

import (
	"fmt"

	"github.com/xraph/settle"
	"github.com/xraph/settle/event"
	"github.com/xraph/settle/host"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/settlement"
	"github.com/xraph/settle/types"
)

// Config is the write-once fee policy of an exchange instance.
type Config struct {
	Platform *types.Address    `json:"platform,omitempty"`
	FeeBps   types.BasisPoints `json:"fee_bps"`
}

// Listing is the record stored per listing id.
type Listing struct {
	ID     id.Key        `json:"id"`
	Seller types.Address `json:"seller"`
	Price  types.Amount  `json:"price"`
	Active bool          `json:"active"`
}

// Receipt describes a fulfilled listing.
type Receipt struct {
	Listing Listing       `json:"listing"`
	Buyer   types.Address `json:"buyer"`
	Fee     types.Amount  `json:"fee"`
	Net     types.Amount  `json:"net"`
}

// Exchange is the exchange contract deployed at Address.
type Exchange struct {
	Address types.Address
}

// At returns the exchange deployed at address.
func At(address types.Address) Exchange { return Exchange{Address: address} }

func (x Exchange) configKey() host.Key { return host.NewKey(x.Address, "config") }

func (x Exchange) listingKey(listingID id.Key) host.Key {
	return host.NewKey(x.Address, "listing", listingID.Hex())
}

// Init stores the fee policy. It can run once per instance.
func (x Exchange) Init(env *host.Env, platform *types.Address, feeBps types.BasisPoints) error {
	has, err := env.Has(x.configKey())
	if err != nil {
		return err
	}
	if has {
		return fmt.Errorf("%w: exchange %s", settle.ErrAlreadyInitialized, x.Address)
	}
	if !feeBps.Valid() {
		return settle.Invalid("fee_bps", "must not exceed 10000")
	}
	if platform != nil {
		if err := platform.Validate(); err != nil {
			return err
		}
	}
	return env.Set(x.configKey(), Config{Platform: platform, FeeBps: feeBps})
}

// Config returns the fee policy.
func (x Exchange) Config(env *host.Env) (Config, error) {
	var c Config
	ok, err := env.Get(x.configKey(), &c)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Config{}, fmt.Errorf("%w: exchange %s", settle.ErrUninitialized, x.Address)
	}
	return c, nil
}

// Get returns the listing stored at listingID.
func (x Exchange) Get(env *host.Env, listingID id.Key) (Listing, error) {
	var l Listing
	ok, err := env.Get(x.listingKey(listingID), &l)
	if err != nil {
		return Listing{}, err
	}
	if !ok {
		return Listing{}, fmt.Errorf("%w: listing %s", settle.ErrNotFound, listingID)
	}
	return l, nil
}

// Create activates a listing. The seller must authorize, and no active
// listing may exist at listingID.
func (x Exchange) Create(env *host.Env, listingID id.Key, seller types.Address, price types.Amount) error {
	if !price.IsPositive() {
		return settle.Invalid("price", "must be positive")
	}
	if err := env.RequireAuth(seller); err != nil {
		return err
	}

	var existing Listing
	ok, err := env.Get(x.listingKey(listingID), &existing)
	if err != nil {
		return err
	}
	if ok && existing.Active {
		return fmt.Errorf("%w: listing %s already active", settle.ErrInvalidState, listingID)
	}

	l := Listing{ID: listingID, Seller: seller, Price: price, Active: true}
	if err := env.Set(x.listingKey(listingID), l); err != nil {
		return err
	}
	env.Publish(x.Address, event.Listed{ListingID: listingID, Seller: seller, Price: price})
	return nil
}

// Cancel deactivates a listing. The declared seller must authorize and must
// match the stored seller. The active flag is not checked, so canceling an
// ended listing succeeds and leaves it inactive.
func (x Exchange) Cancel(env *host.Env, listingID id.Key, seller types.Address) error {
	l, err := x.Get(env, listingID)
	if err != nil {
		return err
	}
	if err := env.RequireAuth(seller); err != nil {
		return err
	}
	if l.Seller != seller {
		return fmt.Errorf("%w: %s is not the seller of listing %s", settle.ErrForbidden, seller, listingID)
	}

	l.Active = false
	if err := env.Set(x.listingKey(listingID), l); err != nil {
		return err
	}
	env.Publish(x.Address, event.Canceled{ListingID: listingID, Seller: seller})
	return nil
}

// Fulfill pays an active listing from buyer. With a platform configured and
// a non-zero fee, the price is split [platform: feeBps, seller: rest];
// otherwise the seller receives the whole price.
func (x Exchange) Fulfill(env *host.Env, asset types.Address, listingID id.Key, buyer types.Address) (Receipt, error) {
	if err := env.RequireAuth(buyer); err != nil {
		return Receipt{}, err
	}
	l, err := x.Get(env, listingID)
	if err != nil {
		return Receipt{}, err
	}
	if !l.Active {
		return Receipt{}, fmt.Errorf("%w: listing %s inactive", settle.ErrInvalidState, listingID)
	}
	cfg, err := x.Config(env)
	if err != nil {
		return Receipt{}, err
	}

	fee, _, err := settlement.Quote(l.Price, cfg.FeeBps)
	if err != nil {
		return Receipt{}, err
	}

	var legs []settlement.Leg
	if fee.IsPositive() && cfg.Platform != nil {
		parts, err := settlement.Allocate(l.Price, []types.BasisPoints{cfg.FeeBps, cfg.FeeBps.Complement()})
		if err != nil {
			return Receipt{}, err
		}
		legs = settlement.Legs([]types.Address{*cfg.Platform, l.Seller}, parts)
	} else {
		fee = types.Amount{}
		legs = []settlement.Leg{{To: l.Seller, Amount: l.Price}}
	}
	if err := settlement.Execute(env, asset, buyer, legs); err != nil {
		return Receipt{}, err
	}

	l.Active = false
	if err := env.Set(x.listingKey(listingID), l); err != nil {
		return Receipt{}, err
	}
	env.Publish(x.Address, event.Fulfilled{
		ListingID: listingID,
		Seller:    l.Seller,
		Buyer:     buyer,
		Price:     l.Price,
		Fee:       fee,
	})

	net, err := l.Price.Sub(fee)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Listing: l, Buyer: buyer, Fee: fee, Net: net}, nil
}
