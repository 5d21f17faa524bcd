package event

import (
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/types"
)

// Split is published once per successful settlement split.
type Split struct {
	Payer  types.Address `json:"payer"`
	Asset  types.Address `json:"asset"`
	Amount types.Amount  `json:"amount"`
}

func (Split) Topic() Topic { return TopicSplit }

// Listed is published when a listing becomes active.
type Listed struct {
	ListingID id.Key        `json:"listing_id"`
	Seller    types.Address `json:"seller"`
	Price     types.Amount  `json:"price"`
}

func (Listed) Topic() Topic { return TopicListed }

// Canceled is published when a seller withdraws a listing.
type Canceled struct {
	ListingID id.Key        `json:"listing_id"`
	Seller    types.Address `json:"seller"`
}

func (Canceled) Topic() Topic { return TopicCanceled }

// Fulfilled is published when a buyer pays for a listing.
type Fulfilled struct {
	ListingID id.Key        `json:"listing_id"`
	Seller    types.Address `json:"seller"`
	Buyer     types.Address `json:"buyer"`
	Price     types.Amount  `json:"price"`
	Fee       types.Amount  `json:"fee"`
}

func (Fulfilled) Topic() Topic { return TopicFulfilled }

// Purchased is published when an entitlement is bought or extended.
type Purchased struct {
	User   types.Address  `json:"user"`
	Amount types.Amount   `json:"amount"`
	Expiry types.Sequence `json:"expiry"`
}

func (Purchased) Topic() Topic { return TopicPurchased }

// InvoiceIssued is published when an invoice is created.
type InvoiceIssued struct {
	InvoiceID uint64         `json:"invoice_id"`
	Issuer    types.Address  `json:"issuer"`
	Payer     *types.Address `json:"payer,omitempty"`
	Amount    types.Amount   `json:"amount"`
}

func (InvoiceIssued) Topic() Topic { return TopicInvoiceIssued }

// InvoicePaid is published when an invoice is settled or marked paid.
type InvoicePaid struct {
	InvoiceID uint64         `json:"invoice_id"`
	Issuer    types.Address  `json:"issuer"`
	Payer     *types.Address `json:"payer,omitempty"`
	Amount    types.Amount   `json:"amount"`
}

func (InvoicePaid) Topic() Topic { return TopicInvoicePaid }

// NameSet is published when a directory name is bound.
type NameSet struct {
	Name   string        `json:"name"`
	Target types.Address `json:"target"`
}

func (NameSet) Topic() Topic { return TopicNameSet }

// NameRemoved is published when a directory name is unbound.
type NameRemoved struct {
	Name string `json:"name"`
}

func (NameRemoved) Topic() Topic { return TopicNameRemoved }

// BadgeMinted is published for each new badge.
type BadgeMinted struct {
	TokenID uint32        `json:"token_id"`
	To      types.Address `json:"to"`
}

func (BadgeMinted) Topic() Topic { return TopicBadgeMinted }

// BadgeTransferred is published when a badge changes hands.
type BadgeTransferred struct {
	TokenID uint32        `json:"token_id"`
	From    types.Address `json:"from"`
	To      types.Address `json:"to"`
}

func (BadgeTransferred) Topic() Topic { return TopicBadgeTransferred }

// BadgeBurned is published when a badge is destroyed.
type BadgeBurned struct {
	TokenID uint32        `json:"token_id"`
	From    types.Address `json:"from"`
}

func (BadgeBurned) Topic() Topic { return TopicBadgeBurned }

// AssetMinted is published when supply is created.
type AssetMinted struct {
	To     types.Address `json:"to"`
	Amount types.Amount  `json:"amount"`
}

func (AssetMinted) Topic() Topic { return TopicAssetMinted }

// AssetTransferred is published for every asset movement.
type AssetTransferred struct {
	From   types.Address `json:"from"`
	To     types.Address `json:"to"`
	Amount types.Amount  `json:"amount"`
}

func (AssetTransferred) Topic() Topic { return TopicAssetTransferred }

// AssetFrozen is published when an account's frozen flag changes.
type AssetFrozen struct {
	Account types.Address `json:"account"`
	Frozen  bool          `json:"frozen"`
}

func (AssetFrozen) Topic() Topic { return TopicAssetFrozen }
