// Package plugin provides an extensible plugin system for settle.
// Plugins hook into the runtime lifecycle and into committed contract events.
// Hooks run only after an invocation's writes are durable, so a plugin never
// observes state that was rolled back.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/settle/event"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// Receipt summarizes a committed invocation.
type Receipt struct {
	InvocationID id.ID
	Sequence     types.Sequence
	Writes       int
	Events       int
	Elapsed      time.Duration
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the runtime starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, rt any) error
}

// OnShutdown is called when the runtime stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Invocation hooks
// ──────────────────────────────────────────────────

// OnInvocationCommitted is called after an invocation's writes are applied.
type OnInvocationCommitted interface {
	Plugin
	OnInvocationCommitted(ctx context.Context, r Receipt) error
}

// OnInvocationFailed is called when an invocation aborts. Nothing it wrote
// was applied.
type OnInvocationFailed interface {
	Plugin
	OnInvocationFailed(ctx context.Context, invocationID id.ID, err error) error
}

// OnEvent receives every committed event.
type OnEvent interface {
	Plugin
	OnEvent(ctx context.Context, ev event.Event) error
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnSplitExecuted is called after a proportional split settles.
type OnSplitExecuted interface {
	Plugin
	OnSplitExecuted(ctx context.Context, ev event.Event, split event.Split) error
}

// OnAssetTransferred is called for every asset movement.
type OnAssetTransferred interface {
	Plugin
	OnAssetTransferred(ctx context.Context, ev event.Event, transfer event.AssetTransferred) error
}

// ──────────────────────────────────────────────────
// Exchange hooks
// ──────────────────────────────────────────────────

// OnListingCreated is called when a listing becomes active.
type OnListingCreated interface {
	Plugin
	OnListingCreated(ctx context.Context, ev event.Event, listed event.Listed) error
}

// OnListingCanceled is called when a seller cancels a listing.
type OnListingCanceled interface {
	Plugin
	OnListingCanceled(ctx context.Context, ev event.Event, canceled event.Canceled) error
}

// OnListingFulfilled is called when a buyer pays for a listing.
type OnListingFulfilled interface {
	Plugin
	OnListingFulfilled(ctx context.Context, ev event.Event, fulfilled event.Fulfilled) error
}

// ──────────────────────────────────────────────────
// Entitlement hooks
// ──────────────────────────────────────────────────

// OnEntitlementPurchased is called when a membership is bought or extended.
type OnEntitlementPurchased interface {
	Plugin
	OnEntitlementPurchased(ctx context.Context, ev event.Event, purchased event.Purchased) error
}

// ──────────────────────────────────────────────────
// Invoice hooks
// ──────────────────────────────────────────────────

// OnInvoiceIssued is called when an invoice is created.
type OnInvoiceIssued interface {
	Plugin
	OnInvoiceIssued(ctx context.Context, ev event.Event, issued event.InvoiceIssued) error
}

// OnInvoicePaid is called when an invoice is paid or marked paid.
type OnInvoicePaid interface {
	Plugin
	OnInvoicePaid(ctx context.Context, ev event.Event, paid event.InvoicePaid) error
}
