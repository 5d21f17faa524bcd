// Package audithook bridges settle contract events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on an
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/xraph/settle"
	"github.com/xraph/settle/event"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnSplitExecuted        = (*Extension)(nil)
	_ plugin.OnListingCreated       = (*Extension)(nil)
	_ plugin.OnListingCanceled      = (*Extension)(nil)
	_ plugin.OnListingFulfilled     = (*Extension)(nil)
	_ plugin.OnEntitlementPurchased = (*Extension)(nil)
	_ plugin.OnInvoiceIssued        = (*Extension)(nil)
	_ plugin.OnInvoicePaid          = (*Extension)(nil)
	_ plugin.OnInvocationFailed     = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a backend-neutral audit record.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges committed contract events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnSplitExecuted implements plugin.OnSplitExecuted.
func (e *Extension) OnSplitExecuted(ctx context.Context, ev event.Event, s event.Split) error {
	return e.record(ctx, ActionSplitExecuted, SeverityInfo, OutcomeSuccess,
		ResourceSplit, ev.ID.String(), CategorySettlement, nil,
		"contract", ev.Contract,
		"payer", s.Payer,
		"asset", s.Asset,
		"amount", s.Amount.String(),
	)
}

// ──────────────────────────────────────────────────
// Exchange hooks
// ──────────────────────────────────────────────────

// OnListingCreated implements plugin.OnListingCreated.
func (e *Extension) OnListingCreated(ctx context.Context, ev event.Event, l event.Listed) error {
	return e.record(ctx, ActionListingCreated, SeverityInfo, OutcomeSuccess,
		ResourceListing, l.ListingID.String(), CategoryExchange, nil,
		"contract", ev.Contract,
		"seller", l.Seller,
		"price", l.Price.String(),
	)
}

// OnListingCanceled implements plugin.OnListingCanceled.
func (e *Extension) OnListingCanceled(ctx context.Context, ev event.Event, c event.Canceled) error {
	return e.record(ctx, ActionListingCanceled, SeverityInfo, OutcomeSuccess,
		ResourceListing, c.ListingID.String(), CategoryExchange, nil,
		"contract", ev.Contract,
		"seller", c.Seller,
	)
}

// OnListingFulfilled implements plugin.OnListingFulfilled.
func (e *Extension) OnListingFulfilled(ctx context.Context, ev event.Event, f event.Fulfilled) error {
	return e.record(ctx, ActionListingFulfilled, SeverityInfo, OutcomeSuccess,
		ResourceListing, f.ListingID.String(), CategoryExchange, nil,
		"contract", ev.Contract,
		"seller", f.Seller,
		"buyer", f.Buyer,
		"price", f.Price.String(),
		"fee", f.Fee.String(),
	)
}

// ──────────────────────────────────────────────────
// Entitlement and invoice hooks
// ──────────────────────────────────────────────────

// OnEntitlementPurchased implements plugin.OnEntitlementPurchased.
func (e *Extension) OnEntitlementPurchased(ctx context.Context, ev event.Event, p event.Purchased) error {
	return e.record(ctx, ActionEntitlementPurchased, SeverityInfo, OutcomeSuccess,
		ResourceEntitlement, p.User.String(), CategoryAccess, nil,
		"contract", ev.Contract,
		"amount", p.Amount.String(),
		"expiry", uint32(p.Expiry),
	)
}

// OnInvoiceIssued implements plugin.OnInvoiceIssued.
func (e *Extension) OnInvoiceIssued(ctx context.Context, ev event.Event, inv event.InvoiceIssued) error {
	return e.record(ctx, ActionInvoiceIssued, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, strconv.FormatUint(inv.InvoiceID, 10), CategoryPayment, nil,
		"contract", ev.Contract,
		"issuer", inv.Issuer,
		"amount", inv.Amount.String(),
	)
}

// OnInvoicePaid implements plugin.OnInvoicePaid.
func (e *Extension) OnInvoicePaid(ctx context.Context, ev event.Event, inv event.InvoicePaid) error {
	kv := []any{
		"contract", ev.Contract,
		"issuer", inv.Issuer,
		"amount", inv.Amount.String(),
	}
	if inv.Payer != nil {
		kv = append(kv, "payer", *inv.Payer)
	}
	return e.record(ctx, ActionInvoicePaid, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, strconv.FormatUint(inv.InvoiceID, 10), CategoryPayment, nil,
		kv...,
	)
}

// ──────────────────────────────────────────────────
// Invocation hooks
// ──────────────────────────────────────────────────

// OnInvocationFailed implements plugin.OnInvocationFailed. Authorization
// failures are recorded as access denials.
func (e *Extension) OnInvocationFailed(ctx context.Context, invocationID id.ID, err error) error {
	if settle.IsAuthError(err) {
		return e.record(ctx, ActionAccessDenied, SeverityWarning, OutcomeFailure,
			ResourceInvocation, invocationID.String(), CategoryAccess, err,
		)
	}
	return e.record(ctx, ActionInvocationFailed, SeverityError, OutcomeFailure,
		ResourceInvocation, invocationID.String(), CategoryRuntime, err,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
