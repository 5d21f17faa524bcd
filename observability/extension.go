// Package observability provides a metrics extension for settle that records
// invocation outcomes and contract event counts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/settle/event"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInvocationCommitted  = (*MetricsExtension)(nil)
	_ plugin.OnInvocationFailed     = (*MetricsExtension)(nil)
	_ plugin.OnSplitExecuted        = (*MetricsExtension)(nil)
	_ plugin.OnAssetTransferred     = (*MetricsExtension)(nil)
	_ plugin.OnListingCreated       = (*MetricsExtension)(nil)
	_ plugin.OnListingCanceled      = (*MetricsExtension)(nil)
	_ plugin.OnListingFulfilled     = (*MetricsExtension)(nil)
	_ plugin.OnEntitlementPurchased = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceIssued        = (*MetricsExtension)(nil)
	_ plugin.OnInvoicePaid          = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide settlement metrics.
// Register it as a runtime plugin to track them automatically.
type MetricsExtension struct {
	// Invocation metrics
	InvocationsCommitted Counter
	InvocationsFailed    Counter
	InvocationLatency    Histogram
	InvocationWrites     Histogram

	// Settlement metrics
	SplitsExecuted Counter
	SplitAmount    Histogram
	AssetTransfers Counter
	TransferAmount Histogram

	// Exchange metrics
	ListingsCreated   Counter
	ListingsCanceled  Counter
	ListingsFulfilled Counter
	ExchangeFees      Histogram

	// Entitlement metrics
	EntitlementsPurchased Counter

	// Invoice metrics
	InvoicesIssued Counter
	InvoicesPaid   Counter
	InvoiceAmount  Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		InvocationsCommitted: factory.Counter("settle.invocation.committed"),
		InvocationsFailed:    factory.Counter("settle.invocation.failed"),
		InvocationLatency:    factory.Histogram("settle.invocation.latency_ms"),
		InvocationWrites:     factory.Histogram("settle.invocation.writes"),

		SplitsExecuted: factory.Counter("settle.split.executed"),
		SplitAmount:    factory.Histogram("settle.split.amount"),
		AssetTransfers: factory.Counter("settle.asset.transfers"),
		TransferAmount: factory.Histogram("settle.asset.transfer.amount"),

		ListingsCreated:   factory.Counter("settle.exchange.listed"),
		ListingsCanceled:  factory.Counter("settle.exchange.canceled"),
		ListingsFulfilled: factory.Counter("settle.exchange.fulfilled"),
		ExchangeFees:      factory.Histogram("settle.exchange.fee"),

		EntitlementsPurchased: factory.Counter("settle.entitlement.purchased"),

		InvoicesIssued: factory.Counter("settle.invoice.issued"),
		InvoicesPaid:   factory.Counter("settle.invoice.paid"),
		InvoiceAmount:  factory.Histogram("settle.invoice.amount"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ──────────────────────────────────────────────────
// Invocation hooks
// ──────────────────────────────────────────────────

// OnInvocationCommitted implements plugin.OnInvocationCommitted.
func (m *MetricsExtension) OnInvocationCommitted(_ context.Context, r plugin.Receipt) error {
	m.InvocationsCommitted.Inc()
	m.InvocationLatency.Observe(float64(r.Elapsed.Microseconds()) / 1000)
	m.InvocationWrites.Observe(float64(r.Writes))
	return nil
}

// OnInvocationFailed implements plugin.OnInvocationFailed.
func (m *MetricsExtension) OnInvocationFailed(_ context.Context, _ id.ID, _ error) error {
	m.InvocationsFailed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnSplitExecuted implements plugin.OnSplitExecuted.
func (m *MetricsExtension) OnSplitExecuted(_ context.Context, _ event.Event, split event.Split) error {
	m.SplitsExecuted.Inc()
	m.SplitAmount.Observe(split.Amount.Decimal().InexactFloat64())
	return nil
}

// OnAssetTransferred implements plugin.OnAssetTransferred.
func (m *MetricsExtension) OnAssetTransferred(_ context.Context, _ event.Event, t event.AssetTransferred) error {
	m.AssetTransfers.Inc()
	m.TransferAmount.Observe(t.Amount.Decimal().InexactFloat64())
	return nil
}

// ──────────────────────────────────────────────────
// Exchange hooks
// ──────────────────────────────────────────────────

// OnListingCreated implements plugin.OnListingCreated.
func (m *MetricsExtension) OnListingCreated(_ context.Context, _ event.Event, _ event.Listed) error {
	m.ListingsCreated.Inc()
	return nil
}

// OnListingCanceled implements plugin.OnListingCanceled.
func (m *MetricsExtension) OnListingCanceled(_ context.Context, _ event.Event, _ event.Canceled) error {
	m.ListingsCanceled.Inc()
	return nil
}

// OnListingFulfilled implements plugin.OnListingFulfilled.
func (m *MetricsExtension) OnListingFulfilled(_ context.Context, _ event.Event, f event.Fulfilled) error {
	m.ListingsFulfilled.Inc()
	m.ExchangeFees.Observe(f.Fee.Decimal().InexactFloat64())
	return nil
}

// ──────────────────────────────────────────────────
// Entitlement and invoice hooks
// ──────────────────────────────────────────────────

// OnEntitlementPurchased implements plugin.OnEntitlementPurchased.
func (m *MetricsExtension) OnEntitlementPurchased(_ context.Context, _ event.Event, _ event.Purchased) error {
	m.EntitlementsPurchased.Inc()
	return nil
}

// OnInvoiceIssued implements plugin.OnInvoiceIssued.
func (m *MetricsExtension) OnInvoiceIssued(_ context.Context, _ event.Event, issued event.InvoiceIssued) error {
	m.InvoicesIssued.Inc()
	m.InvoiceAmount.Observe(issued.Amount.Decimal().InexactFloat64())
	return nil
}

// OnInvoicePaid implements plugin.OnInvoicePaid.
func (m *MetricsExtension) OnInvoicePaid(_ context.Context, _ event.Event, _ event.InvoicePaid) error {
	m.InvoicesPaid.Inc()
	return nil
}
