package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/settle/event"
	"github.com/xraph/settle/id"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so dispatch never reflects.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onInvocationCommitted  []OnInvocationCommitted
	onInvocationFailed     []OnInvocationFailed
	onEvent                []OnEvent
	onSplitExecuted        []OnSplitExecuted
	onAssetTransferred     []OnAssetTransferred
	onListingCreated       []OnListingCreated
	onListingCanceled      []OnListingCanceled
	onListingFulfilled     []OnListingFulfilled
	onEntitlementPurchased []OnEntitlementPurchased
	onInvoiceIssued        []OnInvoiceIssued
	onInvoicePaid          []OnInvoicePaid
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnInvocationCommitted); ok {
		r.onInvocationCommitted = append(r.onInvocationCommitted, v)
	}
	if v, ok := p.(OnInvocationFailed); ok {
		r.onInvocationFailed = append(r.onInvocationFailed, v)
	}
	if v, ok := p.(OnEvent); ok {
		r.onEvent = append(r.onEvent, v)
	}
	if v, ok := p.(OnSplitExecuted); ok {
		r.onSplitExecuted = append(r.onSplitExecuted, v)
	}
	if v, ok := p.(OnAssetTransferred); ok {
		r.onAssetTransferred = append(r.onAssetTransferred, v)
	}
	if v, ok := p.(OnListingCreated); ok {
		r.onListingCreated = append(r.onListingCreated, v)
	}
	if v, ok := p.(OnListingCanceled); ok {
		r.onListingCanceled = append(r.onListingCanceled, v)
	}
	if v, ok := p.(OnListingFulfilled); ok {
		r.onListingFulfilled = append(r.onListingFulfilled, v)
	}
	if v, ok := p.(OnEntitlementPurchased); ok {
		r.onEntitlementPurchased = append(r.onEntitlementPurchased, v)
	}
	if v, ok := p.(OnInvoiceIssued); ok {
		r.onInvoiceIssued = append(r.onInvoiceIssued, v)
	}
	if v, ok := p.(OnInvoicePaid); ok {
		r.onInvoicePaid = append(r.onInvoicePaid, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeFor[OnInit]()},
	{"OnShutdown", reflect.TypeFor[OnShutdown]()},
	{"OnInvocationCommitted", reflect.TypeFor[OnInvocationCommitted]()},
	{"OnInvocationFailed", reflect.TypeFor[OnInvocationFailed]()},
	{"OnEvent", reflect.TypeFor[OnEvent]()},
	{"OnSplitExecuted", reflect.TypeFor[OnSplitExecuted]()},
	{"OnAssetTransferred", reflect.TypeFor[OnAssetTransferred]()},
	{"OnListingCreated", reflect.TypeFor[OnListingCreated]()},
	{"OnListingCanceled", reflect.TypeFor[OnListingCanceled]()},
	{"OnListingFulfilled", reflect.TypeFor[OnListingFulfilled]()},
	{"OnEntitlementPurchased", reflect.TypeFor[OnEntitlementPurchased]()},
	{"OnInvoiceIssued", reflect.TypeFor[OnInvoiceIssued]()},
	{"OnInvoicePaid", reflect.TypeFor[OnInvoicePaid]()},
}

// implementedInterfaces returns the hook names implemented by p.
func implementedInterfaces(p Plugin) []string {
	var names []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// dispatch calls fn for every plugin in hooks, logging failures.
func dispatch[T Plugin](r *Registry, ctx context.Context, hook string, hooks []T, fn func(T) error) {
	for _, p := range hooks {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// snapshot copies a hook slice under the read lock.
func snapshot[T any](r *Registry, hooks *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *hooks
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, rt any) {
	dispatch(r, ctx, "OnInit", snapshot(r, &r.onInit), func(p OnInit) error {
		return p.OnInit(ctx, rt)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	dispatch(r, ctx, "OnShutdown", snapshot(r, &r.onShutdown), func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitInvocationCommitted reports a committed invocation.
func (r *Registry) EmitInvocationCommitted(ctx context.Context, rec Receipt) {
	dispatch(r, ctx, "OnInvocationCommitted", snapshot(r, &r.onInvocationCommitted), func(p OnInvocationCommitted) error {
		return p.OnInvocationCommitted(ctx, rec)
	})
}

// EmitInvocationFailed reports an aborted invocation.
func (r *Registry) EmitInvocationFailed(ctx context.Context, invocationID id.ID, cause error) {
	dispatch(r, ctx, "OnInvocationFailed", snapshot(r, &r.onInvocationFailed), func(p OnInvocationFailed) error {
		return p.OnInvocationFailed(ctx, invocationID, cause)
	})
}

// EmitEvents delivers committed events in order: first to OnEvent, then to
// the typed hook matching the payload.
func (r *Registry) EmitEvents(ctx context.Context, events []event.Event) {
	for _, ev := range events {
		r.emitEvent(ctx, ev)
	}
}

func (r *Registry) emitEvent(ctx context.Context, ev event.Event) {
	dispatch(r, ctx, "OnEvent", snapshot(r, &r.onEvent), func(p OnEvent) error {
		return p.OnEvent(ctx, ev)
	})

	switch pl := ev.Payload.(type) {
	case event.Split:
		dispatch(r, ctx, "OnSplitExecuted", snapshot(r, &r.onSplitExecuted), func(p OnSplitExecuted) error {
			return p.OnSplitExecuted(ctx, ev, pl)
		})
	case event.AssetTransferred:
		dispatch(r, ctx, "OnAssetTransferred", snapshot(r, &r.onAssetTransferred), func(p OnAssetTransferred) error {
			return p.OnAssetTransferred(ctx, ev, pl)
		})
	case event.Listed:
		dispatch(r, ctx, "OnListingCreated", snapshot(r, &r.onListingCreated), func(p OnListingCreated) error {
			return p.OnListingCreated(ctx, ev, pl)
		})
	case event.Canceled:
		dispatch(r, ctx, "OnListingCanceled", snapshot(r, &r.onListingCanceled), func(p OnListingCanceled) error {
			return p.OnListingCanceled(ctx, ev, pl)
		})
	case event.Fulfilled:
		dispatch(r, ctx, "OnListingFulfilled", snapshot(r, &r.onListingFulfilled), func(p OnListingFulfilled) error {
			return p.OnListingFulfilled(ctx, ev, pl)
		})
	case event.Purchased:
		dispatch(r, ctx, "OnEntitlementPurchased", snapshot(r, &r.onEntitlementPurchased), func(p OnEntitlementPurchased) error {
			return p.OnEntitlementPurchased(ctx, ev, pl)
		})
	case event.InvoiceIssued:
		dispatch(r, ctx, "OnInvoiceIssued", snapshot(r, &r.onInvoiceIssued), func(p OnInvoiceIssued) error {
			return p.OnInvoiceIssued(ctx, ev, pl)
		})
	case event.InvoicePaid:
		dispatch(r, ctx, "OnInvoicePaid", snapshot(r, &r.onInvoicePaid), func(p OnInvoicePaid) error {
			return p.OnInvoicePaid(ctx, ev, pl)
		})
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the settlement pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
