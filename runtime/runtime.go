// Package runtime is the reference Ledger Runtime. It executes contract
// invocations one at a time against a store.Store: each invocation sees a
// consistent prior state, and its writes are applied in one atomic batch or
// not at all. Runtimes in other processes may share the store; a batch whose
// reads went stale is rejected by the store and the invocation is rerun. Events published by an invocation reach plugins only after
// the batch is committed.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/settle"
	"github.com/xraph/settle/clock"
	"github.com/xraph/settle/host"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/plugin"
	"github.com/xraph/settle/store"
	"github.com/xraph/settle/types"
)

// TracerName is the instrumentation scope of invocation spans.
const TracerName = "github.com/xraph/settle/runtime"

// DefaultCommitAttempts bounds how often an invocation is run when its
// commit conflicts with another runtime on the same store.
const DefaultCommitAttempts = 3

// Runtime executes invocations.
type Runtime struct {
	store   store.Store
	clock   clock.Clock
	plugins *plugin.Registry
	logger  *slog.Logger
	tracer  trace.Tracer
	migrate bool

	commitAttempts int

	// mu serializes invocations.
	mu sync.Mutex

	assetsMu sync.RWMutex
	assets   map[types.Address]host.AssetContract
}

// compile-time interface check
var _ host.AssetResolver = (*Runtime)(nil)

// New creates a new Runtime over s.
func New(s store.Store, opts ...Option) *Runtime {
	rt := &Runtime{
		store:   s,
		clock:   clock.NewManual(0),
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
		tracer:  otel.Tracer(TracerName),
		migrate: true,
		assets:  make(map[types.Address]host.AssetContract),

		commitAttempts: DefaultCommitAttempts,
	}

	for _, opt := range opts {
		opt(rt)
	}

	return rt
}

// Store returns the backing store.
func (rt *Runtime) Store() store.Store { return rt.store }

// Plugins returns the plugin registry.
func (rt *Runtime) Plugins() *plugin.Registry { return rt.plugins }

// Clock returns the ledger-sequence source.
func (rt *Runtime) Clock() clock.Clock { return rt.clock }

// Logger returns the runtime logger.
func (rt *Runtime) Logger() *slog.Logger { return rt.logger }

// RegisterAsset makes c reachable through host.Env.Transfer at address.
func (rt *Runtime) RegisterAsset(address types.Address, c host.AssetContract) error {
	if err := address.Validate(); err != nil {
		return err
	}
	rt.assetsMu.Lock()
	defer rt.assetsMu.Unlock()
	if _, exists := rt.assets[address]; exists {
		return fmt.Errorf("runtime: asset %s already registered", address)
	}
	rt.assets[address] = c
	return nil
}

// Asset implements host.AssetResolver.
func (rt *Runtime) Asset(address types.Address) (host.AssetContract, bool) {
	rt.assetsMu.RLock()
	defer rt.assetsMu.RUnlock()
	c, ok := rt.assets[address]
	return c, ok
}

// Start migrates the store and initializes plugins.
func (rt *Runtime) Start(ctx context.Context) error {
	if rt.migrate {
		if err := rt.store.Migrate(ctx); err != nil {
			return fmt.Errorf("runtime: migrate: %w", err)
		}
	}

	rt.plugins.EmitInit(ctx, rt)

	rt.logger.Info("settle runtime started",
		"plugins", rt.plugins.Count(),
		"assets", len(rt.assets),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (rt *Runtime) Stop() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.plugins.EmitShutdown(context.Background())

	return rt.store.Close()
}

// ──────────────────────────────────────────────────
// Invocations
// ──────────────────────────────────────────────────

// Invoke runs fn as one atomic invocation authorized by signers. If fn
// returns an error nothing it wrote is applied and the error is returned
// unchanged. Otherwise its writes are committed in one batch, guarded by the
// values fn read, and its events are dispatched to plugins in publish order.
// When another runtime sharing the store commits over those values first,
// fn is run again on fresh state, up to the configured commit attempts.
func (rt *Runtime) Invoke(ctx context.Context, signers []types.Address, fn func(env *host.Env) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	invocationID := id.NewInvocationID()
	ctx, span := rt.tracer.Start(ctx, "settle.invoke",
		trace.WithAttributes(
			attribute.String("settle.invocation_id", invocationID.String()),
			attribute.Int("settle.signers", len(signers)),
		),
	)
	defer span.End()

	rt.mu.Lock()
	defer rt.mu.Unlock()

	start := time.Now()
	for attempt := 1; ; attempt++ {
		seq, err := rt.clock.Sequence(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "clock")
			return fmt.Errorf("runtime: read sequence: %w", err)
		}
		span.SetAttributes(
			attribute.Int64("settle.sequence", int64(seq)),
			attribute.Int("settle.attempt", attempt),
		)

		env := host.New(ctx, host.Params{
			Reader:       rt.store,
			Sequence:     seq,
			Signers:      signers,
			Assets:       rt,
			InvocationID: invocationID,
		})

		if err := fn(env); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "aborted")
			rt.logger.Debug("invocation aborted",
				"invocation", invocationID.String(),
				"sequence", seq,
				"error", err,
			)
			rt.plugins.EmitInvocationFailed(ctx, invocationID, err)
			return err
		}

		ops := env.Changes()
		if len(ops) > 0 {
			if err := rt.store.Apply(ctx, append(env.Checks(), ops...)); err != nil {
				if errors.Is(err, settle.ErrConflict) && attempt < rt.commitAttempts {
					rt.logger.Debug("invocation conflicted, retrying",
						"invocation", invocationID.String(),
						"attempt", attempt,
						"error", err,
					)
					continue
				}
				span.RecordError(err)
				span.SetStatus(codes.Error, "commit")
				rt.logger.Error("invocation commit failed",
					"invocation", invocationID.String(),
					"writes", len(ops),
					"attempts", attempt,
					"error", err,
				)
				rt.plugins.EmitInvocationFailed(ctx, invocationID, err)
				return fmt.Errorf("%w: %w", settle.ErrCommitFailed, err)
			}
		}

		events := env.Events()
		span.SetAttributes(
			attribute.Int("settle.writes", len(ops)),
			attribute.Int("settle.events", len(events)),
		)

		// Committed: plugins run even if the caller has gone away. Dispatch
		// while still holding the lock so plugins see commit order.
		dispatch := context.WithoutCancel(ctx)
		rt.plugins.EmitEvents(dispatch, events)
		rt.plugins.EmitInvocationCommitted(dispatch, plugin.Receipt{
			InvocationID: invocationID,
			Sequence:     seq,
			Writes:       len(ops),
			Events:       len(events),
			Elapsed:      time.Since(start),
		})

		return nil
	}
}

// View runs fn against current state without authorization. Writes fail
// with settle.ErrReadOnly.
func (rt *Runtime) View(ctx context.Context, fn func(env *host.Env) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	seq, err := rt.clock.Sequence(ctx)
	if err != nil {
		return fmt.Errorf("runtime: read sequence: %w", err)
	}

	return fn(host.New(ctx, host.Params{
		Reader:   rt.store,
		Sequence: seq,
		Assets:   rt,
		ReadOnly: true,
	}))
}

// Call is Invoke for operations that return a value.
func Call[T any](ctx context.Context, rt *Runtime, signers []types.Address, fn func(env *host.Env) (T, error)) (T, error) {
	var out T
	err := rt.Invoke(ctx, signers, func(env *host.Env) error {
		v, err := fn(env)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Query is View for reads that return a value.
func Query[T any](ctx context.Context, rt *Runtime, fn func(env *host.Env) (T, error)) (T, error) {
	var out T
	err := rt.View(ctx, func(env *host.Env) error {
		v, err := fn(env)
		out = v
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Signers is a convenience for building signer lists.
func Signers(addrs ...types.Address) []types.Address { return addrs }
