// Package settle provides payment settlement and marketplace contracts for Go
// applications.
//
// Settle is designed as a library. Contracts are plain Go values addressed by
// an Address, and every call runs inside an invocation of the runtime: it is
// authorized by a set of signers, sees a consistent snapshot of state, and
// commits all of its writes and events together or not at all. It provides:
//
//   - Exact basis-point payment splits through any registered asset
//   - Fixed-price listings with an optional platform fee
//   - Time-bounded entitlements measured in ledger sequences
//   - Invoices, a name directory and non-fungible badges
//   - Pluggable state stores (memory, SQLite, Postgres, Mongo, Redis)
//   - Plugin hooks for metrics, audit trails and event publishing
//
// # Quick Start
//
// Create a runtime over a store and register an asset:
//
//	import (
//	    "github.com/xraph/settle/asset"
//	    "github.com/xraph/settle/runtime"
//	    "github.com/xraph/settle/store/memory"
//	)
//
//	usd := asset.At("USD")
//	rt := runtime.New(memory.New(), runtime.WithAsset("USD", usd))
//	if err := rt.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Stop()
//
// # Invocations
//
// Writes go through Invoke. The signers are the principals the call may act
// for; contracts check them with Env.RequireAuth:
//
//	err := rt.Invoke(ctx, runtime.Signers("alice"), func(env *host.Env) error {
//	    return settlement.At("router").Split(env, "USD", "alice",
//	        []settle.Address{"bob", "carol"},
//	        []settle.BasisPoints{7000, 3000},
//	        settle.NewAmount(100))
//	})
//
// Reads go through View or the generic Query helper, which never commit.
//
// # Ledger Sequence
//
// Time is the ledger sequence, a counter supplied by a clock.Clock. The
// Interval clock derives it from wall time; the Manual clock is set by hand
// and is what tests use.
//
// # Deployment
//
// The genesis package applies a YAML manifest of contract instances to a
// runtime. Applying the same manifest again leaves configured instances as
// they are. The cmd/settled binary serves a deployment over HTTP.
package settle
