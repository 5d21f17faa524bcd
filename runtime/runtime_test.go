package runtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/settle"
	"github.com/xraph/settle/clock"
	"github.com/xraph/settle/event"
	"github.com/xraph/settle/host"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/plugin"
	"github.com/xraph/settle/runtime"
	"github.com/xraph/settle/store"
	"github.com/xraph/settle/store/memory"
	"github.com/xraph/settle/types"
)

var counterKey = host.NewKey("C", "counter")

type capture struct {
	mu       sync.Mutex
	events   []event.Event
	receipts []plugin.Receipt
	failures []error
}

func (c *capture) Name() string { return "capture" }

func (c *capture) OnEvent(_ context.Context, ev event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *capture) OnInvocationCommitted(_ context.Context, r plugin.Receipt) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receipts = append(c.receipts, r)
	return nil
}

func (c *capture) OnInvocationFailed(_ context.Context, _ id.ID, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, err)
	return nil
}

func increment(env *host.Env) error {
	var n int
	if _, err := env.Get(counterKey, &n); err != nil {
		return err
	}
	if err := env.Set(counterKey, n+1); err != nil {
		return err
	}
	env.Publish("C", event.NameSet{Name: "counter"})
	return nil
}

func readCounter(t *testing.T, rt *runtime.Runtime) int {
	t.Helper()
	n, err := runtime.Query(context.Background(), rt, func(env *host.Env) (int, error) {
		var n int
		_, err := env.Get(counterKey, &n)
		return n, err
	})
	require.NoError(t, err)
	return n
}

func newRuntime(t *testing.T, opts ...runtime.Option) (*runtime.Runtime, *capture) {
	t.Helper()
	c := &capture{}
	rt := runtime.New(memory.New(), append([]runtime.Option{runtime.WithPlugin(c)}, opts...)...)
	require.NoError(t, rt.Start(context.Background()))
	t.Cleanup(func() { _ = rt.Stop() })
	return rt, c
}

func TestInvokeCommits(t *testing.T) {
	rt, c := newRuntime(t, runtime.WithClock(clock.NewManual(77)))
	ctx := context.Background()

	require.NoError(t, rt.Invoke(ctx, nil, increment))
	require.NoError(t, rt.Invoke(ctx, nil, increment))

	assert.Equal(t, 2, readCounter(t, rt))
	require.Len(t, c.events, 2)
	assert.Equal(t, types.Sequence(77), c.events[0].Sequence)
	assert.NotEqual(t, c.events[0].InvocationID, c.events[1].InvocationID)
	require.Len(t, c.receipts, 2)
	assert.Equal(t, 1, c.receipts[0].Writes)
	assert.Equal(t, 1, c.receipts[0].Events)
}

func TestInvokeRollsBackOnError(t *testing.T) {
	rt, c := newRuntime(t)
	ctx := context.Background()
	boom := errors.New("boom")

	require.NoError(t, rt.Invoke(ctx, nil, increment))
	err := rt.Invoke(ctx, nil, func(env *host.Env) error {
		if err := increment(env); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 1, readCounter(t, rt), "aborted writes must not be applied")
	assert.Len(t, c.events, 1, "aborted events must not be dispatched")
	require.Len(t, c.failures, 1)
	assert.ErrorIs(t, c.failures[0], boom)
}

func TestInvokeCanceledContext(t *testing.T) {
	rt, _ := newRuntime(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := rt.Invoke(ctx, nil, func(*host.Env) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestInvokeSigners(t *testing.T) {
	rt, _ := newRuntime(t)
	ctx := context.Background()

	err := rt.Invoke(ctx, runtime.Signers("alice"), func(env *host.Env) error {
		return env.RequireAuth("bob")
	})
	assert.ErrorIs(t, err, settle.ErrUnauthorized)

	assert.NoError(t, rt.Invoke(ctx, runtime.Signers("alice"), func(env *host.Env) error {
		return env.RequireAuth("alice")
	}))
}

func TestViewIsReadOnly(t *testing.T) {
	rt, _ := newRuntime(t)
	err := rt.View(context.Background(), increment)
	assert.ErrorIs(t, err, settle.ErrReadOnly)
	assert.Equal(t, 0, readCounter(t, rt))
}

func TestCall(t *testing.T) {
	rt, _ := newRuntime(t)
	got, err := runtime.Call(context.Background(), rt, nil, func(env *host.Env) (string, error) {
		return "ok", env.Set(counterKey, 5)
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 5, readCounter(t, rt))

	got, err = runtime.Call(context.Background(), rt, nil, func(*host.Env) (string, error) {
		return "partial", settle.ErrInvalidState
	})
	assert.ErrorIs(t, err, settle.ErrInvalidState)
	assert.Empty(t, got)
}

type failingStore struct {
	*memory.Store
}

func (failingStore) Apply(context.Context, []store.Op) error {
	return errors.New("disk full")
}

func TestInvokeCommitFailure(t *testing.T) {
	rt := runtime.New(failingStore{memory.New()})
	err := rt.Invoke(context.Background(), nil, increment)
	assert.ErrorIs(t, err, settle.ErrCommitFailed)
}

type nopAsset struct{}

func (nopAsset) Transfer(*host.Env, types.Address, types.Address, types.Amount) error { return nil }

func TestRegisterAsset(t *testing.T) {
	rt := runtime.New(memory.New(), runtime.WithAsset("USD", nopAsset{}))

	_, ok := rt.Asset("USD")
	assert.True(t, ok)
	_, ok = rt.Asset("EUR")
	assert.False(t, ok)

	assert.Error(t, rt.RegisterAsset("USD", nopAsset{}))
	assert.Error(t, rt.RegisterAsset("", nopAsset{}))

	err := rt.Invoke(context.Background(), nil, func(env *host.Env) error {
		return env.Transfer("EUR", "a", "b", types.NewAmount(1))
	})
	assert.ErrorIs(t, err, settle.ErrNoAsset)
}

type unmigratableStore struct {
	*memory.Store
}

func (unmigratableStore) Migrate(context.Context) error {
	return errors.New("no DDL rights")
}

func TestStartMigration(t *testing.T) {
	ctx := context.Background()

	err := runtime.New(unmigratableStore{memory.New()}).Start(ctx)
	assert.ErrorContains(t, err, "no DDL rights")

	rt := runtime.New(unmigratableStore{memory.New()}, runtime.WithoutMigrate())
	require.NoError(t, rt.Start(ctx))
	require.NoError(t, rt.Stop())
}

func TestInvokeRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	shared := memory.New()
	a := runtime.New(shared)
	b := runtime.New(shared)

	attempts := 0
	err := a.Invoke(ctx, nil, func(env *host.Env) error {
		attempts++
		var n int
		if _, err := env.Get(counterKey, &n); err != nil {
			return err
		}
		if attempts == 1 {
			// b commits between a's read and a's commit.
			require.NoError(t, b.Invoke(ctx, nil, increment))
		}
		return env.Set(counterKey, n+1)
	})
	require.NoError(t, err)

	assert.Equal(t, 2, attempts)
	assert.Equal(t, 2, readCounter(t, a), "neither increment may be lost")
}

func TestInvokeConflictExhausted(t *testing.T) {
	ctx := context.Background()
	shared := memory.New()
	c := &capture{}
	a := runtime.New(shared, runtime.WithCommitAttempts(1), runtime.WithPlugin(c))
	b := runtime.New(shared)

	err := a.Invoke(ctx, nil, func(env *host.Env) error {
		if err := increment(env); err != nil {
			return err
		}
		return b.Invoke(ctx, nil, increment)
	})
	require.ErrorIs(t, err, settle.ErrCommitFailed)
	assert.ErrorIs(t, err, settle.ErrConflict)

	assert.Equal(t, 1, readCounter(t, b))
	assert.Empty(t, c.events, "events of a rejected batch are dropped")
	require.Len(t, c.failures, 1)
}

type contextRecorder struct {
	errs []error
}

func (r *contextRecorder) Name() string { return "context-recorder" }

func (r *contextRecorder) OnEvent(ctx context.Context, _ event.Event) error {
	r.errs = append(r.errs, ctx.Err())
	return nil
}

func TestCommittedEventsOutliveCaller(t *testing.T) {
	rec := &contextRecorder{}
	rt, _ := newRuntime(t, runtime.WithPlugin(rec))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := rt.Invoke(ctx, nil, func(env *host.Env) error {
		cancel()
		return increment(env)
	})
	require.NoError(t, err)

	assert.Equal(t, 1, readCounter(t, rt))
	require.Len(t, rec.errs, 1)
	assert.NoError(t, rec.errs[0], "plugins of a committed invocation get a live context")
}
