// Package settletest builds a runtime with a funded reference asset for
// contract tests.
package settletest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xraph/settle/asset"
	"github.com/xraph/settle/clock"
	"github.com/xraph/settle/event"
	"github.com/xraph/settle/host"
	"github.com/xraph/settle/runtime"
	"github.com/xraph/settle/store/memory"
	"github.com/xraph/settle/types"
)

const (
	// Asset is the address of the test asset.
	Asset types.Address = "USD"
	// Admin administers the test asset.
	Admin types.Address = "issuer"
)

// Harness is a started runtime with one registered asset.
type Harness struct {
	T       *testing.T
	RT      *runtime.Runtime
	Clock   *clock.Manual
	Token   asset.Token
	Events  *EventLog
	Context context.Context
}

// New starts a runtime at ledger sequence 0.
func New(t *testing.T) *Harness {
	t.Helper()

	h := &Harness{
		T:       t,
		Clock:   clock.NewManual(0),
		Token:   asset.At(Asset),
		Events:  &EventLog{},
		Context: context.Background(),
	}
	h.RT = runtime.New(memory.New(),
		runtime.WithClock(h.Clock),
		runtime.WithAsset(Asset, h.Token),
		runtime.WithPlugin(h.Events),
	)
	require.NoError(t, h.RT.Start(h.Context))
	t.Cleanup(func() { _ = h.RT.Stop() })

	h.MustInvoke([]types.Address{Admin}, func(env *host.Env) error {
		return h.Token.Init(env, Admin, asset.Metadata{Name: "Test Dollar", Symbol: "USD", Decimals: 2})
	})
	return h
}

// Invoke runs fn authorized by signers.
func (h *Harness) Invoke(signers []types.Address, fn func(env *host.Env) error) error {
	return h.RT.Invoke(h.Context, signers, fn)
}

// MustInvoke is Invoke that fails the test on error.
func (h *Harness) MustInvoke(signers []types.Address, fn func(env *host.Env) error) {
	h.T.Helper()
	require.NoError(h.T, h.Invoke(signers, fn))
}

// Fund mints amount of the test asset to each account.
func (h *Harness) Fund(amount int64, accounts ...types.Address) {
	h.T.Helper()
	h.MustInvoke([]types.Address{Admin}, func(env *host.Env) error {
		for _, a := range accounts {
			if err := h.Token.Mint(env, a, types.NewAmount(amount)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Balance returns the committed balance of account.
func (h *Harness) Balance(account types.Address) int64 {
	h.T.Helper()
	bal, err := runtime.Query(h.Context, h.RT, func(env *host.Env) (types.Amount, error) {
		return h.Token.Balance(env, account)
	})
	require.NoError(h.T, err)
	return bal.Decimal().IntPart()
}

// Supply returns the committed total supply.
func (h *Harness) Supply() int64 {
	h.T.Helper()
	s, err := runtime.Query(h.Context, h.RT, func(env *host.Env) (types.Amount, error) {
		return h.Token.TotalSupply(env)
	})
	require.NoError(h.T, err)
	return s.Decimal().IntPart()
}

// View runs a read-only fn and fails the test on error.
func (h *Harness) View(fn func(env *host.Env) error) {
	h.T.Helper()
	require.NoError(h.T, h.RT.View(h.Context, fn))
}

// EventLog is a plugin recording committed events.
type EventLog struct {
	Events []event.Event
}

// Name implements plugin.Plugin.
func (l *EventLog) Name() string { return "settletest.events" }

// OnEvent implements plugin.OnEvent.
func (l *EventLog) OnEvent(_ context.Context, ev event.Event) error {
	l.Events = append(l.Events, ev)
	return nil
}

// Topics returns the recorded topics in order.
func (l *EventLog) Topics() []event.Topic {
	out := make([]event.Topic, 0, len(l.Events))
	for _, ev := range l.Events {
		out = append(out, ev.Topic)
	}
	return out
}

// Last returns the last event with topic, or false.
func (l *EventLog) Last(topic event.Topic) (event.Event, bool) {
	for i := len(l.Events) - 1; i >= 0; i-- {
		if l.Events[i].Topic == topic {
			return l.Events[i], true
		}
	}
	return event.Event{}, false
}

// Reset clears the log.
func (l *EventLog) Reset() { l.Events = nil }

// Signers is shorthand for a signer list.
func Signers(addrs ...types.Address) []types.Address { return addrs }
