package directory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/settle"
	"github.com/xraph/settle/directory"
	"github.com/xraph/settle/event"
	"github.com/xraph/settle/host"
	"github.com/xraph/settle/internal/settletest"
	"github.com/xraph/settle/types"
)

const owner types.Address = "operator"

var (
	signers = settletest.Signers
	dir     = directory.At("names")
)

func setup(t *testing.T) *settletest.Harness {
	t.Helper()
	h := settletest.New(t)
	h.MustInvoke(signers(owner), func(env *host.Env) error {
		return dir.Init(env, owner)
	})
	h.Events.Reset()
	return h
}

func resolve(t *testing.T, h *settletest.Harness, name string) (types.Address, bool) {
	t.Helper()
	var (
		target types.Address
		ok     bool
	)
	h.View(func(env *host.Env) error {
		var err error
		target, ok, err = dir.Resolve(env, name)
		return err
	})
	return target, ok
}

func TestSetResolveRemove(t *testing.T) {
	h := setup(t)

	h.MustInvoke(signers(owner), func(env *host.Env) error {
		return dir.Set(env, "market", "exchange-1")
	})
	target, ok := resolve(t, h, "market")
	assert.True(t, ok)
	assert.Equal(t, types.Address("exchange-1"), target)

	h.MustInvoke(signers(owner), func(env *host.Env) error {
		return dir.Set(env, "market", "exchange-2")
	})
	target, _ = resolve(t, h, "market")
	assert.Equal(t, types.Address("exchange-2"), target)

	h.MustInvoke(signers(owner), func(env *host.Env) error {
		return dir.Remove(env, "market")
	})
	_, ok = resolve(t, h, "market")
	assert.False(t, ok)

	assert.Equal(t, []event.Topic{event.TopicNameSet, event.TopicNameSet, event.TopicNameRemoved}, h.Events.Topics())
}

func TestRemoveUnboundIsQuiet(t *testing.T) {
	h := setup(t)

	h.MustInvoke(signers(owner), func(env *host.Env) error {
		return dir.Remove(env, "ghost")
	})
	assert.Empty(t, h.Events.Events)
}

func TestOwnerOnly(t *testing.T) {
	h := setup(t)

	err := h.Invoke(signers("mallory"), func(env *host.Env) error {
		return dir.Set(env, "market", "mallory")
	})
	assert.ErrorIs(t, err, settle.ErrUnauthorized)

	err = h.Invoke(signers("mallory"), func(env *host.Env) error {
		return dir.Remove(env, "market")
	})
	assert.ErrorIs(t, err, settle.ErrUnauthorized)

	err = h.Invoke(signers(owner), func(env *host.Env) error {
		return dir.Set(env, "", "x")
	})
	assert.ErrorIs(t, err, settle.ErrInvalidInput)

	_, ok := resolve(t, h, "market")
	assert.False(t, ok)
}

func TestNamesAreEscaped(t *testing.T) {
	h := setup(t)

	h.MustInvoke(signers(owner), func(env *host.Env) error {
		return dir.Set(env, "a/b", "slash")
	})
	target, ok := resolve(t, h, "a/b")
	require.True(t, ok)
	assert.Equal(t, types.Address("slash"), target)

	_, ok = resolve(t, h, "a")
	assert.False(t, ok)
}

func TestUninitialized(t *testing.T) {
	h := settletest.New(t)

	err := h.Invoke(signers(owner), func(env *host.Env) error {
		return dir.Set(env, "market", "x")
	})
	assert.ErrorIs(t, err, settle.ErrUninitialized)

	err = h.RT.View(h.Context, func(env *host.Env) error {
		_, _, err := dir.Resolve(env, "market")
		return err
	})
	assert.ErrorIs(t, err, settle.ErrUninitialized)
}

func TestInitOnce(t *testing.T) {
	h := setup(t)

	err := h.Invoke(signers("other"), func(env *host.Env) error {
		return dir.Init(env, "other")
	})
	assert.ErrorIs(t, err, settle.ErrAlreadyInitialized)

	h.View(func(env *host.Env) error {
		got, err := dir.Owner(env)
		require.NoError(t, err)
		assert.Equal(t, owner, got)
		return nil
	})

	fresh := directory.At("fresh")
	err = h.Invoke(signers("mallory"), func(env *host.Env) error {
		return fresh.Init(env, owner)
	})
	assert.ErrorIs(t, err, settle.ErrUnauthorized)
}
