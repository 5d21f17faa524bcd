package exchange_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/settle"
	"github.com/xraph/settle/event"
	"github.com/xraph/settle/exchange"
	"github.com/xraph/settle/host"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/internal/settletest"
	"github.com/xraph/settle/runtime"
	"github.com/xraph/settle/types"
)

const (
	platform types.Address = "platform"
	seller   types.Address = "seller"
	buyer    types.Address = "buyer"
)

var (
	signers = settletest.Signers
	market  = exchange.At("market")
	seven   = id.KeyFromUint64(7)
)

func setup(t *testing.T, feeBps types.BasisPoints, withPlatform bool) *settletest.Harness {
	t.Helper()
	h := settletest.New(t)
	h.Fund(1000, buyer)

	var p *types.Address
	if withPlatform {
		p = platform.Ptr()
	}
	h.MustInvoke(nil, func(env *host.Env) error {
		return market.Init(env, p, feeBps)
	})
	h.Events.Reset()
	return h
}

func create(h *settletest.Harness, key id.Key, price int64) error {
	return h.Invoke(signers(seller), func(env *host.Env) error {
		return market.Create(env, key, seller, types.NewAmount(price))
	})
}

func fulfill(h *settletest.Harness, key id.Key) (exchange.Receipt, error) {
	var r exchange.Receipt
	err := h.Invoke(signers(buyer), func(env *host.Env) error {
		var err error
		r, err = market.Fulfill(env, settletest.Asset, key, buyer)
		return err
	})
	return r, err
}

func listing(t *testing.T, h *settletest.Harness, key id.Key) exchange.Listing {
	t.Helper()
	var l exchange.Listing
	h.View(func(env *host.Env) error {
		var err error
		l, err = market.Get(env, key)
		return err
	})
	return l
}

func TestFulfillWithFee(t *testing.T) {
	h := setup(t, 250, true)
	require.NoError(t, create(h, seven, 200))

	r, err := fulfill(h, seven)
	require.NoError(t, err)
	assert.Equal(t, "5", r.Fee.String())
	assert.Equal(t, "195", r.Net.String())

	assert.Equal(t, int64(5), h.Balance(platform))
	assert.Equal(t, int64(195), h.Balance(seller))
	assert.Equal(t, int64(800), h.Balance(buyer))
	assert.False(t, listing(t, h, seven).Active)

	ev, ok := h.Events.Last(event.TopicFulfilled)
	require.True(t, ok)
	f := ev.Payload.(event.Fulfilled)
	assert.Equal(t, "200", f.Price.String())
	assert.Equal(t, "5", f.Fee.String())
	assert.Equal(t, buyer, f.Buyer)

	// A fulfilled listing cannot be fulfilled again.
	_, err = fulfill(h, seven)
	assert.ErrorIs(t, err, settle.ErrInvalidState)
	assert.Equal(t, int64(800), h.Balance(buyer))
}

func TestFulfillWithoutPlatformWaivesFee(t *testing.T) {
	h := setup(t, 250, false)
	require.NoError(t, create(h, seven, 200))

	r, err := fulfill(h, seven)
	require.NoError(t, err)
	assert.True(t, r.Fee.IsZero())
	assert.Equal(t, int64(200), h.Balance(seller))
	assert.Equal(t, int64(0), h.Balance(platform))
}

func TestFulfillFeeRoundsToZero(t *testing.T) {
	h := setup(t, 250, true)
	require.NoError(t, create(h, seven, 3))

	r, err := fulfill(h, seven)
	require.NoError(t, err)
	assert.True(t, r.Fee.IsZero())
	assert.Equal(t, int64(3), h.Balance(seller))
	assert.Equal(t, int64(0), h.Balance(platform))
}

func TestFulfillFullFee(t *testing.T) {
	h := setup(t, 10000, true)
	require.NoError(t, create(h, seven, 40))

	_, err := fulfill(h, seven)
	require.NoError(t, err)
	assert.Equal(t, int64(40), h.Balance(platform))
	assert.Equal(t, int64(0), h.Balance(seller))
}

func TestFulfillFailures(t *testing.T) {
	h := setup(t, 250, true)
	require.NoError(t, create(h, seven, 200))

	err := h.Invoke(signers("mallory"), func(env *host.Env) error {
		_, err := market.Fulfill(env, settletest.Asset, seven, buyer)
		return err
	})
	assert.ErrorIs(t, err, settle.ErrUnauthorized)

	_, err = fulfill(h, id.KeyFromUint64(8))
	assert.ErrorIs(t, err, settle.ErrNotFound)

	require.NoError(t, create(h, id.KeyFromUint64(9), 5000))
	_, err = fulfill(h, id.KeyFromUint64(9))
	assert.ErrorIs(t, err, settle.ErrInsufficientBalance)
	assert.True(t, listing(t, h, id.KeyFromUint64(9)).Active, "failed payment must leave the listing active")
	assert.Equal(t, int64(1000), h.Balance(buyer))
}

func TestFulfillUninitialized(t *testing.T) {
	h := settletest.New(t)
	h.Fund(1000, buyer)
	require.NoError(t, create(h, seven, 200))

	_, err := fulfill(h, seven)
	assert.ErrorIs(t, err, settle.ErrUninitialized)
	assert.True(t, listing(t, h, seven).Active)
}

func TestRelisting(t *testing.T) {
	h := setup(t, 0, true)

	require.NoError(t, create(h, seven, 100))
	assert.ErrorIs(t, create(h, seven, 100), settle.ErrInvalidState)

	require.NoError(t, h.Invoke(signers(seller), func(env *host.Env) error {
		return market.Cancel(env, seven, seller)
	}))
	assert.False(t, listing(t, h, seven).Active)

	require.NoError(t, create(h, seven, 150))
	l := listing(t, h, seven)
	assert.True(t, l.Active)
	assert.Equal(t, "150", l.Price.String())

	assert.Equal(t, []event.Topic{event.TopicListed, event.TopicCanceled, event.TopicListed}, h.Events.Topics())
}

func TestRelistAfterFulfill(t *testing.T) {
	h := setup(t, 0, true)
	require.NoError(t, create(h, seven, 100))
	_, err := fulfill(h, seven)
	require.NoError(t, err)

	require.NoError(t, create(h, seven, 100))
	assert.True(t, listing(t, h, seven).Active)
}

func TestCreateValidation(t *testing.T) {
	h := setup(t, 0, true)

	assert.ErrorIs(t, create(h, seven, 0), settle.ErrInvalidInput)
	assert.ErrorIs(t, create(h, seven, -1), settle.ErrInvalidInput)

	err := h.Invoke(signers(buyer), func(env *host.Env) error {
		return market.Create(env, seven, seller, types.NewAmount(10))
	})
	assert.ErrorIs(t, err, settle.ErrUnauthorized)

	h.View(func(env *host.Env) error {
		_, err := market.Get(env, seven)
		assert.ErrorIs(t, err, settle.ErrNotFound)
		return nil
	})
}

func TestCancel(t *testing.T) {
	h := setup(t, 0, true)
	require.NoError(t, create(h, seven, 100))

	err := h.Invoke(signers(seller), func(env *host.Env) error {
		return market.Cancel(env, id.KeyFromUint64(99), seller)
	})
	assert.ErrorIs(t, err, settle.ErrNotFound)

	err = h.Invoke(signers(buyer), func(env *host.Env) error {
		return market.Cancel(env, seven, seller)
	})
	assert.ErrorIs(t, err, settle.ErrUnauthorized)

	// Authorized, but not the stored seller.
	err = h.Invoke(signers(buyer), func(env *host.Env) error {
		return market.Cancel(env, seven, buyer)
	})
	assert.ErrorIs(t, err, settle.ErrForbidden)
	assert.True(t, listing(t, h, seven).Active)
}

func TestCancelInactiveListingIsPermitted(t *testing.T) {
	h := setup(t, 0, true)
	require.NoError(t, create(h, seven, 100))
	_, err := fulfill(h, seven)
	require.NoError(t, err)
	h.Events.Reset()

	// Canceling an already-ended listing succeeds and emits Canceled again.
	require.NoError(t, h.Invoke(signers(seller), func(env *host.Env) error {
		return market.Cancel(env, seven, seller)
	}))
	assert.False(t, listing(t, h, seven).Active)
	assert.Equal(t, []event.Topic{event.TopicCanceled}, h.Events.Topics())
}

func TestInitOnce(t *testing.T) {
	h := setup(t, 250, true)

	err := h.Invoke(nil, func(env *host.Env) error {
		return market.Init(env, types.Address("other").Ptr(), 10)
	})
	assert.ErrorIs(t, err, settle.ErrAlreadyInitialized)

	h.View(func(env *host.Env) error {
		cfg, err := market.Config(env)
		require.NoError(t, err)
		assert.Equal(t, types.BasisPoints(250), cfg.FeeBps)
		require.NotNil(t, cfg.Platform)
		assert.Equal(t, platform, *cfg.Platform)
		return nil
	})
}

func TestInitValidation(t *testing.T) {
	h := settletest.New(t)
	err := h.Invoke(nil, func(env *host.Env) error {
		return market.Init(env, nil, 10001)
	})
	assert.ErrorIs(t, err, settle.ErrInvalidInput)

	h.View(func(env *host.Env) error {
		_, err := market.Config(env)
		assert.ErrorIs(t, err, settle.ErrUninitialized)
		return nil
	})
}

func TestRandomKeys(t *testing.T) {
	h := setup(t, 0, true)
	key := id.NewKey()
	require.NoError(t, create(h, key, 1))
	assert.Equal(t, key, listing(t, h, key).ID)
}

func TestFulfillRacingReplica(t *testing.T) {
	h := setup(t, 0, false)
	const rival types.Address = "rival"
	h.Fund(1000, rival)
	require.NoError(t, create(h, seven, 100))

	// A second runtime over the same store. Not stopped: Stop closes the
	// shared store.
	replica := runtime.New(h.RT.Store(), runtime.WithClock(h.Clock), runtime.WithAsset(settletest.Asset, h.Token))

	attempts := 0
	err := h.Invoke(signers(buyer), func(env *host.Env) error {
		attempts++
		if attempts == 1 {
			if _, err := market.Get(env, seven); err != nil {
				return err
			}
			require.NoError(t, replica.Invoke(h.Context, signers(rival), func(env *host.Env) error {
				_, err := market.Fulfill(env, settletest.Asset, seven, rival)
				return err
			}))
		}
		_, err := market.Fulfill(env, settletest.Asset, seven, buyer)
		return err
	})
	require.ErrorIs(t, err, settle.ErrInvalidState, "the retry sees the rival's fulfillment")
	assert.Equal(t, 2, attempts)

	assert.Equal(t, int64(1000), h.Balance(buyer))
	assert.Equal(t, int64(900), h.Balance(rival))
	assert.Equal(t, int64(100), h.Balance(seller))
	assert.Equal(t, h.Supply(), h.Balance(buyer)+h.Balance(rival)+h.Balance(seller))
	assert.False(t, listing(t, h, seven).Active)
}
