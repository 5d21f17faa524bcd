package settlement_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/settle"
	"github.com/xraph/settle/event"
	"github.com/xraph/settle/host"
	"github.com/xraph/settle/internal/settletest"
	"github.com/xraph/settle/settlement"
	"github.com/xraph/settle/types"
)

var (
	signers = settletest.Signers
	router  = settlement.At("split-router")
)

func amounts(vs ...int64) []types.Amount {
	out := make([]types.Amount, len(vs))
	for i, v := range vs {
		out[i] = types.NewAmount(v)
	}
	return out
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		shares []types.BasisPoints
		want   []types.Amount
	}{
		{"thirds of 10", 10, []types.BasisPoints{3333, 3333, 3334}, amounts(3, 3, 4)},
		{"quarters of 1000", 1000, []types.BasisPoints{2500, 2500, 5000}, amounts(250, 250, 500)},
		{"single", 7, []types.BasisPoints{10000}, amounts(7)},
		{"remainder to last", 1, []types.BasisPoints{5000, 5000}, amounts(0, 1)},
		{"zero share in middle", 99, []types.BasisPoints{5000, 0, 5000}, amounts(49, 0, 50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := settlement.Allocate(types.NewAmount(tt.amount), tt.shares)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))

			total, err := types.Sum(got...)
			require.NoError(t, err)
			assert.Equal(t, types.NewAmount(tt.amount).String(), total.String(), "parts must sum to amount")
			for i := range got {
				assert.Equalf(t, tt.want[i].String(), got[i].String(), "part %d", i)
			}
		})
	}
}

func TestAllocateConservation(t *testing.T) {
	shares := []types.BasisPoints{1, 333, 2999, 6667}
	for amount := int64(1); amount <= 2000; amount += 7 {
		parts, err := settlement.Allocate(types.NewAmount(amount), shares)
		require.NoError(t, err)
		total, err := types.Sum(parts...)
		require.NoError(t, err)
		require.Equal(t, types.NewAmount(amount).String(), total.String())
		for _, p := range parts {
			require.False(t, p.IsNegative())
		}
	}
}

func TestQuote(t *testing.T) {
	fee, net, err := settlement.Quote(types.NewAmount(200), 250)
	require.NoError(t, err)
	assert.Equal(t, "5", fee.String())
	assert.Equal(t, "195", net.String())

	fee, net, err = settlement.Quote(types.NewAmount(200), 0)
	require.NoError(t, err)
	assert.True(t, fee.IsZero())
	assert.Equal(t, "200", net.String())

	_, _, err = settlement.Quote(types.NewAmount(200), 10001)
	assert.ErrorIs(t, err, settle.ErrInvalidInput)
}

func TestSplit(t *testing.T) {
	h := settletest.New(t)
	h.Fund(1000, "payer")
	h.Events.Reset()

	h.MustInvoke(signers("payer"), func(env *host.Env) error {
		return router.Split(env, settletest.Asset, "payer",
			[]types.Address{"a", "b", "c"},
			[]types.BasisPoints{2500, 2500, 5000},
			types.NewAmount(1000))
	})

	assert.Equal(t, int64(250), h.Balance("a"))
	assert.Equal(t, int64(250), h.Balance("b"))
	assert.Equal(t, int64(500), h.Balance("c"))
	assert.Equal(t, int64(0), h.Balance("payer"))

	ev, ok := h.Events.Last(event.TopicSplit)
	require.True(t, ok)
	assert.Equal(t, types.Address("split-router"), ev.Contract)
	split := ev.Payload.(event.Split)
	assert.Equal(t, types.Address("payer"), split.Payer)
	assert.Equal(t, settletest.Asset, split.Asset)
	assert.Equal(t, "1000", split.Amount.String())
}

func TestSplitThirds(t *testing.T) {
	h := settletest.New(t)
	h.Fund(10, "payer")

	h.MustInvoke(signers("payer"), func(env *host.Env) error {
		return router.Split(env, settletest.Asset, "payer",
			[]types.Address{"a", "b", "c"},
			[]types.BasisPoints{3333, 3333, 3334},
			types.NewAmount(10))
	})

	assert.Equal(t, []int64{3, 3, 4}, []int64{h.Balance("a"), h.Balance("b"), h.Balance("c")})
}

func TestSplitSkipsZeroLegs(t *testing.T) {
	h := settletest.New(t)
	h.Fund(1, "payer")
	h.Events.Reset()

	h.MustInvoke(signers("payer"), func(env *host.Env) error {
		return router.Split(env, settletest.Asset, "payer",
			[]types.Address{"a", "b"},
			[]types.BasisPoints{5000, 5000},
			types.NewAmount(1))
	})

	assert.Equal(t, int64(0), h.Balance("a"))
	assert.Equal(t, int64(1), h.Balance("b"))
	assert.Equal(t, []event.Topic{event.TopicAssetTransferred, event.TopicSplit}, h.Events.Topics())
}

func TestSplitValidation(t *testing.T) {
	two := []types.Address{"a", "b"}

	tests := []struct {
		name       string
		signers    []types.Address
		recipients []types.Address
		shares     []types.BasisPoints
		amount     int64
		wantErr    error
	}{
		{"zero amount", signers("payer"), two, []types.BasisPoints{5000, 5000}, 0, settle.ErrInvalidInput},
		{"negative amount", signers("payer"), two, []types.BasisPoints{5000, 5000}, -5, settle.ErrInvalidInput},
		{"no recipients", signers("payer"), nil, nil, 100, settle.ErrInvalidInput},
		{"length mismatch", signers("payer"), two, []types.BasisPoints{10000}, 100, settle.ErrInvalidInput},
		{"shares short", signers("payer"), two, []types.BasisPoints{5000, 4999}, 100, types.ErrInvalidShares},
		{"shares overflow", signers("payer"), two, []types.BasisPoints{4294967295, 10001}, 100, settle.ErrInvalidInput},
		{"unauthorized", signers("mallory"), two, []types.BasisPoints{5000, 5000}, 100, settle.ErrUnauthorized},
		// Validation precedes authorization.
		{"invalid and unauthorized", nil, two, []types.BasisPoints{1, 1}, 100, types.ErrInvalidShares},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := settletest.New(t)
			h.Fund(1000, "payer")
			h.Events.Reset()

			err := h.Invoke(tt.signers, func(env *host.Env) error {
				return router.Split(env, settletest.Asset, "payer", tt.recipients, tt.shares, types.NewAmount(tt.amount))
			})
			require.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, int64(1000), h.Balance("payer"))
			assert.Equal(t, int64(0), h.Balance("a"))
			assert.Equal(t, int64(0), h.Balance("b"))
			assert.Empty(t, h.Events.Events)
		})
	}
}

func TestSplitShareErrorsAreValidation(t *testing.T) {
	h := settletest.New(t)
	h.Fund(1000, "payer")

	for _, shares := range [][]types.BasisPoints{{5000, 4999}, {4294967295, 10001}} {
		err := h.Invoke(signers("payer"), func(env *host.Env) error {
			return router.Split(env, settletest.Asset, "payer", []types.Address{"a", "b"}, shares, types.NewAmount(100))
		})
		assert.True(t, settle.IsValidation(err), "%v", shares)
		assert.ErrorIs(t, err, settle.ErrInvalidInput)
	}

	err := h.Invoke(signers("payer"), func(env *host.Env) error {
		return router.Split(env, settletest.Asset, "payer", []types.Address{"a", "b"}, []types.BasisPoints{4294967295, 10001}, types.NewAmount(100))
	})
	assert.ErrorIs(t, err, types.ErrOverflow, "the cause is kept")
}

func TestSplitTransferFailureRollsBack(t *testing.T) {
	h := settletest.New(t)
	h.Fund(100, "payer")
	h.MustInvoke(signers(settletest.Admin), func(env *host.Env) error {
		return h.Token.SetFrozen(env, "c", true)
	})
	h.Events.Reset()

	err := h.Invoke(signers("payer"), func(env *host.Env) error {
		return router.Split(env, settletest.Asset, "payer",
			[]types.Address{"a", "b", "c"},
			[]types.BasisPoints{2500, 2500, 5000},
			types.NewAmount(100))
	})
	require.ErrorIs(t, err, settle.ErrFrozen)

	// The first two legs succeeded inside the invocation but were discarded.
	assert.Equal(t, int64(100), h.Balance("payer"))
	assert.Equal(t, int64(0), h.Balance("a"))
	assert.Equal(t, int64(0), h.Balance("b"))
	assert.Empty(t, h.Events.Events)
}

func TestSplitInsufficientFunds(t *testing.T) {
	h := settletest.New(t)
	h.Fund(99, "payer")

	err := h.Invoke(signers("payer"), func(env *host.Env) error {
		return router.Split(env, settletest.Asset, "payer",
			[]types.Address{"a"}, []types.BasisPoints{10000}, types.NewAmount(100))
	})
	assert.ErrorIs(t, err, settle.ErrInsufficientBalance)
	assert.Equal(t, int64(99), h.Balance("payer"))
}
