package settle_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/settle"
	"github.com/xraph/settle/asset"
	"github.com/xraph/settle/clock"
	"github.com/xraph/settle/entitlement"
	"github.com/xraph/settle/host"
	"github.com/xraph/settle/runtime"
	"github.com/xraph/settle/settlement"
	"github.com/xraph/settle/store/memory"
)

// TestDocumentationExamples runs the flows shown in the package documentation.
func TestDocumentationExamples(t *testing.T) {
	ctx := context.Background()
	usd := asset.At("USD")
	clk := clock.NewManual(0)

	rt := runtime.New(memory.New(), runtime.WithAsset("USD", usd), runtime.WithClock(clk))
	require.NoError(t, rt.Start(ctx))
	defer func() { _ = rt.Stop() }()

	require.NoError(t, rt.Invoke(ctx, runtime.Signers("issuer"), func(env *host.Env) error {
		if err := usd.Init(env, "issuer", asset.Metadata{Name: "Dollar", Symbol: "USD", Decimals: 2}); err != nil {
			return err
		}
		return usd.Mint(env, "alice", settle.NewAmount(1000))
	}))

	t.Run("Split", func(t *testing.T) {
		err := rt.Invoke(ctx, runtime.Signers("alice"), func(env *host.Env) error {
			return settlement.At("router").Split(env, "USD", "alice",
				[]settle.Address{"bob", "carol"},
				[]settle.BasisPoints{7000, 3000},
				settle.NewAmount(100))
		})
		require.NoError(t, err)

		bob, err := runtime.Query(ctx, rt, func(env *host.Env) (settle.Amount, error) {
			return usd.Balance(env, "bob")
		})
		require.NoError(t, err)
		assert.Equal(t, "70", bob.String())
	})

	t.Run("SplitWithoutSigner", func(t *testing.T) {
		err := rt.Invoke(ctx, nil, func(env *host.Env) error {
			return settlement.At("router").Split(env, "USD", "alice",
				[]settle.Address{"bob"}, []settle.BasisPoints{10000}, settle.NewAmount(1))
		})
		assert.ErrorIs(t, err, settle.ErrUnauthorized)
	})

	t.Run("Entitlement", func(t *testing.T) {
		club := entitlement.At("club")
		require.NoError(t, rt.Invoke(ctx, runtime.Signers("bob"), func(env *host.Env) error {
			return club.Init(env, entitlement.Config{
				Creator:  "bob",
				Asset:    "USD",
				Price:    settle.NewAmount(10),
				Duration: 100,
			})
		}))

		expiry, err := runtime.Call(ctx, rt, runtime.Signers("alice"), func(env *host.Env) (settle.Sequence, error) {
			return club.Purchase(env, "alice")
		})
		require.NoError(t, err)
		assert.Equal(t, settle.Sequence(100), expiry)

		require.NoError(t, clk.Set(101))
		active, err := runtime.Query(ctx, rt, func(env *host.Env) (bool, error) {
			return club.IsActive(env, "alice")
		})
		require.NoError(t, err)
		assert.False(t, active)
	})
}
