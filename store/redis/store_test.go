package redis_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xraph/settle/store"
	"github.com/xraph/settle/store/redis"
	"github.com/xraph/settle/store/storetest"
)

func TestConformance(t *testing.T) {
	url := os.Getenv("SETTLE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SETTLE_TEST_REDIS_URL not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := redis.Open(url)
		require.NoError(t, err)
		return s
	})
}
