package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, 5*time.Second, cfg.CloseInterval)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Epoch.UTC())
	assert.True(t, cfg.Audit)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SETTLE_STORE", "postgres")
	t.Setenv("SETTLE_DSN", "postgres://localhost/settle")
	t.Setenv("SETTLE_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("SETTLE_CLOSE_INTERVAL", "1s")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	b := cfg.backend()
	assert.Equal(t, "postgres", b.Driver)
	assert.Equal(t, "postgres://localhost/settle", b.DSN)
	assert.Equal(t, "settle", b.Database)
}

func TestLoadConfigRejectsZeroInterval(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SETTLE_CLOSE_INTERVAL", "0s")

	_, err := loadConfig()
	assert.Error(t, err)
}

func TestNewMux(t *testing.T) {
	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "api")
	})
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "metrics")
	})
	mux := newMux(apiHandler, metricsHandler)

	for path, want := range map[string]string{"/metrics": "metrics", "/v1/split": "api", "/healthz": "api"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Body.String(), path)
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel(" WARN "))
	assert.Equal(t, slog.LevelInfo, parseLevel("chatty"))
}
