package api_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/settle"
	"github.com/xraph/settle/api"
	"github.com/xraph/settle/exchange"
	"github.com/xraph/settle/genesis"
	"github.com/xraph/settle/host"
	"github.com/xraph/settle/internal/settletest"
	"github.com/xraph/settle/types"
)

func newServer(t *testing.T) (*settletest.Harness, *httptest.Server) {
	t.Helper()
	h := settletest.New(t)
	h.MustInvoke(nil, func(env *host.Env) error {
		return exchange.At("market").Init(env, nil, 0)
	})
	dep := &genesis.Deployment{Contracts: map[types.Address]genesis.Kind{
		settletest.Asset: genesis.KindAsset,
		"market":         genesis.KindExchange,
		"router":         genesis.KindRouter,
		"names":          genesis.KindDirectory,
	}}
	srv := httptest.NewServer(api.New(h.RT, api.WithDeployment(dep)))
	t.Cleanup(srv.Close)
	return h, srv
}

func do(t *testing.T, srv *httptest.Server, method, path, signers, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if signers != "" {
		req.Header.Set(api.SignersHeader, signers)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	_, srv := newServer(t)
	status, body := do(t, srv, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestAssetEndpoints(t *testing.T) {
	h, srv := newServer(t)
	h.Fund(500, "alice")

	status, body := do(t, srv, http.MethodGet, "/v1/asset/USD/", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "500", body["total_supply"])

	status, body = do(t, srv, http.MethodGet, "/v1/asset/USD/balances/alice", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "500", body["balance"])
	assert.Equal(t, false, body["frozen"])

	transfer := `{"from":"alice","to":"bob","amount":"120"}`
	status, body = do(t, srv, http.MethodPost, "/v1/asset/USD/transfer", "", transfer)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", body["error"])
	assert.Equal(t, int64(500), h.Balance("alice"))

	status, body = do(t, srv, http.MethodPost, "/v1/asset/USD/transfer", "alice", transfer)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "380", body["balance"])
	assert.Equal(t, int64(120), h.Balance("bob"))

	status, body = do(t, srv, http.MethodPost, "/v1/asset/USD/transfer", "alice", `{"from":"alice","to":"bob","amount":"1000"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "insufficient_balance", body["error"])
}

func TestSplitEndpoint(t *testing.T) {
	h, srv := newServer(t)
	h.Fund(1000, "payer")

	req := `{"router":"router","asset":"USD","payer":"payer","recipients":["a","b"],"shares_bps":[3333,6667],"amount":"100"}`
	status, body := do(t, srv, http.MethodPost, "/v1/split", "payer", req)
	require.Equal(t, http.StatusOK, status)
	legs, ok := body["legs"].([]any)
	require.True(t, ok)
	require.Len(t, legs, 2)
	assert.Equal(t, "33", legs[0].(map[string]any)["amount"])
	assert.Equal(t, "67", legs[1].(map[string]any)["amount"])
	assert.Equal(t, int64(900), h.Balance("payer"))

	status, _ = do(t, srv, http.MethodPost, "/v1/split", "payer",
		`{"router":"elsewhere","asset":"USD","payer":"payer","recipients":["a"],"shares_bps":[10000],"amount":"1"}`)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListingFlow(t *testing.T) {
	h, srv := newServer(t)
	h.Fund(1000, "buyer")

	status, body := do(t, srv, http.MethodPost, "/v1/exchange/market/listings", "seller",
		`{"id":"7","seller":"seller","price":"250"}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, true, body["active"])

	status, body = do(t, srv, http.MethodPost, "/v1/exchange/market/listings", "seller",
		`{"id":"7","seller":"seller","price":"250"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "invalid_state", body["error"])

	status, body = do(t, srv, http.MethodPost, "/v1/exchange/market/listings/7/fulfill", "buyer",
		`{"asset":"USD","buyer":"buyer"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "250", body["net"])
	assert.Equal(t, int64(250), h.Balance("seller"))
	assert.Equal(t, int64(750), h.Balance("buyer"))

	status, body = do(t, srv, http.MethodGet, "/v1/exchange/market/listings/7", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["active"])

	status, _ = do(t, srv, http.MethodGet, "/v1/exchange/market/listings/8", "", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, srv, http.MethodGet, "/v1/exchange/market/listings/not-a-key", "", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRequestErrors(t *testing.T) {
	_, srv := newServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"undeployed contract", http.MethodGet, "/v1/exchange/USD/config", "", http.StatusNotFound, "not_found"},
		{"uninitialized directory", http.MethodPut, "/v1/directory/names/names/alice", `{"target":"alice"}`, http.StatusPreconditionFailed, "uninitialized"},
		{"unknown field", http.MethodPost, "/v1/asset/USD/transfer", `{"sender":"alice"}`, http.StatusBadRequest, "bad_request"},
		{"malformed body", http.MethodPost, "/v1/asset/USD/transfer", `{`, http.StatusBadRequest, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, srv, tt.method, tt.path, "alice", tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body["error"])
		})
	}
}

func TestInvalidSignersHeader(t *testing.T) {
	_, srv := newServer(t)
	status, body := do(t, srv, http.MethodPost, "/v1/asset/USD/transfer", "alice, ",
		`{"from":"alice","to":"bob","amount":"1"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "bad_request", body["error"])
}

func TestStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{settle.ErrNotFound, http.StatusNotFound, "not_found"},
		{settle.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{settle.ErrForbidden, http.StatusForbidden, "forbidden"},
		{settle.ErrUninitialized, http.StatusPreconditionFailed, "uninitialized"},
		{settle.ErrAlreadyInitialized, http.StatusConflict, "invalid_state"},
		{settle.Invalid("amount", "must be positive"), http.StatusBadRequest, "bad_request"},
		{fmt.Errorf("%w: shares_bps: %w", settle.ErrInvalidInput, types.ErrOverflow), http.StatusBadRequest, "bad_request"},
		{fmt.Errorf("wrapped: %w", settle.ErrFrozen), http.StatusUnprocessableEntity, "frozen"},
		{settle.ErrCommitFailed, http.StatusServiceUnavailable, "unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := api.Status(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
