package hyperliquid

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/logger"
)

// Throwaway secp256k1 key, widely published for local test chains. Its
// derived address is fixed, which pins the signer's address derivation.
const (
	testKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	t.Chdir(t.TempDir())

	log, err := logger.NewLogger("test")
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	client, err := NewClient(Config{
		BaseURL:    baseURL,
		PrivateKey: testKey,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	}, log)
	require.NoError(t, err)
	return client
}

// TestSignerAddressDerivation verifies the checksummed address is derived
// from the private key, with or without the 0x prefix.
func TestSignerAddressDerivation(t *testing.T) {
	signer, err := NewSigner(testKey)
	require.NoError(t, err)
	assert.Equal(t, testAddress, signer.Address())

	prefixed, err := NewSigner("0x" + testKey)
	require.NoError(t, err)
	assert.Equal(t, testAddress, prefixed.Address())

	_, err = NewSigner("not-a-key")
	assert.Error(t, err)
}

// TestSignActionCommitsToNonce verifies the signature binds the nonce: the
// same action signed under two nonces yields different signatures.
func TestSignActionCommitsToNonce(t *testing.T) {
	signer, err := NewSigner(testKey)
	require.NoError(t, err)

	action := orderActionPayload{
		Type:     "order",
		Orders:   []wireOrder{MarketOrder{Asset: "BTC", IsBuy: true, Size: 1}.wire()},
		Grouping: "na",
	}

	sig1, err := signer.SignAction(action, 1000)
	require.NoError(t, err)
	sig2, err := signer.SignAction(action, 1001)
	require.NoError(t, err)

	assert.Len(t, sig1.R, 66)
	assert.Len(t, sig1.S, 66)
	assert.Contains(t, []uint8{27, 28}, sig1.V)
	assert.NotEqual(t, sig1, sig2)
}

// TestOrderWireShapes verifies the tagged variants serialize to the
// venue's payload shape: market orders omit price and carry an empty
// market tag, limit orders carry price and time-in-force.
func TestOrderWireShapes(t *testing.T) {
	market, err := json.Marshal(MarketOrder{
		Asset: "BTC", IsBuy: true, Size: 0.5, ReduceOnly: true, ClientOrderID: "0xabc",
	}.wire())
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"BTC","b":true,"s":0.5,"r":true,"t":{"market":{}},"c":"0xabc"}`, string(market))

	cases := []struct {
		tif  string
		want string
	}{
		{"", TifGtc},
		{TifIoc, TifIoc},
		{TifAlo, TifAlo},
	}
	for _, tc := range cases {
		raw, err := json.Marshal(LimitOrder{
			Asset: "ETH", IsBuy: false, Size: 2, Price: 3000, Tif: tc.tif, ClientOrderID: "0xdef",
		}.wire())
		require.NoError(t, err)

		var got wireOrder
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, 3000.0, got.Price)
		require.NotNil(t, got.Type.Limit)
		assert.Equal(t, tc.want, got.Type.Limit.Tif)
		assert.Nil(t, got.Type.Market)
	}
}

// TestSubmitOrderSignsAndSends verifies the exchange envelope: typed
// action, monotonic nonce, and a split r/s/v signature.
func TestSubmitOrderSignsAndSends(t *testing.T) {
	var captured []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/exchange", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		captured = body
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	err := client.SubmitOrder(context.Background(), LimitOrder{
		Asset: "ETH", IsBuy: false, Size: 1.5, Price: 3000, Tif: TifIoc, ClientOrderID: "0x1",
	})
	require.NoError(t, err)

	var req exchangeRequest
	require.NoError(t, json.Unmarshal(captured, &req))

	assert.Equal(t, "order", req.Action.Type)
	assert.Equal(t, "na", req.Action.Grouping)
	require.Len(t, req.Action.Orders, 1)
	assert.Equal(t, "ETH", req.Action.Orders[0].Asset)
	assert.Equal(t, 3000.0, req.Action.Orders[0].Price)
	require.NotNil(t, req.Action.Orders[0].Type.Limit)
	assert.Equal(t, TifIoc, req.Action.Orders[0].Type.Limit.Tif)

	assert.Greater(t, req.Nonce, int64(0))
	assert.Len(t, req.Signature.R, 66)
	assert.Len(t, req.Signature.S, 66)
	assert.Contains(t, []uint8{27, 28}, req.Signature.V)
}

// TestSubmitOrderVenueRejection verifies a non-ok status surfaces the
// venue's reason as an error.
func TestSubmitOrderVenueRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"err","error":"Order must have minimum value of $10"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	err := client.SubmitOrder(context.Background(), MarketOrder{Asset: "BTC", IsBuy: true, Size: 0.0001})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "minimum value")
}

// TestRetryBudgetRecoversFromTransientFailures verifies the linear-backoff
// retry survives transient server errors and counts them for the
// API-error-rate breaker check.
func TestRetryBudgetRecoversFromTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "venue unavailable", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"BTC":"43250.5"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	mids, err := client.AllMids(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 43250.5, mids["BTC"])

	errors, requests := client.APICounters()
	assert.Equal(t, 2, errors)
	assert.Equal(t, 3, requests)
}

// TestRetryStopsOnNonRetryableError verifies a credentials-class failure
// is not retried against its budget.
func TestRetryStopsOnNonRetryableError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.ClearinghouseState(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CREDENTIALS")
	assert.Equal(t, int32(1), calls.Load())
}

// TestNonceMonotonic verifies nonces strictly increase even when drawn
// faster than the millisecond clock advances.
func TestNonceMonotonic(t *testing.T) {
	c := &Client{}

	prev := int64(0)
	for i := 0; i < 200; i++ {
		n := c.nextNonce()
		require.Greater(t, n, prev)
		prev = n
	}
}
