package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navid-fn/radar/internal/exchange"
)

func newTestBinance(t *testing.T, handler http.HandlerFunc) *Binance {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(exchange.Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
}

func TestFetchCandles(t *testing.T) {
	b := newTestBinance(t, func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		assert.Equal(t, "1609459200000", r.URL.Query().Get("startTime"))
		assert.Equal(t, "500", r.URL.Query().Get("limit"))
		_, _ = rw.Write([]byte(`[
			[1609459200000, "100.0", "110.0", "90.0", "105.0", "10.5", 1609462799999, "1050.0", 42, "5.0", "500.0", "0"],
			[1609462800000, "105.0", "115.0", "95.0", "111.0", "7.25", 1609466399999, "800.0", 17, "3.0", "300.0", "0"]
		]`))
	})

	rows, err := b.FetchCandles(context.Background(), "BTCUSDT", 500, 1609459200000, "1h")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, exchange.RawCandle{
		OpenTime: 1609459200000,
		Open:     "100.0",
		High:     "110.0",
		Low:      "90.0",
		Close:    "105.0",
		Volume:   "10.5",
	}, rows[0])
	assert.Equal(t, "7.25", rows[1].Volume)
}

func TestFetchCandlesAPIErrors(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		body     string
		expected exchange.Kind
	}{
		{name: "invalid symbol", status: http.StatusBadRequest, body: `{"code":-1121,"msg":"Invalid symbol."}`, expected: exchange.KindInvalidSymbol},
		{name: "backend timeout", status: http.StatusServiceUnavailable, body: `{"code":-1007,"msg":"Timeout waiting for response from backend server."}`, expected: exchange.KindTimeout},
		{name: "too many requests", status: http.StatusTooManyRequests, body: `{"code":-1003,"msg":"Too many requests."}`, expected: exchange.KindRateLimited},
		{name: "bad api key", status: http.StatusUnauthorized, body: `{"code":-2015,"msg":"Invalid API-key."}`, expected: exchange.KindAuth},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := newTestBinance(t, func(rw http.ResponseWriter, r *http.Request) {
				rw.WriteHeader(tc.status)
				_, _ = rw.Write([]byte(tc.body))
			})

			_, err := b.FetchCandles(context.Background(), "BTCUSDT", 500, 0, "1h")
			require.Error(t, err)
			assert.Equal(t, tc.expected, exchange.KindOf(err))
			assert.Equal(t, tc.expected == exchange.KindTimeout, exchange.IsRetryable(err))
		})
	}
}

func TestFetchCandlesNetworkTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	b := New(exchange.Options{BaseURL: srv.URL, HTTPClient: &http.Client{Timeout: 20 * time.Millisecond}})
	_, err := b.FetchCandles(context.Background(), "BTCUSDT", 500, 0, "1h")
	require.Error(t, err)
	assert.True(t, exchange.IsRetryable(err))
}

func TestFetchCandlesUnsupportedTimeframe(t *testing.T) {
	b := New(exchange.Options{})
	_, err := b.FetchCandles(context.Background(), "BTCUSDT", 500, 0, "7m")
	assert.Equal(t, exchange.KindBadResponse, exchange.KindOf(err))
}

func TestLoadMarkets(t *testing.T) {
	b := newTestBinance(t, func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/exchangeInfo", r.URL.Path)
		_, _ = rw.Write([]byte(`{"timezone":"UTC","serverTime":1609459200000,"symbols":[
			{"symbol":"ETHUSDT","status":"TRADING","baseAsset":"ETH","quoteAsset":"USDT"},
			{"symbol":"LUNAUSDT","status":"BREAK","baseAsset":"LUNA","quoteAsset":"USDT"},
			{"symbol":"BTCUSDT","status":"TRADING","baseAsset":"BTC","quoteAsset":"USDT"},
			{"symbol":"ETHBTC","status":"TRADING","baseAsset":"ETH","quoteAsset":"BTC"}
		]}`))
	})

	markets, err := b.LoadMarkets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHBTC", "ETHUSDT"}, markets)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, exchange.FilterSymbols(markets, "USD"))
}

func TestTimeframes(t *testing.T) {
	b := New(exchange.Options{})
	tf := b.Timeframes()
	assert.Equal(t, 60, tf["1m"])
	assert.Equal(t, 3600, tf["1h"])
	assert.Equal(t, 604800, tf["1w"])

	// Callers get a copy.
	tf["1h"] = 1
	assert.Equal(t, 3600, b.Timeframes()["1h"])
	assert.Equal(t, 50*time.Millisecond, b.RateLimit())
}
