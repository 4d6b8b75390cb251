package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsRetryable(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "timeout kind", err: NewError(KindTimeout, "Binance", "fetch_candles", errors.New("slow")), expected: true},
		{name: "wrapped timeout", err: fmt.Errorf("loop 3: %w", NewError(KindTimeout, "Binance", "fetch_candles", errors.New("slow"))), expected: true},
		{name: "rate limited", err: NewError(KindRateLimited, "Binance", "fetch_candles", errors.New("429")), expected: false},
		{name: "invalid symbol", err: NewError(KindInvalidSymbol, "Binance", "fetch_candles", errors.New("bad")), expected: false},
		{name: "plain error", err: errors.New("boom"), expected: false},
		{name: "nil", err: nil, expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsRetryable(tc.err))
		})
	}
}

func TestTransportError(t *testing.T) {
	assert.Equal(t, KindTimeout, KindOf(TransportError("Wallex", "op", context.DeadlineExceeded)))
	assert.Equal(t, KindTimeout, KindOf(TransportError("Wallex", "op", fmt.Errorf("dial: %w", timeoutErr{}))))
	assert.Equal(t, KindUnavailable, KindOf(TransportError("Wallex", "op", errors.New("connection refused"))))

	// Shutdown must not look like a timeout.
	err := TransportError("Wallex", "op", context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsRetryable(err))
}

func TestStatusError(t *testing.T) {
	testCases := []struct {
		status   int
		expected Kind
	}{
		{http.StatusGatewayTimeout, KindTimeout},
		{http.StatusRequestTimeout, KindTimeout},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusUnauthorized, KindAuth},
		{http.StatusForbidden, KindAuth},
		{http.StatusBadGateway, KindUnavailable},
		{http.StatusBadRequest, KindBadResponse},
	}

	for _, tc := range testCases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			err := StatusError("Wallex", "fetch_candles", tc.status, "body")
			assert.Equal(t, tc.expected, KindOf(err))
			assert.Contains(t, err.Error(), "Wallex fetch_candles")
		})
	}
}

func TestFilterSymbols(t *testing.T) {
	markets := []string{"BTCUSDT", "ETHBTC", "BTC/USD", "usdcoin", "SOLUSDC"}
	assert.Equal(t, []string{"BTCUSDT", "BTC/USD", "SOLUSDC"}, FilterSymbols(markets, "USD"))
	assert.Empty(t, FilterSymbols(nil, "USD"))
}

type stubExchange struct{ Exchange }

func TestRegistry(t *testing.T) {
	Register("stub-test", func(opts Options) (Exchange, error) { return stubExchange{}, nil })
	t.Cleanup(func() { delete(registry, "stub-test") })

	ex, err := New(" Stub-Test ", Options{})
	assert.NoError(t, err)
	assert.IsType(t, stubExchange{}, ex)
	assert.Contains(t, Available(), "stub-test")

	_, err = New("nope", Options{})
	assert.ErrorIs(t, err, ErrUnknownExchange)

	assert.Panics(t, func() {
		Register("stub-test", func(opts Options) (Exchange, error) { return stubExchange{}, nil })
	})
}
