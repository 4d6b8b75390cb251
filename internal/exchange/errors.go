package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrUnknownExchange is returned by New for ids nobody registered.
var ErrUnknownExchange = errors.New("unknown exchange")

// Kind classifies exchange failures.
type Kind int

const (
	KindUnknown Kind = iota
	// KindTimeout means the exchange did not answer in time. It is the only retryable kind.
	KindTimeout
	KindRateLimited
	KindInvalidSymbol
	KindAuth
	KindUnavailable
	KindBadResponse
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidSymbol:
		return "invalid_symbol"
	case KindAuth:
		return "auth"
	case KindUnavailable:
		return "unavailable"
	case KindBadResponse:
		return "bad_response"
	default:
		return "unknown"
	}
}

// Error is the typed failure every driver returns.
type Error struct {
	Kind     Kind
	Exchange string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Exchange, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the same request may succeed.
func (e *Error) Retryable() bool { return e.Kind == KindTimeout }

// IsRetryable reports whether err carries a retryable tag.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// NewError wraps err with a kind.
func NewError(kind Kind, exchange, op string, err error) *Error {
	return &Error{Kind: kind, Exchange: exchange, Op: op, Err: err}
}

// TransportError classifies an error returned by an HTTP round trip.
// Deadlines and network timeouts become KindTimeout; a cancelled parent
// context is passed through untouched so shutdowns are not retried.
func TransportError(exchange, op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTimeout, exchange, op, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return NewError(KindTimeout, exchange, op, err)
	}
	return NewError(KindUnavailable, exchange, op, err)
}

// StatusError classifies a non-2xx HTTP status.
func StatusError(exchange, op string, status int, body string) error {
	err := fmt.Errorf("status %d: %s", status, body)
	switch {
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return NewError(KindTimeout, exchange, op, err)
	case status == http.StatusTooManyRequests || status == 418:
		return NewError(KindRateLimited, exchange, op, err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(KindAuth, exchange, op, err)
	case status >= 500:
		return NewError(KindUnavailable, exchange, op, err)
	default:
		return NewError(KindBadResponse, exchange, op, err)
	}
}
