// Package udf is the shared client for exchanges that serve candles through
// a TradingView UDF style history endpoint.
//
// Response format:
//
//	{
//	  "s": "ok",
//	  "t": [1562095800, 1562182200],
//	  "o": [146272500, "150551000.0000"],
//	  "h": [155869600, 161869500],
//	  "l": [140062400, 150551000],
//	  "c": [151440200, 157000000],
//	  "v": [18.221362316, 9.8592626506]
//	}
//
// Arrays are parallel: t[i], o[i], h[i], l[i], c[i], v[i] form one candle.
// Prices may be JSON numbers or numeric strings depending on the exchange.
package udf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/navid-fn/radar/internal/exchange"
)

// Resolution pairs the UDF resolution code with its length in seconds.
type Resolution struct {
	Code    string
	Seconds int
}

// Timeframes flattens a label->Resolution table into label->seconds.
func Timeframes(resolutions map[string]Resolution) map[string]int {
	out := make(map[string]int, len(resolutions))
	for k, r := range resolutions {
		out[k] = r.Seconds
	}
	return out
}

// History is the decoded history response.
type History struct {
	Status     string        `json:"s"`
	Error      string        `json:"errmsg"`
	Timestamps []int64       `json:"t"`
	Opens      []json.Number `json:"o"`
	Highs      []json.Number `json:"h"`
	Lows       []json.Number `json:"l"`
	Closes     []json.Number `json:"c"`
	Volumes    []json.Number `json:"v"`
}

// Client performs rate limited GET requests against one exchange and maps
// failures to exchange errors.
type Client struct {
	name        string
	baseURL     *url.URL
	http        *http.Client
	rateLimiter *rate.Limiter
}

// NewClient allows one request per interval.
func NewClient(name, baseURL string, httpClient *http.Client, interval time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid %s base url: %w", strings.ToLower(name), err)
	}
	return &Client{
		name:        name,
		baseURL:     u,
		http:        httpClient,
		rateLimiter: rate.NewLimiter(rate.Every(interval), 1),
	}, nil
}

// History fetches up to limit candles of res starting at sinceMs.
func (c *Client) History(ctx context.Context, path, symbol string, res Resolution, sinceMs int64, limit int) ([]exchange.RawCandle, error) {
	from := sinceMs / 1000
	to := from + int64(limit*res.Seconds) - 1

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("resolution", res.Code)
	q.Set("from", strconv.FormatInt(from, 10))
	q.Set("to", strconv.FormatInt(to, 10))

	var data History
	if err := c.Get(ctx, "fetch_candles", path, q, &data); err != nil {
		return nil, err
	}
	return data.Candles(c.name, limit)
}

// Candles zips the parallel arrays into at most limit rows.
func (h *History) Candles(exchangeName string, limit int) ([]exchange.RawCandle, error) {
	switch h.Status {
	case "ok":
	case "no_data":
		return nil, nil
	default:
		kind := exchange.KindBadResponse
		if strings.Contains(strings.ToLower(h.Error), "symbol") {
			kind = exchange.KindInvalidSymbol
		}
		return nil, exchange.NewError(kind, exchangeName, "fetch_candles", fmt.Errorf("API returned status %q: %s", h.Status, h.Error))
	}

	// Validate parallel arrays have same length
	length := len(h.Timestamps)
	if len(h.Opens) != length || len(h.Highs) != length ||
		len(h.Lows) != length || len(h.Closes) != length || len(h.Volumes) != length {
		return nil, exchange.NewError(exchange.KindBadResponse, exchangeName, "fetch_candles", fmt.Errorf("mismatched array lengths in OHLC response"))
	}

	out := make([]exchange.RawCandle, 0, min(length, limit))
	for i := 0; i < length; i++ {
		if len(out) == limit {
			break
		}
		out = append(out, exchange.RawCandle{
			OpenTime: h.Timestamps[i] * 1000,
			Open:     h.Opens[i].String(),
			High:     h.Highs[i].String(),
			Low:      h.Lows[i].String(),
			Close:    h.Closes[i].String(),
			Volume:   h.Volumes[i].String(),
		})
	}
	return out, nil
}

// Get decodes the JSON body of GET path?q into out.
func (c *Client) Get(ctx context.Context, op, path string, q url.Values, out any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return exchange.NewError(exchange.KindBadResponse, c.name, op, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return exchange.TransportError(c.name, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return exchange.StatusError(c.name, op, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// A body read can still time out after the headers arrived.
		if exchange.IsRetryable(exchange.TransportError(c.name, op, err)) {
			return exchange.NewError(exchange.KindTimeout, c.name, op, err)
		}
		return exchange.NewError(exchange.KindBadResponse, c.name, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
