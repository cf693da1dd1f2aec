// internal/adapters/sheets/client.go
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"rental_kernel/internal/adapters/observability"
	"rental_kernel/internal/domain"
)

// Mode selects how mutation responses are treated.
type Mode string

const (
	// FireAndForget reports success once the request went out; the
	// response is never read. This matches what the script backend allows.
	FireAndForget Mode = "fire-and-forget"
	// Acknowledged reads the response and requires an explicit success.
	Acknowledged Mode = "ack"
)

const maxBody = 32 << 20

type Client struct {
	mu       sync.RWMutex
	endpoint string

	prefix string
	hc     *http.Client
	rl     *rate.Limiter
	mode   Mode
	now    func() time.Time
}

type Option func(*Client)

// WithPrefix overrides the required endpoint prefix.
func WithPrefix(p string) Option { return func(c *Client) { c.prefix = p } }

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.hc.Timeout = d
		}
	}
}

func WithRPS(rps int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.rl = rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}

func WithMode(m Mode) Option {
	return func(c *Client) {
		if m == Acknowledged {
			c.mode = Acknowledged
		}
	}
}

func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimSpace(endpoint),
		prefix:   "https://script.google.com",
		hc:       &http.Client{Timeout: 30 * time.Second},
		rl:       rate.NewLimiter(rate.Limit(5), 5),
		mode:     FireAndForget,
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Endpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoint
}

// SetEndpoint swaps the endpoint used by subsequent calls.
func (c *Client) SetEndpoint(u string) {
	c.mu.Lock()
	c.endpoint = strings.TrimSpace(u)
	c.mu.Unlock()
}

func (c *Client) Prefix() string { return c.prefix }

// ---- Public API ----

// GetDataset fetches the whole workbook as one JSON object. Numbers are
// kept as json.Number so money survives without float rounding.
func (c *Client) GetDataset(ctx context.Context) (map[string]any, error) {
	base := c.Endpoint()
	if err := domain.ValidateEndpoint(base, c.prefix); err != nil {
		return nil, err
	}
	u, _ := url.Parse(base)
	q := u.Query()
	q.Set("action", "getData")
	// unique per call so no intermediate cache can answer
	q.Set("_t", strconv.FormatInt(c.now().UnixNano(), 10))
	u.RawQuery = q.Encode()

	if err := c.rl.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "rental-kernel/1.0")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("sheets", "getData", 0, time.Since(start))
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("sheets", "getData", resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", domain.ErrTransport, err)
	}
	return decodeObject(body)
}

type command struct {
	Action domain.Action `json:"action"`
	Data   any           `json:"data"`
}

type ack struct {
	Status string `json:"status"`
	OK     *bool  `json:"ok"`
	Error  string `json:"error"`
}

// Send posts one command. It never retries: a second attempt could
// duplicate a row in the sheet.
func (c *Client) Send(ctx context.Context, action domain.Action, data any) (domain.MutationResult, error) {
	res := domain.MutationResult{Action: action}
	base := c.Endpoint()
	if err := domain.ValidateEndpoint(base, c.prefix); err != nil {
		return res, err
	}
	payload, err := json.Marshal(command{Action: action, Data: data})
	if err != nil {
		return res, fmt.Errorf("encode %s: %w", action, err)
	}

	if err := c.rl.Wait(ctx); err != nil {
		return res, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}

	// text/plain keeps the script backend from demanding a CORS preflight
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base, bytes.NewReader(payload))
	if err != nil {
		return res, fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
	}
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")
	req.Header.Set("User-Agent", "rental-kernel/1.0")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("sheets", string(action), 0, time.Since(start))
		return res, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("sheets", string(action), resp.StatusCode, time.Since(start))

	if c.mode != Acknowledged {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return res, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return res, &domain.HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var a ack
	if err := json.Unmarshal(b, &a); err != nil {
		// dispatched, but nothing we can read as a confirmation
		return res, nil
	}
	switch {
	case strings.EqualFold(a.Status, "success") || (a.OK != nil && *a.OK):
		res.Confirmed = true
	case strings.EqualFold(a.Status, "error") || (a.OK != nil && !*a.OK):
		return res, fmt.Errorf("%w: %s", domain.ErrMutationRejected, a.Error)
	}
	return res, nil
}

// ---- Internals ----

func decodeObject(body []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: top-level value is not an object", domain.ErrMalformedResponse)
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	// the object must be the whole body
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after object", domain.ErrMalformedResponse)
	}
	return out, nil
}
