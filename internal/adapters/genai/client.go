// internal/adapters/genai/client.go
package genai

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/time/rate"

	"rental_kernel/internal/adapters/observability"
	"rental_kernel/internal/domain"
)

const maxImageSide = 1024

// Client talks to the Gemini generateContent REST API.
type Client struct {
	base  string
	model string
	key   string
	hc    *http.Client
	rl    *rate.Limiter
}

func New(base, model, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		base:  strings.TrimRight(base, "/"),
		model: model,
		key:   key,
		hc:    &http.Client{Timeout: 60 * time.Second},
		rl:    rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// ---- Public API ----

func (c *Client) SuggestTask(ctx context.Context, description string) (string, error) {
	return c.generate(ctx, "suggestTask", request{
		Contents: []content{{Role: "user", Parts: []part{{Text: suggestPrompt(description)}}}},
		Config: &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   suggestionSchema,
		},
	})
}

func (c *Client) AnalyzeMaintenance(ctx context.Context, description string, img *domain.Image) (string, error) {
	parts := []part{{Text: maintenancePrompt(description)}}
	if img != nil && len(img.Data) > 0 {
		mime, data := prepareImage(img)
		parts = append(parts, part{InlineData: &blob{MimeType: mime, Data: base64.StdEncoding.EncodeToString(data)}})
	}
	return c.generate(ctx, "analyzeMaintenance", request{
		Contents: []content{{Role: "user", Parts: parts}},
		Config:   &generationConfig{Temperature: ptr(0.4)},
	})
}

func (c *Client) DraftPaymentReminder(ctx context.Context, inv domain.Invoice) (string, error) {
	return c.generate(ctx, "paymentReminder", request{
		Contents: []content{{Role: "user", Parts: []part{{Text: reminderPrompt(inv)}}}},
		Config:   &generationConfig{Temperature: ptr(0.7)},
	})
}

func (c *Client) DraftLeaseAgreement(ctx context.Context, t domain.Tenant) (string, error) {
	return c.generate(ctx, "leaseAgreement", request{
		Contents: []content{{Role: "user", Parts: []part{{Text: leasePrompt(t)}}}},
	})
}

// ---- Wire types ----

type blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      *float64       `json:"temperature,omitempty"`
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type request struct {
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Contents          []content         `json:"contents"`
	Config            *generationConfig `json:"generationConfig,omitempty"`
}

type response struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (r response) text() string {
	var b strings.Builder
	for _, cand := range r.Candidates {
		for _, p := range cand.Content.Parts {
			b.WriteString(p.Text)
		}
		if b.Len() > 0 {
			break
		}
	}
	return b.String()
}

// ---- Internals ----

// generate posts with client-side rate limiting and retries on 429 and
// transient 5xx, honoring Retry-After when provided.
func (c *Client) generate(ctx context.Context, op string, body request) (string, error) {
	body.SystemInstruction = &content{Parts: []part{{Text: systemInstruction}}}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", c.base, c.model)

	if err := c.rl.Wait(ctx); err != nil {
		return "", err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		// build a fresh request each attempt
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return "", err
		}
		req.Header.Set("x-goog-api-key", c.key)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "rental-kernel/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("genai", op, 0, time.Since(start))
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = fmt.Errorf("%w: %w", domain.ErrTransport, err)
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", lastErr
		}
		observability.ObserveExternal("genai", op, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			var out response
			err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&out)
			resp.Body.Close()
			if err != nil {
				return "", fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
			}
			return out.text(), nil

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = &domain.HTTPError{Status: resp.StatusCode}
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return "", &domain.HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		}
	}
	return "", lastErr
}

// prepareImage shrinks large photos and re-encodes them as JPEG. Formats
// imaging can't decode are sent unchanged.
func prepareImage(img *domain.Image) (string, []byte) {
	src, err := imaging.Decode(bytes.NewReader(img.Data), imaging.AutoOrientation(true))
	if err != nil {
		return img.MimeType, img.Data
	}
	var out image.Image = src
	if b := src.Bounds(); b.Dx() > maxImageSide || b.Dy() > maxImageSide {
		out = imaging.Fit(src, maxImageSide, maxImageSide, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return img.MimeType, img.Data
	}
	return "image/jpeg", buf.Bytes()
}

func ptr[T any](v T) *T { return &v }

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
