// Package backend is the portal's client for the GradTrust REST API. The
// portal never talks to the chain directly, every read and write goes through
// here.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Observer records the latency and outcome of each logical backend call.
type Observer interface {
	ObserveBackend(op string, fn func() error) error
}

type noopObserver struct{}

func (noopObserver) ObserveBackend(_ string, fn func() error) error { return fn() }

// maxResponseBody caps how much of a reply is buffered.
const maxResponseBody = 8 << 20

type Client struct {
	baseURL  string
	http     *http.Client
	breaker  *Breaker
	observer Observer
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithBreaker(b *Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		breaker:  NewBreaker(BreakerConfig{}),
		observer: noopObserver{},
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// call describes one round trip. Exactly one of jsonBody or form may be set.
type call struct {
	op       string
	method   string
	path     string
	query    url.Values
	jsonBody any
	form     *multipartForm
	header   http.Header
	out      any
	// keep lets the caller see the raw response, e.g. for Set-Cookie.
	keep func(*http.Response, []byte)
}

func (c *Client) do(ctx context.Context, cl call) error {
	return c.observer.ObserveBackend(cl.op, func() error {
		return c.breaker.Do(ctx, func(ctx context.Context) error {
			return c.roundTrip(ctx, cl)
		})
	})
}

func (c *Client) roundTrip(ctx context.Context, cl call) error {
	req, err := c.newRequest(ctx, cl)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", cl.op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", cl.op, err)
	}

	if cl.keep != nil {
		cl.keep(resp, body)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, body)
	}

	if err := checkSuccess(resp.StatusCode, body); err != nil {
		return err
	}

	if cl.out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, cl.out); err != nil {
		return fmt.Errorf("%s: decode response: %w", cl.op, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, cl call) (*http.Request, error) {
	u := c.baseURL + cl.path
	if len(cl.query) > 0 {
		u += "?" + cl.query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)

	switch {
	case cl.jsonBody != nil:
		raw, err := json.Marshal(cl.jsonBody)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", cl.op, err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	case cl.form != nil:
		buf, ct, err := cl.form.encode()
		if err != nil {
			return nil, fmt.Errorf("%s: encode form: %w", cl.op, err)
		}
		body = buf
		contentType = ct
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", cl.op, err)
	}

	for k, vs := range cl.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	return req, nil
}

// checkSuccess rejects 2xx replies whose body still says "success": false.
func checkSuccess(status int, body []byte) error {
	var env struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil
	}
	if env.Success != nil && !*env.Success {
		return newAPIError(status, body)
	}
	return nil
}

func noCache() http.Header {
	h := http.Header{}
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	return h
}

type multipartForm struct {
	fields [][2]string
}

func (f *multipartForm) add(k, v string) *multipartForm {
	f.fields = append(f.fields, [2]string{k, v})
	return f
}

func (f *multipartForm) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, kv := range f.fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
