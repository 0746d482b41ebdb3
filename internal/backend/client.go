// Package backend is the client of the remote Near&Now customer API.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nearandnow/cart-service/internal/wire"
)

// ErrNoToken is returned when a request context carries no bearer token.
var ErrNoToken = errors.New("no bearer token in context")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// RejectedError is returned when the backend answers 2xx with success=false.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return "rejected by backend"
	}
	return "rejected by backend: " + e.Message
}

type tokenKey struct{}

// WithToken returns a context carrying the customer's bearer token for
// outgoing requests.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token carried by ctx.
func TokenFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok && token != ""
}

// maxErrorBody caps how much of an error response body is kept.
const maxErrorBody = 512

type options struct {
	timeout   time.Duration
	transport http.RoundTripper
	tracer    trace.TracerProvider
	meter     metric.MeterProvider
}

// Option configures a Client.
type Option func(*options)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithTransport sets the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithTracerProvider sets the tracer provider for outgoing requests.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}

// WithMeterProvider sets the meter provider for outgoing requests.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meter = mp }
}

// Client talks to the customer API on behalf of the token in the request
// context.
type Client struct {
	base *url.URL
	http *http.Client
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse backend url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("backend url %q must be absolute", baseURL)
	}

	o := options{
		timeout:   10 * time.Second,
		transport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var otelOpts []otelhttp.Option
	if o.tracer != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(o.tracer))
	}
	if o.meter != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(o.meter))
	}

	return &Client{
		base: base,
		http: &http.Client{
			Timeout:   o.timeout,
			Transport: otelhttp.NewTransport(o.transport, otelOpts...),
		},
	}, nil
}

// Ping checks that the backend answers HTTP at all. Any response, whatever
// the status, counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.base.String(), http.NoBody)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "ping backend")
	}
	_ = resp.Body.Close()
	return nil
}

// request describes one call to the customer API.
type request struct {
	method string
	path   string
	query  url.Values
	body   func(e *jx.Encoder)
	// field decodes a top-level response field other than success and
	// message. It must consume the value, skipping unknown keys.
	field func(d *jx.Decoder, key string) error
}

// envelope is the status part common to all responses.
type envelope struct {
	success *bool
	message string
}

func (c *Client) do(ctx context.Context, r request) (envelope, error) {
	var env envelope

	token, ok := TokenFrom(ctx)
	if !ok {
		return env, ErrNoToken
	}

	// r.path is already escaped.
	p, err := url.PathUnescape(r.path)
	if err != nil {
		return env, errors.Wrapf(err, "unescape %q", r.path)
	}
	u := *c.base
	u.Path = c.base.Path + p
	u.RawPath = c.base.EscapedPath() + r.path
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader = http.NoBody
	if r.body != nil {
		e := jx.GetEncoder()
		defer jx.PutEncoder(e)
		r.body(e)
		body = bytes.NewReader(e.Bytes())
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return env, errors.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return env, errors.Wrapf(err, "%s %s", r.method, r.path)
	}
	defer func() { _ = resp.Body.Close() }()

	rd, err := decodedBody(resp)
	if err != nil {
		return env, errors.Wrap(err, "open response body")
	}
	defer func() { _ = rd.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(rd, maxErrorBody))
		return env, &StatusError{
			Method: r.method,
			Path:   r.path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(msg)),
		}
	}

	data, err := io.ReadAll(rd)
	if err != nil {
		return env, errors.Wrapf(err, "read %s %s", r.method, r.path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return env, nil
	}

	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "success":
			v, err := wire.Bool(d)
			if err != nil {
				return errors.Wrap(err, "success")
			}
			env.success = &v
			return nil
		case "message", "error":
			if d.Next() != jx.String {
				return d.Skip()
			}
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, key)
			}
			env.message = v
			return nil
		default:
			if r.field == nil {
				return d.Skip()
			}
			return r.field(d, key)
		}
	}); err != nil {
		return env, errors.Wrapf(err, "decode %s %s", r.method, r.path)
	}

	if env.success != nil && !*env.success {
		return env, &RejectedError{Message: env.message}
	}
	return env, nil
}

// decodedBody unwraps gzip-encoded responses. Setting Accept-Encoding
// explicitly turns off the transport's transparent decompression.
func decodedBody(resp *http.Response) (io.ReadCloser, error) {
	if !strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		return io.NopCloser(resp.Body), nil
	}
	zr, err := pgzip.NewReader(resp.Body)
	if err != nil {
		return nil, err
	}
	return zr, nil
}
