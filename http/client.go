package http

import (
	"context"
	"io"
	nethttp "net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/gaborage/go-bricks-rest/auth"
	"github.com/gaborage/go-bricks-rest/codec"
	"github.com/gaborage/go-bricks-rest/logger"
	"github.com/gaborage/go-bricks-rest/retry"
	"github.com/gaborage/go-bricks-rest/trace"
)

const (
	// DefaultTimeout is the default per-attempt timeout
	DefaultTimeout = 30 * time.Second

	// DefaultMaxErrorBodyBytes bounds the error body kept in an Envelope
	DefaultMaxErrorBodyBytes int64 = 1 << 20

	// DefaultMaxPayloadLogBytes bounds payloads written to debug logs
	DefaultMaxPayloadLogBytes = 4096
)

// Client dispatches REST calls. It is safe for concurrent use.
// Base address, timeout and default headers can only be changed until the
// first call is sent.
type Client struct {
	guard configGuard

	transport     Transport
	ownsTransport bool
	policy        retry.Policy
	codec         codec.Codec
	apiKeyHeader  string
	limiter       *rate.Limiter

	logger             logger.Logger
	logPayloads        bool
	maxPayloadLogBytes int
	requestIDHeader    string
	maxErrorBodyBytes  int64

	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor

	callCount   atomic.Int64
	released    atomic.Bool
	releaseOnce sync.Once
}

// New creates a client from opts.
func New(opts Options) (*Client, error) {
	c := &Client{
		transport:          opts.Transport,
		ownsTransport:      opts.OwnsTransport,
		policy:             opts.Retry,
		codec:              opts.Codec,
		apiKeyHeader:       opts.APIKeyHeader,
		limiter:            opts.RateLimiter,
		logger:             opts.Logger,
		logPayloads:        opts.LogPayloads,
		maxPayloadLogBytes: opts.MaxPayloadLogBytes,
		requestIDHeader:    opts.RequestIDHeader,
		maxErrorBodyBytes:  opts.MaxErrorBodyBytes,

		requestInterceptors:  slices.Clone(opts.RequestInterceptors),
		responseInterceptors: slices.Clone(opts.ResponseInterceptors),
	}

	if c.transport == nil {
		c.transport, _ = defaultTransportFactory("")
		c.ownsTransport = true
	}
	if c.policy == nil {
		c.policy = retry.DefaultBackoff()
	}
	if c.codec == nil {
		c.codec = codec.JSON()
	}
	if c.apiKeyHeader == "" {
		c.apiKeyHeader = auth.DefaultAPIKeyHeader
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}
	if c.maxPayloadLogBytes <= 0 {
		c.maxPayloadLogBytes = DefaultMaxPayloadLogBytes
	}
	if opts.DisableRequestID {
		c.requestIDHeader = ""
	} else if c.requestIDHeader == "" {
		c.requestIDHeader = trace.HeaderXRequestID
	}
	if c.maxErrorBodyBytes <= 0 {
		c.maxErrorBodyBytes = DefaultMaxErrorBodyBytes
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if timeout < 0 {
		return nil, NewValidationError("timeout must be positive", fieldTimeout)
	}
	c.guard.cur = settings{timeout: timeout, headers: make(nethttp.Header)}

	if opts.BaseAddress != "" {
		base, err := parseBaseAddress(opts.BaseAddress)
		if err != nil {
			return nil, err
		}
		c.guard.cur.baseAddress = base
	}
	for name, value := range opts.DefaultHeaders {
		if strings.TrimSpace(name) == "" {
			return nil, NewValidationError("header name cannot be empty", fieldDefaultHeaders)
		}
		c.guard.cur.headers.Set(name, value)
	}

	return c, nil
}

// NewClient creates a client with default configuration
func NewClient(log logger.Logger) *Client {
	c, _ := New(Options{Logger: log})
	return c
}

// SetBaseAddress changes the base address used to resolve relative targets.
func (c *Client) SetBaseAddress(address string) error {
	if c.released.Load() {
		return ErrReleased
	}
	return c.guard.mutate(fieldBaseAddress, func(s *settings) error {
		if address == "" {
			s.baseAddress = nil
			return nil
		}
		base, err := parseBaseAddress(address)
		if err != nil {
			return err
		}
		s.baseAddress = base
		return nil
	})
}

// SetTimeout changes the per-attempt timeout.
func (c *Client) SetTimeout(timeout time.Duration) error {
	if c.released.Load() {
		return ErrReleased
	}
	return c.guard.mutate(fieldTimeout, func(s *settings) error {
		if timeout <= 0 {
			return NewValidationError("timeout must be positive", fieldTimeout)
		}
		s.timeout = timeout
		return nil
	})
}

// AddDefaultHeader sets a header sent with every call. A later value for the
// same name replaces the earlier one.
func (c *Client) AddDefaultHeader(name, value string) error {
	if c.released.Load() {
		return ErrReleased
	}
	return c.guard.mutate(fieldDefaultHeaders, func(s *settings) error {
		if strings.TrimSpace(name) == "" {
			return NewValidationError("header name cannot be empty", fieldDefaultHeaders)
		}
		s.headers.Set(name, value)
		return nil
	})
}

// BaseAddress returns the configured base address or "".
func (c *Client) BaseAddress() string {
	s := c.guard.read()
	if s.baseAddress == nil {
		return ""
	}
	return s.baseAddress.String()
}

// Timeout returns the per-attempt timeout.
func (c *Client) Timeout() time.Duration {
	return c.guard.read().timeout
}

// DefaultHeaders returns a copy of the default headers.
func (c *Client) DefaultHeaders() nethttp.Header {
	return c.guard.read().headers
}

// HasSentRequests reports whether configuration has been locked by a call.
func (c *Client) HasSentRequests() bool {
	return c.guard.isLocked()
}

// Release frees the transport when the client owns it. Later calls fail
// with ErrReleased; calling Release again is a no-op.
func (c *Client) Release() error {
	var err error
	c.releaseOnce.Do(func() {
		c.released.Store(true)
		if c.ownsTransport {
			err = closeTransport(c.transport)
		}
		c.logger.Debug().
			Bool("owned_transport", c.ownsTransport).
			Int64("call_count", c.callCount.Load()).
			Msg("REST client released")
	})
	return err
}

// runRequestInterceptors executes all request interceptors
func (c *Client) runRequestInterceptors(ctx context.Context, req *nethttp.Request) error {
	for _, interceptor := range c.requestInterceptors {
		if err := interceptor(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// runResponseInterceptors executes all response interceptors
func (c *Client) runResponseInterceptors(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error {
	for _, interceptor := range c.responseInterceptors {
		if err := interceptor(ctx, req, resp); err != nil {
			return err
		}
	}
	return nil
}

func closeTransport(t Transport) error {
	switch v := t.(type) {
	case io.Closer:
		return v.Close()
	case interface{ CloseIdleConnections() }:
		v.CloseIdleConnections()
	}
	return nil
}

// Builder provides a fluent interface for configuring the REST client
type Builder struct {
	opts     Options
	pool     *TransportPool
	poolName string
}

// NewBuilder creates a new client builder
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		opts: Options{
			Timeout:        DefaultTimeout,
			DefaultHeaders: make(map[string]string),
			Logger:         log,
		},
	}
}

// WithBaseAddress sets the base address for relative targets
func (b *Builder) WithBaseAddress(address string) *Builder {
	b.opts.BaseAddress = address
	return b
}

// WithTimeout sets the per-attempt timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.opts.Timeout = timeout
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.opts.DefaultHeaders[key] = value
	return b
}

// WithRetries uses exponential backoff with maxAttempts total attempts
// starting at baseDelay.
func (b *Builder) WithRetries(maxAttempts int, baseDelay time.Duration) *Builder {
	policy := retry.DefaultBackoff()
	policy.MaxAttempts = maxAttempts
	policy.BaseDelay = baseDelay
	b.opts.Retry = policy
	return b
}

// WithRetryPolicy replaces the retry policy
func (b *Builder) WithRetryPolicy(policy retry.Policy) *Builder {
	b.opts.Retry = policy
	return b
}

// WithCodec replaces the body codec
func (b *Builder) WithCodec(c codec.Codec) *Builder {
	b.opts.Codec = c
	return b
}

// WithTransport sets the transport. When owns is true, Release closes it.
func (b *Builder) WithTransport(t Transport, owns bool) *Builder {
	b.opts.Transport = t
	b.opts.OwnsTransport = owns
	b.pool = nil
	return b
}

// WithPooledTransport shares the named transport of pool. The client never
// closes it; the pool does.
func (b *Builder) WithPooledTransport(pool *TransportPool, name string) *Builder {
	b.pool = pool
	b.poolName = name
	return b
}

// WithAPIKeyHeader sets the header used by the API key scheme
func (b *Builder) WithAPIKeyHeader(name string) *Builder {
	b.opts.APIKeyHeader = name
	return b
}

// WithRateLimit limits attempts to rps per second with the given burst
func (b *Builder) WithRateLimit(rps float64, burst int) *Builder {
	if burst < 1 {
		burst = 1
	}
	b.opts.RateLimiter = rate.NewLimiter(rate.Limit(rps), burst)
	return b
}

// WithPayloadLogging logs headers and bodies at debug level, truncated to maxBytes
func (b *Builder) WithPayloadLogging(maxBytes int) *Builder {
	b.opts.LogPayloads = true
	b.opts.MaxPayloadLogBytes = maxBytes
	return b
}

// WithRequestIDHeader renames the request ID header
func (b *Builder) WithRequestIDHeader(name string) *Builder {
	b.opts.RequestIDHeader = name
	return b
}

// WithMaxErrorBodyBytes bounds the error body kept in envelopes
func (b *Builder) WithMaxErrorBodyBytes(n int64) *Builder {
	b.opts.MaxErrorBodyBytes = n
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.opts.RequestInterceptors = append(b.opts.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.opts.ResponseInterceptors = append(b.opts.ResponseInterceptors, interceptor)
	return b
}

// Build creates the REST client with the configured options
func (b *Builder) Build() (*Client, error) {
	opts := b.opts
	if b.pool != nil {
		t, err := b.pool.Get(b.poolName)
		if err != nil {
			return nil, err
		}
		opts.Transport = t
		opts.OwnsTransport = false
	}
	return New(opts)
}
