package http

import (
	"context"
	nethttp "net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/gaborage/go-bricks-rest/auth"
	"github.com/gaborage/go-bricks-rest/codec"
	"github.com/gaborage/go-bricks-rest/logger"
	"github.com/gaborage/go-bricks-rest/retry"
)

// Transport sends a single HTTP request. *nethttp.Client satisfies it.
type Transport interface {
	Do(req *nethttp.Request) (*nethttp.Response, error)
}

// RequestInterceptor runs on every attempt after the request is fully built,
// credentials included. Returning an error aborts the call without retry.
// req.GetBody gives access to the payload without consuming req.Body.
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor runs on every received response before it is
// classified for retry. Returning an error aborts the call without retry.
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// Call describes one logical REST call.
type Call struct {
	Method string
	// Target is an absolute URI or a reference resolved against the base address.
	Target string
	// Payload is encoded with the client codec. Only POST, PUT and PATCH accept one.
	Payload any
	Auth    auth.Credentials
	// Headers apply to this call only and overwrite default headers by name.
	Headers map[string]string
}

// CallOption customizes a Call built by the verb helpers.
type CallOption func(*Call)

// WithAuth attaches credentials to the call.
func WithAuth(scheme auth.Scheme, token string) CallOption {
	return func(c *Call) {
		c.Auth = auth.Credentials{Scheme: scheme, Token: token}
	}
}

// WithBearer sends token as a Bearer credential.
func WithBearer(token string) CallOption {
	return WithAuth(auth.Bearer, token)
}

// WithBasic sends a pre-encoded Basic token (see auth.EncodeBasic).
func WithBasic(token string) CallOption {
	return WithAuth(auth.Basic, token)
}

// WithAPIKey sends token in the client's API key header.
func WithAPIKey(token string) CallOption {
	return WithAuth(auth.APIKey, token)
}

// WithHeader sets one request-scoped header.
func WithHeader(name, value string) CallOption {
	return func(c *Call) {
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		c.Headers[name] = value
	}
}

// WithHeaders sets several request-scoped headers.
func WithHeaders(headers map[string]string) CallOption {
	return func(c *Call) {
		for name, value := range headers {
			WithHeader(name, value)(c)
		}
	}
}

// FailureKind tells why an envelope is not successful.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureCancelled   FailureKind = "cancelled"
	FailureTimeout     FailureKind = "timeout"
	FailureNetwork     FailureKind = "network"
	FailureHTTP        FailureKind = "http"
	FailureDecode      FailureKind = "decode"
	FailureEncode      FailureKind = "encode"
	FailureRateLimit   FailureKind = "ratelimit"
	FailureInterceptor FailureKind = "interceptor"
)

// Envelope is the uniform result of a call. Transport, HTTP and decode
// failures are reported here rather than as errors.
type Envelope[T any] struct {
	Success bool
	// Data is the zero value unless Success is true.
	Data         T
	ErrorMessage string
	// ErrorData holds the raw body of a non-2xx response.
	ErrorData string
	// StatusCode is 0 when no HTTP exchange completed.
	StatusCode int
	Failure    FailureKind
	Attempts   int
	Header     nethttp.Header
	Elapsed    time.Duration
	// Err is the underlying cause of a failure, if any.
	Err error
}

// Cancelled reports whether the caller cancelled the call.
func (e *Envelope[T]) Cancelled() bool {
	return e.Failure == FailureCancelled
}

// TimedOut reports whether the final attempt exceeded the client timeout.
func (e *Envelope[T]) TimedOut() bool {
	return e.Failure == FailureTimeout
}

// Options configures a Client. Zero fields take defaults.
type Options struct {
	BaseAddress    string
	Timeout        time.Duration
	DefaultHeaders map[string]string

	// Retry defaults to retry.DefaultBackoff.
	Retry retry.Policy
	// Codec defaults to codec.JSON.
	Codec codec.Codec

	// Transport defaults to a private *nethttp.Client owned by the client.
	Transport Transport
	// OwnsTransport makes Release close Transport.
	OwnsTransport bool

	APIKeyHeader string
	// RateLimiter is waited on before every attempt, retries included.
	RateLimiter *rate.Limiter

	Logger             logger.Logger
	LogPayloads        bool
	MaxPayloadLogBytes int

	// RequestIDHeader defaults to X-Request-ID. Set DisableRequestID to send none.
	RequestIDHeader  string
	DisableRequestID bool

	// MaxErrorBodyBytes bounds ErrorData. Defaults to 1 MiB.
	MaxErrorBodyBytes int64

	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
}
