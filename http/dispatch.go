package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gaborage/go-bricks-rest/auth"
	"github.com/gaborage/go-bricks-rest/internal/tracking"
	"github.com/gaborage/go-bricks-rest/retry"
	"github.com/gaborage/go-bricks-rest/trace"
)

const (
	headerAccept      = "Accept"
	headerContentType = "Content-Type"
)

// exchange is the per-call state shared by the attempts of one Send.
// Attempts run sequentially, so it needs no locking.
type exchange struct {
	call      Call
	target    *url.URL
	settings  settings
	callCount int64

	lastStatus int
	lastErr    error
}

// Send dispatches call and maps the final attempt into an Envelope.
// The error is non-nil only for structural problems: an invalid call, a
// relative target without base address, or a released client.
func Send[T any](ctx context.Context, c *Client, call Call, decode DecodeStrategy[T]) (*Envelope[T], error) {
	if c == nil {
		return nil, NewValidationError("client cannot be nil", "client")
	}
	if c.released.Load() {
		return nil, ErrReleased
	}
	call.Method = strings.ToUpper(call.Method)
	ref, err := validateCall(call)
	if err != nil {
		return nil, err
	}
	if decode == nil {
		decode = Decoded[T]()
	}

	snap := c.guard.markInUse()
	target, err := resolveTarget(snap.baseAddress, ref)
	if err != nil {
		return nil, err
	}

	if c.requestIDHeader != "" {
		ctx = trace.WithRequestID(ctx, trace.EnsureRequestID(ctx))
	}

	start := time.Now()
	ex := &exchange{
		call:      call,
		target:    target,
		settings:  snap,
		callCount: c.callCount.Add(1),
	}

	ctx, span := tracking.StartCall(ctx, call.Method, target.String())

	outcome := c.policy.Execute(ctx, func(ctx context.Context, attempt int) retry.Outcome {
		return c.attempt(ctx, ex, attempt)
	})
	env := finish(ctx, c, ex, &outcome, decode)
	outcome.Release()
	env.Elapsed = time.Since(start)

	result := tracking.Call{
		Method:        call.Method,
		ServerAddress: target.Host,
		StatusCode:    env.StatusCode,
		Attempts:      env.Attempts,
		Failure:       string(env.Failure),
		Err:           env.Err,
	}
	tracking.EndCall(span, result)
	tracking.RecordCall(ctx, result, env.Elapsed)
	logResponse(c, ex, env)

	return env, nil
}

// validateCall checks the call shape and parses its target. It runs before
// the configuration is locked.
func validateCall(call Call) (*url.URL, error) {
	switch call.Method {
	case nethttp.MethodGet, nethttp.MethodDelete:
		if call.Payload != nil {
			return nil, NewValidationError(call.Method+" does not accept a payload", "payload")
		}
	case nethttp.MethodPost, nethttp.MethodPut, nethttp.MethodPatch:
	default:
		return nil, NewValidationError(fmt.Sprintf("unsupported method %q", call.Method), "method")
	}
	if strings.TrimSpace(call.Target) == "" {
		return nil, NewValidationError("target cannot be empty", "target")
	}

	ref, err := url.Parse(call.Target)
	if err != nil {
		return nil, wrapValidationError("invalid target", "target", err)
	}
	if ref.IsAbs() {
		if ref.Host == "" {
			return nil, NewValidationError("absolute target must include a host", "target")
		}
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return nil, NewValidationError(fmt.Sprintf("unsupported target scheme %q", ref.Scheme), "target")
		}
	}
	return ref, nil
}

// resolveTarget applies RFC 3986 reference resolution against base.
func resolveTarget(base *url.URL, ref *url.URL) (*url.URL, error) {
	if ref.IsAbs() {
		return ref, nil
	}
	if base == nil {
		return nil, ErrMissingBaseAddress
	}
	return base.ResolveReference(ref), nil
}

// attempt performs one HTTP exchange. The response body stays open and is
// closed by the outcome's release hook together with the attempt context.
func (c *Client) attempt(ctx context.Context, ex *exchange, n int) retry.Outcome {
	if n > 1 {
		c.logRetry(ex, n)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return retry.Outcome{Err: ctx.Err(), Kind: retry.Cancelled}
			}
			return ex.record(retry.Outcome{
				Err:  &failureError{kind: FailureRateLimit, err: err},
				Kind: retry.Terminal,
			})
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, ex.settings.timeout)

	req, payload, err := c.buildRequest(attemptCtx, ex)
	if err != nil {
		cancel()
		return ex.record(retry.Outcome{Err: err, Kind: retry.Terminal})
	}
	if err := c.runRequestInterceptors(attemptCtx, req); err != nil {
		cancel()
		return ex.record(retry.Outcome{
			Err:  &failureError{kind: FailureInterceptor, err: fmt.Errorf("request interceptor: %w", err)},
			Kind: retry.Terminal,
		})
	}
	c.logRequest(ex, req, payload, n)

	resp, err := c.transport.Do(req)
	if err != nil {
		if ctx.Err() == nil && isTimeout(attemptCtx, err) {
			err = &failureError{kind: FailureTimeout, err: err}
		}
		cancel()
		return ex.record(retry.Outcome{Err: err})
	}

	release := func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		cancel()
	}
	if err := c.runResponseInterceptors(attemptCtx, req, resp); err != nil {
		return ex.record(retry.Outcome{
			Response: resp,
			Err:      &failureError{kind: FailureInterceptor, err: fmt.Errorf("response interceptor: %w", err)},
			Kind:     retry.Terminal,
		}).WithRelease(release)
	}
	return ex.record(retry.Outcome{Response: resp}).WithRelease(release)
}

func (ex *exchange) record(o retry.Outcome) retry.Outcome {
	ex.lastStatus = o.StatusCode()
	ex.lastErr = o.Err
	return o
}

// buildRequest creates a fresh request for one attempt. Header precedence,
// lowest first: Accept, default headers, call headers, Content-Type,
// correlation headers, credentials. Request interceptors run afterwards.
func (c *Client) buildRequest(ctx context.Context, ex *exchange) (*nethttp.Request, []byte, error) {
	var body io.Reader
	var payload []byte
	if ex.call.Payload != nil {
		buf := &bytes.Buffer{}
		if err := c.codec.Encode(buf, ex.call.Payload); err != nil {
			return nil, nil, &failureError{kind: FailureEncode, err: err}
		}
		payload = buf.Bytes()
		body = bytes.NewReader(payload)
	}

	req, err := nethttp.NewRequestWithContext(ctx, ex.call.Method, ex.target.String(), body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	h := req.Header
	h.Set(headerAccept, c.codec.ContentType())
	for name, values := range ex.settings.headers {
		h[name] = append([]string(nil), values...)
	}
	for name, value := range ex.call.Headers {
		h.Set(name, value)
	}
	if body != nil && h.Get(headerContentType) == "" {
		h.Set(headerContentType, c.codec.ContentType())
	}
	trace.Inject(ctx, h, c.requestIDHeader)
	auth.Apply(h, ex.call.Auth, c.apiKeyHeader)

	return req, payload, nil
}

func isTimeout(attemptCtx context.Context, err error) bool {
	return errors.Is(attemptCtx.Err(), context.DeadlineExceeded) || isTimeoutError(err)
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// finish maps the terminal outcome into an envelope. Cancellation of the
// caller's context takes precedence over whatever the attempt produced.
func finish[T any](ctx context.Context, c *Client, ex *exchange, o *retry.Outcome, decode DecodeStrategy[T]) *Envelope[T] {
	env := &Envelope[T]{Attempts: o.Attempt}

	if o.Kind == retry.Cancelled || ctx.Err() != nil {
		env.Failure = FailureCancelled
		env.ErrorMessage = "Request cancelled"
		env.Err = context.Cause(ctx)
		if env.Err == nil {
			env.Err = o.Err
		}
		return env
	}

	if o.Err != nil {
		env.Failure, env.ErrorMessage = describeFailure(o.Err, ex.settings.timeout)
		env.Err = o.Err
		if o.Response != nil {
			env.StatusCode = o.Response.StatusCode
			env.Header = o.Response.Header
		}
		return env
	}

	resp := o.Response
	if resp == nil {
		env.Failure = FailureNetwork
		env.ErrorMessage = "Request failed: no response"
		return env
	}
	env.StatusCode = resp.StatusCode
	env.Header = resp.Header

	if !IsSuccessStatus(resp.StatusCode) {
		env.Failure = FailureHTTP
		env.ErrorMessage = fmt.Sprintf("HTTP request failed with status %d", resp.StatusCode)
		data, _ := readErrorBody(resp, c.maxErrorBodyBytes)
		env.ErrorData = string(data)
		if c.logPayloads {
			c.logPayload("REST client response payload", resp.Header, data, false)
		}
		return env
	}

	if resp.StatusCode == nethttp.StatusNoContent {
		env.Success = true
		return env
	}

	var body io.Reader = resp.Body
	var logged *cappedBuffer
	if c.logPayloads {
		logged = &cappedBuffer{limit: c.maxPayloadLogBytes}
		body = io.TeeReader(resp.Body, logged)
	}

	data, err := decode(body, c.codec)
	if logged != nil {
		c.logPayload("REST client response payload", resp.Header, logged.Bytes(), logged.truncated)
	}
	if err != nil {
		if ctx.Err() != nil {
			env.Failure = FailureCancelled
			env.ErrorMessage = "Request cancelled"
			env.Err = context.Cause(ctx)
			return env
		}
		if isTimeoutError(err) {
			env.Failure = FailureTimeout
			env.ErrorMessage = fmt.Sprintf("Request timeout after %s: %v", ex.settings.timeout, err)
		} else {
			env.Failure = FailureDecode
			env.ErrorMessage = fmt.Sprintf("failed to decode response body: %v", err)
		}
		env.Err = err
		return env
	}

	env.Success = true
	env.Data = data
	return env
}

func describeFailure(err error, timeout time.Duration) (FailureKind, string) {
	var fe *failureError
	if !errors.As(err, &fe) {
		return FailureNetwork, fmt.Sprintf("Request failed: %v", err)
	}
	switch fe.kind {
	case FailureTimeout:
		return fe.kind, fmt.Sprintf("Request timeout after %s: %v", timeout, fe.err)
	case FailureEncode:
		return fe.kind, fmt.Sprintf("failed to encode request body: %v", fe.err)
	case FailureRateLimit:
		return fe.kind, fmt.Sprintf("rate limiter rejected request: %v", fe.err)
	case FailureInterceptor:
		return fe.kind, fmt.Sprintf("Interceptor failed: %v", fe.err)
	default:
		return fe.kind, fmt.Sprintf("Request failed: %v", fe.err)
	}
}

// readErrorBody reads the body fully, bounded by Content-Length when known
// and by limit otherwise.
func readErrorBody(resp *nethttp.Response, limit int64) ([]byte, error) {
	if resp.ContentLength > 0 && resp.ContentLength < limit {
		limit = resp.ContentLength
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// cappedBuffer keeps the first limit bytes written to it.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
			b.truncated = true
		} else {
			b.buf.Write(p)
		}
	} else if len(p) > 0 {
		b.truncated = true
	}
	return len(p), nil
}

func (b *cappedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}
