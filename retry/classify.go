package retry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	nethttp "net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// StatusPredicate reports whether a response status should be retried.
type StatusPredicate func(status int) bool

// TransientStatuses retries only the codes that explicitly mean "try again later":
// 408, 429, 503 and 504.
func TransientStatuses(status int) bool {
	switch status {
	case nethttp.StatusRequestTimeout,
		nethttp.StatusTooManyRequests,
		nethttp.StatusServiceUnavailable,
		nethttp.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// ServerErrorStatuses retries 408, 429 and every 5xx except 501 and 505,
// which no retry will change.
func ServerErrorStatuses(status int) bool {
	switch status {
	case nethttp.StatusRequestTimeout, nethttp.StatusTooManyRequests:
		return true
	case nethttp.StatusNotImplemented, nethttp.StatusHTTPVersionNotSupported:
		return false
	}
	return status >= 500 && status < 600
}

// Strictness names a status preset in configuration.
type Strictness string

const (
	StrictnessTransient    Strictness = "transient"
	StrictnessServerErrors Strictness = "server_errors"
)

// StatusesFor returns the predicate for a strictness name. Unknown names
// fall back to ServerErrorStatuses.
func StatusesFor(s Strictness) StatusPredicate {
	if s == StrictnessTransient {
		return TransientStatuses
	}
	return ServerErrorStatuses
}

// ErrPermanent marks an attempt error that must not be retried.
var ErrPermanent = errors.New("permanent failure")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() []error { return []error{e.err, ErrPermanent} }

// Permanent wraps err so the default classification treats it as Terminal.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsTransientError reports whether a transport error is worth retrying.
// Errors wrapped with Permanent and certificate failures are not. The rest
// is decided by retryablehttp.DefaultRetryPolicy, which also refuses
// unsupported schemes, redirect loops and invalid headers.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermanent) {
		return false
	}

	var certErr *tls.CertificateVerificationError
	var authorityErr x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	if errors.As(err, &certErr) || errors.As(err, &authorityErr) || errors.As(err, &hostnameErr) {
		return false
	}

	// the policy only inspects a *url.Error at the top of the chain
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr
	}
	ok, _ := retryablehttp.DefaultRetryPolicy(context.Background(), nil, err)
	return ok
}

// Classify applies the default classification to an attempt outcome.
// The caller's context being done always yields Cancelled.
func Classify(ctx context.Context, o Outcome, statuses StatusPredicate) Kind {
	if ctx.Err() != nil {
		return Cancelled
	}
	if o.Err != nil {
		if IsTransientError(o.Err) {
			return Retryable
		}
		return Terminal
	}
	if o.Response == nil {
		return Terminal
	}
	if statuses == nil {
		statuses = ServerErrorStatuses
	}
	if statuses(o.Response.StatusCode) {
		return Retryable
	}
	return Completed
}

// RetryAfter returns the server-requested delay of a 429 or 503 response,
// or 0 when there is none. Parsing follows retryablehttp.DefaultBackoff.
func RetryAfter(resp *nethttp.Response) time.Duration {
	if resp == nil || resp.Header.Get("Retry-After") == "" {
		return 0
	}
	return max(retryablehttp.DefaultBackoff(0, 0, 0, resp), 0)
}
