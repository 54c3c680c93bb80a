package retry

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func response(status int) *nethttp.Response {
	return &nethttp.Response{StatusCode: status, Header: nethttp.Header{}}
}

func fastBackoff(maxAttempts int) *Backoff {
	return &Backoff{MaxAttempts: maxAttempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestExecuteStopsOnCompleted(t *testing.T) {
	calls := 0
	o := fastBackoff(3).Execute(context.Background(), func(_ context.Context, _ int) Outcome {
		calls++
		return Outcome{Response: response(nethttp.StatusOK)}
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, Completed, o.Kind)
	assert.Equal(t, 1, o.Attempt)
	assert.Equal(t, nethttp.StatusOK, o.StatusCode())
}

func TestExecuteExhaustsAttemptsOnRetryableStatus(t *testing.T) {
	var seen []int
	released := 0
	o := fastBackoff(4).Execute(context.Background(), func(_ context.Context, attempt int) Outcome {
		seen = append(seen, attempt)
		return Outcome{Response: response(nethttp.StatusServiceUnavailable)}.WithRelease(func() { released++ })
	})

	assert.Equal(t, []int{1, 2, 3, 4}, seen)
	assert.Equal(t, Retryable, o.Kind)
	assert.Equal(t, 4, o.Attempt)
	assert.Equal(t, nethttp.StatusServiceUnavailable, o.StatusCode())
	assert.Equal(t, 3, released, "discarded attempts are released, the final one is left to the caller")

	o.Release()
	o.Release()
	assert.Equal(t, 4, released)
}

func TestExecuteRecoversAfterTooManyRequests(t *testing.T) {
	statuses := []int{nethttp.StatusTooManyRequests, nethttp.StatusTooManyRequests, nethttp.StatusCreated}
	o := fastBackoff(3).Execute(context.Background(), func(_ context.Context, attempt int) Outcome {
		return Outcome{Response: response(statuses[attempt-1])}
	})

	assert.Equal(t, Completed, o.Kind)
	assert.Equal(t, 3, o.Attempt)
	assert.Equal(t, nethttp.StatusCreated, o.StatusCode())
}

func TestExecuteRetriesTransportErrors(t *testing.T) {
	calls := 0
	o := fastBackoff(2).Execute(context.Background(), func(_ context.Context, _ int) Outcome {
		calls++
		return Outcome{Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}
	})

	assert.Equal(t, 2, calls)
	assert.Equal(t, Retryable, o.Kind)
	require.Error(t, o.Err)
}

func TestExecuteHonoursPreClassifiedTerminal(t *testing.T) {
	calls := 0
	o := fastBackoff(5).Execute(context.Background(), func(_ context.Context, _ int) Outcome {
		calls++
		return Outcome{Err: errors.New("encode failed"), Kind: Terminal}
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, Terminal, o.Kind)
}

func TestExecuteCancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	o := fastBackoff(3).Execute(ctx, func(_ context.Context, _ int) Outcome {
		calls++
		return Outcome{}
	})

	assert.Zero(t, calls)
	assert.Equal(t, Cancelled, o.Kind)
	assert.Zero(t, o.Attempt)
	assert.ErrorIs(t, o.Err, context.Canceled)
}

func TestExecuteCancelledDuringAttemptIsNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	o := fastBackoff(3).Execute(ctx, func(_ context.Context, _ int) Outcome {
		calls++
		cancel()
		return Outcome{Err: context.Canceled}
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, Cancelled, o.Kind)
}

func TestExecuteCancelledDuringDelayWins(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Backoff{MaxAttempts: 3, BaseDelay: time.Hour}

	released := false
	done := make(chan Outcome, 1)
	go func() {
		done <- p.Execute(ctx, func(_ context.Context, _ int) Outcome {
			return Outcome{Response: response(nethttp.StatusBadGateway)}.WithRelease(func() { released = true })
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case o := <-done:
		assert.Equal(t, Cancelled, o.Kind)
		assert.Equal(t, 1, o.Attempt)
		assert.Nil(t, o.Response)
		assert.True(t, released)
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not observe cancellation during the delay")
	}
}

func TestExecuteCustomClassifier(t *testing.T) {
	p := fastBackoff(3)
	p.Classifier = func(_ context.Context, o Outcome) Kind {
		if o.StatusCode() == nethttp.StatusConflict {
			return Retryable
		}
		return Completed
	}

	calls := 0
	o := p.Execute(context.Background(), func(_ context.Context, _ int) Outcome {
		calls++
		return Outcome{Response: response(nethttp.StatusConflict)}
	})
	assert.Equal(t, 3, calls)
	assert.Equal(t, Retryable, o.Kind)
}

func TestNoRetry(t *testing.T) {
	calls := 0
	o := NoRetry().Execute(context.Background(), func(_ context.Context, _ int) Outcome {
		calls++
		return Outcome{Response: response(nethttp.StatusServiceUnavailable)}
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, Retryable, o.Kind)
}

func TestNormalizedDefaults(t *testing.T) {
	n := (&Backoff{MaxAttempts: 50, Multiplier: 0.5, Jitter: 3}).normalized()
	assert.Equal(t, MaxAttemptsLimit, n.MaxAttempts)
	assert.Equal(t, DefaultBaseDelay, n.BaseDelay)
	assert.InDelta(t, DefaultMultiplier, n.Multiplier, 0)
	assert.Equal(t, DefaultMaxDelay, n.MaxDelay)
	assert.InDelta(t, 1.0, n.Jitter, 0)
	assert.NotNil(t, n.Statuses)

	assert.Equal(t, DefaultMaxAttempts, (&Backoff{}).Attempts())
	assert.Equal(t, 1, NoRetry().Attempts())
}

func TestDelayExponential(t *testing.T) {
	p := &Backoff{BaseDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: time.Second}

	assert.Equal(t, 100*time.Millisecond, p.Delay(1, Outcome{}))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2, Outcome{}))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3, Outcome{}))
	assert.Equal(t, time.Second, p.Delay(10, Outcome{}))
	assert.Equal(t, time.Second, p.Delay(5000, Outcome{}))
}

func TestDelayJitterBounds(t *testing.T) {
	p := &Backoff{BaseDelay: 100 * time.Millisecond, Multiplier: 2, Jitter: 0.5}
	for range 50 {
		d := p.Delay(2, Outcome{})
		assert.GreaterOrEqual(t, d, 200*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}
}

func TestDelayJitterStaysUnderMaxDelay(t *testing.T) {
	p := &Backoff{BaseDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: 150 * time.Millisecond, Jitter: 1}
	for range 50 {
		assert.LessOrEqual(t, p.Delay(1, Outcome{}), 150*time.Millisecond)
		assert.Equal(t, 150*time.Millisecond, p.Delay(4, Outcome{}))
	}
}

func TestDelayRetryAfter(t *testing.T) {
	p := &Backoff{BaseDelay: 10 * time.Millisecond, MaxDelay: 5 * time.Second, RespectRetryAfter: true}

	resp := response(nethttp.StatusTooManyRequests)
	resp.Header.Set("Retry-After", "2")
	assert.Equal(t, 2*time.Second, p.Delay(1, Outcome{Response: resp}))

	resp.Header.Set("Retry-After", "120")
	assert.Equal(t, 5*time.Second, p.Delay(1, Outcome{Response: resp}), "capped at MaxDelay")

	p.RespectRetryAfter = false
	assert.Equal(t, 10*time.Millisecond, p.Delay(1, Outcome{Response: resp}))
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		value    string
		expected time.Duration
	}{
		{name: "seconds", status: nethttp.StatusServiceUnavailable, value: "3", expected: 3 * time.Second},
		{name: "past_date", status: nethttp.StatusTooManyRequests, value: time.Now().Add(-time.Minute).UTC().Format(nethttp.TimeFormat)},
		{name: "negative", status: nethttp.StatusTooManyRequests, value: "-1"},
		{name: "garbage", status: nethttp.StatusTooManyRequests, value: "soon"},
		{name: "missing", status: nethttp.StatusTooManyRequests},
		{name: "other_status", status: nethttp.StatusBadGateway, value: "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := response(tt.status)
			if tt.value != "" {
				resp.Header.Set("Retry-After", tt.value)
			}
			assert.Equal(t, tt.expected, RetryAfter(resp))
		})
	}

	assert.Zero(t, RetryAfter(nil))
}

func TestRetryAfterHTTPDate(t *testing.T) {
	resp := response(nethttp.StatusTooManyRequests)
	resp.Header.Set("Retry-After", time.Now().Add(10*time.Second).UTC().Format(nethttp.TimeFormat))

	d := RetryAfter(resp)
	assert.Greater(t, d, 7*time.Second)
	assert.LessOrEqual(t, d, 10*time.Second)
}

func TestStatusPredicates(t *testing.T) {
	for _, code := range []int{408, 429, 503, 504} {
		assert.True(t, TransientStatuses(code), code)
		assert.True(t, ServerErrorStatuses(code), code)
	}
	for _, code := range []int{500, 502} {
		assert.False(t, TransientStatuses(code), code)
		assert.True(t, ServerErrorStatuses(code), code)
	}
	for _, code := range []int{200, 201, 400, 401, 404, 409, 501, 505} {
		assert.False(t, ServerErrorStatuses(code), code)
	}

	assert.True(t, StatusesFor(StrictnessTransient)(429))
	assert.False(t, StatusesFor(StrictnessTransient)(500))
	assert.True(t, StatusesFor("bogus")(500))
}

func TestClassify(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, Cancelled, Classify(cancelled, Outcome{Response: response(200)}, nil))
	assert.Equal(t, Completed, Classify(context.Background(), Outcome{Response: response(404)}, nil))
	assert.Equal(t, Retryable, Classify(context.Background(), Outcome{Response: response(500)}, nil))
	assert.Equal(t, Completed, Classify(context.Background(), Outcome{Response: response(500)}, TransientStatuses))
	assert.Equal(t, Retryable, Classify(context.Background(), Outcome{Err: context.DeadlineExceeded}, nil))
	assert.Equal(t, Terminal, Classify(context.Background(), Outcome{Err: Permanent(errors.New("bad"))}, nil))
	assert.Equal(t, Terminal, Classify(context.Background(), Outcome{}, nil))
}

func TestIsTransientError(t *testing.T) {
	assert.False(t, IsTransientError(nil))
	assert.True(t, IsTransientError(errors.New("connection reset by peer")))
	assert.True(t, IsTransientError(&url.Error{Op: "Get", URL: "https://api.example.com", Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}))

	perm := Permanent(errors.New("nope"))
	assert.False(t, IsTransientError(perm))
	assert.ErrorIs(t, perm, ErrPermanent)
	assert.Equal(t, "nope", perm.Error())
	assert.NoError(t, Permanent(nil))

	certErr := fmt.Errorf("Get x: %w", &tls.CertificateVerificationError{Err: errors.New("expired")})
	assert.False(t, IsTransientError(certErr))
}

func TestIsTransientErrorRejectsPermanentTransportErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "unsupported_scheme", err: errors.New(`unsupported protocol scheme "ftp"`)},
		{name: "redirect_loop", err: errors.New("stopped after 10 redirects")},
		{name: "invalid_header", err: errors.New(`net/http: invalid header field value for "X-Token"`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &url.Error{Op: "Get", URL: "ftp://files.example.com/x", Err: tt.err}
			assert.False(t, IsTransientError(err))
			assert.False(t, IsTransientError(fmt.Errorf("attempt 1: %w", err)), "wrapped")
			assert.Equal(t, Terminal, Classify(context.Background(), Outcome{Err: err}, nil))
		})
	}
}

func TestExecuteDoesNotRetryUnsupportedScheme(t *testing.T) {
	calls := 0
	o := fastBackoff(3).Execute(context.Background(), func(_ context.Context, _ int) Outcome {
		calls++
		return Outcome{Err: &url.Error{Op: "Get", URL: "ftp://files.example.com/x", Err: errors.New(`unsupported protocol scheme "ftp"`)}}
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, Terminal, o.Kind)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "completed", Completed.String())
	assert.Equal(t, "retryable", Retryable.String())
	assert.Equal(t, "terminal", Terminal.String())
	assert.Equal(t, "cancelled", Cancelled.String())
	assert.Equal(t, "unclassified", Unclassified.String())
}
