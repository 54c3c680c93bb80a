package http

import (
	"errors"
	"io"
	nethttp "net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-rest/retry"
)

type transportFunc func(*nethttp.Request) (*nethttp.Response, error)

func (f transportFunc) Do(req *nethttp.Request) (*nethttp.Response, error) {
	return f(req)
}

// fastRetry keeps retry tests quick and deterministic.
func fastRetry(attempts int) *retry.Backoff {
	return &retry.Backoff{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		Multiplier:  1,
		MaxDelay:    5 * time.Millisecond,
	}
}

func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	if opts.Retry == nil {
		opts.Retry = fastRetry(3)
	}
	c, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Release() })
	return c
}

// trackedBody records whether the dispatcher closed it.
type trackedBody struct {
	io.Reader
	closed atomic.Bool
}

func (b *trackedBody) Close() error {
	b.closed.Store(true)
	return nil
}

// stubResponses replays responses in order and records every request.
type stubResponses struct {
	mu       sync.Mutex
	statuses []int
	bodies   []string
	requests []*nethttp.Request
	payloads []string
	opened   []*trackedBody
}

func (s *stubResponses) Do(req *nethttp.Request) (*nethttp.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload string
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		payload = string(b)
	}
	s.requests = append(s.requests, req)
	s.payloads = append(s.payloads, payload)

	idx := min(len(s.requests)-1, len(s.statuses)-1)
	if idx < 0 {
		return nil, errors.New("no scripted response")
	}
	body := &trackedBody{Reader: strings.NewReader(s.bodies[idx])}
	s.opened = append(s.opened, body)
	return &nethttp.Response{
		StatusCode: s.statuses[idx],
		Header:     nethttp.Header{"Content-Type": []string{"application/json"}},
		Body:       body,
		Request:    req,
	}, nil
}

func (s *stubResponses) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *stubResponses) request(i int) *nethttp.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

func stub(pairs ...any) *stubResponses {
	s := &stubResponses{}
	for i := 0; i+1 < len(pairs); i += 2 {
		s.statuses = append(s.statuses, pairs[i].(int))
		s.bodies = append(s.bodies, pairs[i+1].(string))
	}
	return s
}

// closingTransport counts Close calls.
type closingTransport struct {
	transportFunc
	closes atomic.Int32
}

func (c *closingTransport) Close() error {
	c.closes.Add(1)
	return nil
}

func newClosingTransport() *closingTransport {
	return &closingTransport{transportFunc: func(*nethttp.Request) (*nethttp.Response, error) {
		return nil, errors.New("closing transport never dials")
	}}
}
