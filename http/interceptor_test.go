package http

import (
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-rest/internal/testutil"
)

var errRejected = errors.New("rejected by interceptor")

func TestRequestInterceptorRunsOnEveryAttempt(t *testing.T) {
	transport := stub(nethttp.StatusServiceUnavailable, "busy", nethttp.StatusCreated, `{"id":7}`)

	var seenAuth []string
	var attempts int
	sign := func(_ context.Context, req *nethttp.Request) error {
		attempts++
		seenAuth = append(seenAuth, req.Header.Get("Authorization"))

		body, err := req.GetBody()
		if err != nil {
			return err
		}
		defer body.Close()
		payload, err := io.ReadAll(body)
		if err != nil {
			return err
		}
		req.Header.Set("X-Signature", "len-"+strconv.Itoa(len(payload)))
		return nil
	}

	c := newTestClient(t, Options{
		BaseAddress:         testutil.TestBaseAddress,
		Transport:           transport,
		RequestInterceptors: []RequestInterceptor{sign},
	})

	env, err := Post[order](context.Background(), c, testutil.TestOrdersPath, order{SKU: "abc"}, WithBearer(testutil.TestBearerToken))
	require.NoError(t, err)
	require.True(t, env.Success)

	assert.Equal(t, 2, attempts)
	assert.Equal(t, []string{"Bearer " + testutil.TestBearerToken, "Bearer " + testutil.TestBearerToken}, seenAuth)
	for i := range 2 {
		expected := "len-" + strconv.Itoa(len(transport.payloads[i]))
		assert.Equal(t, expected, transport.request(i).Header.Get("X-Signature"))
	}
	assert.Equal(t, transport.payloads[0], transport.payloads[1], "the interceptor leaves the body intact")
}

func TestRequestInterceptorCanOverrideCredentials(t *testing.T) {
	transport := stub(nethttp.StatusOK, `{}`)
	c := newTestClient(t, Options{
		BaseAddress: testutil.TestBaseAddress,
		Transport:   transport,
		RequestInterceptors: []RequestInterceptor{func(_ context.Context, req *nethttp.Request) error {
			req.Header.Set("Authorization", "Bearer rotated")
			return nil
		}},
	})

	_, err := Get[any](context.Background(), c, testUsers, WithBearer(testutil.TestBearerToken))
	require.NoError(t, err)
	assert.Equal(t, "Bearer rotated", transport.request(0).Header.Get("Authorization"))
}

func TestRequestInterceptorErrorIsTerminal(t *testing.T) {
	transport := stub(nethttp.StatusOK, `{}`)
	var second bool
	c := newTestClient(t, Options{
		BaseAddress: testutil.TestBaseAddress,
		Transport:   transport,
		RequestInterceptors: []RequestInterceptor{
			func(context.Context, *nethttp.Request) error { return errRejected },
			func(context.Context, *nethttp.Request) error { second = true; return nil },
		},
	})

	env, err := Get[user](context.Background(), c, testUsers)
	require.NoError(t, err)

	assert.False(t, env.Success)
	assert.Equal(t, FailureInterceptor, env.Failure)
	assert.Equal(t, 1, env.Attempts)
	assert.Zero(t, env.StatusCode)
	assert.ErrorIs(t, env.Err, errRejected)
	assert.Contains(t, env.ErrorMessage, "request interceptor")
	assert.Zero(t, transport.count(), "nothing was sent")
	assert.False(t, second, "later interceptors are skipped")
	assert.True(t, c.HasSentRequests())
}

func TestResponseInterceptorRunsBeforeClassification(t *testing.T) {
	transport := stub(nethttp.StatusServiceUnavailable, "busy", nethttp.StatusOK, `{}`)

	var statuses []int
	c := newTestClient(t, Options{
		BaseAddress: testutil.TestBaseAddress,
		Transport:   transport,
		ResponseInterceptors: []ResponseInterceptor{func(_ context.Context, req *nethttp.Request, resp *nethttp.Response) error {
			statuses = append(statuses, resp.StatusCode)
			assert.Equal(t, nethttp.MethodGet, req.Method)
			if resp.StatusCode == nethttp.StatusServiceUnavailable {
				return errRejected
			}
			return nil
		}},
	})

	env, err := Get[user](context.Background(), c, testUsers)
	require.NoError(t, err)

	assert.Equal(t, []int{nethttp.StatusServiceUnavailable}, statuses)
	assert.Equal(t, FailureInterceptor, env.Failure)
	assert.Equal(t, 1, env.Attempts, "a rejected 503 is not retried")
	assert.Equal(t, nethttp.StatusServiceUnavailable, env.StatusCode)
	assert.ErrorIs(t, env.Err, errRejected)
	assert.Contains(t, env.ErrorMessage, "response interceptor")

	require.Len(t, transport.opened, 1)
	assert.True(t, transport.opened[0].closed.Load())
}

func TestResponseInterceptorSeesEveryAttempt(t *testing.T) {
	transport := stub(nethttp.StatusBadGateway, "bad", nethttp.StatusOK, `{"id":1}`)

	var statuses []int
	c := newTestClient(t, Options{
		BaseAddress: testutil.TestBaseAddress,
		Transport:   transport,
		ResponseInterceptors: []ResponseInterceptor{func(_ context.Context, _ *nethttp.Request, resp *nethttp.Response) error {
			statuses = append(statuses, resp.StatusCode)
			return nil
		}},
	})

	env, err := Get[user](context.Background(), c, testUsers)
	require.NoError(t, err)
	require.True(t, env.Success)
	assert.Equal(t, 1, env.Data.ID)
	assert.Equal(t, []int{nethttp.StatusBadGateway, nethttp.StatusOK}, statuses)
}

func TestBuilderWithInterceptors(t *testing.T) {
	transport := stub(nethttp.StatusOK, `{}`)
	var calls []string
	c, err := NewBuilder(nil).
		WithBaseAddress(testutil.TestBaseAddress).
		WithTransport(transport, false).
		WithRequestInterceptor(func(context.Context, *nethttp.Request) error {
			calls = append(calls, "request-1")
			return nil
		}).
		WithRequestInterceptor(func(context.Context, *nethttp.Request) error {
			calls = append(calls, "request-2")
			return nil
		}).
		WithResponseInterceptor(func(context.Context, *nethttp.Request, *nethttp.Response) error {
			calls = append(calls, "response")
			return nil
		}).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Release() })

	env, err := Get[any](context.Background(), c, testUsers)
	require.NoError(t, err)
	require.True(t, env.Success)
	assert.Equal(t, []string{"request-1", "request-2", "response"}, calls)
}
