package http

import (
	"context"
	nethttp "net/http"
)

func newCall(method, target string, payload any, opts []CallOption) Call {
	call := Call{Method: method, Target: target, Payload: payload}
	for _, opt := range opts {
		opt(&call)
	}
	return call
}

// Get performs a GET request and decodes the body into T
func Get[T any](ctx context.Context, c *Client, target string, opts ...CallOption) (*Envelope[T], error) {
	return Send(ctx, c, newCall(nethttp.MethodGet, target, nil, opts), Decoded[T]())
}

// GetText performs a GET request and returns the body as text
func GetText(ctx context.Context, c *Client, target string, opts ...CallOption) (*Envelope[string], error) {
	return Send(ctx, c, newCall(nethttp.MethodGet, target, nil, opts), RawText())
}

// Delete performs a DELETE request and decodes the body into T
func Delete[T any](ctx context.Context, c *Client, target string, opts ...CallOption) (*Envelope[T], error) {
	return Send(ctx, c, newCall(nethttp.MethodDelete, target, nil, opts), Decoded[T]())
}

// Post performs a POST request with payload and decodes the body into T
func Post[T any](ctx context.Context, c *Client, target string, payload any, opts ...CallOption) (*Envelope[T], error) {
	return Send(ctx, c, newCall(nethttp.MethodPost, target, payload, opts), Decoded[T]())
}

// Put performs a PUT request with payload and decodes the body into T
func Put[T any](ctx context.Context, c *Client, target string, payload any, opts ...CallOption) (*Envelope[T], error) {
	return Send(ctx, c, newCall(nethttp.MethodPut, target, payload, opts), Decoded[T]())
}

// Patch performs a PATCH request with payload and decodes the body into T
func Patch[T any](ctx context.Context, c *Client, target string, payload any, opts ...CallOption) (*Envelope[T], error) {
	return Send(ctx, c, newCall(nethttp.MethodPatch, target, payload, opts), Decoded[T]())
}
