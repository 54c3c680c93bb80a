package http

import (
	"errors"
	"io"

	"github.com/gaborage/go-bricks-rest/codec"
)

// DecodeStrategy turns a 2xx response body into T.
type DecodeStrategy[T any] func(body io.Reader, c codec.Codec) (T, error)

// Decoded streams the body through the client codec. An empty body
// yields the zero value.
func Decoded[T any]() DecodeStrategy[T] {
	return func(body io.Reader, c codec.Codec) (T, error) {
		var v T
		err := c.Decode(body, &v)
		switch {
		case err == nil:
			return v, nil
		case errors.Is(err, io.EOF):
			var zero T
			return zero, nil
		default:
			var zero T
			return zero, err
		}
	}
}

// RawText returns the body unchanged as a string.
func RawText() DecodeStrategy[string] {
	return func(body io.Reader, _ codec.Codec) (string, error) {
		b, err := io.ReadAll(body)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// Discard drains the body and keeps nothing.
func Discard[T any]() DecodeStrategy[T] {
	return func(body io.Reader, _ codec.Codec) (T, error) {
		var zero T
		_, err := io.Copy(io.Discard, body)
		return zero, err
	}
}
