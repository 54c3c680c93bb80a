// Package codec serializes request payloads and deserializes response bodies.
//
// The dispatcher only depends on the Codec interface; JSON is the default
// and CBOR is available for services that negotiate application/cbor.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	// ContentTypeJSON is the media type written and accepted by JSON
	ContentTypeJSON = "application/json"
	// ContentTypeCBOR is the media type written and accepted by CBOR
	ContentTypeCBOR = "application/cbor"
)

// Codec streams values to and from wire bodies.
// Implementations must be safe for concurrent use.
type Codec interface {
	// ContentType is sent as Content-Type for bodies and as Accept for responses.
	ContentType() string
	Encode(w io.Writer, v any) error
	// Decode reads exactly one value from r into v, which must be a pointer.
	// An empty stream yields io.EOF unwrapped so callers can detect it, and
	// anything but whitespace after the value yields ErrTrailingData.
	Decode(r io.Reader, v any) error
}

// ErrTrailingData is returned when a body holds more than one value.
var ErrTrailingData = errors.New("unexpected data after top-level value")

// JSONOptions tunes the JSON codec.
type JSONOptions struct {
	// DisallowUnknownFields rejects response fields absent from the target type
	DisallowUnknownFields bool
	// UseNumber decodes numbers into json.Number inside interface values
	UseNumber bool
	// EscapeHTML keeps encoding/json's default HTML escaping of payload strings
	EscapeHTML bool
}

type jsonCodec struct {
	opts JSONOptions
}

// JSON returns the default codec.
func JSON() Codec {
	return &jsonCodec{}
}

// NewJSON returns a JSON codec with the given options.
func NewJSON(opts JSONOptions) Codec {
	return &jsonCodec{opts: opts}
}

func (c *jsonCodec) ContentType() string { return ContentTypeJSON }

func (c *jsonCodec) Encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(c.opts.EscapeHTML)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode failed: %w", err)
	}
	return nil
}

func (c *jsonCodec) Decode(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	if c.opts.DisallowUnknownFields {
		dec.DisallowUnknownFields()
	}
	if c.opts.UseNumber {
		dec.UseNumber()
	}
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return err
		}
		return fmt.Errorf("json decode failed: %w", err)
	}
	if err := dec.Decode(&json.RawMessage{}); err != io.EOF {
		if err == nil {
			return ErrTrailingData
		}
		return fmt.Errorf("json decode failed: %w: %w", ErrTrailingData, err)
	}
	return nil
}
