package codec

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// CBOR returns a codec using canonical encoding and a decoder bounded
// against oversized arrays, maps and nesting.
func CBOR() (Codec, error) {
	encMode, err := cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339,
	}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoding mode: %w", err)
	}

	decMode, err := cbor.DecOptions{
		MaxArrayElements: 10000,
		MaxMapPairs:      10000,
		MaxNestedLevels:  16,
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR decoding mode: %w", err)
	}

	return &cborCodec{enc: encMode, dec: decMode}, nil
}

func (c *cborCodec) ContentType() string { return ContentTypeCBOR }

func (c *cborCodec) Encode(w io.Writer, v any) error {
	if err := c.enc.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("cbor encode failed: %w", err)
	}
	return nil
}

func (c *cborCodec) Decode(r io.Reader, v any) error {
	dec := c.dec.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return err
		}
		return fmt.Errorf("cbor decode failed: %w", err)
	}
	if err := dec.Decode(&cbor.RawMessage{}); err != io.EOF {
		if err == nil {
			return ErrTrailingData
		}
		return fmt.Errorf("cbor decode failed: %w: %w", ErrTrailingData, err)
	}
	return nil
}
