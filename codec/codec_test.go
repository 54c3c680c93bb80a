package codec

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	ID   int    `json:"id" cbor:"id"`
	Name string `json:"name" cbor:"name"`
}

func TestJSONEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON().Encode(&buf, map[string]any{"amount": 10, "note": "<a&b>"}))
	assert.JSONEq(t, `{"amount":10,"note":"<a&b>"}`, buf.String())
	assert.NotContains(t, buf.String(), `\u003c`)

	buf.Reset()
	require.NoError(t, NewJSON(JSONOptions{EscapeHTML: true}).Encode(&buf, "<a>"))
	assert.Contains(t, buf.String(), `\u003c`)
}

func TestJSONEncodeUnsupportedValue(t *testing.T) {
	err := JSON().Encode(io.Discard, make(chan int))
	assert.ErrorContains(t, err, "json encode failed")
}

func TestJSONDecode(t *testing.T) {
	var u user
	require.NoError(t, JSON().Decode(strings.NewReader(`{"id":1,"name":"Ann"}`), &u))
	assert.Equal(t, user{ID: 1, Name: "Ann"}, u)
}

func TestJSONDecodeEmptyStream(t *testing.T) {
	var u user
	err := JSON().Decode(strings.NewReader(""), &u)
	assert.Equal(t, io.EOF, err)
}

func TestJSONDecodeOptions(t *testing.T) {
	var u user
	err := NewJSON(JSONOptions{DisallowUnknownFields: true}).Decode(strings.NewReader(`{"id":1,"extra":true}`), &u)
	assert.ErrorContains(t, err, "json decode failed")

	var v map[string]any
	require.NoError(t, NewJSON(JSONOptions{UseNumber: true}).Decode(strings.NewReader(`{"n":12345678901234567890}`), &v))
	assert.Equal(t, json.Number("12345678901234567890"), v["n"])
}

func TestJSONDecodeMalformed(t *testing.T) {
	var u user
	err := JSON().Decode(strings.NewReader(`{"id":`), &u)
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}

func TestJSONDecodeTrailingData(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "garbage", body: `{"id":1}garbage`},
		{name: "second_value", body: `{"id":1}{"id":2}`},
		{name: "second_scalar", body: `{"id":1} 2`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var u user
			err := JSON().Decode(strings.NewReader(tt.body), &u)
			assert.ErrorIs(t, err, ErrTrailingData)
		})
	}

	var u user
	require.NoError(t, JSON().Decode(strings.NewReader("{\"id\":1}\n  \n"), &u), "trailing whitespace is fine")
	assert.Equal(t, 1, u.ID)
}

func TestCBORRoundTrip(t *testing.T) {
	c, err := CBOR()
	require.NoError(t, err)
	assert.Equal(t, ContentTypeCBOR, c.ContentType())

	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf, user{ID: 7, Name: "Bo"}))

	var out user
	require.NoError(t, c.Decode(&buf, &out))
	assert.Equal(t, user{ID: 7, Name: "Bo"}, out)

	assert.Equal(t, io.EOF, c.Decode(bytes.NewReader(nil), &out))
}

func TestCBORDecodeTrailingData(t *testing.T) {
	c, err := CBOR()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf, user{ID: 7}))
	require.NoError(t, c.Encode(&buf, user{ID: 8}))

	var out user
	assert.ErrorIs(t, c.Decode(&buf, &out), ErrTrailingData)
}
