// Package auth decorates outbound requests with credential material.
//
// Decoration is a pure function of (scheme, token) applied to request
// headers. It runs after default and per-call headers are set, so it wins
// over any colliding header such as a stale API key.
package auth

import (
	"encoding/base64"
	"fmt"
	nethttp "net/http"
	"strings"
)

// Scheme selects how a token is attached to a request.
type Scheme int

const (
	None Scheme = iota
	Bearer
	Basic
	APIKey
)

const (
	// HeaderAuthorization carries Bearer and Basic credentials
	HeaderAuthorization = "Authorization"
	// DefaultAPIKeyHeader is the header used by the APIKey scheme unless overridden
	DefaultAPIKeyHeader = "X-API-Key"
)

func (s Scheme) String() string {
	switch s {
	case None:
		return "none"
	case Bearer:
		return "bearer"
	case Basic:
		return "basic"
	case APIKey:
		return "apikey"
	default:
		return fmt.Sprintf("scheme(%d)", int(s))
	}
}

// ParseScheme maps a configuration value to a Scheme. Matching ignores case;
// the empty string is None.
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "bearer":
		return Bearer, nil
	case "basic":
		return Basic, nil
	case "apikey", "api_key", "api-key":
		return APIKey, nil
	default:
		return None, fmt.Errorf("unknown auth scheme %q", s)
	}
}

// Credentials pairs a scheme with its token. The zero value sends nothing.
type Credentials struct {
	Scheme Scheme
	Token  string
}

// Apply decorates h according to creds. An empty token is a no-op for every
// scheme. Basic tokens are expected to be pre-encoded (see EncodeBasic).
// apiKeyHeader defaults to DefaultAPIKeyHeader.
func Apply(h nethttp.Header, creds Credentials, apiKeyHeader string) {
	if creds.Token == "" {
		return
	}
	switch creds.Scheme {
	case Bearer:
		h.Set(HeaderAuthorization, "Bearer "+creds.Token)
	case Basic:
		h.Set(HeaderAuthorization, "Basic "+creds.Token)
	case APIKey:
		if apiKeyHeader == "" {
			apiKeyHeader = DefaultAPIKeyHeader
		}
		h.Set(apiKeyHeader, creds.Token)
	}
}

// EncodeBasic returns the base64 user:password token expected by Basic.
func EncodeBasic(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}
