package http

import (
	nethttp "net/http"

	"github.com/gaborage/go-bricks-rest/logger"
)

// logRequest logs the outgoing attempt
func (c *Client) logRequest(ex *exchange, req *nethttp.Request, payload []byte, attempt int) {
	c.logger.Info().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("attempt", attempt).
		Int64("call_count", ex.callCount).
		Msg("REST client request")

	if c.logPayloads {
		c.logPayload("REST client request payload", req.Header, truncate(payload, c.maxPayloadLogBytes), len(payload) > c.maxPayloadLogBytes)
	}
}

// logRetry logs the attempt being discarded before attempt n
func (c *Client) logRetry(ex *exchange, n int) {
	event := c.logger.Warn().
		Str("method", ex.call.Method).
		Str("url", ex.target.String()).
		Int("attempt", n).
		Int64("call_count", ex.callCount)

	if ex.lastStatus > 0 {
		event = event.Int("status", ex.lastStatus)
	}
	if ex.lastErr != nil {
		event = event.Err(ex.lastErr)
	}
	event.Msg("REST client retry")
}

// logResponse logs the result of the call
func logResponse[T any](c *Client, ex *exchange, env *Envelope[T]) {
	var event logger.LogEvent
	if env.Success {
		event = c.logger.Info()
	} else {
		event = c.logger.Warn()
	}
	event = event.
		Str("direction", "inbound").
		Str("method", ex.call.Method).
		Str("url", ex.target.String()).
		Int("status", env.StatusCode).
		Dur("elapsed", env.Elapsed).
		Int("attempts", env.Attempts).
		Int64("call_count", ex.callCount)

	if !env.Success {
		event = event.Str("failure", string(env.Failure)).Str("error_message", env.ErrorMessage)
	}
	event.Msg("REST client response")
}

// logPayload masks the API key header itself since a custom name may not
// match any field the logger filter knows about.
func (c *Client) logPayload(msg string, header nethttp.Header, body []byte, truncated bool) {
	if header.Get(c.apiKeyHeader) != "" {
		header = header.Clone()
		header.Set(c.apiKeyHeader, logger.DefaultMaskValue)
	}
	event := c.logger.Debug().Interface("headers", header)
	if len(body) > 0 {
		event = event.Bytes("body", body)
	}
	if truncated {
		event = event.Bool("truncated", true)
	}
	event.Msg(msg)
}

func truncate(b []byte, limit int) []byte {
	if len(b) > limit {
		return b[:limit]
	}
	return b
}
