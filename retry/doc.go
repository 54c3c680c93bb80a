// Package retry supervises the attempts of a single outbound call.
//
// A Policy runs an AttemptFunc until the attempt yields an outcome that
// should not be retried, the attempt budget is spent, or the caller's
// context is done. Attempts are strictly sequential.
//
// Outcomes
//   - Completed: a response arrived whose status is not retryable (2xx or otherwise).
//   - Retryable: a transient transport error or a retryable status code.
//   - Terminal: an error that retrying cannot fix.
//   - Cancelled: the caller's context was done; this wins over every other kind.
//
// An AttemptFunc may pre-classify its outcome; Unclassified outcomes are
// classified by the policy.
//
// Transport errors are classified by go-retryablehttp's DefaultRetryPolicy:
// unsupported schemes, redirect loops, invalid headers and untrusted
// certificates are Terminal, everything else is Retryable.
//
// Backoff Strategy
//   - delay = BaseDelay * Multiplier^(attempt-1).
//   - Jitter stretches it to a random value in [delay, delay*(1+Jitter)].
//   - With RespectRetryAfter, a Retry-After header on 429/503 raises the delay.
//   - MaxDelay (default 30s) caps the final value.
package retry
