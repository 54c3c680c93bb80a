// Package http dispatches calls against JSON REST APIs and maps every
// outcome into a uniform Envelope.
//
// Dispatch
//   - Send builds a fresh *http.Request per attempt: Accept, default headers,
//     call headers, Content-Type, correlation headers, then credentials.
//   - Each attempt is bounded by the client timeout. The caller's context
//     bounds the whole call, delays included.
//   - Typed helpers (Get, Post, Put, Patch, Delete, GetText) wrap Send.
//
// Retries
//   - Delegated to a retry.Policy, retry.DefaultBackoff unless configured.
//   - Discarded attempts have their body drained and closed before the delay.
//
// Results
//   - The returned error is reserved for structural problems (invalid call,
//     missing base address, released client).
//   - Cancellation, timeouts, transport failures, non-2xx statuses and decode
//     failures are reported in the Envelope with a FailureKind.
//
// Configuration
//   - Base address, timeout and default headers are frozen by the first
//     call. Setters afterwards return a configuration error naming the field.
package http
