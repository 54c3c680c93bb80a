// Package testutil provides shared constants and fakes for tests across the module.
package testutil

// Test Error Messages
const (
	// TestError is a generic error message for test error scenarios.
	TestError = "test error"

	// TestConnectionRefused is the network error message for connection failures.
	TestConnectionRefused = "connection refused"
)

// Test Credentials
//
// These constants keep tokens recognizable in assertions on outgoing headers.
const (
	// TestBearerToken is a bearer token used by dispatch and auth tests.
	TestBearerToken = "abc"

	// TestAPIKey is an API key used by dispatch and auth tests.
	TestAPIKey = "key-123"
)

// Test Targets
const (
	// TestBaseAddress is an unreachable base address for tests that never dial.
	TestBaseAddress = "https://api.example.com"

	// TestUsersPath is the relative target of a single user resource.
	TestUsersPath = "/users/1"

	// TestOrdersPath is the relative target of the orders collection.
	TestOrdersPath = "/orders"
)
