package observability

import "errors"

// Validation errors returned by Config.Validate and NewProvider.
var (
	ErrNilConfig          = errors.New("observability: nil config")
	ErrMissingServiceName = errors.New("observability: service.name is required when enabled")
	ErrInvalidSampleRate  = errors.New("observability: trace.samplerate must be within [0, 1]")
	ErrInvalidProtocol    = errors.New("observability: exporter protocol must be http or grpc")
	// gRPC endpoints take host:port, never a URL scheme.
	ErrInvalidEndpointFormat = errors.New("observability: endpoint does not match exporter protocol")
)
