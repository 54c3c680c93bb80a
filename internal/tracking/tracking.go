// Package tracking records OpenTelemetry spans and metrics for dispatched
// REST calls. Instruments are created lazily against the global providers.
package tracking

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-bricks-rest/logger"
)

const (
	instrumentationName = "go-bricks-rest/http"

	// Metric names following OpenTelemetry HTTP client semantic conventions
	metricRequestDuration = "http.client.request.duration" // Histogram in seconds
	metricRetries         = "http.client.request.retries"  // Counter of discarded attempts

	attrRequestMethod  = "http.request.method"
	attrResponseStatus = "http.response.status_code"
	attrResendCount    = "http.request.resend_count"
	attrURLFull        = "url.full"
	attrServerAddress  = "server.address"
	attrErrorType      = "error.type"
)

var (
	meterOnce   sync.Once
	meterInitMu sync.Mutex

	requestDuration metric.Float64Histogram
	retryCounter    metric.Int64Counter
)

// Call describes a finished call for span and metric recording.
type Call struct {
	Method        string
	ServerAddress string
	StatusCode    int
	Attempts      int
	// Failure is empty on success, otherwise the envelope failure kind.
	Failure string
	Err     error
}

func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize http client metric %s: %v\n", metricName, err)
	}
}

func initMeter() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	meter := otel.Meter(instrumentationName)

	var err error
	requestDuration, err = meter.Float64Histogram(
		metricRequestDuration,
		metric.WithDescription("Duration of outbound REST calls including retries"),
		metric.WithUnit("s"),
	)
	logMetricError(metricRequestDuration, err)

	retryCounter, err = meter.Int64Counter(
		metricRetries,
		metric.WithDescription("Number of attempts discarded and retried"),
		metric.WithUnit("{retry}"),
	)
	logMetricError(metricRetries, err)
}

// StartCall starts a client span for one logical call. The returned context
// carries the span so trace context is propagated on every attempt.
// Credentials in the URL's userinfo and query are masked.
func StartCall(ctx context.Context, method, url string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, "HTTP "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(attrRequestMethod, method),
			attribute.String(attrURLFull, logger.MaskURL(url)),
		),
	)
}

// EndCall annotates and ends the span started by StartCall.
func EndCall(span trace.Span, c Call) {
	if c.StatusCode > 0 {
		span.SetAttributes(attribute.Int(attrResponseStatus, c.StatusCode))
	}
	if c.Attempts > 1 {
		span.SetAttributes(attribute.Int(attrResendCount, c.Attempts-1))
	}
	if c.Failure != "" {
		span.SetAttributes(attribute.String(attrErrorType, errorType(c)))
		if c.Err != nil {
			span.RecordError(c.Err)
		}
		span.SetStatus(codes.Error, c.Failure)
	}
	span.End()
}

// RecordCall records duration and retry metrics for a finished call.
func RecordCall(ctx context.Context, c Call, duration time.Duration) {
	meterOnce.Do(initMeter)

	attrs := []attribute.KeyValue{
		attribute.String(attrRequestMethod, c.Method),
	}
	if c.ServerAddress != "" {
		attrs = append(attrs, attribute.String(attrServerAddress, c.ServerAddress))
	}
	if c.StatusCode > 0 {
		attrs = append(attrs, attribute.Int(attrResponseStatus, c.StatusCode))
	}
	if c.Failure != "" {
		attrs = append(attrs, attribute.String(attrErrorType, errorType(c)))
	}

	if requestDuration != nil {
		requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
	if retryCounter != nil && c.Attempts > 1 {
		retryCounter.Add(ctx, int64(c.Attempts-1), metric.WithAttributes(attrs...))
	}
}

// errorType follows the semantic convention of using the status code for
// HTTP failures and a short kind otherwise.
func errorType(c Call) string {
	if c.Failure == "http" && c.StatusCode > 0 {
		return strconv.Itoa(c.StatusCode)
	}
	return c.Failure
}

// ResetForTesting drops cached instruments so tests can install a fresh
// meter provider.
func ResetForTesting() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	requestDuration = nil
	retryCounter = nil
	meterOnce = sync.Once{}
}
