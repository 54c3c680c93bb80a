package retry

import (
	"context"
	nethttp "net/http"
)

// Kind classifies the outcome of one attempt.
type Kind int

const (
	Unclassified Kind = iota
	Completed
	Retryable
	Terminal
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Completed:
		return "completed"
	case Retryable:
		return "retryable"
	case Terminal:
		return "terminal"
	case Cancelled:
		return "cancelled"
	default:
		return "unclassified"
	}
}

// Outcome is the result of one attempt: either a response or an error.
type Outcome struct {
	Response *nethttp.Response
	Err      error
	Kind     Kind
	// Attempt is the 1-based number of the attempt that produced the outcome.
	// For a cancellation observed between attempts it is the last attempt made.
	Attempt int

	release func()
}

// WithRelease attaches a cleanup hook run by Release.
func (o Outcome) WithRelease(fn func()) Outcome {
	o.release = fn
	return o
}

// Release frees the attempt's resources. It is safe to call more than once.
func (o *Outcome) Release() {
	if o.release != nil {
		fn := o.release
		o.release = nil
		fn()
	}
}

// StatusCode returns the response status, or 0 when no response arrived.
func (o Outcome) StatusCode() int {
	if o.Response == nil {
		return 0
	}
	return o.Response.StatusCode
}

// AttemptFunc performs attempt number attempt (1-based).
type AttemptFunc func(ctx context.Context, attempt int) Outcome

// Policy executes an AttemptFunc under a retry strategy. Discarded outcomes
// are released by the policy; the returned outcome is owned by the caller.
type Policy interface {
	Execute(ctx context.Context, fn AttemptFunc) Outcome
}
