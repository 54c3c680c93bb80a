package http

import (
	nethttp "net/http"
	"net/url"
	"sync"
	"time"
)

const (
	fieldBaseAddress    = "baseAddress"
	fieldTimeout        = "timeout"
	fieldDefaultHeaders = "defaultHeaders"
)

// settings are the client values frozen by the first send.
type settings struct {
	baseAddress *url.URL
	timeout     time.Duration
	headers     nethttp.Header
}

// configGuard moves from open to locked exactly once. After locking, the
// settings are never written again, so snapshots may share them.
type configGuard struct {
	mu     sync.Mutex
	cur    settings
	locked bool
}

// mutate applies fn while the guard is open.
func (g *configGuard) mutate(field string, fn func(*settings) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.locked {
		return NewConfigurationError(field, "cannot be changed after requests have been sent")
	}
	return fn(&g.cur)
}

// markInUse locks the guard and returns the settings a call must use.
func (g *configGuard) markInUse() settings {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.locked = true
	return g.cur
}

// read returns a copy safe to hand out regardless of lock state.
func (g *configGuard) read() settings {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.cur
	s.headers = g.cur.headers.Clone()
	if g.cur.baseAddress != nil {
		u := *g.cur.baseAddress
		s.baseAddress = &u
	}
	return s
}

func (g *configGuard) isLocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.locked
}

func parseBaseAddress(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, wrapValidationError("invalid base address", fieldBaseAddress, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, NewValidationError("base address must be an absolute URI", fieldBaseAddress)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, NewValidationError("base address scheme must be http or https", fieldBaseAddress)
	}
	return u, nil
}
