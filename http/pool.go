package http

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/sync/singleflight"
)

// TransportFactory creates the transport registered under name.
type TransportFactory func(name string) (Transport, error)

// TransportPool shares transports between clients by name. Clients built
// from a pool never close the transport; Close on the pool does.
type TransportPool struct {
	factory TransportFactory

	mu         sync.RWMutex
	transports map[string]Transport
	closed     bool

	// Singleflight for concurrent initialization
	sfg singleflight.Group
}

// NewTransportPool creates a pool. A nil factory creates one *nethttp.Client
// with its own connection pool per name.
func NewTransportPool(factory TransportFactory) *TransportPool {
	if factory == nil {
		factory = defaultTransportFactory
	}
	return &TransportPool{
		factory:    factory,
		transports: make(map[string]Transport),
	}
}

// defaultTransportFactory never touches nethttp.DefaultTransport, so closing
// the result cannot affect other clients in the process.
func defaultTransportFactory(string) (Transport, error) {
	return cleanhttp.DefaultPooledClient(), nil
}

// Get returns the transport for name, creating it on first use.
func (p *TransportPool) Get(name string) (Transport, error) {
	if t, err := p.getExisting(name); t != nil || err != nil {
		return t, err
	}

	// Use singleflight to prevent creating the same transport twice
	result, err, _ := p.sfg.Do(name, func() (any, error) {
		if t, err := p.getExisting(name); t != nil || err != nil {
			return t, err
		}

		t, err := p.factory(name)
		if err != nil {
			return nil, fmt.Errorf("failed to create transport %q: %w", name, err)
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			_ = closeTransport(t)
			return nil, ErrReleased
		}
		p.transports[name] = t
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(Transport), nil
}

func (p *TransportPool) getExisting(name string) (Transport, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrReleased
	}
	return p.transports[name], nil
}

// Len returns the number of live transports.
func (p *TransportPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.transports)
}

// Close closes every transport. Clients sharing them must not be used afterwards.
func (p *TransportPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	for name, t := range p.transports {
		if err := closeTransport(t); err != nil {
			errs = append(errs, fmt.Errorf("failed to close transport %q: %w", name, err))
		}
	}
	p.transports = nil
	return errors.Join(errs...)
}
