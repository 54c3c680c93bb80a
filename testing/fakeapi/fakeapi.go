// Package fakeapi provides a scripted REST API for tests.
//
// Each route replays a script of responses, one per request, repeating the
// last step once the script is exhausted. Every request is recorded so tests
// can assert on headers and bodies sent by the client.
//
//	api := fakeapi.New(t)
//	api.Handle(http.MethodPost, "/orders",
//		fakeapi.Status(http.StatusTooManyRequests),
//		fakeapi.JSON(http.StatusCreated, map[string]any{"id": 7}),
//	)
package fakeapi

import (
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

// Step is one scripted response.
type Step struct {
	Status int
	Body   string
	// JSON is encoded as the body when set.
	JSON   any
	Header map[string]string
	// Delay postpones the response; the request context still wins.
	Delay time.Duration
	// Hang blocks until the client goes away.
	Hang bool
}

// Status returns a step with an empty body.
func Status(code int) Step {
	return Step{Status: code}
}

// JSON returns a step with v encoded as the body.
func JSON(code int, v any) Step {
	return Step{Status: code, JSON: v}
}

// Text returns a step with a plain body.
func Text(code int, body string) Step {
	return Step{Status: code, Body: body}
}

// Hang returns a step that never responds.
func Hang() Step {
	return Step{Hang: true}
}

// Request is a request received by the server.
type Request struct {
	Method string
	Path   string
	Query  string
	Header nethttp.Header
	Body   []byte
}

type route struct {
	script []Step
	hits   int
}

// Server is a scripted fake REST API.
type Server struct {
	echo *echo.Echo
	srv  *httptest.Server

	mu       sync.Mutex
	routes   map[string]*route
	requests []Request
}

// New starts a server closed automatically at the end of the test.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{routes: make(map[string]*route)}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(otelecho.Middleware("fakeapi"))
	e.Any("/*", s.serve)
	s.echo = e

	s.srv = httptest.NewServer(e)
	t.Cleanup(s.Close)
	return s
}

// URL returns the base URL of the server.
func (s *Server) URL() string {
	return s.srv.URL
}

// Handle scripts the responses for method and path. Calling it again
// replaces the script and resets the hit count.
func (s *Server) Handle(method, path string, script ...Step) {
	if len(script) == 0 {
		script = []Step{Status(nethttp.StatusOK)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[key(method, path)] = &route{script: script}
}

// Hits returns how many requests reached method and path.
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.routes[key(method, path)]; ok {
		return r.hits
	}
	return 0
}

// Requests returns every request received so far, in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// LastRequest returns the most recent request.
func (s *Server) LastRequest() (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}, false
	}
	return s.requests[len(s.requests)-1], true
}

// Close stops the server, dropping connections held by hanging steps.
func (s *Server) Close() {
	s.srv.CloseClientConnections()
	s.srv.Close()
}

func key(method, path string) string {
	return method + " " + path
}

func (s *Server) serve(c echo.Context) error {
	req := c.Request()
	body, _ := io.ReadAll(req.Body)

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.RawQuery,
		Header: req.Header.Clone(),
		Body:   body,
	})
	r, ok := s.routes[key(req.Method, req.URL.Path)]
	var step Step
	if ok {
		idx := min(r.hits, len(r.script)-1)
		step = r.script[idx]
		r.hits++
	}
	s.mu.Unlock()

	if !ok {
		return c.JSON(nethttp.StatusNotFound, map[string]string{"error": "no script for " + key(req.Method, req.URL.Path)})
	}

	ctx := req.Context()
	if step.Hang {
		<-ctx.Done()
		return nil
	}
	if step.Delay > 0 {
		timer := time.NewTimer(step.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}

	for name, value := range step.Header {
		c.Response().Header().Set(name, value)
	}

	status := step.Status
	if status == 0 {
		status = nethttp.StatusOK
	}
	switch {
	case step.JSON != nil:
		return c.JSON(status, step.JSON)
	case step.Body != "":
		contentType := c.Response().Header().Get(echo.HeaderContentType)
		if contentType == "" {
			contentType = echo.MIMETextPlainCharsetUTF8
		}
		return c.Blob(status, contentType, []byte(step.Body))
	default:
		return c.NoContent(status)
	}
}
