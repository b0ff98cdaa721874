package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
)

const logPrefix = "rpc:router"

// ErrMethodNotFound matches, via errors.Is, the error Dispatch produces for an
// unregistered method. Middleware sees that error like any other handler error.
// A registered handler returning ErrMethodNotFound is an ordinary failure.
var ErrMethodNotFound = errors.New("method not found")

// methodNotFoundError is produced only by the router for a registry miss.
type methodNotFoundError struct {
	method string
}

func (e *methodNotFoundError) Error() string {
	return fmt.Sprintf("Method '%s' not found", e.method)
}

func (e *methodNotFoundError) Is(target error) bool {
	return target == ErrMethodNotFound
}

// IsMethodNotFound reports whether err comes from a registry miss.
func IsMethodNotFound(err error) bool {
	var nf *methodNotFoundError
	return errors.As(err, &nf)
}

// Middleware wraps the handler resolved for method. It runs on every dispatch.
type Middleware func(method string, next Handler) Handler

// Router maps method names to handlers and resolves requests against them.
//
// Registrations publish a fresh copy of the method table through an atomic
// pointer, so Dispatch reads an immutable snapshot and never takes a lock.
type Router struct {
	mu         sync.Mutex // serializes writers only
	handlers   atomic.Pointer[map[string]Handler]
	middleware []Middleware
}

// Option configures a Router.
type Option func(*Router)

// WithMiddleware appends middleware. The first one given is the outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(r *Router) {
		r.middleware = append(r.middleware, mw...)
	}
}

// NewRouter creates an empty Router.
func NewRouter(opts ...Option) *Router {
	r := &Router{}
	empty := make(map[string]Handler)
	r.handlers.Store(&empty)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register inserts or replaces the handler for method. Re-registering a name
// keeps only the latest handler.
func (r *Router) Register(method string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.handlers.Load()
	next := make(map[string]Handler, len(current)+1)
	for name, existing := range current {
		next[name] = existing
	}
	if _, exists := next[method]; exists {
		slog.Warn(fmt.Sprintf("%s - handler for %q replaced", logPrefix, method))
	}
	next[method] = h
	r.handlers.Store(&next)
}

// Lookup returns the handler registered for method.
func (r *Router) Lookup(method string) (Handler, bool) {
	h, ok := (*r.handlers.Load())[method]
	return h, ok
}

// Methods returns the registered method names in sorted order.
func (r *Router) Methods() []string {
	snapshot := *r.handlers.Load()
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch resolves req to a handler and returns its response. It never fails:
// every outcome, including a handler panic, is reported inside the Response.
func (r *Router) Dispatch(ctx context.Context, req *Request) *Response {
	slog.Debug(fmt.Sprintf("%s - method=%s id=%s", logPrefix, req.Method, req.ID))

	h, ok := r.Lookup(req.Method)
	if !ok {
		h = notFoundHandler(req.Method)
	}
	for i := len(r.middleware) - 1; i >= 0; i-- {
		h = r.middleware[i](req.Method, h)
	}

	result, err := invoke(ctx, h, req.Params)
	switch {
	case IsMethodNotFound(err):
		return NewErrorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("Method '%s' not found", req.Method))
	case err != nil:
		slog.Debug(fmt.Sprintf("%s - method=%s id=%s failed (%s): %v", logPrefix, req.Method, req.ID, KindOf(err), err))
		return NewErrorResponse(req.ID, CodeHandlerFailure, err.Error())
	}
	return NewResultResponse(req.ID, result)
}

// invoke calls h and turns a panic into a KindPanic failure.
func invoke(ctx context.Context, h Handler, params json.RawMessage) (result json.RawMessage, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			stack := make([]byte, 4096)
			n := runtime.Stack(stack, false)
			slog.Error(fmt.Sprintf("%s - handler panic: %v\n%s", logPrefix, rec, stack[:n]))
			result = nil
			err = &HandlerError{Kind: KindPanic, Err: fmt.Errorf("%v", rec)}
		}
	}()
	return h.Handle(ctx, params)
}

func notFoundHandler(method string) Handler {
	return HandlerFunc(func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return nil, &methodNotFoundError{method: method}
	})
}
