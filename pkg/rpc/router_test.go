package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const routerTestPrefix = "rpc:router_test"

func newScenarioRouter() *Router {
	r := NewRouter()
	r.Register("double", Func(double))
	r.Register("triple", AsyncFunc(func(ctx context.Context, in testInput) (testOutput, error) {
		select {
		case <-time.After(time.Millisecond):
		case <-ctx.Done():
			return testOutput{}, ctx.Err()
		}
		return testOutput{Result: in.Value * 3}, nil
	}))
	r.Register("fail", Func(func(testInput) (testOutput, error) {
		return testOutput{}, errors.New("boom")
	}))
	return r
}

func dispatch(r *Router, id, method, params string) *Response {
	var raw json.RawMessage
	if params != "" {
		raw = json.RawMessage(params)
	}
	return r.Dispatch(context.Background(), &Request{ID: id, Method: method, Params: raw})
}

func TestDispatch_Scenarios(t *testing.T) {
	r := newScenarioRouter()

	tests := []struct {
		name   string
		id     string
		method string
		params string
		want   string
	}{
		{"sync handler", "t1", "double", `{"value":7}`, `{"id":"t1","result":{"result":14},"error":null}`},
		{"unknown method", "t2", "unknown", `null`, `{"id":"t2","result":null,"error":{"code":-32601,"message":"Method 'unknown' not found","data":null}}`},
		{"async handler", "t3", "triple", `{"value":5}`, `{"id":"t3","result":{"result":15},"error":null}`},
		{"domain error", "t5", "fail", `{"value":1}`, `{"id":"t5","result":null,"error":{"code":-1,"message":"boom","data":null}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := dispatch(r, tt.id, tt.method, tt.params)
			if got := marshalJSON(t, resp); got != tt.want {
				t.Errorf("%s - got %s, want %s", routerTestPrefix, got, tt.want)
			}
			if err := resp.Validate(); err != nil {
				t.Errorf("%s - Validate: %v", routerTestPrefix, err)
			}
		})
	}
}

func TestDispatch_DecodeFailuresAreNonFatal(t *testing.T) {
	r := newScenarioRouter()

	for _, params := range []string{`{"value":"not-a-number"}`, `{}`, `{"valeu":7}`, `{"VALUE":7}`, `null`, ``} {
		resp := dispatch(r, "t4", "double", params)
		if resp.ID != "t4" {
			t.Errorf("%s - params %q: id = %q", routerTestPrefix, params, resp.ID)
		}
		if resp.Error == nil {
			t.Errorf("%s - params %q: expected an error, got result %s", routerTestPrefix, params, resp.Result)
			continue
		}
		if resp.Error.Code != CodeHandlerFailure {
			t.Errorf("%s - params %q: code = %d, want -1", routerTestPrefix, params, resp.Error.Code)
		}
		if !strings.HasPrefix(resp.Error.Message, "invalid params") {
			t.Errorf("%s - params %q: message = %q", routerTestPrefix, params, resp.Error.Message)
		}
		if resp.Result != nil || resp.Error.Data != nil {
			t.Errorf("%s - params %q: result and data must be null", routerTestPrefix, params)
		}
	}

	// The router keeps serving after failures.
	if resp := dispatch(r, "t4b", "double", `{"value":2}`); resp.IsError() {
		t.Errorf("%s - dispatch after failures: %v", routerTestPrefix, resp.Error)
	}
}

func TestDispatch_MissContainsMethodName(t *testing.T) {
	r := newScenarioRouter()

	for _, method := range []string{"", "Double", "double ", "game.join", "système"} {
		resp := dispatch(r, "x", method, "")
		if resp.Error == nil {
			t.Fatalf("%s - method %q: expected miss", routerTestPrefix, method)
		}
		if resp.Error.Code != CodeMethodNotFound {
			t.Errorf("%s - method %q: code = %d", routerTestPrefix, method, resp.Error.Code)
		}
		if !strings.Contains(resp.Error.Message, fmt.Sprintf("'%s'", method)) {
			t.Errorf("%s - method %q: message = %q", routerTestPrefix, method, resp.Error.Message)
		}
		if resp.Result != nil {
			t.Errorf("%s - method %q: result must be null", routerTestPrefix, method)
		}
	}
}

func TestDispatch_HandlerReturningErrMethodNotFoundIsBusinessFailure(t *testing.T) {
	r := NewRouter()
	r.Register("proxy", Func(func(struct{}) (int, error) {
		return 0, fmt.Errorf("upstream: %w", ErrMethodNotFound)
	}))

	resp := dispatch(r, "p", "proxy", "")
	if resp.Error == nil || resp.Error.Code != CodeHandlerFailure {
		t.Fatalf("%s - expected code -1, got %+v", routerTestPrefix, resp.Error)
	}
	if resp.Error.Message != "upstream: method not found" {
		t.Errorf("%s - message = %q", routerTestPrefix, resp.Error.Message)
	}
}

func TestDispatch_CorrelationPreserved(t *testing.T) {
	r := newScenarioRouter()

	for _, id := range []string{"req-1", "", "unique-abc-123", "ünïcödé"} {
		for _, method := range []string{"double", "unknown", "fail"} {
			for _, params := range []string{`{"value":1}`, `{}`} {
				if resp := dispatch(r, id, method, params); resp.ID != id {
					t.Errorf("%s - %s(%s): id = %q, want %q", routerTestPrefix, method, params, resp.ID, id)
				}
			}
		}
	}
}

func TestRegister_LastRegistrationWins(t *testing.T) {
	r := NewRouter()
	r.Register("calc", Func(func(struct{}) (string, error) { return "first", nil }))
	r.Register("calc", Func(func(struct{}) (string, error) { return "second", nil }))

	resp := dispatch(r, "1", "calc", "")
	if resp.IsError() || string(resp.Result) != `"second"` {
		t.Errorf("%s - got %+v, want result \"second\"", routerTestPrefix, resp)
	}
	if got := r.Methods(); len(got) != 1 || got[0] != "calc" {
		t.Errorf("%s - methods = %v", routerTestPrefix, got)
	}
}

func TestRouter_MethodsSortedAndLookup(t *testing.T) {
	r := newScenarioRouter()

	if got := strings.Join(r.Methods(), ","); got != "double,fail,triple" {
		t.Errorf("%s - methods = %s", routerTestPrefix, got)
	}
	if _, ok := r.Lookup("double"); !ok {
		t.Errorf("%s - Lookup(double) missed", routerTestPrefix)
	}
	if _, ok := r.Lookup("DOUBLE"); ok {
		t.Errorf("%s - Lookup is case-sensitive", routerTestPrefix)
	}
}

func TestDispatch_UntypedHandlerFunc(t *testing.T) {
	r := NewRouter()
	r.Register("echo", HandlerFunc(func(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
		return params, nil
	}))

	resp := dispatch(r, "e", "echo", `[1,"a",null]`)
	if resp.IsError() || string(resp.Result) != `[1,"a",null]` {
		t.Errorf("%s - echo = %+v", routerTestPrefix, resp)
	}
}

func TestDispatch_PanicIsReported(t *testing.T) {
	r := NewRouter()
	r.Register("panics", Func(func(struct{}) (int, error) {
		panic("kaboom")
	}))

	resp := dispatch(r, "p", "panics", "")
	if resp.Error == nil || resp.Error.Code != CodeHandlerFailure {
		t.Fatalf("%s - expected code -1, got %+v", routerTestPrefix, resp)
	}
	if !strings.Contains(resp.Error.Message, "kaboom") || resp.ID != "p" {
		t.Errorf("%s - response = %+v", routerTestPrefix, resp)
	}
}

func TestDispatch_MiddlewareOrderAndMisses(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	trace := func(tag string) Middleware {
		return func(method string, next Handler) Handler {
			return HandlerFunc(func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
				mu.Lock()
				calls = append(calls, tag+":"+method)
				mu.Unlock()
				return next.Handle(ctx, params)
			})
		}
	}

	var misses int32
	countMisses := func(method string, next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
			out, err := next.Handle(ctx, params)
			if IsMethodNotFound(err) && errors.Is(err, ErrMethodNotFound) {
				atomic.AddInt32(&misses, 1)
			}
			return out, err
		})
	}

	r := NewRouter(WithMiddleware(trace("outer"), trace("inner")), WithMiddleware(countMisses))
	r.Register("double", Func(double))

	if resp := dispatch(r, "1", "double", `{"value":2}`); resp.IsError() {
		t.Fatalf("%s - double failed: %v", routerTestPrefix, resp.Error)
	}
	if got := strings.Join(calls, ","); got != "outer:double,inner:double" {
		t.Errorf("%s - middleware order = %s", routerTestPrefix, got)
	}

	resp := dispatch(r, "2", "nope", "")
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("%s - expected miss, got %+v", routerTestPrefix, resp)
	}
	if got := atomic.LoadInt32(&misses); got != 1 {
		t.Errorf("%s - misses = %d, want 1", routerTestPrefix, got)
	}
}

func TestDispatch_ConcurrentIndependence(t *testing.T) {
	r := NewRouter()
	const methods = 16
	for m := 0; m < methods; m++ {
		factor := m + 1
		r.Register(fmt.Sprintf("mul.%d", factor), AsyncFunc(func(ctx context.Context, in testInput) (testOutput, error) {
			time.Sleep(time.Duration(in.Value%3) * time.Millisecond)
			return testOutput{Result: in.Value * factor}, nil
		}))
	}

	const n = 400
	var wg sync.WaitGroup
	responses := make([]*Response, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			factor := i%methods + 1
			responses[i] = dispatch(r, fmt.Sprintf("req-%d", i), fmt.Sprintf("mul.%d", factor), fmt.Sprintf(`{"value":%d}`, i))
		}(i)
	}
	wg.Wait()

	for i, resp := range responses {
		factor := i%methods + 1
		if resp.IsError() {
			t.Fatalf("%s - request %d failed: %v", routerTestPrefix, i, resp.Error)
		}
		if resp.ID != fmt.Sprintf("req-%d", i) {
			t.Errorf("%s - request %d: id = %q", routerTestPrefix, i, resp.ID)
		}
		if got := decodeOutput(t, resp.Result).Result; got != i*factor {
			t.Errorf("%s - request %d: result = %d, want %d", routerTestPrefix, i, got, i*factor)
		}
	}
}

func TestRegister_ConcurrentWithDispatch(t *testing.T) {
	r := NewRouter()
	r.Register("double", Func(double))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			r.Register(fmt.Sprintf("extra.%d", i%8), Func(double))
		}
	}()

	for i := 0; i < 200; i++ {
		if resp := dispatch(r, "c", "double", `{"value":1}`); resp.IsError() {
			t.Fatalf("%s - dispatch %d failed: %v", routerTestPrefix, i, resp.Error)
		}
	}
	close(stop)
	wg.Wait()
}
