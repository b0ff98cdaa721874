package rpc

import (
	"context"
	"encoding/json"
	"reflect"
)

// Validator is implemented by input types that check themselves after decoding.
// A Validate error is reported as a deserialization failure.
type Validator interface {
	Validate() error
}

// typedHandler decodes params into I, calls fn, and encodes O. Func and AsyncFunc
// both build one, so the Router never sees which variant backs a method.
type typedHandler[I, O any] struct {
	fn func(ctx context.Context, in I) (O, error)
}

// Func wraps a function that returns immediately.
func Func[I, O any](fn func(in I) (O, error)) Handler {
	return &typedHandler[I, O]{
		fn: func(_ context.Context, in I) (O, error) {
			return fn(in)
		},
	}
}

// AsyncFunc wraps a function that may block on I/O. It receives the dispatch
// context and should return early when it is done.
func AsyncFunc[I, O any](fn func(ctx context.Context, in I) (O, error)) Handler {
	return &typedHandler[I, O]{fn: fn}
}

// Handle implements Handler.
func (h *typedHandler[I, O]) Handle(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	in, err := decodeParams[I](params)
	if err != nil {
		return nil, &HandlerError{Kind: KindDeserialization, Err: err}
	}

	out, err := h.fn(ctx, in)
	if err != nil {
		return nil, &HandlerError{Kind: KindBusiness, Err: err}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, &HandlerError{Kind: KindSerialization, Err: err}
	}
	return data, nil
}

// decodeParams decodes raw into a fresh I under the rules in decode.go, then
// runs the Validator hook.
func decodeParams[I any](raw json.RawMessage) (I, error) {
	var in I
	t := reflect.TypeOf((*I)(nil)).Elem()
	if isNull(raw) {
		if err := checkAbsent(t); err != nil {
			return in, err
		}
	} else {
		if err := checkObject(t, raw); err != nil {
			return in, err
		}
		if err := json.Unmarshal(raw, &in); err != nil {
			return in, err
		}
	}
	if err := validate(&in); err != nil {
		return in, err
	}
	return in, nil
}
