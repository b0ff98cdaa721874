package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Handler is the capability the Router dispatches to. Handle may block while it
// performs I/O; it must honour ctx cancellation where it does. Implementations
// are shared by concurrent dispatches.
type Handler interface {
	Handle(ctx context.Context, params json.RawMessage) (json.RawMessage, error)
}

// HandlerFunc adapts an ordinary function to a Handler. It is the untyped
// variant: the function sees the raw payload and produces the raw result.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (json.RawMessage, error)

// Handle calls f(ctx, params).
func (f HandlerFunc) Handle(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	return f(ctx, params)
}

// FailureKind classifies a handler failure.
type FailureKind int

const (
	KindBusiness FailureKind = iota
	KindDeserialization
	KindSerialization
	KindPanic
)

// String returns the kind name.
func (k FailureKind) String() string {
	switch k {
	case KindDeserialization:
		return "deserialization"
	case KindSerialization:
		return "serialization"
	case KindPanic:
		return "panic"
	default:
		return "business"
	}
}

// HandlerError is the structured failure produced by the typed adapters.
// Its Error text is what ends up in ErrorInfo.Message.
type HandlerError struct {
	Kind FailureKind
	Err  error
}

func (e *HandlerError) Error() string {
	switch e.Kind {
	case KindDeserialization:
		return fmt.Sprintf("invalid params: %v", e.Err)
	case KindSerialization:
		return fmt.Sprintf("failed to encode result: %v", e.Err)
	case KindPanic:
		return fmt.Sprintf("handler panic: %v", e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind of err. Errors that are not a HandlerError
// are business failures.
func KindOf(err error) FailureKind {
	var hErr *HandlerError
	if errors.As(err, &hErr) {
		return hErr.Kind
	}
	return KindBusiness
}
