// Package rpc routes named-method requests to typed handlers.
package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Reserved error codes.
const (
	// CodeMethodNotFound is returned when no handler is registered for the method.
	CodeMethodNotFound = -32601
	// CodeHandlerFailure covers every failure surfaced by a resolved handler.
	CodeHandlerFailure = -1

	// Transport codes; Dispatch never produces these.
	CodeParseError  = -32700
	CodeRateLimited = -32029
	CodeUnavailable = -32030
)

// Request is the envelope for an incoming call.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Response is the envelope returned for every Request. Exactly one of Result
// and Error is set; the other is encoded as null.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *ErrorInfo      `json:"error"`
}

// ErrorInfo holds structured error information.
type ErrorInfo struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// NewResultResponse builds a success response. A nil result is encoded as JSON null.
func NewResultResponse(id string, result json.RawMessage) *Response {
	if result == nil {
		result = json.RawMessage("null")
	}
	return &Response{ID: id, Result: result}
}

// NewErrorResponse builds a failure response with no data.
func NewErrorResponse(id string, code int, message string) *Response {
	return &Response{
		ID: id,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// IsError reports whether the response carries an error.
func (r *Response) IsError() bool {
	return r.Error != nil
}

// Validate checks that exactly one of Result and Error is present. A success
// whose result value is the JSON literal null is valid; an error response must
// not carry a non-null result.
func (r *Response) Validate() error {
	switch {
	case r.Error != nil && !isNull(r.Result):
		return errors.New("rpc:envelope - response has both result and error")
	case r.Error == nil && len(r.Result) == 0:
		return errors.New("rpc:envelope - response has neither result nor error")
	}
	return nil
}

// DecodeResult unmarshals the result into v. It fails if the response is an error.
func (r *Response) DecodeResult(v interface{}) error {
	if r.Error != nil {
		return r.Error
	}
	return json.Unmarshal(r.Result, v)
}

// Error makes ErrorInfo usable as an error on the client side.
func (e *ErrorInfo) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// isNull reports whether a raw payload is absent or the JSON literal null.
func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
