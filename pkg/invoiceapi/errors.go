package invoiceapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrCancelled is returned when the caller's context was cancelled before the
// request resolved. It marks a superseded operation, not a failure.
var ErrCancelled = errors.New("invoiceapi: request cancelled")

// RequestError is returned when the service answered with a non-2xx status or
// the transport failed (Status 0). Message is human readable and is taken
// from the response body's "detail" field when present.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// IsCancelled reports whether err marks a cancelled request.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// Message returns the user-facing message for err: the RequestError message
// when one is in the chain, the plain error text otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var re *RequestError
	if errors.As(err, &re) {
		return re.Message
	}
	return err.Error()
}

// newStatusError builds a RequestError from a non-2xx response body.
func newStatusError(status int, body []byte) *RequestError {
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if detail, ok := payload.Detail.(string); ok && strings.TrimSpace(detail) != "" {
			return &RequestError{Status: status, Message: detail}
		}
	}
	return &RequestError{Status: status, Message: fmt.Sprintf("Request failed with status code %d", status)}
}

// transportError normalizes a failure that happened before a status code was
// received. Cancellation of ctx maps to ErrCancelled.
func transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &RequestError{Message: "Request timed out"}
	}
	return &RequestError{Message: err.Error()}
}
