package exchange

import (
	"encoding/json"
	"errors"
)

const (
	// Error messages the exchange returns for states the trading cycle must
	// branch on rather than retry.
	msgNotFound  = "NotFound"
	msgOrderDone = "Order already done"
)

// APIError is an error response from the exchange, decoded from a
// {"message": ...} body. Non-JSON error bodies are wrapped verbatim.
type APIError struct {
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	return e.Message
}

// newAPIError decodes a raw error body into an APIError. If the body does not
// decode to the structured form, the raw string becomes the message.
func newAPIError(body []byte, statusCode int) *APIError {
	apiErr := &APIError{StatusCode: statusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = string(body)
	}
	return apiErr
}

// IsNotFound reports whether err is the exchange's "NotFound" outcome.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Message == msgNotFound
}

// IsOrderDone reports whether err is the "Order already done" outcome,
// returned when an order filled before a cancel request could apply.
func IsOrderDone(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Message == msgOrderDone
}

// isPassThrough reports whether err must be handed to the caller as a
// branchable outcome instead of being retried.
func isPassThrough(err error) bool {
	return IsNotFound(err) || IsOrderDone(err)
}
