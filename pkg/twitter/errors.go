package twitter

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStatusNotCreated is returned by operations that need a status id
	// before one is known.
	ErrStatusNotCreated = errors.New("status not created")

	// ErrStatusAlreadyCreated is returned by create operations on a status
	// that already has an id.
	ErrStatusAlreadyCreated = errors.New("status already created")
)

// APIError is one entry of the provider's "errors" array.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ProviderError means the transfer worked but the API refused the operation.
type ProviderError struct {
	Resource   string
	StatusCode int
	Errors     []APIError
	Raw        string
}

func (e *ProviderError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ae := range e.Errors {
		if ae.Code != 0 {
			msgs = append(msgs, fmt.Sprintf("%s (%d)", ae.Message, ae.Code))
		} else {
			msgs = append(msgs, ae.Message)
		}
	}
	detail := strings.Join(msgs, "; ")
	if detail == "" {
		detail = e.Raw
	}

	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: provider error (HTTP %d): %s", e.Resource, e.StatusCode, detail)
	}
	return fmt.Sprintf("%s: provider error: %s", e.Resource, detail)
}

// MalformedResponseError is returned when a body is not the expected JSON.
type MalformedResponseError struct {
	Resource string
	Body     string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Resource, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}
