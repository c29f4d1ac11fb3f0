// Package twitter wraps a few REST endpoints on top of the transfer engine.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/twrkit/pkg/transfer"
)

// DefaultBaseURL is the REST API root.
const DefaultBaseURL = "https://api.twitter.com/1.1"

// Doer schedules a transfer.
type Doer interface {
	Request(ctx context.Context, req *transfer.Request, cb transfer.Callbacks) (*transfer.Transfer, error)
}

// Client builds resource requests against one API root.
type Client struct {
	doer    Doer
	baseURL string
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// NewClient creates a client submitting through doer.
func NewClient(doer Doer, opts ...ClientOption) *Client {
	c := &Client{doer: doer, baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) endpoint(format string, args ...any) string {
	return c.baseURL + fmt.Sprintf(format, args...)
}

// call submits req and decodes the body into out when done fires. done is
// invoked exactly once unless call itself returns an error.
func (c *Client) call(ctx context.Context, resource string, req *transfer.Request, out any,
	progress func(transfer.Progress), done func(error)) error {

	cb := transfer.Collect(func(body []byte, err error) {
		done(decode(resource, body, err, out))
	})
	cb.OnProgress = progress

	_, err := c.doer.Request(ctx, req, cb)
	return err
}

// decode maps a finished transfer to the resource error taxonomy.
func decode(resource string, body []byte, transferErr error, out any) error {
	if perr := providerError(resource, body, transfer.StatusCode(transferErr)); perr != nil {
		return perr
	}
	if transferErr != nil {
		return transferErr
	}
	if err := json.Unmarshal(body, out); err != nil {
		log.Printf("[twitter] %s: malformed response: %v", resource, err)
		return &MalformedResponseError{Resource: resource, Body: string(body), Err: err}
	}
	return nil
}

// providerError returns a *ProviderError when body is a JSON object with an
// "errors" key, whatever the HTTP status was.
func providerError(resource string, body []byte, status int) *ProviderError {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil
	}
	raw, ok := obj["errors"]
	if !ok {
		return nil
	}

	perr := &ProviderError{Resource: resource, StatusCode: status, Raw: string(raw)}
	if err := json.Unmarshal(raw, &perr.Errors); err != nil {
		var single string
		if json.Unmarshal(raw, &single) == nil {
			perr.Errors = []APIError{{Message: single}}
		}
	}
	return perr
}
