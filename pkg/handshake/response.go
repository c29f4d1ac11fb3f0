package handshake

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/twrkit/pkg/transfer"
)

// ProviderError is an error reported by the token endpoint itself.
type ProviderError struct {
	Step       string
	Errors     string
	StatusCode int
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: provider error (HTTP %d): %s", e.Step, e.StatusCode, e.Errors)
	}
	return fmt.Sprintf("%s: provider error: %s", e.Step, e.Errors)
}

// MalformedResponseError is returned when a token response cannot be parsed.
type MalformedResponseError struct {
	Step string
	Body string
	Err  error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed token response: %v", e.Step, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// parseToken turns a token endpoint body into a Token. Provider errors win
// over the transfer error so callers can tell them from transport failures.
func parseToken(step string, body []byte, transferErr error) (Token, error) {
	if msg, ok := providerErrors(body); ok {
		return Token{}, &ProviderError{Step: step, Errors: msg, StatusCode: transfer.StatusCode(transferErr)}
	}
	if transferErr != nil {
		return Token{}, transferErr
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return Token{}, &MalformedResponseError{Step: step, Body: string(body), Err: err}
	}

	tok := Token{
		Token:  values.Get("oauth_token"),
		Secret: values.Get("oauth_token_secret"),
	}
	if tok.Token == "" || tok.Secret == "" {
		return Token{}, &MalformedResponseError{
			Step: step,
			Body: string(body),
			Err:  fmt.Errorf("oauth_token or oauth_token_secret missing"),
		}
	}
	return tok, nil
}

// providerErrors probes body for an "errors" key, either form encoded or
// as a JSON object.
func providerErrors(body []byte) (string, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", false
	}

	if trimmed[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err == nil {
			if raw, ok := obj["errors"]; ok {
				return string(raw), true
			}
		}
		return "", false
	}

	values, err := url.ParseQuery(string(trimmed))
	if err != nil {
		return "", false
	}
	if values.Has("errors") {
		return values.Get("errors"), true
	}
	return "", false
}
