// Package handshake drives the three-legged OAuth 1.0a flow: request token,
// out-of-band user authorization, access token.
package handshake

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"

	"github.com/dghubble/oauth1"
	"github.com/dghubble/oauth1/twitter"

	"github.com/twrkit/pkg/oauth"
	"github.com/twrkit/pkg/transfer"
)

// OutOfBand is the oauth_callback value for PIN based authorization.
const OutOfBand = "oob"

// ErrOutOfOrder is returned when a step is issued before the previous one
// has succeeded, or while another step is in flight.
var ErrOutOfOrder = errors.New("handshake step out of order")

// State is the progress of a handshake.
type State int

const (
	Idle State = iota
	RequestTokenObtained
	AwaitingVerifier
	Complete
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RequestTokenObtained:
		return "request-token-obtained"
	case AwaitingVerifier:
		return "awaiting-verifier"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Token is an oauth_token/oauth_token_secret pair.
type Token struct {
	Token  string
	Secret string
}

// Doer schedules a transfer.
type Doer interface {
	Request(ctx context.Context, req *transfer.Request, cb transfer.Callbacks) (*transfer.Transfer, error)
}

// Observer is told about every finished step.
type Observer interface {
	HandshakeStep(step string, err error)
}

// Handshake is the three-legged flow bound to one credential store.
type Handshake struct {
	doer     Doer
	creds    *oauth.Credentials
	endpoint oauth1.Endpoint
	observer Observer

	mu      sync.Mutex
	state   State
	pending bool
}

// Option customizes a Handshake.
type Option func(*Handshake)

// WithEndpoint replaces the default Twitter endpoints.
func WithEndpoint(ep oauth1.Endpoint) Option {
	return func(h *Handshake) { h.endpoint = ep }
}

// WithObserver records step outcomes.
func WithObserver(o Observer) Option {
	return func(h *Handshake) { h.observer = o }
}

// New creates an idle handshake that mutates creds as it progresses.
func New(doer Doer, creds *oauth.Credentials, opts ...Option) *Handshake {
	h := &Handshake{
		doer:     doer,
		creds:    creds,
		endpoint: twitter.AuthorizeEndpoint,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// State returns the current state.
func (h *Handshake) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Reset returns an idle handshake to Idle. The credential store is left as is.
func (h *Handshake) Reset() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending {
		return ErrOutOfOrder
	}
	h.state = Idle
	return nil
}

// RequestToken obtains a temporary token. The access key/secret are cleared
// before signing and replaced by the temporary token on success.
func (h *Handshake) RequestToken(ctx context.Context, done func(Token, error)) error {
	if err := h.begin(); err != nil {
		return err
	}

	h.creds.SetAccess("", "")
	req := transfer.Get(h.endpoint.RequestTokenURL)
	_, err := h.doer.Request(ctx, req, transfer.Collect(func(body []byte, err error) {
		tok, err := parseToken("request_token", body, err)
		h.finish("request_token", err, RequestTokenObtained)
		if err == nil {
			h.creds.SetAccess(tok.Token, tok.Secret)
		}
		done(tok, err)
	}))
	if err != nil {
		h.abort()
		return err
	}
	return nil
}

// AuthorizationURL returns the page where the user obtains a verifier for
// the temporary token.
func (h *Handshake) AuthorizationURL(token string) (string, error) {
	u, err := url.Parse(h.endpoint.AuthorizeURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse authorize url: %w", err)
	}
	q := u.Query()
	q.Set("oauth_token", token)
	u.RawQuery = q.Encode()

	h.mu.Lock()
	if h.state == RequestTokenObtained {
		h.state = AwaitingVerifier
	}
	h.mu.Unlock()

	return u.String(), nil
}

// AccessToken exchanges verifier for the long-lived access token, signing
// with the temporary token obtained by RequestToken.
func (h *Handshake) AccessToken(ctx context.Context, verifier string, done func(Token, error)) error {
	h.mu.Lock()
	if h.pending || (h.state != RequestTokenObtained && h.state != AwaitingVerifier) {
		h.mu.Unlock()
		return ErrOutOfOrder
	}
	h.pending = true
	h.mu.Unlock()

	req := transfer.Post(h.endpoint.AccessTokenURL,
		transfer.Text("oauth_callback", OutOfBand),
		transfer.Text("oauth_verifier", verifier),
	)
	_, err := h.doer.Request(ctx, req, transfer.Collect(func(body []byte, err error) {
		tok, err := parseToken("access_token", body, err)
		h.finish("access_token", err, Complete)
		if err == nil {
			h.creds.SetAccess(tok.Token, tok.Secret)
		}
		done(tok, err)
	}))
	if err != nil {
		h.abort()
		return err
	}
	return nil
}

func (h *Handshake) begin() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending {
		return ErrOutOfOrder
	}
	h.pending = true
	h.state = Idle
	return nil
}

func (h *Handshake) abort() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = false
}

func (h *Handshake) finish(step string, err error, next State) {
	h.mu.Lock()
	h.pending = false
	if err != nil {
		h.state = Idle
	} else {
		h.state = next
	}
	h.mu.Unlock()

	if err != nil {
		log.Printf("[oauth] %s failed: %v", step, err)
	}
	if h.observer != nil {
		h.observer.HandshakeStep(step, err)
	}
}
