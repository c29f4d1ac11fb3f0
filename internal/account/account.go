// Package account persists the Twitter credentials in settings and runs the
// PIN based authorization when they are missing.
package account

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/twrkit/internal/settings"
	"github.com/twrkit/pkg/handshake"
	"github.com/twrkit/pkg/oauth"
)

// Settings keys.
const (
	ConsumerTokenKey  = "/desktop/sugar/collaboration/twitter_consumer_token"
	ConsumerSecretKey = "/desktop/sugar/collaboration/twitter_consumer_secret"
	AccessTokenKey    = "/desktop/sugar/collaboration/twitter_access_token"
	AccessSecretKey   = "/desktop/sugar/collaboration/twitter_access_secret"
)

// ErrNoConsumer means the application key and secret were never stored.
var ErrNoConsumer = errors.New("consumer key and secret are not configured")

// Prompt shows the authorization URL to the user and returns the PIN they
// entered.
type Prompt func(ctx context.Context, authURL string) (string, error)

// Account reads and writes credentials through a settings store.
type Account struct {
	settings settings.Store
}

// New creates an account backed by s.
func New(s settings.Store) *Account {
	return &Account{settings: s}
}

// Secrets loads all four secrets. Missing ones are "".
func (a *Account) Secrets() oauth.Secrets {
	return oauth.Secrets{
		ConsumerKey:    a.settings.GetString(ConsumerTokenKey),
		ConsumerSecret: a.settings.GetString(ConsumerSecretKey),
		AccessKey:      a.settings.GetString(AccessTokenKey),
		AccessSecret:   a.settings.GetString(AccessSecretKey),
	}
}

// Load returns a credential store seeded from settings.
func (a *Account) Load() *oauth.Credentials {
	return oauth.NewCredentials(a.Secrets())
}

// IsConfigured reports whether all four secrets are stored.
func (a *Account) IsConfigured() bool {
	return a.Secrets().Complete()
}

// SaveConsumer stores the application key and secret.
func (a *Account) SaveConsumer(key, secret string) error {
	if err := a.settings.SetString(ConsumerTokenKey, key); err != nil {
		return fmt.Errorf("failed to save consumer key: %w", err)
	}
	if err := a.settings.SetString(ConsumerSecretKey, secret); err != nil {
		return fmt.Errorf("failed to save consumer secret: %w", err)
	}
	return nil
}

// Save stores all four secrets.
func (a *Account) Save(s oauth.Secrets) error {
	if err := a.SaveConsumer(s.ConsumerKey, s.ConsumerSecret); err != nil {
		return err
	}
	if err := a.settings.SetString(AccessTokenKey, s.AccessKey); err != nil {
		return fmt.Errorf("failed to save access token: %w", err)
	}
	if err := a.settings.SetString(AccessSecretKey, s.AccessSecret); err != nil {
		return fmt.Errorf("failed to save access secret: %w", err)
	}
	return nil
}

// Configure runs the out-of-band handshake on h, whose credential store is
// creds, and saves the resulting access token. It blocks until the handshake
// finishes and must not be called from the event loop.
func (a *Account) Configure(ctx context.Context, h *handshake.Handshake, creds *oauth.Credentials, prompt Prompt) error {
	s := creds.Secrets()
	if s.ConsumerKey == "" || s.ConsumerSecret == "" {
		return ErrNoConsumer
	}

	tok, err := wait(ctx, func(done func(handshake.Token, error)) error {
		return h.RequestToken(ctx, done)
	})
	if err != nil {
		return fmt.Errorf("failed to obtain request token: %w", err)
	}

	authURL, err := h.AuthorizationURL(tok.Token)
	if err != nil {
		return fmt.Errorf("failed to build authorization url: %w", err)
	}

	verifier, err := prompt(ctx, authURL)
	if err != nil {
		if rerr := h.Reset(); rerr != nil {
			log.Printf("[account] failed to reset handshake: %v", rerr)
		}
		return fmt.Errorf("failed to read verifier: %w", err)
	}

	if _, err := wait(ctx, func(done func(handshake.Token, error)) error {
		return h.AccessToken(ctx, verifier, done)
	}); err != nil {
		return fmt.Errorf("failed to obtain access token: %w", err)
	}

	if err := a.Save(creds.Secrets()); err != nil {
		return err
	}
	log.Printf("[account] access token stored")
	return nil
}

type tokenResult struct {
	tok handshake.Token
	err error
}

func wait(ctx context.Context, start func(done func(handshake.Token, error)) error) (handshake.Token, error) {
	ch := make(chan tokenResult, 1)
	if err := start(func(tok handshake.Token, err error) {
		ch <- tokenResult{tok, err}
	}); err != nil {
		return handshake.Token{}, err
	}

	select {
	case r := <-ch:
		return r.tok, r.err
	case <-ctx.Done():
		return handshake.Token{}, ctx.Err()
	}
}
