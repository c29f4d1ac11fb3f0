package oauth

import "sync"

// Secrets is a snapshot of the four OAuth 1.0a secrets.
type Secrets struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessKey      string
	AccessSecret   string
}

// Complete reports whether all four secrets are set.
func (s Secrets) Complete() bool {
	return s.ConsumerKey != "" && s.ConsumerSecret != "" &&
		s.AccessKey != "" && s.AccessSecret != ""
}

// Credentials holds the secrets of one session. Requests signed with
// different access tokens need separate Credentials instances.
type Credentials struct {
	mu      sync.RWMutex
	secrets Secrets
}

// NewCredentials creates a credential store seeded with s.
func NewCredentials(s Secrets) *Credentials {
	return &Credentials{secrets: s}
}

// Set replaces all four secrets.
func (c *Credentials) Set(s Secrets) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.secrets = s
}

// SetConsumer replaces the consumer key and secret.
func (c *Credentials) SetConsumer(key, secret string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.secrets.ConsumerKey = key
	c.secrets.ConsumerSecret = secret
}

// SetAccess replaces the access key and secret.
func (c *Credentials) SetAccess(key, secret string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.secrets.AccessKey = key
	c.secrets.AccessSecret = secret
}

// Secrets returns a copy of the current secrets.
func (c *Credentials) Secrets() Secrets {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.secrets
}

// Complete reports whether all four secrets are set.
func (c *Credentials) Complete() bool {
	return c.Secrets().Complete()
}
