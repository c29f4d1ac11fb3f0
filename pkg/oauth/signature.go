// Package oauth implements OAuth 1.0a (HMAC-SHA1) request signing and the
// three-legged handshake used to obtain an access token.
package oauth

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
)

const (
	signatureMethod = "HMAC-SHA1"
	oauthVersion    = "1.0"
	nonceLength     = 8
)

// Param is one name/value pair taking part in a signature.
type Param struct {
	Key   string
	Value string
}

// Signer computes Authorization headers from the secrets held by a
// Credentials store.
type Signer struct {
	creds *Credentials
	nonce func() string
	now   func() time.Time
}

// SignerOption customizes a Signer.
type SignerOption func(*Signer)

// WithNonce replaces the nonce source.
func WithNonce(fn func() string) SignerOption {
	return func(s *Signer) { s.nonce = fn }
}

// WithClock replaces the timestamp source.
func WithClock(fn func() time.Time) SignerOption {
	return func(s *Signer) { s.now = fn }
}

// NewSigner creates a signer reading secrets from creds at signing time.
func NewSigner(creds *Credentials, opts ...SignerOption) *Signer {
	s := &Signer{
		creds: creds,
		nonce: randomNonce,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Credentials returns the store the signer reads from.
func (s *Signer) Credentials() *Credentials {
	return s.creds
}

// AuthorizationHeader signs a request with a fresh nonce and the current time.
func (s *Signer) AuthorizationHeader(method, rawURL string, params []Param) (string, error) {
	return Sign(method, rawURL, params, s.creds.Secrets(), s.nonce(), s.now().Unix())
}

// Sign returns the value of the Authorization header for a request. The
// result depends only on its arguments.
func Sign(method, rawURL string, params []Param, secrets Secrets, nonce string, timestamp int64) (string, error) {
	all := make([]Param, 0, len(params)+7)
	all = append(all,
		Param{Key: "oauth_nonce", Value: nonce},
		Param{Key: "oauth_timestamp", Value: strconv.FormatInt(timestamp, 10)},
		Param{Key: "oauth_consumer_key", Value: secrets.ConsumerKey},
		Param{Key: "oauth_version", Value: oauthVersion},
		Param{Key: "oauth_token", Value: secrets.AccessKey},
		Param{Key: "oauth_signature_method", Value: signatureMethod},
	)
	all = append(all, params...)

	signature, err := Signature(method, rawURL, all, secrets)
	if err != nil {
		return "", err
	}
	all = append(all, Param{Key: "oauth_signature", Value: signature})

	sort.SliceStable(all, func(i, j int) bool { return all[i].Key < all[j].Key })

	fields := make([]string, len(all))
	for i, p := range all {
		fields[i] = fmt.Sprintf(`%s="%s"`, PercentEncode(p.Key), PercentEncode(p.Value))
	}
	return "OAuth " + strings.Join(fields, ", "), nil
}

// Signature computes the base64 HMAC-SHA1 of the signature base string.
// HMACSigner encodes both secrets itself, so they are passed raw.
func Signature(method, rawURL string, params []Param, secrets Secrets) (string, error) {
	signer := &oauth1.HMACSigner{ConsumerSecret: secrets.ConsumerSecret}
	signature, err := signer.Sign(secrets.AccessSecret, BaseString(method, rawURL, params))
	if err != nil {
		return "", fmt.Errorf("failed to sign request: %w", err)
	}
	return strings.TrimRight(signature, "\n"), nil
}

// SigningKey returns the HMAC key for secrets.
func SigningKey(secrets Secrets) string {
	return PercentEncode(secrets.ConsumerSecret) + "&" + PercentEncode(secrets.AccessSecret)
}

// BaseString builds METHOD&enc(url)&enc(canonical query).
func BaseString(method, rawURL string, params []Param) string {
	return strings.Join([]string{
		method,
		PercentEncode(rawURL),
		PercentEncode(CanonicalQuery(params)),
	}, "&")
}

// CanonicalQuery encodes params and joins them sorted by encoded key, then
// encoded value.
func CanonicalQuery(params []Param) string {
	encoded := make([]Param, len(params))
	for i, p := range params {
		encoded[i] = Param{Key: PercentEncode(p.Key), Value: PercentEncode(p.Value)}
	}
	sort.Slice(encoded, func(i, j int) bool {
		if encoded[i].Key != encoded[j].Key {
			return encoded[i].Key < encoded[j].Key
		}
		return encoded[i].Value < encoded[j].Value
	})

	pairs := make([]string, len(encoded))
	for i, p := range encoded {
		pairs[i] = p.Key + "=" + p.Value
	}
	return strings.Join(pairs, "&")
}

// PercentEncode escapes every byte outside [A-Za-z0-9-._~]. Space becomes
// %20 and '~' is left alone.
func PercentEncode(s string) string {
	return oauth1.PercentEncode(s)
}

func randomNonce() string {
	var b strings.Builder
	b.Grow(nonceLength)
	for i := 0; i < nonceLength; i++ {
		b.WriteByte(byte('0' + rand.Intn(10)))
	}
	return b.String()
}
