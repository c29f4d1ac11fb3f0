package handshake

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dghubble/oauth1"
	oauthtwitter "github.com/dghubble/oauth1/twitter"

	"github.com/twrkit/internal/fakeapi"
	"github.com/twrkit/internal/loop"
	"github.com/twrkit/pkg/oauth"
	"github.com/twrkit/pkg/transfer"
)

// stubDoer records requests and lets the test complete them.
type stubDoer struct {
	reqs []*transfer.Request
	cbs  []transfer.Callbacks
	err  error
}

func (d *stubDoer) Request(ctx context.Context, req *transfer.Request, cb transfer.Callbacks) (*transfer.Transfer, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.reqs = append(d.reqs, req)
	d.cbs = append(d.cbs, cb)
	return &transfer.Transfer{ID: "t", Request: req}, nil
}

func (d *stubDoer) complete(body string, err error) {
	cb := d.cbs[len(d.cbs)-1]
	if err != nil {
		cb.OnFailure(err)
	}
	cb.OnComplete([]byte(body))
}

type stepRecorder struct {
	steps []string
}

func (r *stepRecorder) HandshakeStep(step string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.steps = append(r.steps, step+":"+outcome)
}

type result struct {
	tok Token
	err error
}

func capture(out *result) func(Token, error) {
	return func(tok Token, err error) { *out = result{tok, err} }
}

func TestHandshakeWithStubDoer(t *testing.T) {
	doer := &stubDoer{}
	creds := oauth.NewCredentials(oauth.Secrets{ConsumerKey: "ck", ConsumerSecret: "cs", AccessKey: "old", AccessSecret: "old"})
	rec := &stepRecorder{}
	h := New(doer, creds, WithObserver(rec))

	var got result
	if err := h.RequestToken(context.Background(), capture(&got)); err != nil {
		t.Fatal(err)
	}
	if s := creds.Secrets(); s.AccessKey != "" || s.AccessSecret != "" {
		t.Errorf("access secrets not cleared before signing: %+v", s)
	}
	if doer.reqs[0].Method != http.MethodGet || doer.reqs[0].URL != oauthtwitter.AuthorizeEndpoint.RequestTokenURL {
		t.Errorf("request token request = %+v", doer.reqs[0])
	}

	doer.complete("oauth_token=rt&oauth_token_secret=rs&oauth_callback_confirmed=true", nil)
	if got.err != nil || got.tok != (Token{Token: "rt", Secret: "rs"}) {
		t.Fatalf("request token = %+v, %v", got.tok, got.err)
	}
	if h.State() != RequestTokenObtained {
		t.Errorf("state = %s", h.State())
	}
	if s := creds.Secrets(); s.AccessKey != "rt" || s.AccessSecret != "rs" {
		t.Errorf("temporary token not stored: %+v", s)
	}

	authURL, err := h.AuthorizationURL("rt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(authURL, "?oauth_token=rt") {
		t.Errorf("authorization url = %s", authURL)
	}
	if h.State() != AwaitingVerifier {
		t.Errorf("state = %s", h.State())
	}

	if err := h.AccessToken(context.Background(), "9999", capture(&got)); err != nil {
		t.Fatal(err)
	}
	req := doer.reqs[1]
	if req.Method != http.MethodPost || len(req.Params) != 2 {
		t.Fatalf("access token request = %+v", req)
	}
	if p := req.Params[1].(transfer.TextParam); p.Name != "oauth_verifier" || p.Value != "9999" {
		t.Errorf("verifier param = %+v", p)
	}

	doer.complete("oauth_token=at&oauth_token_secret=as&user_id=42&screen_name=fake", nil)
	if got.err != nil || got.tok.Token != "at" {
		t.Fatalf("access token = %+v, %v", got.tok, got.err)
	}
	if h.State() != Complete {
		t.Errorf("state = %s", h.State())
	}
	if s := creds.Secrets(); s != (oauth.Secrets{ConsumerKey: "ck", ConsumerSecret: "cs", AccessKey: "at", AccessSecret: "as"}) {
		t.Errorf("final secrets = %+v", s)
	}
	if strings.Join(rec.steps, ",") != "request_token:ok,access_token:ok" {
		t.Errorf("observed steps = %v", rec.steps)
	}
}

func TestHandshakeOutOfOrder(t *testing.T) {
	doer := &stubDoer{}
	h := New(doer, oauth.NewCredentials(oauth.Secrets{ConsumerKey: "ck", ConsumerSecret: "cs"}))

	if err := h.AccessToken(context.Background(), "1", func(Token, error) {}); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("AccessToken before RequestToken = %v, want ErrOutOfOrder", err)
	}

	if err := h.RequestToken(context.Background(), func(Token, error) {}); err != nil {
		t.Fatal(err)
	}
	if err := h.RequestToken(context.Background(), func(Token, error) {}); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("second RequestToken while pending = %v, want ErrOutOfOrder", err)
	}
	if err := h.Reset(); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("Reset while pending = %v, want ErrOutOfOrder", err)
	}

	doer.complete("oauth_token=rt&oauth_token_secret=rs", nil)
	if err := h.Reset(); err != nil {
		t.Fatal(err)
	}
	if h.State() != Idle {
		t.Errorf("state after Reset = %s", h.State())
	}
	if len(doer.reqs) != 1 {
		t.Errorf("%d requests submitted, want 1", len(doer.reqs))
	}
}

func TestHandshakeProviderErrorWins(t *testing.T) {
	doer := &stubDoer{}
	creds := oauth.NewCredentials(oauth.Secrets{ConsumerKey: "ck", ConsumerSecret: "cs"})
	h := New(doer, creds)

	var got result
	if err := h.RequestToken(context.Background(), capture(&got)); err != nil {
		t.Fatal(err)
	}
	doer.complete(`{"errors":[{"code":32,"message":"Could not authenticate you."}]}`,
		&transfer.HTTPError{StatusCode: http.StatusUnauthorized})

	var perr *ProviderError
	if !errors.As(got.err, &perr) {
		t.Fatalf("err = %v, want ProviderError", got.err)
	}
	if perr.StatusCode != http.StatusUnauthorized || !strings.Contains(perr.Errors, "Could not authenticate") {
		t.Errorf("provider error = %+v", perr)
	}
	if h.State() != Idle {
		t.Errorf("state = %s, want idle after failure", h.State())
	}
	if s := creds.Secrets(); s.AccessKey != "" {
		t.Errorf("failed step stored a token: %+v", s)
	}
}

func TestHandshakeFormEncodedProviderError(t *testing.T) {
	doer := &stubDoer{}
	h := New(doer, oauth.NewCredentials(oauth.Secrets{}))

	var got result
	h.RequestToken(context.Background(), capture(&got))
	doer.complete("errors=Invalid+consumer", nil)

	var perr *ProviderError
	if !errors.As(got.err, &perr) || perr.Errors != "Invalid consumer" {
		t.Errorf("err = %v", got.err)
	}
}

func TestHandshakeMalformedResponse(t *testing.T) {
	doer := &stubDoer{}
	h := New(doer, oauth.NewCredentials(oauth.Secrets{}))

	var got result
	h.RequestToken(context.Background(), capture(&got))
	doer.complete("oauth_token=only", nil)

	var merr *MalformedResponseError
	if !errors.As(got.err, &merr) {
		t.Errorf("err = %v, want MalformedResponseError", got.err)
	}
}

func TestHandshakeTransportErrorPassesThrough(t *testing.T) {
	doer := &stubDoer{}
	h := New(doer, oauth.NewCredentials(oauth.Secrets{}))

	var got result
	h.RequestToken(context.Background(), capture(&got))
	doer.complete("", &transfer.TransportError{Err: errors.New("connection refused")})

	if !transfer.IsTransport(got.err) {
		t.Errorf("err = %v, want transport error", got.err)
	}
}

func TestHandshakeSubmitErrorReleasesStep(t *testing.T) {
	doer := &stubDoer{err: transfer.ErrLoopStopped}
	h := New(doer, oauth.NewCredentials(oauth.Secrets{}))

	if err := h.RequestToken(context.Background(), func(Token, error) {}); !errors.Is(err, transfer.ErrLoopStopped) {
		t.Fatalf("err = %v", err)
	}
	doer.err = nil
	if err := h.RequestToken(context.Background(), func(Token, error) {}); err != nil {
		t.Errorf("step still pending after submit error: %v", err)
	}
}

func TestHandshakeAgainstFakeAPI(t *testing.T) {
	cfg := fakeapi.DefaultConfig()
	srv := httptest.NewServer(fakeapi.New(cfg).Handler())
	defer srv.Close()

	l := loop.New()
	l.Start(context.Background())
	defer l.Stop()

	creds := oauth.NewCredentials(oauth.Secrets{ConsumerKey: cfg.ConsumerKey, ConsumerSecret: cfg.ConsumerSecret})
	engine := transfer.NewEngine(oauth.NewSigner(creds), l)
	h := New(engine, creds, WithEndpoint(oauth1.Endpoint{
		RequestTokenURL: srv.URL + "/oauth/request_token",
		AuthorizeURL:    srv.URL + "/oauth/authorize",
		AccessTokenURL:  srv.URL + "/oauth/access_token",
	}))

	step := func(start func(func(Token, error)) error) Token {
		t.Helper()
		ch := make(chan result, 1)
		if err := start(func(tok Token, err error) { ch <- result{tok, err} }); err != nil {
			t.Fatal(err)
		}
		select {
		case r := <-ch:
			if r.err != nil {
				t.Fatal(r.err)
			}
			return r.tok
		case <-time.After(5 * time.Second):
			t.Fatal("handshake step timed out")
			return Token{}
		}
	}

	rt := step(func(done func(Token, error)) error { return h.RequestToken(context.Background(), done) })
	if !strings.HasPrefix(rt.Token, "request-token-") {
		t.Errorf("request token = %+v", rt)
	}

	authURL, err := h.AuthorizationURL(rt.Token)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Get(authURL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("authorize page status = %d", resp.StatusCode)
	}

	at := step(func(done func(Token, error)) error {
		return h.AccessToken(context.Background(), cfg.Verifier, done)
	})
	if at.Token != cfg.AccessToken || at.Secret != cfg.AccessSecret {
		t.Errorf("access token = %+v", at)
	}
	if !creds.Complete() {
		t.Error("credentials incomplete after handshake")
	}
}
