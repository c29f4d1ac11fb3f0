package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Transfer identifies one dispatched request.
type Transfer struct {
	ID      string
	Request *Request
}

// Engine signs requests, runs them and reports outcomes on a Scheduler.
type Engine struct {
	client   *http.Client
	auth     Authorizer
	sched    Scheduler
	limiter  *rate.Limiter
	observer Observer
}

// Option customizes an Engine.
type Option func(*Engine)

// WithHTTPClient replaces the default HTTP/1.1 client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.client = c }
}

// WithRateLimit caps dispatched requests per second. A non-positive rps
// disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(e *Engine) {
		if rps <= 0 {
			e.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithObserver records transfer metrics.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine creates an engine that signs with auth and runs callbacks on sched.
func NewEngine(auth Authorizer, sched Scheduler, opts ...Option) *Engine {
	e := &Engine{
		client: NewHTTPClient(ClientConfig{MaxIdleConns: 10, IdleConnTimeout: 90 * time.Second}),
		auth:   auth,
		sched:  sched,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request validates req and schedules it. Validation errors are returned
// synchronously; everything else is reported through cb.
func (e *Engine) Request(ctx context.Context, req *Request, cb Callbacks) (*Transfer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	t := &Transfer{ID: uuid.NewString(), Request: req}
	if !e.sched.Post(func() { e.dispatch(ctx, t, cb) }) {
		return nil, ErrLoopStopped
	}
	return t, nil
}

// dispatch runs on the event loop: it signs and builds the request, then
// hands the network exchange to net/http.
func (e *Engine) dispatch(ctx context.Context, t *Transfer, cb Callbacks) {
	tracker := NewTracker(
		func() {
			if cb.OnStarted != nil {
				e.sched.Post(cb.OnStarted)
			}
		},
		func(p Progress) {
			if cb.OnProgress != nil {
				e.sched.Post(func() { cb.OnProgress(p) })
			}
		},
	)

	httpReq, err := e.build(ctx, t.Request, tracker)
	if err != nil {
		log.Printf("[transfer] %s: failed to build %s %s: %v", t.ID, t.Request.Method, t.Request.URL, err)
		tracker.Finish()
		deliver(cb, nil, &TransportError{Err: err})
		return
	}

	if e.observer != nil {
		e.observer.TransferStarted(t.Request.Method)
	}
	go e.exchange(ctx, t, httpReq, tracker, cb)
}

// build attaches the Authorization header and the body. POST bodies are not
// part of the signature.
func (e *Engine) build(ctx context.Context, req *Request, tracker *Tracker) (*http.Request, error) {
	switch req.Method {
	case http.MethodGet:
		header, err := e.auth.AuthorizationHeader(req.Method, req.URL, req.TextParams())
		if err != nil {
			return nil, err
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.EncodedURL(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Authorization", header)
		return httpReq, nil

	default:
		header, err := e.auth.AuthorizationHeader(req.Method, req.URL, nil)
		if err != nil {
			return nil, err
		}
		body, contentType, err := multipartBody(req.Params)
		if err != nil {
			return nil, err
		}

		size := int64(len(body))
		reader := &progressReader{
			r:     bytes.NewReader(body),
			total: size,
			fn:    tracker.Upload,
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.ContentLength = size
		if size == 0 {
			httpReq.Body = http.NoBody
		}
		if contentType != "" {
			httpReq.Header.Set("Content-Type", contentType)
		}
		httpReq.Header.Set("Authorization", header)
		return httpReq, nil
	}
}

// exchange runs off the loop and posts the outcome back to it.
func (e *Engine) exchange(ctx context.Context, t *Transfer, httpReq *http.Request, tracker *Tracker, cb Callbacks) {
	start := time.Now()
	status, body, err := e.roundTrip(ctx, httpReq, tracker)
	tracker.Finish()

	if e.observer != nil {
		e.observer.TransferFinished(t.Request.Method, hostOf(t.Request.URL), status, err,
			time.Since(start), httpReq.ContentLength, int64(len(body)))
	}
	if err != nil {
		log.Printf("[transfer] %s: %s %s failed: %v", t.ID, t.Request.Method, t.Request.URL, err)
	}

	if !e.sched.Post(func() { deliver(cb, body, err) }) {
		log.Printf("[transfer] %s: event loop stopped, outcome dropped", t.ID)
	}
}

func (e *Engine) roundTrip(ctx context.Context, httpReq *http.Request, tracker *Tracker) (int, []byte, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return 0, nil, &TransportError{Err: err}
		}
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return 0, nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(&progressReader{
		r:     resp.Body,
		total: resp.ContentLength,
		fn:    tracker.Download,
	})
	if err != nil {
		return resp.StatusCode, body, &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, body, &HTTPError{StatusCode: resp.StatusCode}
	}
	return resp.StatusCode, body, nil
}

func deliver(cb Callbacks, body []byte, err error) {
	if err != nil && cb.OnFailure != nil {
		cb.OnFailure(err)
	}
	if cb.OnComplete != nil {
		cb.OnComplete(body)
	}
}

// multipartBody encodes params as multipart/form-data. An empty param list
// yields an empty body.
func multipartBody(params []Param) ([]byte, string, error) {
	if len(params) == 0 {
		return nil, "", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range params {
		switch p := p.(type) {
		case TextParam:
			if err := w.WriteField(p.Name, p.Value); err != nil {
				return nil, "", fmt.Errorf("failed to write field %q: %w", p.Name, err)
			}
		case FileParam:
			if err := writeFile(w, p); err != nil {
				return nil, "", err
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, p FileParam) error {
	f, err := os.Open(p.Path)
	if err != nil {
		return fmt.Errorf("failed to open attachment: %w", err)
	}
	defer f.Close()

	part, err := w.CreateFormFile(p.Name, filepath.Base(p.Path))
	if err != nil {
		return fmt.Errorf("failed to create file part %q: %w", p.Name, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to read attachment: %w", err)
	}
	return nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
