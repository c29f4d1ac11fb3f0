// Package transfer performs signed, asynchronous HTTP transfers against a
// REST API and reports progress and a single terminal outcome through
// callbacks run on an event loop.
package transfer

import (
	"time"

	"github.com/twrkit/pkg/oauth"
)

// Scheduler defers a function onto the embedding event loop.
type Scheduler interface {
	// Post queues fn and returns false if the loop no longer accepts work.
	Post(fn func()) bool
}

// Authorizer computes the Authorization header for a request.
type Authorizer interface {
	AuthorizationHeader(method, rawURL string, params []oauth.Param) (string, error)
}

// Observer receives transfer measurements.
type Observer interface {
	TransferStarted(method string)
	TransferFinished(method, host string, statusCode int, err error, duration time.Duration, bytesUp, bytesDown int64)
}

// Callbacks are invoked on the event loop. OnFailure fires at most once and
// always before OnComplete; OnComplete fires exactly once per transfer.
type Callbacks struct {
	OnStarted  func()
	OnProgress func(Progress)
	OnFailure  func(err error)
	OnComplete func(body []byte)
}

// ClientConfig contains transport settings shared by HTTP/1.1 and HTTP/2.
type ClientConfig struct {
	Timeout         time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
	TLSInsecure     bool
}

// Collect folds the failure/completion pair into a single call delivered
// when the transfer completes. err is nil on success.
func Collect(fn func(body []byte, err error)) Callbacks {
	var failure error
	return Callbacks{
		OnFailure: func(err error) {
			failure = err
		},
		OnComplete: func(body []byte) {
			fn(body, failure)
		},
	}
}
