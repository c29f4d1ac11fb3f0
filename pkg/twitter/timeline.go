package twitter

import (
	"context"
	"strconv"

	"github.com/twrkit/pkg/transfer"
)

// TimelineOptions are the optional timeline query parameters.
type TimelineOptions struct {
	Count   int
	SinceID string
	MaxID   string
	// ExcludeReplies applies to Home only. Mentions never sends it.
	ExcludeReplies *bool
}

func (o TimelineOptions) params() []transfer.Param {
	var params []transfer.Param
	if o.Count > 0 {
		params = append(params, transfer.Text("count", strconv.Itoa(o.Count)))
	}
	if o.SinceID != "" {
		params = append(params, transfer.Text("since_id", o.SinceID))
	}
	if o.MaxID != "" {
		params = append(params, transfer.Text("max_id", o.MaxID))
	}
	if o.ExcludeReplies != nil {
		params = append(params, transfer.Text("exclude_replies", strconv.FormatBool(*o.ExcludeReplies)))
	}
	return params
}

// Timeline reads the authenticated user's timelines.
type Timeline struct {
	client *Client
}

// Timeline returns the timeline resource.
func (c *Client) Timeline() *Timeline {
	return &Timeline{client: c}
}

// Mentions fetches statuses mentioning the user. opts.ExcludeReplies is
// not sent.
func (t *Timeline) Mentions(ctx context.Context, opts TimelineOptions, done func([]Tweet, error)) error {
	opts.ExcludeReplies = nil
	return t.fetch(ctx, "/statuses/mentions_timeline.json", opts, done)
}

// Home fetches the user's home timeline.
func (t *Timeline) Home(ctx context.Context, opts TimelineOptions, done func([]Tweet, error)) error {
	return t.fetch(ctx, "/statuses/home_timeline.json", opts, done)
}

func (t *Timeline) fetch(ctx context.Context, path string, opts TimelineOptions, done func([]Tweet, error)) error {
	var tweets []Tweet
	req := transfer.Get(t.client.endpoint("%s", path), opts.params()...)
	return t.client.call(ctx, "timeline", req, &tweets, nil, func(err error) {
		if err != nil {
			done(nil, err)
			return
		}
		done(tweets, nil)
	})
}
