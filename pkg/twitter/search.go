package twitter

import (
	"context"
	"strconv"

	"github.com/twrkit/pkg/transfer"
)

// SearchOptions are the optional search query parameters.
type SearchOptions struct {
	Count   int
	SinceID string
	MaxID   string
}

// Search queries recent tweets.
type Search struct {
	client *Client
}

// Search returns the search resource.
func (c *Client) Search() *Search {
	return &Search{client: c}
}

// Tweets runs query q.
func (s *Search) Tweets(ctx context.Context, q string, opts SearchOptions, done func(*SearchResult, error)) error {
	params := []transfer.Param{transfer.Text("q", q)}
	if opts.Count > 0 {
		params = append(params, transfer.Text("count", strconv.Itoa(opts.Count)))
	}
	if opts.SinceID != "" {
		params = append(params, transfer.Text("since_id", opts.SinceID))
	}
	if opts.MaxID != "" {
		params = append(params, transfer.Text("max_id", opts.MaxID))
	}

	var result SearchResult
	req := transfer.Get(s.client.endpoint("/search/tweets.json"), params...)
	return s.client.call(ctx, "search", req, &result, nil, func(err error) {
		if err != nil {
			done(nil, err)
			return
		}
		done(&result, nil)
	})
}
