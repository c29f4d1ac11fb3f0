package twitter

import (
	"context"
	"sync"

	"github.com/twrkit/pkg/transfer"
)

// Status is a postable status. It is either not created (no id) or created
// (id known); create operations and id operations are only valid in one of
// the two.
type Status struct {
	client *Client

	mu sync.Mutex
	id string
}

// UpdateOptions are the optional arguments of Update and UpdateWithMedia.
type UpdateOptions struct {
	InReplyToStatusID string
	OnProgress        func(transfer.Progress)
}

// NewStatus returns a status that has not been created yet.
func (c *Client) NewStatus() *Status {
	return &Status{client: c}
}

// Status returns a handle on an existing status.
func (c *Client) Status(id string) *Status {
	return &Status{client: c, id: id}
}

// ID returns the provider id, or "" before creation.
func (s *Status) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Update posts text as a new status.
func (s *Status) Update(ctx context.Context, text string, opts UpdateOptions, done func(*Tweet, error)) error {
	return s.create(ctx, s.client.endpoint("/statuses/update.json"), text, "", opts, done)
}

// UpdateWithMedia posts text with the image at path attached as "media".
func (s *Status) UpdateWithMedia(ctx context.Context, text, path string, opts UpdateOptions, done func(*Tweet, error)) error {
	return s.create(ctx, s.client.endpoint("/statuses/update_with_media.json"), text, path, opts, done)
}

func (s *Status) create(ctx context.Context, endpoint, text, path string, opts UpdateOptions, done func(*Tweet, error)) error {
	if s.ID() != "" {
		return ErrStatusAlreadyCreated
	}

	params := []transfer.Param{transfer.Text("status", text)}
	if opts.InReplyToStatusID != "" {
		params = append(params, transfer.Text("in_reply_to_status_id", opts.InReplyToStatusID))
	}
	if path != "" {
		params = append(params, transfer.File("media", path))
	}

	return s.tweet(ctx, transfer.Post(endpoint, params...), opts.OnProgress, done)
}

// Show fetches the status.
func (s *Status) Show(ctx context.Context, done func(*Tweet, error)) error {
	id, err := s.requireID()
	if err != nil {
		return err
	}
	req := transfer.Get(s.client.endpoint("/statuses/show.json"), transfer.Text("id", id))
	return s.tweet(ctx, req, nil, done)
}

// Destroy deletes the status.
func (s *Status) Destroy(ctx context.Context, done func(*Tweet, error)) error {
	id, err := s.requireID()
	if err != nil {
		return err
	}
	return s.tweet(ctx, transfer.Post(s.client.endpoint("/statuses/destroy/%s.json", id)), nil, done)
}

// Retweet retweets the status.
func (s *Status) Retweet(ctx context.Context, done func(*Tweet, error)) error {
	id, err := s.requireID()
	if err != nil {
		return err
	}
	return s.tweet(ctx, transfer.Post(s.client.endpoint("/statuses/retweet/%s.json", id)), nil, done)
}

// Retweets lists retweets of the status.
func (s *Status) Retweets(ctx context.Context, done func([]Tweet, error)) error {
	id, err := s.requireID()
	if err != nil {
		return err
	}

	var tweets []Tweet
	req := transfer.Get(s.client.endpoint("/statuses/retweets/%s.json", id))
	return s.client.call(ctx, "status", req, &tweets, nil, func(err error) {
		if err != nil {
			done(nil, err)
			return
		}
		done(tweets, nil)
	})
}

func (s *Status) requireID() (string, error) {
	id := s.ID()
	if id == "" {
		return "", ErrStatusNotCreated
	}
	return id, nil
}

// tweet runs a request answered by a single status object and records the
// id of the first status seen.
func (s *Status) tweet(ctx context.Context, req *transfer.Request, progress func(transfer.Progress), done func(*Tweet, error)) error {
	var t Tweet
	return s.client.call(ctx, "status", req, &t, progress, func(err error) {
		if err != nil {
			done(nil, err)
			return
		}

		s.mu.Lock()
		if s.id == "" && t.IDStr != "" {
			s.id = t.IDStr
		}
		s.mu.Unlock()

		done(&t, nil)
	})
}
