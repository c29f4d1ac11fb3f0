package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/twrkit/pkg/twitter"
)

// Refresher pulls replies to shared entries into their comments.
type Refresher struct {
	client   *twitter.Client
	store    Datastore
	notifier Notifier
	observer Observer
}

// RefresherOption customizes a Refresher.
type RefresherOption func(*Refresher)

// WithRefreshNotifier sets where comment events go.
func WithRefreshNotifier(n Notifier) RefresherOption {
	return func(r *Refresher) { r.notifier = n }
}

// WithRefreshObserver reports collected comments.
func WithRefreshObserver(o Observer) RefresherOption {
	return func(r *Refresher) { r.observer = o }
}

// NewRefresher creates a refresher.
func NewRefresher(client *twitter.Client, store Datastore, opts ...RefresherOption) *Refresher {
	r := &Refresher{client: client, store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh fetches mentions newer than the last seen comment and stores the
// ones replying to the entry's status. done receives the number of new
// comments.
func (r *Refresher) Refresh(ctx context.Context, uid string, done func(added int, err error)) error {
	entry, err := r.store.Get(uid)
	if err != nil {
		return fmt.Errorf("failed to load entry %s: %w", uid, err)
	}

	objectID := entry.Get(KeyObjectID)
	if objectID == "" {
		return ErrNotShared
	}
	since := objectID
	if last := entry.Get(KeyLastCommentID); last != "" {
		since = last
	}

	notify(r.notifier, EventTransferState, "Download started")

	return r.client.Timeline().Mentions(ctx, twitter.TimelineOptions{SinceID: since}, func(tweets []twitter.Tweet, err error) {
		if err != nil {
			log.Printf("[journal] refresh %s failed: %v", uid, err)
			notify(r.notifier, EventTransferState, "Download failed")
			done(0, err)
			return
		}

		added, err := r.merge(uid, objectID, tweets)
		if err != nil {
			notify(r.notifier, EventTransferState, "Download failed")
			done(0, err)
			return
		}
		if r.observer != nil {
			r.observer.CommentsAdded(added)
		}
		notify(r.notifier, EventTransferState, "Download completed")
		done(added, nil)
	})
}

func (r *Refresher) merge(uid, objectID string, tweets []twitter.Tweet) (int, error) {
	entry, err := r.store.Get(uid)
	if err != nil {
		return 0, fmt.Errorf("failed to reload entry %s: %w", uid, err)
	}

	var comments []Comment
	if raw := entry.Get(KeyComments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &comments); err != nil {
			log.Printf("[journal] entry %s has unreadable comments, starting over: %v", uid, err)
			comments = nil
		}
	}

	var ids []string
	if raw := entry.Get(KeyCommentIDs); raw != "" {
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			log.Printf("[journal] entry %s has unreadable comment ids, starting over: %v", uid, err)
			ids = nil
		}
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}

	last := entry.Get(KeyLastCommentID)
	added := 0
	for _, t := range tweets {
		if t.InReplyToStatusIDStr != objectID || t.IDStr == "" || seen[t.IDStr] {
			continue
		}
		seen[t.IDStr] = true
		ids = append(ids, t.IDStr)
		comments = append(comments, Comment{From: t.User.Name, Message: t.Text, Icon: CommentIcon})
		if CompareIDs(t.IDStr, last) > 0 {
			last = t.IDStr
		}
		added++
	}

	if added == 0 {
		return 0, nil
	}

	commentsJSON, err := json.Marshal(comments)
	if err != nil {
		return 0, fmt.Errorf("failed to encode comments: %w", err)
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return 0, fmt.Errorf("failed to encode comment ids: %w", err)
	}

	entry.Set(KeyComments, string(commentsJSON))
	entry.Set(KeyCommentIDs, string(idsJSON))
	entry.Set(KeyLastCommentID, last)
	if err := r.store.Write(entry); err != nil {
		return 0, fmt.Errorf("failed to store comments: %w", err)
	}

	log.Printf("[journal] %d new comments on %s", added, uid)
	notify(r.notifier, EventCommentsChanged, string(commentsJSON))
	return added, nil
}

// CompareIDs orders decimal status ids without parsing them: a longer id is
// larger, equal lengths compare lexically.
func CompareIDs(a, b string) int {
	switch {
	case len(a) != len(b):
		if len(a) < len(b) {
			return -1
		}
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
