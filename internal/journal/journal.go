// Package journal shares journal entries as statuses and collects the
// replies they receive as entry comments.
package journal

import (
	"errors"
	"sort"
)

// Metadata keys read and written on entries.
const (
	KeyTitle         = "title"
	KeyDescription   = "description"
	KeyPreview       = "preview"
	KeyObjectID      = "twr_object_id"
	KeyComments      = "comments"
	KeyCommentIDs    = "twr_comment_ids"
	KeyLastCommentID = "last_comment_id"
)

// Events sent to the Notifier.
const (
	EventTransferState    = "transfer-state-changed"
	EventTransferProgress = "transfer-progress"
	EventCommentsChanged  = "comments-changed"
)

// CommentIcon tags comments collected from Twitter.
const CommentIcon = "twitter-share"

var (
	// ErrEntryNotFound is returned by a Datastore for unknown uids.
	ErrEntryNotFound = errors.New("journal entry not found")

	// ErrNotShared is returned when refreshing an entry that was never shared.
	ErrNotShared = errors.New("journal entry has not been shared")
)

// Entry is a journal object and its string metadata.
type Entry struct {
	UID      string
	Metadata map[string]string
}

// NewEntry creates an entry with empty metadata.
func NewEntry(uid string) *Entry {
	return &Entry{UID: uid, Metadata: make(map[string]string)}
}

// Get returns a metadata value or "".
func (e *Entry) Get(key string) string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[key]
}

// Set stores a metadata value.
func (e *Entry) Set(key, value string) {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
}

// Keys returns the metadata keys in sorted order.
func (e *Entry) Keys() []string {
	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Datastore persists entries.
type Datastore interface {
	Get(uid string) (*Entry, error)
	Write(e *Entry) error
}

// Notifier delivers UI-facing events.
type Notifier interface {
	Notify(event string, payload any)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(event string, payload any)

func (f NotifierFunc) Notify(event string, payload any) { f(event, payload) }

// Observer is told about shares and collected comments.
type Observer interface {
	ShareFinished(err error)
	CommentsAdded(n int)
}

// Comment is one reply stored on an entry.
type Comment struct {
	From    string `json:"from"`
	Message string `json:"message"`
	Icon    string `json:"icon"`
}

func notify(n Notifier, event string, payload any) {
	if n != nil {
		n.Notify(event, payload)
	}
}
