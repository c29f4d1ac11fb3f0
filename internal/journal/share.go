package journal

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/twrkit/pkg/transfer"
	"github.com/twrkit/pkg/twitter"
)

// Sharer posts journal entries as statuses.
type Sharer struct {
	client   *twitter.Client
	store    Datastore
	notifier Notifier
	observer Observer
	tempDir  string
}

// SharerOption customizes a Sharer.
type SharerOption func(*Sharer)

// WithNotifier sets where transfer events go.
func WithNotifier(n Notifier) SharerOption {
	return func(s *Sharer) { s.notifier = n }
}

// WithShareObserver reports finished shares.
func WithShareObserver(o Observer) SharerOption {
	return func(s *Sharer) { s.observer = o }
}

// WithTempDir sets where previews are staged. Defaults to os.TempDir.
func WithTempDir(dir string) SharerOption {
	return func(s *Sharer) { s.tempDir = dir }
}

// NewSharer creates a sharer.
func NewSharer(client *twitter.Client, store Datastore, opts ...SharerOption) *Sharer {
	s := &Sharer{client: client, store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StatusText returns the status text posted for e.
func StatusText(e *Entry) string {
	return fmt.Sprintf("%s: %s", e.Get(KeyTitle), e.Get(KeyDescription))
}

// Share posts entry uid, attaching its preview when it has one. On success
// the status id is stored under KeyObjectID. done receives the id or the
// error, exactly once, unless Share itself returns an error.
func (s *Sharer) Share(ctx context.Context, uid string, done func(id string, err error)) error {
	entry, err := s.store.Get(uid)
	if err != nil {
		return fmt.Errorf("failed to load entry %s: %w", uid, err)
	}

	preview, err := s.stagePreview(entry)
	if err != nil {
		return err
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			if preview == "" {
				return
			}
			if err := os.Remove(preview); err != nil && !os.IsNotExist(err) {
				log.Printf("[journal] remove preview %s: %v", preview, err)
			}
		})
	}

	notify(s.notifier, EventTransferState, "Upload started")

	status := s.client.NewStatus()
	opts := twitter.UpdateOptions{
		OnProgress: func(p transfer.Progress) {
			notify(s.notifier, EventTransferProgress, p)
		},
	}
	finish := func(t *twitter.Tweet, err error) {
		cleanup()
		id, err := s.finish(uid, t, err)
		if s.observer != nil {
			s.observer.ShareFinished(err)
		}
		done(id, err)
	}

	if preview != "" {
		err = status.UpdateWithMedia(ctx, StatusText(entry), preview, opts, finish)
	} else {
		err = status.Update(ctx, StatusText(entry), opts, finish)
	}
	if err != nil {
		cleanup()
		notify(s.notifier, EventTransferState, "Upload failed")
		return fmt.Errorf("failed to share entry %s: %w", uid, err)
	}
	return nil
}

func (s *Sharer) finish(uid string, t *twitter.Tweet, err error) (string, error) {
	if err != nil {
		log.Printf("[journal] share %s failed: %v", uid, err)
		notify(s.notifier, EventTransferState, "Upload failed")
		return "", err
	}

	entry, err := s.store.Get(uid)
	if err != nil {
		notify(s.notifier, EventTransferState, "Upload failed")
		return "", fmt.Errorf("failed to reload entry %s: %w", uid, err)
	}
	entry.Set(KeyObjectID, t.IDStr)
	if err := s.store.Write(entry); err != nil {
		notify(s.notifier, EventTransferState, "Upload failed")
		return "", fmt.Errorf("failed to store object id: %w", err)
	}

	log.Printf("[journal] shared %s as status %s", uid, t.IDStr)
	notify(s.notifier, EventTransferState, "Upload completed")
	return t.IDStr, nil
}

// stagePreview writes the preview image to a temp file and returns its path,
// or "" if the entry has no preview.
func (s *Sharer) stagePreview(e *Entry) (string, error) {
	data := e.Get(KeyPreview)
	if data == "" {
		return "", nil
	}

	f, err := os.CreateTemp(s.tempDir, "twrkit-preview-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create preview file: %w", err)
	}
	if _, err := f.WriteString(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write preview file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write preview file: %w", err)
	}
	return f.Name(), nil
}
