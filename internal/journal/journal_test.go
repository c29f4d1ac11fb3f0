package journal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/twrkit/internal/fakeapi"
	"github.com/twrkit/internal/loop"
	"github.com/twrkit/pkg/oauth"
	"github.com/twrkit/pkg/transfer"
	"github.com/twrkit/pkg/twitter"
)

type memStore struct {
	mu      sync.Mutex
	entries map[string]map[string]string
	writes  int
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]map[string]string)}
}

func (m *memStore) Get(uid string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	md, ok := m.entries[uid]
	if !ok {
		return nil, ErrEntryNotFound
	}
	e := NewEntry(uid)
	for k, v := range md {
		e.Set(k, v)
	}
	return e, nil
}

func (m *memStore) Write(e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	md := make(map[string]string, len(e.Metadata))
	for k, v := range e.Metadata {
		md[k] = v
	}
	m.entries[e.UID] = md
	m.writes++
	return nil
}

type event struct {
	name    string
	payload any
}

type recorder struct {
	mu     sync.Mutex
	events []event
	shares []error
	added  []int
}

func (r *recorder) Notify(name string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{name, payload})
}

func (r *recorder) ShareFinished(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shares = append(r.shares, err)
}

func (r *recorder) CommentsAdded(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, n)
}

func (r *recorder) states() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.name == EventTransferState {
			out = append(out, e.payload.(string))
		}
	}
	return out
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.name == name {
			n++
		}
	}
	return n
}

type harness struct {
	fake   *fakeapi.Server
	client *twitter.Client
	store  *memStore
	rec    *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := fakeapi.DefaultConfig()
	fake := fakeapi.New(cfg)
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	l := loop.New()
	l.Start(context.Background())
	t.Cleanup(l.Stop)

	creds := oauth.NewCredentials(oauth.Secrets{
		ConsumerKey:    cfg.ConsumerKey,
		ConsumerSecret: cfg.ConsumerSecret,
		AccessKey:      cfg.AccessToken,
		AccessSecret:   cfg.AccessSecret,
	})
	engine := transfer.NewEngine(oauth.NewSigner(creds), l)
	return &harness{
		fake:   fake,
		client: twitter.NewClient(engine, twitter.WithBaseURL(srv.URL+"/1.1")),
		store:  newMemStore(),
		rec:    &recorder{},
	}
}

func (h *harness) addEntry(t *testing.T, uid string, md map[string]string) {
	t.Helper()
	e := NewEntry(uid)
	for k, v := range md {
		e.Set(k, v)
	}
	if err := h.store.Write(e); err != nil {
		t.Fatal(err)
	}
}

func (h *harness) share(t *testing.T, s *Sharer, uid string) (string, error) {
	t.Helper()
	type res struct {
		id  string
		err error
	}
	ch := make(chan res, 1)
	if err := s.Share(context.Background(), uid, func(id string, err error) { ch <- res{id, err} }); err != nil {
		return "", err
	}
	select {
	case r := <-ch:
		return r.id, r.err
	case <-time.After(5 * time.Second):
		t.Fatal("share timed out")
		return "", nil
	}
}

func (h *harness) refresh(t *testing.T, r *Refresher, uid string) (int, error) {
	t.Helper()
	type res struct {
		n   int
		err error
	}
	ch := make(chan res, 1)
	if err := r.Refresh(context.Background(), uid, func(n int, err error) { ch <- res{n, err} }); err != nil {
		return 0, err
	}
	select {
	case got := <-ch:
		return got.n, got.err
	case <-time.After(5 * time.Second):
		t.Fatal("refresh timed out")
		return 0, nil
	}
}

func TestShareWithPreview(t *testing.T) {
	h := newHarness(t)
	tmp := t.TempDir()
	h.addEntry(t, "e1", map[string]string{
		KeyTitle:       "My drawing",
		KeyDescription: "made in Paint",
		KeyPreview:     "\x89PNG\r\n\x1a\nfake",
	})

	sharer := NewSharer(h.client, h.store, WithNotifier(h.rec), WithShareObserver(h.rec), WithTempDir(tmp))
	id, err := h.share(t, sharer, "e1")
	if err != nil {
		t.Fatal(err)
	}

	tweet, ok := h.fake.Tweet(id)
	if !ok || tweet.Text != "My drawing: made in Paint" {
		t.Errorf("posted %+v", tweet)
	}
	if h.fake.Stats().MediaBytes == 0 {
		t.Error("preview was not uploaded")
	}

	entry, _ := h.store.Get("e1")
	if entry.Get(KeyObjectID) != id {
		t.Errorf("object id = %q, want %q", entry.Get(KeyObjectID), id)
	}

	leftovers, _ := os.ReadDir(tmp)
	if len(leftovers) != 0 {
		t.Errorf("preview file left behind: %v", leftovers)
	}

	states := h.rec.states()
	if len(states) != 2 || states[0] != "Upload started" || states[1] != "Upload completed" {
		t.Errorf("states = %v", states)
	}
	if h.rec.count(EventTransferProgress) == 0 {
		t.Error("no progress events")
	}
	if len(h.rec.shares) != 1 || h.rec.shares[0] != nil {
		t.Errorf("observer saw %v", h.rec.shares)
	}
}

func TestShareWithoutPreview(t *testing.T) {
	h := newHarness(t)
	h.addEntry(t, "e1", map[string]string{KeyTitle: "Notes", KeyDescription: ""})

	id, err := h.share(t, NewSharer(h.client, h.store), "e1")
	if err != nil {
		t.Fatal(err)
	}
	if tweet, _ := h.fake.Tweet(id); tweet.Text != "Notes: " {
		t.Errorf("text = %q", tweet.Text)
	}
	if h.fake.Stats().MediaBytes != 0 {
		t.Error("entry without preview uploaded media")
	}
}

func TestShareFailureKeepsEntryUnshared(t *testing.T) {
	h := newHarness(t)
	tmp := t.TempDir()
	md := map[string]string{KeyTitle: "Same", KeyDescription: "text", KeyPreview: "img"}
	h.addEntry(t, "first", md)
	h.addEntry(t, "second", md)

	sharer := NewSharer(h.client, h.store, WithNotifier(h.rec), WithShareObserver(h.rec), WithTempDir(tmp))
	if _, err := h.share(t, sharer, "first"); err != nil {
		t.Fatal(err)
	}

	_, err := h.share(t, sharer, "second")
	var perr *twitter.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want duplicate status error", err)
	}

	entry, _ := h.store.Get("second")
	if entry.Get(KeyObjectID) != "" {
		t.Error("failed share stored an object id")
	}
	if leftovers, _ := os.ReadDir(tmp); len(leftovers) != 0 {
		t.Errorf("preview file left behind: %v", leftovers)
	}
	states := h.rec.states()
	if states[len(states)-1] != "Upload failed" {
		t.Errorf("states = %v", states)
	}
	if len(h.rec.shares) != 2 || h.rec.shares[1] == nil {
		t.Errorf("observer saw %v", h.rec.shares)
	}
}

func TestShareTransportFailureCleansUpOnce(t *testing.T) {
	srv := httptest.NewServer(nil)
	baseURL := srv.URL + "/1.1"
	srv.Close()

	l := loop.New()
	l.Start(context.Background())
	t.Cleanup(l.Stop)
	engine := transfer.NewEngine(oauth.NewSigner(oauth.NewCredentials(oauth.Secrets{ConsumerKey: "ck"})), l)
	client := twitter.NewClient(engine, twitter.WithBaseURL(baseURL))

	store := newMemStore()
	e := NewEntry("e1")
	e.Set(KeyTitle, "Offline")
	e.Set(KeyDescription, "post")
	e.Set(KeyPreview, "img")
	if err := store.Write(e); err != nil {
		t.Fatal(err)
	}

	tmp := t.TempDir()
	rec := &recorder{}
	sharer := NewSharer(client, store, WithNotifier(rec), WithShareObserver(rec), WithTempDir(tmp))

	var calls int32
	errc := make(chan error, 2)
	if err := sharer.Share(context.Background(), "e1", func(_ string, err error) {
		atomic.AddInt32(&calls, 1)
		errc <- err
	}); err != nil {
		t.Fatalf("Share() error: %v", err)
	}

	var err error
	select {
	case err = <-errc:
	case <-time.After(5 * time.Second):
		t.Fatal("share timed out")
	}
	l.Stop()

	if !transfer.IsTransport(err) {
		t.Errorf("err = %v, want transport error", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("done fired %d times", n)
	}
	if leftovers, _ := os.ReadDir(tmp); len(leftovers) != 0 {
		t.Errorf("preview file left behind: %v", leftovers)
	}
	if got, _ := store.Get("e1"); got.Get(KeyObjectID) != "" {
		t.Error("failed share stored an object id")
	}
	if len(rec.shares) != 1 || rec.shares[0] == nil {
		t.Errorf("observer saw %v", rec.shares)
	}
	if states := rec.states(); states[len(states)-1] != "Upload failed" {
		t.Errorf("states = %v", states)
	}
}

func TestShareUnknownEntry(t *testing.T) {
	h := newHarness(t)
	err := NewSharer(h.client, h.store).Share(context.Background(), "missing", func(string, error) {
		t.Error("callback fired for a missing entry")
	})
	if !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("err = %v, want ErrEntryNotFound", err)
	}
}

func TestRefreshCollectsReplies(t *testing.T) {
	h := newHarness(t)
	h.addEntry(t, "e1", map[string]string{KeyTitle: "Post", KeyDescription: "body"})
	id, err := h.share(t, NewSharer(h.client, h.store), "e1")
	if err != nil {
		t.Fatal(err)
	}

	friend := twitter.User{IDStr: "7", Name: "Friend", ScreenName: "friend"}
	reply := h.fake.AddMention(friend, "nice one", id)
	h.fake.AddMention(friend, "unrelated", "")

	refresher := NewRefresher(h.client, h.store, WithRefreshNotifier(h.rec), WithRefreshObserver(h.rec))
	added, err := h.refresh(t, refresher, "e1")
	if err != nil {
		t.Fatal(err)
	}
	if added != 1 {
		t.Fatalf("added = %d, want 1", added)
	}

	entry, _ := h.store.Get("e1")
	var comments []Comment
	if err := json.Unmarshal([]byte(entry.Get(KeyComments)), &comments); err != nil {
		t.Fatal(err)
	}
	want := Comment{From: "Friend", Message: "@fake nice one", Icon: CommentIcon}
	if len(comments) != 1 || comments[0] != want {
		t.Errorf("comments = %+v", comments)
	}
	if entry.Get(KeyLastCommentID) != reply.IDStr {
		t.Errorf("last comment id = %q, want %q", entry.Get(KeyLastCommentID), reply.IDStr)
	}
	if h.rec.count(EventCommentsChanged) != 1 {
		t.Errorf("comments-changed fired %d times", h.rec.count(EventCommentsChanged))
	}

	writes := h.store.writes
	added, err = h.refresh(t, refresher, "e1")
	if err != nil || added != 0 {
		t.Errorf("second refresh = %d, %v", added, err)
	}
	if h.store.writes != writes {
		t.Error("refresh without new replies rewrote the entry")
	}
	if h.rec.count(EventCommentsChanged) != 1 {
		t.Error("comments-changed fired without new comments")
	}

	h.fake.AddMention(friend, "another", id)
	added, err = h.refresh(t, refresher, "e1")
	if err != nil || added != 1 {
		t.Fatalf("third refresh = %d, %v", added, err)
	}
	entry, _ = h.store.Get("e1")
	comments = nil
	json.Unmarshal([]byte(entry.Get(KeyComments)), &comments)
	if len(comments) != 2 {
		t.Errorf("comments = %+v", comments)
	}
	if got := h.rec.added; len(got) != 3 || got[0] != 1 || got[1] != 0 || got[2] != 1 {
		t.Errorf("observer saw %v", got)
	}
}

func TestRefreshResetsUnreadableComments(t *testing.T) {
	h := newHarness(t)
	h.addEntry(t, "e1", map[string]string{KeyTitle: "Post"})
	id, err := h.share(t, NewSharer(h.client, h.store), "e1")
	if err != nil {
		t.Fatal(err)
	}

	entry, _ := h.store.Get("e1")
	entry.Set(KeyComments, "not json")
	h.store.Write(entry)

	h.fake.AddMention(twitter.User{Name: "Friend"}, "hi", id)
	added, err := h.refresh(t, NewRefresher(h.client, h.store), "e1")
	if err != nil || added != 1 {
		t.Fatalf("refresh = %d, %v", added, err)
	}
	entry, _ = h.store.Get("e1")
	var comments []Comment
	if err := json.Unmarshal([]byte(entry.Get(KeyComments)), &comments); err != nil || len(comments) != 1 {
		t.Errorf("comments = %q", entry.Get(KeyComments))
	}
}

func TestRefreshUnshared(t *testing.T) {
	h := newHarness(t)
	h.addEntry(t, "e1", map[string]string{KeyTitle: "Draft"})

	err := NewRefresher(h.client, h.store).Refresh(context.Background(), "e1", func(int, error) {
		t.Error("callback fired for an unshared entry")
	})
	if !errors.Is(err, ErrNotShared) {
		t.Errorf("err = %v, want ErrNotShared", err)
	}
}

func TestCompareIDs(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1", "1", 0},
		{"9", "10", -1},
		{"100", "99", 1},
		{"1000000000000000002", "1000000000000000001", 1},
		{"", "1", -1},
	}
	for _, tt := range tests {
		if got := CompareIDs(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareIDs(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestStatusText(t *testing.T) {
	e := NewEntry("x")
	e.Set(KeyTitle, "Title")
	e.Set(KeyDescription, "Desc")
	if got := StatusText(e); got != "Title: Desc" {
		t.Errorf("StatusText = %q", got)
	}
}
