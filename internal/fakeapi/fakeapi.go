// Package fakeapi is an in-memory stand-in for the Twitter REST and OAuth
// endpoints. It checks every HMAC-SHA1 signature it receives.
package fakeapi

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twrkit/pkg/oauth"
	"github.com/twrkit/pkg/twitter"
)

// Config seeds the fake account.
type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
	Verifier       string
	User           twitter.User
}

// DefaultConfig returns fixed credentials usable in tests and demos.
func DefaultConfig() Config {
	return Config{
		ConsumerKey:    "fake-consumer-key",
		ConsumerSecret: "fake-consumer/secret+=",
		AccessToken:    "fake-access-token",
		AccessSecret:   "fake-access/secret&=",
		Verifier:       "1234567",
		User:           twitter.User{IDStr: "42", Name: "Fake User", ScreenName: "fake"},
	}
}

// Stats tracks request statistics
type Stats struct {
	TotalRequests  int64 `json:"total_requests"`
	GetRequests    int64 `json:"get_requests"`
	PostRequests   int64 `json:"post_requests"`
	BadSignatures  int64 `json:"bad_signatures"`
	MediaBytes     int64 `json:"media_bytes"`
	StatusesPosted int64 `json:"statuses_posted"`
}

// Server holds the fake account state.
type Server struct {
	cfg Config

	mu            sync.RWMutex
	requestTokens map[string]string
	tweets        map[string]*twitter.Tweet
	retweets      map[string][]string
	order         []string
	nextID        int64
	nextToken     int

	stats Stats
}

// New creates a server with no statuses.
func New(cfg Config) *Server {
	return &Server{
		cfg:           cfg,
		requestTokens: make(map[string]string),
		tweets:        make(map[string]*twitter.Tweet),
		retweets:      make(map[string][]string),
		nextID:        1_000_000_000_000_000_000,
	}
}

// Handler returns the routes, rooted like api.twitter.com: OAuth under
// /oauth and REST under /1.1.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /oauth/request_token", s.handleRequestToken)
	mux.HandleFunc("GET /oauth/authorize", s.handleAuthorize)
	mux.HandleFunc("POST /oauth/access_token", s.handleAccessToken)

	mux.HandleFunc("POST /1.1/statuses/update.json", s.authed(s.handleUpdate))
	mux.HandleFunc("POST /1.1/statuses/update_with_media.json", s.authed(s.handleUpdate))
	mux.HandleFunc("GET /1.1/statuses/show.json", s.authed(s.handleShow))
	mux.HandleFunc("POST /1.1/statuses/destroy/{id}", s.authed(s.handleDestroy))
	mux.HandleFunc("POST /1.1/statuses/retweet/{id}", s.authed(s.handleRetweet))
	mux.HandleFunc("GET /1.1/statuses/retweets/{id}", s.authed(s.handleRetweets))
	mux.HandleFunc("GET /1.1/statuses/mentions_timeline.json", s.authed(s.handleMentions))
	mux.HandleFunc("GET /1.1/statuses/home_timeline.json", s.authed(s.handleHome))
	mux.HandleFunc("GET /1.1/search/tweets.json", s.authed(s.handleSearch))

	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Stats())
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&s.stats.TotalRequests, 1)
		switch r.Method {
		case http.MethodGet:
			atomic.AddInt64(&s.stats.GetRequests, 1)
		case http.MethodPost:
			atomic.AddInt64(&s.stats.PostRequests, 1)
		}
		mux.ServeHTTP(w, r)
	})
}

// Stats returns a snapshot of the counters.
func (s *Server) Stats() Stats {
	return Stats{
		TotalRequests:  atomic.LoadInt64(&s.stats.TotalRequests),
		GetRequests:    atomic.LoadInt64(&s.stats.GetRequests),
		PostRequests:   atomic.LoadInt64(&s.stats.PostRequests),
		BadSignatures:  atomic.LoadInt64(&s.stats.BadSignatures),
		MediaBytes:     atomic.LoadInt64(&s.stats.MediaBytes),
		StatusesPosted: atomic.LoadInt64(&s.stats.StatusesPosted),
	}
}

// AddMention stores a status by from mentioning the account, optionally as
// a reply to inReplyTo.
func (s *Server) AddMention(from twitter.User, text, inReplyTo string) twitter.Tweet {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.addLocked(from, "@"+s.cfg.User.ScreenName+" "+text, inReplyTo)
	return *t
}

// Tweet returns a stored status.
func (s *Server) Tweet(id string) (twitter.Tweet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tweets[id]
	if !ok {
		return twitter.Tweet{}, false
	}
	return *t, true
}

func (s *Server) addLocked(user twitter.User, text, inReplyTo string) *twitter.Tweet {
	s.nextID++
	t := &twitter.Tweet{
		IDStr:                strconv.FormatInt(s.nextID, 10),
		Text:                 text,
		CreatedAt:            time.Now().UTC().Format(time.RubyDate),
		InReplyToStatusIDStr: inReplyTo,
		User:                 user,
	}
	s.tweets[t.IDStr] = t
	s.order = append(s.order, t.IDStr)
	return t
}

// authParams parses an Authorization header into its decoded parameters.
func authParams(header string) (map[string]string, error) {
	if !strings.HasPrefix(header, "OAuth ") {
		return nil, fmt.Errorf("missing OAuth authorization")
	}
	params := make(map[string]string)
	for _, field := range strings.Split(strings.TrimPrefix(header, "OAuth "), ",") {
		field = strings.TrimSpace(field)
		k, v, ok := strings.Cut(field, "=")
		if !ok {
			return nil, fmt.Errorf("malformed field %q", field)
		}
		key, err := url.PathUnescape(k)
		if err != nil {
			return nil, err
		}
		value, err := url.PathUnescape(strings.Trim(v, `"`))
		if err != nil {
			return nil, err
		}
		params[key] = value
	}
	return params, nil
}

// verify checks the request signature using tokenSecret for the token the
// request carries. It returns the header parameters.
func (s *Server) verify(r *http.Request, tokenSecret func(token string) (string, bool)) (map[string]string, bool) {
	params, err := authParams(r.Header.Get("Authorization"))
	if err != nil {
		log.Printf("[fakeapi] %s %s: %v", r.Method, r.URL.Path, err)
		return nil, false
	}
	if params["oauth_consumer_key"] != s.cfg.ConsumerKey {
		return nil, false
	}
	secret, ok := tokenSecret(params["oauth_token"])
	if !ok {
		return nil, false
	}

	var signed []oauth.Param
	for k, v := range params {
		if k != "oauth_signature" {
			signed = append(signed, oauth.Param{Key: k, Value: v})
		}
	}
	sort.Slice(signed, func(i, j int) bool { return signed[i].Key < signed[j].Key })

	rawURL := "http://" + r.Host + r.URL.Path
	if r.TLS != nil {
		rawURL = "https://" + r.Host + r.URL.Path
	}
	want := hmacSHA1(signingKey(s.cfg.ConsumerSecret, secret), oauth.BaseString(r.Method, rawURL, signed))
	if !hmac.Equal([]byte(want), []byte(params["oauth_signature"])) {
		atomic.AddInt64(&s.stats.BadSignatures, 1)
		log.Printf("[fakeapi] %s %s: bad signature", r.Method, r.URL.Path)
		return nil, false
	}
	return params, true
}

// signingKey builds the RFC 5849 HMAC key without going through the client
// signing code.
func signingKey(consumerSecret, tokenSecret string) string {
	return rfc3986(consumerSecret) + "&" + rfc3986(tokenSecret)
}

func rfc3986(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func hmacSHA1(key, base string) string {
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ok := s.verify(r, func(token string) (string, bool) {
			return s.cfg.AccessSecret, token == s.cfg.AccessToken
		})
		if !ok {
			writeErrors(w, http.StatusUnauthorized, 89, "Invalid or expired token.")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleRequestToken(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.verify(r, func(token string) (string, bool) { return "", token == "" }); !ok {
		writeErrors(w, http.StatusUnauthorized, 32, "Could not authenticate you.")
		return
	}

	s.mu.Lock()
	s.nextToken++
	token := fmt.Sprintf("request-token-%d", s.nextToken)
	secret := fmt.Sprintf("request/secret+%d", s.nextToken)
	s.requestTokens[token] = secret
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
	io.WriteString(w, url.Values{
		"oauth_token":              {token},
		"oauth_token_secret":       {secret},
		"oauth_callback_confirmed": {"true"},
	}.Encode())
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	_, ok := s.requestTokens[r.URL.Query().Get("oauth_token")]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, "unknown request token", http.StatusBadRequest)
		return
	}
	fmt.Fprintf(w, "PIN: %s\n", s.cfg.Verifier)
}

func (s *Server) handleAccessToken(w http.ResponseWriter, r *http.Request) {
	params, ok := s.verify(r, func(token string) (string, bool) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		secret, ok := s.requestTokens[token]
		return secret, ok
	})
	if !ok {
		writeErrors(w, http.StatusUnauthorized, 32, "Could not authenticate you.")
		return
	}
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if r.FormValue("oauth_verifier") != s.cfg.Verifier {
		writeErrors(w, http.StatusUnauthorized, 32, "Invalid oauth_verifier parameter")
		return
	}

	s.mu.Lock()
	delete(s.requestTokens, params["oauth_token"])
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
	io.WriteString(w, url.Values{
		"oauth_token":        {s.cfg.AccessToken},
		"oauth_token_secret": {s.cfg.AccessSecret},
		"user_id":            {s.cfg.User.IDStr},
		"screen_name":        {s.cfg.User.ScreenName},
	}.Encode())
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeErrors(w, http.StatusBadRequest, 44, "malformed multipart body")
		return
	}
	text := r.FormValue("status")
	if text == "" {
		writeErrors(w, http.StatusForbidden, 170, "Missing required parameter: status.")
		return
	}

	if strings.HasSuffix(r.URL.Path, "update_with_media.json") {
		f, hdr, err := r.FormFile("media")
		if err != nil {
			writeErrors(w, http.StatusBadRequest, 195, "Missing or invalid url parameter.")
			return
		}
		f.Close()
		atomic.AddInt64(&s.stats.MediaBytes, hdr.Size)
	}

	s.mu.Lock()
	for _, t := range s.tweets {
		if t.User.IDStr == s.cfg.User.IDStr && t.Text == text {
			s.mu.Unlock()
			writeErrors(w, http.StatusForbidden, 187, "Status is a duplicate.")
			return
		}
	}
	t := s.addLocked(s.cfg.User, text, r.FormValue("in_reply_to_status_id"))
	out := *t
	s.mu.Unlock()

	atomic.AddInt64(&s.stats.StatusesPosted, 1)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	t, ok := s.Tweet(r.URL.Query().Get("id"))
	if !ok {
		writeErrors(w, http.StatusNotFound, 144, "No status found with that ID.")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDestroy(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(r.PathValue("id"), ".json")

	s.mu.Lock()
	t, ok := s.tweets[id]
	if ok {
		delete(s.tweets, id)
	}
	s.mu.Unlock()

	if !ok {
		writeErrors(w, http.StatusNotFound, 144, "No status found with that ID.")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleRetweet(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(r.PathValue("id"), ".json")

	s.mu.Lock()
	orig, ok := s.tweets[id]
	if !ok {
		s.mu.Unlock()
		writeErrors(w, http.StatusNotFound, 144, "No status found with that ID.")
		return
	}
	orig.RetweetCount++
	rt := s.addLocked(s.cfg.User, "RT @"+orig.User.ScreenName+": "+orig.Text, "")
	s.retweets[id] = append(s.retweets[id], rt.IDStr)
	out := *rt
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRetweets(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(r.PathValue("id"), ".json")

	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.tweets[id]; !ok {
		writeErrors(w, http.StatusNotFound, 144, "No status found with that ID.")
		return
	}
	out := make([]twitter.Tweet, 0, len(s.retweets[id]))
	for _, rid := range s.retweets[id] {
		if t, ok := s.tweets[rid]; ok {
			out = append(out, *t)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMentions(w http.ResponseWriter, r *http.Request) {
	mention := "@" + s.cfg.User.ScreenName
	writeJSON(w, http.StatusOK, s.timeline(r.URL.Query(), func(t *twitter.Tweet) bool {
		return strings.Contains(t.Text, mention)
	}))
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	excludeReplies := q.Get("exclude_replies") == "true"
	writeJSON(w, http.StatusOK, s.timeline(q, func(t *twitter.Tweet) bool {
		return !excludeReplies || t.InReplyToStatusIDStr == ""
	}))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.ToLower(q.Get("q"))
	if query == "" {
		writeErrors(w, http.StatusBadRequest, 25, "Query parameters are missing.")
		return
	}
	statuses := s.timeline(q, func(t *twitter.Tweet) bool {
		return strings.Contains(strings.ToLower(t.Text), query)
	})
	writeJSON(w, http.StatusOK, twitter.SearchResult{
		Statuses: statuses,
		Metadata: twitter.SearchMetadata{Count: len(statuses), Query: q.Get("q")},
	})
}

// timeline returns matching statuses newest first, honouring since_id,
// max_id and count.
func (s *Server) timeline(q url.Values, match func(*twitter.Tweet) bool) []twitter.Tweet {
	sinceID, maxID := q.Get("since_id"), q.Get("max_id")
	count, _ := strconv.Atoi(q.Get("count"))
	if count <= 0 {
		count = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]twitter.Tweet, 0)
	for i := len(s.order) - 1; i >= 0 && len(out) < count; i-- {
		t, ok := s.tweets[s.order[i]]
		if !ok || !match(t) {
			continue
		}
		if sinceID != "" && compareIDs(t.IDStr, sinceID) <= 0 {
			continue
		}
		if maxID != "" && compareIDs(t.IDStr, maxID) > 0 {
			continue
		}
		out = append(out, *t)
	}
	return out
}

func compareIDs(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrors(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, map[string]any{
		"errors": []twitter.APIError{{Code: code, Message: message}},
	})
}
