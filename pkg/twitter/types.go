package twitter

// User is the subset of a user object the tools read.
type User struct {
	IDStr      string `json:"id_str"`
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
}

// Tweet is the subset of a status object the tools read.
type Tweet struct {
	IDStr                string `json:"id_str"`
	Text                 string `json:"text"`
	CreatedAt            string `json:"created_at"`
	InReplyToStatusIDStr string `json:"in_reply_to_status_id_str"`
	RetweetCount         int    `json:"retweet_count"`
	User                 User   `json:"user"`
}

// SearchMetadata describes a search page.
type SearchMetadata struct {
	Count       int    `json:"count"`
	Query       string `json:"query"`
	MaxIDStr    string `json:"max_id_str"`
	SinceIDStr  string `json:"since_id_str"`
	NextResults string `json:"next_results"`
}

// SearchResult is the body of search/tweets.
type SearchResult struct {
	Statuses []Tweet        `json:"statuses"`
	Metadata SearchMetadata `json:"search_metadata"`
}
