package models

import (
	"time"

	dbtypes "github.com/nitesh/social_agent/internal/db"
)

// Article is a single search hit returned by the news API. It is never
// persisted.
type Article struct {
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"urlToImage,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}

// NewsQuery is the search request forwarded to the news API.
type NewsQuery struct {
	Query    string `json:"q"`
	From     string `json:"from,omitempty"`
	SortBy   string `json:"sortBy"`
	SearchIn string `json:"searchIn"`
	Language string `json:"language"`
}

const (
	DefaultSortBy   = "popularity"
	DefaultSearchIn = "title,description"
	DefaultLanguage = "en"
)

// WithDefaults fills the optional search fields.
func (q NewsQuery) WithDefaults() NewsQuery {
	if q.SortBy == "" {
		q.SortBy = DefaultSortBy
	}
	if q.SearchIn == "" {
		q.SearchIn = DefaultSearchIn
	}
	if q.Language == "" {
		q.Language = DefaultLanguage
	}
	return q
}

// Status is the approval state of a PendingPost.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// PendingPost is a drafted tweet waiting for a human decision.
// PostedID and PostedURL are set only when Status is approved.
type PendingPost struct {
	ID         string              `db:"id" json:"id"`
	TweetText  string              `db:"tweet_text" json:"tweet_text"`
	ArticleURL string              `db:"article_url" json:"article_url"`
	Hashtags   dbtypes.StringSlice `db:"hashtags" json:"hashtags"`
	CreatedAt  time.Time           `db:"created_at" json:"created_at"`
	Status     Status              `db:"status" json:"status"`
	PostedID   *string             `db:"posted_id" json:"posted_tweet_id"`
	PostedURL  *string             `db:"posted_url" json:"posted_tweet_url,omitempty"`
	Feedback   *string             `db:"feedback" json:"feedback,omitempty"`
	DecidedAt  *time.Time          `db:"decided_at" json:"decided_at,omitempty"`
}

// PublishResult identifies a published tweet.
type PublishResult struct {
	ID  string `json:"tweet_id"`
	URL string `json:"tweet_url"`
}
