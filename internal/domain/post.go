package domain

import "time"

// Post is one externally-authored item captured for a listener.
// Identity is (Platform, PlatformPostID); content, author fields and
// PostCreatedAt are write-once, only engagement counters and CollectedAt
// change on re-ingestion.
type Post struct {
	ID             int64
	ListenerID     int64
	Platform       string
	PlatformPostID string

	AuthorHandle      string
	AuthorDisplayName string
	AuthorAvatarURL   string
	Content           string
	PostURL           string

	LikesCount   int
	RepliesCount int
	RepostsCount int
	QuotesCount  int
	ViewsCount   int

	SentimentScore *float64
	SentimentLabel string
	NLPProcessedAt *time.Time
	NLPError       string

	PostCreatedAt *time.Time
	CollectedAt   time.Time
}

// Sentiment labels written by the enrichment stage.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// Sentiment is the analyzer verdict for one post's content.
type Sentiment struct {
	Score float64
	Label string
}
