package domain

import "time"

// Platform identifiers used by listeners and posts.
const (
	PlatformBluesky = "bluesky"
	PlatformAll     = "all"
)

// RuleType classifies what a listener searches for.
type RuleType string

const (
	RuleKeyword RuleType = "keyword"
	RuleMention RuleType = "mention"
	RuleHashtag RuleType = "hashtag"
)

// Listener is a persisted monitoring rule driving periodic searches.
type Listener struct {
	ID                int64
	Name              string
	Platform          string
	RuleType          RuleType
	RuleValue         string
	Active            bool
	HasNewContent     bool
	BackfillCompleted bool
	PollInterval      time.Duration
	LastPolledAt      *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
