package ports

import (
	"context"
	"time"

	"SocialListener/internal/domain"
)

// PostStore is the idempotent write path for posts.
type PostStore interface {
	// Upsert inserts the post or, if its (platform, platform_post_id)
	// identity already exists, refreshes engagement counters and the
	// collection timestamp only. Reports the row id and whether the row was
	// newly created.
	Upsert(ctx context.Context, post *domain.Post) (id int64, isNew bool, err error)

	// ApplySentiment writes the analyzer verdict, clears any prior
	// enrichment error and stamps the processing time.
	ApplySentiment(ctx context.Context, postID int64, score float64, label string, at time.Time) error

	// MarkProcessed stamps the processing time without touching sentiment
	// fields; used for posts with no content.
	MarkProcessed(ctx context.Context, postID int64, at time.Time) error

	// RecordFailure stores an enrichment error message and stamps the
	// processing time.
	RecordFailure(ctx context.Context, postID int64, message string, at time.Time) error
}

// EntityStore is the deduplicated entity registry plus the per-occurrence
// join to posts.
type EntityStore interface {
	// GetOrCreate inserts the entity and, on a uniqueness conflict, reads
	// back the existing row's id. Safe under concurrent callers.
	GetOrCreate(ctx context.Context, entityType, normalizedText, displayText string) (int64, error)

	// RecordOccurrence inserts one recognized span; re-detecting the same
	// (post, entity, start offset) is a no-op, not an error.
	RecordOccurrence(ctx context.Context, postID, entityID int64, span domain.Span) error
}

// ListenerStore reads and mutates the listener fields owned by the pipeline.
type ListenerStore interface {
	// SelectEligible returns active listeners whose platform selector is the
	// given platform or "all", optionally narrowed to one listener id.
	SelectEligible(ctx context.Context, platform string, listenerID *int64) ([]domain.Listener, error)

	// FinishRun stamps last_polled_at and raises has_new_content when the
	// run inserted at least one new post. It never clears the flag.
	FinishRun(ctx context.Context, listenerID int64, polledAt time.Time, hasNew bool) error

	// MarkBackfillCompleted flips backfill_completed to true.
	MarkBackfillCompleted(ctx context.Context, listenerID int64) error
}

// Stores bundles the stores bound to one unit of work.
type Stores struct {
	Posts     PostStore
	Entities  EntityStore
	Listeners ListenerStore
}

// UnitOfWork runs fn with transaction-bound stores; all writes commit
// together when fn returns nil and roll back together when it errors.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(Stores) error) error
}

// SentimentAnalyzer scores text in [-1, 1] with a discrete label.
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, text string) (domain.Sentiment, error)
}

// EntityExtractor returns recognized entity spans for text.
type EntityExtractor interface {
	Extract(ctx context.Context, text string) ([]domain.Span, error)
}

// Scheduler drives recurring collection runs.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
