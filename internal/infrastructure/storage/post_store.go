package storage

import (
	"context"
	"fmt"
	"time"

	"SocialListener/internal/domain"
	"SocialListener/internal/ports"
)

// PostStore persists posts with idempotent upsert semantics.
type PostStore struct {
	db querier
}

var _ ports.PostStore = (*PostStore)(nil)

// NewPostStore wires a database handle or transaction.
func NewPostStore(db querier) *PostStore {
	return &PostStore{db: db}
}

// Upsert inserts the post, or on a (platform, platform_post_id) conflict
// refreshes engagement counters and collected_at only. Insert-vs-update is
// read from xmax in the same statement, so no pre-select can race with a
// concurrent writer.
func (s *PostStore) Upsert(ctx context.Context, post *domain.Post) (int64, bool, error) {
	query, args, err := qb.Insert("posts").
		Columns(
			"listener_id", "platform", "platform_post_id",
			"author_handle", "author_display_name", "author_avatar_url",
			"content", "post_url",
			"likes_count", "replies_count", "reposts_count", "quotes_count", "views_count",
			"post_created_at", "collected_at",
		).
		Values(
			post.ListenerID, post.Platform, post.PlatformPostID,
			post.AuthorHandle, post.AuthorDisplayName, post.AuthorAvatarURL,
			post.Content, post.PostURL,
			post.LikesCount, post.RepliesCount, post.RepostsCount, post.QuotesCount, post.ViewsCount,
			post.PostCreatedAt, post.CollectedAt,
		).
		Suffix(`ON CONFLICT ON CONSTRAINT uq_platform_post DO UPDATE SET
			likes_count = EXCLUDED.likes_count,
			replies_count = EXCLUDED.replies_count,
			reposts_count = EXCLUDED.reposts_count,
			quotes_count = EXCLUDED.quotes_count,
			views_count = EXCLUDED.views_count,
			collected_at = EXCLUDED.collected_at
			RETURNING id, (xmax = 0) AS newly_inserted`).
		ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build upsert: %w", err)
	}

	var (
		id    int64
		isNew bool
	)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id, &isNew); err != nil {
		return 0, false, fmt.Errorf("upsert post %s: %w", post.PlatformPostID, err)
	}

	return id, isNew, nil
}

// ApplySentiment writes the analyzer verdict and clears any prior error.
func (s *PostStore) ApplySentiment(ctx context.Context, postID int64, score float64, label string, at time.Time) error {
	query, args, err := qb.Update("posts").
		Set("sentiment_score", score).
		Set("sentiment_label", label).
		Set("nlp_error", nil).
		Set("nlp_processed_at", at).
		Where("id = ?", postID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build sentiment update: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("apply sentiment to post %d: %w", postID, err)
	}
	return nil
}

// MarkProcessed stamps the processing time only.
func (s *PostStore) MarkProcessed(ctx context.Context, postID int64, at time.Time) error {
	query, args, err := qb.Update("posts").
		Set("nlp_processed_at", at).
		Where("id = ?", postID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build processed update: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark post %d processed: %w", postID, err)
	}
	return nil
}

// RecordFailure stores the enrichment error and stamps the processing time.
func (s *PostStore) RecordFailure(ctx context.Context, postID int64, message string, at time.Time) error {
	query, args, err := qb.Update("posts").
		Set("nlp_error", message).
		Set("nlp_processed_at", at).
		Where("id = ?", postID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build failure update: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record failure for post %d: %w", postID, err)
	}
	return nil
}
