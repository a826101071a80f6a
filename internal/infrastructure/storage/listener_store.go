package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"SocialListener/internal/domain"
	"SocialListener/internal/ports"
)

// ListenerStore reads and mutates the listener fields the pipeline owns.
type ListenerStore struct {
	db querier
}

var _ ports.ListenerStore = (*ListenerStore)(nil)

// NewListenerStore wires a database handle or transaction.
func NewListenerStore(db querier) *ListenerStore {
	return &ListenerStore{db: db}
}

// SelectEligible returns active listeners targeting the platform or "all",
// optionally narrowed to one listener id.
func (s *ListenerStore) SelectEligible(ctx context.Context, platform string, listenerID *int64) ([]domain.Listener, error) {
	builder := qb.Select(
		"id", "name", "platform", "rule_type", "rule_value",
		"is_active", "has_new_content", "backfill_completed",
		"poll_interval_secs", "last_polled_at", "created_at", "updated_at",
	).
		From("listeners").
		Where(sq.Eq{"is_active": true}).
		Where(sq.Eq{"platform": []string{platform, domain.PlatformAll}}).
		OrderBy("id")

	if listenerID != nil {
		builder = builder.Where(sq.Eq{"id": *listenerID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build listener select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select listeners: %w", err)
	}
	defer rows.Close()

	var listeners []domain.Listener
	for rows.Next() {
		var (
			l            domain.Listener
			pollSeconds  int64
			lastPolledAt sql.NullTime
		)
		if err := rows.Scan(
			&l.ID, &l.Name, &l.Platform, &l.RuleType, &l.RuleValue,
			&l.Active, &l.HasNewContent, &l.BackfillCompleted,
			&pollSeconds, &lastPolledAt, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan listener: %w", err)
		}
		l.PollInterval = time.Duration(pollSeconds) * time.Second
		if lastPolledAt.Valid {
			t := lastPolledAt.Time
			l.LastPolledAt = &t
		}
		listeners = append(listeners, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return listeners, nil
}

// FinishRun stamps last_polled_at and raises has_new_content when the run
// inserted new posts; acknowledgment clears the flag elsewhere, so it is
// never lowered here.
func (s *ListenerStore) FinishRun(ctx context.Context, listenerID int64, polledAt time.Time, hasNew bool) error {
	query, args, err := qb.Update("listeners").
		Set("last_polled_at", polledAt).
		Set("has_new_content", sq.Expr("has_new_content OR ?", hasNew)).
		Set("updated_at", polledAt).
		Where(sq.Eq{"id": listenerID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build finish-run update: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("finish run for listener %d: %w", listenerID, err)
	}
	return nil
}

// MarkBackfillCompleted flips backfill_completed; the flag is one-way.
func (s *ListenerStore) MarkBackfillCompleted(ctx context.Context, listenerID int64) error {
	query, args, err := qb.Update("listeners").
		Set("backfill_completed", true).
		Where(sq.Eq{"id": listenerID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build backfill update: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark backfill completed for listener %d: %w", listenerID, err)
	}
	return nil
}
