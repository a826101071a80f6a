package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"SocialListener/internal/domain"
	"SocialListener/internal/ports"
)

// EntityStore keeps the deduplicated entity registry and the post-entity
// occurrence join.
type EntityStore struct {
	db querier
}

var _ ports.EntityStore = (*EntityStore)(nil)

// NewEntityStore wires a database handle or transaction.
func NewEntityStore(db querier) *EntityStore {
	return &EntityStore{db: db}
}

// GetOrCreate inserts the entity; if another caller created it first (or it
// already existed) the insert is discarded and the existing id is read back.
func (s *EntityStore) GetOrCreate(ctx context.Context, entityType, normalizedText, displayText string) (int64, error) {
	query, args, err := qb.Insert("entities").
		Columns("entity_type", "entity_text", "display_text").
		Values(entityType, normalizedText, displayText).
		Suffix("ON CONFLICT ON CONSTRAINT uq_entity_type_text DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build entity insert: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("insert entity %s/%s: %w", entityType, normalizedText, err)
	}

	// Conflict: the row exists, read its id.
	query, args, err = qb.Select("id").
		From("entities").
		Where("entity_type = ? AND entity_text = ?", entityType, normalizedText).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build entity select: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("select entity %s/%s: %w", entityType, normalizedText, err)
	}
	return id, nil
}

// RecordOccurrence inserts one recognized span; a duplicate
// (post, entity, start offset) is silently ignored.
func (s *EntityStore) RecordOccurrence(ctx context.Context, postID, entityID int64, span domain.Span) error {
	query, args, err := qb.Insert("post_entities").
		Columns("post_id", "entity_id", "confidence", "start_pos", "end_pos").
		Values(postID, entityID, span.Confidence, span.Start, span.End).
		Suffix("ON CONFLICT ON CONSTRAINT uq_post_entity_pos DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build occurrence insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record occurrence post=%d entity=%d: %w", postID, entityID, err)
	}
	return nil
}
