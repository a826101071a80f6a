package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"SocialListener/internal/domain"
	"SocialListener/internal/ports"
)

// Outcome is the result of one enrichment attempt. Failures are data, not
// control flow: Process never lets an analyzer or storage error escape.
type Outcome struct {
	OK     bool
	Reason string
}

func success() Outcome {
	return Outcome{OK: true}
}

func failure(reason string) Outcome {
	return Outcome{OK: false, Reason: reason}
}

// Enricher runs sentiment analysis and entity extraction over post content
// and writes the results through the stores bound to the caller's unit of
// work.
type Enricher struct {
	sentiment ports.SentimentAnalyzer
	entities  ports.EntityExtractor
	logger    *slog.Logger
	now       func() time.Time
}

// NewEnricher wires the two analyzers.
func NewEnricher(sentiment ports.SentimentAnalyzer, entities ports.EntityExtractor, logger *slog.Logger) *Enricher {
	return &Enricher{
		sentiment: sentiment,
		entities:  entities,
		logger:    logger,
		now:       time.Now,
	}
}

// Process enriches one post. A post without content is stamped processed and
// left otherwise untouched. Analyzer or storage failures are recorded on the
// post as nlp_error and reported in the outcome; the post row itself always
// survives.
func (e *Enricher) Process(ctx context.Context, post *domain.Post, st ports.Stores) Outcome {
	now := e.now().UTC()

	if strings.TrimSpace(post.Content) == "" {
		if err := st.Posts.MarkProcessed(ctx, post.ID, now); err != nil {
			return e.fail(ctx, post.ID, st, fmt.Sprintf("mark processed: %v", err))
		}
		return success()
	}

	sentiment, err := e.sentiment.Analyze(ctx, post.Content)
	if err != nil {
		return e.fail(ctx, post.ID, st, fmt.Sprintf("sentiment analysis failed: %v", err))
	}

	spans, err := e.entities.Extract(ctx, post.Content)
	if err != nil {
		return e.fail(ctx, post.ID, st, fmt.Sprintf("entity extraction failed: %v", err))
	}

	if err := storeSpans(ctx, post.ID, spans, st.Entities); err != nil {
		return e.fail(ctx, post.ID, st, fmt.Sprintf("entity storage failed: %v", err))
	}

	if err := st.Posts.ApplySentiment(ctx, post.ID, sentiment.Score, sentiment.Label, now); err != nil {
		return e.fail(ctx, post.ID, st, fmt.Sprintf("apply sentiment: %v", err))
	}

	e.logger.Debug("post enriched",
		"post", post.ID,
		"sentiment", sentiment.Label,
		"entities", len(spans))
	return success()
}

// ProcessBatch enriches posts independently and counts the outcomes; used by
// reprocessing tooling, not the live ingestion path.
func (e *Enricher) ProcessBatch(ctx context.Context, posts []*domain.Post, st ports.Stores) (succeeded, failed int) {
	for _, post := range posts {
		if e.Process(ctx, post, st).OK {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

func (e *Enricher) fail(ctx context.Context, postID int64, st ports.Stores, reason string) Outcome {
	e.logger.Error("enrichment failed", "post", postID, "reason", reason)
	if err := st.Posts.RecordFailure(ctx, postID, reason, e.now().UTC()); err != nil {
		e.logger.Error("record enrichment failure", "post", postID, "error", err)
	}
	return failure(reason)
}

func storeSpans(ctx context.Context, postID int64, spans []domain.Span, entities ports.EntityStore) error {
	for _, span := range spans {
		entityID, err := entities.GetOrCreate(ctx, span.Type, span.NormalizedText, span.Text)
		if err != nil {
			return err
		}
		if err := entities.RecordOccurrence(ctx, postID, entityID, span); err != nil {
			return err
		}
	}
	return nil
}
