package usecase

import (
	"context"
	"errors"
	"testing"

	"SocialListener/internal/domain"
)

func enrichedPost(posts *memPostStore, content string) *domain.Post {
	post := &domain.Post{
		Platform:       domain.PlatformBluesky,
		PlatformPostID: "at://did:plc:x/app.bsky.feed.post/e1",
		Content:        content,
	}
	id, _, _ := posts.Upsert(context.Background(), post)
	post.ID = id
	return post
}

func TestProcessWritesSentimentAndEntities(t *testing.T) {
	t.Parallel()

	posts := newMemPostStore()
	entities := newMemEntityStore()
	sentiment := &stubSentiment{result: domain.Sentiment{Score: 0.73, Label: domain.SentimentPositive}}
	extractor := &stubExtractor{spans: []domain.Span{
		{Text: "Acme Corp", NormalizedText: "acme corp", Type: "ORG", Start: 0, End: 9, Confidence: 1.0},
	}}
	enricher := testEnricher(sentiment, extractor)
	post := enrichedPost(posts, "Acme Corp ships a great product")

	outcome := enricher.Process(context.Background(), post, testStores(posts, entities, &memListenerStore{}))
	if !outcome.OK {
		t.Fatalf("unexpected failure: %s", outcome.Reason)
	}

	stored := posts.byID[post.ID]
	if stored.SentimentScore == nil || *stored.SentimentScore != 0.73 {
		t.Fatalf("sentiment score not written: %v", stored.SentimentScore)
	}
	if stored.SentimentLabel != domain.SentimentPositive {
		t.Fatalf("unexpected label: %s", stored.SentimentLabel)
	}
	if stored.NLPProcessedAt == nil {
		t.Fatalf("processing timestamp not set")
	}
	if stored.NLPError != "" {
		t.Fatalf("nlp_error should be empty, got %q", stored.NLPError)
	}
	if entities.occurrenceCount() != 1 {
		t.Fatalf("expected 1 occurrence, got %d", entities.occurrenceCount())
	}
}

func TestProcessEmptyContentSkipsAnalysis(t *testing.T) {
	t.Parallel()

	posts := newMemPostStore()
	sentiment := &stubSentiment{}
	extractor := &stubExtractor{}
	enricher := testEnricher(sentiment, extractor)
	post := enrichedPost(posts, "   ")

	outcome := enricher.Process(context.Background(), post, testStores(posts, newMemEntityStore(), &memListenerStore{}))
	if !outcome.OK {
		t.Fatalf("empty content must succeed: %s", outcome.Reason)
	}

	stored := posts.byID[post.ID]
	if stored.NLPProcessedAt == nil {
		t.Fatalf("processing timestamp not set")
	}
	if stored.SentimentScore != nil || stored.SentimentLabel != "" {
		t.Fatalf("sentiment must stay untouched for empty content")
	}
	if sentiment.calls != 0 || extractor.calls != 0 {
		t.Fatalf("analyzers must not run on empty content")
	}
}

func TestProcessAnalyzerFailureIsFailsafe(t *testing.T) {
	t.Parallel()

	posts := newMemPostStore()
	sentiment := &stubSentiment{err: errors.New("model unavailable")}
	enricher := testEnricher(sentiment, &stubExtractor{})
	post := enrichedPost(posts, "some content")

	outcome := enricher.Process(context.Background(), post, testStores(posts, newMemEntityStore(), &memListenerStore{}))
	if outcome.OK {
		t.Fatalf("expected failure outcome")
	}
	if outcome.Reason == "" {
		t.Fatalf("failure outcome must carry a reason")
	}

	// The post row survives with the error recorded as data.
	stored := posts.byID[post.ID]
	if stored == nil {
		t.Fatalf("post row lost on enrichment failure")
	}
	if stored.NLPError == "" {
		t.Fatalf("nlp_error not recorded")
	}
	if stored.NLPProcessedAt == nil {
		t.Fatalf("processing timestamp must be set even on failure")
	}
	if stored.SentimentScore != nil {
		t.Fatalf("sentiment must not be written on failure")
	}
}

func TestProcessEntityStorageFailureIsFailsafe(t *testing.T) {
	t.Parallel()

	posts := newMemPostStore()
	entities := newMemEntityStore()
	entities.getErr = errors.New("disk full")
	sentiment := &stubSentiment{result: domain.Sentiment{Score: 0.2, Label: domain.SentimentPositive}}
	extractor := &stubExtractor{spans: []domain.Span{
		{Text: "Acme", NormalizedText: "acme", Type: "ORG", Confidence: 1.0},
	}}
	enricher := testEnricher(sentiment, extractor)
	post := enrichedPost(posts, "Acme again")

	outcome := enricher.Process(context.Background(), post, testStores(posts, entities, &memListenerStore{}))
	if outcome.OK {
		t.Fatalf("expected failure outcome")
	}
	if posts.byID[post.ID].NLPError == "" {
		t.Fatalf("entity storage failure must be recorded on the post")
	}
}

func TestProcessDeduplicatesEntitiesAcrossPosts(t *testing.T) {
	t.Parallel()

	posts := newMemPostStore()
	entities := newMemEntityStore()
	sentiment := &stubSentiment{result: domain.Sentiment{Label: domain.SentimentNeutral}}
	extractor := &stubExtractor{spans: []domain.Span{
		{Text: "Acme", NormalizedText: "acme", Type: "ORG", Start: 5, End: 9, Confidence: 1.0},
	}}
	enricher := testEnricher(sentiment, extractor)
	st := testStores(posts, entities, &memListenerStore{})

	first := enrichedPost(posts, "I love Acme")
	second := &domain.Post{
		Platform:       domain.PlatformBluesky,
		PlatformPostID: "at://did:plc:x/app.bsky.feed.post/e2",
		Content:        "meh, Acme",
	}
	id, _, _ := posts.Upsert(context.Background(), second)
	second.ID = id

	if outcome := enricher.Process(context.Background(), first, st); !outcome.OK {
		t.Fatalf("first: %s", outcome.Reason)
	}
	if outcome := enricher.Process(context.Background(), second, st); !outcome.OK {
		t.Fatalf("second: %s", outcome.Reason)
	}

	if len(entities.entities) != 1 {
		t.Fatalf("expected 1 entity row, got %d", len(entities.entities))
	}
	if entities.occurrenceCount() != 2 {
		t.Fatalf("expected 2 occurrence rows, got %d", entities.occurrenceCount())
	}

	// Re-detecting the identical span for the same post stays a single row.
	if outcome := enricher.Process(context.Background(), first, st); !outcome.OK {
		t.Fatalf("reprocess: %s", outcome.Reason)
	}
	if entities.occurrenceCount() != 2 {
		t.Fatalf("identical span re-detection must be a no-op, got %d rows", entities.occurrenceCount())
	}
}

func TestProcessBatchCountsOutcomes(t *testing.T) {
	t.Parallel()

	posts := newMemPostStore()
	sentiment := &stubSentiment{result: domain.Sentiment{Label: domain.SentimentNeutral}}
	enricher := testEnricher(sentiment, &stubExtractor{})
	st := testStores(posts, newMemEntityStore(), &memListenerStore{})

	good := enrichedPost(posts, "fine")
	missing := &domain.Post{ID: 999, Content: "store will reject this"}

	succeeded, failed := enricher.ProcessBatch(context.Background(), []*domain.Post{good, missing}, st)
	if succeeded != 1 || failed != 1 {
		t.Fatalf("expected 1/1, got %d/%d", succeeded, failed)
	}
}
