package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"SocialListener/internal/domain"
	"SocialListener/internal/platform"
	"SocialListener/internal/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClient replays scripted pages and records every search it receives.
type fakeClient struct {
	name       string
	configured bool
	pages      []platform.Page
	searchErr  error
	testErr    error
	searches   []platform.Query
}

func (f *fakeClient) Platform() string {
	if f.name == "" {
		return domain.PlatformBluesky
	}
	return f.name
}

func (f *fakeClient) IsConfigured() bool { return f.configured }

func (f *fakeClient) TestConnection(ctx context.Context) error { return f.testErr }

func (f *fakeClient) Search(ctx context.Context, q platform.Query) (platform.Page, error) {
	f.searches = append(f.searches, q)
	if f.searchErr != nil {
		return platform.Page{}, f.searchErr
	}

	idx := len(f.searches) - 1
	if idx >= len(f.pages) {
		return platform.Page{}, nil
	}

	page := f.pages[idx]
	if len(page.Items) > q.Limit {
		page.Items = page.Items[:q.Limit]
	}
	return page, nil
}

func makeItems(prefix string, n int) []platform.Item {
	items := make([]platform.Item, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, platform.Item{
			NativeID:     fmt.Sprintf("at://did:plc:x/app.bsky.feed.post/%s-%d", prefix, i),
			AuthorHandle: "author.bsky.social",
			Text:         fmt.Sprintf("post %s-%d", prefix, i),
			CreatedAt:    "2026-08-01T10:00:00Z",
		})
	}
	return items
}

// memPostStore keeps posts in memory keyed by (platform, native id).
type memPostStore struct {
	byKey     map[string]*domain.Post
	byID      map[int64]*domain.Post
	nextID    int64
	upsertErr map[string]error
}

func newMemPostStore() *memPostStore {
	return &memPostStore{
		byKey:     map[string]*domain.Post{},
		byID:      map[int64]*domain.Post{},
		upsertErr: map[string]error{},
	}
}

func (m *memPostStore) Upsert(ctx context.Context, post *domain.Post) (int64, bool, error) {
	key := post.Platform + "|" + post.PlatformPostID
	if err := m.upsertErr[key]; err != nil {
		return 0, false, err
	}

	if existing, ok := m.byKey[key]; ok {
		existing.LikesCount = post.LikesCount
		existing.RepliesCount = post.RepliesCount
		existing.RepostsCount = post.RepostsCount
		existing.QuotesCount = post.QuotesCount
		existing.ViewsCount = post.ViewsCount
		existing.CollectedAt = post.CollectedAt
		return existing.ID, false, nil
	}

	m.nextID++
	stored := *post
	stored.ID = m.nextID
	m.byKey[key] = &stored
	m.byID[stored.ID] = &stored
	return stored.ID, true, nil
}

func (m *memPostStore) ApplySentiment(ctx context.Context, postID int64, score float64, label string, at time.Time) error {
	post, ok := m.byID[postID]
	if !ok {
		return fmt.Errorf("post %d not found", postID)
	}
	post.SentimentScore = &score
	post.SentimentLabel = label
	post.NLPError = ""
	t := at
	post.NLPProcessedAt = &t
	return nil
}

func (m *memPostStore) MarkProcessed(ctx context.Context, postID int64, at time.Time) error {
	post, ok := m.byID[postID]
	if !ok {
		return fmt.Errorf("post %d not found", postID)
	}
	t := at
	post.NLPProcessedAt = &t
	return nil
}

func (m *memPostStore) RecordFailure(ctx context.Context, postID int64, message string, at time.Time) error {
	post, ok := m.byID[postID]
	if !ok {
		return fmt.Errorf("post %d not found", postID)
	}
	post.NLPError = message
	t := at
	post.NLPProcessedAt = &t
	return nil
}

// memEntityStore deduplicates entities and occurrences in memory.
type memEntityStore struct {
	entities    map[string]int64
	display     map[int64]string
	occurrences map[string]int
	nextID      int64
	getErr      error
}

func newMemEntityStore() *memEntityStore {
	return &memEntityStore{
		entities:    map[string]int64{},
		display:     map[int64]string{},
		occurrences: map[string]int{},
	}
}

func (m *memEntityStore) GetOrCreate(ctx context.Context, entityType, normalizedText, displayText string) (int64, error) {
	if m.getErr != nil {
		return 0, m.getErr
	}
	key := entityType + "|" + normalizedText
	if id, ok := m.entities[key]; ok {
		return id, nil
	}
	m.nextID++
	m.entities[key] = m.nextID
	m.display[m.nextID] = displayText
	return m.nextID, nil
}

func (m *memEntityStore) RecordOccurrence(ctx context.Context, postID, entityID int64, span domain.Span) error {
	key := fmt.Sprintf("%d|%d|%d", postID, entityID, span.Start)
	m.occurrences[key]++
	return nil
}

func (m *memEntityStore) occurrenceCount() int {
	return len(m.occurrences)
}

// memListenerStore records state mutations performed during runs.
type memListenerStore struct {
	eligible          []domain.Listener
	selectErr         error
	finishedRuns      []finishedRun
	backfillCompleted []int64
}

type finishedRun struct {
	listenerID int64
	hasNew     bool
}

func (m *memListenerStore) SelectEligible(ctx context.Context, platformName string, listenerID *int64) ([]domain.Listener, error) {
	if m.selectErr != nil {
		return nil, m.selectErr
	}
	if listenerID == nil {
		return m.eligible, nil
	}
	for _, l := range m.eligible {
		if l.ID == *listenerID {
			return []domain.Listener{l}, nil
		}
	}
	return nil, nil
}

func (m *memListenerStore) FinishRun(ctx context.Context, listenerID int64, polledAt time.Time, hasNew bool) error {
	m.finishedRuns = append(m.finishedRuns, finishedRun{listenerID: listenerID, hasNew: hasNew})
	return nil
}

func (m *memListenerStore) MarkBackfillCompleted(ctx context.Context, listenerID int64) error {
	m.backfillCompleted = append(m.backfillCompleted, listenerID)
	return nil
}

// stubSentiment returns a canned verdict and counts invocations.
type stubSentiment struct {
	result domain.Sentiment
	err    error
	calls  int
}

func (s *stubSentiment) Analyze(ctx context.Context, text string) (domain.Sentiment, error) {
	s.calls++
	if s.err != nil {
		return domain.Sentiment{}, s.err
	}
	return s.result, nil
}

// stubExtractor returns canned spans and counts invocations.
type stubExtractor struct {
	spans []domain.Span
	err   error
	calls int
}

func (s *stubExtractor) Extract(ctx context.Context, text string) ([]domain.Span, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.spans, nil
}

// fakeUnitOfWork hands out the same stores on every run and tracks
// commit/rollback decisions.
type fakeUnitOfWork struct {
	stores    ports.Stores
	commits   int
	rollbacks int
}

func (f *fakeUnitOfWork) Do(ctx context.Context, fn func(ports.Stores) error) error {
	if err := fn(f.stores); err != nil {
		f.rollbacks++
		return err
	}
	f.commits++
	return nil
}

func testStores(posts *memPostStore, entities *memEntityStore, listeners *memListenerStore) ports.Stores {
	return ports.Stores{Posts: posts, Entities: entities, Listeners: listeners}
}

func testEnricher(sentiment ports.SentimentAnalyzer, entities ports.EntityExtractor) *Enricher {
	return NewEnricher(sentiment, entities, testLogger())
}
