package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"SocialListener/internal/config"
	"SocialListener/internal/domain"
	"SocialListener/internal/platform"
	"SocialListener/internal/ports"
)

type runMode int

const (
	modeIncremental runMode = iota
	modeBackfill
)

func (m runMode) String() string {
	if m == modeBackfill {
		return "backfill"
	}
	return "incremental"
}

// Collector executes one listener's search against a platform client:
// builds the query from the rule, walks pages, writes posts idempotently
// and hands newly-inserted posts to the enrichment stage.
type Collector struct {
	enricher       *Enricher
	pageSize       int
	backfillBudget int
	logger         *slog.Logger
	now            func() time.Time
}

// NewCollector wires the enrichment stage and pagination bounds.
func NewCollector(enricher *Enricher, cfg config.CollectorConfig, logger *slog.Logger) *Collector {
	return &Collector{
		enricher:       enricher,
		pageSize:       cfg.PageSize,
		backfillBudget: cfg.BackfillBudget,
		logger:         logger,
		now:            time.Now,
	}
}

// Run collects posts for one listener and returns how many were newly
// inserted. The pagination mode is decided once from the listener's current
// backfill flag: an incremental run fetches a single page, a backfill run
// follows cursors until the item budget, an empty page or a missing cursor
// stops it. A fetch error aborts the whole run; a single item failing to
// save or enrich is logged and skipped.
func (c *Collector) Run(ctx context.Context, client platform.Client, listener *domain.Listener, st ports.Stores) (int, error) {
	query, ok := buildQuery(listener)
	if !ok {
		c.logger.Warn("unknown rule type, skipping listener",
			"listener", listener.ID, "rule_type", listener.RuleType)
		return 0, nil
	}

	mode := modeIncremental
	if !listener.BackfillCompleted {
		mode = modeBackfill
	}

	c.logger.Debug("collection run started",
		"listener", listener.ID, "mode", mode.String(), "query", query)

	var (
		cursor   string
		fetched  int
		inserted int
	)

	for {
		limit := c.pageSize
		if mode == modeBackfill {
			if remaining := c.backfillBudget - fetched; remaining < limit {
				limit = remaining
			}
		}

		page, err := client.Search(ctx, platform.Query{Text: query, Limit: limit, Cursor: cursor})
		if err != nil {
			return 0, fmt.Errorf("search %q: %w", query, err)
		}

		for _, item := range page.Items {
			isNew, err := c.saveItem(ctx, client.Platform(), listener, item, st)
			if err != nil {
				c.logger.Error("saving post failed",
					"listener", listener.ID, "post", item.NativeID, "error", err)
				continue
			}
			if isNew {
				inserted++
			}
		}
		fetched += len(page.Items)

		if mode != modeBackfill || len(page.Items) == 0 || page.Cursor == "" || fetched >= c.backfillBudget {
			break
		}
		cursor = page.Cursor
	}

	if mode == modeBackfill && inserted > 0 {
		if err := st.Listeners.MarkBackfillCompleted(ctx, listener.ID); err != nil {
			return 0, fmt.Errorf("mark backfill completed: %w", err)
		}
		listener.BackfillCompleted = true
	}

	c.logger.Debug("collection run finished",
		"listener", listener.ID, "fetched", fetched, "inserted", inserted)
	return inserted, nil
}

// saveItem normalizes one fetched item, upserts it and triggers enrichment
// when the upsert reports a brand-new row.
func (c *Collector) saveItem(ctx context.Context, platformName string, listener *domain.Listener, item platform.Item, st ports.Stores) (bool, error) {
	post := domain.Post{
		ListenerID:        listener.ID,
		Platform:          platformName,
		PlatformPostID:    item.NativeID,
		AuthorHandle:      item.AuthorHandle,
		AuthorDisplayName: item.AuthorDisplayName,
		AuthorAvatarURL:   item.AuthorAvatarURL,
		Content:           item.Text,
		PostURL:           item.Permalink,
		LikesCount:        item.LikesCount,
		RepliesCount:      item.RepliesCount,
		RepostsCount:      item.RepostsCount,
		QuotesCount:       item.QuotesCount,
		ViewsCount:        item.ViewsCount,
		PostCreatedAt:     parseCreatedAt(item.CreatedAt),
		CollectedAt:       c.now().UTC(),
	}

	id, isNew, err := st.Posts.Upsert(ctx, &post)
	if err != nil {
		return false, err
	}
	if !isNew {
		return false, nil
	}

	post.ID = id
	if outcome := c.enricher.Process(ctx, &post, st); !outcome.OK {
		// Already recorded on the post; the item itself is kept.
		c.logger.Warn("enrichment failed for new post", "post", id, "reason", outcome.Reason)
	}
	return true, nil
}

// buildQuery derives the platform search text from the listener rule.
// Hashtags gain their leading marker if absent; mentions are searched as
// @handle with any leading marker stripped first.
func buildQuery(listener *domain.Listener) (string, bool) {
	value := strings.TrimSpace(listener.RuleValue)
	switch listener.RuleType {
	case domain.RuleKeyword:
		return value, true
	case domain.RuleHashtag:
		if !strings.HasPrefix(value, "#") {
			value = "#" + value
		}
		return value, true
	case domain.RuleMention:
		value = strings.TrimLeft(value, "@#")
		return "@" + value, true
	default:
		return "", false
	}
}

// createdAtFormats covers the ISO-8601-ish shapes platforms emit.
var createdAtFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// parseCreatedAt normalizes the source-asserted timestamp to UTC; absent or
// unparseable values yield nil and never abort the item.
func parseCreatedAt(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, format := range createdAtFormats {
		if parsed, err := time.Parse(format, raw); err == nil {
			utc := parsed.UTC()
			return &utc
		}
	}
	return nil
}
