package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"SocialListener/internal/config"
	"SocialListener/internal/domain"
	"SocialListener/internal/ports"
)

// Client talks to an external inference service for sentiment scoring and
// named-entity recognition.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client

	positiveThreshold float64
	negativeThreshold float64
	minEntityLength   int
	entityTypes       map[string]struct{}
}

var _ ports.SentimentAnalyzer = (*Client)(nil)
var _ ports.EntityExtractor = (*Client)(nil)

// NewClient creates a reusable HTTP client from configuration.
func NewClient(cfg config.NLPConfig) *Client {
	types := make(map[string]struct{}, len(cfg.EntityTypes))
	for _, t := range cfg.EntityTypes {
		types[t] = struct{}{}
	}
	return &Client{
		endpoint:          strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:            cfg.APIKey,
		http:              &http.Client{Timeout: 15 * time.Second},
		positiveThreshold: cfg.PositiveThreshold,
		negativeThreshold: cfg.NegativeThreshold,
		minEntityLength:   cfg.MinEntityLength,
		entityTypes:       types,
	}
}

// Analyze scores the text and derives a discrete label from the configured
// thresholds.
func (c *Client) Analyze(ctx context.Context, text string) (domain.Sentiment, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Sentiment{Score: 0, Label: domain.SentimentNeutral}, nil
	}

	var resp struct {
		Score float64 `json:"score"`
	}
	if err := c.post(ctx, "/sentiment", map[string]string{"text": text}, &resp); err != nil {
		return domain.Sentiment{}, fmt.Errorf("analyze sentiment: %w", err)
	}

	return domain.Sentiment{Score: resp.Score, Label: c.label(resp.Score)}, nil
}

func (c *Client) label(score float64) string {
	switch {
	case score >= c.positiveThreshold:
		return domain.SentimentPositive
	case score <= c.negativeThreshold:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

// Extract returns the recognized entity spans, keeping only the configured
// type tags and discarding spans too short to be meaningful.
func (c *Client) Extract(ctx context.Context, text string) ([]domain.Span, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var resp struct {
		Entities []struct {
			Text       string   `json:"text"`
			Type       string   `json:"type"`
			Start      int      `json:"start"`
			End        int      `json:"end"`
			Confidence *float64 `json:"confidence"`
		} `json:"entities"`
	}
	if err := c.post(ctx, "/entities", map[string]string{"text": text}, &resp); err != nil {
		return nil, fmt.Errorf("extract entities: %w", err)
	}

	spans := make([]domain.Span, 0, len(resp.Entities))
	for _, ent := range resp.Entities {
		if _, ok := c.entityTypes[ent.Type]; !ok {
			continue
		}
		trimmed := strings.TrimSpace(ent.Text)
		if utf8.RuneCountInString(trimmed) < c.minEntityLength {
			continue
		}

		// Models without a confidence output get the 1.0 sentinel.
		confidence := 1.0
		if ent.Confidence != nil {
			confidence = *ent.Confidence
		}

		spans = append(spans, domain.Span{
			Text:           ent.Text,
			NormalizedText: strings.ToLower(trimmed),
			Type:           ent.Type,
			Start:          ent.Start,
			End:            ent.End,
			Confidence:     confidence,
		})
	}

	return spans, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
