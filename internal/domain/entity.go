package domain

import "time"

// Entity is a deduplicated named mention, unique on (Type, Text) where Text
// holds the normalized form and DisplayText the first-seen original form.
type Entity struct {
	ID          int64
	Type        string
	Text        string
	DisplayText string
	CreatedAt   time.Time
}

// Span is one recognized entity mention inside a piece of text.
type Span struct {
	Text           string
	NormalizedText string
	Type           string
	Start          int
	End            int
	Confidence     float64
}
