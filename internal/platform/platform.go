package platform

import (
	"context"
	"fmt"
	"sort"
)

// Query carries one paginated search request against a platform.
type Query struct {
	Text   string
	Limit  int
	Cursor string
}

// Item is one raw post returned by a platform search. Counters default to
// zero and CreatedAt is the source-asserted timestamp, unparsed.
type Item struct {
	NativeID          string
	AuthorHandle      string
	AuthorDisplayName string
	AuthorAvatarURL   string
	Text              string
	Permalink         string
	CreatedAt         string
	LikesCount        int
	RepliesCount      int
	RepostsCount      int
	QuotesCount       int
	ViewsCount        int
}

// Page is one search page; an empty Cursor means no further pages.
type Page struct {
	Items  []Item
	Cursor string
}

// Client captures a single platform integration (Bluesky, Threads, etc.).
type Client interface {
	Platform() string
	IsConfigured() bool
	TestConnection(ctx context.Context) error
	Search(ctx context.Context, q Query) (Page, error)
}

// Registry keeps a mapping from platform names to their clients.
type Registry struct {
	clients map[string]Client
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: map[string]Client{}}
}

// Register adds or replaces a platform client.
func (r *Registry) Register(client Client) {
	if r.clients == nil {
		r.clients = map[string]Client{}
	}
	r.clients[client.Platform()] = client
}

// Resolve returns a client by platform name or an error if it is absent.
func (r *Registry) Resolve(name string) (Client, error) {
	if client, ok := r.clients[name]; ok {
		return client, nil
	}
	return nil, fmt.Errorf("platform %s is not registered", name)
}

// Platforms lists the registered platform names in stable order.
func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
