package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"SocialListener/internal/domain"
	"SocialListener/internal/platform"
)

const defaultHost = "https://bsky.social"

// Client talks to the AT Protocol XRPC API for Bluesky.
type Client struct {
	host        string
	handle      string
	appPassword string
	httpClient  *http.Client

	mu          sync.Mutex
	accessToken string
}

var _ platform.Client = (*Client)(nil)

// NewClient builds a Bluesky client; host defaults to the public PDS.
func NewClient(host, handle, appPassword string) *Client {
	if host == "" {
		host = defaultHost
	}
	return &Client{
		host:        strings.TrimSuffix(host, "/"),
		handle:      handle,
		appPassword: appPassword,
		httpClient:  &http.Client{Timeout: 20 * time.Second},
	}
}

// Platform identifies the client inside the registry.
func (c *Client) Platform() string {
	return domain.PlatformBluesky
}

// IsConfigured reports whether credentials are present.
func (c *Client) IsConfigured() bool {
	return c.handle != "" && c.appPassword != ""
}

// TestConnection authenticates and fetches the account's own profile.
func (c *Client) TestConnection(ctx context.Context) error {
	token, err := c.session(ctx)
	if err != nil {
		return err
	}

	endpoint := c.host + "/xrpc/app.bsky.actor.getProfile?actor=" + url.QueryEscape(c.handle)
	var profile struct {
		Handle      string `json:"handle"`
		DisplayName string `json:"displayName"`
	}
	if err := c.get(ctx, endpoint, token, &profile); err != nil {
		return fmt.Errorf("get profile: %w", err)
	}
	return nil
}

// Search runs one page of app.bsky.feed.searchPosts.
func (c *Client) Search(ctx context.Context, q platform.Query) (platform.Page, error) {
	token, err := c.session(ctx)
	if err != nil {
		return platform.Page{}, err
	}

	params := url.Values{}
	params.Set("q", q.Text)
	params.Set("limit", strconv.Itoa(q.Limit))
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}
	endpoint := c.host + "/xrpc/app.bsky.feed.searchPosts?" + params.Encode()

	var resp searchResponse
	if err := c.get(ctx, endpoint, token, &resp); err != nil {
		// Access tokens are short-lived; re-authenticate once.
		if isUnauthorized(err) {
			c.resetSession()
			if token, err = c.session(ctx); err != nil {
				return platform.Page{}, err
			}
			if err = c.get(ctx, endpoint, token, &resp); err != nil {
				return platform.Page{}, fmt.Errorf("search posts: %w", err)
			}
		} else {
			return platform.Page{}, fmt.Errorf("search posts: %w", err)
		}
	}

	page := platform.Page{Cursor: resp.Cursor}
	for _, post := range resp.Posts {
		page.Items = append(page.Items, toItem(post))
	}
	return page, nil
}

type searchResponse struct {
	Cursor string     `json:"cursor"`
	Posts  []postView `json:"posts"`
}

type postView struct {
	URI    string `json:"uri"`
	Author struct {
		Handle      string `json:"handle"`
		DisplayName string `json:"displayName"`
		Avatar      string `json:"avatar"`
	} `json:"author"`
	Record struct {
		Text      string `json:"text"`
		CreatedAt string `json:"createdAt"`
	} `json:"record"`
	ReplyCount  int `json:"replyCount"`
	RepostCount int `json:"repostCount"`
	LikeCount   int `json:"likeCount"`
	QuoteCount  int `json:"quoteCount"`
}

func toItem(post postView) platform.Item {
	return platform.Item{
		NativeID:          post.URI,
		AuthorHandle:      post.Author.Handle,
		AuthorDisplayName: post.Author.DisplayName,
		AuthorAvatarURL:   post.Author.Avatar,
		Text:              post.Record.Text,
		Permalink:         permalink(post.Author.Handle, post.URI),
		CreatedAt:         post.Record.CreatedAt,
		LikesCount:        post.LikeCount,
		RepliesCount:      post.ReplyCount,
		RepostsCount:      post.RepostCount,
		QuotesCount:       post.QuoteCount,
	}
}

// permalink builds the public web URL from the at:// URI record key.
// URI format: at://did:plc:xxx/app.bsky.feed.post/rkey
func permalink(handle, uri string) string {
	parts := strings.Split(uri, "/")
	rkey := parts[len(parts)-1]
	return fmt.Sprintf("https://bsky.app/profile/%s/post/%s", handle, rkey)
}

// session returns a cached access token, authenticating on first use. The
// lock only guards the token cache; it is never held across the auth request,
// so concurrent runs do not serialize on the network.
func (c *Client) session(ctx context.Context) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("bluesky credentials not configured")
	}

	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}

	fresh, err := c.createSession(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	// A concurrent caller may have authenticated first; keep its token.
	if c.accessToken == "" {
		c.accessToken = fresh
	}
	token = c.accessToken
	c.mu.Unlock()
	return token, nil
}

func (c *Client) createSession(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"identifier": c.handle,
		"password":   c.appPassword,
	})
	if err != nil {
		return "", fmt.Errorf("marshal session payload: %w", err)
	}

	endpoint := c.host + "/xrpc/com.atproto.server.createSession"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("create session: bluesky returned %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var session struct {
		AccessJwt string `json:"accessJwt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", fmt.Errorf("decode session: %w", err)
	}
	if session.AccessJwt == "" {
		return "", fmt.Errorf("create session: empty access token")
	}

	return session.AccessJwt, nil
}

func (c *Client) resetSession() {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}

func (c *Client) get(ctx context.Context, endpoint, token string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(payload))}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("bluesky returned %d: %s", e.status, e.body)
}

func isUnauthorized(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == http.StatusUnauthorized
}
