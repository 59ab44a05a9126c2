// Package publish posts rewritten articles to the blogging platform and
// handles credential acquisition for it.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// BloggerScope is the OAuth scope required for posting
const BloggerScope = "https://www.googleapis.com/auth/blogger"

// Blogger publishes posts to a single blog via the Blogger v3 REST API
type Blogger struct {
	endpoint string
	blogID   string
	token    string
	labels   []string
	client   *http.Client
}

// NewBlogger creates a publisher bound to one blog. The token must already
// be obtained via Authenticate.
func NewBlogger(endpoint, blogID, token string, labels []string, timeout time.Duration) *Blogger {
	return &Blogger{
		endpoint: endpoint,
		blogID:   blogID,
		token:    token,
		labels:   labels,
		client:   &http.Client{Timeout: timeout},
	}
}

// bloggerPost is the posts.insert request body
type bloggerPost struct {
	Kind    string   `json:"kind"`
	Blog    blogRef  `json:"blog"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Labels  []string `json:"labels,omitempty"`
}

type blogRef struct {
	ID string `json:"id"`
}

// Publish inserts a post and returns its published URL. Failures (auth,
// quota, malformed body) come back as errors for the pipeline to log and
// skip on.
func (b *Blogger) Publish(ctx context.Context, title, content string) (string, error) {
	body, err := json.Marshal(bloggerPost{
		Kind:    "blogger#post",
		Blog:    blogRef{ID: b.blogID},
		Title:   title,
		Content: content,
		Labels:  b.labels,
	})
	if err != nil {
		return "", fmt.Errorf("marshal post: %w", err)
	}

	url := fmt.Sprintf("%s/blogs/%s/posts", b.endpoint, b.blogID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("insert post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("insert post status %d: %s", resp.StatusCode, string(msg))
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode post response: %w", err)
	}
	return result.URL, nil
}
