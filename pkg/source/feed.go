package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/bkhanal/arthapost/pkg/domain"
)

// feedIDPrefix marks ids derived from feed entry links
const feedIDPrefix = "rss_"

// FeedSource pulls articles from an RSS/Atom feed. Identity is link-based:
// two entries with the same content but different links are distinct, and a
// link change for the same story produces a re-post. The feed carries no
// usable native date, so Date is always empty.
type FeedSource struct {
	url       string
	label     string
	client    *http.Client
	userAgent string
}

// NewFeedSource creates a feed source for the given URL. Label is the
// human-readable provenance attached to every article.
func NewFeedSource(url, label string, timeout time.Duration, userAgent string) *FeedSource {
	return &FeedSource{
		url:   url,
		label: label,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

// Name returns the source label
func (s *FeedSource) Name() string { return s.label }

// Fetch retrieves the feed and returns articles not present in seen
func (s *FeedSource) Fetch(ctx context.Context, seen map[string]struct{}) ([]domain.Article, error) {
	body, err := s.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	articles := make([]domain.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		uniqueID := feedIDPrefix + item.Link
		if _, ok := seen[uniqueID]; ok {
			continue
		}

		// prefer the summary, fall back to the full content block
		content := item.Description
		if content == "" {
			content = item.Content
		}

		articles = append(articles, domain.Article{
			UniqueID: uniqueID,
			Title:    item.Title,
			Content:  content,
			Link:     item.Link,
			Source:   s.label,
		})
	}
	return articles, nil
}

// fetch retrieves the raw feed body
func (s *FeedSource) fetch(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return resp.Body, nil
}
