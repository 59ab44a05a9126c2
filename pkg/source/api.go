package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bkhanal/arthapost/pkg/domain"
)

// apiIDPrefix marks ids derived from numeric API item ids
const apiIDPrefix = "json_"

// APISource pulls short news items from a JSON REST endpoint. Items are kept
// only when their category is in the allow-list and their id is unseen.
type APISource struct {
	url        string
	label      string
	categories map[string]struct{}
	client     *http.Client
	userAgent  string
}

// apiEnvelope is the expected response shape of the news endpoint
type apiEnvelope struct {
	Success bool      `json:"success"`
	Data    []apiItem `json:"data"`
}

type apiItem struct {
	ID           int64  `json:"id"`
	CategoryName string `json:"category_name"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	OriginalLink string `json:"original_news_link"`
	Date         string `json:"date"`
}

// NewAPISource creates an API source restricted to the given categories
func NewAPISource(url, label string, categories []string, timeout time.Duration, userAgent string) *APISource {
	allowed := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		allowed[c] = struct{}{}
	}
	return &APISource{
		url:        url,
		label:      label,
		categories: allowed,
		client:     &http.Client{Timeout: timeout},
		userAgent:  userAgent,
	}
}

// Name returns the source label
func (s *APISource) Name() string { return s.label }

// Fetch calls the endpoint and returns allow-listed articles not present in
// seen. Any failure (network, non-2xx, malformed JSON, success=false) is an
// error for the caller to log; it never aborts the run.
func (s *APISource) Fetch(ctx context.Context, seen map[string]struct{}) ([]domain.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !envelope.Success {
		return nil, fmt.Errorf("api did not return a success response")
	}

	articles := make([]domain.Article, 0, len(envelope.Data))
	for _, item := range envelope.Data {
		if _, ok := s.categories[item.CategoryName]; !ok {
			continue
		}
		uniqueID := apiIDPrefix + strconv.FormatInt(item.ID, 10)
		if _, ok := seen[uniqueID]; ok {
			continue
		}

		articles = append(articles, domain.Article{
			UniqueID: uniqueID,
			Title:    item.Title,
			Content:  item.Content,
			Link:     item.OriginalLink,
			Date:     item.Date,
			Source:   s.label,
		})
	}
	return articles, nil
}
