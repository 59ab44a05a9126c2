// Package pipeline runs the ingest-rewrite-publish loop: load the dedup
// state, fetch new articles from all sources, and process them sequentially
// up to the run cap with a fixed pacing delay between posts.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/bkhanal/arthapost/pkg/domain"
)

//go:generate moq -out mocks/source.go -pkg mocks -skip-ensure -fmt goimports . Source
//go:generate moq -out mocks/rewriter.go -pkg mocks -skip-ensure -fmt goimports . Rewriter
//go:generate moq -out mocks/publisher.go -pkg mocks -skip-ensure -fmt goimports . Publisher
//go:generate moq -out mocks/store.go -pkg mocks -skip-ensure -fmt goimports . Store
//go:generate moq -out mocks/extractor.go -pkg mocks -skip-ensure -fmt goimports . Extractor

// Source fetches normalized articles not present in seen
type Source interface {
	Name() string
	Fetch(ctx context.Context, seen map[string]struct{}) ([]domain.Article, error)
}

// Rewriter turns an article into a publishable post
type Rewriter interface {
	Rewrite(ctx context.Context, article domain.Article) (*domain.RewrittenPost, error)
}

// Publisher posts a title/content pair and returns the published URL
type Publisher interface {
	Publish(ctx context.Context, title, content string) (string, error)
}

// Store persists ids of published articles
type Store interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, id string, current []string) ([]string, error)
}

// Extractor pulls article text from a URL, used when a source item has no body
type Extractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// Pipeline orchestrates one run. It is the only component with side effects
// beyond fetching, and the only writer of the dedup store.
type Pipeline struct {
	sources   []Source
	rewriter  Rewriter
	publisher Publisher
	store     Store
	extractor Extractor // optional
	maxPosts  int
	postDelay time.Duration
}

// Params holds pipeline dependencies and settings
type Params struct {
	Sources   []Source
	Rewriter  Rewriter
	Publisher Publisher
	Store     Store
	Extractor Extractor // nil disables extraction fallback
	MaxPosts  int
	PostDelay time.Duration
}

// Stats summarizes a completed run
type Stats struct {
	Fetched   int // articles queued after dedup filtering
	Processed int // articles attempted (bounded by the run cap)
	Published int // articles successfully posted and recorded
	Skipped   int // articles dropped on rewrite or publish failure
}

// New creates a pipeline
func New(p Params) *Pipeline {
	if p.MaxPosts == 0 {
		p.MaxPosts = 999
	}
	return &Pipeline{
		sources:   p.Sources,
		rewriter:  p.Rewriter,
		publisher: p.Publisher,
		store:     p.Store,
		extractor: p.Extractor,
		maxPosts:  p.MaxPosts,
		postDelay: p.PostDelay,
	}
}

// Run executes a single pipeline pass. The returned error is fatal only:
// unreadable dedup state or context cancellation. Source, rewrite and
// publish failures are logged and skipped, never propagated.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	posted, err := p.store.Load(ctx)
	if err != nil {
		return stats, fmt.Errorf("load dedup state: %w", err)
	}

	seen := make(map[string]struct{}, len(posted))
	for _, id := range posted {
		seen[id] = struct{}{}
	}

	// fetch all sources, each isolated from the others' failures; queue
	// order is source-registration order then within-source fetch order
	var queue []domain.Article
	for _, src := range p.sources {
		articles, err := src.Fetch(ctx, seen)
		if err != nil {
			lgr.Printf("[WARN] fetch from %s failed: %v", src.Name(), err)
			continue
		}
		lgr.Printf("[INFO] fetched %d new articles from %s", len(articles), src.Name())
		queue = append(queue, articles...)
	}
	stats.Fetched = len(queue)
	lgr.Printf("[INFO] total new articles fetched: %d", len(queue))

	for _, article := range queue {
		if stats.Processed >= p.maxPosts {
			lgr.Printf("[INFO] maximum processing limit reached (%d)", p.maxPosts)
			break
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Processed++

		lgr.Printf("[INFO] processing article: %s", article.Title)

		if article.Content == "" && p.extractor != nil {
			text, err := p.extractor.Extract(ctx, article.Link)
			if err != nil {
				lgr.Printf("[WARN] content extraction failed for %s: %v", article.Link, err)
			} else {
				article.Content = text
			}
		}

		post, err := p.rewriter.Rewrite(ctx, article)
		if err != nil {
			lgr.Printf("[WARN] rewrite failed for %q, skipped: %v", article.Title, err)
			stats.Skipped++
			continue
		}

		url, err := p.publisher.Publish(ctx, post.Title, post.Content)
		if err != nil {
			lgr.Printf("[WARN] publish failed for %q, skipped: %v", post.Title, err)
			stats.Skipped++
			continue
		}
		lgr.Printf("[INFO] successfully posted: %s", url)

		// record the id only after the confirmed publish; a crash between
		// the publish and this save can re-post the article on the next run
		if updated, err := p.store.Save(ctx, article.UniqueID, posted); err != nil {
			lgr.Printf("[ERROR] failed to record posted id %s: %v", article.UniqueID, err)
		} else {
			posted = updated
		}
		stats.Published++

		// pacing delay protects the downstream collaborators from bursts
		if p.postDelay > 0 {
			select {
			case <-time.After(p.postDelay):
			case <-ctx.Done():
				return stats, ctx.Err()
			}
		}
	}

	lgr.Printf("[INFO] this run created %d new posts", stats.Published)
	return stats, nil
}
