// Package source fetches raw articles from the configured news sources and
// normalizes them into domain.Article records, filtering out ids the
// pipeline has already published.
package source

import (
	"context"

	"github.com/bkhanal/arthapost/pkg/domain"
)

// Source is a single news origin. Fetch returns normalized articles whose
// unique ids are not in seen. Implementations fail independently: an error
// from one source never prevents another from being fetched.
type Source interface {
	Name() string
	Fetch(ctx context.Context, seen map[string]struct{}) ([]domain.Article, error)
}

// SeenSet builds a membership set from the persisted id list
func SeenSet(ids []string) map[string]struct{} {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return seen
}
