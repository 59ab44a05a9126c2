// Package store persists the identifiers of already-published articles.
// The record set is ordered, bounded and FIFO by insertion: once it grows
// past the retention limit the oldest ids fall off. Only the pipeline writes
// it, and only after a confirmed publish.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bkhanal/arthapost/pkg/config"
)

// ErrCorrupted indicates the persisted dedup state exists but cannot be
// parsed. Loading fails loudly in this case: silently starting from an empty
// set would re-publish everything still present in the sources.
var ErrCorrupted = errors.New("dedup store corrupted")

// Store is the dedup store contract used by the pipeline
type Store interface {
	// Load returns all persisted ids in insertion order, empty when no prior
	// state exists
	Load(ctx context.Context) ([]string, error)
	// Save appends id to the set, trims it to the retention limit, persists
	// the result and returns it for continued in-run use
	Save(ctx context.Context, id string, current []string) ([]string, error)
}

// New creates a store for the configured backend
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Store.Type {
	case "file":
		return NewFileStore(cfg.Store.Path, cfg.Store.Retention), nil
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.Store.DSN, cfg.Store.Retention)
	}
	return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
}

// trim keeps the last limit entries of ids
func trim(ids []string, limit int) []string {
	if len(ids) > limit {
		return ids[len(ids)-limit:]
	}
	return ids
}
