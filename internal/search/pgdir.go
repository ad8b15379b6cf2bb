package search

import (
	"context"
	"fmt"

	"atrium/api/internal/store"
)

// DirectoryStore is the slice of the data store the Postgres fallback needs.
type DirectoryStore interface {
	SearchDirectory(ctx context.Context, query string, limit int) ([]store.DirectoryEntry, error)
}

// PgDirectory is the ILIKE-based fallback backend used when Meilisearch is
// not configured or unreachable.
type PgDirectory struct {
	store DirectoryStore
}

func NewPgDirectory(store DirectoryStore) *PgDirectory {
	return &PgDirectory{store: store}
}

func (p *PgDirectory) Search(ctx context.Context, q Query) ([]Result, int, error) {
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}

	entries, err := p.store.SearchDirectory(ctx, q.Text, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("directory search: %w", err)
	}

	var results []Result
	for _, entry := range entries {
		rtyp := ResultType(entry.Kind)
		if q.FilterType != "" && q.FilterType != rtyp {
			continue
		}
		results = append(results, Result{
			Type:        rtyp,
			ID:          entry.ID,
			Name:        entry.Name,
			Email:       entry.Email,
			MemberCount: entry.MemberCount,
		})
	}
	return results, len(results), nil
}
