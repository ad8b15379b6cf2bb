package search

import (
	"context"
	"testing"

	"atrium/api/internal/store"
)

type fakeDirectoryStore struct {
	entries []store.DirectoryEntry
	err     error
}

func (f *fakeDirectoryStore) SearchDirectory(ctx context.Context, query string, limit int) ([]store.DirectoryEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

func TestServiceFallsBackToPostgres(t *testing.T) {
	fake := &fakeDirectoryStore{entries: []store.DirectoryEntry{
		{Kind: "user", ID: "u1", Name: "Ada Lovelace", Email: "ada@example.com"},
		{Kind: "group", ID: "g1", Name: "Engineering", MemberCount: 7},
	}}
	// nil Meili means not configured; the fallback must serve.
	svc := NewService(nil, NewPgDirectory(fake))

	resp := svc.Search(context.Background(), Query{Text: "a"})
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].Type != ResultUser || resp.Results[1].Type != ResultGroup {
		t.Fatalf("unexpected result types: %+v", resp.Results)
	}
	if resp.Results[1].MemberCount != 7 {
		t.Fatalf("expected group member count to pass through")
	}
}

func TestServiceFilterType(t *testing.T) {
	fake := &fakeDirectoryStore{entries: []store.DirectoryEntry{
		{Kind: "user", ID: "u1", Name: "Ada"},
		{Kind: "group", ID: "g1", Name: "Engineering"},
	}}
	svc := NewService(nil, NewPgDirectory(fake))

	resp := svc.Search(context.Background(), Query{Text: "e", FilterType: ResultGroup})
	if len(resp.Results) != 1 || resp.Results[0].Type != ResultGroup {
		t.Fatalf("expected only group results, got %+v", resp.Results)
	}
}

func TestServiceEmptyOnBackendError(t *testing.T) {
	fake := &fakeDirectoryStore{err: context.DeadlineExceeded}
	svc := NewService(nil, NewPgDirectory(fake))

	resp := svc.Search(context.Background(), Query{Text: "x"})
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Fatalf("expected empty non-nil results, got %+v", resp.Results)
	}
}
