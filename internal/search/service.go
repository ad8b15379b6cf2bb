package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to the
// Postgres directory search.
type Service struct {
	meili *Meili
	pgdir *PgDirectory
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, pgdir *PgDirectory) *Service {
	return &Service{meili: meili, pgdir: pgdir}
}

// Search tries Meilisearch if healthy, otherwise falls back to Postgres.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	results, total, err := s.pgdir.Search(ctx, q)
	if err != nil {
		log.Printf("search: postgres directory error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexUser indexes a user (fire-and-forget to Meilisearch).
func (s *Service) IndexUser(record UserRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexUser(record); err != nil {
			log.Printf("search: index user %s: %v", record.ID, err)
		}
	}()
}

// IndexGroup indexes a group (fire-and-forget to Meilisearch).
func (s *Service) IndexGroup(record GroupRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexGroup(record); err != nil {
			log.Printf("search: index group %s: %v", record.ID, err)
		}
	}()
}

// DeleteUser removes a user from the index (fire-and-forget).
func (s *Service) DeleteUser(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteUser(id); err != nil {
			log.Printf("search: delete user %s: %v", id, err)
		}
	}()
}

// DeleteGroup removes a group from the index (fire-and-forget).
func (s *Service) DeleteGroup(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteGroup(id); err != nil {
			log.Printf("search: delete group %s: %v", id, err)
		}
	}()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
