package search

import (
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxUsers  = "atrium_users"
	idxGroups = "atrium_groups"
)

// Meili backs the directory search with Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the directory
// indexes. An unreachable server is tolerated; the health loop flips the
// backend live when it comes up.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		searchable []string
	}{
		{uid: idxUsers, searchable: []string{"displayName", "email"}},
		{uid: idxGroups, searchable: []string{"name", "description"}},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			log.Printf("search: create index %s (may already exist): %v", idx.uid, err)
		}
		if _, err := m.client.Index(idx.uid).UpdateSearchableAttributes(&idx.searchable); err != nil {
			log.Printf("search: update searchable attrs for %s: %v", idx.uid, err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the user and group indexes and merges results.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	var queries []*meili.SearchRequest
	targets := []struct {
		uid  string
		rtyp ResultType
	}{
		{idxUsers, ResultUser},
		{idxGroups, ResultGroup},
	}
	for _, target := range targets {
		if q.FilterType != "" && q.FilterType != target.rtyp {
			continue
		}
		queries = append(queries, &meili.SearchRequest{
			IndexUID: target.uid,
			Query:    q.Text,
			Limit:    limit,
		})
	}
	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, sr.IndexUID))
		}
	}
	return results, total, nil
}

// IndexUser upserts a user into the directory index.
func (m *Meili) IndexUser(record UserRecord) error {
	_, err := m.client.Index(idxUsers).AddDocuments([]UserRecord{record}, nil)
	return err
}

// IndexGroup upserts a group into the directory index.
func (m *Meili) IndexGroup(record GroupRecord) error {
	_, err := m.client.Index(idxGroups).AddDocuments([]GroupRecord{record}, nil)
	return err
}

// IndexUsers bulk-indexes users, used when rebuilding the directory.
func (m *Meili) IndexUsers(records []UserRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxUsers).AddDocuments(records, nil)
	return err
}

// IndexGroups bulk-indexes groups.
func (m *Meili) IndexGroups(records []GroupRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxGroups).AddDocuments(records, nil)
	return err
}

// DeleteUser removes a user from the directory index.
func (m *Meili) DeleteUser(id string) error {
	_, err := m.client.Index(idxUsers).DeleteDocument(id, nil)
	return err
}

// DeleteGroup removes a group from the directory index.
func (m *Meili) DeleteGroup(id string) error {
	_, err := m.client.Index(idxGroups).DeleteDocument(id, nil)
	return err
}

func hitToResult(hit meili.Hit, indexUID string) Result {
	switch indexUID {
	case idxUsers:
		return Result{
			Type:  ResultUser,
			ID:    decodeString(hit, "id"),
			Name:  decodeString(hit, "displayName"),
			Email: decodeString(hit, "email"),
		}
	case idxGroups:
		return Result{
			Type: ResultGroup,
			ID:   decodeString(hit, "id"),
			Name: decodeString(hit, "name"),
		}
	default:
		return Result{}
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	return value
}
