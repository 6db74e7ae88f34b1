package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dangvonguyen/research-agent/internal/crawler"
)

// PaperStore provides an in-memory paper store deduplicated by
// (source, source_id).
type PaperStore struct {
	mu     sync.RWMutex
	papers map[string]crawler.Paper
	byKey  map[crawler.PaperKey]string
	clock  crawler.Clock
	ids    crawler.IDGenerator
}

// NewPaperStore constructs a PaperStore.
func NewPaperStore(clock crawler.Clock, ids crawler.IDGenerator) *PaperStore {
	return &PaperStore{
		papers: make(map[string]crawler.Paper),
		byKey:  make(map[crawler.PaperKey]string),
		clock:  clock,
		ids:    ids,
	}
}

// UpsertPaper inserts a paper or refreshes the existing record for its key.
// The whole operation holds the store lock, so concurrent discoveries of the
// same key resolve to one record. Re-crawls keep the original created_at.
func (s *PaperStore) UpsertPaper(
	_ context.Context,
	key crawler.PaperKey,
	fields crawler.PaperFields,
	jobID string,
) (string, bool, error) {
	if key.SourceID == "" {
		return "", false, &crawler.StorageError{Op: "upsert paper", Err: fmt.Errorf("empty source_id for %s", fields.URL)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC()
	if id, ok := s.byKey[key]; ok {
		paper := s.papers[id]
		applyFields(&paper, fields, jobID)
		paper.UpdatedAt = now
		s.papers[id] = paper
		return id, false, nil
	}

	id, err := s.ids.NewID()
	if err != nil {
		return "", false, &crawler.StorageError{Op: "upsert paper", Err: err}
	}
	paper := crawler.Paper{
		ID:        id,
		Source:    key.Source,
		SourceID:  key.SourceID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyFields(&paper, fields, jobID)
	s.papers[id] = paper
	s.byKey[key] = id
	return id, true, nil
}

// GetPaper fetches a paper by ID.
func (s *PaperStore) GetPaper(_ context.Context, paperID string) (crawler.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paper, ok := s.papers[paperID]
	if !ok {
		return crawler.Paper{}, crawler.ErrPaperNotFound
	}
	return paper, nil
}

// ListPapers returns papers matching the filter, most recently updated first.
func (s *PaperStore) ListPapers(_ context.Context, filter crawler.PaperFilter) ([]crawler.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	papers := make([]crawler.Paper, 0, len(s.papers))
	for _, paper := range s.papers {
		if filter.JobID != "" && paper.JobID != filter.JobID {
			continue
		}
		papers = append(papers, paper)
	}
	sort.Slice(papers, func(i, j int) bool {
		if papers[i].UpdatedAt.Equal(papers[j].UpdatedAt) {
			return papers[i].ID < papers[j].ID
		}
		return papers[i].UpdatedAt.After(papers[j].UpdatedAt)
	})
	return paginate(papers, filter.Skip, filter.Limit), nil
}

func applyFields(paper *crawler.Paper, fields crawler.PaperFields, jobID string) {
	paper.Title = fields.Title
	paper.Authors = fields.Authors
	paper.Year = fields.Year
	paper.URL = fields.URL
	if fields.PDFURL != "" {
		paper.PDFURL = fields.PDFURL
	}
	if fields.LocalPDFPath != "" {
		paper.LocalPDFPath = fields.LocalPDFPath
	}
	paper.Venues = fields.Venues
	if len(fields.Sections) > 0 {
		paper.Sections = fields.Sections
	}
	paper.JobID = jobID
}

var _ crawler.PaperStore = (*PaperStore)(nil)
