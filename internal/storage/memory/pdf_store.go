package memory

import (
	"context"
	"sync"

	"github.com/dangvonguyen/research-agent/internal/crawler"
)

// PDFStore keeps archived PDF bytes in memory for development and tests.
type PDFStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewPDFStore creates a new in-memory PDF store.
func NewPDFStore() *PDFStore {
	return &PDFStore{data: make(map[string][]byte)}
}

// Put stores a copy of the content and returns a pseudo path.
func (s *PDFStore) Put(_ context.Context, path string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = append([]byte(nil), data...)
	return "memory://" + path, nil
}

// Exists reports whether an artifact is already archived under path.
func (s *PDFStore) Exists(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[path]
	return ok
}

// Get returns the stored content for path.
func (s *PDFStore) Get(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

var _ crawler.PDFStore = (*PDFStore)(nil)
