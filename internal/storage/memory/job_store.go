package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dangvonguyen/research-agent/internal/crawler"
)

// JobStore provides an in-memory implementation for development/testing.
type JobStore struct {
	mu    sync.RWMutex
	jobs  map[string]crawler.CrawlerJob
	clock crawler.Clock
}

// NewJobStore constructs a JobStore.
func NewJobStore(clock crawler.Clock) *JobStore {
	return &JobStore{
		jobs:  make(map[string]crawler.CrawlerJob),
		clock: clock,
	}
}

// CreateJob stores a new job in pending status.
func (s *JobStore) CreateJob(_ context.Context, job crawler.CrawlerJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return &crawler.StorageError{Op: "create job", Err: fmt.Errorf("job %s already exists", job.ID)}
	}
	now := s.clock.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	s.jobs[job.ID] = job
	return nil
}

// UpdateJobStatus transitions a job's status. A job already in a terminal
// status keeps it; the stale update is dropped without error.
func (s *JobStore) UpdateJobStatus(
	_ context.Context,
	jobID string,
	status crawler.JobStatus,
	errText string,
	createdIDs []string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return crawler.ErrJobNotFound
	}
	if job.Status.Terminal() {
		return nil
	}
	job.Status = status
	job.Error = errText
	if createdIDs != nil {
		job.CreatedIDs = createdIDs
	}
	now := s.clock.Now().UTC()
	if status == crawler.JobStatusRunning && job.Started == nil {
		job.Started = pointerTime(now)
	}
	if status.Terminal() {
		job.Finished = pointerTime(now)
	}
	job.UpdatedAt = now
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (crawler.CrawlerJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return crawler.CrawlerJob{}, crawler.ErrJobNotFound
	}
	return job, nil
}

// ListJobs returns jobs matching the filter, most recently updated first.
func (s *JobStore) ListJobs(_ context.Context, filter crawler.JobFilter) ([]crawler.CrawlerJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]crawler.CrawlerJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].UpdatedAt.Equal(jobs[j].UpdatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].UpdatedAt.After(jobs[j].UpdatedAt)
	})
	return paginate(jobs, filter.Skip, filter.Limit), nil
}

func paginate[T any](items []T, skip, limit int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

var _ crawler.JobStore = (*JobStore)(nil)
