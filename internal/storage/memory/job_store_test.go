package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dangvonguyen/research-agent/internal/crawler"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%d", g.n), nil
}

func TestJobStoreLifecycle(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := NewJobStore(clock)
	ctx := context.Background()
	job := crawler.CrawlerJob{ID: "job-1", ConfigName: "acl", Status: crawler.JobStatusPending}

	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := store.CreateJob(ctx, job); err == nil {
		t.Fatal("expected duplicate job error")
	}

	clock.Advance(time.Second)
	if err := store.UpdateJobStatus(ctx, job.ID, crawler.JobStatusRunning, "", nil); err != nil {
		t.Fatalf("UpdateJobStatus running error = %v", err)
	}
	running, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if running.Started == nil || running.Finished != nil {
		t.Fatalf("expected started set and finished unset, got %+v", running)
	}

	clock.Advance(time.Second)
	err = store.UpdateJobStatus(ctx, job.ID, crawler.JobStatusPartial, "2 of 3 items failed", []string{"p-1"})
	if err != nil {
		t.Fatalf("UpdateJobStatus partial error = %v", err)
	}
	final, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if final.Status != crawler.JobStatusPartial || final.Finished == nil {
		t.Fatalf("expected terminal partial with finished set, got %+v", final)
	}
	if final.Error != "2 of 3 items failed" || len(final.CreatedIDs) != 1 {
		t.Fatalf("expected error text and created ids to persist, got %+v", final)
	}
}

func TestJobStoreTerminalStatusSticks(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := NewJobStore(clock)
	ctx := context.Background()

	job := crawler.CrawlerJob{ID: "job-1", Status: crawler.JobStatusPending}
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := store.UpdateJobStatus(ctx, job.ID, crawler.JobStatusCompleted, "", []string{"p-1"}); err != nil {
		t.Fatalf("UpdateJobStatus completed error = %v", err)
	}

	// A late worker update must not demote the terminal status.
	if err := store.UpdateJobStatus(ctx, job.ID, crawler.JobStatusRunning, "", nil); err != nil {
		t.Fatalf("stale update should be dropped silently, got %v", err)
	}
	got, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Status != crawler.JobStatusCompleted {
		t.Fatalf("expected completed to stick, got %s", got.Status)
	}
}

func TestJobStoreNotFound(t *testing.T) {
	t.Parallel()

	store := NewJobStore(newFakeClock())
	ctx := context.Background()

	if _, err := store.GetJob(ctx, "missing"); !errors.Is(err, crawler.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if err := store.UpdateJobStatus(ctx, "missing", crawler.JobStatusRunning, "", nil); !errors.Is(err, crawler.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestJobStoreListFilterAndPagination(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := NewJobStore(clock)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		clock.Advance(time.Second)
		job := crawler.CrawlerJob{ID: fmt.Sprintf("job-%d", i), Status: crawler.JobStatusPending}
		if err := store.CreateJob(ctx, job); err != nil {
			t.Fatalf("CreateJob() error = %v", err)
		}
	}
	clock.Advance(time.Second)
	if err := store.UpdateJobStatus(ctx, "job-2", crawler.JobStatusFailed, "boom", nil); err != nil {
		t.Fatalf("UpdateJobStatus error = %v", err)
	}

	all, err := store.ListJobs(ctx, crawler.JobFilter{})
	if err != nil || len(all) != 4 {
		t.Fatalf("ListJobs() = %d jobs, err %v", len(all), err)
	}
	if all[0].ID != "job-2" {
		t.Fatalf("expected most recently updated first, got %s", all[0].ID)
	}

	failed, err := store.ListJobs(ctx, crawler.JobFilter{Status: crawler.JobStatusFailed})
	if err != nil || len(failed) != 1 || failed[0].ID != "job-2" {
		t.Fatalf("status filter mismatch: %+v err %v", failed, err)
	}

	page, err := store.ListJobs(ctx, crawler.JobFilter{Skip: 1, Limit: 2})
	if err != nil || len(page) != 2 {
		t.Fatalf("pagination mismatch: %+v err %v", page, err)
	}

	empty, err := store.ListJobs(ctx, crawler.JobFilter{Skip: 10})
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty page, got %+v err %v", empty, err)
	}
}
