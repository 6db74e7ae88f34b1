package crawler

import (
	"context"
	"time"
)

// JobStore persists crawl jobs and their status transitions. Terminal statuses
// are never overwritten by non-terminal ones; stale updates are dropped.
type JobStore interface {
	CreateJob(ctx context.Context, job CrawlerJob) error
	GetJob(ctx context.Context, jobID string) (CrawlerJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errText string, createdIDs []string) error
	ListJobs(ctx context.Context, filter JobFilter) ([]CrawlerJob, error)
}

// PaperStore persists papers deduplicated by (source, source_id). Upsert must
// be atomic: two concurrent discoveries of the same key never create duplicates.
type PaperStore interface {
	UpsertPaper(ctx context.Context, key PaperKey, fields PaperFields, jobID string) (paperID string, created bool, err error)
	GetPaper(ctx context.Context, paperID string) (Paper, error)
	ListPapers(ctx context.Context, filter PaperFilter) ([]Paper, error)
}

// Registry resolves named source configurations.
type Registry interface {
	Resolve(name string) (SourceConfig, error)
}

// Fetcher retrieves one URL, applying the config's rate limit, per-attempt
// timeout, and retry/backoff policy.
type Fetcher interface {
	Fetch(ctx context.Context, cfg SourceConfig, url string) (FetchResponse, error)
}

// Parser extracts structured paper fields from fetched content.
type Parser interface {
	Parse(resp FetchResponse, cfg SourceConfig) (PaperFields, error)
}

// Searcher is an optional parser capability: sources that support query search
// expand a free-text query into candidate paper URLs.
type Searcher interface {
	// SearchURL builds the search request URL for the query, or ok=false when
	// the source has no query search.
	SearchURL(cfg SourceConfig, query string) (url string, ok bool)
	// ExtractLinks enumerates candidate paper URLs from a search results page,
	// in source-ranked order.
	ExtractLinks(resp FetchResponse, cfg SourceConfig) ([]string, error)
}

// PDFStore archives downloaded PDF artifacts and returns a local path.
type PDFStore interface {
	Put(ctx context.Context, path string, data []byte) (string, error)
	Exists(path string) bool
}

// Queue provides enqueue/dequeue semantics for crawl jobs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job and paper IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
