// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"time"
)

// Source identifies an external academic repository the service knows how to crawl.
type Source string

// Supported paper sources.
const (
	SourceACLAnthology Source = "acl_anthology"
	SourceArxiv        Source = "arxiv"
	SourceGenericPDF   Source = "generic_pdf"
)

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusPartial   JobStatus = "partial"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status can never transition again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusPartial, JobStatusFailed:
		return true
	default:
		return false
	}
}

// SourceConfig is a named crawl configuration resolved by jobs at submit time.
type SourceConfig struct {
	Name          string        `json:"name" mapstructure:"name"`
	Source        Source        `json:"source" mapstructure:"source"`
	BaseURL       string        `json:"base_url" mapstructure:"base_url"`
	RateLimit     float64       `json:"rate_limit" mapstructure:"rate_limit"`
	Burst         int           `json:"burst" mapstructure:"burst"`
	MaxAttempts   int           `json:"max_attempts" mapstructure:"max_attempts"`
	BackoffBase   time.Duration `json:"backoff_base" mapstructure:"backoff_base"`
	BackoffMax    time.Duration `json:"backoff_max" mapstructure:"backoff_max"`
	FetchTimeout  time.Duration `json:"fetch_timeout" mapstructure:"fetch_timeout"`
	JobTimeout    time.Duration `json:"job_timeout" mapstructure:"job_timeout"`
	MaxConcurrent int           `json:"max_concurrent" mapstructure:"max_concurrent"`
	MaxPapers     int           `json:"max_papers" mapstructure:"max_papers"`
	OutputDir     string        `json:"output_dir" mapstructure:"output_dir"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// JobRequest is the validated input handed to the orchestrator by the transport layer.
type JobRequest struct {
	ConfigName string   `json:"config_name"`
	Query      string   `json:"query,omitempty"`
	URLs       []string `json:"urls,omitempty"`
	MaxPapers  int      `json:"max_papers,omitempty"`
}

// CrawlerJob is the metadata persisted for each submitted crawl request.
type CrawlerJob struct {
	ID         string     `json:"id"`
	ConfigName string     `json:"config_name"`
	Query      string     `json:"query,omitempty"`
	URLs       []string   `json:"urls,omitempty"`
	MaxPapers  int        `json:"max_papers,omitempty"`
	Status     JobStatus  `json:"status"`
	CreatedIDs []string   `json:"created_ids"`
	Error      string     `json:"error,omitempty"`
	Started    *time.Time `json:"started_at,omitempty"`
	Finished   *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// PaperSection is one structured section extracted from a paper.
type PaperSection struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Level   int    `json:"level"`
}

// PaperKey is the dedup key for papers: a second crawl that rediscovers the
// same (source, source_id) pair updates the existing record.
type PaperKey struct {
	Source   Source `json:"source"`
	SourceID string `json:"source_id"`
}

// Paper is the persisted record for one discovered paper.
type Paper struct {
	ID           string                  `json:"id"`
	Title        string                  `json:"title"`
	Authors      []string                `json:"authors"`
	Source       Source                  `json:"source"`
	SourceID     string                  `json:"source_id"`
	Year         int                     `json:"year,omitempty"`
	URL          string                  `json:"url"`
	PDFURL       string                  `json:"pdf_url,omitempty"`
	LocalPDFPath string                  `json:"local_pdf_path,omitempty"`
	Venues       []string                `json:"venues,omitempty"`
	Sections     map[string]PaperSection `json:"sections,omitempty"`
	JobID        string                  `json:"job_id"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

// PaperFields is the parser output for one paper, before persistence.
// LocalPDFPath is filled in later if the PDF gets archived.
type PaperFields struct {
	Title        string
	Authors      []string
	SourceID     string
	Year         int
	URL          string
	PDFURL       string
	LocalPDFPath string
	Venues       []string
	Sections     map[string]PaperSection
}

// Key derives the dedup key for the parsed fields under the given source.
func (f PaperFields) Key(source Source) PaperKey {
	return PaperKey{Source: source, SourceID: f.SourceID}
}

// WorkItem is one ephemeral unit of crawl work derived from a job's input.
// It is never persisted.
type WorkItem struct {
	URL     string
	Attempt int
}

// QueueItem wraps a job ready to run.
type QueueItem struct {
	JobID     string
	Submitted int64
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// JobFilter narrows job listings.
type JobFilter struct {
	Status JobStatus
	Skip   int
	Limit  int
}

// PaperFilter narrows paper listings.
type PaperFilter struct {
	JobID string
	Skip  int
	Limit int
}
