package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dangvonguyen/research-agent/internal/crawler"
)

// JobStore persists crawl jobs in Postgres.
//
// CREATE TABLE crawler_jobs (
//
//	id UUID PRIMARY KEY,
//	config_name TEXT NOT NULL,
//	query TEXT NOT NULL DEFAULT '',
//	urls JSONB NOT NULL DEFAULT '[]',
//	max_papers INT NOT NULL DEFAULT 0,
//	status TEXT NOT NULL,
//	created_ids JSONB NOT NULL DEFAULT '[]',
//	error TEXT NOT NULL DEFAULT '',
//	started_at TIMESTAMPTZ,
//	finished_at TIMESTAMPTZ,
//	created_at TIMESTAMPTZ NOT NULL,
//	updated_at TIMESTAMPTZ NOT NULL
//
// );
// CREATE INDEX crawler_jobs_status_idx ON crawler_jobs (status, updated_at DESC);
type JobStore struct {
	pool  dbPool
	clock crawler.Clock
}

// NewJobStore constructs a store from an existing pool.
func NewJobStore(pool dbPool, clock crawler.Clock) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &JobStore{pool: pool, clock: clock}, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const insertJobSQL = `
INSERT INTO crawler_jobs (
	id, config_name, query, urls, max_papers, status,
	created_ids, error, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

// CreateJob inserts a new job row.
func (s *JobStore) CreateJob(ctx context.Context, job crawler.CrawlerJob) error {
	if job.ID == "" {
		return &crawler.StorageError{Op: "create job", Err: errors.New("job id is required")}
	}
	urls, err := json.Marshal(stringsOrEmpty(job.URLs))
	if err != nil {
		return &crawler.StorageError{Op: "create job", Err: err}
	}
	createdIDs, err := json.Marshal(stringsOrEmpty(job.CreatedIDs))
	if err != nil {
		return &crawler.StorageError{Op: "create job", Err: err}
	}
	now := s.clock.Now().UTC()
	createdAt := job.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err = s.pool.Exec(ctx, insertJobSQL,
		job.ID, job.ConfigName, job.Query, urls, job.MaxPapers, string(job.Status),
		createdIDs, job.Error, createdAt, now,
	)
	if err != nil {
		return &crawler.StorageError{Op: "create job", Err: err}
	}
	return nil
}

// Terminal statuses never transition again, so the update predicate excludes
// them; a stale update simply matches zero rows.
const updateJobStatusSQL = `
UPDATE crawler_jobs SET
	status = $2,
	error = $3,
	created_ids = COALESCE($4, created_ids),
	started_at = CASE WHEN $2 = 'running' THEN COALESCE(started_at, $5) ELSE started_at END,
	finished_at = CASE WHEN $2 IN ('completed','partial','failed') THEN $5 ELSE finished_at END,
	updated_at = $5
WHERE id = $1 AND status NOT IN ('completed','partial','failed')`

// UpdateJobStatus transitions a job's status, dropping updates against jobs
// already in a terminal status.
func (s *JobStore) UpdateJobStatus(
	ctx context.Context,
	jobID string,
	status crawler.JobStatus,
	errText string,
	createdIDs []string,
) error {
	var idsArg any
	if createdIDs != nil {
		encoded, err := json.Marshal(createdIDs)
		if err != nil {
			return &crawler.StorageError{Op: "update job status", Err: err}
		}
		idsArg = encoded
	}
	tag, err := s.pool.Exec(ctx, updateJobStatusSQL,
		jobID, string(status), errText, idsArg, s.clock.Now().UTC(),
	)
	if err != nil {
		return &crawler.StorageError{Op: "update job status", Err: err}
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Zero rows is either a missing job or a terminal one.
	var exists bool
	err = s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM crawler_jobs WHERE id = $1)`, jobID).Scan(&exists)
	if err != nil {
		return &crawler.StorageError{Op: "update job status", Err: err}
	}
	if !exists {
		return crawler.ErrJobNotFound
	}
	return nil
}

const selectJobSQL = `
SELECT id, config_name, query, urls, max_papers, status,
	created_ids, error, started_at, finished_at, created_at, updated_at
FROM crawler_jobs`

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (crawler.CrawlerJob, error) {
	row := s.pool.QueryRow(ctx, selectJobSQL+` WHERE id = $1`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.CrawlerJob{}, crawler.ErrJobNotFound
	}
	if err != nil {
		return crawler.CrawlerJob{}, &crawler.StorageError{Op: "get job", Err: err}
	}
	return job, nil
}

// ListJobs returns jobs matching the filter, most recently updated first.
func (s *JobStore) ListJobs(ctx context.Context, filter crawler.JobFilter) ([]crawler.CrawlerJob, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	query := selectJobSQL
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY updated_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Skip > 0 {
		args = append(args, filter.Skip)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &crawler.StorageError{Op: "list jobs", Err: err}
	}
	defer rows.Close()

	var jobs []crawler.CrawlerJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, &crawler.StorageError{Op: "list jobs", Err: err}
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, &crawler.StorageError{Op: "list jobs", Err: err}
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (crawler.CrawlerJob, error) {
	var (
		job        crawler.CrawlerJob
		status     string
		urls       []byte
		createdIDs []byte
	)
	err := row.Scan(
		&job.ID, &job.ConfigName, &job.Query, &urls, &job.MaxPapers, &status,
		&createdIDs, &job.Error, &job.Started, &job.Finished, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return crawler.CrawlerJob{}, err
	}
	job.Status = crawler.JobStatus(status)
	if err := json.Unmarshal(urls, &job.URLs); err != nil {
		return crawler.CrawlerJob{}, fmt.Errorf("decode urls: %w", err)
	}
	if err := json.Unmarshal(createdIDs, &job.CreatedIDs); err != nil {
		return crawler.CrawlerJob{}, fmt.Errorf("decode created_ids: %w", err)
	}
	return job, nil
}

func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ crawler.JobStore = (*JobStore)(nil)
