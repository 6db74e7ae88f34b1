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

// PaperStore persists papers in Postgres, deduplicated by the unique
// (source, source_id) index.
//
// CREATE TABLE papers (
//
//	id UUID PRIMARY KEY,
//	title TEXT NOT NULL,
//	authors JSONB NOT NULL DEFAULT '[]',
//	source TEXT NOT NULL,
//	source_id TEXT NOT NULL,
//	year INT NOT NULL DEFAULT 0,
//	url TEXT NOT NULL DEFAULT '',
//	pdf_url TEXT NOT NULL DEFAULT '',
//	local_pdf_path TEXT NOT NULL DEFAULT '',
//	venues JSONB NOT NULL DEFAULT '[]',
//	sections JSONB NOT NULL DEFAULT '{}',
//	job_id TEXT NOT NULL DEFAULT '',
//	created_at TIMESTAMPTZ NOT NULL,
//	updated_at TIMESTAMPTZ NOT NULL,
//	UNIQUE (source, source_id)
//
// );
type PaperStore struct {
	pool  dbPool
	clock crawler.Clock
	ids   crawler.IDGenerator
}

// NewPaperStore constructs a store from an existing pool.
func NewPaperStore(pool dbPool, clock crawler.Clock, ids crawler.IDGenerator) (*PaperStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &PaperStore{pool: pool, clock: clock, ids: ids}, nil
}

// Close releases the underlying pool resources.
func (s *PaperStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// The conflict branch refreshes mutable fields but keeps created_at, and only
// overwrites pdf_url/local_pdf_path when the new values are non-empty.
// xmax = 0 distinguishes a fresh insert from a conflict update.
const upsertPaperSQL = `
INSERT INTO papers (
	id, title, authors, source, source_id, year, url, pdf_url,
	local_pdf_path, venues, sections, job_id, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)
ON CONFLICT (source, source_id) DO UPDATE SET
	title = EXCLUDED.title,
	authors = EXCLUDED.authors,
	year = EXCLUDED.year,
	url = EXCLUDED.url,
	pdf_url = COALESCE(NULLIF(EXCLUDED.pdf_url, ''), papers.pdf_url),
	local_pdf_path = COALESCE(NULLIF(EXCLUDED.local_pdf_path, ''), papers.local_pdf_path),
	venues = EXCLUDED.venues,
	sections = CASE WHEN EXCLUDED.sections != '{}'::jsonb THEN EXCLUDED.sections ELSE papers.sections END,
	job_id = EXCLUDED.job_id,
	updated_at = EXCLUDED.updated_at
RETURNING id, (xmax = 0) AS created`

// UpsertPaper inserts a paper or refreshes the existing record for its key.
func (s *PaperStore) UpsertPaper(
	ctx context.Context,
	key crawler.PaperKey,
	fields crawler.PaperFields,
	jobID string,
) (string, bool, error) {
	if key.SourceID == "" {
		return "", false, &crawler.StorageError{Op: "upsert paper", Err: fmt.Errorf("empty source_id for %s", fields.URL)}
	}
	newID, err := s.ids.NewID()
	if err != nil {
		return "", false, &crawler.StorageError{Op: "upsert paper", Err: err}
	}
	authors, err := json.Marshal(stringsOrEmpty(fields.Authors))
	if err != nil {
		return "", false, &crawler.StorageError{Op: "upsert paper", Err: err}
	}
	venues, err := json.Marshal(stringsOrEmpty(fields.Venues))
	if err != nil {
		return "", false, &crawler.StorageError{Op: "upsert paper", Err: err}
	}
	sections, err := json.Marshal(sectionsOrEmpty(fields.Sections))
	if err != nil {
		return "", false, &crawler.StorageError{Op: "upsert paper", Err: err}
	}

	var (
		paperID string
		created bool
	)
	err = s.pool.QueryRow(ctx, upsertPaperSQL,
		newID, fields.Title, authors, string(key.Source), key.SourceID,
		fields.Year, fields.URL, fields.PDFURL, fields.LocalPDFPath,
		venues, sections, jobID, s.clock.Now().UTC(),
	).Scan(&paperID, &created)
	if err != nil {
		return "", false, &crawler.StorageError{Op: "upsert paper", Err: err}
	}
	return paperID, created, nil
}

const selectPaperSQL = `
SELECT id, title, authors, source, source_id, year, url, pdf_url,
	local_pdf_path, venues, sections, job_id, created_at, updated_at
FROM papers`

// GetPaper fetches a paper by ID.
func (s *PaperStore) GetPaper(ctx context.Context, paperID string) (crawler.Paper, error) {
	row := s.pool.QueryRow(ctx, selectPaperSQL+` WHERE id = $1`, paperID)
	paper, err := scanPaper(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.Paper{}, crawler.ErrPaperNotFound
	}
	if err != nil {
		return crawler.Paper{}, &crawler.StorageError{Op: "get paper", Err: err}
	}
	return paper, nil
}

// ListPapers returns papers matching the filter, most recently updated first.
func (s *PaperStore) ListPapers(ctx context.Context, filter crawler.PaperFilter) ([]crawler.Paper, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.JobID != "" {
		args = append(args, filter.JobID)
		clauses = append(clauses, fmt.Sprintf("job_id = $%d", len(args)))
	}
	query := selectPaperSQL
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
		return nil, &crawler.StorageError{Op: "list papers", Err: err}
	}
	defer rows.Close()

	var papers []crawler.Paper
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, &crawler.StorageError{Op: "list papers", Err: err}
		}
		papers = append(papers, paper)
	}
	if err := rows.Err(); err != nil {
		return nil, &crawler.StorageError{Op: "list papers", Err: err}
	}
	return papers, nil
}

func scanPaper(row pgx.Row) (crawler.Paper, error) {
	var (
		paper    crawler.Paper
		source   string
		authors  []byte
		venues   []byte
		sections []byte
	)
	err := row.Scan(
		&paper.ID, &paper.Title, &authors, &source, &paper.SourceID,
		&paper.Year, &paper.URL, &paper.PDFURL, &paper.LocalPDFPath,
		&venues, &sections, &paper.JobID, &paper.CreatedAt, &paper.UpdatedAt,
	)
	if err != nil {
		return crawler.Paper{}, err
	}
	paper.Source = crawler.Source(source)
	if err := json.Unmarshal(authors, &paper.Authors); err != nil {
		return crawler.Paper{}, fmt.Errorf("decode authors: %w", err)
	}
	if err := json.Unmarshal(venues, &paper.Venues); err != nil {
		return crawler.Paper{}, fmt.Errorf("decode venues: %w", err)
	}
	if err := json.Unmarshal(sections, &paper.Sections); err != nil {
		return crawler.Paper{}, fmt.Errorf("decode sections: %w", err)
	}
	return paper, nil
}

func sectionsOrEmpty(s map[string]crawler.PaperSection) map[string]crawler.PaperSection {
	if s == nil {
		return map[string]crawler.PaperSection{}
	}
	return s
}

var _ crawler.PaperStore = (*PaperStore)(nil)
