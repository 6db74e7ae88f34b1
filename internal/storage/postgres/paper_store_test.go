package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/dangvonguyen/research-agent/internal/crawler"
)

type staticIDs struct {
	id string
}

func (g staticIDs) NewID() (string, error) { return g.id, nil }

func newPaperStore(t *testing.T) (*PaperStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewPaperStore(mock, fixedClock{now: testNow}, staticIDs{id: "new-paper-id"})
	require.NoError(t, err)
	return store, mock
}

func TestUpsertPaperInserts(t *testing.T) {
	t.Parallel()

	store, mock := newPaperStore(t)
	key := crawler.PaperKey{Source: crawler.SourceACLAnthology, SourceID: "2024.acl-long.1"}
	fields := crawler.PaperFields{
		Title:    "Attention Is Not All You Need",
		Authors:  []string{"Nguyen, Minh"},
		SourceID: key.SourceID,
		Year:     2024,
		URL:      "https://aclanthology.org/2024.acl-long.1/",
		PDFURL:   "https://aclanthology.org/2024.acl-long.1.pdf",
	}

	mock.ExpectQuery("INSERT INTO papers").
		WithArgs(
			"new-paper-id", fields.Title, []byte(`["Nguyen, Minh"]`),
			"acl_anthology", key.SourceID, fields.Year, fields.URL, fields.PDFURL,
			"", []byte(`[]`), []byte(`{}`), "job-1", testNow,
		).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created"}).AddRow("new-paper-id", true))

	id, created, err := store.UpsertPaper(context.Background(), key, fields, "job-1")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "new-paper-id", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPaperConflictReturnsExisting(t *testing.T) {
	t.Parallel()

	store, mock := newPaperStore(t)
	key := crawler.PaperKey{Source: crawler.SourceArxiv, SourceID: "2403.01234"}
	fields := crawler.PaperFields{Title: "Scaling Laws", SourceID: key.SourceID}

	mock.ExpectQuery("INSERT INTO papers").
		WithArgs(
			"new-paper-id", fields.Title, []byte(`[]`),
			"arxiv", key.SourceID, 0, "", "",
			"", []byte(`[]`), []byte(`{}`), "job-2", testNow,
		).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created"}).AddRow("existing-id", false))

	id, created, err := store.UpsertPaper(context.Background(), key, fields, "job-2")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "existing-id", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPaperEmptySourceID(t *testing.T) {
	t.Parallel()

	store, _ := newPaperStore(t)

	_, _, err := store.UpsertPaper(
		context.Background(),
		crawler.PaperKey{Source: crawler.SourceArxiv},
		crawler.PaperFields{Title: "x"},
		"job-1",
	)
	var storageErr *crawler.StorageError
	require.ErrorAs(t, err, &storageErr)
}

func paperColumns() []string {
	return []string{
		"id", "title", "authors", "source", "source_id", "year", "url", "pdf_url",
		"local_pdf_path", "venues", "sections", "job_id", "created_at", "updated_at",
	}
}

func TestGetPaper(t *testing.T) {
	t.Parallel()

	store, mock := newPaperStore(t)

	mock.ExpectQuery("SELECT (.+) FROM papers WHERE id").
		WithArgs("p-1").
		WillReturnRows(pgxmock.NewRows(paperColumns()).AddRow(
			"p-1", "Scaling Laws", []byte(`["Pham, Quynh"]`), "arxiv", "2403.01234",
			2024, "https://arxiv.org/abs/2403.01234", "https://arxiv.org/pdf/2403.01234",
			"/data/papers/arxiv/2403.01234.pdf",
			[]byte(`[]`),
			[]byte(`{"abstract":{"title":"Abstract","content":"Power laws.","level":1}}`),
			"job-1", testNow, testNow,
		))

	paper, err := store.GetPaper(context.Background(), "p-1")
	require.NoError(t, err)
	require.Equal(t, crawler.SourceArxiv, paper.Source)
	require.Equal(t, []string{"Pham, Quynh"}, paper.Authors)
	require.Equal(t, "Power laws.", paper.Sections["abstract"].Content)
	require.Equal(t, "/data/papers/arxiv/2403.01234.pdf", paper.LocalPDFPath)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPaperNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newPaperStore(t)

	mock.ExpectQuery("SELECT (.+) FROM papers WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetPaper(context.Background(), "missing")
	require.ErrorIs(t, err, crawler.ErrPaperNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPapersByJob(t *testing.T) {
	t.Parallel()

	store, mock := newPaperStore(t)

	mock.ExpectQuery("SELECT (.+) FROM papers WHERE job_id").
		WithArgs("job-1", 20).
		WillReturnRows(pgxmock.NewRows(paperColumns()).AddRow(
			"p-1", "Paper One", []byte(`[]`), "acl_anthology", "2024.acl-long.1",
			2024, "", "", "", []byte(`[]`), []byte(`{}`), "job-1", testNow, testNow,
		))

	papers, err := store.ListPapers(context.Background(), crawler.PaperFilter{JobID: "job-1", Limit: 20})
	require.NoError(t, err)
	require.Len(t, papers, 1)
	require.Equal(t, "Paper One", papers[0].Title)
	require.NoError(t, mock.ExpectationsWereMet())
}
