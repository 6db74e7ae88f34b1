package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dangvonguyen/research-agent/internal/crawler"
	"github.com/dangvonguyen/research-agent/internal/metrics"
)

// ParserResolver resolves the parser implementation for a source type.
type ParserResolver interface {
	ForSource(source crawler.Source) (crawler.Parser, error)
}

// Worker consumes queue items and executes the crawl pipeline for each job.
type Worker struct {
	queue      crawler.Queue
	jobStore   crawler.JobStore
	paperStore crawler.PaperStore
	pdfStore   crawler.PDFStore
	registry   crawler.Registry
	fetcher    crawler.Fetcher
	parsers    ParserResolver
	clock      crawler.Clock
	logger     *zap.Logger
}

// NewWorker constructs a Worker.
func NewWorker(
	queue crawler.Queue,
	jobStore crawler.JobStore,
	paperStore crawler.PaperStore,
	pdfStore crawler.PDFStore,
	registry crawler.Registry,
	fetcher crawler.Fetcher,
	parsers ParserResolver,
	clock crawler.Clock,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:      queue,
		jobStore:   jobStore,
		paperStore: paperStore,
		pdfStore:   pdfStore,
		registry:   registry,
		fetcher:    fetcher,
		parsers:    parsers,
		clock:      clock,
		logger:     logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		w.processJob(ctx, item)
	}
}

// itemResult is the outcome of one work item, recorded in completion order.
type itemResult struct {
	paperID string
	err     error
}

func (w *Worker) processJob(ctx context.Context, item crawler.QueueItem) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	job, err := w.jobStore.GetJob(ctx, item.JobID)
	if err != nil {
		w.logger.Error("load job failed", zap.String("job_id", item.JobID), zap.Error(err))
		return
	}
	if job.Status.Terminal() {
		w.logger.Warn("skipping job already terminal",
			zap.String("job_id", job.ID), zap.String("status", string(job.Status)))
		return
	}

	cfg, err := w.registry.Resolve(job.ConfigName)
	if err != nil {
		w.failJob(ctx, job.ID, fmt.Sprintf("resolve config %q: %v", job.ConfigName, err))
		return
	}

	if err := w.jobStore.UpdateJobStatus(ctx, job.ID, crawler.JobStatusRunning, "", nil); err != nil {
		w.logger.Error("claim job failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	jobCtx := ctx
	cancel := context.CancelFunc(func() {})
	if cfg.JobTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, cfg.JobTimeout)
	}
	defer cancel()

	status, createdIDs, errText := w.runJob(jobCtx, job, cfg)

	if errors.Is(jobCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		status = crawler.JobStatusFailed
		errText = crawler.ErrJobTimeout.Error()
	}

	if err := w.jobStore.UpdateJobStatus(ctx, job.ID, status, errText, createdIDs); err != nil {
		w.logger.Error("final job status update failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	metrics.ObserveJob(string(status))
	w.logger.Info("job finished",
		zap.String("job_id", job.ID),
		zap.String("status", string(status)),
		zap.Int("papers", len(createdIDs)),
	)
}

// runJob resolves work items and drives the per-item pipeline through a
// bounded pool. It returns the terminal status, the paper IDs in completion
// order, and the aggregated error text.
func (w *Worker) runJob(
	ctx context.Context,
	job crawler.CrawlerJob,
	cfg crawler.SourceConfig,
) (crawler.JobStatus, []string, string) {
	items, expandErr := w.resolveItems(ctx, job, cfg)
	if expandErr != nil && len(items) == 0 {
		return crawler.JobStatusFailed, []string{}, expandErr.Error()
	}
	if len(items) == 0 {
		return crawler.JobStatusCompleted, []string{}, ""
	}

	poolSize := cfg.MaxConcurrent
	if poolSize <= 0 || poolSize > len(items) {
		poolSize = max(1, min(len(items), 4))
	}

	poolCtx, cancelPool := context.WithCancel(ctx)
	defer cancelPool()

	var (
		mu         sync.Mutex
		createdIDs []string
		failures   []error
		fatal      error
	)
	work := make(chan crawler.WorkItem)
	var wg sync.WaitGroup
	for i := 0; i < poolSize; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for wi := range work {
				res := w.processItem(poolCtx, job.ID, cfg, wi)

				mu.Lock()
				switch {
				case res.err == nil:
					createdIDs = append(createdIDs, res.paperID)
				case isFatal(res.err):
					if fatal == nil {
						fatal = res.err
					}
					cancelPool()
				default:
					failures = append(failures, fmt.Errorf("%s: %w", wi.URL, res.err))
				}
				mu.Unlock()
			}
		}()
	}

dispatch:
	for _, wi := range items {
		select {
		case <-poolCtx.Done():
			break dispatch
		case work <- wi:
		}
	}
	close(work)
	wg.Wait()

	// A failed query expansion counts as one more attempted item.
	total := len(items)
	if expandErr != nil {
		failures = append(failures, expandErr)
		total++
	}
	if fatal != nil {
		return crawler.JobStatusFailed, createdIDs, fatal.Error()
	}
	if ctx.Err() != nil {
		return crawler.JobStatusFailed, createdIDs, ctx.Err().Error()
	}

	switch {
	case len(failures) == 0:
		return crawler.JobStatusCompleted, createdIDs, ""
	case len(createdIDs) == 0:
		return crawler.JobStatusFailed, createdIDs, summarizeFailures(failures, total)
	default:
		return crawler.JobStatusPartial, createdIDs, summarizeFailures(failures, total)
	}
}

// resolveItems derives the job's work items: explicit URLs first, then query
// expansion results, deduplicated by URL and capped.
func (w *Worker) resolveItems(
	ctx context.Context,
	job crawler.CrawlerJob,
	cfg crawler.SourceConfig,
) ([]crawler.WorkItem, error) {
	seen := make(map[string]struct{})
	var items []crawler.WorkItem
	add := func(url string) {
		if _, dup := seen[url]; dup {
			return
		}
		seen[url] = struct{}{}
		items = append(items, crawler.WorkItem{URL: url})
	}
	for _, u := range job.URLs {
		add(u)
	}

	var expandErr error
	if job.Query != "" {
		urls, err := w.expandQuery(ctx, job, cfg)
		if err != nil {
			expandErr = fmt.Errorf("query expansion: %w", err)
			w.logger.Warn("query expansion failed",
				zap.String("job_id", job.ID), zap.Error(err))
		}
		for _, u := range urls {
			add(u)
		}
	}

	if limit := effectiveMaxPapers(job, cfg); limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, expandErr
}

func (w *Worker) expandQuery(
	ctx context.Context,
	job crawler.CrawlerJob,
	cfg crawler.SourceConfig,
) ([]string, error) {
	p, err := w.parsers.ForSource(cfg.Source)
	if err != nil {
		return nil, err
	}
	searcher, ok := p.(crawler.Searcher)
	if !ok {
		return nil, fmt.Errorf("source %q does not support query search", cfg.Source)
	}
	searchURL, ok := searcher.SearchURL(cfg, job.Query)
	if !ok {
		return nil, fmt.Errorf("source %q could not build a search url", cfg.Source)
	}

	resp, err := w.fetcher.Fetch(ctx, cfg, searchURL)
	if err != nil {
		return nil, err
	}
	return searcher.ExtractLinks(resp, cfg)
}

// processItem runs the fetch→parse→archive→upsert pipeline for one URL.
func (w *Worker) processItem(
	ctx context.Context,
	jobID string,
	cfg crawler.SourceConfig,
	item crawler.WorkItem,
) itemResult {
	resp, err := w.fetcher.Fetch(ctx, cfg, item.URL)
	if err != nil {
		return itemResult{err: err}
	}

	p, err := w.parsers.ForSource(cfg.Source)
	if err != nil {
		return itemResult{err: err}
	}
	fields, err := p.Parse(resp, cfg)
	if err != nil {
		return itemResult{err: err}
	}
	if fields.SourceID == "" {
		return itemResult{err: &crawler.ParseError{URL: item.URL, Err: errors.New("no source id extracted")}}
	}

	if path, err := w.archivePDF(ctx, cfg, fields); err != nil {
		// A missing PDF artifact does not fail the paper.
		w.logger.Warn("pdf archive failed",
			zap.String("job_id", jobID),
			zap.String("url", fields.PDFURL),
			zap.Error(err))
	} else if path != "" {
		fields.LocalPDFPath = path
	}

	paperID, created, err := w.paperStore.UpsertPaper(ctx, fields.Key(cfg.Source), fields, jobID)
	if err != nil {
		return itemResult{err: err}
	}
	metrics.ObservePaperUpsert(cfg.Name, created)
	w.logger.Debug("paper stored",
		zap.String("job_id", jobID),
		zap.String("paper_id", paperID),
		zap.Bool("created", created),
	)
	return itemResult{paperID: paperID}
}

// archivePDF downloads the paper's PDF unless it is already on disk.
func (w *Worker) archivePDF(
	ctx context.Context,
	cfg crawler.SourceConfig,
	fields crawler.PaperFields,
) (string, error) {
	if w.pdfStore == nil || fields.PDFURL == "" {
		return "", nil
	}
	path := fmt.Sprintf("%s/%s.pdf", cfg.Source, sanitizePathSegment(fields.SourceID))
	if w.pdfStore.Exists(path) {
		// Already archived: the stored paper keeps its local_pdf_path.
		return "", nil
	}
	resp, err := w.fetcher.Fetch(ctx, cfg, fields.PDFURL)
	if err != nil {
		return "", err
	}
	return w.pdfStore.Put(ctx, path, resp.Body)
}

func (w *Worker) failJob(ctx context.Context, jobID, errText string) {
	if err := w.jobStore.UpdateJobStatus(ctx, jobID, crawler.JobStatusFailed, errText, nil); err != nil {
		w.logger.Error("fail job status update", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	metrics.ObserveJob(string(crawler.JobStatusFailed))
}

// isFatal reports whether the error must abort the whole job rather than
// only failing its item.
func isFatal(err error) bool {
	var storageErr *crawler.StorageError
	return errors.As(err, &storageErr)
}

// effectiveMaxPapers combines the per-job cap with the config ceiling.
func effectiveMaxPapers(job crawler.CrawlerJob, cfg crawler.SourceConfig) int {
	limit := job.MaxPapers
	if limit <= 0 {
		return cfg.MaxPapers
	}
	if cfg.MaxPapers > 0 && limit > cfg.MaxPapers {
		return cfg.MaxPapers
	}
	return limit
}

const maxReportedFailures = 3

func summarizeFailures(failures []error, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d items failed", len(failures), total)
	n := len(failures)
	if n > maxReportedFailures {
		n = maxReportedFailures
	}
	parts := make([]string, 0, n)
	for _, f := range failures[:n] {
		parts = append(parts, f.Error())
	}
	if len(parts) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(parts, "; "))
	}
	return b.String()
}

func sanitizePathSegment(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
