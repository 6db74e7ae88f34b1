// Package orchestrator owns the crawl job lifecycle: submission, execution,
// and terminal status aggregation.
package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/dangvonguyen/research-agent/internal/crawler"
)

const enqueueTimeout = 5 * time.Second

// Service accepts job submissions. Submit validates and persists the job,
// hands it to the queue, and returns without waiting for any crawling.
type Service struct {
	registry crawler.Registry
	jobStore crawler.JobStore
	queue    crawler.Queue
	idGen    crawler.IDGenerator
	clock    crawler.Clock
	logger   *zap.Logger
}

// NewService constructs a Service.
func NewService(
	registry crawler.Registry,
	jobStore crawler.JobStore,
	queue crawler.Queue,
	idGen crawler.IDGenerator,
	clock crawler.Clock,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry: registry,
		jobStore: jobStore,
		queue:    queue,
		idGen:    idGen,
		clock:    clock,
		logger:   logger,
	}
}

// Submit validates the request, persists a pending job, and enqueues it.
// It returns the job ID as soon as the job is queued.
func (s *Service) Submit(ctx context.Context, req crawler.JobRequest) (string, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}
	if _, err := s.registry.Resolve(req.ConfigName); err != nil {
		return "", err
	}

	jobID, err := s.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	now := s.clock.Now().UTC()
	job := crawler.CrawlerJob{
		ID:         jobID,
		ConfigName: req.ConfigName,
		Query:      req.Query,
		URLs:       req.URLs,
		MaxPapers:  req.MaxPapers,
		Status:     crawler.JobStatusPending,
		CreatedIDs: []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.jobStore.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	queueCtx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	item := crawler.QueueItem{JobID: jobID, Submitted: now.Unix()}
	if err := s.queue.Enqueue(queueCtx, item); err != nil {
		// The job row exists but will never run; fail it so it cannot sit
		// pending forever.
		if updateErr := s.jobStore.UpdateJobStatus(
			ctx, jobID, crawler.JobStatusFailed, "enqueue failed: "+err.Error(), nil,
		); updateErr != nil {
			s.logger.Error("fail job after enqueue error",
				zap.String("job_id", jobID), zap.Error(updateErr))
		}
		return "", fmt.Errorf("enqueue job: %w", err)
	}

	s.logger.Info("job submitted",
		zap.String("job_id", jobID),
		zap.String("config", req.ConfigName),
		zap.Int("urls", len(req.URLs)),
		zap.Bool("has_query", req.Query != ""),
	)
	return jobID, nil
}

func validateRequest(req crawler.JobRequest) error {
	if req.ConfigName == "" {
		return fmt.Errorf("%w: config_name is required", crawler.ErrInvalidRequest)
	}
	if req.Query == "" && len(req.URLs) == 0 {
		return fmt.Errorf("%w: either query or urls must be provided", crawler.ErrInvalidRequest)
	}
	if req.MaxPapers < 0 {
		return fmt.Errorf("%w: max_papers must not be negative", crawler.ErrInvalidRequest)
	}
	for _, raw := range req.URLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: invalid url %q", crawler.ErrInvalidRequest, raw)
		}
	}
	return nil
}
