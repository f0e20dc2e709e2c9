package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"yard-pick/internal/metrics"
	"yard-pick/internal/models"
	"yard-pick/internal/repository"
)

var ErrInvalidRequest = errors.New("invalid request")

// ClaimService grants and releases exclusive ownership of jobs
type ClaimService struct {
	repo    repository.JobRepository
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewClaimService creates a new claim service
func NewClaimService(repo repository.JobRepository, metrics *metrics.Metrics) *ClaimService {
	return &ClaimService{
		repo:    repo,
		metrics: metrics,
		now:     time.Now,
	}
}

// Claim resolves a human-entered code and gives the job to workerID.
// Claiming a job the caller already holds succeeds without changing it.
func (s *ClaimService) Claim(ctx context.Context, code, workerID string) (*models.ClaimResult, error) {
	code = models.NormalizeCode(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidRequest)
	}
	if workerID == "" {
		return nil, fmt.Errorf("%w: worker_id is required", ErrInvalidRequest)
	}

	result, err := s.repo.ClaimJob(ctx, code, workerID, s.now())
	if err != nil {
		var claimErr *models.AlreadyClaimedError
		if errors.As(err, &claimErr) {
			s.metrics.IncrementClaimConflicts()
			log.Printf("code=%s: claim by worker_id=%s rejected, held by worker_id=%s", code, workerID, claimErr.WorkerID)
		}
		return nil, err
	}

	if result.Reentrant {
		log.Printf("job_id=%s: worker_id=%s already holds the claim", result.Job.ID, workerID)
		return result, nil
	}

	s.metrics.IncrementClaimsGranted()
	log.Printf("job_id=%s: claimed by worker_id=%s, code=%s", result.Job.ID, workerID, result.Job.Code)
	return result, nil
}

// Release gives up workerID's claim. Recorded pick progress is kept.
func (s *ClaimService) Release(ctx context.Context, jobID, workerID string) (*models.Job, error) {
	if workerID == "" {
		return nil, fmt.Errorf("%w: worker_id is required", ErrInvalidRequest)
	}

	job, err := s.repo.ReleaseJob(ctx, jobID, workerID, s.now())
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementReleases()
	log.Printf("job_id=%s: released by worker_id=%s, status=%s", job.ID, workerID, job.Status)
	return job, nil
}

// RegisterWorkers makes sure the configured workers exist with their current display names
func (s *ClaimService) RegisterWorkers(ctx context.Context, workers []models.Worker) error {
	for i := range workers {
		if err := s.repo.UpsertWorker(ctx, &workers[i]); err != nil {
			return err
		}
	}
	log.Printf("registered %d workers", len(workers))
	return nil
}
