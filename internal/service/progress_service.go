package service

import (
	"context"
	"fmt"
	"log"
	"time"
	"yard-pick/internal/metrics"
	"yard-pick/internal/models"
	"yard-pick/internal/repository"
)

// ProgressService records per-material pick state. It never checks the claim,
// so a worker resuming a released job can keep ticking items.
type ProgressService struct {
	repo    repository.JobRepository
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewProgressService creates a new progress service
func NewProgressService(repo repository.JobRepository, metrics *metrics.Metrics) *ProgressService {
	return &ProgressService{
		repo:    repo,
		metrics: metrics,
		now:     time.Now,
	}
}

// TogglePicked flips the pick state of one material on a job
func (s *ProgressService) TogglePicked(ctx context.Context, jobID, materialID, workerID string) (*models.PickItem, error) {
	if workerID == "" {
		return nil, fmt.Errorf("%w: worker_id is required", ErrInvalidRequest)
	}

	item, err := s.repo.TogglePickItem(ctx, jobID, materialID, workerID, s.now())
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementItemsToggled()
	log.Printf("job_id=%s: material_id=%s is_complete=%t by worker_id=%s", jobID, materialID, item.IsComplete, workerID)
	return item, nil
}

// Summary returns the picked/total counts of a job
func (s *ProgressService) Summary(ctx context.Context, jobID string) (models.ProgressSummary, error) {
	return s.repo.ProgressSummary(ctx, jobID)
}

// ListItems returns every pick item of a job
func (s *ProgressService) ListItems(ctx context.Context, jobID string) ([]*models.PickItem, error) {
	return s.repo.ListPickItems(ctx, jobID)
}
