package service

import (
	"context"
	"fmt"
	"log"
	"time"
	"yard-pick/internal/metrics"
	"yard-pick/internal/models"
	"yard-pick/internal/repository"

	"github.com/google/uuid"
)

// JobService schedules jobs and drives them through staging, loading and completion
type JobService struct {
	repo    repository.JobRepository
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewJobService creates a new job service
func NewJobService(repo repository.JobRepository, metrics *metrics.Metrics) *JobService {
	return &JobService{
		repo:    repo,
		metrics: metrics,
		now:     time.Now,
	}
}

// ScheduleJob creates a queued job with one pick item per material
func (s *JobService) ScheduleJob(ctx context.Context, req *models.ScheduleJobRequest) (*models.Job, error) {
	code := models.NormalizeCode(req.Code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidRequest)
	}
	if req.YardID == "" {
		return nil, fmt.Errorf("%w: yard_id is required", ErrInvalidRequest)
	}

	job := &models.Job{
		ID:     uuid.New().String(),
		Code:   code,
		YardID: req.YardID,
		Status: models.StatusQueued,
	}

	items := make([]*models.PickItem, 0, len(req.Materials))
	seen := make(map[string]bool, len(req.Materials))
	for _, m := range req.Materials {
		if m.MaterialID == "" {
			return nil, fmt.Errorf("%w: material_id is required", ErrInvalidRequest)
		}
		if seen[m.MaterialID] {
			return nil, fmt.Errorf("%w: material %s listed twice", ErrInvalidRequest, m.MaterialID)
		}
		if m.RequiredQuantity <= 0 {
			return nil, fmt.Errorf("%w: material %s needs a positive quantity", ErrInvalidRequest, m.MaterialID)
		}
		seen[m.MaterialID] = true
		items = append(items, &models.PickItem{
			JobID:            job.ID,
			MaterialID:       m.MaterialID,
			Description:      m.Description,
			RequiredQuantity: m.RequiredQuantity,
		})
	}

	if err := s.repo.CreateJob(ctx, job, items); err != nil {
		return nil, err
	}

	s.metrics.IncrementScheduledJobs()
	log.Printf("job_id=%s: job scheduled, code=%s, yard_id=%s, items=%d", job.ID, job.Code, job.YardID, len(items))
	return job, nil
}

// CreateBundle groups queued jobs of one yard into a single pick under a new code
func (s *JobService) CreateBundle(ctx context.Context, req *models.CreateBundleRequest) (*models.Job, error) {
	code := models.NormalizeCode(req.Code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidRequest)
	}
	if len(req.Constituents) < 2 {
		return nil, fmt.Errorf("%w: a bundle needs at least two jobs", ErrInvalidRequest)
	}

	codes := make([]string, 0, len(req.Constituents))
	seen := make(map[string]bool, len(req.Constituents))
	for _, c := range req.Constituents {
		c = models.NormalizeCode(c)
		if c == "" || seen[c] {
			return nil, fmt.Errorf("%w: constituent codes must be distinct and non-empty", ErrInvalidRequest)
		}
		seen[c] = true
		codes = append(codes, c)
	}

	bundle := &models.Job{
		ID:   uuid.New().String(),
		Code: code,
	}
	if err := s.repo.CreateBundle(ctx, bundle, codes); err != nil {
		return nil, err
	}

	s.metrics.IncrementScheduledJobs()
	log.Printf("job_id=%s: bundle scheduled, code=%s, constituents=%v", bundle.ID, bundle.Code, codes)
	return bundle, nil
}

// GetJob retrieves a job by ID
func (s *JobService) GetJob(ctx context.Context, id string) (*models.Job, error) {
	return s.repo.GetJobByID(ctx, id)
}

// LookupJob finds a job by a code typed in by a worker
func (s *JobService) LookupJob(ctx context.Context, code string) (*models.Job, error) {
	code = models.NormalizeCode(code)
	if code == "" {
		return nil, models.NotFoundf("empty job code")
	}
	return s.repo.GetJobByCode(ctx, code)
}

// ListJobsByStatus retrieves jobs by status
func (s *JobService) ListJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, status)
	}
	jobs, err := s.repo.ListJobsByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// Stage places the caller's picked job on a yard spot
func (s *JobService) Stage(ctx context.Context, req models.StageRequest) (*models.Job, error) {
	if req.SpotID == "" {
		return nil, fmt.Errorf("%w: spot_id is required", ErrInvalidRequest)
	}
	if req.WorkerID == "" {
		return nil, fmt.Errorf("%w: worker_id is required", ErrInvalidRequest)
	}

	job, err := s.repo.StageJob(ctx, req, s.now())
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementStagedJobs()
	if summary, err := s.repo.ProgressSummary(ctx, job.ID); err == nil && !summary.Complete() {
		log.Printf("job_id=%s: staged as partial pickup, picked=%d/%d", job.ID, summary.PickedCount, summary.TotalCount)
	}
	log.Printf("job_id=%s: staged at spot_id=%s by worker_id=%s, claim_released=%t", job.ID, req.SpotID, req.WorkerID, req.ReleaseClaim)
	return job, nil
}

// Load marks a staged job as loaded and frees its spot
func (s *JobService) Load(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := s.repo.LoadJob(ctx, jobID, s.now())
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementLoadedJobs()
	log.Printf("job_id=%s: loaded", job.ID)
	return job, nil
}

// Complete closes a loaded job with a signoff artifact reference
func (s *JobService) Complete(ctx context.Context, jobID, signoffProof string) (*models.Job, error) {
	job, err := s.repo.CompleteJob(ctx, jobID, signoffProof, s.now())
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementCompletedJobs()
	log.Printf("job_id=%s: completed", job.ID)
	return job, nil
}
