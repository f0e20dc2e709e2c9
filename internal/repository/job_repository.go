package repository

import (
	"context"
	"time"
	"yard-pick/internal/models"
)

// JobRepository defines persistence for jobs, their pick items, yard spots and workers.
// Every mutating method re-validates state inside a single transaction.
type JobRepository interface {
	CreateJob(ctx context.Context, job *models.Job, items []*models.PickItem) error
	CreateBundle(ctx context.Context, bundle *models.Job, constituentCodes []string) error
	GetJobByID(ctx context.Context, id string) (*models.Job, error)
	GetJobByCode(ctx context.Context, code string) (*models.Job, error)
	ListJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error)
	ListStaleClaims(ctx context.Context, claimedBefore time.Time) ([]*models.Job, error)

	ClaimJob(ctx context.Context, code, workerID string, now time.Time) (*models.ClaimResult, error)
	ReleaseJob(ctx context.Context, jobID, workerID string, now time.Time) (*models.Job, error)
	StageJob(ctx context.Context, req models.StageRequest, now time.Time) (*models.Job, error)
	LoadJob(ctx context.Context, jobID string, now time.Time) (*models.Job, error)
	CompleteJob(ctx context.Context, jobID, signoffProof string, now time.Time) (*models.Job, error)

	TogglePickItem(ctx context.Context, jobID, materialID, workerID string, now time.Time) (*models.PickItem, error)
	ListPickItems(ctx context.Context, jobID string) ([]*models.PickItem, error)
	ProgressSummary(ctx context.Context, jobID string) (models.ProgressSummary, error)

	ProvisionSpots(ctx context.Context, spots []models.YardSpot) error
	ListAvailableSpots(ctx context.Context, yardID string) ([]*models.YardSpot, error)
	ListSpots(ctx context.Context, yardID string) ([]*models.YardSpot, error)

	UpsertWorker(ctx context.Context, worker *models.Worker) error
	GetWorker(ctx context.Context, id string) (*models.Worker, error)
}
