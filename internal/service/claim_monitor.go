package service

import (
	"context"
	"log"
	"time"
	"yard-pick/internal/metrics"
	"yard-pick/internal/models"
	"yard-pick/internal/repository"
)

// ClaimMonitor periodically reports claims held longer than a threshold.
// Claims have no lease, so it never releases anything; clearing an abandoned
// claim stays with the worker or an administrator.
type ClaimMonitor struct {
	repo    repository.JobRepository
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewClaimMonitor creates a new claim monitor
func NewClaimMonitor(repo repository.JobRepository, metrics *metrics.Metrics) *ClaimMonitor {
	return &ClaimMonitor{
		repo:    repo,
		metrics: metrics,
		now:     time.Now,
	}
}

// Run checks for stale claims every interval until ctx is cancelled
func (m *ClaimMonitor) Run(ctx context.Context, interval, staleAfter time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := m.Check(ctx, staleAfter); err != nil {
			log.Printf("error checking stale claims: %v", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Check runs a single pass and returns the jobs whose claim is older than staleAfter
func (m *ClaimMonitor) Check(ctx context.Context, staleAfter time.Duration) ([]*models.Job, error) {
	stale, err := m.repo.ListStaleClaims(ctx, m.now().Add(-staleAfter))
	if err != nil {
		return nil, err
	}

	m.metrics.SetStaleClaims(int64(len(stale)))
	for _, job := range stale {
		log.Printf("job_id=%s: claim by worker_id=%s held since %s, status=%s, code=%s",
			job.ID, job.ClaimedBy, job.ClaimedAt.Format(time.RFC3339), job.Status, job.Code)
	}
	return stale, nil
}
