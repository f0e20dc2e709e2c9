package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"yard-pick/internal/models"
)

func (r *SQLRepository) lockJob(ctx context.Context, tx *sql.Tx, id string) (*models.Job, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?"+r.dialect.lockClause, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NotFoundf("job %s", id)
		}
		return nil, fmt.Errorf("failed to lock job: %w", err)
	}
	return job, nil
}

func (r *SQLRepository) lockJobByCode(ctx context.Context, tx *sql.Tx, code string) (*models.Job, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE code = ?"+r.dialect.lockClause, code)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NotFoundf("job code %s", code)
		}
		return nil, fmt.Errorf("failed to lock job: %w", err)
	}
	return job, nil
}

// lockDrivableJob locks a job that lifecycle transitions may target directly
func (r *SQLRepository) lockDrivableJob(ctx context.Context, tx *sql.Tx, id string) (*models.Job, error) {
	job, err := r.lockJob(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if job.IsBundleMember() {
		return nil, fmt.Errorf("job %s follows bundle %s: %w", job.Code, job.BundleID, models.ErrBundleMember)
	}
	return job, nil
}

// syncBundle copies a bundle's status onto its constituents. Only the status is copied:
// the spot, claim and timestamps live on the bundle, so a staged constituent has no
// assigned_spot of its own.
func syncBundle(ctx context.Context, tx *sql.Tx, job *models.Job) error {
	if !job.IsBundle {
		return nil
	}
	_, err := tx.ExecContext(ctx, "UPDATE jobs SET status = ?, updated_at = ? WHERE bundle_id = ?",
		job.Status, job.UpdatedAt.Unix(), job.ID)
	if err != nil {
		return fmt.Errorf("failed to update bundle constituents: %w", err)
	}
	return nil
}

func claimantError(ctx context.Context, tx *sql.Tx, workerID string) error {
	claimErr := &models.AlreadyClaimedError{WorkerID: workerID, WorkerName: workerID}
	holder, err := getWorker(ctx, tx, workerID)
	if err == nil {
		claimErr.WorkerName = holder.DisplayName
	} else if !errors.Is(err, models.ErrNotFound) {
		return err
	}
	return claimErr
}

// ClaimJob grants workerID exclusive ownership of the job with the given code.
// The check and the conditional update run in the same write transaction.
func (r *SQLRepository) ClaimJob(ctx context.Context, code, workerID string, now time.Time) (*models.ClaimResult, error) {
	var result *models.ClaimResult
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getWorker(ctx, tx, workerID); err != nil {
			return err
		}

		job, err := r.lockJobByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if job.Status == models.StatusCompleted {
			return models.NotFoundf("job code %s is not active", code)
		}
		if job.IsBundleMember() {
			return fmt.Errorf("job %s follows bundle %s: %w", job.Code, job.BundleID, models.ErrBundleMember)
		}

		if job.IsClaimed() {
			if job.ClaimedBy == workerID {
				result = &models.ClaimResult{Job: job, Reentrant: true}
				return nil
			}
			return claimantError(ctx, tx, job.ClaimedBy)
		}

		if err := models.CheckTransition(job.Status, models.StatusPicking); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE jobs
			SET claimed_by = ?, claimed_at = ?, status = ?, updated_at = ?
			WHERE id = ? AND claimed_by IS NULL AND status = ?
		`, workerID, now.Unix(), models.StatusPicking, now.Unix(), job.ID, models.StatusQueued)
		if err != nil {
			return fmt.Errorf("failed to claim job: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to claim job: %w", err)
		} else if n == 0 {
			current, err := r.lockJob(ctx, tx, job.ID)
			if err != nil {
				return err
			}
			return claimantError(ctx, tx, current.ClaimedBy)
		}

		claimedAt := time.Unix(now.Unix(), 0)
		job.ClaimedBy = workerID
		job.ClaimedAt = &claimedAt
		job.Status = models.StatusPicking
		job.UpdatedAt = claimedAt
		if err := syncBundle(ctx, tx, job); err != nil {
			return err
		}

		result = &models.ClaimResult{Job: job}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, r.loadConstituents(ctx, r.db, result.Job)
}

// ReleaseJob clears workerID's claim. A job still in picking goes back to queued;
// later states are kept as they are.
func (r *SQLRepository) ReleaseJob(ctx context.Context, jobID, workerID string, now time.Time) (*models.Job, error) {
	var job *models.Job
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		job, err = r.lockJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if workerID == "" || job.ClaimedBy != workerID {
			return models.ErrNotOwner
		}

		status := job.Status
		if status == models.StatusPicking {
			if err := models.CheckTransition(status, models.StatusQueued); err != nil {
				return err
			}
			status = models.StatusQueued
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE jobs
			SET claimed_by = NULL, claimed_at = NULL, status = ?, updated_at = ?
			WHERE id = ? AND claimed_by = ?
		`, status, now.Unix(), job.ID, workerID)
		if err != nil {
			return fmt.Errorf("failed to release job: %w", err)
		}

		job.ClaimedBy = ""
		job.ClaimedAt = nil
		job.Status = status
		job.UpdatedAt = time.Unix(now.Unix(), 0)
		return syncBundle(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}
	return job, r.loadConstituents(ctx, r.db, job)
}

// StageJob places a picked job on a yard spot. The spot occupancy and the job status
// change commit together or not at all.
func (r *SQLRepository) StageJob(ctx context.Context, req models.StageRequest, now time.Time) (*models.Job, error) {
	var job *models.Job
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		job, err = r.lockDrivableJob(ctx, tx, req.JobID)
		if err != nil {
			return err
		}
		if err := models.CheckTransition(job.Status, models.StatusStaged); err != nil {
			return err
		}
		if req.WorkerID == "" || job.ClaimedBy != req.WorkerID {
			return models.ErrNotOwner
		}

		if err := r.occupySpot(ctx, tx, job.YardID, req.SpotID, job.ID); err != nil {
			return err
		}

		stagedAt := time.Unix(now.Unix(), 0)
		job.Status = models.StatusStaged
		job.AssignedSpot = req.SpotID
		job.StagedAt = &stagedAt
		job.UpdatedAt = stagedAt
		if req.ReleaseClaim {
			job.ClaimedBy = ""
			job.ClaimedAt = nil
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = ?, assigned_spot = ?, staged_at = ?, claimed_by = ?, claimed_at = ?, updated_at = ?
			WHERE id = ?
		`, job.Status, job.AssignedSpot, stagedAt.Unix(), nullString(job.ClaimedBy), nullTime(job.ClaimedAt), stagedAt.Unix(), job.ID)
		if err != nil {
			return fmt.Errorf("failed to stage job: %w", err)
		}
		return syncBundle(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}
	return job, r.loadConstituents(ctx, r.db, job)
}

// LoadJob moves a staged job onto the truck and frees its spot
func (r *SQLRepository) LoadJob(ctx context.Context, jobID string, now time.Time) (*models.Job, error) {
	var job *models.Job
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		job, err = r.lockDrivableJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if err := models.CheckTransition(job.Status, models.StatusLoaded); err != nil {
			return err
		}

		if err := vacateSpot(ctx, tx, job.YardID, job.AssignedSpot, job.ID); err != nil {
			return err
		}

		loadedAt := time.Unix(now.Unix(), 0)
		job.Status = models.StatusLoaded
		job.AssignedSpot = ""
		job.LoadedAt = &loadedAt
		job.UpdatedAt = loadedAt

		_, err = tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = ?, assigned_spot = NULL, loaded_at = ?, updated_at = ?
			WHERE id = ?
		`, job.Status, loadedAt.Unix(), loadedAt.Unix(), job.ID)
		if err != nil {
			return fmt.Errorf("failed to load job: %w", err)
		}
		return syncBundle(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}
	return job, r.loadConstituents(ctx, r.db, job)
}

// CompleteJob closes a loaded job once a signoff artifact is supplied
func (r *SQLRepository) CompleteJob(ctx context.Context, jobID, signoffProof string, now time.Time) (*models.Job, error) {
	var job *models.Job
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		job, err = r.lockDrivableJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if err := models.CheckTransition(job.Status, models.StatusCompleted); err != nil {
			return err
		}
		if signoffProof == "" {
			return models.ErrSignoffRequired
		}

		completedAt := time.Unix(now.Unix(), 0)
		job.Status = models.StatusCompleted
		job.SignoffProof = signoffProof
		job.CompletedAt = &completedAt
		job.UpdatedAt = completedAt

		_, err = tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = ?, signoff_proof = ?, completed_at = ?, updated_at = ?
			WHERE id = ?
		`, job.Status, signoffProof, completedAt.Unix(), completedAt.Unix(), job.ID)
		if err != nil {
			return fmt.Errorf("failed to complete job: %w", err)
		}
		return syncBundle(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}
	return job, r.loadConstituents(ctx, r.db, job)
}
