package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"yard-pick/internal/models"
)

const pickColumns = `job_id, material_id, description, required_quantity, picked_quantity, is_complete, picked_by, picked_at`

func scanPickItem(row rowScanner) (*models.PickItem, error) {
	var item models.PickItem
	var pickedBy sql.NullString
	var pickedAt sql.NullInt64

	err := row.Scan(
		&item.JobID,
		&item.MaterialID,
		&item.Description,
		&item.RequiredQuantity,
		&item.PickedQuantity,
		&item.IsComplete,
		&pickedBy,
		&pickedAt,
	)
	if err != nil {
		return nil, err
	}

	item.PickedBy = pickedBy.String
	item.PickedAt = timeFromNull(pickedAt)
	return &item, nil
}

func insertPickItems(ctx context.Context, q querier, items []*models.PickItem) error {
	query := `
		INSERT INTO pick_items (job_id, material_id, description, required_quantity, picked_quantity, is_complete)
		VALUES (?, ?, ?, ?, 0, 0)
	`
	for _, item := range items {
		if _, err := q.ExecContext(ctx, query, item.JobID, item.MaterialID, item.Description, item.RequiredQuantity); err != nil {
			return fmt.Errorf("failed to create pick item %s: %w", item.MaterialID, err)
		}
	}
	return nil
}

func listPickItems(ctx context.Context, q querier, jobID string) ([]*models.PickItem, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+pickColumns+" FROM pick_items WHERE job_id = ? ORDER BY material_id ASC", jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pick items: %w", err)
	}
	defer rows.Close()

	items := make([]*models.PickItem, 0)
	for rows.Next() {
		item, err := scanPickItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pick item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pick items: %w", err)
	}
	return items, nil
}

func jobStatus(ctx context.Context, q querier, jobID string) (models.JobStatus, error) {
	var status models.JobStatus
	err := q.QueryRowContext(ctx, "SELECT status FROM jobs WHERE id = ?", jobID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", models.NotFoundf("job %s", jobID)
		}
		return "", fmt.Errorf("failed to get job status: %w", err)
	}
	return status, nil
}

// lockPickableJob share-locks the job row so the pick window cannot close under a toggle.
// Bundle members are rejected: their progress is tracked on the bundle's merged items.
func (r *SQLRepository) lockPickableJob(ctx context.Context, tx *sql.Tx, jobID string) (models.JobStatus, error) {
	var status models.JobStatus
	var code string
	var bundleID sql.NullString
	err := tx.QueryRowContext(ctx,
		"SELECT status, code, bundle_id FROM jobs WHERE id = ?"+r.dialect.shareClause,
		jobID,
	).Scan(&status, &code, &bundleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", models.NotFoundf("job %s", jobID)
		}
		return "", fmt.Errorf("failed to lock job: %w", err)
	}
	if bundleID.Valid {
		return "", fmt.Errorf("job %s follows bundle %s: %w", code, bundleID.String, models.ErrBundleMember)
	}
	return status, nil
}

// TogglePickItem flips one item of a job. The job row is only share-locked, so toggles
// on different materials do not wait on each other.
func (r *SQLRepository) TogglePickItem(ctx context.Context, jobID, materialID, workerID string, now time.Time) (*models.PickItem, error) {
	var item *models.PickItem
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		status, err := r.lockPickableJob(ctx, tx, jobID)
		if err != nil {
			return err
		}

		row := tx.QueryRowContext(ctx,
			"SELECT "+pickColumns+" FROM pick_items WHERE job_id = ? AND material_id = ?"+r.dialect.lockClause,
			jobID, materialID,
		)
		item, err = scanPickItem(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.NotFoundf("material %s on job %s", materialID, jobID)
			}
			return fmt.Errorf("failed to get pick item: %w", err)
		}

		if !status.Pickable() {
			return fmt.Errorf("job %s is %s: %w", jobID, status, models.ErrPickingClosed)
		}

		item.Toggle(workerID, time.Unix(now.Unix(), 0))
		_, err = tx.ExecContext(ctx, `
			UPDATE pick_items
			SET picked_quantity = ?, is_complete = ?, picked_by = ?, picked_at = ?
			WHERE job_id = ? AND material_id = ?
		`, item.PickedQuantity, item.IsComplete, nullString(item.PickedBy), nullTime(item.PickedAt), jobID, materialID)
		if err != nil {
			return fmt.Errorf("failed to update pick item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListPickItems returns a job's items ordered by material
func (r *SQLRepository) ListPickItems(ctx context.Context, jobID string) ([]*models.PickItem, error) {
	if _, err := jobStatus(ctx, r.db, jobID); err != nil {
		return nil, err
	}
	return listPickItems(ctx, r.db, jobID)
}

// ProgressSummary counts picked and total items of a job
func (r *SQLRepository) ProgressSummary(ctx context.Context, jobID string) (models.ProgressSummary, error) {
	summary := models.ProgressSummary{JobID: jobID}
	if _, err := jobStatus(ctx, r.db, jobID); err != nil {
		return summary, err
	}

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_complete = 1 THEN 1 ELSE 0 END), 0) FROM pick_items WHERE job_id = ?",
		jobID,
	).Scan(&summary.TotalCount, &summary.PickedCount)
	if err != nil {
		return summary, fmt.Errorf("failed to summarize progress: %w", err)
	}
	return summary, nil
}
