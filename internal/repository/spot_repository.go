package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"yard-pick/internal/models"
)

// ProvisionSpots inserts spots that do not exist yet. Existing spots, and their occupancy, are left alone.
func (r *SQLRepository) ProvisionSpots(ctx context.Context, spots []models.YardSpot) error {
	query := r.dialect.insertIgnore + " INTO yard_spots (yard_id, id, label) VALUES (?, ?, ?)"
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, spot := range spots {
			label := spot.Label
			if label == "" {
				label = spot.ID
			}
			if _, err := tx.ExecContext(ctx, query, spot.YardID, spot.ID, label); err != nil {
				return fmt.Errorf("failed to provision spot %s/%s: %w", spot.YardID, spot.ID, err)
			}
		}
		return nil
	})
}

// ListAvailableSpots returns the unoccupied spots of a yard
func (r *SQLRepository) ListAvailableSpots(ctx context.Context, yardID string) ([]*models.YardSpot, error) {
	return r.querySpots(ctx, "SELECT yard_id, id, label, job_id FROM yard_spots WHERE yard_id = ? AND job_id IS NULL ORDER BY label ASC", yardID)
}

// ListSpots returns every spot of a yard
func (r *SQLRepository) ListSpots(ctx context.Context, yardID string) ([]*models.YardSpot, error) {
	return r.querySpots(ctx, "SELECT yard_id, id, label, job_id FROM yard_spots WHERE yard_id = ? ORDER BY label ASC", yardID)
}

func (r *SQLRepository) querySpots(ctx context.Context, query string, args ...any) ([]*models.YardSpot, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query spots: %w", err)
	}
	defer rows.Close()

	spots := make([]*models.YardSpot, 0)
	for rows.Next() {
		var spot models.YardSpot
		var jobID sql.NullString
		if err := rows.Scan(&spot.YardID, &spot.ID, &spot.Label, &jobID); err != nil {
			return nil, fmt.Errorf("failed to scan spot: %w", err)
		}
		spot.JobID = jobID.String
		spot.IsOccupied = jobID.Valid
		spots = append(spots, &spot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate spots: %w", err)
	}
	return spots, nil
}

// occupySpot marks a spot as held by jobID. It must run inside the stage transaction.
func (r *SQLRepository) occupySpot(ctx context.Context, tx *sql.Tx, yardID, spotID, jobID string) error {
	var holder sql.NullString
	err := tx.QueryRowContext(ctx,
		"SELECT job_id FROM yard_spots WHERE yard_id = ? AND id = ?"+r.dialect.lockClause,
		yardID, spotID,
	).Scan(&holder)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.NotFoundf("spot %s in yard %s", spotID, yardID)
		}
		return fmt.Errorf("failed to lock spot: %w", err)
	}
	if holder.Valid && holder.String != jobID {
		return fmt.Errorf("spot %s: %w", spotID, models.ErrSpotOccupied)
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE yard_spots SET job_id = ? WHERE yard_id = ? AND id = ? AND (job_id IS NULL OR job_id = ?)",
		jobID, yardID, spotID, jobID,
	)
	if err != nil {
		if r.dialect.isDuplicate(err) {
			return fmt.Errorf("job %s already holds a spot: %w", jobID, models.ErrSpotOccupied)
		}
		return fmt.Errorf("failed to occupy spot: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to occupy spot: %w", err)
	} else if n == 0 {
		return fmt.Errorf("spot %s: %w", spotID, models.ErrSpotOccupied)
	}
	return nil
}

// vacateSpot frees the spot held by jobID. It must run inside the load transaction.
func vacateSpot(ctx context.Context, tx *sql.Tx, yardID, spotID, jobID string) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE yard_spots SET job_id = NULL WHERE yard_id = ? AND id = ? AND job_id = ?",
		yardID, spotID, jobID,
	)
	if err != nil {
		return fmt.Errorf("failed to vacate spot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to vacate spot: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("spot %s is not held by job %s", spotID, jobID)
	}
	return nil
}
