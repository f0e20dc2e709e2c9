package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"yard-pick/internal/models"
)

// SQLRepository implements JobRepository on top of database/sql
type SQLRepository struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLiteRepository opens (or creates) a SQLite database at dbPath.
// Write transactions take the database lock at BEGIN so check-and-set runs serialized.
func NewSQLiteRepository(dbPath string) (*SQLRepository, error) {
	dsn := dbPath + "?_journal_mode=WAL&_timeout=5000&_txlock=immediate"
	return open(sqliteDialect, dsn)
}

// NewMySQLRepository connects to MySQL using a go-sql-driver DSN
func NewMySQLRepository(dsn string) (*SQLRepository, error) {
	return open(mysqlDialect, dsn)
}

// Open picks the constructor matching driver ("sqlite3" or "mysql")
func Open(driver, dsn string) (*SQLRepository, error) {
	switch driver {
	case "", sqliteDialect.driver:
		return NewSQLiteRepository(dsn)
	case mysqlDialect.driver:
		return NewMySQLRepository(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func open(d dialect, dsn string) (*SQLRepository, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &SQLRepository{db: db, dialect: d}
	if err := repo.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// initSchema runs each DDL statement separately; MySQL rejects multi-statement Exec by default
func (r *SQLRepository) initSchema() error {
	for _, stmt := range r.dialect.schema {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn in a transaction and commits only if fn succeeds
func (r *SQLRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const jobColumns = `id, code, yard_id, status, claimed_by, claimed_at, assigned_spot,
	staged_at, loaded_at, completed_at, signoff_proof, is_bundle, bundle_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	var claimedBy, assignedSpot, signoffProof, bundleID sql.NullString
	var claimedAt, stagedAt, loadedAt, completedAt sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&job.ID,
		&job.Code,
		&job.YardID,
		&job.Status,
		&claimedBy,
		&claimedAt,
		&assignedSpot,
		&stagedAt,
		&loadedAt,
		&completedAt,
		&signoffProof,
		&job.IsBundle,
		&bundleID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.ClaimedBy = claimedBy.String
	job.AssignedSpot = assignedSpot.String
	job.SignoffProof = signoffProof.String
	job.BundleID = bundleID.String
	job.ClaimedAt = timeFromNull(claimedAt)
	job.StagedAt = timeFromNull(stagedAt)
	job.LoadedAt = timeFromNull(loadedAt)
	job.CompletedAt = timeFromNull(completedAt)
	job.CreatedAt = time.Unix(createdAt, 0)
	job.UpdatedAt = time.Unix(updatedAt, 0)

	return &job, nil
}

func timeFromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}

// nullString stores empty strings as NULL so IS NULL checks stay meaningful
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

// CreateJob inserts a job and its pick items in one transaction
func (r *SQLRepository) CreateJob(ctx context.Context, job *models.Job, items []*models.PickItem) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := r.insertJob(ctx, tx, job); err != nil {
			return err
		}
		return insertPickItems(ctx, tx, items)
	})
}

func (r *SQLRepository) insertJob(ctx context.Context, q querier, job *models.Job) error {
	query := `
		INSERT INTO jobs (id, code, yard_id, status, is_bundle, bundle_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now

	_, err := q.ExecContext(ctx, query,
		job.ID,
		job.Code,
		job.YardID,
		job.Status,
		job.IsBundle,
		nullString(job.BundleID),
		job.CreatedAt.Unix(),
		job.UpdatedAt.Unix(),
	)
	if err != nil {
		if r.dialect.isDuplicate(err) {
			return &models.DuplicateCodeError{Code: job.Code}
		}
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// CreateBundle locks every constituent, checks it can be bundled, inserts the parent with
// the aggregated material list and points the constituents at it
func (r *SQLRepository) CreateBundle(ctx context.Context, bundle *models.Job, constituentCodes []string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var constituents []*models.Job
		for _, code := range constituentCodes {
			job, err := r.lockJobByCode(ctx, tx, code)
			if err != nil {
				return err
			}
			switch {
			case job.IsBundle || job.IsBundleMember():
				return fmt.Errorf("job %s: %w", job.Code, models.ErrBundleMember)
			case job.Status != models.StatusQueued || job.IsClaimed():
				return fmt.Errorf("job %s is %s: %w", job.Code, job.Status, models.ErrNotBundleable)
			case bundle.YardID == "":
				bundle.YardID = job.YardID
			case bundle.YardID != job.YardID:
				return fmt.Errorf("job %s belongs to yard %s, not %s: %w", job.Code, job.YardID, bundle.YardID, models.ErrNotBundleable)
			}
			constituents = append(constituents, job)
		}

		var merged []*models.PickItem
		byMaterial := make(map[string]*models.PickItem)
		for _, job := range constituents {
			items, err := listPickItems(ctx, tx, job.ID)
			if err != nil {
				return err
			}
			for _, item := range items {
				if existing, ok := byMaterial[item.MaterialID]; ok {
					existing.RequiredQuantity += item.RequiredQuantity
					continue
				}
				m := &models.PickItem{
					JobID:            bundle.ID,
					MaterialID:       item.MaterialID,
					Description:      item.Description,
					RequiredQuantity: item.RequiredQuantity,
				}
				byMaterial[item.MaterialID] = m
				merged = append(merged, m)
			}
		}

		bundle.IsBundle = true
		bundle.Status = models.StatusQueued
		if err := r.insertJob(ctx, tx, bundle); err != nil {
			return err
		}
		if err := insertPickItems(ctx, tx, merged); err != nil {
			return err
		}

		bundle.Constituents = bundle.Constituents[:0]
		for _, job := range constituents {
			_, err := tx.ExecContext(ctx, "UPDATE jobs SET bundle_id = ?, updated_at = ? WHERE id = ?",
				bundle.ID, bundle.UpdatedAt.Unix(), job.ID)
			if err != nil {
				return fmt.Errorf("failed to attach job %s to bundle: %w", job.Code, err)
			}
			bundle.Constituents = append(bundle.Constituents, job.ID)
		}
		return nil
	})
}

// GetJobByID retrieves a job by ID
func (r *SQLRepository) GetJobByID(ctx context.Context, id string) (*models.Job, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NotFoundf("job %s", id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, r.loadConstituents(ctx, r.db, job)
}

// GetJobByCode retrieves a job by its exact, already-normalized code
func (r *SQLRepository) GetJobByCode(ctx context.Context, code string) (*models.Job, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE code = ?", code)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NotFoundf("job code %s", code)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, r.loadConstituents(ctx, r.db, job)
}

func (r *SQLRepository) loadConstituents(ctx context.Context, q querier, job *models.Job) error {
	if !job.IsBundle {
		return nil
	}
	rows, err := q.QueryContext(ctx, "SELECT id FROM jobs WHERE bundle_id = ? ORDER BY code ASC", job.ID)
	if err != nil {
		return fmt.Errorf("failed to query bundle constituents: %w", err)
	}
	defer rows.Close()

	job.Constituents = nil
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan bundle constituent: %w", err)
		}
		job.Constituents = append(job.Constituents, id)
	}
	return rows.Err()
}

// ListJobsByStatus retrieves all jobs with a specific status
func (r *SQLRepository) ListJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs WHERE status = ? ORDER BY created_at ASC, code ASC"
	return r.queryJobs(ctx, query, status)
}

// ListStaleClaims returns claimed jobs whose claim is older than claimedBefore
func (r *SQLRepository) ListStaleClaims(ctx context.Context, claimedBefore time.Time) ([]*models.Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs WHERE claimed_by IS NOT NULL AND claimed_at < ? ORDER BY claimed_at ASC"
	return r.queryJobs(ctx, query, claimedBefore.Unix())
}

func (r *SQLRepository) queryJobs(ctx context.Context, query string, args ...any) ([]*models.Job, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}

	for _, job := range jobs {
		if err := r.loadConstituents(ctx, r.db, job); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

// UpsertWorker registers a worker or refreshes their display name
func (r *SQLRepository) UpsertWorker(ctx context.Context, worker *models.Worker) error {
	if _, err := r.db.ExecContext(ctx, r.dialect.upsertWorker, worker.ID, worker.DisplayName); err != nil {
		return fmt.Errorf("failed to upsert worker: %w", err)
	}
	return nil
}

// GetWorker retrieves a worker by ID
func (r *SQLRepository) GetWorker(ctx context.Context, id string) (*models.Worker, error) {
	return getWorker(ctx, r.db, id)
}

func getWorker(ctx context.Context, q querier, id string) (*models.Worker, error) {
	var w models.Worker
	err := q.QueryRowContext(ctx, "SELECT id, display_name FROM workers WHERE id = ?", id).Scan(&w.ID, &w.DisplayName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NotFoundf("worker %s", id)
		}
		return nil, fmt.Errorf("failed to get worker: %w", err)
	}
	return &w, nil
}
