package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
)

// dialect captures the handful of SQL differences between the supported drivers
type dialect struct {
	driver string
	schema []string
	// lockClause is appended to SELECTs whose rows must stay locked until commit.
	// SQLite needs none because write transactions are opened with _txlock=immediate.
	lockClause string
	// shareClause locks rows against writers while letting other readers through.
	shareClause  string
	insertIgnore string
	upsertWorker string
	isDuplicate  func(err error) bool
}

var sqliteDialect = dialect{
	driver: "sqlite3",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			yard_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'queued',
			claimed_by TEXT,
			claimed_at INTEGER,
			assigned_spot TEXT,
			staged_at INTEGER,
			loaded_at INTEGER,
			completed_at INTEGER,
			signoff_proof TEXT,
			is_bundle INTEGER NOT NULL DEFAULT 0,
			bundle_id TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_bundle_id ON jobs(bundle_id)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_claimed_at ON jobs(claimed_at)`,
		`CREATE TABLE IF NOT EXISTS pick_items (
			job_id TEXT NOT NULL,
			material_id TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			required_quantity INTEGER NOT NULL,
			picked_quantity INTEGER NOT NULL DEFAULT 0,
			is_complete INTEGER NOT NULL DEFAULT 0,
			picked_by TEXT,
			picked_at INTEGER,
			PRIMARY KEY (job_id, material_id)
		)`,
		`CREATE TABLE IF NOT EXISTS yard_spots (
			yard_id TEXT NOT NULL,
			id TEXT NOT NULL,
			label TEXT NOT NULL,
			job_id TEXT UNIQUE,
			PRIMARY KEY (yard_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS workers (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL
		)`,
	},
	insertIgnore: "INSERT OR IGNORE",
	upsertWorker: `INSERT INTO workers (id, display_name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name`,
	isDuplicate: func(err error) bool {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) {
			return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
		}
		return false
	},
}

var mysqlDialect = dialect{
	driver: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id VARCHAR(36) PRIMARY KEY,
			code VARCHAR(64) NOT NULL UNIQUE,
			yard_id VARCHAR(64) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'queued',
			claimed_by VARCHAR(64) NULL,
			claimed_at BIGINT NULL,
			assigned_spot VARCHAR(64) NULL,
			staged_at BIGINT NULL,
			loaded_at BIGINT NULL,
			completed_at BIGINT NULL,
			signoff_proof TEXT NULL,
			is_bundle TINYINT(1) NOT NULL DEFAULT 0,
			bundle_id VARCHAR(36) NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			INDEX idx_jobs_status (status),
			INDEX idx_jobs_bundle_id (bundle_id),
			INDEX idx_jobs_claimed_at (claimed_at)
		)`,
		`CREATE TABLE IF NOT EXISTS pick_items (
			job_id VARCHAR(36) NOT NULL,
			material_id VARCHAR(64) NOT NULL,
			description VARCHAR(255) NOT NULL DEFAULT '',
			required_quantity INT NOT NULL,
			picked_quantity INT NOT NULL DEFAULT 0,
			is_complete TINYINT(1) NOT NULL DEFAULT 0,
			picked_by VARCHAR(64) NULL,
			picked_at BIGINT NULL,
			PRIMARY KEY (job_id, material_id)
		)`,
		`CREATE TABLE IF NOT EXISTS yard_spots (
			yard_id VARCHAR(64) NOT NULL,
			id VARCHAR(64) NOT NULL,
			label VARCHAR(64) NOT NULL,
			job_id VARCHAR(36) NULL UNIQUE,
			PRIMARY KEY (yard_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS workers (
			id VARCHAR(64) PRIMARY KEY,
			display_name VARCHAR(255) NOT NULL
		)`,
	},
	lockClause:   " FOR UPDATE",
	shareClause:  " LOCK IN SHARE MODE",
	insertIgnore: "INSERT IGNORE",
	upsertWorker: `INSERT INTO workers (id, display_name) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE display_name = VALUES(display_name)`,
	isDuplicate: func(err error) bool {
		var mysqlErr *mysql.MySQLError
		return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
	},
}
