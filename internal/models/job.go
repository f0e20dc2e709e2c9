package models

import (
	"strings"
	"time"
)

// JobStatus represents the lifecycle state of a pick job
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusPicking   JobStatus = "picking"
	StatusStaged    JobStatus = "staged"
	StatusLoaded    JobStatus = "loaded"
	StatusCompleted JobStatus = "completed"
)

// Valid reports whether s is one of the known statuses
func (s JobStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusPicking, StatusStaged, StatusLoaded, StatusCompleted:
		return true
	}
	return false
}

// Job represents a schedulable material pickup
type Job struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	YardID       string     `json:"yard_id"`
	Status       JobStatus  `json:"status"`
	ClaimedBy    string     `json:"claimed_by,omitempty"`
	ClaimedAt    *time.Time `json:"claimed_at,omitempty"`
	AssignedSpot string     `json:"assigned_spot,omitempty"`
	StagedAt     *time.Time `json:"staged_at,omitempty"`
	LoadedAt     *time.Time `json:"loaded_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	SignoffProof string     `json:"signoff_proof,omitempty"`
	IsBundle     bool       `json:"is_bundle"`
	BundleID     string     `json:"bundle_id,omitempty"`
	Constituents []string   `json:"constituents,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsClaimed reports whether any worker currently holds the job
func (j *Job) IsClaimed() bool {
	return j.ClaimedBy != ""
}

// IsBundleMember reports whether the job is a constituent of a bundle.
// Bundle members follow their parent and cannot be driven directly.
func (j *Job) IsBundleMember() bool {
	return j.BundleID != ""
}

// NormalizeCode turns a human-entered job code into its stored form
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Material is one line of a job's material list
type Material struct {
	MaterialID       string `json:"material_id"`
	Description      string `json:"description,omitempty"`
	RequiredQuantity int    `json:"required_quantity"`
}

// ScheduleJobRequest represents a request to schedule a job
type ScheduleJobRequest struct {
	Code      string     `json:"code"`
	YardID    string     `json:"yard_id"`
	Materials []Material `json:"materials"`
}

// CreateBundleRequest represents a request to bundle several queued jobs into one pick
type CreateBundleRequest struct {
	Code         string   `json:"code"`
	Constituents []string `json:"constituents"`
}

// ClaimResult is returned by a successful claim
type ClaimResult struct {
	Job *Job `json:"job"`
	// Reentrant is true when the caller already held the claim and nothing changed.
	Reentrant bool `json:"reentrant"`
}

// StageRequest carries the inputs of a stage transition
type StageRequest struct {
	JobID        string
	SpotID       string
	WorkerID     string
	ReleaseClaim bool
}
