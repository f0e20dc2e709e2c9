package models

import "time"

// PickItem is one material line of a job and its pick state
type PickItem struct {
	JobID            string     `json:"job_id"`
	MaterialID       string     `json:"material_id"`
	Description      string     `json:"description,omitempty"`
	RequiredQuantity int        `json:"required_quantity"`
	PickedQuantity   int        `json:"picked_quantity"`
	IsComplete       bool       `json:"is_complete"`
	PickedBy         string     `json:"picked_by,omitempty"`
	PickedAt         *time.Time `json:"picked_at,omitempty"`
}

// Toggle flips the item in place. Turning it on stamps the worker and time.
func (p *PickItem) Toggle(workerID string, now time.Time) {
	if p.IsComplete {
		p.IsComplete = false
		p.PickedQuantity = 0
		p.PickedBy = ""
		p.PickedAt = nil
		return
	}
	p.IsComplete = true
	p.PickedQuantity = p.RequiredQuantity
	p.PickedBy = workerID
	p.PickedAt = &now
}

// ProgressSummary is the aggregate pick state of a job
type ProgressSummary struct {
	JobID       string `json:"job_id"`
	PickedCount int    `json:"picked_count"`
	TotalCount  int    `json:"total_count"`
}

// Complete reports whether every item has been picked
func (p ProgressSummary) Complete() bool {
	return p.PickedCount == p.TotalCount
}

// YardSpot is a physical staging location
type YardSpot struct {
	ID         string `json:"id"`
	YardID     string `json:"yard_id"`
	Label      string `json:"label"`
	IsOccupied bool   `json:"is_occupied"`
	JobID      string `json:"job_id,omitempty"`
}

// Worker is a yard worker who can claim jobs
type Worker struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}
