package metrics

import (
	"sync"
)

// Metrics tracks yard activity counters
type Metrics struct {
	mu sync.RWMutex

	scheduledJobs  int64
	claimsGranted  int64
	claimConflicts int64
	releases       int64
	stagedJobs     int64
	loadedJobs     int64
	completedJobs  int64
	itemsToggled   int64
	staleClaims    int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncrementScheduledJobs increments the scheduled jobs counter
func (m *Metrics) IncrementScheduledJobs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduledJobs++
}

// IncrementClaimsGranted increments the granted claims counter
func (m *Metrics) IncrementClaimsGranted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claimsGranted++
}

// IncrementClaimConflicts counts claims rejected because another worker held the job
func (m *Metrics) IncrementClaimConflicts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claimConflicts++
}

// IncrementReleases increments the released claims counter
func (m *Metrics) IncrementReleases() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases++
}

// IncrementStagedJobs increments the staged jobs counter
func (m *Metrics) IncrementStagedJobs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stagedJobs++
}

// IncrementLoadedJobs increments the loaded jobs counter
func (m *Metrics) IncrementLoadedJobs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadedJobs++
}

// IncrementCompletedJobs increments the completed jobs counter
func (m *Metrics) IncrementCompletedJobs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completedJobs++
}

// IncrementItemsToggled increments the pick toggle counter
func (m *Metrics) IncrementItemsToggled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.itemsToggled++
}

// SetStaleClaims records how many claims the last monitor pass found over the threshold
func (m *Metrics) SetStaleClaims(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staleClaims = n
}

// GetSnapshot returns a snapshot of all metrics
func (m *Metrics) GetSnapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]int64{
		"scheduled_jobs":  m.scheduledJobs,
		"claims_granted":  m.claimsGranted,
		"claim_conflicts": m.claimConflicts,
		"releases":        m.releases,
		"staged_jobs":     m.stagedJobs,
		"loaded_jobs":     m.loadedJobs,
		"completed_jobs":  m.completedJobs,
		"items_toggled":   m.itemsToggled,
		"stale_claims":    m.staleClaims,
	}
}
