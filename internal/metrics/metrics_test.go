package metrics

import (
	"sync"
	"testing"
)

func TestMetrics_IncrementClaimsGranted(t *testing.T) {
	m := NewMetrics()
	m.IncrementClaimsGranted()

	snapshot := m.GetSnapshot()
	if snapshot["claims_granted"] != 1 {
		t.Errorf("expected claims_granted 1, got %d", snapshot["claims_granted"])
	}
}

func TestMetrics_IncrementClaimConflicts(t *testing.T) {
	m := NewMetrics()
	m.IncrementClaimConflicts()

	snapshot := m.GetSnapshot()
	if snapshot["claim_conflicts"] != 1 {
		t.Errorf("expected claim_conflicts 1, got %d", snapshot["claim_conflicts"])
	}
}

func TestMetrics_SetStaleClaims(t *testing.T) {
	m := NewMetrics()
	m.SetStaleClaims(4)
	m.SetStaleClaims(2)

	snapshot := m.GetSnapshot()
	if snapshot["stale_claims"] != 2 {
		t.Errorf("expected stale_claims 2, got %d", snapshot["stale_claims"])
	}
}

func TestMetrics_ConcurrentAccess(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementClaimsGranted()
			m.IncrementItemsToggled()
			m.IncrementStagedJobs()
		}()
	}

	wg.Wait()

	snapshot := m.GetSnapshot()
	if snapshot["claims_granted"] != 100 {
		t.Errorf("expected claims_granted 100, got %d", snapshot["claims_granted"])
	}
	if snapshot["items_toggled"] != 100 {
		t.Errorf("expected items_toggled 100, got %d", snapshot["items_toggled"])
	}
}

func TestMetrics_GetSnapshot(t *testing.T) {
	m := NewMetrics()
	m.IncrementScheduledJobs()
	m.IncrementScheduledJobs()
	m.IncrementReleases()
	m.IncrementLoadedJobs()
	m.IncrementCompletedJobs()

	snapshot := m.GetSnapshot()

	expected := map[string]int64{
		"scheduled_jobs": 2,
		"releases":       1,
		"loaded_jobs":    1,
		"completed_jobs": 1,
		"staged_jobs":    0,
	}

	for key, expectedValue := range expected {
		if snapshot[key] != expectedValue {
			t.Errorf("expected %s %d, got %d", key, expectedValue, snapshot[key])
		}
	}
}
