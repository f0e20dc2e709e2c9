package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
	"yard-pick/internal/models"
)

func newTestRepository(t *testing.T) *SQLRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "yard.db"))
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	for _, w := range []*models.Worker{
		{ID: "w-a", DisplayName: "Worker A"},
		{ID: "w-b", DisplayName: "Worker B"},
	} {
		if err := repo.UpsertWorker(ctx, w); err != nil {
			t.Fatalf("failed to upsert worker: %v", err)
		}
	}
	err = repo.ProvisionSpots(ctx, []models.YardSpot{
		{YardID: "main", ID: "S1"},
		{YardID: "main", ID: "S2"},
	})
	if err != nil {
		t.Fatalf("failed to provision spots: %v", err)
	}
	return repo
}

func createTestJob(t *testing.T, repo *SQLRepository, id, code string, materials ...string) *models.Job {
	t.Helper()
	job := &models.Job{ID: id, Code: code, YardID: "main", Status: models.StatusQueued}
	var items []*models.PickItem
	for _, m := range materials {
		items = append(items, &models.PickItem{JobID: id, MaterialID: m, RequiredQuantity: 2})
	}
	if err := repo.CreateJob(context.Background(), job, items); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	return job
}

func TestSQLRepository_CreateJob_DuplicateCode(t *testing.T) {
	repo := newTestRepository(t)
	createTestJob(t, repo, "job-1", "AAA-001")

	err := repo.CreateJob(context.Background(), &models.Job{ID: "job-2", Code: "AAA-001", YardID: "main", Status: models.StatusQueued}, nil)
	var dupErr *models.DuplicateCodeError
	if !errors.As(err, &dupErr) {
		t.Fatalf("expected DuplicateCodeError, got %v", err)
	}
}

func TestSQLRepository_GetJobByCode_NotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.GetJobByCode(context.Background(), "ZZZ-999")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLRepository_ClaimJob_Reentrant(t *testing.T) {
	repo := newTestRepository(t)
	createTestJob(t, repo, "job-1", "AAA-001", "m-1")
	ctx := context.Background()

	first, err := repo.ClaimJob(ctx, "AAA-001", "w-a", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if first.Reentrant || first.Job.Status != models.StatusPicking {
		t.Fatalf("expected fresh claim in picking, got %+v", first)
	}

	second, err := repo.ClaimJob(ctx, "AAA-001", "w-a", time.Now())
	if err != nil {
		t.Fatalf("expected no error on re-claim, got %v", err)
	}
	if !second.Reentrant {
		t.Error("expected re-claim to be reentrant")
	}
	if !second.Job.ClaimedAt.Equal(*first.Job.ClaimedAt) {
		t.Errorf("expected claimed_at %v to be unchanged, got %v", first.Job.ClaimedAt, second.Job.ClaimedAt)
	}
}

func TestSQLRepository_ClaimJob_MutualExclusion(t *testing.T) {
	repo := newTestRepository(t)
	createTestJob(t, repo, "job-1", "AAA-001", "m-1")
	ctx := context.Background()

	const workers = 12
	for i := 0; i < workers; i++ {
		w := &models.Worker{ID: fmt.Sprintf("w-%d", i), DisplayName: fmt.Sprintf("Worker %d", i)}
		if err := repo.UpsertWorker(ctx, w); err != nil {
			t.Fatalf("failed to upsert worker: %v", err)
		}
	}

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.ClaimJob(ctx, "AAA-001", fmt.Sprintf("w-%d", i), time.Now())
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	job, err := repo.GetJobByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	winner, err := repo.GetWorker(ctx, job.ClaimedBy)
	if err != nil {
		t.Fatalf("expected winner to resolve, got %v", err)
	}

	successes := 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		var claimErr *models.AlreadyClaimedError
		if !errors.As(err, &claimErr) {
			t.Fatalf("expected AlreadyClaimedError, got %v", err)
		}
		if claimErr.WorkerName != winner.DisplayName {
			t.Errorf("expected conflict to name %s, got %s", winner.DisplayName, claimErr.WorkerName)
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly 1 successful claim, got %d", successes)
	}
}

func TestSQLRepository_ReleaseJob(t *testing.T) {
	repo := newTestRepository(t)
	createTestJob(t, repo, "job-1", "AAA-001", "m-1")
	ctx := context.Background()

	if _, err := repo.ClaimJob(ctx, "AAA-001", "w-a", time.Now()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, err := repo.ReleaseJob(ctx, "job-1", "w-b", time.Now()); !errors.Is(err, models.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	job, err := repo.ReleaseJob(ctx, "job-1", "w-a", time.Now())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if job.Status != models.StatusQueued || job.IsClaimed() {
		t.Errorf("expected unclaimed queued job, got status=%s claimed_by=%q", job.Status, job.ClaimedBy)
	}

	if _, err := repo.ClaimJob(ctx, "AAA-001", "w-b", time.Now()); err != nil {
		t.Errorf("expected job to be claimable again, got %v", err)
	}
}

func TestSQLRepository_StageAndLoad(t *testing.T) {
	repo := newTestRepository(t)
	createTestJob(t, repo, "job-1", "AAA-001", "m-1")
	ctx := context.Background()

	if _, err := repo.ClaimJob(ctx, "AAA-001", "w-a", time.Now()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	job, err := repo.StageJob(ctx, models.StageRequest{JobID: "job-1", SpotID: "S1", WorkerID: "w-a"}, time.Now())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if job.Status != models.StatusStaged || job.AssignedSpot != "S1" || job.StagedAt == nil {
		t.Fatalf("expected staged at S1, got %+v", job)
	}

	spots, err := repo.ListSpots(ctx, "main")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !spots[0].IsOccupied || spots[0].JobID != "job-1" {
		t.Errorf("expected S1 occupied by job-1, got %+v", spots[0])
	}

	job, err = repo.LoadJob(ctx, "job-1", time.Now())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if job.Status != models.StatusLoaded || job.AssignedSpot != "" {
		t.Errorf("expected loaded job without spot, got %+v", job)
	}

	available, err := repo.ListAvailableSpots(ctx, "main")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(available) != 2 {
		t.Errorf("expected 2 available spots after load, got %d", len(available))
	}
}

func TestSQLRepository_StageJob_UnknownSpot(t *testing.T) {
	repo := newTestRepository(t)
	createTestJob(t, repo, "job-1", "AAA-001")
	ctx := context.Background()

	if _, err := repo.ClaimJob(ctx, "AAA-001", "w-a", time.Now()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	_, err := repo.StageJob(ctx, models.StageRequest{JobID: "job-1", SpotID: "S9", WorkerID: "w-a"}, time.Now())
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	job, err := repo.GetJobByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if job.Status != models.StatusPicking {
		t.Errorf("expected failed stage to leave job picking, got %s", job.Status)
	}
}

func TestSQLRepository_StageJob_SpotExclusivity(t *testing.T) {
	repo := newTestRepository(t)
	createTestJob(t, repo, "job-1", "AAA-001")
	createTestJob(t, repo, "job-2", "AAA-002")
	ctx := context.Background()

	if _, err := repo.ClaimJob(ctx, "AAA-001", "w-a", time.Now()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := repo.ClaimJob(ctx, "AAA-002", "w-b", time.Now()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	reqs := []models.StageRequest{
		{JobID: "job-1", SpotID: "S1", WorkerID: "w-a"},
		{JobID: "job-2", SpotID: "S1", WorkerID: "w-b"},
	}
	errs := make([]error, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req models.StageRequest) {
			defer wg.Done()
			_, errs[i] = repo.StageJob(ctx, req, time.Now())
		}(i, req)
	}
	wg.Wait()

	successes, occupied := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, models.ErrSpotOccupied):
			occupied++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || occupied != 1 {
		t.Errorf("expected 1 success and 1 SpotOccupied, got %d and %d", successes, occupied)
	}
}

func TestSQLRepository_TogglePickItem(t *testing.T) {
	repo := newTestRepository(t)
	createTestJob(t, repo, "job-1", "AAA-001", "m-1", "m-2", "m-3")
	ctx := context.Background()

	if _, err := repo.TogglePickItem(ctx, "job-1", "m-1", "w-a", time.Now()); !errors.Is(err, models.ErrPickingClosed) {
		t.Fatalf("expected ErrPickingClosed on a queued job, got %v", err)
	}

	if _, err := repo.ClaimJob(ctx, "AAA-001", "w-a", time.Now()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	item, err := repo.TogglePickItem(ctx, "job-1", "m-1", "w-b", time.Now())
	if err != nil {
		t.Fatalf("expected non-claimant toggle to succeed, got %v", err)
	}
	if !item.IsComplete || item.PickedQuantity != 2 || item.PickedBy != "w-b" {
		t.Errorf("expected m-1 picked by w-b, got %+v", item)
	}

	summary, err := repo.ProgressSummary(ctx, "job-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if summary.PickedCount != 1 || summary.TotalCount != 3 {
		t.Errorf("expected 1/3, got %d/%d", summary.PickedCount, summary.TotalCount)
	}

	if _, err := repo.TogglePickItem(ctx, "job-1", "m-9", "w-a", time.Now()); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown material, got %v", err)
	}
	if _, err := repo.ProgressSummary(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown job, got %v", err)
	}
}

func TestSQLRepository_ProvisionSpots_KeepsOccupancy(t *testing.T) {
	repo := newTestRepository(t)
	createTestJob(t, repo, "job-1", "AAA-001")
	ctx := context.Background()

	if _, err := repo.ClaimJob(ctx, "AAA-001", "w-a", time.Now()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := repo.StageJob(ctx, models.StageRequest{JobID: "job-1", SpotID: "S1", WorkerID: "w-a"}, time.Now()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := repo.ProvisionSpots(ctx, []models.YardSpot{{YardID: "main", ID: "S1"}, {YardID: "main", ID: "S3"}}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	available, err := repo.ListAvailableSpots(ctx, "main")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(available) != 2 || available[0].ID != "S2" || available[1].ID != "S3" {
		t.Errorf("expected S2 and S3 available, got %+v", available)
	}
}

func TestSQLRepository_CreateBundle(t *testing.T) {
	repo := newTestRepository(t)
	createTestJob(t, repo, "job-1", "AAA-001", "m-1", "m-2")
	createTestJob(t, repo, "job-2", "AAA-002", "m-2", "m-3")
	ctx := context.Background()

	bundle := &models.Job{ID: "bundle-1", Code: "BND-001"}
	if err := repo.CreateBundle(ctx, bundle, []string{"AAA-001", "AAA-002"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	items, err := repo.ListPickItems(ctx, "bundle-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 merged items, got %d", len(items))
	}
	if items[1].MaterialID != "m-2" || items[1].RequiredQuantity != 4 {
		t.Errorf("expected m-2 quantities to be summed to 4, got %+v", items[1])
	}

	if _, err := repo.ClaimJob(ctx, "AAA-001", "w-a", time.Now()); !errors.Is(err, models.ErrBundleMember) {
		t.Fatalf("expected ErrBundleMember, got %v", err)
	}

	if _, err := repo.ClaimJob(ctx, "BND-001", "w-a", time.Now()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	member, err := repo.GetJobByID(ctx, "job-2")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if member.Status != models.StatusPicking || member.BundleID != "bundle-1" {
		t.Errorf("expected member to follow bundle into picking, got %+v", member)
	}

	if _, err := repo.TogglePickItem(ctx, "job-1", "m-1", "w-b", time.Now()); !errors.Is(err, models.ErrBundleMember) {
		t.Fatalf("expected ErrBundleMember toggling a constituent item, got %v", err)
	}
	if _, err := repo.TogglePickItem(ctx, "bundle-1", "m-1", "w-b", time.Now()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	bundleSummary, err := repo.ProgressSummary(ctx, "bundle-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if bundleSummary.PickedCount != 1 || bundleSummary.TotalCount != 3 {
		t.Errorf("expected bundle progress 1/3, got %d/%d", bundleSummary.PickedCount, bundleSummary.TotalCount)
	}
	memberSummary, err := repo.ProgressSummary(ctx, "job-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if memberSummary.PickedCount != 0 {
		t.Errorf("expected constituent items untouched, got %d picked", memberSummary.PickedCount)
	}

	got, err := repo.GetJobByCode(ctx, "BND-001")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got.Constituents) != 2 {
		t.Errorf("expected 2 constituents, got %v", got.Constituents)
	}
}
