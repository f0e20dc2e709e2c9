package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"yard-pick/internal/metrics"
	"yard-pick/internal/models"
	"yard-pick/internal/service"
)

// JobHandler handles HTTP requests from the mobile schedule views
type JobHandler struct {
	claims      *service.ClaimService
	jobs        *service.JobService
	progress    *service.ProgressService
	spots       *service.SpotService
	rateLimiter *service.RateLimiter
	metrics     *metrics.Metrics
}

// NewJobHandler creates a new job handler
func NewJobHandler(
	claims *service.ClaimService,
	jobs *service.JobService,
	progress *service.ProgressService,
	spots *service.SpotService,
	rateLimiter *service.RateLimiter,
	metrics *metrics.Metrics,
) *JobHandler {
	return &JobHandler{
		claims:      claims,
		jobs:        jobs,
		progress:    progress,
		spots:       spots,
		rateLimiter: rateLimiter,
		metrics:     metrics,
	}
}

// Routes registers every endpoint on a new mux
func (h *JobHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", h.ScheduleJob)
	mux.HandleFunc("GET /jobs", h.ListJobs)
	mux.HandleFunc("GET /jobs/{id}", h.GetJob)
	mux.HandleFunc("GET /lookup", h.LookupJob)
	mux.HandleFunc("POST /bundles", h.CreateBundle)
	mux.HandleFunc("POST /claims", h.Claim)
	mux.HandleFunc("POST /jobs/{id}/release", h.Release)
	mux.HandleFunc("POST /jobs/{id}/stage", h.Stage)
	mux.HandleFunc("POST /jobs/{id}/load", h.Load)
	mux.HandleFunc("POST /jobs/{id}/complete", h.Complete)
	mux.HandleFunc("GET /jobs/{id}/items", h.ListItems)
	mux.HandleFunc("POST /jobs/{id}/items/{material}/toggle", h.TogglePicked)
	mux.HandleFunc("GET /jobs/{id}/progress", h.Progress)
	mux.HandleFunc("GET /yards/{yard}/spots", h.ListSpots)
	mux.HandleFunc("GET /metrics", h.GetMetrics)
	return cors(mux)
}

// cors sets headers for all responses and answers preflight requests
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type workerRequest struct {
	WorkerID string `json:"worker_id"`
}

type claimRequest struct {
	Code     string `json:"code"`
	WorkerID string `json:"worker_id"`
}

type stageRequest struct {
	SpotID       string `json:"spot_id"`
	WorkerID     string `json:"worker_id"`
	ReleaseClaim bool   `json:"release_claim"`
}

type completeRequest struct {
	SignoffProof string `json:"signoff_proof"`
}

// errorResponse is the JSON body of every failed request
type errorResponse struct {
	Error     string           `json:"error"`
	ClaimedBy string           `json:"claimed_by,omitempty"`
	From      models.JobStatus `json:"from,omitempty"`
	To        models.JobStatus `json:"to,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

// writeError maps expected outcomes to 4xx responses; everything else is a storage failure
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var claimErr *models.AlreadyClaimedError
	var transErr *models.InvalidTransitionError
	var dupErr *models.DuplicateCodeError

	switch {
	case errors.As(err, &claimErr):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), ClaimedBy: claimErr.WorkerName})
	case errors.As(err, &transErr):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), From: transErr.From, To: transErr.To})
	case errors.As(err, &dupErr):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrNotOwner):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrSpotOccupied),
		errors.Is(err, models.ErrBundleMember),
		errors.Is(err, models.ErrNotBundleable),
		errors.Is(err, models.ErrPickingClosed):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrSignoffRequired):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrRateLimitExceeded):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: err.Error()})
	default:
		log.Printf("error handling %s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "storage error, please retry"})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// limit charges one request to the worker's window
func (h *JobHandler) limit(w http.ResponseWriter, r *http.Request, workerID string) bool {
	if err := h.rateLimiter.Allow(r.Context(), workerID); err != nil {
		writeError(w, r, err)
		return false
	}
	return true
}

// ScheduleJob handles POST /jobs
func (h *JobHandler) ScheduleJob(w http.ResponseWriter, r *http.Request) {
	var req models.ScheduleJobRequest
	if !decode(w, r, &req) {
		return
	}

	job, err := h.jobs.ScheduleJob(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// CreateBundle handles POST /bundles
func (h *JobHandler) CreateBundle(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBundleRequest
	if !decode(w, r, &req) {
		return
	}

	bundle, err := h.jobs.CreateBundle(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bundle)
}

// GetJob handles GET /jobs/{id}
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// LookupJob handles GET /lookup?code=
func (h *JobHandler) LookupJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.LookupJob(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /jobs?status=
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	statusStr := r.URL.Query().Get("status")
	if statusStr == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "status query parameter is required"})
		return
	}

	jobs, err := h.jobs.ListJobsByStatus(r.Context(), models.JobStatus(statusStr))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*models.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// Claim handles POST /claims
func (h *JobHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !decode(w, r, &req) || !h.limit(w, r, req.WorkerID) {
		return
	}

	result, err := h.claims.Claim(r.Context(), req.Code, req.WorkerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Release handles POST /jobs/{id}/release
func (h *JobHandler) Release(w http.ResponseWriter, r *http.Request) {
	var req workerRequest
	if !decode(w, r, &req) || !h.limit(w, r, req.WorkerID) {
		return
	}

	job, err := h.claims.Release(r.Context(), r.PathValue("id"), req.WorkerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Stage handles POST /jobs/{id}/stage
func (h *JobHandler) Stage(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if !decode(w, r, &req) || !h.limit(w, r, req.WorkerID) {
		return
	}

	job, err := h.jobs.Stage(r.Context(), models.StageRequest{
		JobID:        r.PathValue("id"),
		SpotID:       req.SpotID,
		WorkerID:     req.WorkerID,
		ReleaseClaim: req.ReleaseClaim,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Load handles POST /jobs/{id}/load
func (h *JobHandler) Load(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Complete handles POST /jobs/{id}/complete
func (h *JobHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if !decode(w, r, &req) {
		return
	}

	job, err := h.jobs.Complete(r.Context(), r.PathValue("id"), req.SignoffProof)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// TogglePicked handles POST /jobs/{id}/items/{material}/toggle
func (h *JobHandler) TogglePicked(w http.ResponseWriter, r *http.Request) {
	var req workerRequest
	if !decode(w, r, &req) || !h.limit(w, r, req.WorkerID) {
		return
	}

	item, err := h.progress.TogglePicked(r.Context(), r.PathValue("id"), r.PathValue("material"), req.WorkerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// ListItems handles GET /jobs/{id}/items
func (h *JobHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.progress.ListItems(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Progress handles GET /jobs/{id}/progress
func (h *JobHandler) Progress(w http.ResponseWriter, r *http.Request) {
	summary, err := h.progress.Summary(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ListSpots handles GET /yards/{yard}/spots; only free spots unless ?all=true
func (h *JobHandler) ListSpots(w http.ResponseWriter, r *http.Request) {
	var spots []*models.YardSpot
	var err error
	if r.URL.Query().Get("all") == "true" {
		spots, err = h.spots.ListAll(r.Context(), r.PathValue("yard"))
	} else {
		spots, err = h.spots.ListAvailable(r.Context(), r.PathValue("yard"))
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, spots)
}

// GetMetrics handles GET /metrics
func (h *JobHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.GetSnapshot())
}
