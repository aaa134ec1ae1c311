package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/otter/internal/api"
	"github.com/cloo-solutions/otter/internal/api/middleware"
	"github.com/cloo-solutions/otter/internal/domain"
	"github.com/cloo-solutions/otter/internal/pagination"
	"github.com/cloo-solutions/otter/internal/service"
)

type JobService interface {
	GetJob(ctx context.Context, jobID string) (*domain.KnowledgeJob, error)
	ListJobs(ctx context.Context, input service.ListJobsInput) (*service.ListJobsOutput, error)
	Requeue(ctx context.Context, jobID string) (*domain.KnowledgeJob, error)
}

type JobHandler struct {
	svc JobService
}

func NewJobHandler(svc JobService) *JobHandler {
	return &JobHandler{svc: svc}
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, ok := h.ownedJob(w, r)
	if !ok {
		return
	}
	api.Success(w, http.StatusOK, jobToResponse(job))
}

// List pages through the caller's jobs, newest first.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	principalID := middleware.GetPrincipalID(r.Context())
	if principalID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	out, err := h.svc.ListJobs(r.Context(), service.ListJobsInput{
		PrincipalID: principalID,
		Cursor:      r.URL.Query().Get("cursor"),
		Limit:       limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	page := pagination.PageResult[*JobResponse]{
		Items:   make([]*JobResponse, 0, len(out.Items)),
		Cursor:  out.Cursor,
		HasMore: out.HasMore,
	}
	for _, job := range out.Items {
		page.Items = append(page.Items, jobToResponse(job))
	}
	api.Success(w, http.StatusOK, page)
}

// Requeue moves a failed or abandoned job back to queued.
func (h *JobHandler) Requeue(w http.ResponseWriter, r *http.Request) {
	job, ok := h.ownedJob(w, r)
	if !ok {
		return
	}

	requeued, err := h.svc.Requeue(r.Context(), job.ID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, jobToResponse(requeued))
}

// ownedJob loads the {id} job and answers 404 when it belongs to another
// principal, so callers cannot probe for job IDs.
func (h *JobHandler) ownedJob(w http.ResponseWriter, r *http.Request) (*domain.KnowledgeJob, bool) {
	principalID := middleware.GetPrincipalID(r.Context())
	if principalID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return nil, false
	}

	job, err := h.svc.GetJob(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return nil, false
	}
	if job.Source == nil || job.Source.PrincipalID != principalID {
		api.HandleError(w, domain.ErrJobNotFound)
		return nil, false
	}
	return job, true
}
