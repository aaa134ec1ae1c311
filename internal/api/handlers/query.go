package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cloo-solutions/otter/internal/api"
	"github.com/cloo-solutions/otter/internal/api/middleware"
	"github.com/cloo-solutions/otter/internal/service"
)

type Searcher interface {
	Search(ctx context.Context, input service.SearchInput) (*service.SearchOutput, error)
}

type QueryHandler struct {
	svc Searcher
}

func NewQueryHandler(svc Searcher) *QueryHandler {
	return &QueryHandler{svc: svc}
}

type QueryRequest struct {
	Text  string `json:"text"`
	Limit int    `json:"limit,omitempty"`
}

type QueryResponse struct {
	QueryID string           `json:"query_id"`
	Results []*ChunkResponse `json:"results"`
}

func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	principalID := middleware.GetPrincipalID(r.Context())
	if principalID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		api.Error(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.Limit < 0 {
		api.Error(w, http.StatusBadRequest, "limit must not be negative")
		return
	}

	out, err := h.svc.Search(r.Context(), service.SearchInput{
		Text:        req.Text,
		PrincipalID: principalID,
		Limit:       req.Limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := QueryResponse{QueryID: out.QueryID, Results: make([]*ChunkResponse, 0, len(out.Results))}
	for _, c := range out.Results {
		resp.Results = append(resp.Results, &ChunkResponse{
			ChunkID:         c.ChunkID,
			KnowledgeItemID: c.KnowledgeItemID,
			Text:            c.Text,
			Score:           c.Score,
		})
	}
	api.Success(w, http.StatusOK, resp)
}
