package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/cloo-solutions/otter/internal/api"
	"github.com/cloo-solutions/otter/internal/api/middleware"
	"github.com/cloo-solutions/otter/internal/service"
)

const (
	uploadField     = "file"
	multipartMemory = 8 << 20
)

type SourceUploader interface {
	Upload(ctx context.Context, input service.UploadInput) (*service.UploadOutput, error)
}

type SourceHandler struct {
	svc SourceUploader
}

func NewSourceHandler(svc SourceUploader) *SourceHandler {
	return &SourceHandler{svc: svc}
}

type UploadResponse struct {
	Source *SourceResponse `json:"source"`
	Job    *JobResponse    `json:"job"`
}

// Upload accepts a multipart form with one "file" part and queues it for
// ingestion. It answers 202 once the source and job are recorded.
func (h *SourceHandler) Upload(w http.ResponseWriter, r *http.Request) {
	principalID := middleware.GetPrincipalID(r.Context())
	if principalID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read file")
		return
	}
	if len(content) == 0 {
		api.Error(w, http.StatusBadRequest, "file is empty")
		return
	}

	out, err := h.svc.Upload(r.Context(), service.UploadInput{
		PrincipalID: principalID,
		FileName:    header.Filename,
		MediaType:   mediaType(header.Header.Get("Content-Type"), content),
		Content:     content,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, UploadResponse{
		Source: sourceToResponse(out.Source),
		Job:    jobToResponse(out.Job),
	})
}

// mediaType prefers the declared part type and sniffs the content when the
// client sent none or a generic one. Parameters are dropped.
func mediaType(declared string, content []byte) string {
	if declared == "" || declared == "application/octet-stream" {
		declared = http.DetectContentType(content)
	}
	parsed, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return declared
	}
	return parsed
}
