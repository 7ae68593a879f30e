package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/lumen/internal/auth"
	"github.com/BradenHooton/lumen/internal/models"
	"github.com/BradenHooton/lumen/internal/services"
	pkghttp "github.com/BradenHooton/lumen/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ProgressServiceInterface interface {
	Report(ctx context.Context, userID, fileID string, report services.PositionReport) (*models.FileProgress, error)
	GetProgress(ctx context.Context, userID, fileID string) (*models.FileProgress, error)
}

type ProgressHandler struct {
	service ProgressServiceInterface
}

func NewProgressHandler(service ProgressServiceInterface) *ProgressHandler {
	return &ProgressHandler{service: service}
}

// ProgressReportRequest is a position report. Documents send page fields,
// videos send time fields.
type ProgressReportRequest struct {
	CurrentPage      int      `json:"currentPage" validate:"gte=0"`
	TotalPages       int      `json:"totalPages" validate:"gte=0"`
	ScrollOffset     *float64 `json:"scrollOffset" validate:"omitempty,gte=0"`
	CurrentTime      float64  `json:"currentTime" validate:"gte=0"`
	Duration         float64  `json:"duration" validate:"gte=0"`
	EffectiveSeconds int64    `json:"effectiveSeconds" validate:"gte=0,lte=3600"`
}

// Get returns the caller's progress on a file, zeroed when never opened
// @Router /learning/progress/{fileId} [get]
func (h *ProgressHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	fileID, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	progress, err := h.service.GetProgress(r.Context(), claims.UserID, fileID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, progress)
}

// Report records a position report for a file
// @Router /learning/progress/{fileId} [post]
func (h *ProgressHandler) Report(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	fileID, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	var req ProgressReportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	progress, err := h.service.Report(r.Context(), claims.UserID, fileID, services.PositionReport{
		CurrentPage:      req.CurrentPage,
		TotalPages:       req.TotalPages,
		ScrollOffset:     req.ScrollOffset,
		CurrentTime:      req.CurrentTime,
		Duration:         req.Duration,
		EffectiveSeconds: req.EffectiveSeconds,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, progress)
}

func fileIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	fileID := chi.URLParam(r, "fileId")
	if _, err := uuid.Parse(fileID); err != nil {
		pkghttp.WriteNotFound(w, "File not found")
		return "", false
	}
	return fileID, true
}
