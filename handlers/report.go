package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/glimsocial/glim/models"
	"github.com/glimsocial/glim/pkg"
	"github.com/glimsocial/glim/services"
)

// ReportHandler accepts content reports.
type ReportHandler struct {
	reportService services.ReportService
}

// NewReportHandler builds a ReportHandler.
func NewReportHandler(reportService services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// Create godoc
// POST /api/reports
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var req models.CreateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report, err := h.reportService.Create(r.Context(), user.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, report)
}
