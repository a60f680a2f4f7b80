package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/glimsocial/glim/models"
	"github.com/glimsocial/glim/pkg"
	"github.com/glimsocial/glim/services"
)

// PublisherHandler serves publisher applications and their admin review.
type PublisherHandler struct {
	publisherService services.PublisherService
	// onRoleChange is told whose roles a review changed; may be nil.
	onRoleChange func(userID string)
}

// NewPublisherHandler builds a PublisherHandler.
func NewPublisherHandler(publisherService services.PublisherService, onRoleChange func(userID string)) *PublisherHandler {
	return &PublisherHandler{publisherService: publisherService, onRoleChange: onRoleChange}
}

// Request godoc
// POST /api/publisher/requests
func (h *PublisherHandler) Request(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var req models.CreatePublisherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pr, err := h.publisherService.Request(r.Context(), user.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, pr)
}

// ListPending godoc
// GET /api/admin/publisher-requests
func (h *PublisherHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	requests, err := h.publisherService.ListPending(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, requests)
}

// Approve godoc
// POST /api/admin/publisher-requests/{id}/approve
func (h *PublisherHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.publisherService.Approve)
}

// Reject godoc
// POST /api/admin/publisher-requests/{id}/reject
func (h *PublisherHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.publisherService.Reject)
}

func (h *PublisherHandler) review(
	w http.ResponseWriter,
	r *http.Request,
	decide func(ctx context.Context, adminID, requestID string) (*models.PublisherRequest, error),
) {
	admin, ok := UserFromContext(r.Context())
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	pr, err := decide(r.Context(), admin.ID, r.PathValue("id"))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	if pr.Status == models.PublisherRequestApproved && h.onRoleChange != nil {
		h.onRoleChange(pr.UserID)
	}

	pkg.JSON(w, http.StatusOK, pr)
}
