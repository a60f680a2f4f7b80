package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/glimsocial/glim/models"
	"github.com/glimsocial/glim/pkg"
	"github.com/glimsocial/glim/services"
)

// PushHandler manages offline push subscriptions.
type PushHandler struct {
	pushService services.PushService
}

// NewPushHandler builds a PushHandler.
func NewPushHandler(pushService services.PushService) *PushHandler {
	return &PushHandler{pushService: pushService}
}

// PublicKey godoc
// GET /api/push/public-key
func (h *PushHandler) PublicKey(w http.ResponseWriter, r *http.Request) {
	pkg.JSON(w, http.StatusOK, models.PushPublicKey{PublicKey: h.pushService.PublicKey()})
}

// Subscribe godoc
// POST /api/push/subscriptions
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var req models.SubscribePushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.pushService.Subscribe(r.Context(), user.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, sub)
}

// Unsubscribe godoc
// DELETE /api/push/subscriptions
// Body: { "token": "..." }
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var req models.UnsubscribePushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.pushService.Unsubscribe(r.Context(), user.ID, req.Token); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "unsubscribed"})
}
