package handlers

import (
	"net/http"

	"github.com/glimsocial/glim/pkg"
	"github.com/glimsocial/glim/repository"
)

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	TotalUsers      int `json:"total_users"`
	LiveConnections  int `json:"live_connections"`
}

// ConnectionCounter reports the number of open realtime connections.
type ConnectionCounter interface {
	TotalConnections() int
}

// StatsHandler serves the public health and stats endpoints.
type StatsHandler struct {
	userRepo repository.UserRepository
	conns    ConnectionCounter
}

// NewStatsHandler builds a StatsHandler.
func NewStatsHandler(userRepo repository.UserRepository, conns ConnectionCounter) *StatsHandler {
	return &StatsHandler{userRepo: userRepo, conns: conns}
}

// Health godoc
// GET /api/health
func (h *StatsHandler) Health(w http.ResponseWriter, r *http.Request) {
	pkg.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetPublicStats godoc
// GET /api/stats
func (h *StatsHandler) GetPublicStats(w http.ResponseWriter, r *http.Request) {
	count, err := h.userRepo.Count(r.Context())
	if err != nil {
		pkg.ErrorWithMessage(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	pkg.JSON(w, http.StatusOK, StatsResponse{
		TotalUsers:      count,
		LiveConnections: h.conns.TotalConnections(),
	})
}
