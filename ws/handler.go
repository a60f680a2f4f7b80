package ws

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/glimsocial/glim/models"
	"github.com/glimsocial/glim/pkg"
)

// TokenValidator verifies the access token presented on the handshake.
// It returns pkg.ErrTokenExpired for a well-signed but expired token.
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
}

// UnreadCounter supplies the count sent in the ready event.
type UnreadCounter interface {
	UnreadCount(ctx context.Context, userID string) (models.UnreadCount, error)
}

// Handshake rejection bodies. Clients count these 401s as authentication
// failures.
const (
	RejectMissingToken = "missing token"
	RejectTokenExpired = "token expired"
	RejectInvalidToken = "invalid token"
)

// Handler upgrades GET /ws?token=... to a realtime connection.
type Handler struct {
	hub      *Hub
	tokens   TokenValidator
	unread   UnreadCounter
	upgrader websocket.Upgrader
}

// NewHandler builds the endpoint. allowedOrigins restricts browser origins;
// an empty list accepts any origin.
func NewHandler(hub *Hub, tokens TokenValidator, unread UnreadCounter, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &Handler{
		hub:    hub,
		tokens: tokens,
		unread: unread,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed[origin]
			},
		},
	}
}

// HandleConnection authenticates the token query parameter, upgrades, sends
// ready and serves the connection until it closes.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, RejectMissingToken, http.StatusUnauthorized)
		return
	}

	claims, err := h.tokens.ValidateAccessToken(token)
	if err != nil {
		if errors.Is(err, pkg.ErrTokenExpired) {
			http.Error(w, RejectTokenExpired, pkg.StatusFor(err))
			return
		}
		status := pkg.StatusFor(err)
		if status == http.StatusInternalServerError {
			log.Printf("[ws] token validation failed: %v", err)
		}
		http.Error(w, RejectInvalidToken, status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for user %s: %v", claims.UserID, err)
		return
	}

	client := &Client{
		hub:    h.hub,
		conn:   conn,
		userID: claims.UserID,
		send:   make(chan []byte, sendBufferSize),
	}

	h.hub.addClient(client)

	if claims.ExpiresAt != nil {
		client.armExpiry(claims.ExpiresAt.Time)
	}

	ready := ReadyData{UserID: claims.UserID}
	if uc, err := h.unread.UnreadCount(r.Context(), claims.UserID); err != nil {
		log.Printf("[ws] failed to load unread count for ready event (user %s): %v", claims.UserID, err)
	} else {
		count := uc.Count
		ready.UnreadCount = &count
		ready.Version = uc.Version
	}
	h.hub.sendTo(client, Event{Op: OpReady, Data: ready})

	go client.WritePump()
	client.ReadPump()
}
