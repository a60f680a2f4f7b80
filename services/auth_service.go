// Package services holds the business logic.
//
// Handlers decode requests and call services; services talk to repositories
// and to the realtime hub through interfaces. Every service is an exported
// interface plus an unexported implementation returned by its constructor.
package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/glimsocial/glim/models"
	"github.com/glimsocial/glim/pkg"
	"github.com/glimsocial/glim/pkg/validate"
	"github.com/glimsocial/glim/repository"
	"github.com/glimsocial/glim/ws"
)

// AuthService issues and verifies credentials.
type AuthService interface {
	Register(ctx context.Context, req *models.CreateUserRequest) (*AuthTokens, error)
	Login(ctx context.Context, req *models.LoginRequest) (*AuthTokens, error)
	RefreshToken(ctx context.Context, refreshToken string) (*AuthTokens, error)
	Logout(ctx context.Context, refreshToken string) error
	// LogoutAll revokes every session of userID and pushes force-logout to
	// the user's live connections.
	LogoutAll(ctx context.Context, userID string) error
	// ValidateAccessToken verifies signature and expiry. An expired but
	// otherwise valid token yields pkg.ErrTokenExpired.
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
	Me(ctx context.Context, userID string) (*models.User, error)
}

// AuthTokens is returned by Register, Login and RefreshToken.
type AuthTokens struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresAt    time.Time   `json:"expires_at"`
	User         models.User `json:"user"`
}

// AuthOptions configures token issuing.
type AuthOptions struct {
	JWTSecret     string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	// BcryptCost defaults to 12.
	BcryptCost int
	Clock      clock.Clock
}

const tokenIssuer = "glim"

type authService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	hub         ws.EventPublisher
	jwtSecret   []byte
	accessExp   time.Duration
	refreshExp  time.Duration
	bcryptCost  int
	clock       clock.Clock
}

// NewAuthService builds an AuthService.
func NewAuthService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	hub ws.EventPublisher,
	opts AuthOptions,
) AuthService {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = 12
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &authService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		hub:         hub,
		jwtSecret:   []byte(opts.JWTSecret),
		accessExp:   opts.AccessExpiry,
		refreshExp:  opts.RefreshExpiry,
		bcryptCost:  opts.BcryptCost,
		clock:       opts.Clock,
	}
}

func (s *authService) Register(ctx context.Context, req *models.CreateUserRequest) (*AuthTokens, error) {
	req.Normalize()
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		Language:     req.Language,
	}
	if user.Language == "" {
		user.Language = "en"
	}
	if req.DisplayName != "" {
		user.DisplayName = &req.DisplayName
	}
	if req.Email != "" {
		user.Email = &req.Email
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	log.Printf("[auth] user registered: %s", user.ID)
	return s.generateTokens(ctx, user)
}

func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*AuthTokens, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid username or password", pkg.ErrUnauthorized)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid username or password", pkg.ErrUnauthorized)
	}

	return s.generateTokens(ctx, user)
}

// RefreshToken rotates a refresh token: the old session is deleted and a new
// pair is issued.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	session, err := s.sessionRepo.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid refresh token", pkg.ErrUnauthorized)
		}
		return nil, err
	}

	if err := s.sessionRepo.DeleteByID(ctx, session.ID); err != nil {
		return nil, fmt.Errorf("failed to delete old session: %w", err)
	}

	if s.clock.Now().After(session.ExpiresAt) {
		return nil, fmt.Errorf("%w: refresh token expired", pkg.ErrUnauthorized)
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	return s.generateTokens(ctx, user)
}

// Logout deletes the session of refreshToken. Unknown tokens are not an error.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	session, err := s.sessionRepo.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.sessionRepo.DeleteByID(ctx, session.ID)
}

// LogoutAll deletes every refresh session of userID and then closes the
// user's live realtime connections with force_logout.
//
// Access tokens already issued stay valid until they expire; there is no
// revocation list. Closing the sockets is what makes the sign-out visible
// at once: each client reacts to force_logout by ending its session, and
// any later refresh fails because the session rows are gone.
func (s *authService) LogoutAll(ctx context.Context, userID string) error {
	n, err := s.sessionRepo.DeleteByUserID(ctx, userID)
	if err != nil {
		return err
	}

	s.hub.DisconnectUser(userID, ws.Event{
		Op:   ws.OpForceLogout,
		Data: ws.SessionEventData{Reason: "signed out everywhere"},
	})

	log.Printf("[auth] all sessions revoked: user=%s sessions=%d", userID, n)
	return nil
}

// ValidateAccessToken parses and verifies an access JWT against the service
// clock.
//
// An expired token maps to pkg.ErrTokenExpired so callers can tell "sign in
// again" apart from "this was never a token of ours". Every other failure
// (bad signature, wrong algorithm, wrong issuer, missing exp or subject)
// wraps pkg.ErrUnauthorized.
func (s *authService) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.jwtSecret, nil
		},
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(tokenIssuer),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, pkg.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: invalid token", pkg.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("%w: invalid token claims", pkg.ErrUnauthorized)
	}

	return claims, nil
}

func (s *authService) Me(ctx context.Context, userID string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// generateTokens issues a short-lived access JWT carrying the role claims and
// a random refresh token stored as a session.
func (s *authService) generateTokens(ctx context.Context, user *models.User) (*AuthTokens, error) {
	now := s.clock.Now()
	expiresAt := now.Add(s.accessExp)

	claims := &models.TokenClaims{
		UserID:      user.ID,
		Username:    user.Username,
		IsAdmin:     user.IsAdmin,
		IsPublisher: user.IsPublisher,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	accessString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshBytes := make([]byte, 32)
	if _, err := rand.Read(refreshBytes); err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	refreshString := hex.EncodeToString(refreshBytes)

	session := &models.Session{
		UserID:       user.ID,
		RefreshToken: refreshString,
		ExpiresAt:    now.Add(s.refreshExp),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	user.PasswordHash = ""

	return &AuthTokens{
		AccessToken:  accessString,
		RefreshToken: refreshString,
		ExpiresAt:    expiresAt,
		User:         *user,
	}, nil
}
