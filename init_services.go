package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/glimsocial/glim/config"
	"github.com/glimsocial/glim/pkg/crypto"
	"github.com/glimsocial/glim/pkg/email"
	"github.com/glimsocial/glim/pkg/push"
	"github.com/glimsocial/glim/pkg/ratelimit"
	"github.com/glimsocial/glim/services"
	"github.com/glimsocial/glim/ws"
)

// Services groups every service.
type Services struct {
	Auth         services.AuthService
	Notification services.NotificationService
	Push         services.PushService
	Follow       services.FollowService
	Publisher    services.PublisherService
	Report       services.ReportService
}

// RateLimiters groups the rate limiters so main can stop them on shutdown.
type RateLimiters struct {
	Login *ratelimit.LoginRateLimiter
}

// initServices builds the services. The push service is built before the
// notification service because it is the notification service's offline
// dispatcher.
func initServices(
	ctx context.Context,
	db *sql.DB,
	repos *Repositories,
	hub ws.EventPublisher,
	clk clock.Clock,
	cfg *config.Config,
) (*Services, *RateLimiters, error) {
	cipher, err := crypto.NewFieldCipher(cfg.Encryption.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
	}
	if !cipher.Enabled() {
		log.Println("[main] ENCRYPTION_KEY not set, push subscription keys are stored unencrypted")
	}

	pushSender := push.NewNoopSender()
	if cfg.Push.FirebaseCredentials != "" {
		s, err := push.NewFCMSender(ctx, push.FCMConfig{
			CredentialsFile: cfg.Push.FirebaseCredentials,
			VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init push sender: %w", err)
		}
		pushSender = s
		log.Println("[main] push delivery enabled (firebase)")
	} else {
		log.Println("[main] FIREBASE_CREDENTIALS_FILE not set, push delivery disabled")
	}

	var mailer email.Sender
	if cfg.Email.ResendAPIKey != "" {
		mailer = email.NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.FromAddress)
		log.Println("[main] e-mail fallback enabled (resend)")
	}

	authService := services.NewAuthService(repos.User, repos.Session, hub, services.AuthOptions{
		JWTSecret:     cfg.JWT.Secret,
		AccessExpiry:  time.Duration(cfg.JWT.AccessTokenExpiry) * time.Minute,
		RefreshExpiry: time.Duration(cfg.JWT.RefreshTokenExpiry) * 24 * time.Hour,
		Clock:         clk,
	})

	pushService := services.NewPushService(repos.Push, repos.User, pushSender, mailer, cipher, cfg.Email.AppURL)
	notificationService := services.NewNotificationService(
		repos.Notification, repos.User, hub, pushService, cfg.Push.DispatchTimeout)

	svcs := &Services{
		Auth:         authService,
		Notification: notificationService,
		Push:         pushService,
		Follow:       services.NewFollowService(repos.Follow, repos.User, notificationService),
		Publisher:    services.NewPublisherService(db, repos.PublisherRequest, repos.User, notificationService),
		Report:       services.NewReportService(repos.Report, repos.User, notificationService),
	}

	limiters := &RateLimiters{
		Login: ratelimit.NewLoginRateLimiterWithClock(clk, 5, 15*time.Minute),
	}

	return svcs, limiters, nil
}
