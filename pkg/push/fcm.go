package push

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMConfig configures the Firebase sender.
type FCMConfig struct {
	CredentialsFile string
	VAPIDPublicKey  string
}

type fcmSender struct {
	client    *messaging.Client
	publicKey string
}

// NewFCMSender initializes a Firebase app from a service-account file and
// returns a Sender backed by its messaging client.
func NewFCMSender(ctx context.Context, cfg FCMConfig) (Sender, error) {
	if cfg.CredentialsFile == "" {
		return nil, fmt.Errorf("firebase credentials file not provided")
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase messaging client: %w", err)
	}

	log.Println("[push] firebase messaging client initialized")
	return &fcmSender{client: client, publicKey: cfg.VAPIDPublicKey}, nil
}

func (s *fcmSender) Send(ctx context.Context, target Target, msg Message) error {
	if target.Token == "" {
		return fmt.Errorf("%w: empty registration token", ErrInvalidToken)
	}

	data := make(map[string]string, len(msg.Data)+1)
	for k, v := range msg.Data {
		data[k] = v
	}
	if msg.Link != "" {
		data["link"] = msg.Link
	}

	m := &messaging.Message{
		Token: target.Token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: data,
	}
	if msg.Link != "" {
		m.Webpush = &messaging.WebpushConfig{
			FCMOptions: &messaging.WebpushFCMOptions{Link: msg.Link},
		}
	}

	if _, err := s.client.Send(ctx, m); err != nil {
		if messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err) {
			return fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}

func (s *fcmSender) PublicKey() string { return s.publicKey }
