// Package config collects every runtime setting of the server in one struct.
//
// Values come from environment variables; a .env file in the working
// directory is loaded first when present so development needs no exports.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the whole server configuration, one sub-struct per concern.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Push       PushConfig
	Email      EmailConfig
	Encryption EncryptionConfig
	Realtime   RealtimeConfig
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	// SecureCookies marks the session cookie Secure (HTTPS deployments).
	SecureCookies bool
}

// DatabaseConfig holds the SQLite file location.
type DatabaseConfig struct {
	Path string
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  int // minutes
	RefreshTokenExpiry int // days
}

// PushConfig configures offline push delivery. Push is disabled when
// FirebaseCredentials is empty.
type PushConfig struct {
	FirebaseCredentials string
	VAPIDPublicKey      string
	DispatchTimeout     time.Duration
}

// EmailConfig configures the e-mail fallback. Disabled when APIKey is empty.
type EmailConfig struct {
	ResendAPIKey string
	FromAddress  string
	AppURL       string
}

// EncryptionConfig holds the AES-256 key for secrets stored in the database.
type EncryptionConfig struct {
	Key string // 64 hex chars; empty stores push keys unencrypted
}

// RealtimeConfig tunes the WebSocket keepalive.
type RealtimeConfig struct {
	PongWait     time.Duration
	PingInterval time.Duration
}

// Load builds Config from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("SERVER_PORT", "9090"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	accessExpiry, err := strconv.Atoi(getEnv("JWT_ACCESS_EXPIRY_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_EXPIRY_MINUTES: %w", err)
	}

	refreshExpiry, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRY_DAYS", "7"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRY_DAYS: %w", err)
	}

	dispatchTimeout, err := time.ParseDuration(getEnv("PUSH_DISPATCH_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PUSH_DISPATCH_TIMEOUT: %w", err)
	}

	pongWait, err := time.ParseDuration(getEnv("WS_PONG_WAIT", "90s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_PONG_WAIT: %w", err)
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           port,
			AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
			SecureCookies:  getEnv("SECURE_COOKIES", "false") == "true",
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./data/glim.db"),
		},
		JWT: JWTConfig{
			Secret:             jwtSecret,
			AccessTokenExpiry:  accessExpiry,
			RefreshTokenExpiry: refreshExpiry,
		},
		Push: PushConfig{
			FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			VAPIDPublicKey:      getEnv("VAPID_PUBLIC_KEY", ""),
			DispatchTimeout:     dispatchTimeout,
		},
		Email: EmailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromAddress:  getEnv("EMAIL_FROM", "noreply@glim.social"),
			AppURL:       strings.TrimRight(getEnv("APP_URL", "http://localhost:3000"), "/"),
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
		Realtime: RealtimeConfig{
			PongWait:     pongWait,
			PingInterval: pongWait * 9 / 10,
		},
	}

	return cfg, nil
}

// Addr is the listen address, e.g. "0.0.0.0:9090".
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
