/*
Package configs loads the relay's configuration from environment variables.

It covers the running environment, listen port, the origin allow-list shared by
CORS and the WebSocket upgrader, per-connection queue sizing and the connect
rate limit.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// defaultAllowedOrigins are the common React dev server ports.
var defaultAllowedOrigins = []string{"http://localhost:3000", "http://localhost:3001"}

// AppConfig contains all configuration parameters required for the application to run.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// Security Settings
	AllowedOrigins []string
	ConnectRate    float64
	ConnectBurst   int

	// Relay Settings
	SendQueueSize         int
	NotifySenderOnFailure bool
}

// IsDevelopment reports whether the relay runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig reads and validates the configuration from environment variables,
// falling back to defaults for anything unset.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Server Settings ---
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	port, err := intEnv("PORT", 5000)
	if err != nil {
		return nil, err
	}
	cfg.Port = port

	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	// --- Security Settings ---
	originsStr, ok := os.LookupEnv("ALLOWED_ORIGINS")
	if ok {
		cfg.AllowedOrigins = []string{}
		for _, origin := range strings.Split(originsStr, ",") {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	} else {
		cfg.AllowedOrigins = append([]string(nil), defaultAllowedOrigins...)
	}

	connectRateStr := os.Getenv("CONNECT_RATE")
	if connectRateStr == "" {
		connectRateStr = "1"
	}
	connectRate, err := strconv.ParseFloat(connectRateStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CONNECT_RATE environment variable: %w", err)
	}
	if connectRate <= 0 {
		return nil, fmt.Errorf("CONNECT_RATE must be positive, got %v", connectRate)
	}
	cfg.ConnectRate = connectRate

	if cfg.ConnectBurst, err = intEnv("CONNECT_BURST", 10); err != nil {
		return nil, err
	}
	if cfg.ConnectBurst < 1 {
		return nil, fmt.Errorf("CONNECT_BURST must be at least 1, got %d", cfg.ConnectBurst)
	}

	// --- Relay Settings ---
	if cfg.SendQueueSize, err = intEnv("SEND_QUEUE_SIZE", 256); err != nil {
		return nil, err
	}
	if cfg.SendQueueSize < 1 {
		return nil, fmt.Errorf("SEND_QUEUE_SIZE must be at least 1, got %d", cfg.SendQueueSize)
	}

	notifyStr := os.Getenv("NOTIFY_SENDER_ON_FAILURE")
	if notifyStr != "" {
		notify, err := strconv.ParseBool(notifyStr)
		if err != nil {
			return nil, fmt.Errorf("invalid NOTIFY_SENDER_ON_FAILURE environment variable: %w", err)
		}
		cfg.NotifySenderOnFailure = notify
	}

	return cfg, nil
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}
