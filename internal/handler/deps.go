package handler

import (
	"chatrelay/internal/app/relay"
	"chatrelay/internal/configs"
	"chatrelay/internal/pkg/limiter"
	"chatrelay/internal/pkg/metrics"
)

// AppDeps carries the shared services handlers depend on.
type AppDeps struct {
	Hub            *relay.Hub
	Config         *configs.AppConfig
	Metrics        *metrics.Metrics
	ConnectLimiter *limiter.IPRateLimiter
}
