// README: API gateway; holds service dependencies and the shared middleware configuration.
package http

import (
	"log/slog"

	"github.com/newrelic/go-agent/v3/newrelic"

	"ridebook/internal/http/middleware"
	"ridebook/internal/infra"
	"ridebook/internal/logging"
	"ridebook/internal/modules/archive"
	"ridebook/internal/modules/driver"
	"ridebook/internal/modules/notify"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/modules/ride"
)

type ServerDeps struct {
	Rides    *ride.Service
	Drivers  *driver.Service
	Pricing  *pricing.Service
	Archive  *archive.Service
	Records  notify.RecordStore
	Verifier infra.TokenVerifier
	Logger   *slog.Logger
	// Optional.
	RateLimiter *middleware.RateLimiter
	NewRelic    *newrelic.Application
	CORSOrigins []string
}

type Server struct {
	deps ServerDeps
}

func NewServer(deps ServerDeps) *Server {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if len(deps.CORSOrigins) == 0 {
		deps.CORSOrigins = []string{"*"}
	}
	return &Server{deps: deps}
}
