package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cineflex/cineflex/httpclient"
)

// readyCheckTimeout bounds all readiness probes of one request
const readyCheckTimeout = 5 * time.Second

// ErrUpstreamUnhealthy is reported by ClientProbe when the health call fails.
var ErrUpstreamUnhealthy = errors.New("catalog API health check failed")

// Probe reports whether a dependency is ready. A nil error means ready.
type Probe func(ctx context.Context) error

// ClientProbe adapts a catalog client's HealthCheck to a Probe.
func ClientProbe(client httpclient.Client) Probe {
	return func(ctx context.Context) error {
		if !client.HealthCheck(ctx) {
			return ErrUpstreamUnhealthy
		}
		return nil
	}
}

type namedProbe struct {
	name  string
	probe Probe
}

// ReadyResponse is the body of the readiness endpoint.
type ReadyResponse struct {
	Status string            `json:"status"`
	Time   int64             `json:"time"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// readyCheck runs every probe sequentially; any failure answers 503.
func (s *Server) readyCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readyCheckTimeout)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Time: time.Now().Unix()}
	status := http.StatusOK
	if len(s.probes) > 0 {
		resp.Checks = make(map[string]string, len(s.probes))
	}
	for _, p := range s.probes {
		if err := p.probe(ctx); err != nil {
			s.logger.Warn().Err(err).Str("check", p.name).Msg("Readiness check failed")
			resp.Checks[p.name] = "failed"
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[p.name] = "ok"
	}
	return c.JSON(status, resp)
}
