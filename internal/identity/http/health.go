package http

import (
	"net/http"

	"github.com/aussiebroadwan/edoras/internal/identity/health"
	"github.com/aussiebroadwan/edoras/pkg/httpx"
)

// DatabaseProbe is the name the database probe is registered under.
const DatabaseProbe = "database"

type HealthHandler struct {
	Health *health.Aggregator
}

// HandleLive is the shallow liveness check.
//
//	@Summary		Liveness
//	@Description	Always 200 while the process is serving.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	health.Report	"status, service, version, timestamp"
//	@Router			/health [get].
func (h *HealthHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.Health.Live())
}

// HandleDetailed runs every probe.
//
//	@Summary		Detailed health
//	@Description	Checks database, secret store and configuration. Healthy only if every component is.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	health.Report	"All components healthy"
//	@Failure		503	{object}	health.Report	"At least one component unhealthy"
//	@Router			/health/detailed [get].
func (h *HealthHandler) HandleDetailed(w http.ResponseWriter, r *http.Request) {
	report := h.Health.Check(r.Context())
	httpx.WriteJSON(w, report.HTTPStatus(), report)
}

// HandleDatabase checks only the database.
//
//	@Summary		Database health
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	DatabaseHealthResponse	"Database connected"
//	@Failure		503	{object}	DatabaseHealthResponse	"Database disconnected"
//	@Router			/health/db [get].
func (h *HealthHandler) HandleDatabase(w http.ResponseWriter, r *http.Request) {
	now := h.Health.Live().Timestamp

	res, ok := h.Health.CheckOne(r.Context(), DatabaseProbe)
	if ok && res.Status == health.Healthy {
		httpx.WriteJSON(w, http.StatusOK, DatabaseHealthResponse{
			Status: string(health.Healthy), Database: "connected", Timestamp: now,
		})
		return
	}

	msg := res.Message
	if !ok {
		msg = "database probe not registered"
	}
	httpx.WriteJSON(w, http.StatusServiceUnavailable, DatabaseHealthResponse{
		Status: string(health.Unhealthy), Database: "disconnected", Error: msg, Timestamp: now,
	})
}
