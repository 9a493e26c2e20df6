package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/jobs"
	"github.com/Dias221467/TimeCapsule/pkg/logger"
)

// AdminHandler triggers the background sweeps on demand.
type AdminHandler struct {
	Unlock   *jobs.UnlockSweeper
	Reminder *jobs.ReminderSweeper
}

func NewAdminHandler(unlock *jobs.UnlockSweeper, reminder *jobs.ReminderSweeper) *AdminHandler {
	return &AdminHandler{Unlock: unlock, Reminder: reminder}
}

// RunUnlockSweepHandler handles POST /admin/sweeps/unlock. The sweep runs to
// completion even if the client goes away.
func (h *AdminHandler) RunUnlockSweepHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.Unlock.Sweep(context.WithoutCancel(r.Context()))
	if err != nil {
		logger.Log.WithError(err).Error("Manual unlock sweep failed")
		http.Error(w, "Unlock sweep failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RunReminderSweepHandler handles POST /admin/sweeps/reminders.
func (h *AdminHandler) RunReminderSweepHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.Reminder.Sweep(context.WithoutCancel(r.Context()))
	if err != nil {
		logger.Log.WithError(err).Error("Manual reminder sweep failed")
		http.Error(w, "Reminder sweep failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

// HealthHandler handles GET /health.
func HealthHandler(ping Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok", "database": "ok"}
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				logger.Log.WithError(err).Warn("Health check failed")
				status["status"] = "degraded"
				status["database"] = "unreachable"
				writeJSON(w, http.StatusServiceUnavailable, status)
				return
			}
		}
		writeJSON(w, http.StatusOK, status)
	}
}
