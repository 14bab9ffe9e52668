package api

import (
	"encoding/json"
	"net/http"

	"github.com/nexusweave/nexus/server/internal/api/respond"
	"github.com/nexusweave/nexus/server/internal/gm"
	"github.com/nexusweave/nexus/server/internal/model"
)

const recentLogLimit = 100

// SettingsHandler provides HTTP transport for operator settings and
// generator logs.
type SettingsHandler struct {
	engine *gm.Engine
}

// Get GET /api/settings
//
// Returns the effective settings: stored values merged over service
// defaults, with the mechanics catalogue resolved.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.Settings(r.Context())
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, s)
}

// Save POST /api/settings
func (h *SettingsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var s model.Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := h.engine.SaveSettings(r.Context(), s); err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListLogs GET /api/logs
func (h *SettingsHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.engine.RecentLogs(r.Context(), recentLogLimit)
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	if logs == nil {
		logs = []*model.LogRecord{}
	}
	respond.WriteJSON(w, http.StatusOK, logs)
}

// AppendLog POST /api/logs
//
// Accepts an externally recorded generator exchange, for clients that call
// a provider directly.
func (h *SettingsHandler) AppendLog(w http.ResponseWriter, r *http.Request) {
	var rec model.LogRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := h.engine.AppendLog(r.Context(), &rec); err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
