// Package api provides the HTTP transport for the nexus service.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nexusweave/nexus/server/internal/api/recovery"
	"github.com/nexusweave/nexus/server/internal/api/respond"
	"github.com/nexusweave/nexus/server/internal/gm"
	"github.com/nexusweave/nexus/server/internal/model"
)

// WSHandler serves the websocket endpoint.
type WSHandler interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// HealthPinger verifies that the backing store is reachable.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}

// NewRouter wires every route of the service.
func NewRouter(engine *gm.Engine, ws WSHandler, pinger HealthPinger) *mux.Router {
	r := mux.NewRouter()
	r.Use(recovery.Middleware)

	sessions := &SessionHandler{engine: engine}
	r.HandleFunc("/api/sessions", sessions.List).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions", sessions.Save).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}", sessions.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}", sessions.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/api/sessions/{id}/export", sessions.Export).Methods(http.MethodGet)

	turns := &TurnHandler{engine: engine}
	r.HandleFunc("/api/sessions/{id}/turns", turns.Submit).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/dashboard", turns.GetDashboard).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}/dashboard", turns.PutDashboard).Methods(http.MethodPut)
	r.HandleFunc("/api/sessions/{id}/characters/{name}/lock", turns.GetLock).Methods(http.MethodGet)

	settings := &SettingsHandler{engine: engine}
	r.HandleFunc("/api/settings", settings.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/settings", settings.Save).Methods(http.MethodPost)
	r.HandleFunc("/api/logs", settings.ListLogs).Methods(http.MethodGet)
	r.HandleFunc("/api/logs", settings.AppendLog).Methods(http.MethodPost)

	r.HandleFunc("/api/health", healthHandler(pinger)).Methods(http.MethodGet)

	if ws != nil {
		r.HandleFunc("/ws", ws.ServeWS)
	}

	return r
}

func healthHandler(pinger HealthPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			if err := pinger.HealthPing(r.Context()); err != nil {
				respond.WriteError(w, http.StatusServiceUnavailable, "store unreachable")
				return
			}
		}
		respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

// writeDomainError maps sentinel errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		respond.WriteNotFound(w, err.Error())
	case errors.Is(err, model.ErrValidation):
		respond.WriteBadRequest(w, err.Error())
	default:
		respond.WriteInternalError(w, err.Error())
	}
}
