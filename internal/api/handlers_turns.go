package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nexusweave/nexus/server/internal/api/respond"
	"github.com/nexusweave/nexus/server/internal/gm"
	"github.com/nexusweave/nexus/server/internal/model"
)

// TurnHandler provides HTTP transport for the turn loop and dashboard
// access.
type TurnHandler struct {
	engine *gm.Engine
}

// Submit POST /api/sessions/{id}/turns
//
// Runs one game-master turn. The response is the full updated session;
// generator failures surface inside the history as an assistant error
// turn, not as an HTTP error.
func (h *TurnHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content         string `json:"content"`
		ActingCharacter string `json:"actingCharacter,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}

	sess, err := h.engine.Submit(r.Context(), mux.Vars(r)["id"], req.Content, req.ActingCharacter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, sess)
}

// GetDashboard GET /api/sessions/{id}/dashboard
func (h *TurnHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.engine.CurrentDashboard(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, d)
}

// PutDashboard PUT /api/sessions/{id}/dashboard
//
// Applies a manually edited dashboard snapshot.
func (h *TurnHandler) PutDashboard(w http.ResponseWriter, r *http.Request) {
	var d model.Dashboard
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	sess, err := h.engine.ApplyManualDashboardEdit(r.Context(), mux.Vars(r)["id"], d)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, sess)
}

// GetLock GET /api/sessions/{id}/characters/{name}/lock
func (h *TurnHandler) GetLock(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	acted, err := h.engine.HasActed(r.Context(), vars["id"], vars["name"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]bool{"hasActed": acted})
}
