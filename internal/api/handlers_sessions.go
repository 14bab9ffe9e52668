package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/nexusweave/nexus/server/internal/api/respond"
	"github.com/nexusweave/nexus/server/internal/gm"
	"github.com/nexusweave/nexus/server/internal/model"
)

// SessionHandler provides HTTP transport for session CRUD and export.
type SessionHandler struct {
	engine *gm.Engine
}

// List GET /api/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.engine.ListSessions(r.Context())
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	if sessions == nil {
		sessions = []*model.Session{}
	}
	respond.WriteJSON(w, http.StatusOK, sessions)
}

// Get GET /api/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.engine.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, sess)
}

// Save POST /api/sessions
//
// Inserts or fully overwrites a session row. Missing fields on a new
// session get the adventure defaults.
func (h *SessionHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req model.Session
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}

	var (
		saved *model.Session
		err   error
	)
	if req.ID == "" {
		saved, err = h.engine.CreateSession(r.Context(), &req)
	} else {
		saved, err = h.engine.SaveSession(r.Context(), &req)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, saved)
}

// Delete DELETE /api/sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteSession(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export GET /api/sessions/{id}/export
//
// Renders the session's assistant turns as a downloadable markdown
// chronicle.
func (h *SessionHandler) Export(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	md, err := h.engine.ExportChronicle(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	sess, err := h.engine.GetSession(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	filename := strings.ReplaceAll(sess.Name, " ", "_") + "_Chronicle.md"

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(md))
}
