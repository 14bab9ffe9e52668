package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusweave/nexus/server/internal/config"
	"github.com/nexusweave/nexus/server/internal/gm"
	"github.com/nexusweave/nexus/server/internal/logger"
	"github.com/nexusweave/nexus/server/internal/model"
	"github.com/nexusweave/nexus/server/internal/store/sqlite"
)

type stubGenerator struct {
	response string
	err      error
}

func (g *stubGenerator) Generate(context.Context, string, []model.ChatTurn) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func newTestServer(t *testing.T, gen *stubGenerator) (*httptest.Server, *gm.Engine) {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.EnsureSchema(context.Background(), db))

	st := sqlite.New(db)
	engine := gm.NewEngine(st, func(model.Settings) gm.Generator { return gen }, nil, config.NewForTesting(), logger.New("api-test"))

	router := NewRouter(engine, nil, nil)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, engine
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestSessions_CreateAppliesDefaults(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions", map[string]string{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sess := decode[model.Session](t, resp)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "New Adventure", sess.Name)
	assert.Equal(t, "Dark Fantasy", sess.Genre)
}

func TestSessions_ListAndGet(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})

	created := decode[model.Session](t, doJSON(t, http.MethodPost, srv.URL+"/api/sessions", map[string]string{"name": "Run A"}))

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]model.Session](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, "Run A", list[0].Name)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[model.Session](t, resp)
	assert.Equal(t, created.ID, got.ID)
}

func TestSessions_GetMissingIs404(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/sessions/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessions_Delete(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	created := decode[model.Session](t, doJSON(t, http.MethodPost, srv.URL+"/api/sessions", map[string]string{}))

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTurns_SubmitRunsFullPipeline(t *testing.T) {
	gen := &stubGenerator{response: "The door creaks open.\n" +
		`<dashboard_json>{"atmosphere":"Dread","doomPool":1}</dashboard_json>`}
	srv, _ := newTestServer(t, gen)
	created := decode[model.Session](t, doJSON(t, http.MethodPost, srv.URL+"/api/sessions", map[string]string{}))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+created.ID+"/turns",
		map[string]string{"content": "open the door"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sess := decode[model.Session](t, resp)
	require.Len(t, sess.History, 2)
	assert.Equal(t, "open the door", sess.History[0].Content)
	assert.Equal(t, "The door creaks open.", sess.History[1].Content)
	require.NotNil(t, sess.History[1].Dashboard)
	assert.Equal(t, "Dread", sess.History[1].Dashboard.Atmosphere)
}

func TestTurns_GeneratorFailureStaysInBand(t *testing.T) {
	gen := &stubGenerator{err: &gm.ProviderError{Kind: gm.ErrorKindNetwork, Message: "connection refused"}}
	srv, _ := newTestServer(t, gen)
	created := decode[model.Session](t, doJSON(t, http.MethodPost, srv.URL+"/api/sessions", map[string]string{}))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+created.ID+"/turns",
		map[string]string{"content": "do something"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sess := decode[model.Session](t, resp)
	require.Len(t, sess.History, 2)
	assert.Contains(t, sess.History[1].Content, "Nexus Error: ")
}

func TestTurns_EmptyTurnIs400(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{response: "x"})
	created := decode[model.Session](t, doJSON(t, http.MethodPost, srv.URL+"/api/sessions", map[string]string{}))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+created.ID+"/turns",
		map[string]string{"content": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDashboard_GetFallsBackToInitial(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	created := decode[model.Session](t, doJSON(t, http.MethodPost, srv.URL+"/api/sessions", map[string]string{}))

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+created.ID+"/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := decode[model.Dashboard](t, resp)
	assert.Equal(t, "Waiting for initialization...", d.Atmosphere)
	assert.NotNil(t, d.Characters)
}

func TestDashboard_ManualEdit(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	created := decode[model.Session](t, doJSON(t, http.MethodPost, srv.URL+"/api/sessions", map[string]string{}))

	edited := model.InitialDashboard()
	edited.DoomPool = 3
	resp := doJSON(t, http.MethodPut, srv.URL+"/api/sessions/"+created.ID+"/dashboard", edited)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sess := decode[model.Session](t, resp)
	require.NotEmpty(t, sess.History)
	last := sess.History[len(sess.History)-1]
	assert.Equal(t, "Manual Dashboard Update", last.Content)
	require.NotNil(t, last.Dashboard)
	assert.Equal(t, 3, last.Dashboard.DoomPool)
}

func TestLock_ReflectsPendingAction(t *testing.T) {
	gen := &stubGenerator{response: "resolved"}
	srv, _ := newTestServer(t, gen)
	created := decode[model.Session](t, doJSON(t, http.MethodPost, srv.URL+"/api/sessions", map[string]string{}))

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+created.ID+"/characters/Vex/lock", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	lock := decode[map[string]bool](t, resp)
	assert.False(t, lock["hasActed"])

	// A completed turn leaves the lock clear; seed a pending action directly.
	_, engine := newTestServer(t, gen)
	sess, err := engine.CreateSession(context.Background(), &model.Session{
		History: []model.Message{{Role: model.RoleUser, Content: "[PLAYER ACTION: Vex] strike"}},
	})
	require.NoError(t, err)
	acted, err := engine.HasActed(context.Background(), sess.ID, "Vex")
	require.NoError(t, err)
	assert.True(t, acted)
}

func TestSettings_RoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/settings", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s := decode[model.Settings](t, resp)
	assert.NotEmpty(t, s.Mechanics)

	s.Provider = "local"
	s.ModelURL = "http://localhost:1234/v1"
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/settings", s)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/settings", nil)
	got := decode[model.Settings](t, resp)
	assert.Equal(t, "local", got.Provider)
	assert.Equal(t, "http://localhost:1234/v1", got.ModelURL)
}

func TestLogs_AppendAndList(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/logs", model.LogRecord{
		SessionID: "s1", Request: "[]", Response: "text",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/logs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	logs := decode[[]model.LogRecord](t, resp)
	require.Len(t, logs, 1)
	assert.Equal(t, "s1", logs[0].SessionID)
}

func TestExport_ServesMarkdown(t *testing.T) {
	srv, engine := newTestServer(t, &stubGenerator{})
	sess, err := engine.CreateSession(context.Background(), &model.Session{
		Name: "My Run",
		History: []model.Message{
			{Role: model.RoleAssistant, Content: "Chapter one."},
			{Role: model.RoleUser, Content: "go"},
			{Role: model.RoleAssistant, Content: "Chapter two."},
		},
	})
	require.NoError(t, err)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+sess.ID+"/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/markdown")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "My_Run_Chronicle.md")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "# My Run\n\nChapter one.\n\n---\n\nChapter two.", string(body))
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
