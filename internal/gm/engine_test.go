package gm

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusweave/nexus/server/internal/config"
	"github.com/nexusweave/nexus/server/internal/logger"
	"github.com/nexusweave/nexus/server/internal/model"
	"github.com/nexusweave/nexus/server/internal/store"
)

// --- in-package fakes ---

type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	kv       map[string]string
	logs     []*model.LogRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[string]*model.Session),
		kv:       make(map[string]string),
	}
}

func (f *fakeStore) Sessions() store.Sessions { return fakeSessions{f} }
func (f *fakeStore) Settings() store.Settings { return fakeSettings{f} }
func (f *fakeStore) Logs() store.Logs         { return fakeLogs{f} }

func copySession(s *model.Session) *model.Session {
	b, _ := json.Marshal(s)
	var out model.Session
	_ = json.Unmarshal(b, &out)
	return &out
}

type fakeSessions struct{ f *fakeStore }

func (s fakeSessions) Upsert(_ context.Context, m *model.Session) (*model.Session, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	cp := copySession(m)
	now := time.Now().UTC()
	if prev, ok := s.f.sessions[m.ID]; ok {
		cp.CreateTime = prev.CreateTime
	} else {
		cp.CreateTime = now
	}
	cp.UpdateTime = now
	s.f.sessions[m.ID] = cp
	return copySession(cp), nil
}

func (s fakeSessions) Get(_ context.Context, id string) (*model.Session, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	m, ok := s.f.sessions[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return copySession(m), nil
}

func (s fakeSessions) List(_ context.Context) ([]*model.Session, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	var out []*model.Session
	for _, m := range s.f.sessions {
		out = append(out, copySession(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdateTime.After(out[j].UpdateTime) })
	return out, nil
}

func (s fakeSessions) Delete(_ context.Context, id string) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if _, ok := s.f.sessions[id]; !ok {
		return model.ErrNotFound
	}
	delete(s.f.sessions, id)
	return nil
}

type fakeSettings struct{ f *fakeStore }

func (s fakeSettings) GetAll(context.Context) (map[string]string, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	out := make(map[string]string, len(s.f.kv))
	for k, v := range s.f.kv {
		out[k] = v
	}
	return out, nil
}

func (s fakeSettings) Set(_ context.Context, key, value string) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.f.kv[key] = value
	return nil
}

type fakeLogs struct{ f *fakeStore }

func (l fakeLogs) Append(_ context.Context, rec *model.LogRecord) error {
	l.f.mu.Lock()
	defer l.f.mu.Unlock()
	cp := *rec
	cp.ID = int64(len(l.f.logs) + 1)
	cp.CreateTime = time.Now().UTC()
	l.f.logs = append(l.f.logs, &cp)
	return nil
}

func (l fakeLogs) Recent(_ context.Context, limit int) ([]*model.LogRecord, error) {
	l.f.mu.Lock()
	defer l.f.mu.Unlock()
	var out []*model.LogRecord
	for i := len(l.f.logs) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *l.f.logs[i]
		out = append(out, &cp)
	}
	return out, nil
}

type fakeGenerator struct {
	response  string
	err       error
	gotPrompt string
	gotWindow []model.ChatTurn
	calls     int
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string, window []model.ChatTurn) (string, error) {
	g.calls++
	g.gotPrompt = prompt
	g.gotWindow = window
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	notified []string
}

func (n *fakeNotifier) Notify(sessionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, sessionID)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notified)
}

// --- helpers ---

func newTestEngine(t *testing.T, gen *fakeGenerator) (*Engine, *fakeStore, *fakeNotifier) {
	t.Helper()
	fs := newFakeStore()
	fn := &fakeNotifier{}
	eng := NewEngine(fs, func(model.Settings) Generator { return gen }, fn, config.NewForTesting(), logger.New("test"))
	return eng, fs, fn
}

func seedSession(t *testing.T, eng *Engine, id string, history []model.Message) *model.Session {
	t.Helper()
	sess, err := eng.SaveSession(context.Background(), &model.Session{
		ID: id, Name: "Test Run", History: history,
	})
	require.NoError(t, err)
	return sess
}

// --- tests ---

func TestSubmit_HappyPathFoldsEverything(t *testing.T) {
	gen := &fakeGenerator{response: "The gate opens.\n" +
		`<dashboard_json>{"atmosphere":"Ominous","doomPool":2}</dashboard_json>` +
		`<codex_json>[{"name":"Gatekeeper","type":"npc","description":"Old and blind."}]</codex_json>` +
		`<lore_update>The party entered the undercity.</lore_update>`}
	eng, _, fn := newTestEngine(t, gen)
	seedSession(t, eng, "s1", nil)
	before := fn.count()

	sess, err := eng.Submit(context.Background(), "s1", "I open the gate", "")
	require.NoError(t, err)

	require.Len(t, sess.History, 2)
	assert.Equal(t, model.RoleUser, sess.History[0].Role)
	assert.Equal(t, "I open the gate", sess.History[0].Content)
	assert.Equal(t, model.RoleAssistant, sess.History[1].Role)
	assert.Equal(t, "The gate opens.", sess.History[1].Content)
	require.NotNil(t, sess.History[1].Dashboard)
	assert.Equal(t, "Ominous", sess.History[1].Dashboard.Atmosphere)
	assert.Equal(t, 2, sess.History[1].Dashboard.DoomPool)

	require.Len(t, sess.Codex, 1)
	assert.Equal(t, "Gatekeeper", sess.Codex[0].Name)
	assert.NotEmpty(t, sess.Codex[0].ID)
	assert.Equal(t, "The party entered the undercity.", sess.Lore)

	assert.Equal(t, before+1, fn.count())
}

func TestSubmit_MissingSessionPassesThroughNotFound(t *testing.T) {
	eng, _, _ := newTestEngine(t, &fakeGenerator{response: "x"})
	_, err := eng.Submit(context.Background(), "ghost", "hello", "")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSubmit_GeneratorFailureRecordsInBandErrorTurn(t *testing.T) {
	gen := &fakeGenerator{err: &ProviderError{Kind: ErrorKindNetwork, Message: "could not connect to model provider, check the model URL"}}
	eng, _, fn := newTestEngine(t, gen)
	seedSession(t, eng, "s1", nil)
	before := fn.count()

	sess, err := eng.Submit(context.Background(), "s1", "I attack", "")
	require.NoError(t, err)

	// History grows by exactly two: the user turn is never lost.
	require.Len(t, sess.History, 2)
	assert.Equal(t, "I attack", sess.History[0].Content)
	assert.Equal(t, model.RoleAssistant, sess.History[1].Role)
	assert.True(t, strings.HasPrefix(sess.History[1].Content, "Nexus Error: "))
	assert.Nil(t, sess.History[1].Dashboard)
	assert.Empty(t, sess.Lore)
	assert.Empty(t, sess.Codex)
	assert.Equal(t, before+1, fn.count())
}

func TestSubmit_NoDashboardInResponseCarriesCurrentForward(t *testing.T) {
	d := model.InitialDashboard()
	d.Atmosphere = "carried"
	gen := &fakeGenerator{response: "Just prose, no blocks."}
	eng, _, _ := newTestEngine(t, gen)
	seedSession(t, eng, "s1", []model.Message{
		{Role: model.RoleAssistant, Content: "before", Dashboard: &d},
	})

	sess, err := eng.Submit(context.Background(), "s1", "look around", "")
	require.NoError(t, err)
	last := sess.History[len(sess.History)-1]
	require.NotNil(t, last.Dashboard)
	assert.Equal(t, "carried", last.Dashboard.Atmosphere)
}

func TestSubmit_ClarifyPinsDashboardAndSwapsPrompt(t *testing.T) {
	d := model.InitialDashboard()
	d.Atmosphere = "pinned"
	gen := &fakeGenerator{response: "It is an old key.\n" +
		`<dashboard_json>{"atmosphere":"MUTATED"}</dashboard_json>`}
	eng, _, _ := newTestEngine(t, gen)
	seedSession(t, eng, "s1", []model.Message{
		{Role: model.RoleAssistant, Content: "scene", Dashboard: &d},
	})

	sess, err := eng.Submit(context.Background(), "s1", "[CLARIFY] what is this key?", "")
	require.NoError(t, err)

	last := sess.History[len(sess.History)-1]
	require.NotNil(t, last.Dashboard)
	assert.Equal(t, "pinned", last.Dashboard.Atmosphere)
	assert.True(t, strings.Contains(gen.gotPrompt, "Архивариус"))
	assert.False(t, strings.Contains(gen.gotPrompt, "АКТИВНЫЕ МЕХАНИКИ"))
}

func TestSubmit_EmptyContentContinuesWhenLastTurnIsUser(t *testing.T) {
	gen := &fakeGenerator{response: "The world responds."}
	eng, _, _ := newTestEngine(t, gen)
	seedSession(t, eng, "s1", []model.Message{
		{Role: model.RoleUser, Content: "I wait"},
	})

	sess, err := eng.Submit(context.Background(), "s1", "   ", "")
	require.NoError(t, err)
	require.Len(t, sess.History, 2)
	assert.Equal(t, model.RoleAssistant, sess.History[1].Role)
}

func TestSubmit_EmptyContentWithNothingToContinueIsValidationError(t *testing.T) {
	eng, _, _ := newTestEngine(t, &fakeGenerator{response: "x"})
	seedSession(t, eng, "s1", nil)
	_, err := eng.Submit(context.Background(), "s1", "", "")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestSubmit_ActingCharacterAnnotatesAndLocks(t *testing.T) {
	gen := &fakeGenerator{response: "Vex strikes."}
	eng, _, _ := newTestEngine(t, gen)
	seedSession(t, eng, "s1", nil)
	ctx := context.Background()

	sess, err := eng.Submit(ctx, "s1", "strike the guard", "Vex")
	require.NoError(t, err)
	assert.Equal(t, "[PLAYER ACTION: Vex] strike the guard", sess.History[0].Content)

	// The assistant reply clears the lock.
	acted, err := eng.HasActed(ctx, "s1", "Vex")
	require.NoError(t, err)
	assert.False(t, acted)
}

func TestSubmit_WindowIsCappedAtConfiguredSize(t *testing.T) {
	var history []model.Message
	for i := 0; i < 10; i++ {
		history = append(history,
			model.Message{Role: model.RoleUser, Content: "u"},
			model.Message{Role: model.RoleAssistant, Content: "a"},
		)
	}
	gen := &fakeGenerator{response: "ok"}
	eng, _, _ := newTestEngine(t, gen)
	seedSession(t, eng, "s1", history)

	_, err := eng.Submit(context.Background(), "s1", "next", "")
	require.NoError(t, err)
	assert.Len(t, gen.gotWindow, 6)
	assert.Equal(t, "next", gen.gotWindow[5].Content)
}

func TestSubmit_PromptIncludesLoreCodexAndDashboard(t *testing.T) {
	d := model.InitialDashboard()
	d.Atmosphere = "Smoke"
	gen := &fakeGenerator{response: "ok"}
	eng, _, _ := newTestEngine(t, gen)
	_, err := eng.SaveSession(context.Background(), &model.Session{
		ID:      "s1",
		Lore:    "The bridge fell.",
		Codex:   []model.CodexEntry{{ID: "1", Name: "Mara", Type: "npc"}},
		History: []model.Message{{Role: model.RoleAssistant, Content: "x", Dashboard: &d}},
	})
	require.NoError(t, err)

	_, err = eng.Submit(context.Background(), "s1", "go on", "")
	require.NoError(t, err)
	assert.Contains(t, gen.gotPrompt, "The bridge fell.")
	assert.Contains(t, gen.gotPrompt, "Mara")
	assert.Contains(t, gen.gotPrompt, "Smoke")
	assert.Contains(t, gen.gotPrompt, "ТЕХНИЧЕСКИЙ ПРОТОКОЛ")
}

func TestSubmit_LoggingGatedBySettings(t *testing.T) {
	gen := &fakeGenerator{response: "ok"}
	eng, fs, _ := newTestEngine(t, gen)
	seedSession(t, eng, "s1", nil)
	ctx := context.Background()

	_, err := eng.Submit(ctx, "s1", "quiet turn", "")
	require.NoError(t, err)
	assert.Empty(t, fs.logs)

	require.NoError(t, fs.Settings().Set(ctx, "loggingEnabled", "true"))
	_, err = eng.Submit(ctx, "s1", "logged turn", "")
	require.NoError(t, err)
	require.Len(t, fs.logs, 1)
	assert.Equal(t, "s1", fs.logs[0].SessionID)
	assert.Equal(t, "ok", fs.logs[0].Response)
	assert.Contains(t, fs.logs[0].Request, "logged turn")
}

func TestApplyManualDashboardEdit_AppendsCarrierAndNotifies(t *testing.T) {
	eng, _, fn := newTestEngine(t, &fakeGenerator{})
	seedSession(t, eng, "s1", []model.Message{{Role: model.RoleUser, Content: "hi"}})
	before := fn.count()

	d := model.InitialDashboard()
	d.DoomPool = 4
	sess, err := eng.ApplyManualDashboardEdit(context.Background(), "s1", d)
	require.NoError(t, err)

	last := sess.History[len(sess.History)-1]
	assert.Equal(t, model.RoleSystem, last.Role)
	assert.Equal(t, "Manual Dashboard Update", last.Content)
	require.NotNil(t, last.Dashboard)
	assert.Equal(t, 4, last.Dashboard.DoomPool)
	assert.Equal(t, before+1, fn.count())
}

func TestCurrentDashboard_FallsBackToInitial(t *testing.T) {
	eng, _, _ := newTestEngine(t, &fakeGenerator{})
	seedSession(t, eng, "s1", nil)
	d, err := eng.CurrentDashboard(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Waiting for initialization...", d.Atmosphere)
}

func TestCreateSession_AppliesDefaults(t *testing.T) {
	eng, _, _ := newTestEngine(t, &fakeGenerator{})
	sess, err := eng.CreateSession(context.Background(), &model.Session{})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "New Adventure", sess.Name)
	assert.Equal(t, "Dark Fantasy", sess.Genre)
	assert.Equal(t, "Nexus Prime", sess.Setting)
	assert.Equal(t, "Grimdark", sess.Style)
}

func TestExportChronicle_JoinsAssistantTurns(t *testing.T) {
	eng, _, _ := newTestEngine(t, &fakeGenerator{})
	seedSession(t, eng, "s1", []model.Message{
		{Role: model.RoleUser, Content: "go"},
		{Role: model.RoleAssistant, Content: "Chapter one."},
		{Role: model.RoleUser, Content: "continue"},
		{Role: model.RoleAssistant, Content: "Chapter two."},
	})

	md, err := eng.ExportChronicle(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "# Test Run\n\nChapter one.\n\n---\n\nChapter two.", md)
}

func TestSaveAndResolveSettingsRoundTrip(t *testing.T) {
	eng, _, _ := newTestEngine(t, &fakeGenerator{})
	ctx := context.Background()

	in, err := eng.Settings(ctx)
	require.NoError(t, err)
	in.Provider = "local"
	in.ModelName = "mistral"
	in.LoggingEnabled = true
	in.Mechanics[0].Enabled = false

	require.NoError(t, eng.SaveSettings(ctx, in))

	out, err := eng.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "local", out.Provider)
	assert.Equal(t, "mistral", out.ModelName)
	assert.True(t, out.LoggingEnabled)
	assert.False(t, out.Mechanics[0].Enabled)
}
