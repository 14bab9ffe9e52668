package gm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nexusweave/nexus/server/internal/codex"
	"github.com/nexusweave/nexus/server/internal/config"
	"github.com/nexusweave/nexus/server/internal/model"
	"github.com/nexusweave/nexus/server/internal/parser"
	"github.com/nexusweave/nexus/server/internal/session"
	"github.com/nexusweave/nexus/server/internal/store"
)

// Defaults for sessions created without explicit metadata.
const (
	DefaultSessionName    = "New Adventure"
	DefaultSessionGenre   = "Dark Fantasy"
	DefaultSessionSetting = "Nexus Prime"
	DefaultSessionStyle   = "Grimdark"
)

// Notifier signals observers of a session that its state changed.
type Notifier interface {
	Notify(sessionID string)
}

// GeneratorFactory builds a Generator from the effective settings. The
// provider, model, and base URL can change between turns, so the engine
// constructs a fresh generator per call.
type GeneratorFactory func(model.Settings) Generator

// Engine drives the turn loop: it owns the read-modify-write cycle over
// session rows. Writes are last-write-wins; concurrent submitters race and
// the slower one overwrites.
type Engine struct {
	store  store.Store
	newGen GeneratorFactory
	hub    Notifier
	cfg    *config.Config
	log    zerolog.Logger
}

func NewEngine(st store.Store, newGen GeneratorFactory, hub Notifier, cfg *config.Config, log zerolog.Logger) *Engine {
	return &Engine{store: st, newGen: newGen, hub: hub, cfg: cfg, log: log}
}

// CreateSession fills in defaults for missing fields and persists the row.
func (e *Engine) CreateSession(ctx context.Context, s *model.Session) (*model.Session, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Name == "" {
		s.Name = DefaultSessionName
	}
	if s.Genre == "" {
		s.Genre = DefaultSessionGenre
	}
	if s.Setting == "" {
		s.Setting = DefaultSessionSetting
	}
	if s.Style == "" {
		s.Style = DefaultSessionStyle
	}
	return e.SaveSession(ctx, s)
}

// SaveSession upserts the full row and signals session observers.
func (e *Engine) SaveSession(ctx context.Context, s *model.Session) (*model.Session, error) {
	saved, err := e.store.Sessions().Upsert(ctx, s)
	if err != nil {
		return nil, err
	}
	e.notify(saved.ID)
	return saved, nil
}

// GetSession loads one session row.
func (e *Engine) GetSession(ctx context.Context, id string) (*model.Session, error) {
	return e.store.Sessions().Get(ctx, id)
}

// ListSessions returns every session, most recently updated first.
func (e *Engine) ListSessions(ctx context.Context) ([]*model.Session, error) {
	return e.store.Sessions().List(ctx)
}

// DeleteSession removes the row permanently. There is no tombstone.
func (e *Engine) DeleteSession(ctx context.Context, id string) error {
	return e.store.Sessions().Delete(ctx, id)
}

// Submit runs one turn: append the player's message, call the generator
// with the windowed context, fold the parsed response back into the
// session, persist, and notify.
//
// A generator failure is not an error of the operation: the user turn and
// an in-band "Nexus Error: ..." assistant turn are persisted so the player
// sees what happened and loses nothing.
func (e *Engine) Submit(ctx context.Context, sessionID, content, actingCharacter string) (*model.Session, error) {
	sess, err := e.store.Sessions().Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(content)
	lastIsUser := len(sess.History) > 0 && sess.History[len(sess.History)-1].Role == model.RoleUser
	if trimmed == "" && !lastIsUser {
		return nil, fmt.Errorf("%w: empty turn with nothing to continue", model.ErrValidation)
	}

	current := session.CurrentDashboard(sess.History)

	history := make([]model.Message, len(sess.History))
	copy(history, sess.History)
	if trimmed != "" {
		text := trimmed
		if actingCharacter != "" {
			text = session.AnnotateAction(actingCharacter, trimmed)
		}
		history = append(history, model.Message{Role: model.RoleUser, Content: text})
	}

	kv, err := e.store.Settings().GetAll(ctx)
	if err != nil {
		return nil, err
	}
	settings := ResolveSettings(kv, e.cfg)

	isClarify := strings.HasPrefix(trimmed, ClarifyPrefix)
	window := chatWindow(history, e.cfg.HistoryWindow)
	prompt := BuildSystemPrompt(settings, isClarify, sess.Lore, sess.Codex, current)

	raw, genErr := e.newGen(settings).Generate(ctx, prompt, window)
	if genErr != nil {
		e.log.Error().Stack().Err(genErr).
			Str("session_id", sessionID).
			Msg("generator failed, recording in-band error turn")
		history = append(history, model.Message{
			Role:    model.RoleAssistant,
			Content: "Nexus Error: " + genErr.Error(),
		})
		sess.History = history
		saved, err := e.store.Sessions().Upsert(ctx, sess)
		if err != nil {
			return nil, err
		}
		e.notify(sessionID)
		return saved, nil
	}

	if settings.LoggingEnabled {
		e.appendLog(ctx, sessionID, prompt, window, raw)
	}

	parsed := parser.Parse(raw)

	// Clarify turns pin the dashboard: lore questions must not move state.
	dash := current
	if !isClarify && parsed.Dashboard != nil {
		dash = *parsed.Dashboard
	}
	history = append(history, model.Message{
		Role:      model.RoleAssistant,
		Content:   parsed.CleanText,
		Dashboard: &dash,
	})

	sess.History = history
	sess.Codex = codex.Merge(sess.Codex, parsed.CodexUpdates)
	if parsed.LoreUpdate != nil && *parsed.LoreUpdate != "" {
		sess.Lore = *parsed.LoreUpdate
	}

	saved, err := e.store.Sessions().Upsert(ctx, sess)
	if err != nil {
		return nil, err
	}
	e.notify(sessionID)
	return saved, nil
}

// CurrentDashboard returns the effective dashboard for a session.
func (e *Engine) CurrentDashboard(ctx context.Context, sessionID string) (model.Dashboard, error) {
	sess, err := e.store.Sessions().Get(ctx, sessionID)
	if err != nil {
		return model.Dashboard{}, err
	}
	return session.CurrentDashboard(sess.History), nil
}

// HasActed reports whether the character already acted since the last
// assistant turn.
func (e *Engine) HasActed(ctx context.Context, sessionID, characterName string) (bool, error) {
	sess, err := e.store.Sessions().Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return session.HasActed(sess.History, characterName), nil
}

// ApplyManualDashboardEdit writes an operator-edited dashboard onto the
// session's last carrier message and persists it.
func (e *Engine) ApplyManualDashboardEdit(ctx context.Context, sessionID string, d model.Dashboard) (*model.Session, error) {
	sess, err := e.store.Sessions().Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.History = session.ApplyDashboard(sess.History, d)
	saved, err := e.store.Sessions().Upsert(ctx, sess)
	if err != nil {
		return nil, err
	}
	e.notify(sessionID)
	return saved, nil
}

// ExportChronicle renders the session's assistant turns as one markdown
// document.
func (e *Engine) ExportChronicle(ctx context.Context, sessionID string) (string, error) {
	sess, err := e.store.Sessions().Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	var parts []string
	for _, m := range sess.History {
		if m.Role == model.RoleAssistant {
			parts = append(parts, m.Content)
		}
	}
	return fmt.Sprintf("# %s\n\n%s", sess.Name, strings.Join(parts, "\n\n---\n\n")), nil
}

// Settings returns the effective settings (stored values over config
// defaults).
func (e *Engine) Settings(ctx context.Context) (model.Settings, error) {
	kv, err := e.store.Settings().GetAll(ctx)
	if err != nil {
		return model.Settings{}, err
	}
	return ResolveSettings(kv, e.cfg), nil
}

// SaveSettings persists every settings field as key/value rows.
func (e *Engine) SaveSettings(ctx context.Context, s model.Settings) error {
	kv, err := SettingsToKV(s)
	if err != nil {
		return err
	}
	for k, v := range kv {
		if err := e.store.Settings().Set(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

// RecentLogs returns the newest generator exchanges.
func (e *Engine) RecentLogs(ctx context.Context, limit int) ([]*model.LogRecord, error) {
	return e.store.Logs().Recent(ctx, limit)
}

// AppendLog records one externally supplied generator exchange.
func (e *Engine) AppendLog(ctx context.Context, rec *model.LogRecord) error {
	return e.store.Logs().Append(ctx, rec)
}

func (e *Engine) notify(sessionID string) {
	if e.hub != nil {
		e.hub.Notify(sessionID)
	}
}

func (e *Engine) appendLog(ctx context.Context, sessionID, prompt string, window []model.ChatTurn, response string) {
	request := append([]model.ChatTurn{{Role: model.RoleSystem, Content: prompt}}, window...)
	reqJSON, err := json.Marshal(request)
	if err != nil {
		e.log.Warn().Err(err).Msg("could not marshal generator request for logging")
		return
	}
	if err := e.store.Logs().Append(ctx, &model.LogRecord{
		SessionID: sessionID,
		Request:   string(reqJSON),
		Response:  response,
	}); err != nil {
		e.log.Warn().Err(err).Str("session_id", sessionID).Msg("generator log append failed")
	}
}

func chatWindow(history []model.Message, n int) []model.ChatTurn {
	if n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]model.ChatTurn, 0, len(history))
	for _, m := range history {
		out = append(out, model.ChatTurn{Role: m.Role, Content: m.Content})
	}
	return out
}
