package model

import "time"

// Message roles. The generator only ever produces assistant turns; system
// turns exist for synthetic state-only messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Session is the authoritative record for one running game.
type Session struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Genre      string       `json:"genre"`
	Setting    string       `json:"setting"`
	Style      string       `json:"style"`
	History    []Message    `json:"history"`
	Lore       string       `json:"lore"`
	Codex      []CodexEntry `json:"codex"`
	CreateTime time.Time    `json:"createTime"`
	UpdateTime time.Time    `json:"updateTime"`
}

// Message is one turn in a session. Immutable once appended, except that
// the attached dashboard may be rewritten in place (see session.ApplyDashboard).
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Dashboard *Dashboard `json:"dashboard,omitempty"`
}

// Dashboard is a self-contained snapshot of derived game state. There is no
// delta encoding between snapshots.
type Dashboard struct {
	Characters    []Character    `json:"characters"`
	Threats       []Threat       `json:"threats"`
	SceneAspects  []string       `json:"sceneAspects"`
	Clocks        []Clock        `json:"clocks"`
	DoomPool      int            `json:"doomPool"`
	Echoes        []string       `json:"echoes"`
	Atmosphere    string         `json:"atmosphere"`
	ThreatLevel   *int           `json:"threatLevel,omitempty"`
	SuggestedRoll *SuggestedRoll `json:"suggestedRoll,omitempty"`
}

// InitialDashboard returns the placeholder snapshot used before the
// generator has produced a real one. Collections are non-nil so they
// serialize as [] rather than null.
func InitialDashboard() Dashboard {
	zero := 0
	return Dashboard{
		Characters:   []Character{},
		Threats:      []Threat{},
		SceneAspects: []string{},
		Clocks:       []Clock{},
		Echoes:       []string{},
		Atmosphere:   "Waiting for initialization...",
		ThreatLevel:  &zero,
	}
}

// Character is keyed by name within a dashboard.
// HP is deliberately a "current/max" formatted string, not two integers.
type Character struct {
	Name          string            `json:"name"`
	HP            string            `json:"hp"`
	Stress        int               `json:"stress"`
	Tokens        int               `json:"tokens"`
	Condition     string            `json:"condition"`
	Goal          string            `json:"goal"`
	Inventory     []string          `json:"inventory,omitempty"`
	Equipment     []EquipmentSlot   `json:"equipment,omitempty"`
	Relationships []Relationship    `json:"relationships,omitempty"`
	Actions       []CharacterAction `json:"actions,omitempty"`
}

// EquipmentSlot pairs a dynamic slot name with the item occupying it.
type EquipmentSlot struct {
	Slot string `json:"slot"`
	Item string `json:"item"`
}

// Relationship tracks a character's standing with an NPC. Level runs -10..10.
type Relationship struct {
	Target string `json:"target"`
	Level  int    `json:"level"`
	Status string `json:"status"`
}

// CharacterAction is a generator-suggested action vector.
type CharacterAction struct {
	Category    string `json:"category"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Threat is an active opposition element in the scene.
type Threat struct {
	Name     string   `json:"name"`
	HP       string   `json:"hp"`
	Features []string `json:"features"`
}

// Clock is a named progress counter.
type Clock struct {
	Name     string `json:"name"`
	Progress int    `json:"progress"`
	Total    int    `json:"total"`
}

// SuggestedRoll hints which dice mechanic fits the current beat.
type SuggestedRoll struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// CodexEntry is a persistent lore fact. Identity is the name
// (case-sensitive exact match) for merge purposes; ID is assigned on insert.
type CodexEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
}

// CodexUpdate is an upsert emitted by the generator. Nil fields mean
// "leave the existing value alone" when the update matches an entry.
type CodexUpdate struct {
	ID          string  `json:"id,omitempty"`
	Name        string  `json:"name"`
	Type        *string `json:"type,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// ChatTurn is the minimal role/text pair handed to the generator oracle.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Mechanic is a toggleable rules fragment injected into the system prompt.
type Mechanic struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

// Settings holds operator-tunable generator and UI preferences, persisted
// as a key/value table.
type Settings struct {
	Provider       string     `json:"provider"`
	ModelURL       string     `json:"modelUrl"`
	APIKey         string     `json:"apiKey"`
	ModelName      string     `json:"modelName"`
	SystemPrompt   string     `json:"systemPrompt"`
	FontSize       int        `json:"fontSize"`
	FontFamily     string     `json:"fontFamily"`
	LoggingEnabled bool       `json:"loggingEnabled"`
	Mechanics      []Mechanic `json:"mechanics,omitempty"`
}

// LogRecord captures one generator exchange for debugging.
type LogRecord struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"sessionId"`
	Request    string    `json:"request"`
	Response   string    `json:"response"`
	CreateTime time.Time `json:"createTime"`
}
