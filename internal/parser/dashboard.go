package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nexusweave/nexus/server/internal/model"
)

// Clamp bounds for generator-supplied counters.
const (
	maxStress            = 10
	maxTokens            = 3
	maxRelationshipLevel = 10
	maxActions           = 3
)

// flexInt decodes a JSON number or a string holding an integer.
// Models routinely quote numbers ("doomPool": "3"); anything else,
// including fractional floats, is an error.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("expected integer, got %q", s)
		}
		*f = flexInt(n)
		return nil
	}
	var num float64
	if err := json.Unmarshal(b, &num); err != nil {
		return fmt.Errorf("expected integer: %w", err)
	}
	if num != math.Trunc(num) {
		return fmt.Errorf("expected integer, got %v", num)
	}
	*f = flexInt(int(num))
	return nil
}

// Intermediate shapes so numeric coercion happens field by field. Any
// decode failure rejects the whole dashboard block.
type dashboardDoc struct {
	Characters    []characterDoc       `json:"characters"`
	Threats       []threatDoc          `json:"threats"`
	SceneAspects  []string             `json:"sceneAspects"`
	Clocks        []clockDoc           `json:"clocks"`
	DoomPool      flexInt              `json:"doomPool"`
	Echoes        []string             `json:"echoes"`
	Atmosphere    string               `json:"atmosphere"`
	ThreatLevel   *flexInt             `json:"threatLevel"`
	SuggestedRoll *model.SuggestedRoll `json:"suggestedRoll"`
}

type characterDoc struct {
	Name          string                  `json:"name"`
	HP            string                  `json:"hp"`
	Stress        flexInt                 `json:"stress"`
	Tokens        flexInt                 `json:"tokens"`
	Condition     string                  `json:"condition"`
	Goal          string                  `json:"goal"`
	Inventory     []string                `json:"inventory"`
	Equipment     []model.EquipmentSlot   `json:"equipment"`
	Relationships []relationshipDoc       `json:"relationships"`
	Actions       []model.CharacterAction `json:"actions"`
}

type relationshipDoc struct {
	Target string  `json:"target"`
	Level  flexInt `json:"level"`
	Status string  `json:"status"`
}

type threatDoc struct {
	Name     string   `json:"name"`
	HP       string   `json:"hp"`
	Features []string `json:"features"`
}

type clockDoc struct {
	Name     string  `json:"name"`
	Progress flexInt `json:"progress"`
	Total    flexInt `json:"total"`
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func decodeDashboard(raw []byte) (*model.Dashboard, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var doc dashboardDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	d := model.Dashboard{
		Characters:    make([]model.Character, 0, len(doc.Characters)),
		Threats:       make([]model.Threat, 0, len(doc.Threats)),
		SceneAspects:  doc.SceneAspects,
		Clocks:        make([]model.Clock, 0, len(doc.Clocks)),
		DoomPool:      clamp(int(doc.DoomPool), 0, math.MaxInt),
		Echoes:        doc.Echoes,
		Atmosphere:    doc.Atmosphere,
		SuggestedRoll: doc.SuggestedRoll,
	}
	if d.SceneAspects == nil {
		d.SceneAspects = []string{}
	}
	if d.Echoes == nil {
		d.Echoes = []string{}
	}
	if doc.ThreatLevel != nil {
		lvl := int(*doc.ThreatLevel)
		d.ThreatLevel = &lvl
	}

	for _, c := range doc.Characters {
		actions := c.Actions
		if len(actions) > maxActions {
			actions = actions[:maxActions]
		}
		rels := make([]model.Relationship, 0, len(c.Relationships))
		for _, r := range c.Relationships {
			rels = append(rels, model.Relationship{
				Target: r.Target,
				Level:  clamp(int(r.Level), -maxRelationshipLevel, maxRelationshipLevel),
				Status: r.Status,
			})
		}
		d.Characters = append(d.Characters, model.Character{
			Name:          c.Name,
			HP:            c.HP,
			Stress:        clamp(int(c.Stress), 0, maxStress),
			Tokens:        clamp(int(c.Tokens), 0, maxTokens),
			Condition:     c.Condition,
			Goal:          c.Goal,
			Inventory:     c.Inventory,
			Equipment:     c.Equipment,
			Relationships: rels,
			Actions:       actions,
		})
	}

	for _, t := range doc.Threats {
		features := t.Features
		if features == nil {
			features = []string{}
		}
		d.Threats = append(d.Threats, model.Threat{Name: t.Name, HP: t.HP, Features: features})
	}

	for _, c := range doc.Clocks {
		d.Clocks = append(d.Clocks, model.Clock{
			Name:     c.Name,
			Progress: clamp(int(c.Progress), 0, math.MaxInt),
			Total:    clamp(int(c.Total), 0, math.MaxInt),
		})
	}

	return &d, nil
}

func decodeCodexUpdates(raw []byte) ([]model.CodexUpdate, error) {
	var updates []model.CodexUpdate
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, err
	}
	for i, u := range updates {
		if u.Name == "" {
			return nil, fmt.Errorf("codex update %d has no name", i)
		}
	}
	return updates, nil
}
