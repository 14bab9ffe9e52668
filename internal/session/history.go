// Package session holds pure helpers over a session's message history:
// locating the current dashboard snapshot, applying manual edits, and
// deciding whether a character has already acted this turn.
package session

import (
	"fmt"
	"strings"

	"github.com/nexusweave/nexus/server/internal/model"
)

// ManualUpdateContent marks a synthetic system message that exists only
// to carry a manually edited dashboard.
const ManualUpdateContent = "Manual Dashboard Update"

// CurrentDashboard returns the dashboard of the most recent message that
// carries one, or the initial placeholder when none does.
func CurrentDashboard(history []model.Message) model.Dashboard {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Dashboard != nil {
			return *history[i].Dashboard
		}
	}
	return model.InitialDashboard()
}

// ApplyDashboard writes d onto the last dashboard-carrying message, or
// appends a synthetic system carrier when the history has none yet.
// The input slice is not mutated.
func ApplyDashboard(history []model.Message, d model.Dashboard) []model.Message {
	out := make([]model.Message, len(history))
	copy(out, history)

	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Dashboard != nil {
			out[i].Dashboard = &d
			return out
		}
	}
	return append(out, model.Message{
		Role:      model.RoleSystem,
		Content:   ManualUpdateContent,
		Dashboard: &d,
	})
}

// ActionAnnotation is the marker prefixed to a user message when a
// specific character takes the action.
func ActionAnnotation(characterName string) string {
	return fmt.Sprintf("[PLAYER ACTION: %s]", characterName)
}

// AnnotateAction formats a user turn attributed to a character.
func AnnotateAction(characterName, content string) string {
	return ActionAnnotation(characterName) + " " + content
}

// HasActed reports whether the named character submitted an action since
// the last assistant message. Only user messages after that point count.
func HasActed(history []model.Message, characterName string) bool {
	marker := ActionAnnotation(characterName)
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m.Role == model.RoleAssistant {
			return false
		}
		if m.Role == model.RoleUser && strings.Contains(m.Content, marker) {
			return true
		}
	}
	return false
}
