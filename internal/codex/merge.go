// Package codex reconciles generator-proposed lore entries with the
// persistent codex of a session.
package codex

import (
	"github.com/google/uuid"

	"github.com/nexusweave/nexus/server/internal/model"
)

// Merge applies updates to existing entries and returns the merged codex.
// Matching is by exact name. A matched update overlays only the fields it
// carries; unmatched updates append as new entries, in order, with a
// generated id when the update has none. Entries are never deleted here.
func Merge(existing []model.CodexEntry, updates []model.CodexUpdate) []model.CodexEntry {
	merged := make([]model.CodexEntry, len(existing))
	copy(merged, existing)

	index := make(map[string]int, len(merged))
	for i, e := range merged {
		index[e.Name] = i
	}

	for _, u := range updates {
		if i, ok := index[u.Name]; ok {
			if u.Type != nil {
				merged[i].Type = *u.Type
			}
			if u.Description != nil {
				merged[i].Description = *u.Description
			}
			if u.Status != nil {
				merged[i].Status = *u.Status
			}
			continue
		}

		entry := model.CodexEntry{
			ID:   u.ID,
			Name: u.Name,
		}
		if entry.ID == "" {
			entry.ID = uuid.New().String()
		}
		if u.Type != nil {
			entry.Type = *u.Type
		}
		if u.Description != nil {
			entry.Description = *u.Description
		}
		if u.Status != nil {
			entry.Status = *u.Status
		}
		index[entry.Name] = len(merged)
		merged = append(merged, entry)
	}

	return merged
}
