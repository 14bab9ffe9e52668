// Package parser extracts structured state blocks from raw generator output.
//
// The generator is asked to emit narrative text followed by tagged JSON
// blocks. The tags are a loose protocol, so everything here treats the
// input as untrusted: a malformed block is logged and dropped, never an
// error past this boundary.
package parser

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/nexusweave/nexus/server/internal/model"
)

// Result is the outcome of parsing one generator response.
// Nil pointer fields mean the corresponding block was absent or rejected.
type Result struct {
	CleanText    string
	Dashboard    *model.Dashboard
	CodexUpdates []model.CodexUpdate
	LoreUpdate   *string
}

// Dashboard and codex tags are case-sensitive; lore_update is matched
// case-insensitively. The asymmetry is part of the protocol.
var (
	dashboardRe = regexp.MustCompile(`(?s)<dashboard_json>(.*?)</dashboard_json>`)
	codexRe     = regexp.MustCompile(`(?s)<codex_json>(.*?)</codex_json>`)
	loreRe      = regexp.MustCompile(`(?is)<lore_update>(.*?)</lore_update>`)

	narrativeHeadingRe = regexp.MustCompile(`(?i)^###\s*(Narrative|Нарратив)\s*\n?`)
	actionsBlockRe     = regexp.MustCompile(`(?i)###\s*(Actions & Rolls|Векторы действий|Действия)[^<]*`)
)

// Parse splits a raw generator response into narrative text and the
// structured blocks embedded in it. Only the first occurrence of each
// tag pair is honored, and the tag span is removed from the clean text
// whether or not its payload decodes.
func Parse(text string) Result {
	res := Result{CleanText: text}

	if m := dashboardRe.FindStringSubmatch(text); m != nil {
		d, err := decodeDashboard([]byte(m[1]))
		if err != nil {
			log.Error().Err(err).Msg("dashboard block rejected")
		} else {
			res.Dashboard = d
		}
		res.CleanText = strings.TrimSpace(stripFirst(dashboardRe, res.CleanText))
	}

	if m := codexRe.FindStringSubmatch(text); m != nil {
		updates, err := decodeCodexUpdates([]byte(m[1]))
		if err != nil {
			log.Error().Err(err).Msg("codex block rejected")
		} else {
			res.CodexUpdates = updates
		}
		res.CleanText = strings.TrimSpace(stripFirst(codexRe, res.CleanText))
	}

	if m := loreRe.FindStringSubmatch(text); m != nil {
		lore := strings.TrimSpace(m[1])
		res.LoreUpdate = &lore
		res.CleanText = strings.TrimSpace(stripFirst(loreRe, res.CleanText))
	}

	// The model sometimes emits section headings despite instructions.
	res.CleanText = strings.TrimSpace(stripFirst(narrativeHeadingRe, res.CleanText))
	res.CleanText = strings.TrimSpace(stripFirst(actionsBlockRe, res.CleanText))

	return res
}

// stripFirst removes the first match of re from s, leaving the rest intact.
func stripFirst(re *regexp.Regexp, s string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + s[loc[1]:]
}
