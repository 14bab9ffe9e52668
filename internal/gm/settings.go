package gm

import (
	"encoding/json"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/nexusweave/nexus/server/internal/config"
	"github.com/nexusweave/nexus/server/internal/model"
)

// ResolveSettings builds effective settings from the stored key/value rows,
// falling back to config defaults for anything unset. Stored mechanics are
// merged over the built-in catalogue by id.
func ResolveSettings(kv map[string]string, cfg *config.Config) model.Settings {
	s := model.Settings{
		Provider:       cfg.Provider,
		ModelURL:       cfg.ModelURL,
		APIKey:         cfg.APIKey,
		ModelName:      cfg.ModelName,
		SystemPrompt:   SystemPrompt,
		FontSize:       16,
		FontFamily:     "sans",
		Mechanics:      DefaultMechanics(),
		LoggingEnabled: cfg.LogRequests,
	}

	if v := kv["provider"]; v != "" {
		s.Provider = v
	}
	if v := kv["modelUrl"]; v != "" {
		s.ModelURL = v
	}
	if v := kv["apiKey"]; v != "" {
		s.APIKey = v
	}
	if v := kv["modelName"]; v != "" {
		s.ModelName = v
	}
	if v := kv["systemPrompt"]; v != "" {
		s.SystemPrompt = v
	}
	if v := kv["fontSize"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.FontSize = n
		}
	}
	if v := kv["fontFamily"]; v != "" {
		s.FontFamily = v
	}
	if v, ok := kv["loggingEnabled"]; ok {
		s.LoggingEnabled = v == "true"
	}

	if v := kv["mechanics"]; v != "" {
		var stored []model.Mechanic
		if err := json.Unmarshal([]byte(v), &stored); err != nil {
			log.Error().Err(err).Msg("stored mechanics unreadable, using defaults")
		} else {
			s.Mechanics = MergeMechanics(stored)
		}
	}

	return s
}

// SettingsToKV flattens settings into the key/value rows the store keeps.
func SettingsToKV(s model.Settings) (map[string]string, error) {
	kv := map[string]string{
		"provider":     s.Provider,
		"modelUrl":     s.ModelURL,
		"apiKey":       s.APIKey,
		"modelName":    s.ModelName,
		"systemPrompt": s.SystemPrompt,
		"fontSize":     strconv.Itoa(s.FontSize),
		"fontFamily":   s.FontFamily,
	}
	if s.LoggingEnabled {
		kv["loggingEnabled"] = "true"
	} else {
		kv["loggingEnabled"] = "false"
	}
	if s.Mechanics != nil {
		b, err := json.Marshal(s.Mechanics)
		if err != nil {
			return nil, err
		}
		kv["mechanics"] = string(b)
	}
	return kv, nil
}
