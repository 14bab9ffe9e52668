package gm

import (
	"context"
	"fmt"

	"github.com/nexusweave/nexus/server/internal/model"
)

// Generator is the oracle that turns a prompt and a message window into
// narrative text. Implementations wrap a concrete model provider.
type Generator interface {
	Generate(ctx context.Context, systemPrompt string, window []model.ChatTurn) (string, error)
}

// ErrorKind categorizes provider failures for the in-band error turn.
type ErrorKind string

const (
	ErrorKindAuth    ErrorKind = "auth"
	ErrorKindNetwork ErrorKind = "network"
	ErrorKindHTTP    ErrorKind = "http"
	ErrorKindEmpty   ErrorKind = "empty"
)

// ProviderError is a categorized generator failure. Its message is shown
// to players verbatim inside the "Nexus Error: ..." turn, so keep it
// actionable.
type ProviderError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error { return e.Err }
