// Package llm defines the language-model collaborator contract for the
// conversational intake path. The collaborator only phrases assistant turns;
// it never makes safety or classification decisions. Emergency detection and
// specialty scoring run locally and work identically with a nil provider.
package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrUnparsableOutput is returned when a provider responds but the output is
// unusable (empty, whitespace, or refused). Callers degrade to a fixed
// apology and hold the conversation stage.
var ErrUnparsableOutput = errors.New("llm: unparsable provider output")

// Provider is a pluggable text-completion backend.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// IsConfigured checks if the provider has valid credentials.
	IsConfigured() bool

	// Complete generates a single assistant reply for the prompt.
	Complete(ctx context.Context, prompt string) (string, error)
}

// IntakeContext is everything the collaborator needs to phrase the next
// assistant turn without re-asking answered questions.
type IntakeContext struct {
	// Collected lists the fields already extracted from the transcript.
	Collected []string
	// History is the transcript rendered one "Role: text" line per entry.
	History []string
	// Action is the instruction for this turn, typically the next fixed
	// question or the closing recommendation.
	Action string
}

// systemPreamble pins the collaborator to its narrow phrasing role. Safety
// decisions are explicitly out of its hands.
const systemPreamble = `You are a friendly medical intake assistant. Your only job is to phrase the requested question or recommendation warmly and concisely, in one or two sentences.
Rules:
- Ask only what the instruction tells you to ask. Never ask about information already collected.
- Never diagnose, never assess urgency, never mention emergencies unless the instruction does.
- Do not add disclaimers; they are appended separately.
- Reply with the message text only, no preamble or labels.`

// BuildIntakePrompt renders the full prompt for one phrasing call.
func BuildIntakePrompt(ic IntakeContext) string {
	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n\nAlready collected:\n")
	if len(ic.Collected) == 0 {
		b.WriteString("- nothing yet\n")
	}
	for _, c := range ic.Collected {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteString("\n")
	}
	b.WriteString("\nConversation so far:\n")
	for _, line := range ic.History {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\nInstruction: ")
	b.WriteString(ic.Action)
	b.WriteString("\n")
	return b.String()
}
