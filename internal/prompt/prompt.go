// Package prompt selects and binds the instruction templates used for
// answer generation.
//
// Two fixed templates exist: one for direct legal questions, one for
// mapping a described scenario to the applicable statute. Selection is a
// pure function of Mode; the engine passes Mode per turn, so no template
// state is shared between conversations.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lawontip/lawontip/internal/memory"
)

// Mode is the interaction strategy chosen for a single turn.
type Mode int

// Interaction modes.
const (
	// ModeQuestion answers a direct legal question.
	ModeQuestion Mode = iota

	// ModeScenario identifies the statute or section applicable to a
	// described fact pattern.
	ModeScenario
)

// String returns the wire name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeQuestion:
		return "question"
	case ModeScenario:
		return "scenario"
	default:
		return "unknown"
	}
}

// ErrUnknownMode indicates a mode name that does not map to a template.
var ErrUnknownMode = errors.New("unknown mode")

// ParseMode maps a wire name to a Mode. The empty string defaults to
// ModeQuestion, matching the default input type of the chat surface.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "question":
		return ModeQuestion, nil
	case "scenario":
		return ModeScenario, nil
	default:
		return ModeQuestion, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Placeholder tokens every template must carry.
const (
	placeholderContext  = "{context}"
	placeholderHistory  = "{chat_history}"
	placeholderQuestion = "{question}"
)

// ErrBinding indicates a template that cannot be fully bound - a missing
// placeholder means malformed configuration, not a user-facing condition.
var ErrBinding = errors.New("template binding failed")

// Template is an instruction template with exactly three placeholders:
// retrieved context, serialized chat history, and the current utterance.
type Template struct {
	name string
	text string
}

// Name returns the template identity, stable across calls for a given mode.
func (t Template) Name() string { return t.name }

const questionTemplateText = `As a legal chatbot specializing in Indian law, provide accurate and concise information based on the user's questions.
Focus on relevant context from the knowledge base while avoiding unnecessary details. Your responses should be brief,
professional, and contextually relevant. If a question falls outside the given context, rely on your knowledge base
to generate an appropriate response. Prioritize the user's query and deliver precise information pertaining to Indian legal system.

CONTEXT: {context}
CHAT HISTORY: {chat_history}
QUESTION: {question}
ANSWER:
`

const scenarioTemplateText = `You are a legal expert chatbot specializing in Indian law. When a user describes a scenario, analyze it,
identify the relevant legal issue, and provide the most applicable law, section, or rule from the Indian legal context.
Use the provided context from the knowledge base to support your answer. If the scenario involves exceptions
(such as self-defense), explain the relevant law and its application concisely.

CONTEXT: {context}
CHAT HISTORY: {chat_history}
SCENARIO: {question}
ANSWER:
`

var (
	questionTemplate = Template{name: "legal-question", text: questionTemplateText}
	scenarioTemplate = Template{name: "legal-scenario", text: scenarioTemplateText}
)

// Select returns the template for the given mode. Pure and deterministic:
// the same mode always yields the same template identity.
func Select(mode Mode) Template {
	if mode == ModeScenario {
		return scenarioTemplate
	}
	return questionTemplate
}

// Bind fills the template placeholders and returns the bound prompt.
// It fails with ErrBinding when any of the three placeholders is absent
// from the template text, since that value could not be placed.
// Empty context or history values are valid (warm-up turns).
func (t Template) Bind(context, history, question string) (string, error) {
	for _, ph := range []string{placeholderContext, placeholderHistory, placeholderQuestion} {
		if !strings.Contains(t.text, ph) {
			return "", fmt.Errorf("%w: template %q is missing %s", ErrBinding, t.name, ph)
		}
	}

	bound := strings.NewReplacer(
		placeholderContext, context,
		placeholderHistory, history,
		placeholderQuestion, question,
	).Replace(t.text)

	return bound, nil
}

// FormatContext concatenates retrieved document contents for the context
// placeholder, most relevant first, separated by blank lines.
func FormatContext(contents []string) string {
	return strings.Join(contents, "\n\n")
}

// FormatHistory serializes window turns for the chat_history placeholder,
// oldest first.
func FormatHistory(turns []memory.Turn) string {
	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch turn.Role {
		case memory.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(turn.Text)
	}
	return b.String()
}
