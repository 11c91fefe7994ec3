// Package session implements the conversation state machine. A conversation
// starts in AwaitingRequest, moves to Refining on the first successful
// generation and stays there across refinement rounds until reset.
//
// A Conversation is single-writer: it belongs to one in-flight request chain
// and is never mutated concurrently. The server is stateless; clients carry
// the turn history and the server rebuilds the conversation per request.
package session

import (
	"errors"
	"fmt"
)

// Phase identifies where a conversation is in its lifecycle.
type Phase string

const (
	// AwaitingRequest is the initial phase: no request has been analyzed yet.
	AwaitingRequest Phase = "awaiting_request"
	// Refining is entered after the first draft and kept across refinements.
	Refining Phase = "refining"
)

// Turn speakers.
const (
	SpeakerUser      = "user"
	SpeakerAssistant = "assistant"
)

// ErrEmptyRequest is returned when a conversation is begun without request text.
var ErrEmptyRequest = errors.New("original request text must not be empty")

// Turn is one utterance in the conversation history.
type Turn struct {
	Speaker string
	Text    string
}

// Conversation tracks the phase, the immutable original request and the
// append-only turn history of one elicitation session.
type Conversation struct {
	phase           Phase
	originalRequest string
	turns           []Turn
}

// New returns a conversation in the initial phase with no history.
func New() *Conversation {
	return &Conversation{phase: AwaitingRequest}
}

// Restore rebuilds a conversation from a client-supplied turn history. An
// empty history yields a fresh conversation; otherwise the first user turn is
// the original request and the conversation is already refining.
func Restore(turns []Turn) *Conversation {
	if len(turns) == 0 {
		return New()
	}
	c := &Conversation{phase: Refining, turns: append([]Turn(nil), turns...)}
	for _, t := range turns {
		if t.Speaker == SpeakerUser {
			c.originalRequest = t.Text
			break
		}
	}
	return c
}

// Phase returns the current phase.
func (c *Conversation) Phase() Phase {
	return c.phase
}

// OriginalRequest returns the request text the session was begun with.
func (c *Conversation) OriginalRequest() string {
	return c.originalRequest
}

// Turns returns a copy of the history in strict chronological append order.
func (c *Conversation) Turns() []Turn {
	return append([]Turn(nil), c.turns...)
}

// Begin records the first request and the generated draft, appending exactly
// two turns and entering the refining phase.
func (c *Conversation) Begin(request, draft string) error {
	if c.phase != AwaitingRequest {
		return fmt.Errorf("cannot begin a conversation in phase %q", c.phase)
	}
	if request == "" {
		return ErrEmptyRequest
	}
	c.originalRequest = request
	c.turns = append(c.turns,
		Turn{Speaker: SpeakerUser, Text: request},
		Turn{Speaker: SpeakerAssistant, Text: draft},
	)
	c.phase = Refining
	return nil
}

// Refine records one refinement round, appending exactly two turns. The phase
// does not change; refinements may repeat indefinitely.
func (c *Conversation) Refine(instruction, revision string) error {
	if c.phase != Refining {
		return fmt.Errorf("cannot refine a conversation in phase %q", c.phase)
	}
	c.turns = append(c.turns,
		Turn{Speaker: SpeakerUser, Text: instruction},
		Turn{Speaker: SpeakerAssistant, Text: revision},
	)
	return nil
}

// LastDraft returns the most recent assistant turn, the text an approval acts
// on. Approval is read-only: it changes neither phase nor history.
func (c *Conversation) LastDraft() (string, bool) {
	for i := len(c.turns) - 1; i >= 0; i-- {
		if c.turns[i].Speaker == SpeakerAssistant {
			return c.turns[i].Text, true
		}
	}
	return "", false
}

// FormattedHistory renders the full history as "speaker: text" lines for
// refinement prompts. Refinement always operates on the whole history, not
// just the last pair.
func (c *Conversation) FormattedHistory() string {
	var out string
	for i, t := range c.turns {
		if i > 0 {
			out += "\n"
		}
		out += t.Speaker + ": " + t.Text
	}
	return out
}

// Reset discards the history and returns to the initial phase.
func (c *Conversation) Reset() {
	c.phase = AwaitingRequest
	c.originalRequest = ""
	c.turns = nil
}
