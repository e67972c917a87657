package conversation

import (
	"time"

	"rfpchat/internal/api"
)

// Role identifies who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the displayed conversation. The sequence is
// append-only: the client never edits or removes a past message.
//
// Decorative marks a display-only turn (the error strings appended when a
// send fails). Decorative turns stay visible but are never serialized into a
// chat request: only genuinely received assistant replies count as history.
type Message struct {
	Role       Role
	Content    string
	Time       time.Time
	Decorative bool
}

// Greeting is the seeded system message shown before any interaction. System
// messages are UI-only and excluded from every outgoing payload.
const Greeting = "Hi I am your trusty RFP assistant.\nPlease upload a document and log in to get started."

// historyTurns converts the genuine conversational turns of msgs into wire
// form, skipping system and decorative entries.
func historyTurns(msgs []Message) []api.Turn {
	turns := make([]api.Turn, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem || m.Decorative {
			continue
		}
		turns = append(turns, api.Turn{Role: string(m.Role), Content: m.Content})
	}
	return turns
}
