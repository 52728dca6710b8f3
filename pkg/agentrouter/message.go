package agentrouter

import (
	"encoding/json"
	"time"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter/llm"
)

// Role identifies who a message speaks for.
type Role string

// Message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation log.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// AuthorName is the producing worker or gate. The router overwrites it
	// for every message it appends on a worker's behalf.
	AuthorName string `json:"author_name,omitempty"`

	// Visible marks the message for end-user display.
	Visible bool `json:"visible"`

	// IsError marks content produced from a contained failure.
	IsError bool `json:"is_error,omitempty"`

	Time time.Time `json:"time"`
}

// UserMessage creates a visible user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Visible: true}
}

// AssistantMessage creates a visible assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content, Visible: true}
}

// SystemMessage creates a hidden system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// ErrorMessage renders err as error content.
func ErrorMessage(err error) Message {
	return Message{Role: RoleAssistant, Content: "error: " + err.Error(), IsError: true}
}

// Filter selects which messages a view includes.
type Filter int

const (
	// FilterAll includes every message.
	FilterAll Filter = iota
	// FilterVisible includes only messages marked Visible.
	FilterVisible
)

// Log is an append-only conversation log. The zero value is an empty log.
//
// Log values are immutable: Append returns a new Log and never writes into
// storage shared with the receiver, so a State snapshot can be kept while
// the run continues.
type Log struct {
	msgs []Message
}

// NewLog creates a log holding msgs.
func NewLog(msgs ...Message) Log {
	return Log{}.Append(msgs...)
}

// Append returns a log with msgs added at the end.
func (l Log) Append(msgs ...Message) Log {
	n := len(l.msgs)
	// Full slice expression caps capacity so append always copies.
	return Log{msgs: append(l.msgs[:n:n], msgs...)}
}

// Len returns the number of messages.
func (l Log) Len() int {
	return len(l.msgs)
}

// Last returns the most recent message, or false for an empty log.
func (l Log) Last() (Message, bool) {
	if len(l.msgs) == 0 {
		return Message{}, false
	}
	return l.msgs[len(l.msgs)-1], true
}

// At returns the i-th message. It panics if i is out of range.
func (l Log) At(i int) Message {
	return l.msgs[i]
}

// View returns a copy of the messages selected by f.
func (l Log) View(f Filter) []Message {
	out := make([]Message, 0, len(l.msgs))
	for _, m := range l.msgs {
		if f == FilterVisible && !m.Visible {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Messages returns a copy of every message.
func (l Log) Messages() []Message {
	return l.View(FilterAll)
}

// HasPrefix reports whether other is a prefix of l.
func (l Log) HasPrefix(other Log) bool {
	if len(other.msgs) > len(l.msgs) {
		return false
	}
	for i, m := range other.msgs {
		if !l.msgs[i].equal(m) {
			return false
		}
	}
	return true
}

func (m Message) equal(o Message) bool {
	return m.Role == o.Role &&
		m.Content == o.Content &&
		m.AuthorName == o.AuthorName &&
		m.Visible == o.Visible &&
		m.IsError == o.IsError &&
		m.Time.Equal(o.Time)
}

// MarshalJSON encodes the log as a plain array.
func (l Log) MarshalJSON() ([]byte, error) {
	if l.msgs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.msgs)
}

// UnmarshalJSON decodes a plain array.
func (l *Log) UnmarshalJSON(data []byte) error {
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return err
	}
	l.msgs = msgs
	return nil
}

// CompletionMessages maps log entries onto completion-request turns,
// keeping the author as the turn name.
func CompletionMessages(msgs []Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		role := llm.RoleUser
		switch m.Role {
		case RoleAssistant:
			role = llm.RoleAssistant
		case RoleSystem:
			role = llm.RoleSystem
		}
		out = append(out, llm.Message{Role: role, Content: m.Content, Name: m.AuthorName})
	}
	return out
}
