// Package claude holds the Claude CLI execution model: invocation options,
// the canonical Result, stream-json events and the output normalizers.
package claude

import "encoding/json"

// EventType identifies the kind of stream-json event.
type EventType string

const (
	EventSystem    EventType = "system"
	EventAssistant EventType = "assistant"
	EventUser      EventType = "user"
	EventResult    EventType = "result"
)

// Subtypes that carry meaning for normalization.
const (
	SubtypeInit                 = "init"
	SubtypeSuccess              = "success"
	SubtypeError                = "error"
	SubtypeErrorMaxTurns        = "error_max_turns"
	SubtypeErrorDuringExecution = "error_during_execution"
)

// failureSubtypes are terminal result subtypes that mark the run as failed
// even when the CLI exits 0.
var failureSubtypes = map[string]bool{
	SubtypeError:                true,
	SubtypeErrorMaxTurns:        true,
	SubtypeErrorDuringExecution: true,
}

// TokenUsage is the usage block as printed by the CLI.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ContentBlock is one item of an assistant or user message.
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// tool_result; content is either a string or a list of blocks
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// Message is the payload of assistant and user events.
type Message struct {
	Content []ContentBlock `json:"content"`
}

// UnmarshalJSON accepts content as either a list of blocks or a bare string,
// which the CLI prints for plain user turns.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire struct {
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.Content = nil
	if len(wire.Content) == 0 || string(wire.Content) == "null" {
		return nil
	}
	if wire.Content[0] == '"' {
		var text string
		if err := json.Unmarshal(wire.Content, &text); err != nil {
			return err
		}
		m.Content = []ContentBlock{{Type: "text", Text: text}}
		return nil
	}
	return json.Unmarshal(wire.Content, &m.Content)
}

// StreamEvent is one line of stream-json output. Type selects which of the
// payload fields are populated:
//
//	system    Model, Cwd, Tools (subtype init)
//	assistant Message with text and tool_use blocks
//	user      Message with tool_result blocks
//	result    Result, IsError, cost, turns and usage
//
// Unknown types are kept with only the common fields set.
type StreamEvent struct {
	Type      EventType
	Subtype   string
	SessionID string

	Model string
	Cwd   string
	Tools []string

	Message *Message

	Result       string
	IsError      bool
	TotalCostUSD *float64
	DurationMS   *float64
	NumTurns     *int
	Usage        *TokenUsage

	raw json.RawMessage
}

// streamEnvelope is the union of all fields any event type may carry.
type streamEnvelope struct {
	Type         EventType   `json:"type"`
	Subtype      string      `json:"subtype,omitempty"`
	SessionID    string      `json:"session_id,omitempty"`
	Model        string      `json:"model,omitempty"`
	Cwd          string      `json:"cwd,omitempty"`
	Tools        []string    `json:"tools,omitempty"`
	Message      *Message    `json:"message,omitempty"`
	Result       string      `json:"result,omitempty"`
	IsError      bool        `json:"is_error,omitempty"`
	TotalCostUSD *float64    `json:"total_cost_usd,omitempty"`
	DurationMS   *float64    `json:"duration_ms,omitempty"`
	NumTurns     *int        `json:"num_turns,omitempty"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// UnmarshalJSON decodes an event and keeps the original bytes for
// re-emission.
func (e *StreamEvent) UnmarshalJSON(data []byte) error {
	var env streamEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	ev := StreamEvent{
		Type:      env.Type,
		Subtype:   env.Subtype,
		SessionID: env.SessionID,
		raw:       append(json.RawMessage(nil), data...),
	}
	switch env.Type {
	case EventSystem:
		ev.Model = env.Model
		ev.Cwd = env.Cwd
		ev.Tools = env.Tools
	case EventAssistant, EventUser:
		ev.Message = env.Message
	case EventResult:
		ev.Result = env.Result
		ev.IsError = env.IsError
		ev.TotalCostUSD = env.TotalCostUSD
		ev.DurationMS = env.DurationMS
		ev.NumTurns = env.NumTurns
		ev.Usage = env.Usage
	}
	*e = ev
	return nil
}

// MarshalJSON re-emits the event exactly as the CLI printed it. Events built
// in code are encoded from their fields.
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	if len(e.raw) > 0 {
		return e.raw, nil
	}
	env := streamEnvelope{
		Type:         e.Type,
		Subtype:      e.Subtype,
		SessionID:    e.SessionID,
		Model:        e.Model,
		Cwd:          e.Cwd,
		Tools:        e.Tools,
		Message:      e.Message,
		Result:       e.Result,
		IsError:      e.IsError,
		TotalCostUSD: e.TotalCostUSD,
		DurationMS:   e.DurationMS,
		NumTurns:     e.NumTurns,
		Usage:        e.Usage,
	}
	return json.Marshal(env)
}

// Failed reports whether a result event's subtype marks the run as failed.
func (e StreamEvent) Failed() bool {
	return e.Type == EventResult && failureSubtypes[e.Subtype]
}
