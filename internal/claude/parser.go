package claude

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StructuredOutput is the single JSON document printed by
// --output-format json.
type StructuredOutput struct {
	SessionID          string      `json:"session_id"`
	Result             string      `json:"result,omitempty"`
	IsError            bool        `json:"is_error"`
	TotalCostUSD       *float64    `json:"total_cost_usd,omitempty"`
	TotalDurationMS    *float64    `json:"total_duration_ms,omitempty"`
	TotalDurationAPIMS *float64    `json:"total_duration_api_ms,omitempty"`
	NumTurns           *int        `json:"num_turns,omitempty"`
	Usage              *TokenUsage `json:"usage,omitempty"`

	// Raw is the line the document was decoded from. Nil for the neutral
	// default returned when stdout held no JSON.
	Raw json.RawMessage `json:"-"`
}

// ParseError reports a stdout line that looked like a JSON document but did
// not decode. It is the one output failure that propagates to callers.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("claude: parse json output (line %d): %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseJSON extracts the structured document from json-mode stdout. Lines
// that do not start with "{" are treated as noise; among the rest the last
// one wins. Output with no JSON line yields a neutral default.
func ParseJSON(stdout string) (StructuredOutput, error) {
	var out StructuredOutput
	found := false

	for i, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var doc StructuredOutput
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			return StructuredOutput{}, &ParseError{Line: i + 1, Text: line, Err: err}
		}
		doc.Raw = json.RawMessage(line)
		out = doc
		found = true
	}

	if !found {
		return StructuredOutput{}, nil
	}
	return out, nil
}

// ParseStream decodes every "{" line of stream-json stdout into an event,
// in arrival order. Lines that are not JSON, or do not decode, are skipped.
func ParseStream(stdout string) []StreamEvent {
	var events []StreamEvent
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var ev StreamEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events
}

// Normalize converts captured output into a Result according to format.
// The only error it returns is a *ParseError from json format.
func Normalize(format OutputFormat, raw RawOutput) (Result, error) {
	switch format {
	case FormatJSON:
		doc, err := ParseJSON(raw.Stdout)
		if err != nil {
			return Result{}, err
		}
		return NormalizeJSON(doc, raw), nil
	case FormatStreamJSON:
		return NormalizeStream(ParseStream(raw.Stdout), raw), nil
	default:
		return NormalizeText(raw), nil
	}
}

// NormalizeText treats stdout as the answer.
func NormalizeText(raw RawOutput) Result {
	res := Result{
		Success:    raw.ExitCode == 0,
		Output:     raw.Stdout,
		ExitCode:   raw.ExitCode,
		DurationMS: raw.Duration.Milliseconds(),
	}
	if raw.ExitCode != 0 {
		res.Error = raw.Stderr
	}
	return res
}

// NormalizeJSON maps a structured document onto a Result.
func NormalizeJSON(doc StructuredOutput, raw RawOutput) Result {
	success := raw.ExitCode == 0 && !doc.IsError

	res := Result{
		Success:    success,
		SessionID:  doc.SessionID,
		Output:     doc.Result,
		Raw:        doc.Raw,
		ExitCode:   raw.ExitCode,
		DurationMS: raw.Duration.Milliseconds(),
		CostUSD:    doc.TotalCostUSD,
		NumTurns:   doc.NumTurns,
		Usage:      convertUsage(doc.Usage),
	}
	if !success {
		res.Error = firstNonEmpty(raw.Stderr, doc.Result)
	}
	return res
}

// streamSummary is the fold of an event sequence down to the fields the
// Result needs.
type streamSummary struct {
	initSessionID string
	terminal      *StreamEvent
}

func summarize(events []StreamEvent) streamSummary {
	var s streamSummary
	for i := range events {
		ev := &events[i]
		switch ev.Type {
		case EventSystem:
			if ev.Subtype == SubtypeInit && s.initSessionID == "" {
				s.initSessionID = ev.SessionID
			}
		case EventResult:
			s.terminal = ev
		}
	}
	return s
}

// NormalizeStream reduces a stream-json event sequence onto a Result. A
// missing result event is not an error; the Result then carries only what
// the exit code and the init event say.
func NormalizeStream(events []StreamEvent, raw RawOutput) Result {
	s := summarize(events)

	var terminal StreamEvent
	if s.terminal != nil {
		terminal = *s.terminal
	}

	success := raw.ExitCode == 0 && !terminal.Failed()

	res := Result{
		Success:      success,
		SessionID:    firstNonEmpty(s.initSessionID, terminal.SessionID),
		Output:       terminal.Result,
		ExitCode:     raw.ExitCode,
		DurationMS:   raw.Duration.Milliseconds(),
		CostUSD:      terminal.TotalCostUSD,
		NumTurns:     terminal.NumTurns,
		Usage:        convertUsage(terminal.Usage),
		StreamEvents: events,
	}
	if !success {
		res.Error = firstNonEmpty(raw.Stderr, terminal.Result)
	}
	return res
}

func convertUsage(u *TokenUsage) *Usage {
	if u == nil {
		return nil
	}
	return &Usage{InputTokens: u.InputTokens, OutputTokens: u.OutputTokens}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
