package claude

import (
	"encoding/json"
	"fmt"
	"time"
)

// Reserved exit codes for failures that never reached the CLI's own exit.
const (
	ExitLaunchFailure = 1
	ExitTimeout       = 124
	ExitCancelled     = 130
)

// Usage is the token accounting reported by the CLI.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Result is the canonical outcome of one execution, independent of
// transport and output format.
type Result struct {
	Success      bool            `json:"success"`
	SessionID    string          `json:"sessionId"`
	Output       string          `json:"output"`
	Raw          json.RawMessage `json:"rawOutput,omitempty"`
	Error        string          `json:"error,omitempty"`
	ExitCode     int             `json:"exitCode"`
	DurationMS   int64           `json:"duration"`
	CostUSD      *float64        `json:"cost,omitempty"`
	Usage        *Usage          `json:"usage,omitempty"`
	NumTurns     *int            `json:"numTurns,omitempty"`
	StreamEvents []StreamEvent   `json:"streamEvents,omitempty"`
}

// RawOutput is what a transport captured from the process before any
// format-specific parsing.
type RawOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// ErrorResult builds a failed Result for failures detected outside the CLI
// (launch errors, timeouts, connection errors).
func ErrorResult(msg string, exitCode int, d time.Duration) Result {
	return Result{
		Success:    false,
		ExitCode:   exitCode,
		DurationMS: d.Milliseconds(),
		Error:      msg,
	}
}

// TimeoutResult builds the failed Result for an execution that exceeded
// its timeout.
func TimeoutResult(timeout, d time.Duration) Result {
	return ErrorResult(fmt.Sprintf("execution timed out after %d seconds", int(timeout.Seconds())), ExitTimeout, d)
}

// CancelledResult builds the failed Result for an execution whose parent
// context ended before it finished.
func CancelledResult(err error, d time.Duration) Result {
	return ErrorResult(fmt.Sprintf("execution cancelled: %v", err), ExitCancelled, d)
}
