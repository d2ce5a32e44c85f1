package claude

import "time"

// DefaultExecutable is the Claude CLI binary name used when a credential
// does not configure a path.
const DefaultExecutable = "claude"

// DefaultTimeout bounds a single execution when Options.Timeout is unset.
const DefaultTimeout = 300 * time.Second

// OutputFormat selects how the CLI prints its answer and how the output is
// normalized afterwards.
type OutputFormat string

const (
	FormatText       OutputFormat = "text"
	FormatJSON       OutputFormat = "json"
	FormatStreamJSON OutputFormat = "stream-json"
)

// Valid reports whether f is one of the formats the CLI understands.
// The empty format is valid and means "let the CLI decide" (text).
func (f OutputFormat) Valid() bool {
	switch f {
	case "", FormatText, FormatJSON, FormatStreamJSON:
		return true
	}
	return false
}

// PermissionMode is passed through to --permission-mode.
type PermissionMode string

const (
	PermissionDefault           PermissionMode = "default"
	PermissionAcceptEdits       PermissionMode = "acceptEdits"
	PermissionPlan              PermissionMode = "plan"
	PermissionDontAsk           PermissionMode = "dontAsk"
	PermissionBypassPermissions PermissionMode = "bypassPermissions"
	PermissionDelegate          PermissionMode = "delegate"
)

// Valid reports whether m is empty or a known permission mode.
func (m PermissionMode) Valid() bool {
	switch m {
	case "", PermissionDefault, PermissionAcceptEdits, PermissionPlan,
		PermissionDontAsk, PermissionBypassPermissions, PermissionDelegate:
		return true
	}
	return false
}

// ToolPermissions lists tool patterns the CLI may or may not use without
// prompting.
type ToolPermissions struct {
	Allowed    []string
	Disallowed []string
}

// Session selects prior conversation state. ContinueLast wins over ID when
// both are set.
type Session struct {
	ID           string
	ContinueLast bool
}

// Options configures one headless Claude CLI invocation. It is built once
// per call and never modified by the executors.
type Options struct {
	Prompt         string
	WorkingDir     string
	OutputFormat   OutputFormat
	Model          string
	MaxTurns       int
	PermissionMode PermissionMode
	Tools          ToolPermissions
	Session        Session
	ContextFiles   []string
	AdditionalArgs []string
	Timeout        time.Duration
	SystemPrompt   string
}

// EffectiveTimeout returns Timeout, or DefaultTimeout when it is not positive.
func (o Options) EffectiveTimeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}
