package claude

import (
	"fmt"
	"strings"
	"time"
)

// Operation names the kind of invocation a caller asks for.
type Operation string

const (
	OpExecutePrompt      Operation = "executePrompt"
	OpExecuteWithContext Operation = "executeWithContext"
	OpContinueSession    Operation = "continueSession"
	OpResumeSession      Operation = "resumeSession"
)

// ParseOperation accepts an operation name, case-insensitively.
func ParseOperation(s string) (Operation, error) {
	for _, op := range []Operation{OpExecutePrompt, OpExecuteWithContext, OpContinueSession, OpResumeSession} {
		if strings.EqualFold(s, string(op)) {
			return op, nil
		}
	}
	return "", fmt.Errorf("claude: unknown operation %q", s)
}

// CustomModel is the model value that defers to Params.CustomModel.
const CustomModel = "custom"

// Params are the loosely typed inputs a hosting caller collects (flags, job
// files, form fields) before they are turned into Options.
type Params struct {
	Prompt          string
	Model           string
	CustomModel     string
	SessionID       string
	AllowedTools    string // comma separated
	DisallowedTools string // comma separated
	ContextFiles    []string
	AdditionalDirs  string // comma separated
	OutputFormat    OutputFormat
	WorkingDir      string
	MaxTurns        int
	PermissionMode  PermissionMode
	AdditionalArgs  string // space separated
	TimeoutSeconds  int
	SystemPrompt    string
}

// BuildOptions turns Params into Options for the given operation. Session
// fields are only honoured by the session operations and context files only
// by executeWithContext.
func BuildOptions(op Operation, p Params) Options {
	opts := Options{
		Prompt:         p.Prompt,
		WorkingDir:     p.WorkingDir,
		OutputFormat:   p.OutputFormat,
		Model:          p.Model,
		MaxTurns:       p.MaxTurns,
		PermissionMode: p.PermissionMode,
		Tools: ToolPermissions{
			Allowed:    splitList(p.AllowedTools, ","),
			Disallowed: splitList(p.DisallowedTools, ","),
		},
		SystemPrompt:   p.SystemPrompt,
		Timeout:        DefaultTimeout,
	}

	if args := strings.Fields(p.AdditionalArgs); len(args) > 0 {
		opts.AdditionalArgs = args
	}
	if opts.OutputFormat == "" {
		opts.OutputFormat = FormatJSON
	}
	if p.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(p.TimeoutSeconds) * time.Second
	}
	if opts.Model == CustomModel {
		opts.Model = strings.TrimSpace(p.CustomModel)
	}
	if opts.MaxTurns < 0 {
		opts.MaxTurns = 0
	}

	switch op {
	case OpContinueSession:
		opts.Session = Session{ContinueLast: true}
	case OpResumeSession:
		opts.Session = Session{ID: strings.TrimSpace(p.SessionID)}
	case OpExecuteWithContext:
		files := make([]string, 0, len(p.ContextFiles))
		for _, f := range p.ContextFiles {
			if f = strings.TrimSpace(f); f != "" {
				files = append(files, f)
			}
		}
		// A trailing slash makes the directory itself the derived --add-dir.
		for _, dir := range splitList(p.AdditionalDirs, ",") {
			files = append(files, strings.TrimRight(dir, "/")+"/")
		}
		opts.ContextFiles = files
	}

	return opts
}

func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
