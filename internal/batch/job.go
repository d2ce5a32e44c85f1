// Package batch runs a YAML file of Claude jobs concurrently and records
// every result.
package batch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/LISSConsulting/LISSTech.Relay/internal/claude"
)

// DefaultConcurrency applies when neither the file nor the caller sets one.
const DefaultConcurrency = 1

// File is a decoded jobs file.
type File struct {
	Concurrency int   `yaml:"concurrency"`
	Jobs        []Job `yaml:"jobs"`
}

// Job is one execution in a jobs file. Empty fields fall back to the
// [defaults] section of relay.toml.
type Job struct {
	Name            string   `yaml:"name"`
	Operation       string   `yaml:"operation"`
	Prompt          string   `yaml:"prompt"`
	Profile         string   `yaml:"profile"`
	Model           string   `yaml:"model"`
	CustomModel     string   `yaml:"custom_model"`
	OutputFormat    string   `yaml:"output_format"`
	SessionID       string   `yaml:"session_id"`
	ContextFiles    []string `yaml:"context_files"`
	AdditionalDirs  []string `yaml:"additional_dirs"`
	AllowedTools    []string `yaml:"allowed_tools"`
	DisallowedTools []string `yaml:"disallowed_tools"`
	PermissionMode  string   `yaml:"permission_mode"`
	MaxTurns        int      `yaml:"max_turns"`
	SystemPrompt    string   `yaml:"system_prompt"`
	WorkingDir      string   `yaml:"working_dir"`
	AdditionalArgs  string   `yaml:"additional_args"`
	TimeoutSeconds  int      `yaml:"timeout_seconds"`
	ContinueOnFail  bool     `yaml:"continue_on_fail"`
}

// Op returns the job's operation, executePrompt when unset. Load has
// already rejected unknown names.
func (j Job) Op() claude.Operation {
	if j.Operation == "" {
		return claude.OpExecutePrompt
	}
	op, err := claude.ParseOperation(j.Operation)
	if err != nil {
		return claude.OpExecutePrompt
	}
	return op
}

// Params converts the job into operation parameters.
func (j Job) Params() claude.Params {
	return claude.Params{
		Prompt:          j.Prompt,
		Model:           j.Model,
		CustomModel:     j.CustomModel,
		SessionID:       j.SessionID,
		AllowedTools:    strings.Join(j.AllowedTools, ","),
		DisallowedTools: strings.Join(j.DisallowedTools, ","),
		ContextFiles:    j.ContextFiles,
		AdditionalDirs:  strings.Join(j.AdditionalDirs, ","),
		OutputFormat:    claude.OutputFormat(j.OutputFormat),
		WorkingDir:      j.WorkingDir,
		MaxTurns:        j.MaxTurns,
		PermissionMode:  claude.PermissionMode(j.PermissionMode),
		AdditionalArgs:  j.AdditionalArgs,
		TimeoutSeconds:  j.TimeoutSeconds,
		SystemPrompt:    j.SystemPrompt,
	}
}

// Load reads and validates a jobs file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("batch: read %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("batch: %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates jobs file content. Unknown keys are an
// error. Unnamed jobs are named job-<n> by position.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}
	for i := range f.Jobs {
		if f.Jobs[i].Name == "" {
			f.Jobs[i].Name = fmt.Sprintf("job-%d", i+1)
		}
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate reports every problem in the file.
func (f *File) Validate() error {
	var errs []error
	if f.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must be >= 0, got %d", f.Concurrency))
	}
	if len(f.Jobs) == 0 {
		errs = append(errs, errors.New("no jobs defined"))
	}
	seen := make(map[string]bool, len(f.Jobs))
	for _, j := range f.Jobs {
		if seen[j.Name] {
			errs = append(errs, fmt.Errorf("job %q: duplicate name", j.Name))
		}
		seen[j.Name] = true
		for _, err := range j.validate() {
			errs = append(errs, fmt.Errorf("job %q: %w", j.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (j Job) validate() []error {
	var errs []error
	if strings.TrimSpace(j.Prompt) == "" {
		errs = append(errs, errors.New("prompt is required"))
	}
	op := claude.OpExecutePrompt
	if j.Operation != "" {
		parsed, err := claude.ParseOperation(j.Operation)
		if err != nil {
			errs = append(errs, err)
		}
		op = parsed
	}
	if op == claude.OpResumeSession && strings.TrimSpace(j.SessionID) == "" {
		errs = append(errs, errors.New("resumeSession requires session_id"))
	}
	if !claude.OutputFormat(j.OutputFormat).Valid() {
		errs = append(errs, fmt.Errorf("output_format %q is not text, json or stream-json", j.OutputFormat))
	}
	if !claude.PermissionMode(j.PermissionMode).Valid() {
		errs = append(errs, fmt.Errorf("permission_mode %q is not recognised", j.PermissionMode))
	}
	if j.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("timeout_seconds must be >= 0, got %d", j.TimeoutSeconds))
	}
	if j.MaxTurns < 0 {
		errs = append(errs, fmt.Errorf("max_turns must be >= 0, got %d", j.MaxTurns))
	}
	return errs
}
