// Package command turns execution options into a transport-neutral Claude
// CLI invocation, and renders it as a shell line for remote transports.
package command

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/LISSConsulting/LISSTech.Relay/internal/claude"
	"github.com/LISSConsulting/LISSTech.Relay/internal/credential"
)

// Spec is one CLI invocation: executable, argv, environment overlay and
// working directory. An empty Dir means the caller's own directory.
type Spec struct {
	Executable string
	Args       []string
	Env        map[string]string
	Dir        string
}

// BuildError reports credential configuration that makes an invocation
// impossible to build. Nothing has been started when it is returned.
type BuildError struct {
	Field string
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("command: invalid %s: %v", e.Field, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// envSchema accepts a JSON object whose values are all strings.
const envSchema = `{
  "type": "object",
  "additionalProperties": {"type": "string"}
}`

var (
	compiledEnvSchema *gojsonschema.Schema
	envSchemaOnce     sync.Once
	envSchemaErr      error
)

func getEnvSchema() (*gojsonschema.Schema, error) {
	envSchemaOnce.Do(func() {
		compiledEnvSchema, envSchemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(envSchema))
	})
	return compiledEnvSchema, envSchemaErr
}

// Build assembles the CLI invocation for opts against cred. It performs no
// I/O. The prompt is always the second argument, right after -p.
func Build(opts claude.Options, cred credential.Credential) (Spec, error) {
	args := []string{"-p", opts.Prompt}

	if opts.OutputFormat != "" {
		args = append(args, "--output-format", string(opts.OutputFormat))
	}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if opts.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(opts.MaxTurns))
	}
	if opts.PermissionMode != "" {
		args = append(args, "--permission-mode", string(opts.PermissionMode))
	}

	if opts.Session.ContinueLast {
		args = append(args, "--continue")
	} else if opts.Session.ID != "" {
		args = append(args, "--resume", opts.Session.ID)
	}

	if len(opts.Tools.Allowed) > 0 {
		args = append(args, "--allowedTools", strings.Join(opts.Tools.Allowed, ","))
	}
	if len(opts.Tools.Disallowed) > 0 {
		args = append(args, "--disallowedTools", strings.Join(opts.Tools.Disallowed, ","))
	}

	if opts.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", opts.SystemPrompt)
	}

	for _, dir := range contextDirs(opts.ContextFiles) {
		args = append(args, "--add-dir", dir)
	}

	args = append(args, opts.AdditionalArgs...)

	spec := Spec{
		Executable: cred.Executable(),
		Args:       args,
		Dir:        opts.WorkingDir,
	}
	if spec.Dir == "" {
		spec.Dir = cred.WorkDir()
	}

	var envVars string
	switch c := cred.(type) {
	case credential.Local:
		envVars = c.EnvVars
	case *credential.Local:
		if c != nil {
			envVars = c.EnvVars
		}
	}
	env, err := parseEnv(envVars)
	if err != nil {
		return Spec{}, err
	}
	spec.Env = env

	return spec, nil
}

// contextDirs returns the unique parent directories of paths in first-seen
// order. Paths without a directory component contribute nothing.
func contextDirs(paths []string) []string {
	var dirs []string
	seen := make(map[string]bool)
	for _, p := range paths {
		i := strings.LastIndex(p, "/")
		if i <= 0 {
			continue
		}
		dir := p[:i]
		if seen[dir] {
			continue
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	return dirs
}

// parseEnv decodes the raw JSON environment overlay of a local credential.
func parseEnv(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "{}" {
		return nil, nil
	}

	schema, err := getEnvSchema()
	if err != nil {
		return nil, fmt.Errorf("command: compile env schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, &BuildError{Field: "env_vars", Err: err}
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, &BuildError{Field: "env_vars", Err: fmt.Errorf("%s", strings.Join(problems, "; "))}
	}

	var env map[string]string
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, &BuildError{Field: "env_vars", Err: err}
	}
	if len(env) == 0 {
		return nil, nil
	}
	return env, nil
}
