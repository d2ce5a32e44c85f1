package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// JobsExampleFile is the sample batch job file ScaffoldProject writes.
const JobsExampleFile = "jobs.example.yaml"

// InitFile writes a default relay.toml template to the given directory.
// claudePath, when non-empty, is written as the local profile's
// claude_path.
func InitFile(dir, claudePath string) (string, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config: %s already exists at %s", FileName, path)
	}

	claudeLine := `# claude_path = "claude"`
	if claudePath != "" {
		claudeLine = fmt.Sprintf("claude_path = %q", claudePath)
	}
	content := strings.ReplaceAll(configTemplate, "{{claude_path}}", claudeLine)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("config: write %s: %w", path, err)
	}
	return path, nil
}

// ScaffoldProject creates relay.toml, a sample batch job file and a
// .gitignore entry for the result log in dir. Files that already exist are
// left untouched. Returns the list of created or modified paths.
func ScaffoldProject(dir, claudePath string) ([]string, error) {
	var created []string

	tomlPath := filepath.Join(dir, FileName)
	if _, err := os.Stat(tomlPath); os.IsNotExist(err) {
		if _, initErr := InitFile(dir, claudePath); initErr != nil {
			return created, initErr
		}
		created = append(created, tomlPath)
	}

	jobsPath := filepath.Join(dir, JobsExampleFile)
	if _, err := os.Stat(jobsPath); os.IsNotExist(err) {
		if writeErr := os.WriteFile(jobsPath, []byte(jobsTemplate), 0644); writeErr != nil {
			return created, fmt.Errorf("scaffold: write %s: %w", jobsPath, writeErr)
		}
		created = append(created, jobsPath)
	}

	// .gitignore: keep the result log out of version control
	const gitignoreEntry = ".relay/"
	gitignorePath := filepath.Join(dir, ".gitignore")
	existing, err := os.ReadFile(gitignorePath)
	if os.IsNotExist(err) {
		if writeErr := os.WriteFile(gitignorePath, []byte(gitignoreEntry+"\n"), 0644); writeErr != nil {
			return created, fmt.Errorf("scaffold: write %s: %w", gitignorePath, writeErr)
		}
		created = append(created, gitignorePath)
	} else if err != nil {
		return created, fmt.Errorf("scaffold: read %s: %w", gitignorePath, err)
	} else if !strings.Contains(string(existing), gitignoreEntry) {
		content := string(existing)
		if len(content) > 0 && content[len(content)-1] != '\n' {
			content += "\n"
		}
		content += gitignoreEntry + "\n"
		if writeErr := os.WriteFile(gitignorePath, []byte(content), 0644); writeErr != nil {
			return created, fmt.Errorf("scaffold: write %s: %w", gitignorePath, writeErr)
		}
		created = append(created, gitignorePath)
	}

	return created, nil
}

const configTemplate = `# relay.toml: execution defaults and connection profiles for relay.
# Secrets may reference environment variables as ${NAME}.

default_profile = "local"

[defaults]
output_format = "json"    # text, json or stream-json
model = ""                # empty = CLI default
permission_mode = ""      # default, acceptEdits, plan, dontAsk, bypassPermissions, delegate
timeout_seconds = 300
max_turns = 0             # 0 = CLI default

[log]
level = "info"            # overridden by --log-level or RELAY_LOG_LEVEL

[metrics]
addr = ""                 # e.g. "127.0.0.1:9464"; empty = disabled

[notifications]
url = ""                  # ntfy.sh topic URL or any HTTP webhook (empty = disabled)
on_success = false
on_failure = true

[results]
path = ".relay/results.jsonl"

[profiles.local]
mode = "local"
{{claude_path}}
# working_dir = "/path/to/project"
# env = { ANTHROPIC_API_KEY = "${ANTHROPIC_API_KEY}" }

# [profiles.buildbox]
# mode = "ssh"
# host = "buildbox.internal"
# port = 22
# username = "ci"
# auth_method = "privateKey"     # privateKey, password or agent
# private_key_path = "~/.ssh/id_ed25519"
# passphrase = "${BUILDBOX_KEY_PASSPHRASE}"
# known_hosts = "~/.ssh/known_hosts"
# working_dir = "/srv/app"

# [profiles.sandbox]
# mode = "docker"
# container_identifier = "name"  # name or id
# container_name = "claude-sandbox"
# user = "node"
# runtime = "docker"             # or podman
# working_dir = "/workspace"
`

const jobsTemplate = `# Batch jobs for "relay batch". Each job runs once; jobs run concurrently.
concurrency: 2
jobs:
  - name: summarize
    prompt: "Summarize the README in three bullet points."
  - name: review
    operation: executeWithContext
    prompt: "Review these files for obvious bugs."
    context_files:
      - ./cmd/main.go
    continue_on_fail: true
`
