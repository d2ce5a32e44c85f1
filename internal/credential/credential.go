// Package credential models the connection record a hosting caller supplies
// for one execution. Exactly one variant exists per record, selected by its
// Mode.
package credential

import (
	"fmt"
	"strings"

	"github.com/LISSConsulting/LISSTech.Relay/internal/claude"
)

// Mode is the explicit tag that selects a credential variant and, with it,
// the transport.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeSSH    Mode = "ssh"
	ModeDocker Mode = "docker"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeLocal, ModeSSH, ModeDocker:
		return m, nil
	}
	return "", fmt.Errorf("credential: unsupported connection mode %q", s)
}

// Credential is implemented only by Local, SSH and Container.
type Credential interface {
	Mode() Mode
	// Executable is the Claude CLI path on the target, defaulted.
	Executable() string
	// WorkDir is the target directory used when a call sets none.
	WorkDir() string

	sealed()
}

// Common holds the fields every variant carries.
type Common struct {
	ClaudePath        string
	DefaultWorkingDir string
}

// Executable returns ClaudePath or claude.DefaultExecutable.
func (c Common) Executable() string {
	if p := strings.TrimSpace(c.ClaudePath); p != "" {
		return p
	}
	return claude.DefaultExecutable
}

// WorkDir returns the default working directory.
func (c Common) WorkDir() string { return c.DefaultWorkingDir }

// Local runs the CLI on this machine.
type Local struct {
	Common
	// EnvVars is a raw JSON object of environment variables layered over
	// the parent environment. Empty or "{}" means none.
	EnvVars string
}

func (Local) Mode() Mode { return ModeLocal }
func (Local) sealed()    {}

// AuthMethod selects how the SSH transport authenticates.
type AuthMethod string

const (
	AuthPrivateKey AuthMethod = "privateKey"
	AuthPassword   AuthMethod = "password"
	AuthAgent      AuthMethod = "agent"
)

// DefaultSSHPort is used when SSH.Port is unset.
const DefaultSSHPort = 22

// SSH runs the CLI on a remote host over an SSH session.
type SSH struct {
	Common
	Host       string
	Port       int
	Username   string
	AuthMethod AuthMethod

	// privateKey auth: inline key material wins over a key file path.
	PrivateKey     string
	PrivateKeyPath string
	Passphrase     string

	// password auth
	Password string

	// KnownHostsPath defaults to ~/.ssh/known_hosts.
	KnownHostsPath        string
	InsecureIgnoreHostKey bool
}

func (SSH) Mode() Mode { return ModeSSH }
func (SSH) sealed()    {}

// Method returns AuthMethod, defaulting to private key auth.
func (s SSH) Method() AuthMethod {
	if s.AuthMethod == "" {
		return AuthPrivateKey
	}
	return s.AuthMethod
}

// EffectivePort returns Port or DefaultSSHPort.
func (s SSH) EffectivePort() int {
	if s.Port <= 0 {
		return DefaultSSHPort
	}
	return s.Port
}

// ContainerIdentifier says whether Container.Name or Container.ID names the
// target.
type ContainerIdentifier string

const (
	ByName ContainerIdentifier = "name"
	ByID   ContainerIdentifier = "id"
)

// DefaultRuntime is the container runtime CLI used when RuntimePath is unset.
const DefaultRuntime = "docker"

// Container runs the CLI inside a running container through the runtime's
// exec subcommand.
type Container struct {
	Common
	Identifier ContainerIdentifier
	Name       string
	ID         string
	// DockerHost overrides the runtime endpoint through DOCKER_HOST.
	DockerHost string
	// User is passed as -u when set.
	User string
	// RuntimePath is the runtime CLI, e.g. "podman". Defaults to docker.
	RuntimePath string
}

func (Container) Mode() Mode { return ModeDocker }
func (Container) sealed()    {}

// Ref returns the container name or id selected by Identifier.
func (c Container) Ref() string {
	if c.Identifier == ByID {
		return strings.TrimSpace(c.ID)
	}
	return strings.TrimSpace(c.Name)
}

// Runtime returns RuntimePath or DefaultRuntime.
func (c Container) Runtime() string {
	if p := strings.TrimSpace(c.RuntimePath); p != "" {
		return p
	}
	return DefaultRuntime
}
