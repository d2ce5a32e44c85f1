package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/LISSConsulting/LISSTech.Relay/internal/credential"
)

// Profile is one [profiles.<name>] table. Mode selects which of the
// remaining fields apply; the others must stay empty.
type Profile struct {
	Mode       string `toml:"mode"`
	ClaudePath string `toml:"claude_path"`
	WorkingDir string `toml:"working_dir"`

	// local
	Env     map[string]string `toml:"env"`
	EnvJSON string            `toml:"env_json"` // raw JSON object, overrides env

	// ssh
	Host                  string `toml:"host"`
	Port                  int    `toml:"port"`
	Username              string `toml:"username"`
	AuthMethod            string `toml:"auth_method"`
	PrivateKey            string `toml:"private_key"`
	PrivateKeyPath        string `toml:"private_key_path"`
	Passphrase            string `toml:"passphrase"`
	Password              string `toml:"password"`
	KnownHosts            string `toml:"known_hosts"`
	InsecureIgnoreHostKey bool   `toml:"insecure_ignore_host_key"`

	// docker
	ContainerIdentifier string `toml:"container_identifier"`
	ContainerName       string `toml:"container_name"`
	ContainerID         string `toml:"container_id"`
	DockerHost          string `toml:"docker_host"`
	User                string `toml:"user"`
	Runtime             string `toml:"runtime"`
}

// Credential builds the credential variant Mode names.
func (p Profile) Credential() (credential.Credential, error) {
	mode, err := credential.ParseMode(p.Mode)
	if err != nil {
		return nil, err
	}
	common := credential.Common{ClaudePath: p.ClaudePath, DefaultWorkingDir: p.WorkingDir}

	switch mode {
	case credential.ModeSSH:
		return credential.SSH{
			Common:                common,
			Host:                  p.Host,
			Port:                  p.Port,
			Username:              p.Username,
			AuthMethod:            credential.AuthMethod(p.AuthMethod),
			PrivateKey:            p.PrivateKey,
			PrivateKeyPath:        p.PrivateKeyPath,
			Passphrase:            p.Passphrase,
			Password:              p.Password,
			KnownHostsPath:        p.KnownHosts,
			InsecureIgnoreHostKey: p.InsecureIgnoreHostKey,
		}, nil
	case credential.ModeDocker:
		return credential.Container{
			Common:      common,
			Identifier:  credential.ContainerIdentifier(p.ContainerIdentifier),
			Name:        p.ContainerName,
			ID:          p.ContainerID,
			DockerHost:  p.DockerHost,
			User:        p.User,
			RuntimePath: p.Runtime,
		}, nil
	}

	local := credential.Local{Common: common, EnvVars: p.EnvJSON}
	if local.EnvVars == "" && len(p.Env) > 0 {
		raw, err := json.Marshal(p.Env)
		if err != nil {
			return nil, fmt.Errorf("config: encode env: %w", err)
		}
		local.EnvVars = string(raw)
	}
	return local, nil
}

func (p Profile) validate() []error {
	mode, err := credential.ParseMode(p.Mode)
	if err != nil {
		return []error{fmt.Errorf("mode must be local, ssh or docker")}
	}

	var errs []error
	if p.Port < 0 || p.Port > 65535 {
		errs = append(errs, errors.New("port must be between 0 and 65535"))
	}

	switch mode {
	case credential.ModeLocal:
		if p.EnvJSON != "" && len(p.Env) > 0 {
			errs = append(errs, errors.New("set env or env_json, not both"))
		}
	case credential.ModeSSH:
		if p.Host == "" {
			errs = append(errs, errors.New("host is required for ssh"))
		}
		if p.Username == "" {
			errs = append(errs, errors.New("username is required for ssh"))
		}
		switch credential.AuthMethod(p.AuthMethod) {
		case "", credential.AuthPrivateKey:
			if p.PrivateKey == "" && p.PrivateKeyPath == "" {
				errs = append(errs, errors.New("private_key or private_key_path is required for privateKey auth"))
			}
		case credential.AuthPassword:
			if p.Password == "" {
				errs = append(errs, errors.New("password is required for password auth"))
			}
		case credential.AuthAgent:
		default:
			errs = append(errs, fmt.Errorf("auth_method %q must be privateKey, password or agent", p.AuthMethod))
		}
	case credential.ModeDocker:
		switch credential.ContainerIdentifier(p.ContainerIdentifier) {
		case "", credential.ByName:
			if p.ContainerName == "" {
				errs = append(errs, errors.New("container_name is required when identifying by name"))
			}
		case credential.ByID:
			if p.ContainerID == "" {
				errs = append(errs, errors.New("container_id is required when identifying by id"))
			}
		default:
			errs = append(errs, fmt.Errorf("container_identifier %q must be name or id", p.ContainerIdentifier))
		}
	}
	return errs
}

// expand resolves ${VAR} references in the fields that usually hold
// secrets or host-specific values.
func (p Profile) expand() Profile {
	p.Password = expandRefs(p.Password)
	p.Passphrase = expandRefs(p.Passphrase)
	p.PrivateKey = expandRefs(p.PrivateKey)
	p.PrivateKeyPath = expandRefs(p.PrivateKeyPath)
	p.DockerHost = expandRefs(p.DockerHost)
	p.EnvJSON = expandRefs(p.EnvJSON)
	if len(p.Env) > 0 {
		env := make(map[string]string, len(p.Env))
		for k, v := range p.Env {
			env[k] = expandRefs(v)
		}
		p.Env = env
	}
	return p
}
