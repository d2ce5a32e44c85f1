package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/LISSConsulting/LISSTech.Relay/internal/claude"
	"github.com/LISSConsulting/LISSTech.Relay/internal/credential"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"default_profile", cfg.DefaultProfile, "local"},
		{"defaults.output_format", cfg.Defaults.OutputFormat, "json"},
		{"defaults.timeout_seconds", cfg.Defaults.TimeoutSeconds, 300},
		{"defaults.max_turns", cfg.Defaults.MaxTurns, 0},
		{"log.level", cfg.Log.Level, "info"},
		{"metrics.addr", cfg.Metrics.Addr, ""},
		{"notifications.on_success", cfg.Notifications.OnSuccess, false},
		{"notifications.on_failure", cfg.Notifications.OnFailure, true},
		{"results.path", cfg.Results.Path, filepath.Join(".relay", "results.jsonl")},
		{"profiles.local.mode", cfg.Profiles["local"].Mode, "local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		t.Setenv("RELAY_TEST_PASSWORD", "s3cret")
		path := writeConfig(t, `
default_profile = "remote"

[defaults]
output_format = "stream-json"
model = "opus"
timeout_seconds = 60

[log]
level = "debug"

[metrics]
addr = "127.0.0.1:9464"

[notifications]
url = "https://ntfy.sh/relay"
on_success = true

[profiles.remote]
mode = "ssh"
host = "build.example.com"
port = 2222
username = "ci"
auth_method = "password"
password = "${RELAY_TEST_PASSWORD}"
working_dir = "/srv/app"

[profiles.box]
mode = "docker"
container_identifier = "id"
container_id = "f00dbabe"
runtime = "podman"
`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Validate: %v", err)
		}

		tests := []struct {
			name string
			got  any
			want any
		}{
			{"default_profile", cfg.DefaultProfile, "remote"},
			{"defaults.output_format", cfg.Defaults.OutputFormat, "stream-json"},
			{"defaults.model", cfg.Defaults.Model, "opus"},
			{"defaults.timeout_seconds", cfg.Defaults.TimeoutSeconds, 60},
			{"log.level", cfg.Log.Level, "debug"},
			{"metrics.addr", cfg.Metrics.Addr, "127.0.0.1:9464"},
			{"notifications.on_success", cfg.Notifications.OnSuccess, true},
			{"notifications.on_failure kept default", cfg.Notifications.OnFailure, true},
			{"profiles.remote.password expanded", cfg.Profiles["remote"].Password, "s3cret"},
			{"profiles.remote.port", cfg.Profiles["remote"].Port, 2222},
			{"profiles.box.runtime", cfg.Profiles["box"].Runtime, "podman"},
			{"profiles.local kept", cfg.Profiles["local"].Mode, "local"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if tt.got != tt.want {
					t.Errorf("got %v, want %v", tt.got, tt.want)
				}
			})
		}
	})

	t.Run("unknown keys rejected", func(t *testing.T) {
		path := writeConfig(t, `
[defaults]
outptu_format = "json"
`)
		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), "defaults.outptu_format") {
			t.Fatalf("expected unknown key error, got %v", err)
		}
	})

	t.Run("invalid toml", func(t *testing.T) {
		path := writeConfig(t, "[defaults\n")
		if _, err := Load(path); err == nil || !strings.HasPrefix(err.Error(), "config: decode") {
			t.Fatalf("expected decode error, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestLoad_WalksUp(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("[log]\nlevel = \"warn\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	chdir(t, nested)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level = %q", cfg.Log.Level)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoad_NotFound(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := Load("")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad output format", func(c *Config) { c.Defaults.OutputFormat = "yaml" }, "defaults.output_format"},
		{"bad permission mode", func(c *Config) { c.Defaults.PermissionMode = "yolo" }, "defaults.permission_mode"},
		{"negative timeout", func(c *Config) { c.Defaults.TimeoutSeconds = -1 }, "defaults.timeout_seconds"},
		{"negative max turns", func(c *Config) { c.Defaults.MaxTurns = -2 }, "defaults.max_turns"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad metrics addr", func(c *Config) { c.Metrics.Addr = "9464" }, "metrics.addr"},
		{"bad notification url", func(c *Config) { c.Notifications.URL = "ftp://x" }, "notifications.url"},
		{"missing default profile", func(c *Config) { c.DefaultProfile = "gone" }, `default_profile "gone"`},
		{"bad mode", func(c *Config) { c.Profiles["x"] = Profile{Mode: "k8s"} }, "profiles.x: mode"},
		{"ssh without host", func(c *Config) {
			c.Profiles["r"] = Profile{Mode: "ssh", Username: "u", AuthMethod: "agent"}
		}, "profiles.r: host is required"},
		{"ssh without key", func(c *Config) {
			c.Profiles["r"] = Profile{Mode: "ssh", Host: "h", Username: "u"}
		}, "private_key or private_key_path"},
		{"ssh password auth without password", func(c *Config) {
			c.Profiles["r"] = Profile{Mode: "ssh", Host: "h", Username: "u", AuthMethod: "password"}
		}, "password is required"},
		{"ssh bad auth method", func(c *Config) {
			c.Profiles["r"] = Profile{Mode: "ssh", Host: "h", Username: "u", AuthMethod: "kerberos"}
		}, "auth_method"},
		{"docker without name", func(c *Config) { c.Profiles["d"] = Profile{Mode: "docker"} }, "container_name is required"},
		{"docker by id without id", func(c *Config) {
			c.Profiles["d"] = Profile{Mode: "docker", ContainerIdentifier: "id", ContainerName: "n"}
		}, "container_id is required"},
		{"docker bad identifier", func(c *Config) {
			c.Profiles["d"] = Profile{Mode: "docker", ContainerIdentifier: "label"}
		}, "container_identifier"},
		{"local env twice", func(c *Config) {
			c.Profiles["l"] = Profile{Mode: "local", EnvJSON: `{"A":"1"}`, Env: map[string]string{"B": "2"}}
		}, "env or env_json"},
		{"bad port", func(c *Config) {
			c.Profiles["r"] = Profile{Mode: "ssh", Host: "h", Username: "u", AuthMethod: "agent", Port: 70000}
		}, "port must be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Defaults.OutputFormat = "xml"
	cfg.Log.Level = "chatty"
	cfg.Profiles["d"] = Profile{Mode: "docker"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	if n := len(strings.Split(err.Error(), "\n")); n != 3 {
		t.Errorf("expected 3 joined problems, got %d: %v", n, err)
	}
}

func TestProfileLookup(t *testing.T) {
	cfg := Defaults()
	cfg.Profiles["remote"] = Profile{Mode: "ssh"}

	if p, err := cfg.Profile(""); err != nil || p.Mode != "local" {
		t.Errorf("default profile = %+v, %v", p, err)
	}
	if p, err := cfg.Profile("remote"); err != nil || p.Mode != "ssh" {
		t.Errorf("remote profile = %+v, %v", p, err)
	}
	_, err := cfg.Profile("missing")
	if err == nil || !strings.Contains(err.Error(), "local, remote") {
		t.Errorf("unknown profile error = %v", err)
	}
	cfg.DefaultProfile = ""
	if _, err := cfg.Profile(""); err == nil {
		t.Error("expected error without a default profile")
	}
}

func TestProfileCredential(t *testing.T) {
	t.Run("local with env table", func(t *testing.T) {
		cred, err := Profile{Mode: "local", ClaudePath: "/opt/claude", Env: map[string]string{"A": "1"}}.Credential()
		if err != nil {
			t.Fatal(err)
		}
		local, ok := cred.(credential.Local)
		if !ok {
			t.Fatalf("got %T", cred)
		}
		if local.EnvVars != `{"A":"1"}` || local.Executable() != "/opt/claude" {
			t.Errorf("local = %+v", local)
		}
	})

	t.Run("local env_json wins", func(t *testing.T) {
		cred, _ := Profile{Mode: "local", EnvJSON: `{"B":"2"}`}.Credential()
		if cred.(credential.Local).EnvVars != `{"B":"2"}` {
			t.Errorf("EnvVars = %q", cred.(credential.Local).EnvVars)
		}
	})

	t.Run("ssh", func(t *testing.T) {
		cred, err := Profile{Mode: "SSH", Host: "h", Port: 2200, Username: "u", AuthMethod: "agent", WorkingDir: "/w"}.Credential()
		if err != nil {
			t.Fatal(err)
		}
		s, ok := cred.(credential.SSH)
		if !ok {
			t.Fatalf("got %T", cred)
		}
		if s.Host != "h" || s.EffectivePort() != 2200 || s.Method() != credential.AuthAgent || s.WorkDir() != "/w" {
			t.Errorf("ssh = %+v", s)
		}
	})

	t.Run("docker", func(t *testing.T) {
		cred, err := Profile{Mode: "docker", ContainerIdentifier: "id", ContainerID: "abc", Runtime: "podman"}.Credential()
		if err != nil {
			t.Fatal(err)
		}
		c, ok := cred.(credential.Container)
		if !ok {
			t.Fatalf("got %T", cred)
		}
		if c.Ref() != "abc" || c.Runtime() != "podman" {
			t.Errorf("container = %+v", c)
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		if _, err := (Profile{Mode: "lambda"}).Credential(); err == nil {
			t.Error("expected error")
		}
	})
}

func TestApplyDefaults(t *testing.T) {
	cfg := Defaults()
	cfg.Defaults.Model = "sonnet"
	cfg.Defaults.PermissionMode = "plan"
	cfg.Defaults.MaxTurns = 4

	p := claude.Params{Model: "opus"}
	cfg.ApplyDefaults(&p)
	if p.Model != "opus" {
		t.Errorf("caller model overwritten: %q", p.Model)
	}
	if p.OutputFormat != claude.FormatJSON || p.PermissionMode != claude.PermissionPlan || p.MaxTurns != 4 || p.TimeoutSeconds != 300 {
		t.Errorf("defaults not applied: %+v", p)
	}
}

func TestExpandRefs(t *testing.T) {
	t.Setenv("RELAY_A", "alpha")
	tests := map[string]string{
		"${RELAY_A}":         "alpha",
		"pre-${RELAY_A}-suf": "pre-alpha-suf",
		"$RELAY_A":           "$RELAY_A",
		"pa$$word":           "pa$$word",
		"${RELAY_UNSET_XYZ}": "",
	}
	for in, want := range tests {
		if got := expandRefs(in); got != want {
			t.Errorf("expandRefs(%q) = %q, want %q", in, got, want)
		}
	}
}
