package main

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/LISSConsulting/LISSTech.Relay/internal/config"
)

func TestRunCmd(t *testing.T) {
	cfgPath, _ := setUpProject(t, "")

	out, err := execute(t, "", "run", "hello world", "--config", cfgPath, "--model", "sonnet", "--max-turns", "3", "--allowed-tools", "Read, Grep")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	res, argv := decodeResult(t, out)
	if !res.Success || res.SessionID != "sess-fake" {
		t.Errorf("result = %+v", res)
	}
	want := []string{"-p", "hello world", "--output-format", "json", "--model", "sonnet", "--max-turns", "3", "--allowedTools", "Read,Grep"}
	for i := 0; i+1 < len(want); i += 2 {
		idx := slices.Index(argv, want[i])
		if idx < 0 || idx+1 >= len(argv) || argv[idx+1] != want[i+1] {
			t.Errorf("argv %q missing %s %s", argv, want[i], want[i+1])
		}
	}
	if !strings.Contains(out, "\n  \"success\": true") {
		t.Errorf("output is not indented JSON:\n%s", out)
	}
}

func TestRunCmd_Stdin(t *testing.T) {
	cfgPath, _ := setUpProject(t, "")
	out, err := execute(t, "  from stdin \n", "run", "-", "--config", cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	_, argv := decodeResult(t, out)
	if len(argv) < 2 || argv[0] != "-p" || argv[1] != "from stdin" {
		t.Errorf("argv = %q", argv)
	}

	if _, err := execute(t, "   ", "run", "-", "--config", cfgPath); err == nil {
		t.Error("expected error for empty stdin prompt")
	}
}

func TestRunCmd_Failure(t *testing.T) {
	cfgPath, _ := setUpProject(t, "")
	t.Setenv("_FAKE_RELAY_EXIT", "2")

	out, err := execute(t, "", "run", "hi", "--config", cfgPath)
	if !errors.Is(err, errUnsuccessful) {
		t.Fatalf("err = %v, want errUnsuccessful", err)
	}
	res, _ := decodeResult(t, out)
	if res.Success || res.ExitCode != 2 {
		t.Errorf("result = %+v", res)
	}

	if _, err := execute(t, "", "run", "hi", "--config", cfgPath, "--continue-on-fail"); err != nil {
		t.Errorf("--continue-on-fail: %v", err)
	}
}

func TestRunCmd_InvalidFlags(t *testing.T) {
	cfgPath, _ := setUpProject(t, "")
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"format", []string{"--format", "xml"}, "--format"},
		{"permission mode", []string{"--permission-mode", "yolo"}, "--permission-mode"},
		{"profile", []string{"--profile", "ghost"}, `unknown profile "ghost"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"run", "hi", "--config", cfgPath}, tt.args...)
			_, err := execute(t, "", args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestContextCmd(t *testing.T) {
	cfgPath, _ := setUpProject(t, "")
	out, err := execute(t, "", "context", "review", "--config", cfgPath,
		"--file", "src/main.go", "--file", "src/util.go", "--add-dir", "docs")
	if err != nil {
		t.Fatal(err)
	}
	_, argv := decodeResult(t, out)
	var dirs []string
	for i, a := range argv {
		if a == "--add-dir" && i+1 < len(argv) {
			dirs = append(dirs, argv[i+1])
		}
	}
	if !slices.Contains(dirs, "src") || !slices.Contains(dirs, "docs") {
		t.Errorf("--add-dir values = %q (argv %q)", dirs, argv)
	}
}

func TestSessionCmds(t *testing.T) {
	cfgPath, _ := setUpProject(t, "")

	out, err := execute(t, "", "continue", "next step", "--config", cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, argv := decodeResult(t, out); !slices.Contains(argv, "--continue") {
		t.Errorf("continue argv = %q", argv)
	}

	out, err = execute(t, "", "resume", "sess-42", "go on", "--config", cfgPath, "--profile", "other")
	if err != nil {
		t.Fatal(err)
	}
	_, argv := decodeResult(t, out)
	idx := slices.Index(argv, "--resume")
	if idx < 0 || argv[idx+1] != "sess-42" {
		t.Errorf("resume argv = %q", argv)
	}

	if _, err := execute(t, "", "resume", "  ", "go on", "--config", cfgPath); err == nil {
		t.Error("expected error for blank session id")
	}
}

func TestRunCmd_NotifiesFailure(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
	}))
	defer srv.Close()

	cfgPath, _ := setUpProject(t, "\n[notifications]\nurl = \""+srv.URL+"\"\non_failure = true\n")
	if _, err := execute(t, "", "run", "ok", "--config", cfgPath); err != nil {
		t.Fatal(err)
	}
	t.Setenv("_FAKE_RELAY_EXIT", "1")
	_, _ = execute(t, "", "run", "bad", "--config", cfgPath)

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 1 || !strings.HasPrefix(bodies[0], "executePrompt failed (exit 1)") {
		t.Errorf("notifications = %q", bodies)
	}
}

func TestTestCmd(t *testing.T) {
	cfgPath, _ := setUpProject(t, "")
	out, err := execute(t, "", "test", "--config", cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if out != "local (local): available\n" {
		t.Errorf("out = %q", out)
	}

	t.Setenv("_FAKE_RELAY_EXIT", "1")
	out, err = execute(t, "", "test", "--config", cfgPath, "--profile", "other")
	if err == nil || !strings.Contains(out, "other (local): unavailable") {
		t.Errorf("out = %q, err = %v", out, err)
	}
}

func TestFormatProfiles(t *testing.T) {
	cfg := config.Defaults()
	cfg.Profiles["box"] = config.Profile{Mode: "ssh", Host: "box.internal", Username: "ci", Port: 2222}
	cfg.Profiles["sandbox"] = config.Profile{Mode: "docker", ContainerName: "claude-sandbox"}
	got := formatProfiles(&cfg)

	for _, want := range []string{
		"Profiles\n────────\n",
		"ci@box.internal:2222",
		"claude-sandbox",
		"* local",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output should contain %q\ngot:\n%s", want, got)
		}
	}
	if i, j := strings.Index(got, "box"), strings.Index(got, "sandbox"); i > j {
		t.Errorf("profiles not sorted:\n%s", got)
	}
}

func TestProfilesCmd(t *testing.T) {
	cfgPath, _ := setUpProject(t, "")
	out, err := execute(t, "", "profiles", "--config", cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "* local") || !strings.Contains(out, "  other") {
		t.Errorf("out = %q", out)
	}
}

func TestFormatScaffoldResult(t *testing.T) {
	tests := []struct {
		name     string
		created  []string
		contains []string
		excludes []string
	}{
		{
			name:     "nothing created",
			created:  nil,
			contains: []string{"All files already exist"},
			excludes: []string{"Created"},
		},
		{
			name:     "multiple files created",
			created:  []string{"relay.toml", "jobs.example.yaml", ".gitignore"},
			contains: []string{"Created relay.toml", "Created jobs.example.yaml", "Created .gitignore"},
			excludes: []string{"already exist"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatScaffoldResult(tt.created)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("output should contain %q\ngot:\n%s", want, got)
				}
			}
			for _, exclude := range tt.excludes {
				if strings.Contains(got, exclude) {
					t.Errorf("output should NOT contain %q\ngot:\n%s", exclude, got)
				}
			}
		})
	}
}

func TestInitCmd(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("PATH", "")
	t.Setenv("HOME", dir)

	out, err := execute(t, "", "init")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Created "+filepath.Join(dir, config.FileName)) {
		t.Errorf("out = %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, config.JobsExampleFile)); err != nil {
		t.Errorf("jobs example missing: %v", err)
	}

	out, err = execute(t, "", "init")
	if err != nil || !strings.Contains(out, "already exist") {
		t.Errorf("second init = %q, %v", out, err)
	}
}
