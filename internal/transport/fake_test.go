package transport

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

// init turns the test binary into a fake Claude CLI (_FAKE_CLAUDE=1) or a
// fake container runtime (_FAKE_RUNTIME=1). It runs before flag parsing so
// CLI flags such as --output-format never reach the test runner.
func init() {
	if os.Getenv("_FAKE_RUNTIME") == "1" {
		fakeRuntime()
	}
	if os.Getenv("_FAKE_CLAUDE") != "1" {
		return
	}
	if os.Getenv("_FAKE_CLAUDE_IGNORE_TERM") == "1" {
		signal.Ignore(syscall.SIGTERM)
	}
	if os.Getenv("_FAKE_CLAUDE_ECHO") == "1" {
		fakeEcho()
	}
	if f := os.Getenv("_FAKE_CLAUDE_STDOUT_FILE"); f != "" {
		if data, err := os.ReadFile(f); err == nil {
			_, _ = os.Stdout.Write(data)
		}
	}
	if s := os.Getenv("_FAKE_CLAUDE_STDERR"); s != "" {
		_, _ = fmt.Fprint(os.Stderr, s)
	}
	if os.Getenv("_FAKE_CLAUDE_SLEEP") == "1" {
		time.Sleep(time.Minute)
	}
	code := 0
	if s := os.Getenv("_FAKE_CLAUDE_EXIT"); s != "" {
		_, _ = fmt.Sscan(s, &code)
	}
	os.Exit(code)
}

// probe is what the echo fake reports about how it was started.
type probe struct {
	Args []string `json:"args"`
	Dir  string   `json:"dir"`
	Env  string   `json:"env"`
}

// fakeEcho prints one json-format document whose session_id is the prompt
// and whose result is the probe.
func fakeEcho() {
	dir, _ := os.Getwd()
	p := probe{Args: os.Args[1:], Dir: dir, Env: os.Getenv(os.Getenv("_FAKE_CLAUDE_ECHO_ENV"))}
	body, _ := json.Marshal(p)
	prompt := ""
	if len(os.Args) > 2 && os.Args[1] == "-p" {
		prompt = os.Args[2]
	}
	doc, _ := json.Marshal(map[string]any{
		"session_id":     prompt,
		"result":         string(body),
		"is_error":       false,
		"total_cost_usd": 0.01,
		"num_turns":      1,
	})
	fmt.Println(string(doc))
	os.Exit(0)
}

// fakeRuntime prints its argv and DOCKER_HOST as JSON.
func fakeRuntime() {
	body, _ := json.Marshal(map[string]any{
		"args":        os.Args[1:],
		"docker_host": os.Getenv("DOCKER_HOST"),
	})
	fmt.Print(string(body))
	code := 0
	if s := os.Getenv("_FAKE_RUNTIME_EXIT"); s != "" {
		_, _ = fmt.Sscan(s, &code)
	}
	os.Exit(code)
}

func testExecutable(t *testing.T) string {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	return exe
}

// setUpFakeClaude configures the test binary as a fake CLI that prints
// stdout and stderr and exits with exitCode.
func setUpFakeClaude(t *testing.T, exitCode int, stdout, stderr string) string {
	t.Helper()
	exe := testExecutable(t)
	stdoutFile := filepath.Join(t.TempDir(), "stdout.txt")
	if err := os.WriteFile(stdoutFile, []byte(stdout), 0o644); err != nil {
		t.Fatalf("write stdout file: %v", err)
	}
	t.Setenv("_FAKE_CLAUDE", "1")
	t.Setenv("_FAKE_CLAUDE_STDOUT_FILE", stdoutFile)
	if exitCode != 0 {
		t.Setenv("_FAKE_CLAUDE_EXIT", fmt.Sprintf("%d", exitCode))
	}
	if stderr != "" {
		t.Setenv("_FAKE_CLAUDE_STDERR", stderr)
	}
	return exe
}

// shortKillGrace lowers the SIGTERM to SIGKILL window for one test.
func shortKillGrace(t *testing.T) {
	t.Helper()
	prev := killGrace
	killGrace = 100 * time.Millisecond
	t.Cleanup(func() { killGrace = prev })
}
