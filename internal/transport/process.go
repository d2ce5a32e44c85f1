package transport

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/LISSConsulting/LISSTech.Relay/internal/claude"
)

// killGrace is how long a process gets between SIGTERM and SIGKILL.
var killGrace = 5 * time.Second

// runProcess starts cmd with stdin closed, captures its output, and waits
// for it to exit, for timeout to pass, or for ctx to end. A start failure
// is reported as launchPrefix plus the error.
func runProcess(ctx context.Context, cmd *exec.Cmd, timeout time.Duration, launchPrefix string) outcome {
	var stdout, stderr bytes.Buffer
	cmd.Stdin = nil
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Bounds Wait when a grandchild keeps the output pipes open.
	cmd.WaitDelay = killGrace

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return failed(fmt.Sprintf("%s: %v", launchPrefix, err), start)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		o := outcome{raw: claude.RawOutput{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
		}}
		if cmd.ProcessState == nil {
			o.failure = fmt.Sprintf("%s: %v", launchPrefix, err)
			return o
		}
		o.raw.ExitCode = exitStatus(cmd.ProcessState)
		return o
	case <-timer.C:
	case <-ctx.Done():
	}

	terminate(cmd.Process, done)
	return deadline(ctx, start)
}

// terminate asks p to stop, kills it after killGrace, and returns once
// Wait has reported.
func terminate(p *os.Process, done <-chan error) {
	if err := p.Signal(syscall.SIGTERM); err != nil {
		_ = p.Kill()
	}
	grace := time.NewTimer(killGrace)
	defer grace.Stop()
	select {
	case <-done:
		return
	case <-grace.C:
	}
	_ = p.Kill()
	<-done
}

// exitStatus maps a finished process to a shell-style exit code, 128+n
// for death by signal n.
func exitStatus(state *os.ProcessState) int {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}

// mergeEnv layers overlay onto base, overlay keys winning.
func mergeEnv(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}
	env := make([]string, 0, len(base)+len(overlay))
	for _, kv := range base {
		key := kv
		if i := strings.IndexByte(kv, '='); i > 0 {
			key = kv[:i]
		}
		if _, ok := overlay[key]; ok {
			continue
		}
		env = append(env, kv)
	}
	for _, key := range slices.Sorted(maps.Keys(overlay)) {
		env = append(env, key+"="+overlay[key])
	}
	return env
}
