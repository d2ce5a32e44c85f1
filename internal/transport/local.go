package transport

import (
	"context"
	"os"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/LISSConsulting/LISSTech.Relay/internal/claude"
	"github.com/LISSConsulting/LISSTech.Relay/internal/command"
	"github.com/LISSConsulting/LISSTech.Relay/internal/credential"
)

// Local runs the CLI as a child process of this one, argv only, no shell.
type Local struct {
	Cred credential.Local
	Log  zerolog.Logger
}

// Execute implements Executor.
func (l *Local) Execute(ctx context.Context, opts claude.Options) (claude.Result, error) {
	spec, err := command.Build(opts, l.Cred)
	if err != nil {
		return claude.Result{}, err
	}

	cmd := exec.Command(spec.Executable, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = mergeEnv(os.Environ(), spec.Env)

	l.Log.Debug().Str("executable", spec.Executable).Str("dir", spec.Dir).Int("env_overlay", len(spec.Env)).Msg("spawning")
	return runProcess(ctx, cmd, opts.EffectiveTimeout(), "failed to execute claude").result(opts)
}

// TestAvailability runs `<claude> --version` and reports whether it exited 0.
func (l *Local) TestAvailability(ctx context.Context) bool {
	cmd := exec.Command(l.Cred.Executable(), "--version")
	return runProcess(ctx, cmd, availabilityTimeout, "failed to execute claude").ok()
}
