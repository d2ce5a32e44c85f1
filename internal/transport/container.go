package transport

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/LISSConsulting/LISSTech.Relay/internal/claude"
	"github.com/LISSConsulting/LISSTech.Relay/internal/command"
	"github.com/LISSConsulting/LISSTech.Relay/internal/credential"
)

// Container runs the CLI inside a running container with the runtime's
// exec subcommand. It never allocates a TTY or attaches stdin.
type Container struct {
	Cred credential.Container
	Log  zerolog.Logger
}

// Execute implements Executor. The credential env overlay is not forwarded
// into the container.
func (c *Container) Execute(ctx context.Context, opts claude.Options) (claude.Result, error) {
	spec, err := command.Build(opts, c.Cred)
	if err != nil {
		return claude.Result{}, err
	}
	if c.Cred.Ref() == "" {
		return failed("docker exec failed: container name or id is required", time.Now()).result(opts)
	}

	cmd := c.command(spec)
	c.Log.Debug().Str("runtime", c.Cred.Runtime()).Str("container", c.Cred.Ref()).Msg("spawning")
	return runProcess(ctx, cmd, opts.EffectiveTimeout(), "docker exec failed").result(opts)
}

// TestAvailability runs `<claude> --version` in the container. An
// unidentified container is reported unavailable without spawning.
func (c *Container) TestAvailability(ctx context.Context) bool {
	if c.Cred.Ref() == "" {
		return false
	}
	cmd := c.command(command.Spec{Executable: c.Cred.Executable(), Args: []string{"--version"}})
	return runProcess(ctx, cmd, availabilityTimeout, "docker exec failed").ok()
}

func (c *Container) command(spec command.Spec) *exec.Cmd {
	cmd := exec.Command(c.Cred.Runtime(), execArgs(c.Cred, spec)...)
	if c.Cred.DockerHost != "" {
		cmd.Env = mergeEnv(os.Environ(), map[string]string{"DOCKER_HOST": c.Cred.DockerHost})
	}
	return cmd
}

// execArgs is the runtime argv: exec [-u user] [-w dir] <ref> <exe> args...
func execArgs(cred credential.Container, spec command.Spec) []string {
	args := []string{"exec"}
	if cred.User != "" {
		args = append(args, "-u", cred.User)
	}
	if spec.Dir != "" {
		args = append(args, "-w", spec.Dir)
	}
	args = append(args, cred.Ref(), spec.Executable)
	return append(args, spec.Args...)
}
