package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/LISSConsulting/LISSTech.Relay/internal/claude"
	"github.com/LISSConsulting/LISSTech.Relay/internal/config"
	"github.com/LISSConsulting/LISSTech.Relay/internal/notify"
	"github.com/LISSConsulting/LISSTech.Relay/internal/transport"
)

// execFlags are the flags shared by run, context, continue and resume.
type execFlags struct {
	profile         string
	format          string
	model           string
	customModel     string
	maxTurns        int
	permissionMode  string
	allowedTools    string
	disallowedTools string
	systemPrompt    string
	timeout         int
	workdir         string
	args            string
	continueOnFail  bool
}

func (f *execFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.profile, "profile", "P", "", "profile from relay.toml (default: default_profile)")
	fl.StringVarP(&f.format, "format", "f", "", "output format: text, json or stream-json")
	fl.StringVarP(&f.model, "model", "m", "", `model alias or name ("custom" uses --custom-model)`)
	fl.StringVar(&f.customModel, "custom-model", "", "model name used when --model is custom")
	fl.IntVar(&f.maxTurns, "max-turns", 0, "maximum agent turns (0 = CLI default)")
	fl.StringVar(&f.permissionMode, "permission-mode", "", "default, acceptEdits, plan, dontAsk, bypassPermissions or delegate")
	fl.StringVar(&f.allowedTools, "allowed-tools", "", "comma separated tools allowed without prompting")
	fl.StringVar(&f.disallowedTools, "disallowed-tools", "", "comma separated tools to deny")
	fl.StringVar(&f.systemPrompt, "system-prompt", "", "system prompt override")
	fl.IntVar(&f.timeout, "timeout", 0, "timeout in seconds (0 = config default)")
	fl.StringVarP(&f.workdir, "workdir", "C", "", "working directory on the target")
	fl.StringVar(&f.args, "args", "", "extra CLI arguments, space separated")
	fl.BoolVar(&f.continueOnFail, "continue-on-fail", false, "exit 0 even when the execution fails")
}

func (f *execFlags) params(prompt string) claude.Params {
	return claude.Params{
		Prompt:          prompt,
		Model:           f.model,
		CustomModel:     f.customModel,
		AllowedTools:    f.allowedTools,
		DisallowedTools: f.disallowedTools,
		OutputFormat:    claude.OutputFormat(f.format),
		WorkingDir:      f.workdir,
		MaxTurns:        f.maxTurns,
		PermissionMode:  claude.PermissionMode(f.permissionMode),
		AdditionalArgs:  f.args,
		TimeoutSeconds:  f.timeout,
		SystemPrompt:    f.systemPrompt,
	}
}

// readPrompt returns arg, or stdin when arg is "-".
func readPrompt(arg string, stdin io.Reader) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	data, err := io.ReadAll(bufio.NewReader(stdin))
	if err != nil {
		return "", fmt.Errorf("read prompt from stdin: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("empty prompt on stdin")
	}
	return prompt, nil
}

// executeOp runs one operation against the selected profile and prints the
// Result as indented JSON.
func (a *app) executeOp(cmd *cobra.Command, op claude.Operation, f *execFlags, p claude.Params) error {
	if !p.OutputFormat.Valid() {
		return fmt.Errorf("--format %q is not text, json or stream-json", p.OutputFormat)
	}
	if !p.PermissionMode.Valid() {
		return fmt.Errorf("--permission-mode %q is not recognised", p.PermissionMode)
	}

	cfg, log, err := a.load()
	if err != nil {
		return err
	}
	profile, err := cfg.Profile(f.profile)
	if err != nil {
		return err
	}
	cred, err := profile.Credential()
	if err != nil {
		return err
	}

	cfg.ApplyDefaults(&p)
	opts := claude.BuildOptions(op, p)

	ctx, cancel := signalContext()
	defer cancel()

	d := &transport.Dispatcher{Log: log}
	res, err := d.Run(ctx, cred, opts)
	if err != nil {
		return err
	}

	n := newNotifier(cfg, log)
	n.Notify(string(op), res)
	n.Wait()

	if err := printJSON(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if !res.Success && !f.continueOnFail {
		return errUnsuccessful
	}
	return nil
}

func newNotifier(cfg *config.Config, log zerolog.Logger) *notify.Notifier {
	nc := cfg.Notifications
	return notify.New(nc.URL, "", nc.OnSuccess, nc.OnFailure, log)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// testAvailability probes the profile's target.
func (a *app) testAvailability(ctx context.Context, w io.Writer, profileName string) error {
	cfg, log, err := a.load()
	if err != nil {
		return err
	}
	if profileName == "" {
		profileName = cfg.DefaultProfile
	}
	profile, err := cfg.Profile(profileName)
	if err != nil {
		return err
	}
	cred, err := profile.Credential()
	if err != nil {
		return err
	}
	exec, err := transport.New(cred, log)
	if err != nil {
		return err
	}
	if !exec.TestAvailability(ctx) {
		fprintf(w, "%s (%s): unavailable\n", profileName, cred.Mode())
		return fmt.Errorf("profile %q: claude is not reachable", profileName)
	}
	fprintf(w, "%s (%s): available\n", profileName, cred.Mode())
	return nil
}
