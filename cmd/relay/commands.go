package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LISSConsulting/LISSTech.Relay/internal/claude"
	"github.com/LISSConsulting/LISSTech.Relay/internal/config"
)

func (a *app) runCmd() *cobra.Command {
	f := &execFlags{}
	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Execute a single prompt",
		Long:  `Execute a single prompt. Pass "-" to read the prompt from stdin.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			return a.executeOp(cmd, claude.OpExecutePrompt, f, f.params(prompt))
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) contextCmd() *cobra.Command {
	f := &execFlags{}
	var files, dirs []string
	cmd := &cobra.Command{
		Use:   "context <prompt>",
		Short: "Execute a prompt with files and directories added as context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			p := f.params(prompt)
			p.ContextFiles = files
			p.AdditionalDirs = strings.Join(dirs, ",")
			return a.executeOp(cmd, claude.OpExecuteWithContext, f, p)
		},
	}
	f.register(cmd)
	cmd.Flags().StringSliceVar(&files, "file", nil, "context file; its directory is added with --add-dir (repeatable)")
	cmd.Flags().StringSliceVar(&dirs, "add-dir", nil, "additional directory the CLI may access (repeatable)")
	return cmd
}

func (a *app) continueCmd() *cobra.Command {
	f := &execFlags{}
	cmd := &cobra.Command{
		Use:   "continue <prompt>",
		Short: "Continue the most recent session in the working directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			return a.executeOp(cmd, claude.OpContinueSession, f, f.params(prompt))
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) resumeCmd() *cobra.Command {
	f := &execFlags{}
	cmd := &cobra.Command{
		Use:   "resume <session-id> <prompt>",
		Short: "Resume a session by id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(args[0]) == "" {
				return fmt.Errorf("session id is required")
			}
			prompt, err := readPrompt(args[1], cmd.InOrStdin())
			if err != nil {
				return err
			}
			p := f.params(prompt)
			p.SessionID = args[0]
			return a.executeOp(cmd, claude.OpResumeSession, f, p)
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) testCmd() *cobra.Command {
	var profile string
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Check that claude is reachable through a profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return a.testAvailability(ctx, cmd.OutOrStdout(), profile)
		},
	}
	cmd.Flags().StringVarP(&profile, "profile", "P", "", "profile from relay.toml (default: default_profile)")
	return cmd
}

func (a *app) profilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List configured profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := a.load()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatProfiles(cfg))
			return nil
		},
	}
}

// formatProfiles renders one line per profile, marking the default.
func formatProfiles(cfg *config.Config) string {
	var b strings.Builder
	b.WriteString("Profiles\n")
	b.WriteString("────────\n")
	for _, name := range cfg.ProfileNames() {
		p := cfg.Profiles[name]
		marker := " "
		if name == cfg.DefaultProfile {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %-20s %-7s %s\n", marker, name, p.Mode, profileTarget(p))
	}
	return b.String()
}

func profileTarget(p config.Profile) string {
	switch strings.ToLower(p.Mode) {
	case "ssh":
		target := p.Host
		if p.Username != "" {
			target = p.Username + "@" + target
		}
		if p.Port != 0 {
			target = fmt.Sprintf("%s:%d", target, p.Port)
		}
		return target
	case "docker":
		for _, ref := range []string{p.ContainerIdentifier, p.ContainerName, p.ContainerID} {
			if ref != "" {
				return ref
			}
		}
		return ""
	}
	if p.ClaudePath != "" {
		return p.ClaudePath
	}
	return claude.DefaultExecutable
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Scaffold relay.toml and an example jobs file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}
			created, err := config.ScaffoldProject(dir, config.DetectClaude())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatScaffoldResult(created))
			return nil
		},
	}
}

func formatScaffoldResult(created []string) string {
	if len(created) == 0 {
		return "All files already exist, nothing to create.\n"
	}
	var b strings.Builder
	for _, path := range created {
		fmt.Fprintf(&b, "Created %s\n", path)
	}
	return b.String()
}
