// Package main is the entry point for the relay CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/LISSConsulting/LISSTech.Relay/internal/config"
	"github.com/LISSConsulting/LISSTech.Relay/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the persistent flag values shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "relay",
		Short:        "Run the Claude CLI headlessly on local, SSH and container targets",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to relay.toml (default: search upwards from the working directory)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error, off")

	root.AddCommand(
		a.runCmd(),
		a.contextCmd(),
		a.continueCmd(),
		a.resumeCmd(),
		a.testCmd(),
		a.profilesCmd(),
		a.batchCmd(),
		a.resultsCmd(),
		initCmd(),
	)
	return root
}

// load reads relay.toml and sets up logging. Without a config file and
// without --config the built-in defaults apply, so a bare local claude
// works out of the box.
func (a *app) load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(a.configPath)
	if errors.Is(err, config.ErrNotFound) && a.configPath == "" {
		defaults := config.Defaults()
		cfg, err = &defaults, nil
	}
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("config: invalid:\n%w", err)
	}
	log := logging.Init(logging.ResolveLevel(a.logLevel, cfg.Log.Level))
	return cfg, log, nil
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// errUnsuccessful makes the process exit non-zero after the Result has
// been printed.
var errUnsuccessful = errors.New("execution did not succeed")

func fprintf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
