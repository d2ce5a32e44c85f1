// Package transport runs a built Claude CLI invocation on the target a
// credential describes and hands the captured output to the normalizer.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/LISSConsulting/LISSTech.Relay/internal/claude"
	"github.com/LISSConsulting/LISSTech.Relay/internal/credential"
)

// availabilityTimeout bounds every TestAvailability probe.
const availabilityTimeout = 10 * time.Second

// Executor runs Claude CLI invocations over one transport.
//
// Execute returns an error only for a *command.BuildError (nothing was
// started) or a *claude.ParseError (json output did not decode). Every
// other failure, including timeouts, is a Result with Success false.
type Executor interface {
	Execute(ctx context.Context, opts claude.Options) (claude.Result, error)
	TestAvailability(ctx context.Context) bool
}

// New returns the executor for cred's variant.
func New(cred credential.Credential, log zerolog.Logger) (Executor, error) {
	switch c := cred.(type) {
	case credential.Local:
		return &Local{Cred: c, Log: log}, nil
	case credential.SSH:
		return &SSH{Cred: c, Log: log}, nil
	case credential.Container:
		return &Container{Cred: c, Log: log}, nil
	case nil:
		return nil, errors.New("transport: no credential")
	}
	return nil, fmt.Errorf("transport: unsupported credential %T", cred)
}

type invocationKey struct{}

// WithInvocation tags ctx with the id Dispatcher.Run logs for the
// execution.
func WithInvocation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, invocationKey{}, id)
}

// Invocation returns the id carried by ctx, or a fresh UUID.
func Invocation(ctx context.Context) string {
	if id, ok := ctx.Value(invocationKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Dispatcher selects an executor per call and reports each finished
// Result to Observe when it is set.
type Dispatcher struct {
	Log     zerolog.Logger
	Observe func(mode credential.Mode, res claude.Result)
}

// Run executes opts against cred.
func (d *Dispatcher) Run(ctx context.Context, cred credential.Credential, opts claude.Options) (claude.Result, error) {
	if cred == nil {
		return claude.Result{}, errors.New("transport: no credential")
	}
	log := d.Log.With().
		Str("invocation", Invocation(ctx)).
		Str("transport", string(cred.Mode())).
		Logger()

	exec, err := New(cred, log)
	if err != nil {
		return claude.Result{}, err
	}

	log.Debug().Str("format", string(opts.OutputFormat)).Dur("timeout", opts.EffectiveTimeout()).Msg("execution started")
	res, err := exec.Execute(ctx, opts)
	if err != nil {
		log.Debug().Err(err).Msg("execution rejected")
		return res, err
	}
	log.Debug().
		Bool("success", res.Success).
		Int("exit_code", res.ExitCode).
		Int64("duration", res.DurationMS).
		Msg("execution finished")

	if d.Observe != nil {
		d.Observe(cred.Mode(), res)
	}
	return res, nil
}

// Run executes opts against cred with a silent Dispatcher.
func Run(ctx context.Context, cred credential.Credential, opts claude.Options) (claude.Result, error) {
	d := Dispatcher{Log: zerolog.Nop()}
	return d.Run(ctx, cred, opts)
}

// outcome is what one transport attempt ended with, before normalization.
type outcome struct {
	raw claude.RawOutput
	// failure is set when the CLI's own exit was never observed.
	failure   string
	timedOut  bool
	cancelled error
}

func (o outcome) result(opts claude.Options) (claude.Result, error) {
	switch {
	case o.failure != "":
		return claude.ErrorResult(o.failure, claude.ExitLaunchFailure, o.raw.Duration), nil
	case o.timedOut:
		return claude.TimeoutResult(opts.EffectiveTimeout(), o.raw.Duration), nil
	case o.cancelled != nil:
		return claude.CancelledResult(o.cancelled, o.raw.Duration), nil
	}
	return claude.Normalize(opts.OutputFormat, o.raw)
}

// ok reports a clean zero exit, which is all an availability probe needs.
func (o outcome) ok() bool {
	return o.failure == "" && !o.timedOut && o.cancelled == nil && o.raw.ExitCode == 0
}

func failed(msg string, start time.Time) outcome {
	return outcome{failure: msg, raw: claude.RawOutput{Duration: time.Since(start)}}
}

// deadline classifies an attempt cut short by its own timer or by ctx.
func deadline(ctx context.Context, start time.Time) outcome {
	o := outcome{raw: claude.RawOutput{Duration: time.Since(start)}}
	if err := ctx.Err(); err != nil {
		o.cancelled = err
	} else {
		o.timedOut = true
	}
	return o
}
