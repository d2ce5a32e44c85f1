package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/LISSConsulting/LISSTech.Relay/internal/claude"
	"github.com/LISSConsulting/LISSTech.Relay/internal/config"
	"github.com/LISSConsulting/LISSTech.Relay/internal/notify"
	"github.com/LISSConsulting/LISSTech.Relay/internal/store"
	"github.com/LISSConsulting/LISSTech.Relay/internal/transport"
)

// JobError reports the job that stopped a batch.
type JobError struct {
	Job string
	Err error
}

func (e *JobError) Error() string { return fmt.Sprintf("batch: job %q: %v", e.Job, e.Err) }

func (e *JobError) Unwrap() error { return e.Err }

// ErrUnsuccessful is wrapped by a JobError when the job ran but its Result
// was not a success.
var ErrUnsuccessful = errors.New("execution did not succeed")

// Outcome is what happened to one job.
type Outcome struct {
	Job        string        `json:"job"`
	Invocation string        `json:"invocation,omitempty"`
	Skipped    bool          `json:"skipped,omitempty"`
	Result     claude.Result `json:"result"`
	Err        string        `json:"error,omitempty"`
}

// Report lists outcomes in jobs file order.
type Report struct {
	Outcomes []Outcome `json:"outcomes"`
}

// Failed returns the names of jobs that errored or did not succeed.
func (r Report) Failed() []string {
	var names []string
	for _, o := range r.Outcomes {
		if !o.Skipped && (o.Err != "" || !o.Result.Success) {
			names = append(names, o.Job)
		}
	}
	return names
}

// Runner executes a File. Store and Notifier are optional.
type Runner struct {
	Config      *config.Config
	Dispatcher  *transport.Dispatcher
	Store       store.Writer
	Notifier    *notify.Notifier
	Concurrency int // overrides File.Concurrency when > 0
	Log         zerolog.Logger
}

func (r *Runner) limit(f *File) int {
	switch {
	case r.Concurrency > 0:
		return r.Concurrency
	case f.Concurrency > 0:
		return f.Concurrency
	}
	return DefaultConcurrency
}

// Run executes every job with at most limit jobs in flight. The first job
// that fails without continue_on_fail cancels the rest: running jobs see
// their context end and queued jobs are skipped. The returned error is
// that job's *JobError.
func (r *Runner) Run(ctx context.Context, f *File) (Report, error) {
	if r.Dispatcher == nil {
		r.Dispatcher = &transport.Dispatcher{Log: r.Log}
	}
	report := Report{Outcomes: make([]Outcome, len(f.Jobs))}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit(f))

	r.Log.Info().Int("jobs", len(f.Jobs)).Int("concurrency", r.limit(f)).Msg("batch started")
	for i, job := range f.Jobs {
		g.Go(func() error {
			if gctx.Err() != nil {
				report.Outcomes[i] = Outcome{Job: job.Name, Skipped: true}
				return nil
			}
			out, err := r.runJob(gctx, job)
			report.Outcomes[i] = out
			if err != nil && !job.ContinueOnFail {
				return &JobError{Job: job.Name, Err: err}
			}
			return nil
		})
	}
	err := g.Wait()
	r.Notifier.Wait()

	failed := report.Failed()
	r.Log.Info().Int("jobs", len(f.Jobs)).Int("failed", len(failed)).Strs("failed_jobs", failed).Msg("batch finished")
	return report, err
}

// runJob executes one job and records it. The returned error is non-nil
// when the job should count as failed.
func (r *Runner) runJob(ctx context.Context, job Job) (Outcome, error) {
	id := uuid.NewString()
	out := Outcome{Job: job.Name, Invocation: id}
	log := r.Log.With().Str("job", job.Name).Str("invocation", id).Logger()

	profileName := job.Profile
	if profileName == "" {
		profileName = r.Config.DefaultProfile
	}
	profile, err := r.Config.Profile(profileName)
	if err != nil {
		out.Err = err.Error()
		log.Error().Err(err).Msg("job not started")
		return out, err
	}
	cred, err := profile.Credential()
	if err != nil {
		out.Err = err.Error()
		log.Error().Err(err).Msg("job not started")
		return out, err
	}

	params := job.Params()
	r.Config.ApplyDefaults(&params)
	opts := claude.BuildOptions(job.Op(), params)

	log.Info().Str("profile", profileName).Str("operation", string(job.Op())).Msg("job started")
	res, err := r.Dispatcher.Run(transport.WithInvocation(ctx, id), cred, opts)
	out.Result = res
	if err != nil {
		out.Err = err.Error()
		log.Error().Err(err).Msg("job failed")
		return out, err
	}

	if r.Store != nil {
		rec := store.Record{
			Time:       time.Now().UTC(),
			Invocation: id,
			Job:        job.Name,
			Profile:    profileName,
			Transport:  string(cred.Mode()),
			Operation:  string(job.Op()),
			Result:     res,
		}
		if err := r.Store.Append(rec); err != nil {
			log.Warn().Err(err).Msg("result not recorded")
		}
	}
	r.Notifier.Notify(job.Name, res)

	if !res.Success {
		log.Warn().Int("exit_code", res.ExitCode).Str("error", res.Error).Msg("job unsuccessful")
		return out, ErrUnsuccessful
	}
	log.Info().Int64("duration", res.DurationMS).Msg("job succeeded")
	return out, nil
}
