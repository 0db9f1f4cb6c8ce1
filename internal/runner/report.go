package runner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/patrickspencer/runwatch/internal/jobs"
)

// Reporter records execution lifecycle changes with the backend.
type Reporter interface {
	StartJob(ctx context.Context, req jobs.StartRequest) (jobs.Job, error)
	UpdateJob(ctx context.Context, req jobs.UpdateRequest) (jobs.Job, error)
}

// Wrapper runs a command as a job execution: RUNNING is reported before the
// command starts and SUCCESS or FAILED after it exits. Reporting failures
// are logged and never change the command's outcome.
type Wrapper struct {
	runner   *Runner
	reporter Reporter
	logger   *zap.Logger
	now      func() time.Time
}

// NewWrapper creates a Wrapper. A nil logger discards log output.
func NewWrapper(r *Runner, reporter Reporter, logger *zap.Logger) *Wrapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wrapper{runner: r, reporter: reporter, logger: logger, now: time.Now}
}

// Run executes argv as job and returns the command's result.
func (w *Wrapper) Run(ctx context.Context, job Job, argv []string, opts RunOptions) Result {
	if job.RunID == "" {
		job.RunID = jobs.NewRunID()
	}
	log := w.logger.With(zap.String("job", job.Name), zap.String("run_id", job.RunID))

	started := true
	if _, err := w.reporter.StartJob(ctx, jobs.StartRequest{JobName: job.Name, RunID: job.RunID}); err != nil {
		started = false
		log.Warn("failed to report job start", zap.Error(err))
	}

	result := w.runner.Run(ctx, argv, job, opts)
	log.Info("command finished",
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration),
	)
	if !started {
		return result
	}

	end := w.now().UTC()
	update := jobs.UpdateRequest{
		JobName: job.Name,
		RunID:   job.RunID,
		Status:  jobs.StatusSuccess,
		EndTime: &end,
	}
	if result.Failed() {
		update.Status = jobs.StatusFailed
		update.ErrorMessage = result.ErrorMessage()
	}
	// The command's context may be spent; the outcome still gets reported.
	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if _, err := w.reporter.UpdateJob(reportCtx, update); err != nil {
		log.Warn("failed to report job result", zap.Error(err))
	}
	return result
}
