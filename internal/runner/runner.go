package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"leadscout/internal/domain"
	"leadscout/internal/domain/model"
	"leadscout/internal/infra/logging"
	"leadscout/internal/infra/metrics"
)

// Config bounds the pipeline; values come from config.RunnerConfig and
// config.StreamConfig at wiring time.
type Config struct {
	Tool           string
	WorkDir        string
	PoolSize       int
	QueueWait      time.Duration
	DefaultTimeout time.Duration
	EvictionGrace  time.Duration
}

// SubmitSpec is one job submission. The ID is generated by the caller before
// submission so the dashboard can open its stream immediately.
type SubmitSpec struct {
	JobID   string
	Kind    model.JobKind
	LeadID  string
	Args    []string
	Timeout time.Duration
}

// CompletionHook runs after the job's terminal transition is recorded and
// before its worker slot is released. The hook may read the job's output
// from the registry; it must not block indefinitely.
type CompletionHook func(ctx context.Context, job model.Job, exit ExitInfo)

// Runner ties the admission queue, supervisor, parser and registry into the
// submission surface consumed by the dashboard's CRUD layer.
type Runner struct {
	cfg        Config
	queue      *AdmissionQueue
	sup        *Supervisor
	reg        *Registry
	parser     *Parser
	onComplete CompletionHook
	log        *zerolog.Logger
}

func New(cfg Config, reg *Registry, log *zerolog.Logger, onComplete CompletionHook) *Runner {
	return &Runner{
		cfg:        cfg,
		queue:      NewAdmissionQueue(cfg.PoolSize),
		sup:        NewSupervisor(log),
		reg:        reg,
		parser:     NewParser(),
		onComplete: onComplete,
		log:        log,
	}
}

// SetOnComplete installs the completion hook. Called once at wiring time,
// before any submission; it exists because the hook's owner also needs the
// constructed runner.
func (r *Runner) SetOnComplete(hook CompletionHook) { r.onComplete = hook }

// Submit admits and spawns one job. It blocks until the subprocess is
// running (or admission/spawn failed) and returns the job's status at that
// moment. Failures are domain.ErrQueueTimeout, domain.ErrToolNotFound or
// domain.ErrSpawn; once the job is running all further problems are
// reported via the stream's terminal event and the job's final status.
func (r *Runner) Submit(ctx context.Context, spec SubmitSpec) (model.JobStatus, error) {
	if spec.JobID == "" {
		return "", fmt.Errorf("%w: empty job id", domain.ErrInvalidArgument)
	}
	ctx = logging.WithJobID(ctx, spec.JobID)
	log := logging.With(ctx, r.log)

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = r.cfg.DefaultTimeout
	}
	job := model.Job{
		ID:        spec.JobID,
		Kind:      spec.Kind,
		LeadID:    spec.LeadID,
		TimeoutMs: int(timeout / time.Millisecond),
		CreatedAt: time.Now(),
	}
	if !r.reg.Initialize(job, fmt.Sprintf("%s job queued", spec.Kind)) {
		return "", fmt.Errorf("%w: job %s already exists", domain.ErrInvalidArgument, spec.JobID)
	}

	waitStart := time.Now()
	release, err := r.queue.Acquire(ctx, r.cfg.QueueWait)
	if err != nil {
		metrics.IncQueueTimeout()
		r.failBeforeStart(spec.JobID, err)
		return model.JobStatusFailed, err
	}
	metrics.ObserveQueueWait(time.Since(waitStart).Seconds())

	h, err := r.sup.Start(StartSpec{
		JobID:   spec.JobID,
		Command: r.cfg.Tool,
		Args:    spec.Args,
		Dir:     r.cfg.WorkDir,
		Timeout: timeout,
	})
	if err != nil {
		release()
		r.failBeforeStart(spec.JobID, err)
		return model.JobStatusFailed, err
	}

	r.reg.SetStatus(spec.JobID, model.JobStatusRunning)
	r.reg.SetPID(spec.JobID, h.PID)
	log.Info().Str("kind", string(spec.Kind)).Int("pid", h.PID).Msg("job started")

	go r.drain(h, release, waitStart)
	return model.JobStatusRunning, nil
}

// failBeforeStart records a synchronous failure so any stream already open
// on the job id still receives a terminal error event.
func (r *Runner) failBeforeStart(jobID string, cause error) {
	r.reg.SetError(jobID, cause.Error())
	r.reg.Append(jobID, model.LogEntry{Kind: model.LogKindError, Content: cause.Error()})
	r.reg.SetStatus(jobID, model.JobStatusFailed)
	metrics.IncJob(string(model.JobStatusFailed))
	r.scheduleEviction(jobID)
	logging.With(logging.WithJobID(context.Background(), jobID), r.log).
		Warn().Err(cause).Msg("job failed before start")
}

// drain is the single registry writer for its job: it feeds every chunk
// through the parser in arrival order, then records the terminal
// transition. The completion hook fires before the slot is released.
func (r *Runner) drain(h *Handle, release func(), started time.Time) {
	ctx := logging.WithJobID(context.Background(), h.JobID)
	log := logging.With(ctx, r.log)

	for chunk := range h.Data {
		for _, e := range r.parser.Feed(h.JobID, string(chunk)) {
			r.reg.Append(h.JobID, e)
		}
	}
	for _, e := range r.parser.Flush(h.JobID) {
		r.reg.Append(h.JobID, e)
	}
	exit := <-h.Exit

	status := model.JobStatusCompleted
	switch {
	case exit.Reason == model.ExitReasonTimeout:
		status = model.JobStatusTimedOut
		msg := domain.ErrJobTimeout.Error()
		r.reg.SetError(h.JobID, msg)
		r.reg.Append(h.JobID, model.LogEntry{Kind: model.LogKindError, Content: msg})
	case exit.Reason == model.ExitReasonKilled:
		status = model.JobStatusCancelled
		r.reg.Append(h.JobID, model.LogEntry{Kind: model.LogKindInfo, Content: domain.ErrJobKilled.Error()})
	case exit.Code != 0:
		status = model.JobStatusFailed
		msg := fmt.Sprintf("tool exited with code %d", exit.Code)
		if exit.Code < 0 {
			msg = "tool killed by signal"
		}
		r.reg.SetError(h.JobID, msg)
		r.reg.Append(h.JobID, model.LogEntry{Kind: model.LogKindError, Content: msg})
	}
	r.reg.SetStatus(h.JobID, status)

	metrics.IncJob(string(status))
	metrics.ObserveJobDuration(time.Since(started).Seconds())
	log.Info().
		Str("status", string(status)).
		Int("exit_code", exit.Code).
		Dur("duration", time.Since(started)).
		Msg("job finished")

	if r.onComplete != nil {
		if job, ok := r.reg.Job(h.JobID); ok {
			r.onComplete(ctx, job, exit)
		}
	}
	release()
	r.scheduleEviction(h.JobID)
}

func (r *Runner) scheduleEviction(jobID string) {
	grace := r.cfg.EvictionGrace
	if grace <= 0 {
		grace = 30 * time.Second
	}
	time.AfterFunc(grace, func() {
		r.reg.Clear(jobID)
		r.parser.Reset(jobID)
	})
}

// Kill cancels a job. found=false means it already reached a terminal
// state, which is not an error.
func (r *Runner) Kill(jobID string) bool { return r.sup.Kill(jobID) }

// Output exposes the job's accumulated log for completion hooks.
func (r *Runner) Output(jobID string) []model.LogEntry { return r.reg.Output(jobID) }

// Shutdown kills every live subprocess. Used on process exit.
func (r *Runner) Shutdown() {
	r.sup.mu.Lock()
	ids := make([]string, 0, len(r.sup.handles))
	for id := range r.sup.handles {
		ids = append(ids, id)
	}
	r.sup.mu.Unlock()
	for _, id := range ids {
		r.sup.Kill(id)
	}
}
