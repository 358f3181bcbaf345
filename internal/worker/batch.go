package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"prodintel/internal/config"
	"prodintel/internal/core/batch"
	"prodintel/internal/core/job"
	"prodintel/internal/logger"
	tasks "prodintel/internal/platform/tasks"
)

// cancelPollInterval is how often a running batch checks its cancel flag.
const cancelPollInterval = 500 * time.Millisecond

// batchTaskTimeout bounds one batch task end to end. Generous: a full batch of
// slow sites with retries can legitimately run a long while.
const batchTaskTimeout = 2 * time.Hour

// BatchTaskPayload is the asynq payload for one batch extraction run.
type BatchTaskPayload struct {
	JobID   string                 `json:"job_id"`
	Entries []batch.UrlEntry       `json:"entries"`
	Schema  batch.ExtractionSchema `json:"schema"`
	Options BatchOptions           `json:"options"`
}

// BatchOptions carries per-request overrides; zero values fall back to the
// service configuration.
type BatchOptions struct {
	Concurrency           int `json:"concurrency,omitempty"`
	FetchTimeoutSeconds   int `json:"fetch_timeout_seconds,omitempty"`
	ExtractTimeoutSeconds int `json:"extract_timeout_seconds,omitempty"`
	ItemDelaySeconds      int `json:"item_delay_seconds,omitempty"`
}

// TraceEvent is one progress notification published on the job's trace
// channel while a batch runs.
type TraceEvent struct {
	Type      string `json:"type"`
	JobID     string `json:"job_id"`
	Index     int    `json:"index"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	URL       string `json:"url"`
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
}

// BatchHandler owns the async side of batch extraction: enqueueing jobs and
// executing them on the worker, streaming progress into the job record.
type BatchHandler struct {
	jobs    *job.JobService
	tasks   *tasks.Client
	fetch   batch.Fetcher
	extract batch.Extractor
	cfg     config.Config
	log     *logger.Logger
}

func NewBatchHandler(jobs *job.JobService, taskClient *tasks.Client, fetch batch.Fetcher, extract batch.Extractor, cfg config.Config) *BatchHandler {
	return &BatchHandler{
		jobs:    jobs,
		tasks:   taskClient,
		fetch:   fetch,
		extract: extract,
		cfg:     cfg,
		log:     logger.New("BatchWorker"),
	}
}

// Register attaches the handler to the worker mux.
func (h *BatchHandler) Register(m *Mux) {
	m.HandleFunc(tasks.TaskTypeBatchExtract, h.Handle)
}

// Enqueue validates nothing beyond the schema (the runner rejects bad URLs
// per item), creates the pending job record and hands the task to asynq.
func (h *BatchHandler) Enqueue(ctx context.Context, entries []batch.UrlEntry, schema batch.ExtractionSchema, opts BatchOptions) (string, error) {
	if err := schema.Validate(); err != nil {
		return "", &batch.ConfigError{Reason: err.Error()}
	}

	id := uuid.New().String()
	payload, err := json.Marshal(BatchTaskPayload{JobID: id, Entries: entries, Schema: schema, Options: opts})
	if err != nil {
		return "", fmt.Errorf("failed to encode batch payload: %w", err)
	}

	if err := h.jobs.InitPending(ctx, id, job.TypeBatchExtract, &job.BatchJobData{SchemaName: schema.Name, Schema: schema}); err != nil {
		return "", err
	}
	task := asynq.NewTask(tasks.TaskTypeBatchExtract, payload)
	if err := h.tasks.Enqueue(task, tasks.QueueBatches, h.cfg.TaskMaxRetries, asynq.Timeout(batchTaskTimeout)); err != nil {
		return "", err
	}
	h.log.LogInfof("enqueued batch job %s with %d urls", id, len(entries))
	return id, nil
}

// Handle executes one batch run. Cooperative cancellation is polled between
// item dispatches; a cancelled run completes as cancelled with its partial
// result rather than failing.
func (h *BatchHandler) Handle(ctx context.Context, task *asynq.Task) error {
	var p BatchTaskPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("bad batch payload: %v: %w", err, asynq.SkipRetry)
	}
	h.log.LogInfof("processing batch job %s (%d urls)", p.JobID, len(p.Entries))

	if err := h.jobs.SetProcessing(ctx, p.JobID, job.TypeBatchExtract); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go h.watchCancelFlag(ctx, p.JobID, cancel)

	runner := batch.NewRunner(h.fetch, h.extract, batch.Options{
		Concurrency:    orDefault(p.Options.Concurrency, h.cfg.BatchConcurrency),
		FetchTimeout:   orDefaultDur(p.Options.FetchTimeoutSeconds, h.cfg.FetchTimeout),
		ExtractTimeout: orDefaultDur(p.Options.ExtractTimeoutSeconds, h.cfg.ExtractTimeout),
		ItemDelay:      orDefaultDur(p.Options.ItemDelaySeconds, h.cfg.ItemDelay),
		OnProgress:     h.progressSink(ctx, p.JobID),
	})

	result, err := runner.Run(runCtx, p.Entries, p.Schema)

	var confErr *batch.ConfigError
	if errors.As(err, &confErr) {
		// Retrying cannot fix a bad schema.
		_ = h.jobs.Fail(ctx, p.JobID, job.TypeBatchExtract, confErr)
		return fmt.Errorf("%v: %w", confErr, asynq.SkipRetry)
	}

	data := &job.BatchJobData{SchemaName: p.Schema.Name, Schema: p.Schema, Outcomes: result}
	sum := result.Summarize()
	data.Summary = &sum

	if err != nil {
		if h.jobs.IsCancelRequested(ctx, p.JobID) {
			h.log.LogWarnf("batch job %s cancelled with %d/%d items done", p.JobID, len(result), len(p.Entries))
			return h.jobs.Complete(ctx, p.JobID, job.TypeBatchExtract, job.StatusCancelled, data)
		}
		// Shutdown or task deadline: let asynq retry the job from scratch.
		return err
	}

	h.log.LogSuccessf("batch job %s finished: %d ok, %d failed", p.JobID, sum.Succeeded, sum.Failed)
	return h.jobs.Complete(ctx, p.JobID, job.TypeBatchExtract, job.StatusCompleted, data)
}

// watchCancelFlag cancels the run context once the job's cancel flag appears.
func (h *BatchHandler) watchCancelFlag(ctx context.Context, jobID string, cancel context.CancelFunc) {
	ticker := time.NewTicker(cancelPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if h.jobs.IsCancelRequested(ctx, jobID) {
				cancel()
				return
			}
		}
	}
}

// progressSink mirrors runner progress into the job record and the trace
// channel. Events arrive on the runner's drain goroutine; failures to store
// them never disturb the run.
func (h *BatchHandler) progressSink(ctx context.Context, jobID string) func(batch.Progress) {
	return func(ev batch.Progress) {
		state := "success"
		errMsg := ""
		if !ev.Outcome.OK() {
			state = string(ev.Outcome.Err.Kind)
			errMsg = ev.Outcome.Err.Message
		}
		_ = h.jobs.UpdateProgress(ctx, jobID, job.ProgressInfo{
			Completed: ev.Completed,
			Total:     ev.Total,
			LastURL:   ev.Outcome.Entry.Raw,
			LastState: state,
		})
		_ = h.jobs.PublishJobTrace(ctx, jobID, TraceEvent{
			Type:      "progress",
			JobID:     jobID,
			Index:     ev.Index,
			Completed: ev.Completed,
			Total:     ev.Total,
			URL:       ev.Outcome.Entry.Raw,
			State:     state,
			Error:     errMsg,
		})
	}
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orDefaultDur(seconds int, def time.Duration) time.Duration {
	if seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return def
}
