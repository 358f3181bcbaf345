package job

import (
	"context"
	"fmt"
	"time"

	"prodintel/internal/logger"
	rds "prodintel/internal/platform/redis"
)

type JobService struct {
	redis *rds.Service
	log   *logger.Logger
}

func NewJobService(redis *rds.Service) *JobService {
	return &JobService{redis: redis, log: logger.New("JobService")}
}

func (s *JobService) GetJobStatus(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := s.redis.CacheGet(ctx, key(jobID), &job); err != nil {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	return &job, nil
}

func (s *JobService) store(ctx context.Context, jobID string, mutate func(*Job)) error {
	var job Job
	_ = s.redis.CacheGet(ctx, key(jobID), &job)
	job.JobID = jobID
	mutate(&job)
	job.UpdatedAt = time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = job.UpdatedAt
	}

	if err := s.redis.CacheSet(ctx, key(jobID), job, ttl(job.Status)); err != nil {
		return err
	}
	// Status change notification for pollers and SSE listeners.
	_ = s.redis.Publish(ctx, key(jobID), map[string]string{"job_id": jobID, "status": string(job.Status)})
	return nil
}

func (s *JobService) InitPending(ctx context.Context, jobID string, jobType Type, data *BatchJobData) error {
	return s.store(ctx, jobID, func(j *Job) {
		j.Type = jobType
		j.Status = StatusPending
		if data != nil {
			j.Results = JobResult{Batch: data}
		}
	})
}

func (s *JobService) SetProcessing(ctx context.Context, jobID string, jobType Type) error {
	return s.store(ctx, jobID, func(j *Job) {
		j.Type = jobType
		j.Status = StatusProcessing
	})
}

// UpdateProgress refreshes the job's progress counters from the latest runner event.
func (s *JobService) UpdateProgress(ctx context.Context, jobID string, p ProgressInfo) error {
	return s.store(ctx, jobID, func(j *Job) {
		if j.Status == "" || j.Status == StatusPending {
			j.Status = StatusProcessing
		}
		j.Progress = &p
	})
}

// Complete stores the terminal state with its result payload.
func (s *JobService) Complete(ctx context.Context, jobID string, jobType Type, status Status, data *BatchJobData) error {
	return s.store(ctx, jobID, func(j *Job) {
		j.Type = jobType
		j.Status = status
		if data != nil {
			j.Results = JobResult{Batch: data}
		}
	})
}

func (s *JobService) Fail(ctx context.Context, jobID string, jobType Type, cause error) error {
	return s.store(ctx, jobID, func(j *Job) {
		j.Type = jobType
		j.Status = StatusFailed
		if cause != nil {
			j.Error = cause.Error()
		}
	})
}

// PublishJobTrace publishes a structured trace event to the job's channel for
// SSE forwarding. Delivery is best effort.
func (s *JobService) PublishJobTrace(ctx context.Context, jobID string, event interface{}) error {
	if err := s.redis.Publish(ctx, traceChannel(jobID), event); err != nil {
		s.log.LogWarnf("trace publish failed for job %s: %v", jobID, err)
		return err
	}
	return nil
}

// RequestCancel raises the cooperative cancellation flag the worker polls
// between item dispatches. In-flight items are allowed to finish.
func (s *JobService) RequestCancel(ctx context.Context, jobID string) error {
	if _, err := s.GetJobStatus(ctx, jobID); err != nil {
		return err
	}
	s.log.LogInfof("cancellation requested for job %s", jobID)
	return s.redis.SetFlag(ctx, cancelKey(jobID), 2*time.Hour)
}

func (s *JobService) IsCancelRequested(ctx context.Context, jobID string) bool {
	return s.redis.HasFlag(ctx, cancelKey(jobID))
}

func key(id string) string          { return "job:" + id }
func cancelKey(id string) string    { return "job:cancel:" + id }
func traceChannel(id string) string { return "trace:" + id }

func ttl(s Status) time.Duration {
	if s.Terminal() {
		return time.Hour
	}
	return 10 * time.Minute
}
