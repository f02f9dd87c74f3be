package worker

import (
	"context"
	"errors"
	"time"

	"shift/internal/model"
	"shift/internal/queue"
	"shift/internal/workflow"

	"go.uber.org/zap"
)

// Jobs is the part of the queue the worker needs.
type Jobs interface {
	Pop(ctx context.Context) (model.ReadRequest, error)
	queue.Publisher
}

type Worker struct {
	jobs     Jobs
	logger   *zap.Logger
	workflow *workflow.Workflow
}

// NewWorker creates a worker that runs every queued request through its own
// Workflow and publishes each transition.
func NewWorker(jobs Jobs, source workflow.Source, cleaner workflow.Normalizer, logger *zap.Logger) *Worker {
	return &Worker{
		jobs:     jobs,
		logger:   logger,
		workflow: workflow.New(source, cleaner, logger),
	}
}

// Start runs the worker loop
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Worker started. Waiting for jobs...")

	w.workflow.Subscribe(func(snap workflow.Snapshot) {
		if err := w.jobs.Publish(ctx, snap); err != nil && ctx.Err() == nil {
			w.logger.Warn("Failed to publish event", zap.Error(err))
		}
	})

	for {
		// Wait for job (Blocking call to Redis)
		req, err := w.jobs.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("Worker shutting down")
				return
			}
			if errors.Is(err, queue.ErrMalformedJob) {
				w.logger.Warn("Dropping malformed job", zap.Error(err))
				continue
			}
			w.logger.Error("Queue error", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		w.processJob(ctx, req)
	}
}

func (w *Worker) processJob(ctx context.Context, req model.ReadRequest) {
	logger := w.logger.With(zap.String("job_id", req.ID.String()))
	logger.Info("Processing started", zap.String("url", req.URL))

	gen := w.workflow.Submit(ctx, req)
	snap, err := w.workflow.Wait(ctx, gen)
	if err != nil {
		logger.Warn("Job interrupted", zap.Error(err))
		return
	}

	if snap.State == model.StateFailed {
		logger.Error("Job failed", zap.String("error", snap.Error))
		return
	}
	logger.Info("Job complete",
		zap.String("title", model.Value(snap.Article.Metadata.Title)),
		zap.Bool("fallback", snap.Fallback))
}
