package queue

import (
	"context"
	"errors"

	"shift/internal/model"
	"shift/internal/workflow"
)

var (
	ErrMalformedJob = errors.New("malformed job in queue")
)

// Queue hands read requests from producers (CLI, HTTP) to the worker.
type Queue interface {
	Push(ctx context.Context, req model.ReadRequest) error
	Pop(ctx context.Context) (model.ReadRequest, error)
}

// Publisher broadcasts workflow transitions to whoever is listening.
type Publisher interface {
	Publish(ctx context.Context, snap workflow.Snapshot) error
}
