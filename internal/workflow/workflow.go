// Package workflow sequences acquisition and cleanup for one reader.
//
// A Workflow holds the state of the reader's current request:
//
//	idle -> acquiring -> normalizing -> ready
//	             \-> failed
//
// Issuing a new request supersedes the current one. Every request captures a
// generation number when it starts and every transition checks it, so the
// late completion of a superseded request is discarded instead of
// overwriting the newer state. The superseded call itself is left to finish.
package workflow

import (
	"context"
	"errors"
	"sync"

	"shift/internal/cleanup"
	"shift/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSuperseded is returned by Wait when a newer request replaced the awaited one.
var ErrSuperseded = errors.New("request superseded by a newer one")

// Status texts shown while a request is in flight.
const (
	StatusAcquiring   = "Fetching article..."
	StatusNormalizing = "Cleaning up content..."
)

// Source acquires raw content for a URL.
type Source interface {
	Acquire(ctx context.Context, rawURL string) (*model.RawContent, error)
}

// Normalizer cleans raw content. It never fails: problems come back as a
// fallback Outcome.
type Normalizer interface {
	Run(ctx context.Context, raw model.RawContent) cleanup.Outcome
}

// Snapshot is the observable state of a Workflow at one point in time.
type Snapshot struct {
	Generation uint64         `json:"generation"`
	RequestID  uuid.UUID      `json:"requestId"`
	URL        string         `json:"url"`
	State      model.State    `json:"state"`
	Status     string         `json:"status,omitempty"`
	Article    *model.Article `json:"article,omitempty"`
	Error      string         `json:"error,omitempty"`
	// Fallback and Reason tell whether the article is the raw one. They are
	// informational; a fallback is still a ready article.
	Fallback bool           `json:"fallback,omitempty"`
	Reason   cleanup.Reason `json:"reason,omitempty"`
}

// Listener receives every transition of the live request, in order. It runs
// synchronously and must not call Submit, Request, Run or Wait.
type Listener func(Snapshot)

// Workflow runs read requests one at a time from the reader's point of view.
type Workflow struct {
	source  Source
	cleaner Normalizer
	logger  *zap.Logger

	// emitMu serializes transition+notify so listeners see transitions in order.
	emitMu sync.Mutex

	mu        sync.Mutex
	gen       uint64
	snap      Snapshot
	listeners []Listener
	changed   chan struct{}
}

// New creates an idle Workflow.
func New(source Source, cleaner Normalizer, logger *zap.Logger) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{
		source:  source,
		cleaner: cleaner,
		logger:  logger,
		snap:    Snapshot{State: model.StateIdle},
		changed: make(chan struct{}),
	}
}

// Subscribe registers l for all future transitions.
func (w *Workflow) Subscribe(l Listener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, l)
}

// Current returns the latest snapshot.
func (w *Workflow) Current() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snap
}

// Request starts reading rawURL and returns the request's generation.
func (w *Workflow) Request(ctx context.Context, rawURL string) uint64 {
	return w.Submit(ctx, model.NewReadRequest(rawURL))
}

// Submit starts req, superseding whatever request is in flight, and returns
// the new generation. The pipeline runs on its own goroutine under ctx.
func (w *Workflow) Submit(ctx context.Context, req model.ReadRequest) uint64 {
	w.emitMu.Lock()

	w.mu.Lock()
	w.gen++
	gen := w.gen
	w.mu.Unlock()

	base := Snapshot{Generation: gen, RequestID: req.ID, URL: req.URL}
	w.apply(gen, func(s *Snapshot) {
		*s = base
		s.State = model.StateIdle
	})
	w.apply(gen, func(s *Snapshot) {
		s.State = model.StateAcquiring
		s.Status = StatusAcquiring
	})

	w.emitMu.Unlock()

	go w.run(ctx, gen, req)
	return gen
}

// Run submits rawURL and blocks until the request is ready, failed or superseded.
func (w *Workflow) Run(ctx context.Context, rawURL string) (Snapshot, error) {
	return w.Wait(ctx, w.Request(ctx, rawURL))
}

// Wait blocks until generation gen reaches a terminal state. It returns
// ErrSuperseded if a newer request replaced it first. Listeners have seen
// the returned snapshot by the time Wait returns.
func (w *Workflow) Wait(ctx context.Context, gen uint64) (Snapshot, error) {
	for {
		// emitMu: never observe a transition whose listeners are still running
		w.emitMu.Lock()
		w.mu.Lock()
		snap, current, changed := w.snap, w.gen, w.changed
		w.mu.Unlock()
		w.emitMu.Unlock()

		if current != gen {
			return Snapshot{}, ErrSuperseded
		}
		if snap.State.Terminal() {
			return snap, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		}
	}
}

func (w *Workflow) run(ctx context.Context, gen uint64, req model.ReadRequest) {
	logger := w.logger.With(
		zap.String("request_id", req.ID.String()),
		zap.String("url", req.URL),
		zap.Uint64("generation", gen))

	logger.Info("Acquiring article")
	raw, err := w.source.Acquire(ctx, req.URL)
	if err != nil {
		if !w.transition(gen, func(s *Snapshot) {
			s.State = model.StateFailed
			s.Status = ""
			s.Error = err.Error()
		}) {
			logger.Debug("Discarding result of superseded request")
			return
		}
		logger.Error("Acquisition failed", zap.Error(err))
		return
	}

	if !w.transition(gen, func(s *Snapshot) {
		s.State = model.StateNormalizing
		s.Status = StatusNormalizing
	}) {
		logger.Debug("Discarding result of superseded request")
		return
	}

	// raw is owned by this request; the cleaner only reads it
	outcome := w.cleaner.Run(ctx, *raw)

	article := outcome.Article
	if !w.transition(gen, func(s *Snapshot) {
		s.State = model.StateReady
		s.Status = ""
		s.Article = &article
		s.Fallback = outcome.Fallback
		s.Reason = outcome.Reason
	}) {
		logger.Debug("Discarding result of superseded request")
		return
	}

	if outcome.Fallback {
		logger.Warn("Article ready with raw content", zap.String("reason", string(outcome.Reason)))
	} else {
		logger.Info("Article ready", zap.Int("markdown_len", len(article.Markdown)))
	}
}

// transition applies fn if gen is still the live generation and notifies
// listeners. It reports whether the transition happened.
func (w *Workflow) transition(gen uint64, fn func(*Snapshot)) bool {
	w.emitMu.Lock()
	defer w.emitMu.Unlock()
	return w.apply(gen, fn)
}

// apply is transition without emitMu; the caller must hold it.
func (w *Workflow) apply(gen uint64, fn func(*Snapshot)) bool {
	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		return false
	}
	fn(&w.snap)
	snap := w.snap
	listeners := w.listeners
	close(w.changed)
	w.changed = make(chan struct{})
	w.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
	return true
}
