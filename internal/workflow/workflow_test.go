package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shift/internal/cleanup"
	"shift/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// MockSource returns fixed content per URL. URLs listed in Gates block until
// their channel is closed.
type MockSource struct {
	Content    map[string]model.RawContent
	ShouldFail bool
	Gates      map[string]chan struct{}
}

func (m *MockSource) Acquire(ctx context.Context, rawURL string) (*model.RawContent, error) {
	if gate, ok := m.Gates[rawURL]; ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.ShouldFail {
		return nil, errors.New("failed to load article: simulated 404")
	}
	raw, ok := m.Content[rawURL]
	if !ok {
		return nil, errors.New("failed to load article: unknown url")
	}
	return &raw, nil
}

// MockService replies with Replies[rawMarkdown], or Reply when there is no
// entry. Markdown listed in Gates blocks until its channel is closed.
type MockService struct {
	Reply      string
	Replies    map[string]string
	ShouldFail bool
	Gates      map[string]chan struct{}
	calls      atomic.Int32
}

func (m *MockService) Request(ctx context.Context, rawMarkdown string) (string, error) {
	m.calls.Add(1)
	if gate, ok := m.Gates[rawMarkdown]; ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.ShouldFail {
		return "", cleanup.ErrService
	}
	if reply, ok := m.Replies[rawMarkdown]; ok {
		return reply, nil
	}
	return m.Reply, nil
}

const (
	urlA = "https://example.com/a"
	urlB = "https://example.com/b"
)

func rawFor(title string) model.RawContent {
	return model.RawContent{
		Markdown: "# " + title + "\n\nBody.",
		Metadata: model.Metadata{Title: model.String(title)},
	}
}

func newTestWorkflow(src *MockSource, svc *MockService, logger *zap.Logger) *Workflow {
	return New(src, cleanup.NewCleaner(svc, logger), logger)
}

func TestWorkflow_CleanArticle(t *testing.T) {
	src := &MockSource{Content: map[string]model.RawContent{urlA: rawFor("Title")}}
	svc := &MockService{Reply: `{"content":"# Title\n\nBody.","isComplete":true}`}
	wf := newTestWorkflow(src, svc, zap.NewNop())

	snap, err := wf.Run(context.Background(), urlA)
	require.NoError(t, err)

	assert.Equal(t, model.StateReady, snap.State)
	require.NotNil(t, snap.Article)
	assert.Equal(t, "# Title\n\nBody.", snap.Article.Markdown)
	assert.Equal(t, "Title", model.Value(snap.Article.Metadata.Title))
	assert.False(t, snap.Fallback)
	assert.Empty(t, snap.Status)
	assert.Equal(t, snap, wf.Current())
}

func TestWorkflow_FallbackIsStillReady(t *testing.T) {
	tests := []struct {
		name   string
		svc    *MockService
		reason cleanup.Reason
	}{
		{"service unavailable", &MockService{ShouldFail: true}, cleanup.ReasonServiceUnavailable},
		{"empty content", &MockService{Reply: `{"content":"","isComplete":true}`}, cleanup.ReasonIncomplete},
		{"prose reply", &MockService{Reply: "I cannot do that."}, cleanup.ReasonUnparseable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := rawFor("Title")
			src := &MockSource{Content: map[string]model.RawContent{urlA: raw}}
			wf := newTestWorkflow(src, tt.svc, zap.NewNop())

			snap, err := wf.Run(context.Background(), urlA)
			require.NoError(t, err)

			assert.Equal(t, model.StateReady, snap.State)
			assert.True(t, snap.Fallback)
			assert.Equal(t, tt.reason, snap.Reason)
			require.NotNil(t, snap.Article)
			assert.Equal(t, raw.Markdown, snap.Article.Markdown)
			assert.Equal(t, raw.Metadata, snap.Article.Metadata)
		})
	}
}

func TestWorkflow_AcquisitionFailureSkipsCleanup(t *testing.T) {
	svc := &MockService{Reply: `{"content":"x","isComplete":true}`}
	wf := newTestWorkflow(&MockSource{ShouldFail: true}, svc, zap.NewNop())

	snap, err := wf.Run(context.Background(), urlA)
	require.NoError(t, err)

	assert.Equal(t, model.StateFailed, snap.State)
	assert.Contains(t, snap.Error, "failed to load article")
	assert.Nil(t, snap.Article)
	assert.Equal(t, int32(0), svc.calls.Load(), "cleanup must not run after a failed acquisition")
}

func TestWorkflow_TransitionsInOrder(t *testing.T) {
	src := &MockSource{Content: map[string]model.RawContent{urlA: rawFor("Title")}}
	svc := &MockService{Reply: `{"content":"Clean","isComplete":true}`}
	wf := newTestWorkflow(src, svc, zap.NewNop())

	var mu sync.Mutex
	var states []model.State
	var statuses []string
	wf.Subscribe(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s.State)
		statuses = append(statuses, s.Status)
	})

	_, err := wf.Run(context.Background(), urlA)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []model.State{
		model.StateIdle,
		model.StateAcquiring,
		model.StateNormalizing,
		model.StateReady,
	}, states)
	assert.Equal(t, []string{"", StatusAcquiring, StatusNormalizing, ""}, statuses)
}

func TestWorkflow_SupersededResultIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	src := &MockSource{
		Content: map[string]model.RawContent{urlA: rawFor("A"), urlB: rawFor("B")},
		Gates:   map[string]chan struct{}{urlA: gate},
	}
	svc := &MockService{Reply: `{"content":"Cleaned","isComplete":true}`}
	core, logs := observer.New(zapcore.DebugLevel)
	wf := newTestWorkflow(src, svc, zap.New(core))

	genA := wf.Request(context.Background(), urlA)
	genB := wf.Request(context.Background(), urlB)
	require.Greater(t, genB, genA)

	snapB, err := wf.Wait(context.Background(), genB)
	require.NoError(t, err)
	assert.Equal(t, urlB, snapB.URL)
	assert.Equal(t, model.StateReady, snapB.State)

	_, err = wf.Wait(context.Background(), genA)
	assert.ErrorIs(t, err, ErrSuperseded)

	// Let A finish late; its result must not replace B's
	close(gate)
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("Discarding result of superseded request").Len() == 1
	}, time.Second, 10*time.Millisecond)

	current := wf.Current()
	assert.Equal(t, genB, current.Generation)
	assert.Equal(t, urlB, current.URL)
	require.NotNil(t, current.Article)
	assert.Equal(t, "B", model.Value(current.Article.Metadata.Title))
	assert.Equal(t, int32(1), svc.calls.Load(), "superseded request never reaches cleanup")
}

func TestWorkflow_SupersededDuringNormalization(t *testing.T) {
	rawA, rawB := rawFor("A"), rawFor("B")
	gate := make(chan struct{})
	src := &MockSource{Content: map[string]model.RawContent{urlA: rawA, urlB: rawB}}
	svc := &MockService{
		Replies: map[string]string{
			rawA.Markdown: `{"content":"# A","isComplete":true}`,
			rawB.Markdown: `{"content":"# B","isComplete":true}`,
		},
		Gates: map[string]chan struct{}{rawA.Markdown: gate},
	}
	core, logs := observer.New(zapcore.DebugLevel)
	wf := newTestWorkflow(src, svc, zap.New(core))

	genA := wf.Request(context.Background(), urlA)
	require.Eventually(t, func() bool {
		s := wf.Current()
		return s.Generation == genA && s.State == model.StateNormalizing
	}, time.Second, 5*time.Millisecond)

	genB := wf.Request(context.Background(), urlB)
	snapB, err := wf.Wait(context.Background(), genB)
	require.NoError(t, err)
	require.NotNil(t, snapB.Article)
	assert.Equal(t, "# B", snapB.Article.Markdown)

	// A's cleanup resolves after B is ready
	close(gate)
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("Discarding result of superseded request").Len() == 1
	}, time.Second, 10*time.Millisecond)

	current := wf.Current()
	assert.Equal(t, genB, current.Generation)
	assert.Equal(t, urlB, current.URL)
	assert.Equal(t, model.StateReady, current.State)
	require.NotNil(t, current.Article)
	assert.Equal(t, "# B", current.Article.Markdown)
	assert.Equal(t, int32(2), svc.calls.Load(), "both requests reached cleanup")
}

func TestWorkflow_NewRequestResetsState(t *testing.T) {
	src := &MockSource{Content: map[string]model.RawContent{urlA: rawFor("A")}}
	wf := newTestWorkflow(src, &MockService{ShouldFail: true}, zap.NewNop())

	first, err := wf.Run(context.Background(), urlA)
	require.NoError(t, err)
	require.True(t, first.Fallback)

	gate := make(chan struct{})
	src.Gates = map[string]chan struct{}{urlB: gate}
	gen := wf.Request(context.Background(), urlB)

	current := wf.Current()
	assert.Equal(t, gen, current.Generation)
	assert.Equal(t, model.StateAcquiring, current.State)
	assert.Nil(t, current.Article, "previous article must not leak into the new request")
	assert.False(t, current.Fallback)
	assert.Empty(t, current.Reason)

	close(gate)
	snap, err := wf.Wait(context.Background(), gen)
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, snap.State)
}

func TestWorkflow_WaitHonoursContext(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	src := &MockSource{Gates: map[string]chan struct{}{urlA: gate}}
	wf := newTestWorkflow(src, &MockService{}, zap.NewNop())

	gen := wf.Request(context.Background(), urlA)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := wf.Wait(ctx, gen)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, model.StateAcquiring, wf.Current().State)
}
