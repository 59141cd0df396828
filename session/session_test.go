package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sidekick/core"
	"github.com/hupe1980/sidekick/model"
)

type stubModel struct {
	generate func(ctx context.Context, req model.Request) (*model.Response, error)
}

func (s *stubModel) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	return s.generate(ctx, req)
}

func (s *stubModel) Info() model.Info {
	return model.Info{Name: "stub", Provider: "test", SupportsTools: true}
}

type stubJudge struct {
	stubModel
	verdict core.EvaluatorVerdict
}

func (s *stubJudge) GenerateStructured(ctx context.Context, req model.Request, schema model.ResponseSchema) (json.RawMessage, error) {
	return json.Marshal(s.verdict)
}

func newStubModels(answer, feedback string) (model.Model, model.Model) {
	worker := &stubModel{generate: func(ctx context.Context, req model.Request) (*model.Response, error) {
		return &model.Response{Message: core.NewAssistantMessage(answer)}, nil
	}}
	judge := &stubJudge{verdict: core.EvaluatorVerdict{Feedback: feedback, SuccessCriteriaMet: true}}
	return worker, judge
}

// trackingResource counts release calls and optionally fails or panics.
type trackingResource struct {
	name     string
	releases int
	fail     bool
	panics   bool
}

func (r *trackingResource) Name() string { return r.name }

func (r *trackingResource) Release(ctx context.Context) error {
	r.releases++
	if r.panics {
		panic("release blew up")
	}
	if r.fail {
		return errors.New("release failed")
	}
	return nil
}

func TestRunTurnReturnsThreeNewEntries(t *testing.T) {
	worker, judge := newStubModels("Hello there!", "contains hello")
	manager := NewManager(worker, judge)

	sess, err := manager.Create(context.Background())
	require.NoError(t, err)

	history := []TranscriptEntry{{Role: "user", Content: "earlier"}}

	updated, err := sess.RunTurn(context.Background(), "Say hello", "Response must contain the word hello", history)
	require.NoError(t, err)
	require.Len(t, updated, 4)

	assert.Equal(t, TranscriptEntry{Role: "user", Content: "earlier"}, updated[0])
	assert.Equal(t, TranscriptEntry{Role: "user", Content: "Say hello"}, updated[1])
	assert.Equal(t, TranscriptEntry{Role: "assistant", Content: "Hello there!"}, updated[2])
	assert.Equal(t, TranscriptEntry{Role: "assistant", Content: "Evaluator Feedback on this answer: contains hello"}, updated[3])
}

func TestRunTurnDefaultsSuccessCriterion(t *testing.T) {
	var seenInstruction string
	worker := &stubModel{generate: func(ctx context.Context, req model.Request) (*model.Response, error) {
		if len(req.Messages) > 0 && req.Messages[0].Role == core.RoleSystem {
			seenInstruction = req.Messages[0].Content
		}
		return &model.Response{Message: core.NewAssistantMessage("fine")}, nil
	}}
	judge := &stubJudge{verdict: core.EvaluatorVerdict{Feedback: "ok", SuccessCriteriaMet: true}}

	manager := NewManager(worker, judge)
	sess, err := manager.Create(context.Background())
	require.NoError(t, err)

	_, err = sess.RunTurn(context.Background(), "do something", "", nil)
	require.NoError(t, err)

	assert.Contains(t, seenInstruction, core.DefaultSuccessCriterion)
	assert.Equal(t, core.DefaultSuccessCriterion, sess.State().SuccessCriterion)
}

func TestRunTurnResetsVerdictFields(t *testing.T) {
	worker, _ := newStubModels("answer", "")
	judge := &stubJudge{verdict: core.EvaluatorVerdict{Feedback: "needs input", UserInputNeeded: true}}

	manager := NewManager(worker, judge)
	sess, err := manager.Create(context.Background())
	require.NoError(t, err)

	_, err = sess.RunTurn(context.Background(), "first", "", nil)
	require.NoError(t, err)
	assert.True(t, sess.State().UserInputNeeded)

	// A fresh turn starts with cleared flags before the graph runs again.
	judge.verdict = core.EvaluatorVerdict{Feedback: "done", SuccessCriteriaMet: true}
	_, err = sess.RunTurn(context.Background(), "second", "", nil)
	require.NoError(t, err)
	assert.True(t, sess.State().SuccessCriteriaMet)
	assert.False(t, sess.State().UserInputNeeded)
}

func TestDisposeIsIdempotentAndSwallowsFailures(t *testing.T) {
	worker, judge := newStubModels("x", "y")

	failing := &trackingResource{name: "browser", fail: true}
	panicking := &trackingResource{name: "driver", panics: true}
	healthy := &trackingResource{name: "allocator"}

	provider := &stubProvider{resources: []Resource{failing, panicking, healthy}}
	manager := NewManager(worker, judge, func(o *ManagerOptions) {
		o.Providers = []Provider{provider}
	})

	sess, err := manager.Create(context.Background())
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		sess.Dispose(context.Background())
		sess.Dispose(context.Background())
	})

	// Every resource was attempted on both passes, failures notwithstanding.
	assert.Equal(t, 2, failing.releases)
	assert.Equal(t, 2, panicking.releases)
	assert.Equal(t, 2, healthy.releases)
}

func TestDisposeWithoutResourcesIsNoOp(t *testing.T) {
	worker, judge := newStubModels("x", "y")
	manager := NewManager(worker, judge)

	sess, err := manager.Create(context.Background())
	require.NoError(t, err)

	assert.NotPanics(t, func() { sess.Dispose(context.Background()) })
}

type stubProvider struct {
	resources []Resource
	err       error
}

func (p *stubProvider) Acquire(ctx context.Context) ([]Tool, []Resource, error) {
	if p.err != nil {
		return nil, nil, p.err
	}
	return nil, p.resources, nil
}

func TestManagerLifecycle(t *testing.T) {
	worker, judge := newStubModels("x", "y")
	res := &trackingResource{name: "browser"}
	manager := NewManager(worker, judge, func(o *ManagerOptions) {
		o.Providers = []Provider{&stubProvider{resources: []Resource{res}}}
	})

	sess, err := manager.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, manager.Len())

	got, ok := manager.Get(sess.ID())
	require.True(t, ok)
	assert.Same(t, sess, got)

	manager.Dispose(context.Background(), sess.ID())
	assert.Equal(t, 0, manager.Len())
	assert.Equal(t, 1, res.releases)

	// Unknown ids are a no-op.
	manager.Dispose(context.Background(), "missing")
}

func TestManagerCreateReleasesOnProviderFailure(t *testing.T) {
	worker, judge := newStubModels("x", "y")
	acquired := &trackingResource{name: "browser"}
	manager := NewManager(worker, judge, func(o *ManagerOptions) {
		o.Providers = []Provider{
			&stubProvider{resources: []Resource{acquired}},
			&stubProvider{err: errors.New("launch failed")},
		}
	})

	_, err := manager.Create(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, acquired.releases)
	assert.Equal(t, 0, manager.Len())
}

func TestManagerDisposeAll(t *testing.T) {
	worker, judge := newStubModels("x", "y")
	first := &trackingResource{name: "a"}
	second := &trackingResource{name: "b"}

	manager := NewManager(worker, judge, func(o *ManagerOptions) {
		o.Providers = []Provider{&stubProvider{resources: []Resource{first}}}
	})
	_, err := manager.Create(context.Background())
	require.NoError(t, err)

	manager.opts.Providers = []Provider{&stubProvider{resources: []Resource{second}}}
	_, err = manager.Create(context.Background())
	require.NoError(t, err)

	manager.DisposeAll(context.Background())
	assert.Equal(t, 0, manager.Len())
	assert.Equal(t, 1, first.releases)
	assert.Equal(t, 1, second.releases)
}
