package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sidekick/core"
	"github.com/hupe1980/sidekick/model"
	"github.com/hupe1980/sidekick/session"
)

type stubModel struct{}

func (s *stubModel) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	return &model.Response{Message: core.NewAssistantMessage("Hello there!")}, nil
}

func (s *stubModel) Info() model.Info {
	return model.Info{Name: "stub", Provider: "test", SupportsTools: true}
}

type stubJudge struct {
	stubModel
}

func (s *stubJudge) GenerateStructured(ctx context.Context, req model.Request, schema model.ResponseSchema) (json.RawMessage, error) {
	return json.Marshal(core.EvaluatorVerdict{Feedback: "contains hello", SuccessCriteriaMet: true})
}

func newTestServer(t *testing.T) (*Server, *session.Manager) {
	t.Helper()
	manager := session.NewManager(&stubModel{}, &stubJudge{})
	return New(manager, nil), manager
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionTurnRoundTrip(t *testing.T) {
	srv, manager := newTestServer(t)

	// Create a session.
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created createSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.SessionID)
	assert.Equal(t, 1, manager.Len())

	// Run a turn.
	body, err := json.Marshal(turnRequest{
		Message:         "Say hello",
		SuccessCriteria: "Response must contain the word hello",
	})
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/"+created.SessionID+"/turn", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var turn turnResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &turn))
	require.Len(t, turn.History, 3)
	assert.Equal(t, session.TranscriptEntry{Role: "user", Content: "Say hello"}, turn.History[0])
	assert.Equal(t, session.TranscriptEntry{Role: "assistant", Content: "Hello there!"}, turn.History[1])
	assert.Equal(t, session.TranscriptEntry{Role: "assistant", Content: "Evaluator Feedback on this answer: contains hello"}, turn.History[2])

	// Dispose the session.
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+created.SessionID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, manager.Len())
}

func TestTurnValidation(t *testing.T) {
	srv, manager := newTestServer(t)

	sess, err := manager.Create(context.Background())
	require.NoError(t, err)

	// Unknown session.
	body, _ := json.Marshal(turnRequest{Message: "hi"})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/unknown/turn", bytes.NewReader(body)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Empty message.
	body, _ = json.Marshal(turnRequest{})
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/"+sess.ID()+"/turn", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Malformed body.
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/"+sess.ID()+"/turn", bytes.NewReader([]byte("{not json"))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDisposeUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
