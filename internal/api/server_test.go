package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castingai/internal/completion"
	"castingai/internal/config"
	"castingai/internal/domain"
	"castingai/internal/embedding"
	"castingai/internal/health"
	"castingai/internal/indexmanager"
	"castingai/internal/memory/stm"
	"castingai/internal/nlp"
	"castingai/internal/orchestrator"
	"castingai/internal/search"
	"castingai/internal/usage"
	"castingai/internal/vectorindex"
	"castingai/internal/vectorindex/flat"
)

type fakeCompletion struct {
	resp completion.Response
	err  error
}

func (f fakeCompletion) Complete(ctx context.Context, req completion.Request) (completion.Response, error) {
	return f.resp, f.err
}

func (f fakeCompletion) Stream(ctx context.Context, req completion.Request) (<-chan completion.Chunk, error) {
	out := make(chan completion.Chunk, 1)
	out <- completion.Chunk{Done: true, Final: &f.resp}
	close(out)
	return out, nil
}

type fakeProfileStore struct {
	profiles map[string]domain.TalentProfile
}

func (f *fakeProfileStore) Get(ctx context.Context, id string) (domain.TalentProfile, bool, error) {
	p, ok := f.profiles[id]
	return p, ok, nil
}

func (f *fakeProfileStore) Scan(ctx context.Context, criteria domain.SearchCriteria) ([]domain.TalentProfile, error) {
	out := make([]domain.TalentProfile, 0, len(f.profiles))
	for _, p := range f.profiles {
		out = append(out, p)
	}
	return out, nil
}

func newTestOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	analyzer, err := nlp.New(context.Background(), nil)
	require.NoError(t, err)
	stmStore := stm.New(stm.DefaultConfig())
	fake := fakeCompletion{resp: completion.Response{Content: "Hello! How can I help?", Model: "gpt-4o-mini", InputTokens: 10, OutputTokens: 5}}
	return orchestrator.New(analyzer, stmStore, nil, nil, nil, nil, nil, nil, fake, nil, usage.New(nil))
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	orch := newTestOrchestrator(t)
	idx := flat.New()
	embedder := embedding.NewLocal(16)
	profiles := &fakeProfileStore{profiles: map[string]domain.TalentProfile{
		"t1": {ID: "t1", Name: "Jordan Lee", Bio: "stunt performer", Status: domain.TalentActive},
	}}
	searchPipeline := search.New(embedder, idx, profiles, nil)
	indexManager := indexmanager.New(config.IndexManagerConfig{Backend: "memory"}, idx, embedder, profiles)
	tracker := usage.New(nil)
	registry := health.New(time.Second)

	return NewServer(config.AuthConfig{}, orch, searchPipeline, idx, indexManager, nil, tracker, registry, nil, nil, 16)
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHandleChatReturnsAssistantContent(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/conversation/chat", chatRequest{Text: "hi there"})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Hello! How can I help?", resp.Content)
	assert.NotEmpty(t, resp.SessionID)
}

func TestHandleChatRejectsEmptyText(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/conversation/chat", chatRequest{Text: ""})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.NotEmpty(t, errResp.Error)
}

func TestHandleGetConversationReturnsTurnsAfterChat(t *testing.T) {
	s := newTestServer(t)
	chatRec := doRequest(t, s, http.MethodPost, "/conversation/chat", chatRequest{Text: "hi there"})
	var chat chatResponse
	require.NoError(t, json.Unmarshal(chatRec.Body.Bytes(), &chat))

	rec := doRequest(t, s, http.MethodGet, "/conversation/"+chat.SessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view conversationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Len(t, view.Turns, 2)
}

func TestHandleDeleteConversationEndsSession(t *testing.T) {
	s := newTestServer(t)
	chatRec := doRequest(t, s, http.MethodPost, "/conversation/chat", chatRequest{Text: "hi there"})
	var chat chatResponse
	require.NoError(t, json.Unmarshal(chatRec.Body.Bytes(), &chat))

	delRec := doRequest(t, s, http.MethodDelete, "/conversation/"+chat.SessionID, nil)
	assert.Equal(t, http.StatusNoContent, delRec.Code)

	rec := doRequest(t, s, http.MethodGet, "/conversation/"+chat.SessionID, nil)
	var view conversationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Empty(t, view.Turns)
}

func TestHandleSemanticSearchReturnsResults(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.indexManager.QueueUpdate(context.Background(), indexmanager.UpdateMessage{
		TalentID: "t1", Op: indexmanager.OpUpsert, Priority: indexmanager.PriorityHigh,
	}))

	rec := doRequest(t, s, http.MethodPost, "/search/talent/semantic", semanticSearchRequest{Query: "stunt performer"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "t1", resp.Results[0].TalentID)
}

func TestHandleIndexStatsReportsCountAndQueueDepth(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/search/index/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats indexStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 16, stats.Dimensions)
	assert.Equal(t, 0, stats.Count)
	assert.Equal(t, 0, stats.ManagerStats.QueueDepth)
}

func TestHandleUsageReportReturnsTrackerReport(t *testing.T) {
	s := newTestServer(t)
	doRequest(t, s, http.MethodPost, "/conversation/chat", chatRequest{Text: "hi there"})

	rec := doRequest(t, s, http.MethodGet, "/ai/usage/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report usage.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Models, 1)
	assert.Equal(t, "gpt-4o-mini", report.Models[0].Model)
}

func TestHandleUsageReportWithoutTrackerReturnsProviderUnavailable(t *testing.T) {
	s := newTestServer(t)
	s.usageTracker = nil

	rec := doRequest(t, s, http.MethodGet, "/ai/usage/report", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleHealthWithoutRegistryReportsHealthy(t *testing.T) {
	s := newTestServer(t)
	s.health = nil

	rec := doRequest(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report health.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, health.StatusHealthy, report.Status)
}

func TestAuthenticateRejectsMissingTokenWhenSecretConfigured(t *testing.T) {
	s := newTestServer(t)
	s.cfg = config.AuthConfig{JWTSecret: "shh"}

	rec := doRequest(t, s, http.MethodPost, "/conversation/chat", chatRequest{Text: "hi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateAcceptsValidToken(t *testing.T) {
	s := newTestServer(t)
	s.cfg = config.AuthConfig{JWTSecret: "shh", Issuer: "castingai", Audience: "castingai-clients"}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"iss": "castingai",
		"aud": "castingai-clients",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("shh"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/conversation/chat", bytes.NewReader(mustMarshal(t, chatRequest{Text: "hi"})))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

var _ vectorindex.Index = (*flat.Index)(nil)
