package profiles

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castingai/internal/domain"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client := New(Config{BaseURL: srv.URL, APIKey: "secret"}, nil)
	return client, srv.Close
}

func TestGetReturnsProfileOnSuccess(t *testing.T) {
	client, closeFn := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/talents/t1", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(domain.TalentProfile{ID: "t1", Name: "Jordan Lee"})
	})
	defer closeFn()

	profile, ok, err := client.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Jordan Lee", profile.Name)
}

func TestGetReturnsNotFoundAsFalseNotError(t *testing.T) {
	client, closeFn := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer closeFn()

	_, ok, err := client.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScanAllReturnsActiveTalents(t *testing.T) {
	client, closeFn := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "status=active", r.URL.RawQuery)
		_ = json.NewEncoder(w).Encode([]domain.TalentProfile{{ID: "t1"}, {ID: "t2"}})
	})
	defer closeFn()

	out, err := client.ScanAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestMarkArchivedPostsToArchiveEndpoint(t *testing.T) {
	var called bool
	client, closeFn := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/talents/t1/archive", r.URL.Path)
	})
	defer closeFn()

	require.NoError(t, client.MarkArchived(context.Background(), "t1"))
	assert.True(t, called)
}

func TestDoReturnsProviderUnavailableOnServerError(t *testing.T) {
	client, closeFn := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer closeFn()

	_, _, err := client.Get(context.Background(), "t1")
	require.Error(t, err)
}
