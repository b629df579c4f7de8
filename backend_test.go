package realtime

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pippin-app/realtime-go/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendCreateRealtimeSession(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/realtime/session", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"sess_1","client_secret":{"value":"ek_test"},"voice":"verse"}`))
	}))
	defer server.Close()

	backend, err := NewBackend(shared.NewNopLogger(), server.URL)
	require.NoError(t, err)

	cred, err := backend.CreateRealtimeSession(context.Background(), "verse")
	require.NoError(t, err)
	assert.Equal(t, "ek_test", cred.Token)
	assert.Equal(t, "sess_1", cred.Descriptor["id"])
	assert.Equal(t, map[string]any{"voice": "verse"}, gotBody)
}

func TestBackendCreateRealtimeSessionFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-success status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream unavailable", http.StatusBadGateway)
			},
		},
		{
			name: "missing client secret",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"id":"sess_1"}`))
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()
			backend, err := NewBackend(shared.NewNopLogger(), server.URL)
			require.NoError(t, err)
			_, err = backend.CreateRealtimeSession(context.Background(), "")
			assert.ErrorIs(t, err, shared.ErrCredential)
		})
	}
}

func TestBackendExecuteFunctionCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/realtime/function-call", r.URL.Path)
		require.Equal(t, "Bearer jwt_test", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var got map[string]any
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "create_task", got["name"])
		_, _ = w.Write([]byte(`{"status":"ok","result":{"id":3,"title":"pack boxes"}}`))
	}))
	defer server.Close()

	backend, err := NewBackend(shared.NewNopLogger(), server.URL)
	require.NoError(t, err)
	backend.SetAccessToken("jwt_test")

	result, err := backend.ExecuteFunctionCall(context.Background(), "create_task", map[string]any{"title": "pack boxes"})
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, "pack boxes", result.Result["title"])
}

func TestBackendExecuteFunctionCallNonSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported function name", http.StatusBadRequest)
	}))
	defer server.Close()

	backend, err := NewBackend(shared.NewNopLogger(), server.URL)
	require.NoError(t, err)
	_, err = backend.ExecuteFunctionCall(context.Background(), "nope", map[string]any{})
	assert.ErrorIs(t, err, shared.ErrExecution)
}

func TestBackendLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/login", r.URL.Path)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("username") != "me@example.com" || r.PostForm.Get("password") != "secret" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"jwt_test","token_type":"bearer"}`))
	}))
	defer server.Close()

	backend, err := NewBackend(shared.NewNopLogger(), server.URL)
	require.NoError(t, err)

	require.NoError(t, backend.Login(context.Background(), "me@example.com", "secret"))

	err = backend.Login(context.Background(), "me@example.com", "wrong")
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestBackendHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"app":"ok","db":"ok"}`))
	}))
	defer server.Close()

	backend, err := NewBackend(shared.NewNopLogger(), server.URL)
	require.NoError(t, err)
	assert.NoError(t, backend.Health(context.Background()))
}

func TestNewBackendRequiresLogger(t *testing.T) {
	_, err := NewBackend(nil, "http://localhost:8000")
	assert.ErrorIs(t, err, shared.ErrNoLogger)
}
