package structure

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxlog-ai/voxlog/pkg/diary"
)

// chatServer returns an httptest server that wraps content into the
// chat-completion envelope.
func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req["model"])
		assert.Equal(t, map[string]any{"type": "json_object"}, req["response_format"])

		resp := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestStructureSuccess(t *testing.T) {
	srv := chatServer(t, `{
		"title": "A walk in the park",
		"content": "Went for a walk today. The weather was lovely.",
		"mood": "happy",
		"key_events": ["walk in the park"],
		"todos": [],
		"tags": ["outdoors"]
	}`)
	defer srv.Close()

	client := NewClient("test-key").WithBaseURL(srv.URL)
	entry, err := client.Structure(context.Background(), "went for a walk today weather lovely")
	require.NoError(t, err)

	assert.Equal(t, "A walk in the park", entry.Title)
	assert.Equal(t, diary.MoodHappy, entry.Mood)
	assert.Equal(t, []string{"walk in the park"}, entry.KeyEvents)
	assert.Equal(t, []string{}, entry.Todos)
	assert.Equal(t, []string{"outdoors"}, entry.Tags)
}

func TestStructureCoercesUnknownMood(t *testing.T) {
	srv := chatServer(t, `{"title": "t", "content": "c", "mood": "furious"}`)
	defer srv.Close()

	client := NewClient("test-key").WithBaseURL(srv.URL)
	entry, err := client.Structure(context.Background(), "so angry right now")
	require.NoError(t, err)

	// Leniency policy: unknown moods become neutral instead of failing.
	assert.Equal(t, diary.MoodNeutral, entry.Mood)
}

func TestStructureDefaultsOptionalSlices(t *testing.T) {
	srv := chatServer(t, `{"title": "t", "content": "c", "mood": "sad"}`)
	defer srv.Close()

	client := NewClient("test-key").WithBaseURL(srv.URL)
	entry, err := client.Structure(context.Background(), "quiet day")
	require.NoError(t, err)

	assert.NotNil(t, entry.KeyEvents)
	assert.NotNil(t, entry.Todos)
	assert.NotNil(t, entry.Tags)
	assert.Empty(t, entry.KeyEvents)
}

func TestStructureMissingRequiredField(t *testing.T) {
	srv := chatServer(t, `{"title": "t", "mood": "happy"}`)
	defer srv.Close()

	client := NewClient("test-key").WithBaseURL(srv.URL)
	_, err := client.Structure(context.Background(), "transcript")

	var decErr *DecodeError
	require.True(t, errors.As(err, &decErr))
	assert.Contains(t, decErr.Reason, "content")
}

func TestStructureInvalidJSON(t *testing.T) {
	srv := chatServer(t, "Here is your diary entry: sorry, I cannot produce JSON.")
	defer srv.Close()

	client := NewClient("test-key").WithBaseURL(srv.URL)
	_, err := client.Structure(context.Background(), "transcript")

	var decErr *DecodeError
	require.True(t, errors.As(err, &decErr))
	assert.Contains(t, decErr.Reason, "invalid JSON")
}

func TestStructureServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient("test-key").WithBaseURL(srv.URL)
	_, err := client.Structure(context.Background(), "transcript")

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusTooManyRequests, reqErr.Status)
}

func TestStructureMissingCredential(t *testing.T) {
	client := NewClient("")
	_, err := client.Structure(context.Background(), "transcript")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
