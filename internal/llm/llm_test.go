package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocalsilence/internal/config"
)

func TestOpenAIClientComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": " {\"has_risk\": false} "}, "finish_reason": "stop"}]
		}`)
	}))
	defer srv.Close()

	c, err := NewOpenAIClient("test-key", srv.URL+"/v1")
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), Request{
		Model:     "gpt-4.1-nano",
		System:    "classify",
		Messages:  []Message{{Role: RoleUser, Content: "oi"}, {Role: RoleAssistant, Content: "olá"}},
		JSON:      true,
		MaxTokens: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"has_risk": false}`, out)

	assert.Equal(t, "gpt-4.1-nano", got["model"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 3)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", msgs[2].(map[string]any)["role"])
	assert.Equal(t, "json_object", got["response_format"].(map[string]any)["type"])
}

func TestOpenAIClientEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices": []}`)
	}))
	defer srv.Close()

	c, err := NewOpenAIClient("k", srv.URL+"/v1")
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), Request{Model: "m"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error": {"message": "boom"}}`)
	}))
	defer srv.Close()

	c, err := NewOpenAIClient("k", srv.URL+"/v1")
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), Request{Model: "m"})
	assert.Error(t, err)
}

func TestWhisperTranscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/audio/transcriptions"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "pt", r.FormValue("language"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"task": "transcribe", "language": "portuguese", "duration": 4.5, "text": " concordo "}`)
	}))
	defer srv.Close()

	c, err := NewOpenAIClient("k", srv.URL+"/v1")
	require.NoError(t, err)
	tr := NewWhisperTranscriber(c.Client(), "")

	out, err := tr.Transcribe(context.Background(), strings.NewReader("fake-ogg"), "audio.ogg")
	require.NoError(t, err)
	assert.Equal(t, "concordo", out.Text)
	assert.Equal(t, 4500*time.Millisecond, out.Duration)
	assert.Equal(t, "portuguese", out.Language)
}

func TestNewCompleter(t *testing.T) {
	_, err := NewCompleter(context.Background(), &config.AIConfig{Provider: config.ProviderOpenAI})
	assert.ErrorIs(t, err, ErrDisabled)

	c, err := NewCompleter(context.Background(), &config.AIConfig{Provider: config.ProviderOpenAI, OpenAIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	_, err = Disabled{}.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrDisabled)
}
