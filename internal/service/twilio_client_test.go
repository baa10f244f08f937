package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vocalsilence/internal/config"
)

func newTestTwilio(url string) *TwilioClient {
	return NewTwilioClient(config.TwilioConfig{
		AccountSID:   "AC123",
		AuthToken:    "secret",
		WhatsAppFrom: "+14155238886",
		BaseURL:      url,
	}, zap.NewNop())
}

func TestTwilioSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, _ := r.BasicAuth()
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "whatsapp:+14155238886", r.PostForm.Get("From"))
		assert.Equal(t, "whatsapp:+5511988887777", r.PostForm.Get("To"))
		assert.Equal(t, "Olá!", r.PostForm.Get("Body"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid": "SM42", "status": "queued"}`))
	}))
	defer srv.Close()

	sid, err := newTestTwilio(srv.URL).Send(context.Background(), "5511988887777", "Olá!")
	require.NoError(t, err)
	assert.Equal(t, "SM42", sid)
}

func TestTwilioRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"sid": "SM43"}`))
	}))
	defer srv.Close()

	sid, err := newTestTwilio(srv.URL).Send(context.Background(), "whatsapp:+5511988887777", "oi")
	require.NoError(t, err)
	assert.Equal(t, "SM43", sid)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTwilioClientErrorIsFinal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code": 21211, "message": "Invalid 'To' Phone Number"}`))
	}))
	defer srv.Close()

	_, err := newTestTwilio(srv.URL).Send(context.Background(), "123", "oi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "21211")
	assert.Equal(t, int32(1), calls.Load())
}

func TestTwilioDisabled(t *testing.T) {
	_, err := NewTwilioClient(config.TwilioConfig{}, zap.NewNop()).Send(context.Background(), "1", "oi")
	assert.ErrorIs(t, err, ErrMessengerDisabled)
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"curta"}, splitMessage("curta", 10))

	parts := splitMessage("aaaa bbbb\n\ncccc dddd", 12)
	assert.Equal(t, []string{"aaaa bbbb", "cccc dddd"}, parts)

	long := strings.Repeat("x", 25)
	parts = splitMessage(long, 10)
	assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, parts)
}
