package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vocalsilence/internal/config"
	"vocalsilence/internal/model"
	"vocalsilence/internal/service"
)

type fakeSubmitter struct {
	got []model.InboundMessage
	err error
}

func (f *fakeSubmitter) Submit(msg model.InboundMessage) error {
	if f.err != nil {
		return f.err
	}
	f.got = append(f.got, msg)
	return nil
}

type fakeDedupe struct {
	seen map[string]bool
}

func (f *fakeDedupe) FirstSeen(_ context.Context, id string) (bool, error) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[id] {
		return false, nil
	}
	f.seen[id] = true
	return true, nil
}

func postForm(h http.HandlerFunc, form url.Values, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestWebhookQueuesMessage(t *testing.T) {
	sub := &fakeSubmitter{}
	h := NewWebhookHandler(sub, &fakeDedupe{}, config.TwilioConfig{}, zap.NewNop())

	rec := postForm(h.Twilio, url.Values{
		"From":       {"whatsapp:+5511988887777"},
		"Body":       {"sim"},
		"MessageSid": {"SM1"},
	}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/xml", rec.Header().Get("Content-Type"))
	assert.Equal(t, emptyTwiML, rec.Body.String())
	require.Len(t, sub.got, 1)
	assert.Equal(t, model.InboundMessage{ParticipantID: "5511988887777", Body: "sim", MessageSID: "SM1"}, sub.got[0])
}

func TestWebhookPrefersWaID(t *testing.T) {
	sub := &fakeSubmitter{}
	h := NewWebhookHandler(sub, nil, config.TwilioConfig{}, zap.NewNop())

	postForm(h.Twilio, url.Values{"WaId": {"5511000000000"}, "From": {"whatsapp:+1"}, "Body": {"oi"}}, nil)
	require.Len(t, sub.got, 1)
	assert.Equal(t, "5511000000000", sub.got[0].ParticipantID)
}

func TestWebhookMedia(t *testing.T) {
	sub := &fakeSubmitter{}
	h := NewWebhookHandler(sub, nil, config.TwilioConfig{}, zap.NewNop())

	postForm(h.Twilio, url.Values{
		"WaId":              {"5511"},
		"NumMedia":          {"1"},
		"MediaUrl0":         {"https://api.twilio.com/media/ME1"},
		"MediaContentType0": {"audio/ogg"},
	}, nil)

	require.Len(t, sub.got, 1)
	assert.Equal(t, &model.Media{URL: "https://api.twilio.com/media/ME1", ContentType: "audio/ogg"}, sub.got[0].Media)

	postForm(h.Twilio, url.Values{"WaId": {"5511"}, "NumMedia": {"0"}, "MediaUrl0": {"x"}}, nil)
	require.Len(t, sub.got, 2)
	assert.Nil(t, sub.got[1].Media)
}

func TestWebhookMissingSender(t *testing.T) {
	sub := &fakeSubmitter{}
	h := NewWebhookHandler(sub, nil, config.TwilioConfig{}, zap.NewNop())

	rec := postForm(h.Twilio, url.Values{"Body": {"oi"}}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, sub.got)
}

func TestWebhookDuplicateDelivery(t *testing.T) {
	sub := &fakeSubmitter{}
	h := NewWebhookHandler(sub, &fakeDedupe{}, config.TwilioConfig{}, zap.NewNop())
	form := url.Values{"WaId": {"5511"}, "Body": {"4"}, "MessageSid": {"SM9"}}

	first := postForm(h.Twilio, form, nil)
	second := postForm(h.Twilio, form, nil)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Len(t, sub.got, 1)
}

func TestWebhookDispatcherClosed(t *testing.T) {
	h := NewWebhookHandler(&fakeSubmitter{err: service.ErrDispatcherClosed}, nil, config.TwilioConfig{}, zap.NewNop())

	rec := postForm(h.Twilio, url.Values{"WaId": {"5511"}, "Body": {"oi"}}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebhookSignature(t *testing.T) {
	cfg := config.TwilioConfig{
		AuthToken:         "12345",
		PublicURL:         "https://mycompany.com/myapp.php?foo=1&bar=2",
		ValidateSignature: true,
	}
	form := url.Values{
		"CallSid": {"CA1234567890ABCDE"},
		"Caller":  {"+12349013030"},
		"Digits":  {"1234"},
		"From":    {"+12349013030"},
		"To":      {"+18005551212"},
	}
	const signature = "0/KCTR6DLpKmkAf8muzZqo1nDgQ="
	assert.Equal(t, signature, computeSignature(cfg.AuthToken, cfg.PublicURL, form))

	sub := &fakeSubmitter{}
	h := NewWebhookHandler(sub, nil, cfg, zap.NewNop())

	rec := postForm(h.Twilio, form, map[string]string{"X-Twilio-Signature": signature})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, sub.got, 1)

	rec = postForm(h.Twilio, form, map[string]string{"X-Twilio-Signature": "bogus"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = postForm(h.Twilio, form, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Len(t, sub.got, 1)
}
