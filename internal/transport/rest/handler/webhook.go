package handler

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"vocalsilence/internal/cache"
	"vocalsilence/internal/config"
	"vocalsilence/internal/logging"
	"vocalsilence/internal/model"
	"vocalsilence/internal/service"
)

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// Submitter queues an inbound message for processing
type Submitter interface {
	Submit(msg model.InboundMessage) error
}

// WebhookHandler receives WhatsApp messages from Twilio
type WebhookHandler struct {
	submitter Submitter
	dedupe    cache.DedupeCache
	cfg       config.TwilioConfig
	logger    *zap.Logger
}

// NewWebhookHandler creates a new webhook handler. dedupe may be nil.
func NewWebhookHandler(submitter Submitter, dedupe cache.DedupeCache, cfg config.TwilioConfig, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		submitter: submitter,
		dedupe:    dedupe,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "webhook")),
	}
}

// Twilio handles POST /webhooks/twilio
func (h *WebhookHandler) Twilio(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	if h.cfg.ValidateSignature {
		if !validSignature(h.cfg.AuthToken, h.cfg.PublicURL, r.PostForm, r.Header.Get("X-Twilio-Signature")) {
			h.logger.Warn("rejected webhook with bad signature")
			writeError(w, http.StatusForbidden, "invalid signature")
			return
		}
	}

	msg, ok := parseInbound(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing sender")
		return
	}

	if h.dedupe != nil && msg.MessageSID != "" {
		first, err := h.dedupe.FirstSeen(r.Context(), msg.MessageSID)
		if err != nil {
			h.logger.Warn("dedupe lookup failed", zap.String("sid", msg.MessageSID), zap.Error(err))
		} else if !first {
			h.logger.Info("duplicate delivery ignored", zap.String("sid", msg.MessageSID))
			writeTwiML(w)
			return
		}
	}

	if err := h.submitter.Submit(msg); err != nil {
		if errors.Is(err, service.ErrDispatcherClosed) {
			writeError(w, http.StatusServiceUnavailable, "shutting down")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Debug("message queued", logging.Participant(msg.ParticipantID), zap.Bool("media", msg.Media != nil))
	writeTwiML(w)
}

func parseInbound(r *http.Request) (model.InboundMessage, bool) {
	sender := strings.TrimSpace(r.PostForm.Get("WaId"))
	if sender == "" {
		sender = strings.TrimSpace(r.PostForm.Get("From"))
		sender = strings.TrimPrefix(sender, "whatsapp:")
		sender = strings.TrimPrefix(sender, "+")
	}
	if sender == "" {
		return model.InboundMessage{}, false
	}

	msg := model.InboundMessage{
		ParticipantID: sender,
		Body:          r.PostForm.Get("Body"),
		MessageSID:    r.PostForm.Get("MessageSid"),
	}

	numMedia, _ := strconv.Atoi(r.PostForm.Get("NumMedia"))
	if url := r.PostForm.Get("MediaUrl0"); numMedia > 0 && url != "" {
		msg.Media = &model.Media{
			URL:         url,
			ContentType: r.PostForm.Get("MediaContentType0"),
		}
	}
	return msg, true
}

// validSignature checks X-Twilio-Signature: base64(HMAC-SHA1(token, url + sorted key/value pairs)).
func validSignature(authToken, url string, form map[string][]string, signature string) bool {
	if signature == "" || authToken == "" {
		return false
	}
	expected := computeSignature(authToken, url, form)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func computeSignature(authToken, url string, form map[string][]string) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(url)
	for _, k := range keys {
		for _, v := range form[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func writeTwiML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(emptyTwiML))
}
