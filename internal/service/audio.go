package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"vocalsilence/internal/config"
	"vocalsilence/internal/llm"
	"vocalsilence/internal/model"
)

// Largest clip we are willing to download.
const maxAudioBytes = 25 << 20

var (
	ErrAudioTooLong        = errors.New("audio too long")
	ErrTranscriberDisabled = errors.New("transcription not configured")
	ErrUntrustedMedia      = errors.New("media host not trusted")
)

// AudioError is a failed audio message. Reply is what the participant sees.
type AudioError struct {
	Reply string
	Err   error
}

func (e *AudioError) Error() string { return "audio: " + e.Err.Error() }
func (e *AudioError) Unwrap() error { return e.Err }

// AudioService estimates, downloads and transcribes media sent by participants.
type AudioService struct {
	httpClient  *http.Client
	accountSID  string
	authToken   string
	mediaHosts  []string
	transcriber llm.Transcriber
	limits      config.AudioConfig
	logger      *zap.Logger
}

func NewAudioService(transcriber llm.Transcriber, twilio config.TwilioConfig, limits config.AudioConfig, logger *zap.Logger) *AudioService {
	return &AudioService{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		accountSID:  twilio.AccountSID,
		authToken:   twilio.AuthToken,
		mediaHosts:  twilio.MediaHosts,
		transcriber: transcriber,
		limits:      limits,
		logger:      logger.With(zap.String("component", "audio")),
	}
}

// Limit is the longest clip accepted for a question type.
func (a *AudioService) Limit(qt model.QuestionType) time.Duration {
	switch qt {
	case model.QuestionMultipleChoice:
		return a.limits.MaxMultipleChoice
	case model.QuestionLikert:
		return a.limits.MaxLikert
	default:
		return a.limits.MaxText
	}
}

// Transcribe turns a media attachment into text for a question of type qt.
// Every failure is an *AudioError.
func (a *AudioService) Transcribe(ctx context.Context, media *model.Media, qt model.QuestionType) (*llm.Transcription, error) {
	if a.transcriber == nil {
		return nil, &AudioError{Reply: msgAudioFailed, Err: ErrTranscriberDisabled}
	}
	if !a.trustedMedia(media.URL) {
		a.logger.Warn("media from untrusted host refused", zap.String("url", media.URL))
		return nil, &AudioError{Reply: msgAudioError, Err: ErrUntrustedMedia}
	}
	limit := a.Limit(qt)

	estimate := a.EstimateDuration(ctx, media.URL)
	if estimate > 2*limit {
		a.logger.Info("audio rejected before download", zap.Duration("estimate", estimate), zap.Duration("limit", limit))
		return nil, tooLong(estimate, limit)
	}

	data, err := a.download(ctx, media.URL)
	if err != nil {
		a.logger.Warn("audio download failed", zap.Error(err))
		return nil, &AudioError{Reply: msgAudioError, Err: err}
	}

	result, err := a.transcriber.Transcribe(ctx, bytes.NewReader(data), "audio"+audioExtension(media.ContentType))
	if err != nil {
		a.logger.Warn("transcription failed", zap.Int("bytes", len(data)), zap.Error(err))
		return nil, &AudioError{Reply: msgAudioFailed, Err: err}
	}
	if result.Duration > limit {
		return nil, tooLong(result.Duration, limit)
	}
	return result, nil
}

// EstimateDuration guesses a clip's length from its Content-Length. When the
// size is unknown it assumes the free-text ceiling so the clip is downloaded.
func (a *AudioService) EstimateDuration(ctx context.Context, mediaURL string) time.Duration {
	fallback := a.limits.MaxText
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, mediaURL, nil)
	if err != nil {
		return fallback
	}
	a.authorize(req)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Debug("audio HEAD failed", zap.Error(err))
		return fallback
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 || resp.ContentLength <= 0 || a.limits.BytesPerSecond <= 0 {
		return fallback
	}
	seconds := float64(resp.ContentLength) / float64(a.limits.BytesPerSecond)
	return time.Duration(seconds * float64(time.Second))
}

func (a *AudioService) download(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	a.authorize(req)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("download: media returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	return data, nil
}

// authorize attaches the account credentials, but only for trusted hosts.
func (a *AudioService) authorize(req *http.Request) {
	if a.accountSID != "" && hostAllowed(req.URL.Hostname(), a.mediaHosts) {
		req.SetBasicAuth(a.accountSID, a.authToken)
	}
}

func (a *AudioService) trustedMedia(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return false
	}
	return hostAllowed(u.Hostname(), a.mediaHosts)
}

// hostAllowed matches host against domains exactly or as a subdomain.
func hostAllowed(host string, domains []string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return false
	}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(d, "."))
		if d != "" && (host == d || strings.HasSuffix(host, "."+d)) {
			return true
		}
	}
	return false
}

func tooLong(d, limit time.Duration) *AudioError {
	return &AudioError{
		Reply: fmt.Sprintf(msgAudioTooLong, int(math.Round(d.Seconds())), int(limit.Seconds())),
		Err:   ErrAudioTooLong,
	}
}

func audioExtension(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "mpeg"), strings.Contains(ct, "mp3"):
		return ".mp3"
	case strings.Contains(ct, "mp4"), strings.Contains(ct, "m4a"):
		return ".mp4"
	case strings.Contains(ct, "wav"):
		return ".wav"
	default:
		return ".ogg"
	}
}

// audioPreview is the transcript echo put in front of the reply.
func audioPreview(text string) string {
	r := []rune(text)
	if len(r) > 100 {
		return fmt.Sprintf(msgAudioHeard, string(r[:100])+"...")
	}
	return fmt.Sprintf(msgAudioHeard, text)
}
