package service

import (
	"context"
	"encoding/json"
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
	"vocalsilence/internal/logging"
)

// WhatsApp rejects bodies longer than this.
const maxMessageLength = 1600

var ErrMessengerDisabled = errors.New("messenger not configured")

// Messenger delivers text to a participant and returns the delivery id.
type Messenger interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// TwilioClient wraps the Twilio Messages API for WhatsApp
type TwilioClient struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	httpClient *http.Client
	maxRetries int
	logger     *zap.Logger
}

// NewTwilioClient creates a new Twilio API client
func NewTwilioClient(cfg config.TwilioConfig, logger *zap.Logger) *TwilioClient {
	if cfg.AccountSID == "" {
		logger.Warn("TWILIO_ACCOUNT_SID not set, outbound messages are disabled")
	}
	return &TwilioClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.WhatsAppFrom,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
		logger:     logger.With(zap.String("component", "twilio")),
	}
}

type twilioMessage struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"` // set on errors
	Code    int    `json:"code,omitempty"`
}

// Send delivers body, split into several messages when it is too long.
// The id of the last delivered part is returned.
func (c *TwilioClient) Send(ctx context.Context, to, body string) (string, error) {
	if c.accountSID == "" {
		return "", ErrMessengerDisabled
	}
	var sid string
	for _, part := range splitMessage(body, maxMessageLength) {
		form := url.Values{}
		form.Set("From", whatsappAddress(c.from))
		form.Set("To", whatsappAddress(to))
		form.Set("Body", part)

		respBody, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/Accounts/%s/Messages.json", c.accountSID), form)
		if err != nil {
			return sid, err
		}
		var msg twilioMessage
		if err := json.Unmarshal(respBody, &msg); err != nil {
			return sid, fmt.Errorf("failed to parse message response: %w", err)
		}
		sid = msg.SID
		c.logger.Debug("message sent", logging.Participant(to), zap.String("sid", sid), zap.String("status", msg.Status))
	}
	return sid, nil
}

// doRequest performs a form request with retry on rate limits and server errors
func (c *TwilioClient) doRequest(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	endpoint := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			c.logger.Info("retrying request", zap.Int("attempt", attempt+1), zap.Duration("backoff", backoff), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.SetBasicAuth(c.accountSID, c.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("twilio API error %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("twilio API error %d: %s", resp.StatusCode, string(respBody))
		}
		return respBody, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func whatsappAddress(number string) string {
	n := strings.TrimSpace(number)
	if strings.HasPrefix(n, "whatsapp:") {
		return n
	}
	if !strings.HasPrefix(n, "+") {
		n = "+" + n
	}
	return "whatsapp:" + n
}

// splitMessage cuts text into parts of at most limit runes, preferring
// paragraph and line breaks.
func splitMessage(text string, limit int) []string {
	r := []rune(text)
	if len(r) <= limit {
		return []string{text}
	}
	var parts []string
	for len(r) > limit {
		cut := limit
		window := string(r[:limit])
		if i := strings.LastIndex(window, "\n\n"); i > 0 {
			cut = len([]rune(window[:i]))
		} else if i := strings.LastIndex(window, "\n"); i > 0 {
			cut = len([]rune(window[:i]))
		}
		parts = append(parts, strings.TrimSpace(string(r[:cut])))
		r = []rune(strings.TrimLeft(string(r[cut:]), "\n "))
	}
	if len(r) > 0 {
		parts = append(parts, string(r))
	}
	return parts
}
