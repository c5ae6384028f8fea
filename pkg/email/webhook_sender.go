package email

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Webhook relay headers.
const (
	HeaderWebhookID        = "X-Webhook-ID"
	HeaderWebhookTimestamp = "X-Webhook-Timestamp"
	HeaderWebhookSignature = "X-Webhook-Signature"
)

// WebhookSender relays emails as signed JSON POSTs to an HTTP endpoint,
// typically an internal mail gateway.
type WebhookSender struct {
	url    string
	from   string
	secret string
	client *http.Client
	now    func() time.Time
}

// WebhookMessage is the JSON body posted to the relay.
type WebhookMessage struct {
	ID       string `json:"id"`
	From     string `json:"from"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"html"`
	Tag      string `json:"tag,omitempty"`
}

// NewWebhookSender creates a relay transport. A nil client gets cfg.WebhookTimeout.
func NewWebhookSender(cfg Config, client *http.Client) (*WebhookSender, error) {
	u, err := url.Parse(cfg.WebhookURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: EmailWebhookURL must be an absolute http(s) URL", ErrInvalidConfig)
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: EmailWebhookSecret is required", ErrInvalidConfig)
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.WebhookTimeout}
	}
	return &WebhookSender{
		url:    cfg.WebhookURL,
		from:   cfg.SenderEmail,
		secret: cfg.WebhookSecret,
		client: client,
		now:    time.Now,
	}, nil
}

func (w *WebhookSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	msg := WebhookMessage{
		ID:       uuid.NewString(),
		From:     w.from,
		To:       params.SendTo,
		Subject:  params.Subject,
		BodyHTML: params.BodyHTML,
		Tag:      params.Tag,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToSendEmail, err)
	}

	ts := w.now().Unix()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToSendEmail, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderWebhookID, msg.ID)
	req.Header.Set(HeaderWebhookTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderWebhookSignature, SignWebhook(w.secret, ts, payload))

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToSendEmail, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: relay responded %d", ErrFailedToSendEmail, resp.StatusCode)
	}
	return nil
}

// SignWebhook returns hex(HMAC-SHA256(secret, "<ts>.<payload>")).
func SignWebhook(secret string, ts int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strconv.FormatInt(ts, 10)))
	h.Write([]byte{'.'})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyWebhook checks a relay signature in constant time, rejecting
// timestamps older than maxAge when maxAge is positive.
func VerifyWebhook(secret string, ts int64, payload []byte, signature string, maxAge time.Duration) bool {
	if maxAge > 0 && time.Since(time.Unix(ts, 0)) > maxAge {
		return false
	}
	want := SignWebhook(secret, ts, payload)
	return hmac.Equal([]byte(want), []byte(signature))
}
