package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sender posts JSON payloads with retries and optional HMAC signing.
type Sender struct {
	client httpClient
	now    func() time.Time
}

// NewSender creates a sender. A nil client uses a pooled http.Client.
func NewSender(client *http.Client) *Sender {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Sender{client: client, now: time.Now}
}

// Send marshals data to JSON and POSTs it to webhookURL.
// 4xx responses other than 408, 425 and 429 fail immediately with ErrPermanentFailure;
// other failures are retried until the retry budget is spent.
func (s *Sender) Send(ctx context.Context, webhookURL string, data any, opts ...SendOption) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if err := validateURL(webhookURL); err != nil {
		return err
	}

	options := defaultSendOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.deliveryID == "" {
		options.deliveryID = uuid.New().String()
	}

	var (
		lastErr error
		wait    time.Duration
	)
	for attempt := 0; attempt <= options.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(max(options.backoff(attempt), wait)):
			}
		}

		result := s.attempt(ctx, webhookURL, payload, options)
		result.Attempt = attempt + 1
		if options.onDelivery != nil {
			options.onDelivery(result)
		}
		if result.Err == nil {
			return nil
		}
		lastErr = result.Err
		wait = min(result.RetryAfter, options.maxRetryAfter)
		if isPermanent(result.StatusCode) {
			return fmt.Errorf("%w: %w", ErrPermanentFailure, result.Err)
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrWebhookDeliveryFailed, options.maxRetries+1, lastErr)
}

func (s *Sender) attempt(ctx context.Context, webhookURL string, payload []byte, o *sendOptions) DeliveryResult {
	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return DeliveryResult{Err: err, Duration: time.Since(start)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "flagkit-webhook/1.0")
	req.Header.Set(HeaderDelivery, o.deliveryID)
	for k, v := range o.headers {
		req.Header.Set(k, v)
	}
	if o.secret != "" {
		ts := s.now().Unix()
		req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(HeaderSignature, Sign(o.secret, ts, payload))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return DeliveryResult{Err: fmt.Errorf("%w: %w", ErrTemporaryFailure, err), Duration: time.Since(start)}
	}
	defer func() { _ = resp.Body.Close() }()

	result := DeliveryResult{StatusCode: resp.StatusCode, Duration: time.Since(start)}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		msg := strings.ReplaceAll(strings.TrimSpace(string(body)), "\n", " ")
		if len(msg) > 200 {
			msg = msg[:200] + "..."
		}
		result.Err = fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, msg)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			result.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), s.now())
		}
	}
	return result
}

// parseRetryAfter reads delay-seconds or an HTTP date. Unparseable values yield zero.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(max(secs, 0)) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(at.Sub(now), 0)
	}
	return 0
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return nil
}

func isPermanent(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return true
}
