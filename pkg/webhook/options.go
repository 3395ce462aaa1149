package webhook

import (
	"math"
	"net/http"
	"time"
)

// DeliveryResult describes one delivery attempt.
type DeliveryResult struct {
	StatusCode int
	Attempt    int
	Duration   time.Duration
	// RetryAfter is the delay requested by a 429 or 503 response, zero otherwise.
	RetryAfter time.Duration
	Err        error
}

type sendOptions struct {
	timeout       time.Duration
	maxRetryAfter time.Duration
	headers    map[string]string
	maxRetries int
	backoff    func(attempt int) time.Duration
	secret     string
	deliveryID string
	onDelivery func(DeliveryResult)
}

func defaultSendOptions() *sendOptions {
	return &sendOptions{
		timeout:       10 * time.Second,
		maxRetryAfter: time.Minute,
		headers:    make(map[string]string),
		maxRetries: 3,
		backoff:    ExponentialBackoff(time.Second, 30*time.Second),
	}
}

// SendOption configures a single Send call.
type SendOption func(*sendOptions)

// WithTimeout sets the per-attempt request timeout. Default is 10 seconds.
func WithTimeout(timeout time.Duration) SendOption {
	return func(o *sendOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) SendOption {
	return func(o *sendOptions) {
		o.headers[key] = value
	}
}

// WithMaxRetries sets how many times a failed delivery is retried. Default is 3.
func WithMaxRetries(n int) SendOption {
	return func(o *sendOptions) {
		o.maxRetries = max(n, 0)
	}
}

// WithMaxRetryAfter caps the wait a receiver can request with Retry-After.
// Zero ignores the header. Default is one minute.
func WithMaxRetryAfter(d time.Duration) SendOption {
	return func(o *sendOptions) {
		o.maxRetryAfter = max(d, 0)
	}
}

// WithBackoff sets the delay before retry attempt n (starting at 1).
func WithBackoff(fn func(attempt int) time.Duration) SendOption {
	return func(o *sendOptions) {
		if fn != nil {
			o.backoff = fn
		}
	}
}

// WithSignature signs the payload with secret, see Sign.
func WithSignature(secret string) SendOption {
	return func(o *sendOptions) {
		o.secret = secret
	}
}

// WithDeliveryID sets the id sent in the delivery header; receivers use it for idempotency.
// A random id is generated when unset.
func WithDeliveryID(id string) SendOption {
	return func(o *sendOptions) {
		o.deliveryID = id
	}
}

// WithOnDelivery registers a hook called after every attempt.
func WithOnDelivery(fn func(DeliveryResult)) SendOption {
	return func(o *sendOptions) {
		o.onDelivery = fn
	}
}

// ExponentialBackoff doubles the delay on every attempt up to maxInterval.
func ExponentialBackoff(initial, maxInterval time.Duration) func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt <= 0 {
			return 0
		}
		d := time.Duration(float64(initial) * math.Pow(2, float64(attempt-1)))
		if d <= 0 || d > maxInterval {
			return maxInterval
		}
		return d
	}
}

// httpClient is satisfied by *http.Client.
type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}
