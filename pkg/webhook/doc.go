// Package webhook delivers signed JSON payloads over HTTP.
//
// Sender.Send retries temporary failures (network errors, 5xx, 408, 425, 429) with exponential
// backoff and gives up immediately on other 4xx responses:
//
//	sender := webhook.NewSender(nil)
//	err := sender.Send(ctx, "https://hooks.example.com/flags", payload,
//		webhook.WithSignature(secret),
//		webhook.WithMaxRetries(5),
//	)
//
// With a secret, each request carries X-Flagkit-Timestamp and X-Flagkit-Signature headers where
// the signature is hex(HMAC-SHA256(secret, "<timestamp>.<body>")). Receivers check it with Verify.
// Every request also carries X-Flagkit-Delivery, stable across retries of one Send.
package webhook
