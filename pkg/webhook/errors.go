package webhook

import "errors"

var (
	ErrWebhookDeliveryFailed = errors.New("webhook: delivery failed")
	ErrInvalidConfiguration  = errors.New("webhook: invalid sender configuration")
	ErrInvalidURL            = errors.New("webhook: invalid url")
	ErrInvalidPayload        = errors.New("webhook: payload cannot be encoded")
	ErrInvalidSignature      = errors.New("webhook: signature mismatch")

	// Retries stop on ErrPermanentFailure and continue on ErrTemporaryFailure.
	ErrPermanentFailure = errors.New("webhook: permanent failure")
	ErrTemporaryFailure = errors.New("webhook: temporary failure")
)
