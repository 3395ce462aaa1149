package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	HeaderSignature = "X-Flagkit-Signature"
	HeaderTimestamp = "X-Flagkit-Timestamp"
	HeaderDelivery  = "X-Flagkit-Delivery"
	HeaderEvent     = "X-Flagkit-Event"
)

// Sign returns the hex HMAC-SHA256 of "<unix timestamp>.<payload>" keyed with secret.
func Sign(secret string, timestamp int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(h, "%d.", timestamp)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks the signature headers of a received delivery.
// maxAge of zero disables the replay window check.
func Verify(secret string, payload []byte, header http.Header, maxAge time.Duration, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	sig := header.Get(HeaderSignature)
	ts, err := strconv.ParseInt(header.Get(HeaderTimestamp), 10, 64)
	if sig == "" || err != nil {
		return fmt.Errorf("%w: missing or malformed signature headers", ErrInvalidSignature)
	}
	if maxAge > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > maxAge || age < -time.Minute {
			return fmt.Errorf("%w: timestamp outside of accepted window", ErrInvalidSignature)
		}
	}
	if !hmac.Equal([]byte(Sign(secret, ts, payload)), []byte(sig)) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}
	return nil
}
