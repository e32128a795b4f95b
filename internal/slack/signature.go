// Package slack implements the parts of the Slack slash-command protocol the
// dispatcher relies on: request signature verification, form decoding, and
// the JSON messages Slack renders back to the user.
package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Request headers carrying the signature and its timestamp.
const (
	HeaderTimestamp = "X-Slack-Request-Timestamp"
	HeaderSignature = "X-Slack-Signature"
)

// SignatureVersion prefixes both the signing string and the signature header.
const SignatureVersion = "v0"

// DefaultReplayWindow is how far a request timestamp may drift from now.
const DefaultReplayWindow = 300 * time.Second

var (
	ErrMissingHeaders    = errors.New("missing signature headers")
	ErrInvalidTimestamp  = errors.New("invalid request timestamp")
	ErrStaleRequest      = errors.New("request timestamp outside replay window")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrBodyDecode        = errors.New("cannot decode request body")
)

// SigningString builds "v0:<timestamp>:<body>", the exact bytes Slack signs.
func SigningString(timestamp string, body []byte) []byte {
	buf := make([]byte, 0, len(SignatureVersion)+len(timestamp)+len(body)+2)
	buf = append(buf, SignatureVersion...)
	buf = append(buf, ':')
	buf = append(buf, timestamp...)
	buf = append(buf, ':')
	return append(buf, body...)
}

// Sign returns the "v0=<hex>" signature of body at timestamp under secret.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(SigningString(timestamp, body))
	return SignatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}

// DecodeBody returns the raw request bytes. Transports such as API Gateway
// base64-encode form bodies; the signature covers the decoded bytes.
func DecodeBody(body []byte, base64Encoded bool) ([]byte, error) {
	if !base64Encoded {
		return body, nil
	}
	out := make([]byte, base64.StdEncoding.DecodedLen(len(body)))
	n, err := base64.StdEncoding.Decode(out, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBodyDecode, err)
	}
	return out[:n], nil
}

// Verifier authenticates inbound Slack requests.
type Verifier struct {
	secret []byte
	window time.Duration
	now    func() time.Time
}

// VerifierOption customizes a Verifier.
type VerifierOption func(*Verifier)

// WithClock replaces time.Now, for tests and request replays.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier creates a Verifier for secret. A non-positive window falls back
// to DefaultReplayWindow.
func NewVerifier(secret string, window time.Duration, opts ...VerifierOption) *Verifier {
	if window <= 0 {
		window = DefaultReplayWindow
	}
	v := &Verifier{
		secret: []byte(secret),
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks freshness first, then the signature over the raw body.
// Equality is checked with hmac.Equal so comparison time does not depend on
// how many leading bytes match.
func (v *Verifier) Verify(timestamp, signature string, body []byte) error {
	if timestamp == "" || signature == "" {
		return ErrMissingHeaders
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimestamp, timestamp)
	}

	skew := v.now().Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(v.window/time.Second) {
		return fmt.Errorf("%w: skew %ds", ErrStaleRequest, skew)
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(SigningString(timestamp, body))
	expected := SignatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrSignatureMismatch
	}
	return nil
}
