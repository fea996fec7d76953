package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Prefix is the scheme tag GitHub puts in front of the hex digest in the
// X-Hub-Signature-256 header.
const Prefix = "sha256="

// ErrEmptySecret is returned by NewVerifier when no webhook secret is
// configured. A verifier without a secret would accept forged deliveries,
// so construction fails instead.
var ErrEmptySecret = errors.New("signature: webhook secret must not be empty")

// Verifier checks webhook payloads against an HMAC-SHA256 shared secret.
// It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Compute returns the signature tag for payload in the same form the sender
// transmits it: "sha256=" followed by the lowercase hex HMAC-SHA256 digest.
func (v *Verifier) Compute(payload []byte) string {
	h := hmac.New(sha256.New, v.secret)
	h.Write(payload)
	return Prefix + hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether candidate is a valid signature for payload.
// Malformed candidates (empty, wrong scheme, non-hex, wrong digest length)
// verify as false; only the digest comparison itself is constant-time, and
// the fast rejects depend solely on the caller's input, never the secret.
func (v *Verifier) Verify(payload []byte, candidate string) bool {
	if candidate == "" {
		return false
	}
	if !strings.HasPrefix(candidate, Prefix) {
		return false
	}

	expected := v.Compute(payload)

	got, err := hex.DecodeString(strings.TrimPrefix(candidate, Prefix))
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(strings.TrimPrefix(expected, Prefix))
	if err != nil {
		return false
	}
	if len(got) != len(want) {
		return false
	}

	return hmac.Equal(got, want)
}
