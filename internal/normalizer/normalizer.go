// Package normalizer converts raw webhook payloads into canonical
// InboundEvent records.
//
// Payload shapes differ per event kind: issue events carry the subject
// number under issue.number, comment events under the parent issue, and so
// on. Each supported kind has its own extractor; kinds that are allowed but
// have no dedicated extractor fall back to a default that reads only the
// top-level action.
package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hookbridge/hookbridge/internal/models"
)

// KindPing is the sender's connectivity test. It is acknowledged but never
// persisted, so no extractor exists for it.
const KindPing = "ping"

// DefaultAllowedKinds is the allow-list applied when the configuration does
// not override it. Every kind here carries a top-level action field.
var DefaultAllowedKinds = []string{
	KindPing,
	"issues",
	"issue_comment",
	"pull_request",
	"release",
}

var (
	// ErrUnsupportedKind marks an event kind outside the allow-list.
	ErrUnsupportedKind = errors.New("unsupported event kind")

	// ErrMalformedPayload marks a payload that cannot be decoded into the
	// shape its event kind requires.
	ErrMalformedPayload = errors.New("malformed payload")
)

// Extractor pulls the action and optional subject number out of one payload
// shape.
type Extractor interface {
	Extract(payload []byte) (action string, subject *int64, err error)
}

// Normalizer validates the event kind against the allow-list and produces
// canonical records. Safe for concurrent use once constructed.
type Normalizer struct {
	allowed    map[string]bool
	extractors map[string]Extractor
	fallback   Extractor
	now        func() time.Time
}

func New(allowedKinds []string) *Normalizer {
	allowed := make(map[string]bool, len(allowedKinds))
	for _, k := range allowedKinds {
		allowed[k] = true
	}
	return &Normalizer{
		allowed: allowed,
		extractors: map[string]Extractor{
			"issues":        issueExtractor{},
			"issue_comment": issueExtractor{},
		},
		fallback: actionOnlyExtractor{},
		now:      time.Now,
	}
}

// Allowed reports whether kind is on the allow-list.
func (n *Normalizer) Allowed(kind string) bool {
	return n.allowed[kind]
}

// Normalize turns a raw delivery into an InboundEvent. occurred_at is set to
// the receiver clock; sender timestamps are not trusted. The raw payload is
// retained verbatim.
func (n *Normalizer) Normalize(kind, deliveryID string, payload []byte) (*models.InboundEvent, error) {
	if !n.allowed[kind] || kind == KindPing {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}

	ex, ok := n.extractors[kind]
	if !ok {
		ex = n.fallback
	}

	action, subject, err := ex.Extract(payload)
	if err != nil {
		return nil, err
	}

	return &models.InboundEvent{
		DeliveryID:    deliveryID,
		EventKind:     kind,
		Action:        action,
		SubjectNumber: subject,
		OccurredAt:    n.now().UTC(),
		RawPayload:    payload,
	}, nil
}

// issueExtractor handles issues and issue_comment payloads; both carry the
// subject under issue.number (comment events reference the parent issue).
type issueExtractor struct{}

func (issueExtractor) Extract(payload []byte) (string, *int64, error) {
	var body struct {
		Action string `json:"action"`
		Issue  *struct {
			Number int64 `json:"number"`
		} `json:"issue"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if body.Action == "" {
		return "", nil, fmt.Errorf("%w: missing action", ErrMalformedPayload)
	}

	var subject *int64
	if body.Issue != nil {
		n := body.Issue.Number
		subject = &n
	}
	return body.Action, subject, nil
}

// actionOnlyExtractor is the default variant for allowed kinds without a
// dedicated shape: it reads the top-level action and reports no subject.
type actionOnlyExtractor struct{}

func (actionOnlyExtractor) Extract(payload []byte) (string, *int64, error) {
	var body struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if body.Action == "" {
		return "", nil, fmt.Errorf("%w: missing action", ErrMalformedPayload)
	}
	return body.Action, nil, nil
}
