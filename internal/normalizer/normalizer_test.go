package normalizer

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNormalizer() *Normalizer {
	n := New(DefaultAllowedKinds)
	n.now = func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return n
}

func TestAllowed(t *testing.T) {
	n := newTestNormalizer()

	for _, kind := range DefaultAllowedKinds {
		assert.True(t, n.Allowed(kind), "kind %q should be allowed", kind)
	}
	assert.False(t, n.Allowed("workflow_run"))
	assert.False(t, n.Allowed(""))
}

func TestNormalize_IssuesEvent(t *testing.T) {
	n := newTestNormalizer()
	payload := []byte(`{"action":"opened","issue":{"number":42,"title":"Bug"}}`)

	event, err := n.Normalize("issues", "delivery-1", payload)
	require.NoError(t, err)

	assert.Equal(t, "delivery-1", event.DeliveryID)
	assert.Equal(t, "issues", event.EventKind)
	assert.Equal(t, "opened", event.Action)
	require.NotNil(t, event.SubjectNumber)
	assert.Equal(t, int64(42), *event.SubjectNumber)
	assert.Equal(t, payload, []byte(event.RawPayload))
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), event.OccurredAt)
}

func TestNormalize_IssueCommentEvent(t *testing.T) {
	n := newTestNormalizer()
	payload := []byte(`{"action":"created","issue":{"number":7},"comment":{"id":99,"body":"hi"}}`)

	event, err := n.Normalize("issue_comment", "delivery-2", payload)
	require.NoError(t, err)

	assert.Equal(t, "created", event.Action)
	require.NotNil(t, event.SubjectNumber)
	assert.Equal(t, int64(7), *event.SubjectNumber)
}

func TestNormalize_SubjectAbsent(t *testing.T) {
	n := newTestNormalizer()

	// An issues payload without the issue object is odd but not malformed;
	// the subject number is simply absent.
	event, err := n.Normalize("issues", "delivery-3", []byte(`{"action":"opened"}`))
	require.NoError(t, err)
	assert.Nil(t, event.SubjectNumber)
}

func TestNormalize_FallbackKind(t *testing.T) {
	n := newTestNormalizer()
	payload := []byte(`{"action":"published","release":{"tag_name":"v1.0.0"}}`)

	event, err := n.Normalize("release", "delivery-4", payload)
	require.NoError(t, err)
	assert.Equal(t, "published", event.Action)
	assert.Nil(t, event.SubjectNumber)
}

func TestNormalize_Rejections(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name    string
		kind    string
		payload string
		wantErr error
	}{
		{"kind outside allow-list", "workflow_run", `{"action":"completed"}`, ErrUnsupportedKind},
		{"ping never normalized", "ping", `{"zen":"Design for failure."}`, ErrUnsupportedKind},
		{"not json", "issues", `{"action":`, ErrMalformedPayload},
		{"missing action", "issues", `{"issue":{"number":1}}`, ErrMalformedPayload},
		{"missing action on fallback", "pull_request", `{"number":5}`, ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(tt.kind, "d", []byte(tt.payload))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNormalize_ArbitraryPayloadContent(t *testing.T) {
	n := newTestNormalizer()
	gofakeit.Seed(11)

	// Extraction must be indifferent to whatever else the sender packs into
	// the payload.
	for i := 0; i < 20; i++ {
		number := int64(gofakeit.Number(1, 10000))
		payload, err := json.Marshal(map[string]any{
			"action": "opened",
			"issue": map[string]any{
				"number": number,
				"title":  gofakeit.Sentence(8),
				"body":   gofakeit.Paragraph(1, 3, 10, " "),
				"user":   map[string]any{"login": gofakeit.Username()},
			},
			"repository": map[string]any{"full_name": gofakeit.Word() + "/" + gofakeit.Word()},
		})
		require.NoError(t, err)

		event, err := n.Normalize("issues", fmt.Sprintf("delivery-%d", i), payload)
		require.NoError(t, err)
		require.NotNil(t, event.SubjectNumber)
		assert.Equal(t, number, *event.SubjectNumber)
	}
}
