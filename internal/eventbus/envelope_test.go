package eventbus

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/g960059/timersvc/internal/ids"
)

var cmpTime = cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })

func TestEncodeDecodeScheduleTimerRoundTrip(t *testing.T) {
	corr := ids.CorrelationID(uuid.New())
	agg := ids.ServiceCallID(uuid.New())
	env := Envelope{
		ID:            ids.EnvelopeID(uuid.New()),
		Type:          TagScheduleTimer,
		TenantID:      ids.TenantID(uuid.New()),
		AggregateID:   &agg,
		CorrelationID: &corr,
		TimestampMs:   1234567890,
		Payload: ScheduleTimer{
			TenantID:      ids.TenantID(uuid.New()),
			ServiceCallID: agg,
			DueAt:         time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	raw, err := Encode(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.ID != env.ID || got.Type != env.Type || got.TenantID != env.TenantID {
		t.Fatalf("round trip mismatch on envelope fields: got %+v", got)
	}
	if got.AggregateID == nil || *got.AggregateID != *env.AggregateID {
		t.Fatalf("aggregateId did not round-trip")
	}
	if got.CorrelationID == nil || *got.CorrelationID != *env.CorrelationID {
		t.Fatalf("correlationId did not round-trip")
	}
	gotPayload, ok := got.Payload.(ScheduleTimer)
	if !ok {
		t.Fatalf("payload type = %T, want ScheduleTimer", got.Payload)
	}
	wantPayload := env.Payload.(ScheduleTimer)
	if diff := cmp.Diff(wantPayload, gotPayload, cmpTime); diff != "" {
		t.Fatalf("payload round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsTypeMismatch(t *testing.T) {
	raw := []byte(`{
		"id": "` + uuid.New().String() + `",
		"type": "DueTimeReached",
		"tenantId": "` + uuid.New().String() + `",
		"timestampMs": 1,
		"payload": {"_tag": "ScheduleTimer", "tenantId": "` + uuid.New().String() + `", "serviceCallId": "` + uuid.New().String() + `", "dueAt": "2026-07-31T00:00:00Z"}
	}`)
	if _, err := Decode(raw); err == nil {
		t.Fatalf("expected decode to fail on type/payload._tag mismatch")
	}
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	raw := []byte(`{
		"id": "` + uuid.New().String() + `",
		"type": "SomethingElse",
		"tenantId": "` + uuid.New().String() + `",
		"timestampMs": 1,
		"payload": {"_tag": "SomethingElse"}
	}`)
	if _, err := Decode(raw); err == nil {
		t.Fatalf("expected decode to fail on unknown tag")
	}
}

func TestDecodeRejectsMalformedID(t *testing.T) {
	raw := []byte(`{"id": "not-a-uuid", "type": "ScheduleTimer", "tenantId": "` + uuid.New().String() + `", "timestampMs": 1, "payload": {}}`)
	if _, err := Decode(raw); err == nil {
		t.Fatalf("expected decode to fail on malformed envelope id")
	}
}
