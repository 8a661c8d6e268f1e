package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/g960059/timersvc/internal/ids"
)

type Envelope struct {
	ID            ids.EnvelopeID
	Type          string
	TenantID      ids.TenantID
	AggregateID   *ids.ServiceCallID
	CorrelationID *ids.CorrelationID
	CausationID   *ids.CausationID
	TimestampMs   int64
	Payload       Payload
}

// DecodeError envelopes are dropped at the adapter and reported, never
// propagated to handlers.
type DecodeError struct {
	Reason string
	Cause  error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("eventbus: decode: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("eventbus: decode: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

type wireEnvelope struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	TenantID      string          `json:"tenantId"`
	AggregateID   *string         `json:"aggregateId,omitempty"`
	CorrelationID *string         `json:"correlationId,omitempty"`
	CausationID   *string         `json:"causationId,omitempty"`
	TimestampMs   int64           `json:"timestampMs"`
	Payload       json.RawMessage `json:"payload"`
}

type scheduleTimerWire struct {
	Tag           string `json:"_tag"`
	TenantID      string `json:"tenantId"`
	ServiceCallID string `json:"serviceCallId"`
	DueAt         string `json:"dueAt"`
}

type dueTimeReachedWire struct {
	Tag           string `json:"_tag"`
	TenantID      string `json:"tenantId"`
	ServiceCallID string `json:"serviceCallId"`
	ReachedAt     string `json:"reachedAt,omitempty"`
}

func Encode(env Envelope) ([]byte, error) {
	if env.Payload == nil {
		return nil, fmt.Errorf("eventbus: encode: envelope has no payload")
	}
	if env.Type != env.Payload.tag() {
		return nil, fmt.Errorf("eventbus: encode: type %q does not match payload tag %q", env.Type, env.Payload.tag())
	}

	var payloadJSON []byte
	var err error
	switch p := env.Payload.(type) {
	case ScheduleTimer:
		payloadJSON, err = json.Marshal(scheduleTimerWire{
			Tag:           TagScheduleTimer,
			TenantID:      p.TenantID.String(),
			ServiceCallID: p.ServiceCallID.String(),
			DueAt:         p.DueAt.UTC().Format(time.RFC3339Nano),
		})
	case DueTimeReached:
		payloadJSON, err = json.Marshal(dueTimeReachedWire{
			Tag:           TagDueTimeReached,
			TenantID:      p.TenantID.String(),
			ServiceCallID: p.ServiceCallID.String(),
			ReachedAt:     p.ReachedAt.UTC().Format(time.RFC3339Nano),
		})
	default:
		return nil, fmt.Errorf("eventbus: encode: unknown payload type %T", p)
	}
	if err != nil {
		return nil, fmt.Errorf("eventbus: encode payload: %w", err)
	}

	w := wireEnvelope{
		ID:          env.ID.String(),
		Type:        env.Type,
		TenantID:    env.TenantID.String(),
		TimestampMs: env.TimestampMs,
		Payload:     payloadJSON,
	}
	if env.AggregateID != nil {
		v := env.AggregateID.String()
		w.AggregateID = &v
	}
	if env.CorrelationID != nil {
		v := env.CorrelationID.String()
		w.CorrelationID = &v
	}
	if env.CausationID != nil {
		v := env.CausationID.String()
		w.CausationID = &v
	}
	return json.Marshal(w)
}

// Decode requires type == payload._tag.
func Decode(data []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, &DecodeError{Reason: "malformed envelope JSON", Cause: err}
	}

	id, err := ids.ParseEnvelopeID(w.ID)
	if err != nil {
		return Envelope{}, &DecodeError{Reason: "malformed envelope id", Cause: err}
	}
	tenantID, err := ids.ParseTenantID(w.TenantID)
	if err != nil {
		return Envelope{}, &DecodeError{Reason: "malformed tenant id", Cause: err}
	}

	env := Envelope{ID: id, Type: w.Type, TenantID: tenantID, TimestampMs: w.TimestampMs}

	if w.AggregateID != nil {
		aggID, err := ids.ParseServiceCallID(*w.AggregateID)
		if err != nil {
			return Envelope{}, &DecodeError{Reason: "malformed aggregate id", Cause: err}
		}
		env.AggregateID = &aggID
	}
	if w.CorrelationID != nil {
		corrID, err := ids.ParseCorrelationID(*w.CorrelationID)
		if err != nil {
			return Envelope{}, &DecodeError{Reason: "malformed correlation id", Cause: err}
		}
		env.CorrelationID = &corrID
	}
	if w.CausationID != nil {
		causeID, err := ids.ParseCausationID(*w.CausationID)
		if err != nil {
			return Envelope{}, &DecodeError{Reason: "malformed causation id", Cause: err}
		}
		env.CausationID = &causeID
	}

	switch w.Type {
	case TagScheduleTimer:
		var pw scheduleTimerWire
		if err := json.Unmarshal(w.Payload, &pw); err != nil {
			return Envelope{}, &DecodeError{Reason: "malformed ScheduleTimer payload", Cause: err}
		}
		if pw.Tag != w.Type {
			return Envelope{}, &DecodeError{Reason: fmt.Sprintf("type %q does not match payload._tag %q", w.Type, pw.Tag)}
		}
		tID, err := ids.ParseTenantID(pw.TenantID)
		if err != nil {
			return Envelope{}, &DecodeError{Reason: "malformed payload tenant id", Cause: err}
		}
		sID, err := ids.ParseServiceCallID(pw.ServiceCallID)
		if err != nil {
			return Envelope{}, &DecodeError{Reason: "malformed payload service call id", Cause: err}
		}
		dueAt, err := time.Parse(time.RFC3339Nano, pw.DueAt)
		if err != nil {
			return Envelope{}, &DecodeError{Reason: "malformed dueAt", Cause: err}
		}
		env.Payload = ScheduleTimer{TenantID: tID, ServiceCallID: sID, DueAt: dueAt.UTC()}

	case TagDueTimeReached:
		var pw dueTimeReachedWire
		if err := json.Unmarshal(w.Payload, &pw); err != nil {
			return Envelope{}, &DecodeError{Reason: "malformed DueTimeReached payload", Cause: err}
		}
		if pw.Tag != w.Type {
			return Envelope{}, &DecodeError{Reason: fmt.Sprintf("type %q does not match payload._tag %q", w.Type, pw.Tag)}
		}
		tID, err := ids.ParseTenantID(pw.TenantID)
		if err != nil {
			return Envelope{}, &DecodeError{Reason: "malformed payload tenant id", Cause: err}
		}
		sID, err := ids.ParseServiceCallID(pw.ServiceCallID)
		if err != nil {
			return Envelope{}, &DecodeError{Reason: "malformed payload service call id", Cause: err}
		}
		var reachedAt time.Time
		if pw.ReachedAt != "" {
			reachedAt, err = time.Parse(time.RFC3339Nano, pw.ReachedAt)
			if err != nil {
				return Envelope{}, &DecodeError{Reason: "malformed reachedAt", Cause: err}
			}
		}
		env.Payload = DueTimeReached{TenantID: tID, ServiceCallID: sID, ReachedAt: reachedAt.UTC()}

	default:
		return Envelope{}, &DecodeError{Reason: fmt.Sprintf("unknown payload tag %q", w.Type)}
	}

	return env, nil
}
