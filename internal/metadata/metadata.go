package metadata

import "github.com/g960059/timersvc/internal/ids"

// Message carries the correlation/causation pair explicitly, rather than as
// a context.Context value: the call chains here are shallow enough that
// threading it as a parameter is the most honest option.
type Message struct {
	CorrelationID *ids.CorrelationID
	CausationID   *ids.CausationID
}

func FromEnvelope(envelopeID ids.EnvelopeID, correlationID *ids.CorrelationID) Message {
	causation := ids.CausationID(envelopeID)
	return Message{CorrelationID: correlationID, CausationID: &causation}
}

// Autonomous is for events with no inbound cause, e.g. the poller's
// DueTimeReached.
func Autonomous(correlationID *ids.CorrelationID) Message {
	return Message{CorrelationID: correlationID, CausationID: nil}
}
