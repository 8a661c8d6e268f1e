package ids

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

type TenantID uuid.UUID
type ServiceCallID uuid.UUID
type EnvelopeID uuid.UUID
type CorrelationID uuid.UUID

// CausationID is the envelope ID of the message that directly caused this one.
type CausationID uuid.UUID

func (id TenantID) String() string      { return uuid.UUID(id).String() }
func (id ServiceCallID) String() string { return uuid.UUID(id).String() }
func (id EnvelopeID) String() string    { return uuid.UUID(id).String() }
func (id CorrelationID) String() string { return uuid.UUID(id).String() }
func (id CausationID) String() string   { return uuid.UUID(id).String() }

func (id TenantID) IsZero() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ServiceCallID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id EnvelopeID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CorrelationID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id CausationID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }

func ParseTenantID(s string) (TenantID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return TenantID{}, fmt.Errorf("parse tenant id: %w", err)
	}
	return TenantID(u), nil
}

func ParseServiceCallID(s string) (ServiceCallID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ServiceCallID{}, fmt.Errorf("parse service call id: %w", err)
	}
	return ServiceCallID(u), nil
}

func ParseEnvelopeID(s string) (EnvelopeID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return EnvelopeID{}, fmt.Errorf("parse envelope id: %w", err)
	}
	return EnvelopeID(u), nil
}

func ParseCorrelationID(s string) (CorrelationID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return CorrelationID{}, fmt.Errorf("parse correlation id: %w", err)
	}
	return CorrelationID(u), nil
}

func ParseCausationID(s string) (CausationID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return CausationID{}, fmt.Errorf("parse causation id: %w", err)
	}
	return CausationID(u), nil
}

func (id TenantID) Value() (driver.Value, error)      { return uuid.UUID(id).String(), nil }
func (id ServiceCallID) Value() (driver.Value, error) { return uuid.UUID(id).String(), nil }
func (id CorrelationID) Value() (driver.Value, error) { return uuid.UUID(id).String(), nil }

func (id *TenantID) Scan(src any) error {
	u, err := scanUUID(src)
	if err != nil {
		return err
	}
	*id = TenantID(u)
	return nil
}

func (id *ServiceCallID) Scan(src any) error {
	u, err := scanUUID(src)
	if err != nil {
		return err
	}
	*id = ServiceCallID(u)
	return nil
}

func (id *CorrelationID) Scan(src any) error {
	u, err := scanUUID(src)
	if err != nil {
		return err
	}
	*id = CorrelationID(u)
	return nil
}

func scanUUID(src any) (uuid.UUID, error) {
	switch v := src.(type) {
	case string:
		return uuid.Parse(v)
	case []byte:
		return uuid.Parse(string(v))
	default:
		return uuid.Nil, fmt.Errorf("ids: unsupported scan source %T", src)
	}
}
