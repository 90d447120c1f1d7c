// Package events hands cash-custody signals (Z-reports, discrepancies, forced
// closes, liquidations) to downstream collaborators such as printing, audit and payroll.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Event types.
const (
	TypeZReport           = "cash.zreport"
	TypeDiscrepancy       = "cash.discrepancy"
	TypeSessionForceClose = "session.force_closed"
	TypeLiquidation       = "payroll.liquidation_created"
)

// Event is the envelope written to the event stream.
type Event struct {
	ID             uuid.UUID   `json:"id"`
	Type           string      `json:"type"`
	OrganizationID int64       `json:"organization_id"`
	OccurredAt     time.Time   `json:"occurred_at"`
	Payload        interface{} `json:"payload"`
}

// New builds an event with a fresh id.
func New(eventType string, organizationID int64, occurredAt time.Time, payload interface{}) Event {
	return Event{
		ID:             uuid.New(),
		Type:           eventType,
		OrganizationID: organizationID,
		OccurredAt:     occurredAt,
		Payload:        payload,
	}
}

// Publisher delivers events. Publishing happens after the state change has
// committed, so an error here never undoes or hides a write.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// LogPublisher writes events to the structured log. Used when no broker is configured.
type LogPublisher struct{}

// NewLogPublisher returns a Publisher that only logs.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	log.Info().
		Str("event_id", event.ID.String()).
		Str("event_type", event.Type).
		Int64("organization_id", event.OrganizationID).
		Interface("payload", event.Payload).
		Msg("cashbox event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
