package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/acme/sales-dialer/internal/domain"
)

// EventKind names the dialer notification carried by an EventMessage.
type EventKind string

const (
	EventDialStart     EventKind = "dial_start"
	EventDialComplete  EventKind = "dial_complete"
	EventQueueComplete EventKind = "queue_complete"
	EventError         EventKind = "error"
	EventStatus        EventKind = "status"
)

// TargetPayload is the wire form of a dial target.
type TargetPayload struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Level        string `json:"level"`
	OwnerID      int64  `json:"owner_id"`
	LastContact  int64  `json:"last_contact"`
	ContactCount int    `json:"contact_count"`
}

// EventMessage is published to Kafka for every dialer notification.
type EventMessage struct {
	EventID    uuid.UUID              `json:"event_id"`
	RunID      uuid.UUID              `json:"run_id"`
	Kind       EventKind              `json:"kind"`
	Target     *TargetPayload         `json:"target,omitempty"`
	Succeeded  *bool                  `json:"succeeded,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Status     *domain.StatusSnapshot `json:"status,omitempty"`
	Results    []TargetPayload        `json:"results,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// NewTargetPayload converts a domain target to its wire form.
func NewTargetPayload(t domain.DialTarget) TargetPayload {
	return TargetPayload{
		ID:           t.ID,
		Name:         t.Name,
		Phone:        t.Phone,
		Level:        string(t.Level),
		OwnerID:      t.OwnerID,
		LastContact:  t.LastContact,
		ContactCount: t.ContactCount,
	}
}

// Domain converts the payload back to a domain target.
func (p TargetPayload) Domain() domain.DialTarget {
	return domain.DialTarget{
		ID:           p.ID,
		Name:         p.Name,
		Phone:        p.Phone,
		Level:        domain.Level(p.Level),
		OwnerID:      p.OwnerID,
		LastContact:  p.LastContact,
		ContactCount: p.ContactCount,
	}
}
