package domain

import (
	"fmt"
	"time"
)

// Level is the customer grade assigned by sales staff.
type Level string

const (
	LevelA Level = "a"
	LevelB Level = "b"
	LevelC Level = "c"
	LevelD Level = "d"
)

// UnknownPriority is the rank given to targets without a recognised level.
const UnknownPriority = 999

// MinPhoneLength is the shortest phone number the dialer will attempt.
const MinPhoneLength = 11

// Priority maps the level to a rank; lower ranks are dialed first.
func (l Level) Priority() int {
	switch l {
	case LevelA:
		return 1
	case LevelB:
		return 2
	case LevelC:
		return 3
	case LevelD:
		return 4
	default:
		return UnknownPriority
	}
}

// Label returns a human readable name for the level.
func (l Level) Label() string {
	switch l {
	case LevelA:
		return "A (key account)"
	case LevelB:
		return "B (regular)"
	case LevelC:
		return "C (to develop)"
	case LevelD:
		return "D (long-term)"
	default:
		return "unknown"
	}
}

// CustomerStatus enumerates the CRM state of a contact.
type CustomerStatus string

const (
	CustomerStatusValid     CustomerStatus = "valid"
	CustomerStatusPending   CustomerStatus = "pending"
	CustomerStatusPurchased CustomerStatus = "purchased"
	CustomerStatusInvalid   CustomerStatus = "invalid"
)

// Dialable reports whether contacts in this state belong in a dial run.
func (s CustomerStatus) Dialable() bool {
	return s == CustomerStatusValid || s == CustomerStatusPending
}

// DialTarget is a single contact eligible to be dialed.
type DialTarget struct {
	ID           int64
	Name         string
	Phone        string
	Level        Level
	Status       CustomerStatus
	OwnerID      int64
	LastContact  int64 // epoch millis, 0 means never contacted
	ContactCount int
}

// Priority returns the rank derived from the target level.
func (t DialTarget) Priority() int {
	return t.Level.Priority()
}

// HasValidPhone reports whether the phone number is usable for dialing.
func (t DialTarget) HasValidPhone() bool {
	return ValidPhone(t.Phone)
}

// LastContactTime converts LastContact to a time, zero when never contacted.
func (t DialTarget) LastContactTime() time.Time {
	if t.LastContact == 0 {
		return time.Time{}
	}
	return time.UnixMilli(t.LastContact).UTC()
}

// MarkContacted records a successful dial attempt at the given instant.
func (t *DialTarget) MarkContacted(at time.Time) {
	t.LastContact = at.UnixMilli()
	t.ContactCount++
}

func (t DialTarget) String() string {
	return fmt.Sprintf("DialTarget{id=%d, name=%q, phone=%q, level=%q}", t.ID, t.Name, t.Phone, t.Level)
}

// ValidPhone rejects empty numbers and numbers shorter than MinPhoneLength.
func ValidPhone(phone string) bool {
	return phone != "" && len(phone) >= MinPhoneLength
}
