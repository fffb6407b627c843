package domain

import (
	"fmt"
	"time"
)

// FollowUpResult is the outcome a salesperson records after talking to a customer.
type FollowUpResult string

const (
	FollowUpPending    FollowUpResult = "pending"
	FollowUpContacted  FollowUpResult = "contacted"
	FollowUpInterested FollowUpResult = "interested"
	FollowUpNoInterest FollowUpResult = "no_interest"
	FollowUpClosed     FollowUpResult = "closed"
)

// ParseFollowUpResult validates a result name.
func ParseFollowUpResult(name string) (FollowUpResult, error) {
	r := FollowUpResult(name)
	switch r {
	case FollowUpPending, FollowUpContacted, FollowUpInterested, FollowUpNoInterest, FollowUpClosed:
		return r, nil
	default:
		return "", fmt.Errorf("unknown follow-up result %q", name)
	}
}

// Label returns a human readable name for the result.
func (r FollowUpResult) Label() string {
	switch r {
	case FollowUpPending:
		return "to follow up"
	case FollowUpContacted:
		return "contacted"
	case FollowUpInterested:
		return "interested"
	case FollowUpNoInterest:
		return "not interested"
	case FollowUpClosed:
		return "deal closed"
	default:
		return "unknown"
	}
}

// FollowUp is a note recorded against a customer after a call.
type FollowUp struct {
	ID           int64
	CustomerID   int64
	FollowerID   int64
	Content      string
	Result       FollowUpResult
	FollowedAt   time.Time
	NextFollowAt *time.Time
	CallDuration time.Duration
	CreatedAt    time.Time
}

// CallDurationText renders the call length as "45s" or "2m5s".
func (f FollowUp) CallDurationText() string {
	secs := int64(f.CallDuration / time.Second)
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%dm%ds", secs/60, secs%60)
}

// ParseCustomerStatus validates a customer status name.
func ParseCustomerStatus(name string) (CustomerStatus, error) {
	s := CustomerStatus(name)
	switch s {
	case CustomerStatusValid, CustomerStatusPending, CustomerStatusPurchased, CustomerStatusInvalid:
		return s, nil
	default:
		return "", fmt.Errorf("unknown customer status %q", name)
	}
}
