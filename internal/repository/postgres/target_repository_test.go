package postgres

import (
	"database/sql"
	"testing"
	"time"

	"github.com/acme/sales-dialer/internal/domain"
)

func TestCustomerRecordRoundTrip(t *testing.T) {
	contacted := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	target := domain.DialTarget{
		ID:           42,
		OwnerID:      7,
		Name:         "Wang",
		Phone:        "13912345678",
		Level:        domain.Level("b"),
		Status:       domain.CustomerStatusPending,
		LastContact:  contacted.UnixMilli(),
		ContactCount: 3,
	}

	rec := newCustomerRecord(target)
	if !rec.LastContact.Valid || !rec.LastContact.Time.Equal(contacted) {
		t.Fatalf("unexpected last contact %+v", rec.LastContact)
	}
	if got := rec.toModel(); got != target {
		t.Fatalf("round trip mismatch\nwant %+v\ngot  %+v", target, got)
	}
}

func TestCustomerRecordNeverContacted(t *testing.T) {
	rec := customerRecord{ID: 1, Name: "Zhao", Status: "valid", Phone: sql.NullString{}}
	got := rec.toModel()
	if got.LastContact != 0 {
		t.Fatalf("expected zero last contact, got %d", got.LastContact)
	}
	if got.HasValidPhone() {
		t.Fatalf("expected missing phone to be invalid")
	}
	if newCustomerRecord(got).LastContact.Valid {
		t.Fatalf("expected NULL last_contact_at for never contacted target")
	}
}

func TestFollowUpRecordRoundTrip(t *testing.T) {
	followed := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	next := followed.Add(72 * time.Hour)
	f := domain.FollowUp{
		ID:           9,
		CustomerID:   42,
		FollowerID:   7,
		Content:      "asked for a quote",
		Result:       domain.FollowUpInterested,
		FollowedAt:   followed,
		NextFollowAt: &next,
		CallDuration: 95 * time.Second,
		CreatedAt:    followed,
	}

	rec := newFollowUpRecord(f)
	if !rec.NextFollowAt.Valid || rec.CallDurationSeconds != 95 {
		t.Fatalf("unexpected record %+v", rec)
	}

	got := rec.toModel()
	if got.NextFollowAt == nil || !got.NextFollowAt.Equal(next) {
		t.Fatalf("next follow time lost: %+v", got.NextFollowAt)
	}
	got.NextFollowAt, f.NextFollowAt = nil, nil
	if got != f {
		t.Fatalf("round trip mismatch\nwant %+v\ngot  %+v", f, got)
	}
}

func TestFollowUpRecordWithoutNextFollow(t *testing.T) {
	rec := newFollowUpRecord(domain.FollowUp{CustomerID: 1, Result: domain.FollowUpClosed})
	if rec.NextFollowAt.Valid {
		t.Fatalf("expected null next follow time")
	}
	if got := rec.toModel(); got.NextFollowAt != nil {
		t.Fatalf("expected nil next follow time, got %v", got.NextFollowAt)
	}
}
