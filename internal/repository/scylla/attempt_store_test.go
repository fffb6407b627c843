package scylla

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestToAttemptParsesIdentifiers(t *testing.T) {
	id := uuid.New()
	run := uuid.New()
	at := time.Date(2024, 5, 2, 10, 0, 0, 0, time.FixedZone("CST", 8*3600))

	got, err := toAttempt(9, at, id.String(), run.String(), "13800000009", false, "busy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != id || got.RunID != run || got.TargetID != 9 {
		t.Fatalf("unexpected identifiers: %+v", got)
	}
	if got.OccurredAt.Location() != time.UTC || !got.OccurredAt.Equal(at) {
		t.Fatalf("expected UTC timestamp equal to input, got %v", got.OccurredAt)
	}
	if got.Succeeded || got.Error != "busy" {
		t.Fatalf("unexpected outcome: %+v", got)
	}
}

func TestToAttemptRejectsMalformedIDs(t *testing.T) {
	if _, err := toAttempt(1, time.Now(), "nope", uuid.NewString(), "", true, ""); err == nil {
		t.Fatalf("expected attempt id parse error")
	}
	if _, err := toAttempt(1, time.Now(), uuid.NewString(), "nope", "", true, ""); err == nil {
		t.Fatalf("expected run id parse error")
	}
}
