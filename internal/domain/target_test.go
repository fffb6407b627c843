package domain

import (
	"testing"
	"time"
)

func TestLevelPriority(t *testing.T) {
	cases := map[Level]int{
		LevelA: 1,
		LevelB: 2,
		LevelC: 3,
		LevelD: 4,
		"":     UnknownPriority,
		"z":    UnknownPriority,
	}

	for level, want := range cases {
		if got := level.Priority(); got != want {
			t.Errorf("level %q: expected priority %d, got %d", level, want, got)
		}
	}
}

func TestValidPhone(t *testing.T) {
	cases := []struct {
		phone string
		want  bool
	}{
		{"", false},
		{"123", false},
		{"1380013800", false},
		{"13800138000", true},
		{"+8613800138000", true},
	}

	for _, tc := range cases {
		if got := ValidPhone(tc.phone); got != tc.want {
			t.Errorf("phone %q: expected %v, got %v", tc.phone, tc.want, got)
		}
	}
}

func TestMarkContacted(t *testing.T) {
	target := DialTarget{ID: 7, ContactCount: 2}
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	target.MarkContacted(at)

	if target.ContactCount != 3 {
		t.Fatalf("expected contact count 3, got %d", target.ContactCount)
	}
	if !target.LastContactTime().Equal(at) {
		t.Fatalf("expected last contact %v, got %v", at, target.LastContactTime())
	}
}

func TestCustomerStatusDialable(t *testing.T) {
	if !CustomerStatusValid.Dialable() || !CustomerStatusPending.Dialable() {
		t.Fatalf("expected valid and pending customers to be dialable")
	}
	if CustomerStatusPurchased.Dialable() || CustomerStatusInvalid.Dialable() {
		t.Fatalf("expected purchased and invalid customers to be skipped")
	}
}

func TestParseStrategy(t *testing.T) {
	got, err := ParseStrategy(" Time ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != StrategyTime {
		t.Fatalf("expected %q, got %q", StrategyTime, got)
	}

	if _, err := ParseStrategy("alphabetical"); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}

func TestSnapshotProgress(t *testing.T) {
	s := StatusSnapshot{TotalCount: 10, CurrentIndex: 4, SuccessCount: 3, FailedCount: 1, IsRunning: true}
	if got, want := s.Progress(), "progress: 4/10 | success: 3 | failed: 1"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if s.State() != "running" {
		t.Fatalf("expected running state, got %s", s.State())
	}
}
