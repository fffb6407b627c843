package redis

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestStatusCacheDefaults(t *testing.T) {
	c := NewStatusCache(nil, "", 0)
	if c.prefix != "dialer" {
		t.Fatalf("expected default prefix, got %q", c.prefix)
	}
	if c.ttl != 24*time.Hour {
		t.Fatalf("expected default ttl, got %s", c.ttl)
	}
}

func TestStatusCacheKey(t *testing.T) {
	run := uuid.MustParse("6f1c1f0e-8d52-4d7b-9a53-2b7f3e1c0a11")
	c := NewStatusCache(nil, "sales", time.Minute)
	want := "sales:run:6f1c1f0e-8d52-4d7b-9a53-2b7f3e1c0a11:status"
	if got := c.key(run); got != want {
		t.Fatalf("unexpected key %q", got)
	}
}
