package session

import (
	"context"
	"testing"
	"time"

	"github.com/kjstillabower/project-tracker-service/internal/models"
)

// TestInMemoryStore_GetSet verifies that Set stores sessions and Get returns them intact.
func TestInMemoryStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	sess := NewUser("alice", "u1", true)
	if err := s.Set(ctx, sess, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := s.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.Username != "alice" || got.UserID != "u1" || !got.IsAdmin {
		t.Errorf("Get() = %+v, want alice/u1/admin", got)
	}
	if !got.LoggedIn() {
		t.Error("LoggedIn() = false, want true for user session")
	}
}

// TestInMemoryStore_Get_Miss verifies that Get returns ok=false for unknown IDs.
func TestInMemoryStore_Get_Miss(t *testing.T) {
	_, ok, err := NewInMemoryStore().Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestInMemoryStore_Get_Expired verifies that expired sessions are reported missing and removed.
func TestInMemoryStore_Get_Expired(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	sess := NewGuest()
	if err := s.Set(ctx, sess, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	now = now.Add(2 * time.Minute)

	_, ok, err := s.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for expired session")
	}
	if n := s.Count(); n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}
}

// TestInMemoryStore_ReturnsCopies verifies that mutating a returned session does not
// change the stored one until Set is called.
func TestInMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	sess := NewGuest()
	_ = s.Set(ctx, sess, time.Minute)

	got, _, _ := s.Get(ctx, sess.ID)
	got.GuestProjects["p1"] = models.Project{ProjectID: "p1"}

	again, _, _ := s.Get(ctx, sess.ID)
	if len(again.GuestProjects) != 0 {
		t.Errorf("stored guest projects = %d, want 0", len(again.GuestProjects))
	}
}

// TestInMemoryStore_Delete verifies that Delete removes the session and tolerates unknown IDs.
func TestInMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	sess := NewUser("bob", "u2", false)
	_ = s.Set(ctx, sess, time.Minute)

	if err := s.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "unknown"); err != nil {
		t.Fatalf("Delete(unknown) error = %v", err)
	}
	if _, ok, _ := s.Get(ctx, sess.ID); ok {
		t.Error("Get() after Delete ok = true, want false")
	}
}

// TestNewGuest verifies guest session defaults.
func TestNewGuest(t *testing.T) {
	g := NewGuest()
	if !g.IsGuest || g.LoggedIn() {
		t.Errorf("NewGuest() IsGuest=%v LoggedIn=%v, want true/false", g.IsGuest, g.LoggedIn())
	}
	if g.ID == "" || g.ID == NewGuest().ID {
		t.Error("NewGuest() IDs should be unique and non-empty")
	}
}

// TestExpiration verifies memcached TTL conversion and clamping.
func TestExpiration(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want int32
	}{
		{time.Hour, 3600},
		{0, 30 * 24 * 60 * 60},
		{60 * 24 * time.Hour, 30 * 24 * 60 * 60},
	}
	for _, tt := range tests {
		if got := expiration(tt.ttl); got != tt.want {
			t.Errorf("expiration(%v) = %d, want %d", tt.ttl, got, tt.want)
		}
	}
}

// TestParseAddrs verifies splitting and trimming of the memcached address list.
func TestParseAddrs(t *testing.T) {
	got := parseAddrs(" a:1, ,b:2 ")
	if len(got) != 2 || got[0] != "a:1" || got[1] != "b:2" {
		t.Errorf("parseAddrs() = %v, want [a:1 b:2]", got)
	}
}
