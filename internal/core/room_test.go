package core

import (
	"testing"
	"time"
)

func TestRoomAddRemoveIsIdempotent(t *testing.T) {
	r := NewRoom("general", 0)
	alice := NewSession("a", "alice")

	if !r.AddSession(alice) {
		t.Fatalf("expected first add to report newly added")
	}
	if r.AddSession(alice) {
		t.Fatalf("expected second add to be a no-op")
	}
	if !r.RemoveSession(alice) {
		t.Fatalf("expected remove to report removed")
	}
	if r.RemoveSession(alice) {
		t.Fatalf("expected second remove to be a no-op")
	}
	if !r.Empty() {
		t.Fatalf("expected room to be empty")
	}
}

func TestRoomHistoryDropsOldest(t *testing.T) {
	r := NewRoom("general", 3)
	for i := 0; i < 5; i++ {
		r.AppendHistory(Message{ID: string(rune('a' + i))})
	}
	hist := r.History()
	if len(hist) != 3 {
		t.Fatalf("expected window capped at 3, got %d", len(hist))
	}
	if hist[0].ID != "c" || hist[2].ID != "e" {
		t.Fatalf("expected oldest entries dropped, got %+v", hist)
	}
}

func TestRoomMembersOrderedByJoin(t *testing.T) {
	r := NewRoom("general", 0)
	bob := NewSession("b", "bob")
	alice := NewSession("a", "alice")
	bob.JoinedAt = time.Unix(2, 0)
	alice.JoinedAt = time.Unix(1, 0)
	r.AddSession(bob)
	r.AddSession(alice)

	members := r.Members()
	if len(members) != 2 || members[0] != alice || members[1] != bob {
		t.Fatalf("expected alice before bob by join time, got %+v", members)
	}
}
