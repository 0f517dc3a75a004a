package session

import (
	"testing"

	"github.com/cadyn/pong-netcode/pkg/game"
)

func TestAssignFillsLeftThenRight(t *testing.T) {
	lobby := NewLobby()

	slot, ok := lobby.Assign(100)
	if !ok || slot != game.SlotLeft {
		t.Fatalf("first assign got (%v, %v), want (SlotLeft, true)", slot, ok)
	}

	slot, ok = lobby.Assign(200)
	if !ok || slot != game.SlotRight {
		t.Fatalf("second assign got (%v, %v), want (SlotRight, true)", slot, ok)
	}

	if _, ok := lobby.Assign(300); ok {
		t.Fatal("third assign succeeded, lobby capacity is two")
	}
	if lobby.Count() != 2 {
		t.Fatalf("count is %d, want 2", lobby.Count())
	}
}

func TestReleaseFreesTheHeldSlot(t *testing.T) {
	lobby := NewLobby()
	lobby.Assign(100)
	lobby.Assign(200)

	slot, ok := lobby.Release(100)
	if !ok || slot != game.SlotLeft {
		t.Fatalf("release got (%v, %v), want (SlotLeft, true)", slot, ok)
	}

	// The freed left slot is handed out before right.
	slot, ok = lobby.Assign(300)
	if !ok || slot != game.SlotLeft {
		t.Fatalf("reassign got (%v, %v), want (SlotLeft, true)", slot, ok)
	}

	if _, ok := lobby.Release(999); ok {
		t.Fatal("released a client that was never assigned")
	}
}

func TestMembersListsInSlotOrder(t *testing.T) {
	lobby := NewLobby()
	lobby.Assign(100)
	lobby.Assign(200)

	members := lobby.Members()
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}
	if members[0].ClientId != 100 || members[0].Slot != game.SlotLeft {
		t.Fatalf("unexpected first member %+v", members[0])
	}
	if members[1].ClientId != 200 || members[1].Slot != game.SlotRight {
		t.Fatalf("unexpected second member %+v", members[1])
	}
}
