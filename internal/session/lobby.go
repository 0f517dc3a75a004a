package session

import "github.com/cadyn/pong-netcode/pkg/game"

// Lobby maps authenticated client identities to the two fixed game-side
// slots. It is plain data owned by the tick loop; capacity and slot
// distinctness hold by construction.
type Lobby struct {
	occupied map[game.Slot]uint64
}

func NewLobby() *Lobby {
	return &Lobby{
		occupied: make(map[game.Slot]uint64, 2),
	}
}

// Assign binds a client to the first free slot, left before right. It
// reports false when both slots are taken - capacity is hard-capped at two,
// extra clients are never queued.
func (l *Lobby) Assign(clientId uint64) (game.Slot, bool) {
	for _, slot := range []game.Slot{game.SlotLeft, game.SlotRight} {
		if _, taken := l.occupied[slot]; !taken {
			l.occupied[slot] = clientId
			return slot, true
		}
	}
	return 0, false
}

// Release frees whichever slot the client holds.
func (l *Lobby) Release(clientId uint64) (game.Slot, bool) {
	for slot, id := range l.occupied {
		if id == clientId {
			delete(l.occupied, slot)
			return slot, true
		}
	}
	return 0, false
}

func (l *Lobby) SlotOf(clientId uint64) (game.Slot, bool) {
	for slot, id := range l.occupied {
		if id == clientId {
			return slot, true
		}
	}
	return 0, false
}

func (l *Lobby) Count() int {
	return len(l.occupied)
}

// Members lists occupants in slot order.
func (l *Lobby) Members() []LobbyMember {
	members := make([]LobbyMember, 0, 2)
	for _, slot := range []game.Slot{game.SlotLeft, game.SlotRight} {
		if id, taken := l.occupied[slot]; taken {
			members = append(members, LobbyMember{ClientId: id, Slot: slot})
		}
	}
	return members
}

type LobbyMember struct {
	ClientId uint64
	Slot     game.Slot
}
