package server

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// fakeConn records every envelope enqueued to it. Enqueue runs under the hub
// lock and from respawn timer goroutines, so it takes its own mutex.
type fakeConn struct {
	mu   sync.Mutex
	msgs []Envelope
}

func (c *fakeConn) Enqueue(b []byte) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return
	}
	c.mu.Lock()
	c.msgs = append(c.msgs, env)
	c.mu.Unlock()
}

func (c *fakeConn) events(typ string) []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Envelope
	for _, env := range c.msgs {
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

func (c *fakeConn) count(typ string) int { return len(c.events(typ)) }

func (c *fakeConn) last(t *testing.T, typ string) Envelope {
	t.Helper()
	evs := c.events(typ)
	if len(evs) == 0 {
		t.Fatalf("no %q event received", typ)
	}
	return evs[len(evs)-1]
}

func (c *fakeConn) clear() {
	c.mu.Lock()
	c.msgs = nil
	c.mu.Unlock()
}

func payload[T any](t *testing.T, env Envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode %q payload: %v", env.Type, err)
	}
	return v
}

func newTestHub() *Hub {
	return NewHub(HubConfig{RespawnDelay: 25 * time.Millisecond})
}

// addPlayer connects a fake conn and joins it into a room.
func addPlayer(h *Hub, connID, username, roomID string) *fakeConn {
	c := &fakeConn{}
	h.Connect(connID, c)
	h.Join(connID, username, roomID)
	return c
}

// sessionState copies a session under the hub lock, for assertions.
func (h *Hub) sessionState(connID string) (Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.sessions.Get(connID)
	if s == nil {
		return Session{}, false
	}
	return *s, true
}

func roomByID(t *testing.T, h *Hub, id string) Room {
	t.Helper()
	for _, room := range h.Rooms() {
		if room.ID == id {
			return room
		}
	}
	t.Fatalf("room %q not in registry", id)
	return Room{}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestConnectPushesRoomDirectory(t *testing.T) {
	h := newTestHub()
	c := &fakeConn{}
	h.Connect("lobby", c)

	rooms := payload[[]Room](t, c.last(t, "updateGameList"))
	if len(rooms) != 2 {
		t.Fatalf("expected 2 catalog rooms, got %d", len(rooms))
	}
	if rooms[0].ID != "parkour_1" || rooms[1].ID != "pvp_arena" {
		t.Fatalf("unexpected catalog order: %s, %s", rooms[0].ID, rooms[1].ID)
	}
}

func TestJoinUnknownRoomIsNoOp(t *testing.T) {
	h := newTestHub()
	c := addPlayer(h, "a", "alice", "no_such_room")

	if _, ok := h.sessionState("a"); ok {
		t.Fatalf("expected no session for a join into an unknown room")
	}
	// Only the connect-time directory push, no join fallout.
	if got := c.count("updateGameList"); got != 1 {
		t.Fatalf("expected 1 updateGameList, got %d", got)
	}
	if got := c.count("currentPlayers"); got != 0 {
		t.Fatalf("expected no currentPlayers, got %d", got)
	}
}

func TestJoinCreatesSessionAtSpawn(t *testing.T) {
	h := newTestHub()
	addPlayer(h, "a", "alice", "pvp_arena")

	s, ok := h.sessionState("a")
	if !ok {
		t.Fatalf("expected session for conn a")
	}
	if s.HP != MaxHP {
		t.Fatalf("expected spawn hp %d, got %d", MaxHP, s.HP)
	}
	if s.Pos != SpawnPoint {
		t.Fatalf("expected spawn position %v, got %v", SpawnPoint, s.Pos)
	}
	if !s.Counted {
		t.Fatalf("first session of a username must hold the occupancy count")
	}
}

func TestJoinSnapshotsAndAnnouncements(t *testing.T) {
	h := newTestHub()
	lobby := &fakeConn{}
	h.Connect("lobby", lobby)
	a := addPlayer(h, "a", "alice", "pvp_arena")
	b := addPlayer(h, "b", "bob", "pvp_arena")

	// The joiner gets the full occupant snapshot, once.
	occupants := payload[map[string]SessionSnapshot](t, b.last(t, "currentPlayers"))
	if len(occupants) != 2 {
		t.Fatalf("expected 2 occupants in snapshot, got %d", len(occupants))
	}
	if _, ok := occupants["a"]; !ok {
		t.Fatalf("snapshot missing existing occupant a")
	}

	// Existing occupants get the announcement; the joiner does not.
	snap := payload[SessionSnapshot](t, a.last(t, "newPlayer"))
	if snap.ID != "b" || snap.Username != "bob" {
		t.Fatalf("unexpected newPlayer snapshot: %+v", snap)
	}
	if got := b.count("newPlayer"); got != 0 {
		t.Fatalf("joiner must not receive its own newPlayer, got %d", got)
	}

	// System chat announces the join to the room.
	chat := payload[ChatMessageMsg](t, a.last(t, "chatMessage"))
	if chat.User != SystemUser || chat.Text != "bob joined." {
		t.Fatalf("unexpected join chat line: %+v", chat)
	}

	// Every connection sees the registry change, joined or not.
	if got := lobby.count("updateGameList"); got != 3 {
		t.Fatalf("expected 3 directory pushes to lobby conn (connect + 2 joins), got %d", got)
	}
	if room := roomByID(t, h, "pvp_arena"); room.Online != 2 || room.Visits != 2 {
		t.Fatalf("expected online=2 visits=2, got online=%d visits=%d", room.Online, room.Visits)
	}
}

func TestMultiTabJoinCountsUsernameOnce(t *testing.T) {
	h := newTestHub()
	addPlayer(h, "tab1", "alice", "pvp_arena")
	addPlayer(h, "tab2", "alice", "pvp_arena")

	room := roomByID(t, h, "pvp_arena")
	if room.Online != 1 || room.Visits != 1 {
		t.Fatalf("two tabs of one user: expected online=1 visits=1, got online=%d visits=%d",
			room.Online, room.Visits)
	}

	s2, _ := h.sessionState("tab2")
	if s2.Counted {
		t.Fatalf("second tab must not hold the occupancy count")
	}

	// The uncounted tab leaving changes nothing; the counted one releases it.
	h.Disconnect("tab2")
	if room := roomByID(t, h, "pvp_arena"); room.Online != 1 {
		t.Fatalf("uncounted tab leave: expected online=1, got %d", room.Online)
	}
	h.Disconnect("tab1")
	if room := roomByID(t, h, "pvp_arena"); room.Online != 0 {
		t.Fatalf("counted tab leave: expected online=0, got %d", room.Online)
	}
	if room := roomByID(t, h, "pvp_arena"); room.Visits != 1 {
		t.Fatalf("visits never decrement, got %d", room.Visits)
	}
}

func TestOnlineNeverNegative(t *testing.T) {
	h := newTestHub()
	addPlayer(h, "a", "alice", "parkour_1")
	h.Disconnect("a")
	h.Disconnect("a") // repeated disconnect is a no-op
	h.Disconnect("ghost")

	if room := roomByID(t, h, "parkour_1"); room.Online != 0 {
		t.Fatalf("expected online=0, got %d", room.Online)
	}
}

func TestDisconnectAnnouncesRemoval(t *testing.T) {
	h := newTestHub()
	a := addPlayer(h, "a", "alice", "pvp_arena")
	addPlayer(h, "b", "bob", "pvp_arena")
	a.clear()

	h.Disconnect("b")

	rm := payload[RemovePlayerMsg](t, a.last(t, "removePlayer"))
	if rm.ID != "b" {
		t.Fatalf("expected removal of b, got %q", rm.ID)
	}
	if got := a.count("updateGameList"); got != 1 {
		t.Fatalf("expected a registry push after the leave, got %d", got)
	}
}

func TestRejoinMovesSessionBetweenRooms(t *testing.T) {
	h := newTestHub()
	watcher := addPlayer(h, "w", "walter", "parkour_1")
	addPlayer(h, "a", "alice", "parkour_1")
	watcher.clear()

	h.Join("a", "alice", "pvp_arena")

	s, ok := h.sessionState("a")
	if !ok || s.RoomID != "pvp_arena" {
		t.Fatalf("expected session in pvp_arena, got %+v ok=%v", s, ok)
	}
	if room := roomByID(t, h, "parkour_1"); room.Online != 1 {
		t.Fatalf("expected parkour_1 online=1 after alice moved, got %d", room.Online)
	}
	if room := roomByID(t, h, "pvp_arena"); room.Online != 1 {
		t.Fatalf("expected pvp_arena online=1, got %d", room.Online)
	}
	rm := payload[RemovePlayerMsg](t, watcher.last(t, "removePlayer"))
	if rm.ID != "a" {
		t.Fatalf("old room must see the removal, got %q", rm.ID)
	}
}
