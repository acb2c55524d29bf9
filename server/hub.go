package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

const (
	// HitDamage is the fixed damage per resolved melee hit.
	HitDamage = 15
	// DefaultRespawnDelay is how long a dead session lies before respawning.
	DefaultRespawnDelay = 3 * time.Second
	// SystemUser tags server-authored chat lines.
	SystemUser = "System"
)

// Conn is the outbound half of a client connection. Enqueue must never
// block: a slow or dead peer drops frames instead of stalling a broadcast.
type Conn interface {
	Enqueue(msg []byte)
}

// HubConfig configures a Hub. Zero values get sane defaults.
type HubConfig struct {
	Catalog      []Room
	Outfits      OutfitLookup
	RespawnDelay time.Duration
	Logger       *zap.SugaredLogger
}

// Hub owns the room registry and session store and coordinates every event
// against them: join/leave, movement relay, combat, respawn timing, chat and
// thumbnail updates. One mutex serializes all of it; each inbound event is a
// single atomic step. Respawn timers are the only out-of-band mutation and
// re-enter through the same lock.
type Hub struct {
	mu       sync.Mutex
	conns    map[string]Conn
	sessions *SessionStore
	registry *Registry
	respawns map[string]*time.Timer

	respawnDelay time.Duration
	outfits      OutfitLookup
	metrics      *Metrics
	log          *zap.SugaredLogger
}

func NewHub(cfg HubConfig) *Hub {
	if cfg.Catalog == nil {
		cfg.Catalog = DefaultCatalog()
	}
	if cfg.Outfits == nil {
		cfg.Outfits = StaticOutfits(nil)
	}
	if cfg.RespawnDelay <= 0 {
		cfg.RespawnDelay = DefaultRespawnDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	return &Hub{
		conns:        make(map[string]Conn),
		sessions:     NewSessionStore(),
		registry:     NewRegistry(cfg.Catalog),
		respawns:     make(map[string]*time.Timer),
		respawnDelay: cfg.RespawnDelay,
		outfits:      cfg.Outfits,
		metrics:      &Metrics{},
		log:          cfg.Logger,
	}
}

// Metrics exposes the hub's counters for the /metrics handler.
func (h *Hub) Metrics() *Metrics { return h.metrics }

// Rooms returns the current registry snapshot.
func (h *Hub) Rooms() []Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.registry.Snapshot()
}

// Connect registers a new connection and pushes it the room directory.
// Connections exist before (and without) joining a room.
func (h *Hub) Connect(connID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[connID] = conn
	conn.Enqueue(encodeEvent("updateGameList", h.registry.Snapshot()))
}

// Disconnect tears down the connection and its session, if any.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connID)
	h.leaveLocked(connID)
}

// Join creates a session for connID in roomID. Unknown rooms are a silent
// no-op; a connection that already sits in a room leaves it first.
func (h *Hub) Join(connID, username, roomID string) {
	h.mu.Lock()
	known := h.registry.Get(roomID) != nil
	h.mu.Unlock()
	if !known {
		h.metrics.IncJoinsRejected()
		h.log.Debugf("join rejected: unknown room %q (conn=%s)", roomID, connID)
		return
	}

	// The collaborator call stays outside the lock; it is read-only and
	// bounded, and a slow profile service must not stall other events.
	ctx, cancel := context.WithTimeout(context.Background(), outfitTimeout)
	outfit, err := h.outfits.GetOutfit(ctx, username)
	cancel()
	if err != nil {
		outfit = DefaultOutfit()
		h.log.Debugf("outfit lookup failed for %q: %v, using defaults", username, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions.Get(connID) != nil {
		h.leaveLocked(connID)
	}
	counted := !h.sessions.HasOther(username, roomID, connID)
	s := &Session{
		ID:       connID,
		Username: username,
		RoomID:   roomID,
		Pos:      SpawnPoint,
		HP:       MaxHP,
		Outfit:   outfit,
		Counted:  counted,
	}
	h.sessions.Put(s)
	if counted {
		h.registry.RecordJoin(roomID)
	}
	h.broadcastRegistryLocked()

	occupants := make(map[string]SessionSnapshot)
	for _, other := range h.sessions.InRoom(roomID) {
		occupants[other.ID] = other.Snapshot()
	}
	h.sendToLocked(connID, encodeEvent("currentPlayers", occupants))
	h.broadcastRoomLocked(roomID, encodeEvent("newPlayer", s.Snapshot()), connID)
	h.systemChatLocked(roomID, fmt.Sprintf("%s joined.", username))
	h.metrics.IncJoins()
	h.log.Infof("join: conn=%s user=%q room=%s counted=%v", connID, username, roomID, counted)
}

// ReportMovement stores the client-reported transform and relays it to the
// rest of the room. The view layer owns physics; the transform is trusted
// as-is, and action/weapon are opaque pass-through tokens.
func (h *Hub) ReportMovement(connID string, m PlayerMovementMsg) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.sessions.Get(connID)
	if s == nil {
		return
	}
	s.Pos = mgl64.Vec3{m.X, m.Y, m.Z}
	s.Rot = m.Rot
	h.broadcastRoomLocked(s.RoomID, encodeEvent("playerMoved", PlayerMovedMsg{
		ID: connID, X: m.X, Y: m.Y, Z: m.Z, Rot: m.Rot,
		Action: m.Action, Weapon: m.Weapon,
	}), connID)
}

// ResolveHit applies a client-claimed melee hit. Target selection happened
// client-side; the server only checks that the claim is coherent: both
// sessions exist, share a room, are distinct, and the target is alive.
func (h *Hub) ResolveHit(attackerID, targetID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	attacker := h.sessions.Get(attackerID)
	victim := h.sessions.Get(targetID)
	switch {
	case attacker == nil || victim == nil:
		h.metrics.IncHitsRejected()
		h.log.Debugf("hit rejected: session missing (%s -> %s)", attackerID, targetID)
		return
	case attacker.RoomID != victim.RoomID:
		h.metrics.IncHitsRejected()
		h.log.Debugf("hit rejected: cross-room %s(%s) -> %s(%s)",
			attacker.Username, attacker.RoomID, victim.Username, victim.RoomID)
		return
	case attackerID == targetID:
		h.metrics.IncHitsRejected()
		h.log.Debugf("hit rejected: %s targeted themselves", attacker.Username)
		return
	case victim.Dead():
		h.metrics.IncHitsRejected()
		h.log.Debugf("hit rejected: %s is already dead", victim.Username)
		return
	}

	victim.HP -= HitDamage
	h.metrics.IncHitsResolved()
	// HP goes out unclamped (it can read -5); clients clamp for display.
	h.broadcastRoomLocked(victim.RoomID, encodeEvent("updateHP", UpdateHPMsg{ID: victim.ID, HP: victim.HP}))
	h.log.Infof("hit: %s -> %s hp=%d", attacker.Username, victim.Username, victim.HP)
	if victim.Dead() {
		h.killLocked(victim, fmt.Sprintf("⚔️ %s was slain by %s!", victim.Username, attacker.Username))
	}
}

// ResetCharacter is the self-inflicted death from the respawn UI action.
func (h *Hub) ResetCharacter(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.sessions.Get(connID)
	if s == nil || s.Dead() {
		return
	}
	s.HP = 0
	h.killLocked(s, fmt.Sprintf("☠️ %s reset their character.", s.Username))
}

// SendChat relays a chat line to the sender's whole room, sender included.
func (h *Hub) SendChat(connID, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.sessions.Get(connID)
	if s == nil {
		return
	}
	h.broadcastRoomLocked(s.RoomID, encodeEvent("chatMessage", ChatMessageMsg{User: s.Username, Text: text}))
	h.metrics.IncChatMessages()
}

// UpdateThumbnail replaces a room's thumbnail and refreshes every client's
// room browser. Deliberately unauthenticated: cosmetic-only surface.
func (h *Hub) UpdateThumbnail(roomID, image string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.registry.SetThumbnail(roomID, image) {
		return
	}
	h.broadcastRegistryLocked()
}

// UpdateRoomInfo applies a partial metadata update from the admin surface
// and rebroadcasts the registry. Reports whether the room exists.
func (h *Hub) UpdateRoomInfo(roomID string, name, desc, image *string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.registry.Get(roomID)
	if room == nil {
		return false
	}
	if name != nil {
		room.Name = *name
	}
	if desc != nil {
		room.Desc = *desc
	}
	if image != nil {
		room.Image = *image
	}
	h.broadcastRegistryLocked()
	return true
}

// leaveLocked removes connID's session: announces the removal to the room,
// releases the occupancy count if this was the last counted tab of its
// username, stops any pending respawn timer, and rebroadcasts the registry.
func (h *Hub) leaveLocked(connID string) {
	if t, ok := h.respawns[connID]; ok {
		t.Stop()
		delete(h.respawns, connID)
	}
	s := h.sessions.Get(connID)
	if s == nil {
		return
	}
	h.sessions.Delete(connID)
	h.broadcastRoomLocked(s.RoomID, encodeEvent("removePlayer", RemovePlayerMsg{ID: connID}))
	if s.Counted && !h.sessions.HasOther(s.Username, s.RoomID, connID) {
		h.registry.RecordLeave(s.RoomID)
	}
	h.broadcastRegistryLocked()
	h.log.Infof("leave: conn=%s user=%q room=%s", connID, s.Username, s.RoomID)
}

// killLocked runs the shared death path: death event, system chat line,
// respawn timer.
func (h *Hub) killLocked(victim *Session, chatLine string) {
	h.metrics.IncDeaths()
	h.broadcastRoomLocked(victim.RoomID, encodeEvent("playerDied", PlayerDiedMsg{ID: victim.ID}))
	h.systemChatLocked(victim.RoomID, chatLine)
	h.armRespawnLocked(victim.ID)
}

// armRespawnLocked schedules the one-shot respawn. At most one timer per
// connection: arming again replaces the previous handle.
func (h *Hub) armRespawnLocked(connID string) {
	if t, ok := h.respawns[connID]; ok {
		t.Stop()
	}
	h.respawns[connID] = time.AfterFunc(h.respawnDelay, func() { h.respawn(connID) })
}

// respawn fires on the timer goroutine. If the session disconnected during
// the delay the existence check makes this a silent no-op.
func (h *Hub) respawn(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.respawns, connID)
	s := h.sessions.Get(connID)
	if s == nil {
		return
	}
	s.HP = MaxHP
	s.Pos = SpawnPoint
	h.broadcastRoomLocked(s.RoomID, encodeEvent("respawnPlayer", RespawnPlayerMsg{
		ID: connID, X: s.Pos.X(), Y: s.Pos.Y(), Z: s.Pos.Z(), HP: s.HP,
	}))
	h.metrics.IncRespawns()
	h.log.Infof("respawn: conn=%s user=%q", connID, s.Username)
}

func (h *Hub) systemChatLocked(roomID, text string) {
	h.broadcastRoomLocked(roomID, encodeEvent("chatMessage", ChatMessageMsg{User: SystemUser, Text: text}))
}

// broadcastRegistryLocked pushes the room directory to every connection,
// joined or not, so all room-browser views stay current.
func (h *Hub) broadcastRegistryLocked() {
	msg := encodeEvent("updateGameList", h.registry.Snapshot())
	for _, c := range h.conns {
		c.Enqueue(msg)
	}
}

// broadcastRoomLocked fans msg out to every occupant of roomID, minus any
// excluded connection (the movement relay never echoes to its sender).
func (h *Hub) broadcastRoomLocked(roomID string, msg []byte, except ...string) {
	for _, s := range h.sessions.InRoom(roomID) {
		if len(except) > 0 && s.ID == except[0] {
			continue
		}
		if c, ok := h.conns[s.ID]; ok {
			c.Enqueue(msg)
		}
	}
}

func (h *Hub) sendToLocked(connID string, msg []byte) {
	if c, ok := h.conns[connID]; ok {
		c.Enqueue(msg)
	}
}
