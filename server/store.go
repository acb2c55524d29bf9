package server

import "github.com/go-gl/mathgl/mgl64"

const (
	// MaxHP is both the spawn health and the respawn health.
	MaxHP = 100
)

// SpawnPoint is the canonical spawn for every room.
var SpawnPoint = mgl64.Vec3{0, 10, 0}

// Outfit is the cosmetic attributes of a player, fetched once at join time
// and opaque to movement and combat.
type Outfit struct {
	ShirtColor string `json:"shirtColor"`
	PantsColor string `json:"pantsColor"`
	HatType    string `json:"hatType"`
}

// Session is the server-side record of one live connection's in-room state.
// HP can briefly dip below zero (damage is broadcast unclamped); the session
// counts as dead whenever HP <= 0.
type Session struct {
	ID       string
	Username string
	RoomID   string
	Pos      mgl64.Vec3
	Rot      float64
	HP       int
	Outfit   Outfit

	// Counted marks the session that holds the room's occupancy increment
	// for its username. Extra tabs of the same user join uncounted.
	Counted bool
}

// Dead reports whether the session is awaiting respawn.
func (s *Session) Dead() bool { return s.HP <= 0 }

// SessionSnapshot is the wire form of a session, sent in currentPlayers and
// newPlayer events.
type SessionSnapshot struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	RoomID   string  `json:"roomId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Rot      float64 `json:"rot"`
	HP       int     `json:"hp"`
	MaxHP    int     `json:"maxHp"`
	Outfit   Outfit  `json:"outfit"`
}

// Snapshot flattens the session for broadcast.
func (s *Session) Snapshot() SessionSnapshot {
	return SessionSnapshot{
		ID:       s.ID,
		Username: s.Username,
		RoomID:   s.RoomID,
		X:        s.Pos.X(),
		Y:        s.Pos.Y(),
		Z:        s.Pos.Z(),
		Rot:      s.Rot,
		HP:       s.HP,
		MaxHP:    MaxHP,
		Outfit:   s.Outfit,
	}
}

// SessionStore maps connection id to session. Like Registry it carries no
// lock; the Hub owns it and serializes access.
type SessionStore struct {
	byConn map[string]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{byConn: make(map[string]*Session)}
}

func (st *SessionStore) Get(connID string) *Session {
	return st.byConn[connID]
}

func (st *SessionStore) Put(s *Session) {
	st.byConn[s.ID] = s
}

func (st *SessionStore) Delete(connID string) {
	delete(st.byConn, connID)
}

// InRoom returns every session currently in the room.
func (st *SessionStore) InRoom(roomID string) []*Session {
	var out []*Session
	for _, s := range st.byConn {
		if s.RoomID == roomID {
			out = append(out, s)
		}
	}
	return out
}

// HasOther reports whether a live session other than exceptID exists for the
// same (username, room) pairing. Drives both the multi-tab counted flag at
// join and the last-tab occupancy decrement at leave.
func (st *SessionStore) HasOther(username, roomID, exceptID string) bool {
	for id, s := range st.byConn {
		if id != exceptID && s.Username == username && s.RoomID == roomID {
			return true
		}
	}
	return false
}
