package server

// Room is one entry of the room directory browsed by clients. Visits counts
// distinct (username, room) first joins over the process lifetime and never
// decreases; Online is the live counted occupancy and never goes below zero.
type Room struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Author string `json:"author"`
	Desc   string `json:"desc"`
	Visits int    `json:"visits"`
	Online int    `json:"online"`
	Image  string `json:"image"`
}

// Registry holds the room catalog in a stable order. It has no lock of its
// own: the owning Hub serializes all access.
type Registry struct {
	rooms map[string]*Room
	order []string
}

// NewRegistry builds a registry from a static catalog. Rooms live for the
// whole process; there is no delete.
func NewRegistry(catalog []Room) *Registry {
	reg := &Registry{rooms: make(map[string]*Room, len(catalog))}
	for i := range catalog {
		room := catalog[i]
		if _, dup := reg.rooms[room.ID]; dup {
			continue
		}
		reg.rooms[room.ID] = &room
		reg.order = append(reg.order, room.ID)
	}
	return reg
}

// DefaultCatalog is the built-in room set used when main passes nothing else.
func DefaultCatalog() []Room {
	return []Room{
		{
			ID:     "parkour_1",
			Name:   "Factory Parkour",
			Author: "Admin",
			Desc:   "Obstacle course. No swords needed.",
			Image:  "logo.png",
		},
		{
			ID:     "pvp_arena",
			Name:   "Sword PVP Arena",
			Author: "Admin",
			Desc:   "Fight with swords! (LMB / Tap to attack)",
			Image:  "logo.png",
		},
	}
}

// Get returns the room or nil if the id is unknown.
func (reg *Registry) Get(id string) *Room {
	return reg.rooms[id]
}

// Snapshot returns a copy of every room in catalog order, safe to marshal
// after the hub lock is released.
func (reg *Registry) Snapshot() []Room {
	out := make([]Room, 0, len(reg.order))
	for _, id := range reg.order {
		out = append(out, *reg.rooms[id])
	}
	return out
}

// RecordJoin bumps the counters for a first join of a (username, room)
// pairing. Rejoins while already counted must not call this.
func (reg *Registry) RecordJoin(id string) {
	if room := reg.rooms[id]; room != nil {
		room.Online++
		room.Visits++
	}
}

// RecordLeave drops the live occupancy for a counted session that was the
// last of its username in the room, flooring at zero.
func (reg *Registry) RecordLeave(id string) {
	if room := reg.rooms[id]; room != nil && room.Online > 0 {
		room.Online--
	}
}

// SetThumbnail replaces the stored thumbnail. Reports whether the room exists.
func (reg *Registry) SetThumbnail(id, image string) bool {
	room := reg.rooms[id]
	if room == nil {
		return false
	}
	room.Image = image
	return true
}
