package server

import "encoding/json"

// Envelope is the framing for every websocket message, both directions.
// Example: {"type":"sendChat","data":{"text":"hi"}}
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound payloads (client -> hub).

type JoinGameMsg struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type PlayerMovementMsg struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Rot    float64 `json:"rot"`
	Action string  `json:"action,omitempty"`
	Weapon bool    `json:"weapon,omitempty"`
}

type PlayerHitMsg struct {
	TargetID string `json:"targetId"`
}

type SendChatMsg struct {
	Text string `json:"text"`
}

type UpdateThumbnailMsg struct {
	RoomID string `json:"roomId"`
	Image  string `json:"image"`
}

// Outbound payloads (hub -> client). updateGameList carries []Room and
// currentPlayers a map of SessionSnapshot; those types live with their owners.

type PlayerMovedMsg struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Rot    float64 `json:"rot"`
	Action string  `json:"action,omitempty"`
	Weapon bool    `json:"weapon,omitempty"`
}

type UpdateHPMsg struct {
	ID string `json:"id"`
	HP int    `json:"hp"`
}

type PlayerDiedMsg struct {
	ID string `json:"id"`
}

type RespawnPlayerMsg struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
	HP int     `json:"hp"`
}

type RemovePlayerMsg struct {
	ID string `json:"id"`
}

type ChatMessageMsg struct {
	User string `json:"user"`
	Text string `json:"text"`
}

// encodeEvent wraps a payload in an Envelope and marshals it. Payloads are
// plain structs and maps of structs; marshaling them cannot fail.
func encodeEvent(typ string, data any) []byte {
	raw, _ := json.Marshal(data)
	b, _ := json.Marshal(Envelope{Type: typ, Data: raw})
	return b
}
