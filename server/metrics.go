package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Metrics counts what the hub has been doing, for monitoring and debugging.
type Metrics struct {
	Joins         int64 // sessions created
	JoinsRejected int64 // joins against unknown rooms
	HitsResolved  int64 // hits that applied damage
	HitsRejected  int64 // hits refused by the coherence checks
	Deaths        int64 // lethal hits plus character resets
	Respawns      int64 // respawn timers that found their session alive
	ChatMessages  int64 // player chat lines relayed
	FramesDropped int64 // outbound frames discarded on full send queues
}

func (m *Metrics) IncJoins()         { atomic.AddInt64(&m.Joins, 1) }
func (m *Metrics) IncJoinsRejected() { atomic.AddInt64(&m.JoinsRejected, 1) }
func (m *Metrics) IncHitsResolved()  { atomic.AddInt64(&m.HitsResolved, 1) }
func (m *Metrics) IncHitsRejected()  { atomic.AddInt64(&m.HitsRejected, 1) }
func (m *Metrics) IncDeaths()        { atomic.AddInt64(&m.Deaths, 1) }
func (m *Metrics) IncRespawns()      { atomic.AddInt64(&m.Respawns, 1) }
func (m *Metrics) IncChatMessages()  { atomic.AddInt64(&m.ChatMessages, 1) }
func (m *Metrics) IncFramesDropped() { atomic.AddInt64(&m.FramesDropped, 1) }

// Snapshot returns a read-only copy for HTTP output.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"joins":          atomic.LoadInt64(&m.Joins),
		"joins_rejected": atomic.LoadInt64(&m.JoinsRejected),
		"hits_resolved":  atomic.LoadInt64(&m.HitsResolved),
		"hits_rejected":  atomic.LoadInt64(&m.HitsRejected),
		"deaths":         atomic.LoadInt64(&m.Deaths),
		"respawns":       atomic.LoadInt64(&m.Respawns),
		"chat_messages":  atomic.LoadInt64(&m.ChatMessages),
		"frames_dropped": atomic.LoadInt64(&m.FramesDropped),
	}
}

// HandleMetrics serves the hub counters.
// GET /metrics
func HandleMetrics(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(hub.Metrics().Snapshot())
	}
}
