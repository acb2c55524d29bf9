package server

import (
	"encoding/json"
	"net/http"
)

// HandleAdminRooms serves the room directory over HTTP and accepts partial
// metadata updates (hot edit of name/description/thumbnail).
// GET  /admin/rooms                 list all rooms
// POST /admin/rooms?room=pvp_arena  update fields from a JSON payload
func HandleAdminRooms(hub *Hub) http.HandlerFunc {
	type update struct {
		Name  *string `json:"name,omitempty"`
		Desc  *string `json:"desc,omitempty"`
		Image *string `json:"image,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(hub.Rooms())
			return
		case http.MethodPost:
			roomID := r.URL.Query().Get("room")
			if roomID == "" {
				http.Error(w, "missing room query", http.StatusBadRequest)
				return
			}
			var body update
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
			if !hub.UpdateRoomInfo(roomID, body.Name, body.Desc, body.Image) {
				http.Error(w, "unknown room", http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
			Log.Infof("room updated via admin: %s", roomID)
			return
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
	}
}
