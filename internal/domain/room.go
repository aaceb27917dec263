// Package domain contains entity types without logic, just meta-data.
package domain

// RoomIDLength is the length of generated room codes.
const RoomIDLength = 8

// MemberInfo is one participant's slot in a room snapshot.
type MemberInfo struct {
	Username string `json:"username"`
	Ready    bool   `json:"ready"`
	Points   int    `json:"points,omitempty"`
}

// RoomInfo is an immutable snapshot of a room's membership in join order.
type RoomInfo struct {
	RoomID string       `json:"room_id"`
	Users  []MemberInfo `json:"users"`
}

// Usernames returns the member names in join order.
func (r RoomInfo) Usernames() []string {
	out := make([]string, 0, len(r.Users))
	for _, m := range r.Users {
		out = append(out, m.Username)
	}
	return out
}
