// Package notifications delivers realtime events to connected websocket
// clients, fanning them out across instances through Redis pub/sub.
package notifications

import "encoding/json"

// Event types pushed to clients.
const (
	EventPostCreated    = "post_created"
	EventPostDeleted    = "post_deleted"
	EventPostLiked      = "post_liked"
	EventCommentCreated = "comment_created"
	EventNotification   = "notification"
)

var dropNotice = []byte(`{"type":"messages_dropped","payload":{"reason":"buffer_full"}}`)

// Event is the frame written to clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Encode renders the event as a websocket text frame.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
