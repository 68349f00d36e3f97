// Package gateway defines the platform-neutral events the engine
// consumes. The chat/voice gateway that produces them is an external
// collaborator; adapters translate its payloads into these shapes.
package gateway

import "time"

// MessageEvent is one inbound chat message.
type MessageEvent struct {
	UserID      int64
	Username    string
	Channel     string // channel display name
	Text        string
	Attachments []string // attachment URLs, in message order
	CreatedAt   time.Time
}

// PresenceEvent is one voice-channel presence change. Empty channel
// names mean "not in a voice channel".
type PresenceEvent struct {
	UserID   int64
	Username string
	Before   string // channel the user was in, "" if none
	After    string // channel the user is in now, "" if none
}
