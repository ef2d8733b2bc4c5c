package realtime

import (
	"github.com/google/uuid"
)

type SSEEvent string

const (
	SSEEventBugCreated       SSEEvent = "bug:created"
	SSEEventBugUpdated       SSEEvent = "bug:updated"
	SSEEventBugStatusChanged SSEEvent = "bug:statusChanged"
	SSEEventBugCommented     SSEEvent = "bug:commented"
	SSEEventBugUserTyping    SSEEvent = "bug:userTyping"

	SSEEventPresenceUserJoined SSEEvent = "presence:userJoined"
	SSEEventPresenceUserLeft   SSEEvent = "presence:userLeft"
	SSEEventPresenceViewers    SSEEvent = "presence:viewers"

	SSEEventNotificationNew SSEEvent = "notification:new"
)

// GlobalChannel carries app-wide bug feed events every connection receives.
const GlobalChannel = "bugs"

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// Viewer is one entry of a bug room roster.
type Viewer struct {
	UserID uuid.UUID `json:"userId"`
	Name   string    `json:"name"`
}

func BugChannel(bugID uuid.UUID) string {
	return "bug:" + bugID.String()
}

func UserChannel(userID uuid.UUID) string {
	return "user:" + userID.String()
}
