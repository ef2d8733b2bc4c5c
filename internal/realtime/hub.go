package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/citrusqa/bitacora-backend/internal/platform/logger"
)

// SSEHub fans messages out to connected clients by channel. On top of plain
// subscriptions it tracks bug room presence: which users currently have a bug
// open, so everyone in the room sees the same viewer roster.
type SSEHub struct {
	mu            sync.RWMutex
	logger        *logger.Logger
	subscriptions map[string]map[*SSEClient]bool
	// bug channel -> clients viewing it. One user may hold several
	// connections; the roster is deduped by UserID.
	rooms map[string]map[*SSEClient]bool
}

func NewSSEHub(log *logger.Logger) *SSEHub {
	return &SSEHub{
		logger:        log.With("component", "SSEHub"),
		subscriptions: make(map[string]map[*SSEClient]bool),
		rooms:         make(map[string]map[*SSEClient]bool),
	}
}

func (hub *SSEHub) NewSSEClient(userID uuid.UUID, userName string) *SSEClient {
	client := &SSEClient{
		ID:       uuid.New(),
		UserID:   userID,
		UserName: userName,
		Channels: make(map[string]bool),
		Outbound: make(chan SSEMessage, 10),
		done:     make(chan struct{}),
		Logger:   hub.logger,
	}
	// Every connection listens on its owner's user channel for targeted
	// notifications and on the global bug feed.
	hub.AddChannel(client, UserChannel(userID))
	hub.AddChannel(client, GlobalChannel)
	return client
}

func (hub *SSEHub) AddChannel(client *SSEClient, channel string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}

	client.Channels[channel] = true

	clients, exists := hub.subscriptions[channel]
	if !exists {
		clients = make(map[*SSEClient]bool)
		hub.subscriptions[channel] = clients
	}
	clients[client] = true

	hub.logger.Debug("SSE client subscribed", "clientID", client.ID, "channel", channel)
}

func (hub *SSEHub) RemoveChannel(client *SSEClient, channel string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}
	delete(client.Channels, channel)

	if subMap, ok := hub.subscriptions[channel]; ok {
		delete(subMap, client)
		if len(subMap) == 0 {
			delete(hub.subscriptions, channel)
		}
	}
	hub.logger.Debug("SSE client unsubscribed from channel", "clientID", client.ID, "channel", channel)
}

// JoinRoom puts the client in a bug room and announces the join. Returns the
// roster after the join so the caller can hand it straight back to the user.
func (hub *SSEHub) JoinRoom(client *SSEClient, bugID uuid.UUID) []Viewer {
	channel := BugChannel(bugID)
	hub.AddChannel(client, channel)

	hub.mu.Lock()
	room, exists := hub.rooms[channel]
	if !exists {
		room = make(map[*SSEClient]bool)
		hub.rooms[channel] = room
	}
	wasViewing := hub.userInRoomLocked(room, client.UserID)
	room[client] = true
	roster := rosterLocked(room)
	hub.mu.Unlock()

	if !wasViewing {
		hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventPresenceUserJoined, Data: Viewer{UserID: client.UserID, Name: client.UserName}})
	}
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventPresenceViewers, Data: roster})
	return roster
}

// LeaveRoom is the inverse of JoinRoom. The userLeft event only fires when the
// user's last connection leaves the room.
func (hub *SSEHub) LeaveRoom(client *SSEClient, bugID uuid.UUID) []Viewer {
	channel := BugChannel(bugID)

	hub.mu.Lock()
	room, exists := hub.rooms[channel]
	if !exists {
		hub.mu.Unlock()
		return nil
	}
	delete(room, client)
	stillViewing := hub.userInRoomLocked(room, client.UserID)
	if len(room) == 0 {
		delete(hub.rooms, channel)
	}
	roster := rosterLocked(room)
	hub.mu.Unlock()

	if !stillViewing {
		hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventPresenceUserLeft, Data: Viewer{UserID: client.UserID, Name: client.UserName}})
	}
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventPresenceViewers, Data: roster})

	hub.RemoveChannel(client, channel)
	return roster
}

// Viewers returns the deduped roster of a bug room.
func (hub *SSEHub) Viewers(bugID uuid.UUID) []Viewer {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return rosterLocked(hub.rooms[BugChannel(bugID)])
}

func (hub *SSEHub) userInRoomLocked(room map[*SSEClient]bool, userID uuid.UUID) bool {
	for c := range room {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

func rosterLocked(room map[*SSEClient]bool) []Viewer {
	roster := make([]Viewer, 0, len(room))
	seen := make(map[uuid.UUID]bool, len(room))
	for c := range room {
		if seen[c.UserID] {
			continue
		}
		seen[c.UserID] = true
		roster = append(roster, Viewer{UserID: c.UserID, Name: c.UserName})
	}
	return roster
}

func (hub *SSEHub) RemoveClient(client *SSEClient) {
	// Leave bug rooms first so userLeft events fire before the
	// subscriptions disappear.
	hub.mu.Lock()
	var joined []string
	for ch, room := range hub.rooms {
		if room[client] {
			joined = append(joined, ch)
		}
	}
	hub.mu.Unlock()

	for _, ch := range joined {
		id, err := uuid.Parse(strings.TrimPrefix(ch, "bug:"))
		if err != nil {
			continue
		}
		hub.LeaveRoom(client, id)
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	for ch := range client.Channels {
		if subMap, ok := hub.subscriptions[ch]; ok {
			delete(subMap, client)
			if len(subMap) == 0 {
				delete(hub.subscriptions, ch)
			}
		}
	}
	client.Channels = make(map[string]bool)
	hub.logger.Debug("SSE client unsubscribed from all channels", "clientID", client.ID)
}

func (hub *SSEHub) Broadcast(msg SSEMessage) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if msg.Channel == "" {
		return
	}
	clientsMap, ok := hub.subscriptions[msg.Channel]
	if !ok {
		return
	}
	for c := range clientsMap {
		select {
		case c.Outbound <- msg:
		default:
			hub.logger.Warn("Dropping SSE message; outbound buffer full", "clientID", c.ID)
		}
	}
}

// BroadcastToUser targets every connection a user holds.
func (hub *SSEHub) BroadcastToUser(userID uuid.UUID, event SSEEvent, data any) {
	hub.Broadcast(SSEMessage{Channel: UserChannel(userID), Event: event, Data: data})
}

func (hub *SSEHub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *SSEClient) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			hub.logger.Debug("SSE client context done", "clientID", client.ID, "err", ctx.Err())
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg := <-client.Outbound:
			jsonBytes, err := json.Marshal(msg)
			if err != nil {
				hub.logger.Warn("Failed to marshal SSE message", "error", err)
				continue
			}
			_, _ = fmt.Fprintf(w, "event: message\ndata: %s\n\n", string(jsonBytes))
			flusher.Flush()
		}
	}
}

func (hub *SSEHub) CloseClient(client *SSEClient) {
	close(client.done)
	hub.RemoveClient(client)
	close(client.Outbound)
}
