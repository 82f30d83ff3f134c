package services

import (
	"sync"
)

// Event types delivered to connected devices.
const (
	EventClipboardUpdated = "clipboard.updated"
	EventClipboardDeleted = "clipboard.deleted"
	EventClipboardCleared = "clipboard.cleared"
)

// SyncEvent is a push notification about a clipboard change, fanned out
// to every live connection of the owning user.
type SyncEvent struct {
	Type    string    `json:"type"`
	UserID  string    `json:"user_id"`
	Entry   *EntryDTO `json:"entry,omitempty"`
	EntryID string    `json:"entry_id,omitempty"`
}

// SyncHub manages per-user groups of subscriber channels. The websocket
// handler subscribes one channel per connection and pumps it to the
// socket; slow subscribers lose events instead of blocking the hub.
type SyncHub struct {
	mu   sync.RWMutex
	subs map[string]map[string]chan SyncEvent // userID -> clientID -> channel
}

func NewSyncHub() *SyncHub {
	return &SyncHub{
		subs: make(map[string]map[string]chan SyncEvent),
	}
}

// Subscribe registers a client connection of a user and returns its
// event channel.
func (h *SyncHub) Subscribe(userID, clientID string) <-chan SyncEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan SyncEvent, 32)
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[string]chan SyncEvent)
	}
	h.subs[userID][clientID] = ch
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (h *SyncHub) Unsubscribe(userID, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group, ok := h.subs[userID]
	if !ok {
		return
	}
	if ch, ok := group[clientID]; ok {
		close(ch)
		delete(group, clientID)
	}
	if len(group) == 0 {
		delete(h.subs, userID)
	}
}

// Publish delivers an event to all connections of the event's user.
// Connections of other users never see it.
func (h *SyncHub) Publish(event SyncEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[event.UserID] {
		select {
		case ch <- event:
		default:
			// Subscriber buffer full, drop the event. The client
			// resynchronizes through the history endpoint anyway.
		}
	}
}

// ClientCount returns the number of live connections for a user.
func (h *SyncHub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

var (
	globalSyncHub *SyncHub
	syncHubOnce   sync.Once
)

// GetSyncHub returns the global hub singleton.
func GetSyncHub() *SyncHub {
	syncHubOnce.Do(func() {
		globalSyncHub = NewSyncHub()
	})
	return globalSyncHub
}
