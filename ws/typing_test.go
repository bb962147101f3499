package ws

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBroadcaster, Broadcaster interface'inin test implementasyonu.
// Yayınlanan event'leri kaydeder.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	target  string // room key, "user:<id>" veya "socket:<id>"
	exclude string
	event   Event
}

func (f *fakeBroadcaster) record(target, exclude string, event Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{target: target, exclude: exclude, event: event})
}

func (f *fakeBroadcaster) EmitToRoom(key string, event Event) { f.record(key, "", event) }
func (f *fakeBroadcaster) EmitToRoomExcept(key, exclude string, event Event) {
	f.record(key, exclude, event)
}
func (f *fakeBroadcaster) EmitToUser(userID string, event Event) {
	f.record("user:"+userID, "", event)
}
func (f *fakeBroadcaster) EmitToSocket(socketID string, event Event) {
	f.record("socket:"+socketID, "", event)
}
func (f *fakeBroadcaster) RoomMembers(key string) []string           { return nil }
func (f *fakeBroadcaster) SocketsOfUser(userID string) []string      { return nil }
func (f *fakeBroadcaster) UserOfSocket(socketID string) (string, bool) { return "", false }
func (f *fakeBroadcaster) JoinRoom(socketID, key string)             {}
func (f *fakeBroadcaster) LeaveRoom(socketID, key string)            {}
func (f *fakeBroadcaster) IsUserOnline(userID string) bool           { return false }
func (f *fakeBroadcaster) OnlineUserIDs() []string                   { return nil }
func (f *fakeBroadcaster) DisconnectUser(userID string)              {}

func (f *fakeBroadcaster) byOp(op string) []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedEvent
	for _, e := range f.events {
		if e.event.Op == op {
			out = append(out, e)
		}
	}
	return out
}

func TestTypingStartBroadcastsOnce(t *testing.T) {
	hub := &fakeBroadcaster{}
	tracker := NewTypingTracker(hub)
	defer tracker.Close()

	tracker.Start("c1", "u1", "alice", "sock1")
	tracker.Start("c1", "u1", "alice", "sock1") // pencere içinde yenileme

	starts := hub.byOp(OpTypingStarted)
	require.Len(t, starts, 1, "yenileme yeniden broadcast etmez")
	assert.Equal(t, ChannelKey("c1"), starts[0].target)
	assert.Equal(t, "sock1", starts[0].exclude, "gönderen kendi typing event'ini almaz")
}

func TestTypingStopAll(t *testing.T) {
	hub := &fakeBroadcaster{}
	tracker := NewTypingTracker(hub)
	defer tracker.Close()

	tracker.Start("c1", "u1", "alice", "s1")
	tracker.Start("c2", "u1", "alice", "s1")
	tracker.Start("c1", "u2", "bob", "s2")

	tracker.StopAll("u1")

	stops := hub.byOp(OpTypingStopped)
	require.Len(t, stops, 2, "u1'in iki kanalı da durur")

	// u2'nin girişi yaşamaya devam eder — tekrar Stop edilebilir
	tracker.Stop("c1", "u2")
	assert.Len(t, hub.byOp(OpTypingStopped), 3)
}

func TestTypingStopIdempotent(t *testing.T) {
	hub := &fakeBroadcaster{}
	tracker := NewTypingTracker(hub)
	defer tracker.Close()

	tracker.Stop("c1", "u1") // giriş yok — no-op
	assert.Empty(t, hub.byOp(OpTypingStopped))
}

func TestTypingSweepExpires(t *testing.T) {
	hub := &fakeBroadcaster{}
	tracker := &TypingTracker{
		entries: make(map[typingKey]*typingEntry),
		hub:     hub,
		stop:    make(chan struct{}),
	}
	defer close(tracker.stop)

	// Süresi geçmiş giriş elle eklenir — sweep'in düşürmesi beklenir.
	tracker.entries[typingKey{"c1", "u1"}] = &typingEntry{
		username:  "alice",
		expiresAt: time.Now().Add(-time.Second),
	}

	tracker.sweep()

	stops := hub.byOp(OpTypingStopped)
	require.Len(t, stops, 1)
	assert.Equal(t, ChannelKey("c1"), stops[0].target)
}
