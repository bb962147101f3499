// TypingTracker — kanal başına "yazıyor" göstergelerinin ephemeral takibi.
//
// Her (channel, user) girişi bir expiry taşır; yenilenmeyen giriş 8 saniye
// sonra otomatik düşer ve typing:stop yayınlanır. Per-entry timer yerine
// tek bir tarayıcı goroutine kullanılır — binlerce typing girişinde bile
// tek ticker çalışır.
package ws

import (
	"sync"
	"time"
)

// typingTTL — yenilenmeyen typing girişinin yaşam süresi.
const typingTTL = 8 * time.Second

// typingSweepInterval — süresi dolan girişlerin tarama periyodu.
const typingSweepInterval = time.Second

// typingKey, (channel, user) çifti.
type typingKey struct {
	channelID string
	userID    string
}

// typingEntry, aktif bir typing göstergesi.
type typingEntry struct {
	username  string
	expiresAt time.Time
}

// TypingTracker, aktif typing girişlerini ve tarayıcıyı tutar.
type TypingTracker struct {
	mu      sync.Mutex
	entries map[typingKey]*typingEntry

	hub  Broadcaster
	stop chan struct{}
}

// NewTypingTracker, tracker'ı oluşturur ve tarayıcı goroutine'ini başlatır.
func NewTypingTracker(hub Broadcaster) *TypingTracker {
	t := &TypingTracker{
		entries: make(map[typingKey]*typingEntry),
		hub:     hub,
		stop:    make(chan struct{}),
	}
	go t.sweepLoop()
	return t
}

// Start, typing girişini kaydeder/yeniler ve typing:start'ı kanala yayar
// (gönderen socket hariç). Pencere içinde tekrarlanan Start sadece
// timer'ı sıfırlar — yeniden broadcast edilmez.
func (t *TypingTracker) Start(channelID, userID, username, senderSocketID string) {
	key := typingKey{channelID, userID}

	t.mu.Lock()
	_, already := t.entries[key]
	t.entries[key] = &typingEntry{username: username, expiresAt: time.Now().Add(typingTTL)}
	t.mu.Unlock()

	if already {
		return
	}

	t.hub.EmitToRoomExcept(ChannelKey(channelID), senderSocketID, Event{
		Op: OpTypingStarted,
		Data: TypingBroadcast{
			ChannelID: channelID,
			UserID:    userID,
			Username:  username,
		},
	})
}

// Stop, girişi düşürür ve typing:stop yayar. Giriş yoksa no-op.
func (t *TypingTracker) Stop(channelID, userID string) {
	key := typingKey{channelID, userID}

	t.mu.Lock()
	e, ok := t.entries[key]
	if ok {
		delete(t.entries, key)
	}
	t.mu.Unlock()

	if !ok {
		return
	}

	t.hub.EmitToRoom(ChannelKey(channelID), Event{
		Op: OpTypingStopped,
		Data: TypingBroadcast{
			ChannelID: channelID,
			UserID:    userID,
			Username:  e.username,
		},
	})
}

// StopAll, kullanıcının TÜM aktif typing girişlerini düşürür.
// Disconnect cleanup'ta çağrılır.
func (t *TypingTracker) StopAll(userID string) {
	t.mu.Lock()
	var expired []typingKey
	for key := range t.entries {
		if key.userID == userID {
			expired = append(expired, key)
		}
	}
	t.mu.Unlock()

	for _, key := range expired {
		t.Stop(key.channelID, key.userID)
	}
}

// Close, tarayıcı goroutine'ini durdurur.
func (t *TypingTracker) Close() {
	close(t.stop)
}

// sweepLoop, süresi dolan girişleri periyodik olarak düşürür.
func (t *TypingTracker) sweepLoop() {
	ticker := time.NewTicker(typingSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.sweep()
		case <-t.stop:
			return
		}
	}
}

func (t *TypingTracker) sweep() {
	now := time.Now()

	t.mu.Lock()
	var expired []typingKey
	for key, e := range t.entries {
		if now.After(e.expiresAt) {
			expired = append(expired, key)
		}
	}
	t.mu.Unlock()

	for _, key := range expired {
		t.Stop(key.channelID, key.userID)
	}
}
