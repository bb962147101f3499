package services

import (
	"context"
	"sync"
	"testing"

	"github.com/benerman/nexus/config"
	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/repository"
	"github.com/benerman/nexus/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── Fake'ler ───
//
// Interface embedding trick'i: fake struct ilgili repository interface'ini
// gömer — kullanılmayan metotlar nil pointer üzerinden çağrılırsa test
// panic'ler, kullanılanlar override edilir.

type fakeHub struct {
	mu     sync.Mutex
	events []fakeEmit
}

type fakeEmit struct {
	target string
	op     string
	data   any
}

func (f *fakeHub) record(target string, e ws.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, fakeEmit{target: target, op: e.Op, data: e.Data})
}

func (f *fakeHub) EmitToRoom(key string, e ws.Event)                  { f.record("room:"+key, e) }
func (f *fakeHub) EmitToRoomExcept(key, exclude string, e ws.Event)   { f.record("room:"+key, e) }
func (f *fakeHub) EmitToUser(userID string, e ws.Event)               { f.record("user:"+userID, e) }
func (f *fakeHub) EmitToSocket(socketID string, e ws.Event)           { f.record("socket:"+socketID, e) }
func (f *fakeHub) RoomMembers(key string) []string                    { return nil }
func (f *fakeHub) SocketsOfUser(userID string) []string               { return nil }
func (f *fakeHub) UserOfSocket(socketID string) (string, bool)        { return "", true }
func (f *fakeHub) JoinRoom(socketID, key string)                      {}
func (f *fakeHub) LeaveRoom(socketID, key string)                     {}
func (f *fakeHub) IsUserOnline(userID string) bool                    { return true }
func (f *fakeHub) OnlineUserIDs() []string                            { return nil }
func (f *fakeHub) DisconnectUser(userID string)                       {}

func (f *fakeHub) targets(op string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		if e.op == op {
			out = append(out, e.target)
		}
	}
	return out
}

type fakeChannelRepo struct {
	repository.ChannelRepository
	channels map[string]*models.Channel
}

func (f *fakeChannelRepo) GetByID(ctx context.Context, id string) (*models.Channel, error) {
	if c, ok := f.channels[id]; ok {
		return c, nil
	}
	return nil, assert.AnError
}

type fakeDMRepo struct {
	repository.DMRepository
	participants map[string][]string // channelID → userIDs
}

func (f *fakeDMRepo) IsParticipant(ctx context.Context, channelID, userID string) (bool, error) {
	for _, id := range f.participants[channelID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDMRepo) ListParticipants(ctx context.Context, channelID string) ([]string, error) {
	return f.participants[channelID], nil
}

type fakeBlockRepo struct {
	repository.BlockRepository
	blockedPairs map[[2]string]bool
}

func (f *fakeBlockRepo) IsBlockedEither(ctx context.Context, a, b string) (bool, error) {
	return f.blockedPairs[[2]string{a, b}] || f.blockedPairs[[2]string{b, a}], nil
}

type fakeUserRepo struct {
	repository.UserRepository
	users map[string]*models.User
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, assert.AnError
}

type fakePerms struct {
	PermissionService
}

func (f *fakePerms) RequireInChannel(ctx context.Context, userID string, channel *models.Channel, perm models.Permission) error {
	return nil
}

// ─── Test kurulumu ───

func voiceFixture(t *testing.T) (VoiceService, *fakeHub) {
	t.Helper()

	serverID := "srv1"
	channels := &fakeChannelRepo{channels: map[string]*models.Channel{
		"v1": {ID: "v1", ServerID: &serverID, Type: models.ChannelTypeVoice},
		"d1": {ID: "d1", Type: models.ChannelTypeDM},
	}}
	dms := &fakeDMRepo{participants: map[string][]string{
		"d1": {"alice", "bob"},
	}}
	blocks := &fakeBlockRepo{blockedPairs: map[[2]string]bool{}}
	users := &fakeUserRepo{users: map[string]*models.User{
		"alice": {ID: "alice", Username: "alice"},
		"bob":   {ID: "bob", Username: "bob"},
		"carol": {ID: "carol", Username: "carol"},
	}}

	hub := &fakeHub{}
	svc := NewVoiceService(channels, dms, blocks, users, &fakePerms{}, config.VoiceConfig{
		STUNServers: []config.ICEServer{{URLs: "stun:stun.example.com:3478"}},
	}, hub)
	return svc, hub
}

func TestVoiceJoinAnnouncesPeers(t *testing.T) {
	svc, hub := voiceFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Join(ctx, "sockA", "alice", "v1"))
	require.NoError(t, svc.Join(ctx, "sockB", "bob", "v1"))

	// İlk katılan peer:joined almalı
	assert.Equal(t, []string{"socket:sockA"}, hub.targets(ws.OpPeerJoined))

	// Her iki katılan da voice:joined almalı
	assert.Equal(t, []string{"socket:sockA", "socket:sockB"}, hub.targets(ws.OpVoiceJoined))

	// Roster sunucu room'una yayınlanır
	assert.NotEmpty(t, hub.targets(ws.OpVoiceChannelUpdate))
}

func TestVoiceRelayRequiresSameRoom(t *testing.T) {
	svc, hub := voiceFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Join(ctx, "sockA", "alice", "v1"))
	require.NoError(t, svc.Join(ctx, "sockB", "bob", "v1"))

	// Aynı odada → iletilir, From set edilir
	svc.Relay("sockA", ws.OpWebRTCOffer, ws.SignalData{TargetID: "sockB", Offer: "sdp"})
	offers := hub.targets(ws.OpWebRTCOffer)
	require.Equal(t, []string{"socket:sockB"}, offers)

	// Odada olmayan hedef → sessiz drop
	svc.Relay("sockA", ws.OpWebRTCOffer, ws.SignalData{TargetID: "sockZ", Offer: "sdp"})
	assert.Len(t, hub.targets(ws.OpWebRTCOffer), 1)

	// Odada olmayan gönderen → sessiz drop
	svc.Relay("sockZ", ws.OpWebRTCOffer, ws.SignalData{TargetID: "sockA", Offer: "sdp"})
	assert.Len(t, hub.targets(ws.OpWebRTCOffer), 1)
}

func TestVoiceSingleScreenSharer(t *testing.T) {
	svc, hub := voiceFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Join(ctx, "sockA", "alice", "v1"))
	require.NoError(t, svc.Join(ctx, "sockB", "bob", "v1"))

	require.NoError(t, svc.ScreenStart(ctx, "sockA", "v1"))
	assert.Error(t, svc.ScreenStart(ctx, "sockB", "v1"), "oda başına tek sharer")

	// Viewer opt-in: add-viewer sadece sharer'a gider
	svc.ScreenWatch("sockB", "sockA")
	assert.Equal(t, []string{"socket:sockA"}, hub.targets(ws.OpScreenAddViewer))

	// Sharer ayrılınca screen:stopped yayınlanır ve diğeri paylaşabilir
	svc.Leave("sockA")
	assert.NotEmpty(t, hub.targets(ws.OpScreenStopped))
	require.NoError(t, svc.ScreenStart(ctx, "sockB", "v1"))
}

func TestVoiceLastLeaverEvictsRoom(t *testing.T) {
	svc, _ := voiceFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Join(ctx, "sockA", "alice", "v1"))
	require.NoError(t, svc.Join(ctx, "sockB", "bob", "v1"))
	require.Len(t, svc.Rooms(), 1)

	svc.Leave("sockA")
	require.Len(t, svc.Rooms(), 1)

	svc.Leave("sockB")
	assert.Empty(t, svc.Rooms(), "son ayrılan odayı söker")

	// Tekrarlayan Leave no-op
	svc.Leave("sockB")
}

func TestVoiceDMCallFlow(t *testing.T) {
	svc, hub := voiceFixture(t)
	ctx := context.Background()

	// Arama bildirimi sadece diğer katılımcılara gider
	require.NoError(t, svc.CallStart(ctx, "alice", "d1"))
	assert.Equal(t, []string{"user:bob"}, hub.targets(ws.OpDMCallIncoming))

	// Katılımcı olmayan arama başlatamaz
	assert.Error(t, svc.CallStart(ctx, "carol", "d1"))

	// Caller + callee odaya girer; caller ayrılınca call-end yayınlanır
	require.NoError(t, svc.Join(ctx, "sockA", "alice", "d1"))
	require.NoError(t, svc.Join(ctx, "sockB", "bob", "d1"))
	svc.Leave("sockA")

	ended := hub.targets(ws.OpDMCallEnded)
	assert.Contains(t, ended, "user:alice")
	assert.Contains(t, ended, "user:bob")
}

func TestVoiceCallBlockedUserExcluded(t *testing.T) {
	svc, hub := voiceFixture(t)
	ctx := context.Background()

	// bob alice'i engellemiş — çalma bildirimi gitmez
	blockedSvc := svc.(*voiceService)
	blockedSvc.blockRepo.(*fakeBlockRepo).blockedPairs[[2]string{"bob", "alice"}] = true

	require.NoError(t, svc.CallStart(ctx, "alice", "d1"))
	assert.Empty(t, hub.targets(ws.OpDMCallIncoming))
}

func TestVoiceMuteDeafenBroadcast(t *testing.T) {
	svc, hub := voiceFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Join(ctx, "sockA", "alice", "v1"))

	svc.SetMute("sockA", true)
	assert.NotEmpty(t, hub.targets(ws.OpPeerMuteChanged))

	svc.SetDeafen("sockA", true)
	require.NotEmpty(t, hub.targets(ws.OpPeerDeafenChanged))

	// Deafen mute'u zorlar
	rooms := svc.Rooms()
	require.Len(t, rooms, 1)
	require.Len(t, rooms[0].Peers, 1)
	assert.True(t, rooms[0].Peers[0].IsMuted)
	assert.True(t, rooms[0].Peers[0].IsDeafened)
}
