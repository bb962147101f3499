// Package services — VoiceService: ses odaları ve WebRTC signaling relay'i.
//
// Sorumluluklar:
// 1. In-memory voice room yönetimi (kim hangi kanalda, socket bazlı)
// 2. Perfect-negotiation relay: offer/answer/ICE opak forward edilir —
//    server SDP içeriğine hiç bakmaz, medya düzlemi server'a uğramaz
// 3. Ekran paylaşımı opt-in viewer listesi (oda başına tek sharer)
// 4. ICE config hand-off (STUN varsayılan, TURN yapılandırıldıysa eklenir)
// 5. DM aramaları: çalma bildirimi + decline + otomatik call-end
//
// Neden in-memory (DB değil)?
// Voice state geçicidir — sunucu yeniden başlatıldığında tüm WS bağlantıları
// da düşer; client yeni bağlantıda odaya açıkça yeniden katılır.
//
// Kilit düzeni: service mutex'i sadece oda lookup'ı için, oda mutex'i üyelik
// mutasyonları için kısa süreli tutulur. Socket yazımı HİÇBİR kilit altında
// yapılmaz — event'ler kilit bırakıldıktan sonra yayınlanır.
//
// Signaling yetki hataları SESSİZ drop'tur: hedef aynı odada değilse hiçbir
// yanıt dönmez (oda topolojisi sızdırılmaz).
package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/benerman/nexus/config"
	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
	"github.com/benerman/nexus/repository"
	"github.com/benerman/nexus/ws"
)

// voiceSweepInterval — kapanmış socket artıklarının tarama periyodu.
// Disconnect hook birincildir; bu tarama emniyet kemeridir.
const voiceSweepInterval = 5 * time.Second

// VoiceService, ses operasyonları için public interface.
type VoiceService interface {
	Join(ctx context.Context, socketID, userID, channelID string) error
	Leave(socketID string)
	SetMute(socketID string, isMuted bool)
	SetDeafen(socketID string, isDeafened bool)

	// Relay, signaling payload'ını hedefe forward eder.
	// Gönderen ve hedef aynı odada değilse sessizce düşürülür.
	Relay(senderSocketID, op string, data ws.SignalData)

	ScreenStart(ctx context.Context, socketID, channelID string) error
	ScreenStop(socketID string)
	ScreenWatch(viewerSocketID, sharerSocketID string)
	ScreenUnwatch(viewerSocketID, sharerSocketID string)

	// ICEConfig, ICE server listesini döner. Liste her sunucu için aynıdır
	// (yapılandırılmış STUN girdileri ardından global TURN girdileri);
	// serverID kullanılmaz, sunucu başına TURN ayarı yoktur.
	ICEConfig(ctx context.Context, serverID string) []config.ICEServer

	// DM aramaları
	CallStart(ctx context.Context, userID, channelID string) error
	CallDecline(ctx context.Context, userID, channelID string) error
	CallEnd(ctx context.Context, userID, channelID string) error

	// Rooms, tüm aktif odaların snapshot'ını döner (init payload'ı için).
	Rooms() []models.VoiceRoomSnapshot

	// HandleDisconnect, socket koptuğunda dispatcher hook'undan çağrılır.
	HandleDisconnect(socketID string)

	// RunSweeper, kapalı socket artıklarını periyodik temizler (goroutine).
	RunSweeper(stop <-chan struct{})
}

// voicePeerState, oda içindeki tek bir socket'in durumu + viewer seti.
type voicePeerState struct {
	models.VoicePeer
	watchers map[string]bool // viewer socket ID'leri (screen share)
}

// voiceRoom, tek bir ses kanalının canlı odası.
type voiceRoom struct {
	mu sync.Mutex

	channelID      string
	serverID       string // sunucu kanalında dolu; DM odasında personal server
	isDM           bool
	peers          map[string]*voicePeerState // socketID → state
	order          []string                   // katılım sırası (roster stabil)
	screenSharerID string                     // socket ID; "" = paylaşım yok
	callerUserID   string                     // DM araması başlatan (call-end kuralı)
}

type voiceService struct {
	mu         sync.RWMutex
	rooms      map[string]*voiceRoom // channelID → room
	socketRoom map[string]string     // socketID → channelID

	// pendingCallers: dm:call-start geldiğinde arayan henüz odaya girmemiş
	// olabilir — caller kaydı oda kurulduğunda buradan devralınır.
	pendingCallers map[string]string // channelID → userID

	channelRepo repository.ChannelRepository
	dmRepo      repository.DMRepository
	blockRepo   repository.BlockRepository
	userRepo    repository.UserRepository
	perms       PermissionService
	voiceCfg    config.VoiceConfig
	hub         ws.Broadcaster
}

// NewVoiceService, constructor.
func NewVoiceService(
	channelRepo repository.ChannelRepository,
	dmRepo repository.DMRepository,
	blockRepo repository.BlockRepository,
	userRepo repository.UserRepository,
	perms PermissionService,
	voiceCfg config.VoiceConfig,
	hub ws.Broadcaster,
) VoiceService {
	return &voiceService{
		rooms:          make(map[string]*voiceRoom),
		socketRoom:     make(map[string]string),
		pendingCallers: make(map[string]string),
		channelRepo: channelRepo,
		dmRepo:      dmRepo,
		blockRepo:   blockRepo,
		userRepo:    userRepo,
		perms:       perms,
		voiceCfg:    voiceCfg,
		hub:         hub,
	}
}

func (s *voiceService) Join(ctx context.Context, socketID, userID, channelID string) error {
	channel, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return err
	}

	// Yetki: sunucu kanalında connectVoice; DM'de katılımcılık.
	if channel.IsDMKind() {
		isParticipant, err := s.dmRepo.IsParticipant(ctx, channelID, userID)
		if err != nil {
			return err
		}
		if !isParticipant {
			return fmt.Errorf("%w: not a participant", pkg.ErrForbidden)
		}
	} else {
		if channel.Type != models.ChannelTypeVoice {
			return fmt.Errorf("%w: not a voice channel", pkg.ErrBadRequest)
		}
		if err := s.perms.RequireInChannel(ctx, userID, channel, models.PermConnectVoice); err != nil {
			return err
		}
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	// Başka bir odadaysa önce oradan çıkar.
	s.Leave(socketID)

	serverID := ""
	if channel.ServerID != nil {
		serverID = *channel.ServerID
	}

	s.mu.Lock()
	room, ok := s.rooms[channelID]
	if !ok {
		room = &voiceRoom{
			channelID: channelID,
			serverID:  serverID,
			isDM:      channel.IsDMKind(),
			peers:     make(map[string]*voicePeerState),
		}
		// Bekleyen DM araması varsa caller kaydı odaya devralınır.
		if caller, pending := s.pendingCallers[channelID]; pending {
			room.callerUserID = caller
			delete(s.pendingCallers, channelID)
		}
		s.rooms[channelID] = room
	}
	s.socketRoom[socketID] = channelID
	s.mu.Unlock()

	room.mu.Lock()
	existingPeers := room.snapshotLocked()
	sharerID := room.screenSharerID
	room.peers[socketID] = &voicePeerState{
		VoicePeer: models.VoicePeer{
			SocketID: socketID,
			UserID:   userID,
			Username: user.Username,
			JoinedAt: time.Now().UTC(),
		},
		watchers: make(map[string]bool),
	}
	room.order = append(room.order, socketID)
	room.mu.Unlock()

	s.hub.JoinRoom(socketID, ws.VoiceKey(channelID))

	// Katılana mevcut roster — PeerConnection'ları o başlatır.
	s.hub.EmitToSocket(socketID, ws.Event{Op: ws.OpVoiceJoined, Data: map[string]any{
		"channel_id":       channelID,
		"peers":            existingPeers,
		"screen_sharer_id": sharerID,
	}})

	// Mevcut peer'lara yeni katılımcı bildirimi.
	for _, peer := range existingPeers {
		s.hub.EmitToSocket(peer.SocketID, ws.Event{Op: ws.OpPeerJoined, Data: map[string]string{
			"socket_id": socketID,
			"user_id":   userID,
			"username":  user.Username,
		}})
	}

	s.broadcastRoster(room)
	log.Printf("[voice] socket %s (user %s) joined channel %s", socketID, userID, channelID)
	return nil
}

func (s *voiceService) Leave(socketID string) {
	s.mu.Lock()
	channelID, ok := s.socketRoom[socketID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.socketRoom, socketID)
	room := s.rooms[channelID]
	s.mu.Unlock()

	if room == nil {
		return
	}

	room.mu.Lock()
	peer, exists := room.peers[socketID]
	if !exists {
		room.mu.Unlock()
		return
	}
	delete(room.peers, socketID)
	for i, id := range room.order {
		if id == socketID {
			room.order = append(room.order[:i], room.order[i+1:]...)
			break
		}
	}

	wasSharer := room.screenSharerID == socketID
	if wasSharer {
		room.screenSharerID = ""
	}

	remaining := make([]string, len(room.order))
	copy(remaining, room.order)
	empty := len(room.peers) == 0

	isDM := room.isDM
	callerUserID := room.callerUserID
	leaverUserID := peer.UserID
	calleesLeft := false
	for _, st := range room.peers {
		if st.UserID != callerUserID {
			calleesLeft = true
		}
	}
	room.mu.Unlock()

	s.hub.LeaveRoom(socketID, ws.VoiceKey(channelID))

	if wasSharer {
		s.hub.EmitToRoom(ws.VoiceKey(channelID), ws.Event{Op: ws.OpScreenStopped, Data: map[string]string{
			"socket_id": socketID,
		}})
	}

	for _, peerSocket := range remaining {
		s.hub.EmitToSocket(peerSocket, ws.Event{Op: ws.OpPeerLeft, Data: map[string]string{
			"socket_id": socketID,
		}})
	}

	// DM araması: caller ayrıldıysa veya son callee çıktıysa arama biter.
	if isDM && callerUserID != "" && (leaverUserID == callerUserID || !calleesLeft) {
		room.mu.Lock()
		room.callerUserID = ""
		room.mu.Unlock()
		s.emitToDMParticipants(channelID, ws.Event{Op: ws.OpDMCallEnded, Data: map[string]string{
			"channel_id": channelID,
		}})
	}

	if empty {
		// Son ayrılan odayı söker.
		s.mu.Lock()
		delete(s.rooms, channelID)
		s.mu.Unlock()
		log.Printf("[voice] room %s evicted (last peer left)", channelID)
	}

	s.broadcastRoster(room)
}

func (s *voiceService) SetMute(socketID string, isMuted bool) {
	s.updatePeer(socketID, func(peer *voicePeerState) {
		peer.IsMuted = isMuted
	}, ws.OpPeerMuteChanged)
}

func (s *voiceService) SetDeafen(socketID string, isDeafened bool) {
	s.updatePeer(socketID, func(peer *voicePeerState) {
		peer.IsDeafened = isDeafened
		if isDeafened {
			// Sağırlaştırma susturmayı da zorlar.
			peer.IsMuted = true
		}
	}, ws.OpPeerDeafenChanged)
}

// updatePeer, peer state'ini değiştirir ve odaya broadcast eder.
// Advisory niteliklidir — gerçek ses kesimi client tarafındadır.
func (s *voiceService) updatePeer(socketID string, mutate func(*voicePeerState), op string) {
	room := s.roomOf(socketID)
	if room == nil {
		return
	}

	room.mu.Lock()
	peer, ok := room.peers[socketID]
	if !ok {
		room.mu.Unlock()
		return
	}
	mutate(peer)
	snapshot := peer.VoicePeer
	room.mu.Unlock()

	s.hub.EmitToRoom(ws.VoiceKey(room.channelID), ws.Event{Op: op, Data: snapshot})
	s.broadcastRoster(room)
}

func (s *voiceService) Relay(senderSocketID, op string, data ws.SignalData) {
	if data.TargetID == "" || data.TargetID == senderSocketID {
		return
	}

	// Gönderen ve hedef aynı odada olmalı — değilse sessiz drop.
	room := s.roomOf(senderSocketID)
	if room == nil {
		return
	}
	room.mu.Lock()
	_, targetInRoom := room.peers[data.TargetID]
	room.mu.Unlock()
	if !targetInRoom {
		return
	}

	data.From = senderSocketID
	s.hub.EmitToSocket(data.TargetID, ws.Event{Op: op, Data: data})
}

func (s *voiceService) ScreenStart(ctx context.Context, socketID, channelID string) error {
	room := s.roomOf(socketID)
	if room == nil || room.channelID != channelID {
		return fmt.Errorf("%w: not in that voice channel", pkg.ErrBadRequest)
	}

	room.mu.Lock()
	peer, ok := room.peers[socketID]
	if !ok {
		room.mu.Unlock()
		return fmt.Errorf("%w: not in that voice channel", pkg.ErrBadRequest)
	}
	userID := peer.UserID
	room.mu.Unlock()

	// Sunucu kanalında screenShare yetkisi aranır; DM'de katılım yeter.
	if !room.isDM {
		channel, err := s.channelRepo.GetByID(ctx, channelID)
		if err != nil {
			return err
		}
		if err := s.perms.RequireInChannel(ctx, userID, channel, models.PermScreenShare); err != nil {
			return err
		}
	}

	room.mu.Lock()
	if room.screenSharerID != "" && room.screenSharerID != socketID {
		room.mu.Unlock()
		return fmt.Errorf("%w: someone is already sharing", pkg.ErrAlreadyExists)
	}
	room.screenSharerID = socketID
	peer.ScreenSharing = true
	room.mu.Unlock()

	s.hub.EmitToRoom(ws.VoiceKey(channelID), ws.Event{Op: ws.OpScreenStarted, Data: map[string]string{
		"socket_id": socketID,
	}})
	s.broadcastRoster(room)
	return nil
}

func (s *voiceService) ScreenStop(socketID string) {
	room := s.roomOf(socketID)
	if room == nil {
		return
	}

	room.mu.Lock()
	if room.screenSharerID != socketID {
		room.mu.Unlock()
		return
	}
	room.screenSharerID = ""
	if peer, ok := room.peers[socketID]; ok {
		peer.ScreenSharing = false
		peer.watchers = make(map[string]bool)
	}
	room.mu.Unlock()

	s.hub.EmitToRoom(ws.VoiceKey(room.channelID), ws.Event{Op: ws.OpScreenStopped, Data: map[string]string{
		"socket_id": socketID,
	}})
	s.broadcastRoster(room)
}

func (s *voiceService) ScreenWatch(viewerSocketID, sharerSocketID string) {
	room := s.roomOf(viewerSocketID)
	if room == nil {
		return
	}

	room.mu.Lock()
	sharer, ok := room.peers[sharerSocketID]
	if !ok || room.screenSharerID != sharerSocketID {
		room.mu.Unlock()
		return // Sessiz drop — paylaşım yok veya yanlış hedef
	}
	sharer.watchers[viewerSocketID] = true
	room.mu.Unlock()

	// Sharer bu viewer için track ekleyip yeniden negotiate eder (client-driven).
	s.hub.EmitToSocket(sharerSocketID, ws.Event{Op: ws.OpScreenAddViewer, Data: map[string]string{
		"viewer_id": viewerSocketID,
	}})
}

func (s *voiceService) ScreenUnwatch(viewerSocketID, sharerSocketID string) {
	room := s.roomOf(viewerSocketID)
	if room == nil {
		return
	}

	room.mu.Lock()
	sharer, ok := room.peers[sharerSocketID]
	if !ok {
		room.mu.Unlock()
		return
	}
	delete(sharer.watchers, viewerSocketID)
	room.mu.Unlock()

	s.hub.EmitToSocket(sharerSocketID, ws.Event{Op: ws.OpScreenRemoveViewer, Data: map[string]string{
		"viewer_id": viewerSocketID,
	}})
}

func (s *voiceService) ICEConfig(ctx context.Context, serverID string) []config.ICEServer {
	// Yapılandırılmış STUN girdileri döner; global TURN girdileri varsa eklenir.
	// Sunucuya özel bir lookup yapılmaz, bu yüzden hata yolu da yoktur.
	servers := make([]config.ICEServer, 0, len(s.voiceCfg.STUNServers)+len(s.voiceCfg.TURNServers))
	servers = append(servers, s.voiceCfg.STUNServers...)
	servers = append(servers, s.voiceCfg.TURNServers...)
	return servers
}

func (s *voiceService) CallStart(ctx context.Context, userID, channelID string) error {
	channel, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return err
	}
	if !channel.IsDMKind() {
		return fmt.Errorf("%w: calls are only for DM channels", pkg.ErrBadRequest)
	}

	isParticipant, err := s.dmRepo.IsParticipant(ctx, channelID, userID)
	if err != nil {
		return err
	}
	if !isParticipant {
		return fmt.Errorf("%w: not a participant", pkg.ErrForbidden)
	}

	caller, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	// Caller kaydı call-end kuralı içindir: oda varsa doğrudan, yoksa
	// oda kurulduğunda devralınmak üzere pending listesine yazılır.
	s.mu.Lock()
	if room, ok := s.rooms[channelID]; ok {
		room.mu.Lock()
		room.callerUserID = userID
		room.mu.Unlock()
	} else {
		s.pendingCallers[channelID] = userID
	}
	s.mu.Unlock()

	participants, err := s.dmRepo.ListParticipants(ctx, channelID)
	if err != nil {
		return err
	}

	isGroup := channel.Type == models.ChannelTypeGroupDM
	for _, pid := range participants {
		if pid == userID {
			continue
		}
		// Engelli kullanıcıya çalma bildirimi gitmez.
		blocked, err := s.blockRepo.IsBlockedEither(ctx, userID, pid)
		if err != nil || blocked {
			continue
		}
		// DND sesi bastırır ama event yine teslim edilir — karar client'ındır.
		s.hub.EmitToUser(pid, ws.Event{Op: ws.OpDMCallIncoming, Data: map[string]any{
			"channel_id": channelID,
			"caller":     caller.ToPublic(),
			"is_group":   isGroup,
		}})
	}

	log.Printf("[voice] dm call started: user %s in channel %s", userID, channelID)
	return nil
}

func (s *voiceService) CallDecline(ctx context.Context, userID, channelID string) error {
	isParticipant, err := s.dmRepo.IsParticipant(ctx, channelID, userID)
	if err != nil {
		return err
	}
	if !isParticipant {
		return fmt.Errorf("%w: not a participant", pkg.ErrForbidden)
	}

	s.emitToDMParticipants(channelID, ws.Event{Op: ws.OpDMCallDeclined, Data: map[string]string{
		"channel_id": channelID,
		"user_id":    userID,
	}})
	return nil
}

func (s *voiceService) CallEnd(ctx context.Context, userID, channelID string) error {
	isParticipant, err := s.dmRepo.IsParticipant(ctx, channelID, userID)
	if err != nil {
		return err
	}
	if !isParticipant {
		return fmt.Errorf("%w: not a participant", pkg.ErrForbidden)
	}

	s.emitToDMParticipants(channelID, ws.Event{Op: ws.OpDMCallEnded, Data: map[string]string{
		"channel_id": channelID,
	}})
	return nil
}

func (s *voiceService) Rooms() []models.VoiceRoomSnapshot {
	s.mu.RLock()
	rooms := make([]*voiceRoom, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	s.mu.RUnlock()

	snapshots := make([]models.VoiceRoomSnapshot, 0, len(rooms))
	for _, room := range rooms {
		room.mu.Lock()
		snapshots = append(snapshots, models.VoiceRoomSnapshot{
			ChannelID:      room.channelID,
			Peers:          room.snapshotLocked(),
			ScreenSharerID: room.screenSharerID,
		})
		room.mu.Unlock()
	}
	return snapshots
}

func (s *voiceService) HandleDisconnect(socketID string) {
	s.Leave(socketID)
}

func (s *voiceService) RunSweeper(stop <-chan struct{}) {
	ticker := time.NewTicker(voiceSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepClosedSockets()
		case <-stop:
			return
		}
	}
}

// sweepClosedSockets, hub'da artık var olmayan socket'lerin oda kayıtlarını
// temizler. Disconnect hook birincil yoldur; bu tarama kaçanları yakalar.
func (s *voiceService) sweepClosedSockets() {
	s.mu.RLock()
	var stale []string
	for socketID := range s.socketRoom {
		if _, alive := s.hub.UserOfSocket(socketID); !alive {
			stale = append(stale, socketID)
		}
	}
	s.mu.RUnlock()

	for _, socketID := range stale {
		log.Printf("[voice] sweeping stale socket %s", socketID)
		s.Leave(socketID)
	}
}

// ─── Yardımcılar ───

// roomOf, socket'in odasını döner (nil = odada değil).
func (s *voiceService) roomOf(socketID string) *voiceRoom {
	s.mu.RLock()
	defer s.mu.RUnlock()
	channelID, ok := s.socketRoom[socketID]
	if !ok {
		return nil
	}
	return s.rooms[channelID]
}

// snapshotLocked, odanın peer listesini katılım sırasında döner.
// room.mu tutulurken çağrılmalıdır.
func (r *voiceRoom) snapshotLocked() []models.VoicePeer {
	peers := make([]models.VoicePeer, 0, len(r.order))
	for _, socketID := range r.order {
		if peer, ok := r.peers[socketID]; ok {
			peers = append(peers, peer.VoicePeer)
		}
	}
	return peers
}

// broadcastRoster, sidebar'lar için voice:channel:update yayar.
// Sunucu kanalında server room'una; DM'de katılımcıların user key'lerine.
func (s *voiceService) broadcastRoster(room *voiceRoom) {
	if room == nil {
		return
	}

	room.mu.Lock()
	snapshot := models.VoiceRoomSnapshot{
		ChannelID:      room.channelID,
		Peers:          room.snapshotLocked(),
		ScreenSharerID: room.screenSharerID,
	}
	isDM := room.isDM
	serverID := room.serverID
	channelID := room.channelID
	room.mu.Unlock()

	sort.SliceStable(snapshot.Peers, func(i, j int) bool {
		return snapshot.Peers[i].JoinedAt.Before(snapshot.Peers[j].JoinedAt)
	})

	event := ws.Event{Op: ws.OpVoiceChannelUpdate, Data: snapshot}
	if isDM {
		s.emitToDMParticipants(channelID, event)
		return
	}
	if serverID != "" {
		s.hub.EmitToRoom(ws.ServerKey(serverID), event)
	}
}

// emitToDMParticipants, DM kanalının tüm katılımcılarına yayar.
func (s *voiceService) emitToDMParticipants(channelID string, event ws.Event) {
	participants, err := s.dmRepo.ListParticipants(context.Background(), channelID)
	if err != nil {
		return
	}
	for _, pid := range participants {
		s.hub.EmitToUser(pid, event)
	}
}
