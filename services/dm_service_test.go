package services

import (
	"context"
	"testing"

	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
	"github.com/benerman/nexus/repository"
	"github.com/benerman/nexus/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── In-memory fake'ler (DM akışı için stateful) ───

type memDMRepo struct {
	repository.DMRepository
	participants map[string][]string
	hidden       map[string]map[string]bool
}

func newMemDMRepo() *memDMRepo {
	return &memDMRepo{
		participants: make(map[string][]string),
		hidden:       make(map[string]map[string]bool),
	}
}

func (m *memDMRepo) AddParticipant(ctx context.Context, channelID, userID string) error {
	for _, id := range m.participants[channelID] {
		if id == userID {
			return nil
		}
	}
	m.participants[channelID] = append(m.participants[channelID], userID)
	return nil
}

func (m *memDMRepo) ListParticipants(ctx context.Context, channelID string) ([]string, error) {
	return m.participants[channelID], nil
}

func (m *memDMRepo) IsParticipant(ctx context.Context, channelID, userID string) (bool, error) {
	for _, id := range m.participants[channelID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memDMRepo) FindDirectChannel(ctx context.Context, a, b string) (*models.Channel, error) {
	return nil, pkg.ErrNotFound
}

func (m *memDMRepo) SetHidden(ctx context.Context, channelID, userID string, hidden bool) error {
	if m.hidden[channelID] == nil {
		m.hidden[channelID] = make(map[string]bool)
	}
	m.hidden[channelID][userID] = hidden
	return nil
}

func (m *memDMRepo) GetParticipantFlags(ctx context.Context, channelID, userID string) (*models.DMParticipant, error) {
	return &models.DMParticipant{ChannelID: channelID, UserID: userID}, nil
}

type memChannelRepo struct {
	repository.ChannelRepository
	channels map[string]*models.Channel
	nextID   int
}

func (m *memChannelRepo) Create(ctx context.Context, c *models.Channel) error {
	m.nextID++
	c.ID = "ch" + string(rune('0'+m.nextID))
	stored := *c
	m.channels[c.ID] = &stored
	return nil
}

func (m *memChannelRepo) GetByID(ctx context.Context, id string) (*models.Channel, error) {
	if c, ok := m.channels[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, pkg.ErrNotFound
}

func (m *memChannelRepo) SetRequestState(ctx context.Context, channelID string, state models.DMRequestState) error {
	if c, ok := m.channels[channelID]; ok {
		c.RequestState = &state
		return nil
	}
	return pkg.ErrNotFound
}

type memServerRepo struct {
	repository.ServerRepository
}

func (m *memServerRepo) GetPersonalServer(ctx context.Context, ownerID string) (*models.Server, error) {
	return &models.Server{ID: "personal-" + ownerID, OwnerID: ownerID, IsPersonal: true}, nil
}

type memUserRepo struct {
	repository.UserRepository
	users map[string]*models.User
}

func (m *memUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, pkg.ErrNotFound
}

func (m *memUserRepo) GetByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

type memFriendRepo struct {
	repository.FriendshipRepository
	friends map[[2]string]bool
}

func (m *memFriendRepo) AreFriends(ctx context.Context, a, b string) (bool, error) {
	return m.friends[[2]string{a, b}] || m.friends[[2]string{b, a}], nil
}

type memMessageRepo struct {
	repository.MessageRepository
}

func (m *memMessageRepo) GetLast(ctx context.Context, channelID string) (*models.Message, error) {
	return nil, pkg.ErrNotFound
}

func (m *memMessageRepo) CountAfter(ctx context.Context, channelID, afterID string) (int, error) {
	return 0, nil
}

type memReadStateRepo struct {
	repository.ReadStateRepository
}

func (m *memReadStateRepo) GetCursor(ctx context.Context, userID, channelID string) (string, error) {
	return "", nil
}

func dmFixture(t *testing.T) (DMService, *memChannelRepo, *fakeBlockRepo, *memFriendRepo, *fakeHub) {
	t.Helper()

	channels := &memChannelRepo{channels: make(map[string]*models.Channel)}
	blocks := &fakeBlockRepo{blockedPairs: map[[2]string]bool{}}
	friends := &memFriendRepo{friends: map[[2]string]bool{}}
	users := &memUserRepo{users: map[string]*models.User{
		"alice": {ID: "alice", Username: "alice"},
		"bob":   {ID: "bob", Username: "bob"},
	}}
	hub := &fakeHub{}

	svc := NewDMService(newMemDMRepo(), channels, &memServerRepo{}, users,
		friends, blocks, &memMessageRepo{}, &memReadStateRepo{}, hub)
	return svc, channels, blocks, friends, hub
}

// ─── Testler ───

func TestCreateDMBlockedBothDirections(t *testing.T) {
	ctx := context.Background()

	// bob → alice engeli: her iki yönde de dm:create reddedilir
	svc, _, blocks, _, _ := dmFixture(t)
	blocks.blockedPairs[[2]string{"bob", "alice"}] = true

	_, err := svc.CreateDM(ctx, "alice", &models.CreateDMRequest{TargetUserID: "bob"})
	assert.ErrorIs(t, err, pkg.ErrBlocked)

	_, err = svc.CreateDM(ctx, "bob", &models.CreateDMRequest{TargetUserID: "alice"})
	assert.ErrorIs(t, err, pkg.ErrBlocked)
}

func TestCreateDMBetweenNonFriendsIsPendingRequest(t *testing.T) {
	ctx := context.Background()
	svc, channels, _, _, hub := dmFixture(t)

	view, err := svc.CreateDM(ctx, "bob", &models.CreateDMRequest{TargetUserID: "alice"})
	require.NoError(t, err)

	// Initiator için normal liste; kanal pending durumda
	assert.False(t, view.IsRequest, "initiator kendi isteğini requests panesinde görmez")
	require.NotNil(t, view.Channel.RequestState)
	assert.Equal(t, models.DMRequestPending, *view.Channel.RequestState)

	// Her iki tarafa dm:created gitti
	targets := hub.targets(ws.OpDMCreated)
	assert.Contains(t, targets, "user:alice")
	assert.Contains(t, targets, "user:bob")

	// Hedef accept edince kanal accepted durumuna geçer
	require.NoError(t, svc.AcceptRequest(ctx, "alice", view.Channel.ID))
	stored, err := channels.GetByID(ctx, view.Channel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DMRequestAccepted, *stored.RequestState)
}

func TestCreateDMBetweenFriendsIsAccepted(t *testing.T) {
	ctx := context.Background()
	svc, _, _, friends, _ := dmFixture(t)
	friends.friends[[2]string{"alice", "bob"}] = true

	view, err := svc.CreateDM(ctx, "bob", &models.CreateDMRequest{TargetUserID: "alice"})
	require.NoError(t, err)
	require.NotNil(t, view.Channel.RequestState)
	assert.Equal(t, models.DMRequestAccepted, *view.Channel.RequestState)
}

func TestAcceptRequestOnlyRecipient(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _, _ := dmFixture(t)

	view, err := svc.CreateDM(ctx, "bob", &models.CreateDMRequest{TargetUserID: "alice"})
	require.NoError(t, err)

	// Initiator kendi isteğini accept edemez
	err = svc.AcceptRequest(ctx, "bob", view.Channel.ID)
	assert.ErrorIs(t, err, pkg.ErrForbidden)
}

func TestCreateDMWithSelfRejected(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _, _ := dmFixture(t)

	_, err := svc.CreateDM(ctx, "alice", &models.CreateDMRequest{TargetUserID: "alice"})
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
}
