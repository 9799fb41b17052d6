package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"Bazaar/models"
	"Bazaar/pkg/apperror"
	"Bazaar/pkg/cache"
	"Bazaar/pkg/database"
	"Bazaar/pkg/repository"
)

type published struct {
	userID  string
	event   string
	payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) Publish(userID, event string, payload any) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{userID: userID, event: event, payload: payload})
	return 1
}

func (p *fakePublisher) recipients() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.userID)
	}
	return out
}

type harness struct {
	db      *gorm.DB
	svc     *ChatService
	pub     *fakePublisher
	buyer   models.User
	seller  models.User
	other   models.User
	product models.Product
	clock   time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.Open("sqlite", database.MemoryDSN(uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	h := &harness{
		db:     db,
		pub:    &fakePublisher{},
		buyer:  models.User{ID: uuid.NewString(), Name: "Ada", Email: "ada@example.com", ProfileImage: "https://img/ada.png"},
		seller: models.User{ID: uuid.NewString(), Name: "Sol", Email: "sol@example.com"},
		other:  models.User{ID: uuid.NewString(), Name: "Eve", Email: "eve@example.com"},
		clock:  time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	for _, u := range []*models.User{&h.buyer, &h.seller, &h.other} {
		require.NoError(t, db.Create(u).Error)
	}
	h.product = models.Product{ID: uuid.NewString(), Name: "Bike", Image: "https://img/bike.png", SellerID: h.seller.ID}
	require.NoError(t, db.Create(&h.product).Error)

	h.svc = NewChatService(repository.New(db), h.pub, cache.New(10), time.Minute, nil)
	var clockMu sync.Mutex
	h.svc.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		h.clock = h.clock.Add(time.Second)
		return h.clock
	}
	return h
}

func (h *harness) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(model).Count(&n).Error)
	return n
}

func TestResolveConversationIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, created, err := h.svc.ResolveConversation(ctx, h.buyer.ID, h.product.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, []string{h.buyer.ID, h.seller.ID}, first.ParticipantIDs())
	assert.Equal(t, models.ConversationActive, first.Status)

	second, created, err := h.svc.ResolveConversation(ctx, h.buyer.ID, h.product.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.LastActivityAt.Equal(second.LastActivityAt), "lookup must not touch last activity")
	assert.EqualValues(t, 1, h.count(t, &models.Conversation{}))
}

func TestResolveConversationValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, _, err := h.svc.ResolveConversation(ctx, h.buyer.ID, "  ")
	assert.Equal(t, apperror.KindInvalidInput, apperror.KindOf(err))

	_, _, err = h.svc.ResolveConversation(ctx, h.buyer.ID, uuid.NewString())
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	_, _, err = h.svc.ResolveConversation(ctx, h.seller.ID, h.product.ID)
	assert.Equal(t, apperror.KindInvalidInput, apperror.KindOf(err))

	assert.EqualValues(t, 0, h.count(t, &models.Conversation{}))
}

func TestResolveConversationUsesProductCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, _, err := h.svc.ResolveConversation(ctx, h.buyer.ID, h.product.ID)
	require.NoError(t, err)

	v, ok := h.svc.products.Get(productCacheKey(h.product.ID))
	require.True(t, ok)
	assert.Equal(t, h.seller.ID, v.(*models.Product).SellerID)
}

func TestResolveConversationConcurrent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const n = 8
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, _, err := h.svc.ResolveConversation(ctx, h.buyer.ID, h.product.ID)
			errs[i] = err
			if err == nil {
				ids[i] = conv.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.EqualValues(t, 1, h.count(t, &models.Conversation{}))
}

func TestSendMessagePersistsAndFansOut(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv, _, err := h.svc.ResolveConversation(ctx, h.buyer.ID, h.product.ID)
	require.NoError(t, err)

	msg, err := h.svc.SendMessage(ctx, h.buyer.ID, conv.ID, "Is it still available?")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, msg.ConversationID)
	assert.False(t, msg.ReadStatus)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "Ada", msg.Sender.Name)
	assert.Equal(t, "https://img/ada.png", msg.Sender.ProfileImage)

	assert.ElementsMatch(t, []string{h.buyer.ID, h.seller.ID}, h.pub.recipients())
	for _, e := range h.pub.events {
		assert.Equal(t, EventNewMessage, e.event)
		payload := e.payload.(NewMessageEvent)
		assert.Equal(t, conv.ID, payload.ConversationID)
		assert.Equal(t, msg.ID, payload.Message.ID)
	}

	stored, err := repository.New(h.db).FindConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastActivityAt.Equal(msg.CreatedAt))
	assert.True(t, stored.LastActivityAt.After(conv.LastActivityAt))
}

func TestSendMessageValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv, _, err := h.svc.ResolveConversation(ctx, h.buyer.ID, h.product.ID)
	require.NoError(t, err)

	cases := []struct {
		name           string
		sender         string
		conversationID string
		content        string
		kind           apperror.Kind
	}{
		{"blank content", h.buyer.ID, conv.ID, "   \n\t", apperror.KindInvalidInput},
		{"blank conversation", h.buyer.ID, "", "hello", apperror.KindInvalidInput},
		{"too long", h.buyer.ID, conv.ID, strings.Repeat("x", models.MaxMessageLength+1), apperror.KindInvalidInput},
		{"unknown conversation", h.buyer.ID, uuid.NewString(), "hello", apperror.KindNotFound},
		{"not a participant", h.other.ID, conv.ID, "hello", apperror.KindForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.SendMessage(ctx, tc.sender, tc.conversationID, tc.content)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperror.KindOf(err))
		})
	}

	assert.EqualValues(t, 0, h.count(t, &models.Message{}))
	assert.Empty(t, h.pub.recipients())

	// exactly at the limit is fine
	_, err = h.svc.SendMessage(ctx, h.buyer.ID, conv.ID, strings.Repeat("é", models.MaxMessageLength))
	require.NoError(t, err)
}

func TestListMessagesOrderedAndGuarded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv, _, err := h.svc.ResolveConversation(ctx, h.buyer.ID, h.product.ID)
	require.NoError(t, err)

	for _, m := range []struct{ from, text string }{
		{h.buyer.ID, "hi"},
		{h.seller.ID, "hello"},
		{h.buyer.ID, "price?"},
	} {
		_, err := h.svc.SendMessage(ctx, m.from, conv.ID, m.text)
		require.NoError(t, err)
	}

	msgs, err := h.svc.ListMessages(ctx, h.seller.ID, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, "hello", msgs[1].Content)
	assert.Equal(t, "price?", msgs[2].Content)
	assert.Equal(t, "Sol", msgs[1].Sender.Name)

	again, err := h.svc.ListMessages(ctx, h.buyer.ID, conv.ID)
	require.NoError(t, err)
	for i := range msgs {
		assert.Equal(t, msgs[i].ID, again[i].ID)
	}

	_, err = h.svc.ListMessages(ctx, h.other.ID, conv.ID)
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))
	_, err = h.svc.ListMessages(ctx, h.buyer.ID, uuid.NewString())
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestListConversationsSortedWithOtherUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	second := models.Product{ID: uuid.NewString(), Name: "Helmet", SellerID: h.seller.ID}
	require.NoError(t, h.db.Create(&second).Error)

	bike, _, err := h.svc.ResolveConversation(ctx, h.buyer.ID, h.product.ID)
	require.NoError(t, err)
	helmet, _, err := h.svc.ResolveConversation(ctx, h.buyer.ID, second.ID)
	require.NoError(t, err)

	// activity on the older thread moves it to the top
	_, err = h.svc.SendMessage(ctx, h.seller.ID, bike.ID, "ping")
	require.NoError(t, err)

	convs, err := h.svc.ListConversations(ctx, h.buyer.ID)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, bike.ID, convs[0].ID)
	assert.Equal(t, helmet.ID, convs[1].ID)
	require.NotNil(t, convs[0].OtherUser)
	assert.Equal(t, h.seller.ID, convs[0].OtherUser.ID)
	assert.Equal(t, "Sol", convs[0].OtherUser.Name)
	assert.Equal(t, "Bike", convs[0].Product.Name)

	sellerView, err := h.svc.ListConversations(ctx, h.seller.ID)
	require.NoError(t, err)
	require.Len(t, sellerView, 2)
	assert.Equal(t, h.buyer.ID, sellerView[0].OtherUser.ID)

	none, err := h.svc.ListConversations(ctx, h.other.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FindProduct(ctx context.Context, id string) (*models.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Product)
	return p, args.Error(1)
}

func (m *mockStore) FindConversation(ctx context.Context, id string) (*models.Conversation, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*models.Conversation)
	return c, args.Error(1)
}

func (m *mockStore) FindConversationByKey(ctx context.Context, productID, key string) (*models.Conversation, error) {
	args := m.Called(ctx, productID, key)
	c, _ := args.Get(0).(*models.Conversation)
	return c, args.Error(1)
}

func (m *mockStore) CreateConversation(ctx context.Context, c *models.Conversation) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockStore) CreateMessage(ctx context.Context, msg *models.Message, at time.Time) error {
	return m.Called(ctx, msg, at).Error(0)
}

func (m *mockStore) FindMessage(ctx context.Context, id string) (*models.Message, error) {
	args := m.Called(ctx, id)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *mockStore) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	args := m.Called(ctx, conversationID)
	msgs, _ := args.Get(0).([]models.Message)
	return msgs, args.Error(1)
}

func (m *mockStore) ListConversations(ctx context.Context, userID string, status models.ConversationStatus) ([]models.Conversation, error) {
	args := m.Called(ctx, userID, status)
	convs, _ := args.Get(0).([]models.Conversation)
	return convs, args.Error(1)
}

func TestSendMessageStoreFailureSkipsFanOut(t *testing.T) {
	store := &mockStore{}
	pub := &fakePublisher{}
	svc := NewChatService(store, pub, nil, 0, nil)

	conv := &models.Conversation{ID: "c1", Participants: []models.ConversationParticipant{{UserID: "u1"}, {UserID: "u2", Position: 1}}}
	store.On("FindConversation", mock.Anything, "c1").Return(conv, nil)
	store.On("CreateMessage", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full"))

	_, err := svc.SendMessage(context.Background(), "u1", "c1", "hello")
	require.Error(t, err)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "something went wrong", appErr.Message)
	assert.Empty(t, pub.recipients())
	store.AssertNotCalled(t, "FindMessage", mock.Anything, mock.Anything)
}

func TestSendMessageReturnsStoredMessageWhenReloadFails(t *testing.T) {
	store := &mockStore{}
	pub := &fakePublisher{}
	svc := NewChatService(store, pub, nil, 0, nil)

	conv := &models.Conversation{ID: "c1", Participants: []models.ConversationParticipant{{UserID: "u1"}, {UserID: "u2", Position: 1}}}
	store.On("FindConversation", mock.Anything, "c1").Return(conv, nil)
	store.On("CreateMessage", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.On("FindMessage", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

	msg, err := svc.SendMessage(context.Background(), "u1", "c1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "u1", msg.SenderID)
	assert.ElementsMatch(t, []string{"u1", "u2"}, pub.recipients())
}

func TestResolveConversationReturnsConcurrentWinner(t *testing.T) {
	store := &mockStore{}
	svc := NewChatService(store, &fakePublisher{}, nil, 0, nil)

	product := &models.Product{ID: "p1", SellerID: "seller"}
	winner := &models.Conversation{ID: "winner"}
	key := models.ParticipantKey("buyer", "seller")
	store.On("FindProduct", mock.Anything, "p1").Return(product, nil)
	store.On("FindConversationByKey", mock.Anything, "p1", key).Return(nil, repository.ErrNotFound).Once()
	store.On("CreateConversation", mock.Anything, mock.Anything).Return(gorm.ErrDuplicatedKey)
	store.On("FindConversationByKey", mock.Anything, "p1", key).Return(winner, nil).Once()

	conv, created, err := svc.ResolveConversation(context.Background(), "buyer", "p1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "winner", conv.ID)
	store.AssertExpectations(t)
}
