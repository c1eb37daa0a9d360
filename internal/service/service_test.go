package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amarket/chat-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockConversationStore struct{ mock.Mock }

func (m *MockConversationStore) Get(ctx context.Context, a, b domain.UserID) (*domain.Conversation, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationStore) GetOrCreate(ctx context.Context, a, b domain.UserID) (*domain.Conversation, bool, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*domain.Conversation), args.Bool(1), args.Error(2)
}

func (m *MockConversationStore) Delete(ctx context.Context, a, b domain.UserID) error {
	return m.Called(ctx, a, b).Error(0)
}

func (m *MockConversationStore) ListForUser(ctx context.Context, userID domain.UserID) ([]domain.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ConversationSummary), args.Error(1)
}

type MockMessageStore struct{ mock.Mock }

func (m *MockMessageStore) Create(ctx context.Context, conversationID int64, sender, receiver domain.UserID, content string) (*domain.Message, error) {
	args := m.Called(ctx, conversationID, sender, receiver, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageStore) MarkRead(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageStore) MarkAllRead(ctx context.Context, sender, receiver domain.UserID) (int64, error) {
	args := m.Called(ctx, sender, receiver)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageStore) ListBetween(ctx context.Context, a, b domain.UserID, search string) ([]domain.Message, error) {
	args := m.Called(ctx, a, b, search)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}

type MockUserDirectory struct{ mock.Mock }

func (m *MockUserDirectory) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserDirectory) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(key string, ev domain.Event) {
	m.Called(key, ev)
}

var (
	alice = domain.User{ID: 1, Username: "alice"}
	bob   = domain.User{ID: 2, Username: "bob"}
)

type fixture struct {
	users    *MockUserDirectory
	convs    *MockConversationStore
	messages *MockMessageStore
	pub      *MockPublisher

	chat     *ChatService
	receipts *ReceiptService
	history  *HistoryService
}

func newFixture() *fixture {
	f := &fixture{
		users:    new(MockUserDirectory),
		convs:    new(MockConversationStore),
		messages: new(MockMessageStore),
		pub:      new(MockPublisher),
	}
	f.chat = NewChatService(f.users, f.convs, f.messages, nil)
	f.receipts = NewReceiptService(f.chat, f.pub, nil)
	f.history = NewHistoryService(f.chat, f.receipts)
	return f
}

func TestChatService_AppendMessage_ValidatesBeforePersisting(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.chat.AppendMessage(ctx, alice.ID, bob.ID, "   ")
	assert.ErrorIs(t, err, domain.ErrValidation)

	f.chat.SetMaxMessageLength(5)
	_, err = f.chat.AppendMessage(ctx, alice.ID, bob.ID, "too long text")
	assert.ErrorIs(t, err, domain.ErrMessageTooLong)

	f.convs.AssertNotCalled(t, "GetOrCreate", mock.Anything, mock.Anything, mock.Anything)
	f.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestChatService_AppendMessage_CreatesConversationLazily(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := &domain.Conversation{ID: 10, UserLow: alice.ID, UserHigh: bob.ID}
	stored := &domain.Message{ID: 1, ConversationID: 10, SenderID: alice.ID, ReceiverID: bob.ID, Content: "hi"}

	f.convs.On("GetOrCreate", ctx, alice.ID, bob.ID).Return(conv, true, nil).Once()
	f.messages.On("Create", ctx, int64(10), alice.ID, bob.ID, "hi").Return(stored, nil).Once()

	got, err := f.chat.AppendMessage(ctx, alice.ID, bob.ID, "  hi ")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
	assert.False(t, got.IsRead)

	f.convs.AssertExpectations(t)
	f.messages.AssertExpectations(t)
}

func TestChatService_AppendMessage_PersistenceFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	boom := errors.New("db down")

	f.convs.On("GetOrCreate", ctx, alice.ID, bob.ID).Return(&domain.Conversation{ID: 10}, false, nil)
	f.messages.On("Create", ctx, int64(10), alice.ID, bob.ID, "hi").Return(nil, boom)

	_, err := f.chat.AppendMessage(ctx, alice.ID, bob.ID, "hi")
	assert.ErrorIs(t, err, boom)
}

func TestChatService_StartConversation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := &domain.Conversation{ID: 5, UserLow: alice.ID, UserHigh: bob.ID}

	f.users.On("GetByUsername", ctx, "bob").Return(&bob, nil)
	f.users.On("GetByUsername", ctx, "alice").Return(&alice, nil)
	f.users.On("GetByUsername", ctx, "ghost").Return(nil, domain.ErrUserNotFound)
	f.convs.On("GetOrCreate", ctx, alice.ID, bob.ID).Return(conv, false, nil)

	got, peer, err := f.chat.StartConversation(ctx, alice, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.ID)
	assert.Equal(t, bob, *peer)

	_, _, err = f.chat.StartConversation(ctx, alice, "alice")
	assert.ErrorIs(t, err, domain.ErrSelfConversation)

	_, _, err = f.chat.StartConversation(ctx, alice, "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestChatService_DeleteThreadWith(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.users.On("GetByUsername", ctx, "bob").Return(&bob, nil)
	f.convs.On("Delete", ctx, alice.ID, bob.ID).Return(nil).Once()

	peer, err := f.chat.DeleteThreadWith(ctx, alice, "bob")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, peer.ID)
	f.convs.AssertExpectations(t)
}

func TestReceiptService_OnDelivered_RecipientPublishesReceipt(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.receipts.now = func() time.Time { return time.Unix(100, 0) }
	ev := domain.NewMessageEvent{MessageID: 1, SenderID: alice.ID, ReceiverID: bob.ID, Sender: "alice", Receiver: "bob", Content: "hi"}

	f.messages.On("MarkRead", ctx, int64(1)).Return(true, nil).Once()
	f.pub.On("Publish", "alice_bob", domain.ReadReceiptEvent{
		MessageID: 1, SenderID: alice.ID, ReaderID: bob.ID, Reader: "bob", ReadAt: time.Unix(100, 0),
	}).Once()

	sent, err := f.receipts.OnDelivered(ctx, ev, bob)
	require.NoError(t, err)
	assert.True(t, sent)
	f.messages.AssertExpectations(t)
	f.pub.AssertExpectations(t)
}

func TestReceiptService_OnDelivered_SenderEchoIsIgnored(t *testing.T) {
	f := newFixture()
	ev := domain.NewMessageEvent{MessageID: 1, SenderID: alice.ID, ReceiverID: bob.ID, Sender: "alice", Receiver: "bob"}

	sent, err := f.receipts.OnDelivered(context.Background(), ev, alice)
	require.NoError(t, err)
	assert.False(t, sent)
	f.messages.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything)
	f.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestReceiptService_OnDelivered_AlreadyReadPublishesNothing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	ev := domain.NewMessageEvent{MessageID: 7, SenderID: alice.ID, ReceiverID: bob.ID, Sender: "alice", Receiver: "bob"}

	f.messages.On("MarkRead", ctx, int64(7)).Return(false, nil)

	sent, err := f.receipts.OnDelivered(ctx, ev, bob)
	require.NoError(t, err)
	assert.False(t, sent)
	f.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestReceiptService_OnDelivered_UnknownMessage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	ev := domain.NewMessageEvent{MessageID: 9, SenderID: alice.ID, ReceiverID: bob.ID, Sender: "alice", Receiver: "bob"}

	f.messages.On("MarkRead", ctx, int64(9)).Return(false, domain.ErrMessageNotFound)

	_, err := f.receipts.OnDelivered(ctx, ev, bob)
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)
	f.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestHistoryService_Thread_MarksReadThenLists(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := &domain.Conversation{ID: 3, UserLow: alice.ID, UserHigh: bob.ID}
	readAt := time.Now()
	msgs := []domain.Message{
		{ID: 1, SenderID: alice.ID, ReceiverID: bob.ID, Content: "one", IsRead: true, ReadAt: &readAt},
		{ID: 2, SenderID: alice.ID, ReceiverID: bob.ID, Content: "two", IsRead: true, ReadAt: &readAt},
	}

	var order []string
	f.users.On("GetByUsername", ctx, "alice").Return(&alice, nil)
	f.convs.On("Get", ctx, bob.ID, alice.ID).Return(conv, nil)
	f.messages.On("MarkAllRead", ctx, alice.ID, bob.ID).Return(int64(2), nil).
		Run(func(mock.Arguments) { order = append(order, "mark") })
	f.messages.On("ListBetween", ctx, bob.ID, alice.ID, "").Return(msgs, nil).
		Run(func(mock.Arguments) { order = append(order, "list") })

	view, err := f.history.Thread(ctx, bob, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"mark", "list"}, order)
	assert.EqualValues(t, 2, view.MarkedRead)
	assert.Len(t, view.Messages, 2)
	assert.Equal(t, alice, view.Peer)
}

func TestHistoryService_Thread_RequiresConversation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.users.On("GetByUsername", ctx, "bob").Return(&bob, nil)
	f.convs.On("Get", ctx, alice.ID, bob.ID).Return(nil, domain.ErrConversationNotFound)

	_, err := f.history.Thread(ctx, alice, "bob", "")
	require.Error(t, err)
	assert.True(t, IsRedirect(err))
	f.messages.AssertNotCalled(t, "MarkAllRead", mock.Anything, mock.Anything, mock.Anything)
}

func TestHistoryService_ConversationsWith_InjectsPeer(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	carol := domain.User{ID: 3, Username: "carol"}

	f.convs.On("ListForUser", ctx, alice.ID).Return([]domain.ConversationSummary{{Peer: carol}}, nil)

	list, err := f.history.ConversationsWith(ctx, alice, bob)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "bob", list[0].Peer.Username)

	list, err = f.history.ConversationsWith(ctx, alice, carol)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestIsRedirect(t *testing.T) {
	assert.True(t, IsRedirect(domain.ErrSelfConversation))
	assert.False(t, IsRedirect(domain.ErrUserNotFound))
	assert.False(t, IsRedirect(errors.New("boom")))
}
