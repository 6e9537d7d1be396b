package services_test

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"relaychat/internal/core/domain"
	"relaychat/internal/core/ports"
	"relaychat/internal/core/services"
	"relaychat/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type chatFixture struct {
	users    ports.UserRepository
	messages ports.MessageRepository
	blobs    *MockBlobStore
	registry *memory.ConnectionRegistry
	chat     ports.ChatService
}

func newChat(t *testing.T) *chatFixture {
	f := &chatFixture{
		users:    memory.NewMemoryUserRepository(),
		messages: memory.NewMemoryMessageRepository(),
		blobs:    new(MockBlobStore),
		registry: memory.NewConnectionRegistry(),
	}
	f.chat = services.NewChatService(f.users, f.messages, f.blobs, f.registry, nil, 1024, zaptest.NewLogger(t).Sugar())
	return f
}

func (f *chatFixture) addUser(t *testing.T, id string, created time.Time) {
	t.Helper()
	require.NoError(t, f.users.Create(context.Background(), &domain.User{
		ID:        domain.UserID(id),
		FullName:  strings.ToUpper(id),
		Email:     id + "@example.com",
		CreatedAt: created,
	}))
}

func TestChat_ListContactsExcludesSelf(t *testing.T) {
	f := newChat(t)
	base := time.Now()
	f.addUser(t, "alice", base)
	f.addUser(t, "bob", base.Add(time.Second))
	f.addUser(t, "carol", base.Add(2*time.Second))

	contacts, err := f.chat.ListContacts(context.Background(), "alice")
	require.NoError(t, err)

	var got []domain.UserID
	for _, u := range contacts {
		got = append(got, u.ID)
	}
	assert.Equal(t, ids("bob", "carol"), got)
}

func TestChat_SendPushesToOnlineReceiver(t *testing.T) {
	f := newChat(t)
	f.addUser(t, "alice", time.Now())
	f.addUser(t, "bob", time.Now())

	bob := newFakeConn("bob")
	f.registry.Register("bob", bob)

	msg, err := f.chat.SendMessage(context.Background(), "alice", "bob", "  hi bob  ", "")
	require.NoError(t, err)
	assert.Equal(t, "hi bob", msg.Text)

	pushed := bob.Named(domain.EventNewMessage)
	require.Len(t, pushed, 1)
	assert.Equal(t, msg.ID, pushed[0].Data.(*domain.Message).ID)
}

func TestChat_SendToOfflineReceiverIsStored(t *testing.T) {
	f := newChat(t)
	ctx := context.Background()
	f.addUser(t, "alice", time.Now())
	f.addUser(t, "bob", time.Now())

	_, err := f.chat.SendMessage(ctx, "alice", "bob", "first", "")
	require.NoError(t, err)
	_, err = f.chat.SendMessage(ctx, "bob", "alice", "second", "")
	require.NoError(t, err)

	history, err := f.chat.Conversation(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "first", history[0].Text)
	assert.Equal(t, "second", history[1].Text)
}

func TestChat_SendWithImage(t *testing.T) {
	f := newChat(t)
	f.addUser(t, "alice", time.Now())
	f.addUser(t, "bob", time.Now())

	img := []byte("GIF89a")
	f.blobs.On("Put", mock.Anything, img, "image/gif").Return("/media/x.gif", nil).Once()

	msg, err := f.chat.SendMessage(context.Background(), "alice", "bob", "",
		"data:image/gif;base64,"+base64.StdEncoding.EncodeToString(img))
	require.NoError(t, err)
	assert.Equal(t, "/media/x.gif", msg.Image)
	assert.Empty(t, msg.Text)
	f.blobs.AssertExpectations(t)
}

func TestChat_SendRejections(t *testing.T) {
	f := newChat(t)
	ctx := context.Background()
	f.addUser(t, "alice", time.Now())
	f.addUser(t, "bob", time.Now())

	_, err := f.chat.SendMessage(ctx, "alice", "bob", "   ", "")
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)

	_, err = f.chat.SendMessage(ctx, "alice", "ghost", "hello", "")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	big := base64.StdEncoding.EncodeToString(make([]byte, 4096))
	_, err = f.chat.SendMessage(ctx, "alice", "bob", "", "data:image/png;base64,"+big)
	assert.ErrorIs(t, err, domain.ErrMediaTooLarge)

	f.blobs.On("Put", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("disk full")).Once()
	_, err = f.chat.SendMessage(ctx, "alice", "bob", "", "data:image/png;base64,AAAA")
	assert.Error(t, err)

	history, err := f.chat.Conversation(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestChat_PushFailureDoesNotFailSend(t *testing.T) {
	f := newChat(t)
	f.addUser(t, "alice", time.Now())
	f.addUser(t, "bob", time.Now())

	bob := newFakeConn("bob")
	bob.sendErr = domain.ErrSendBufferFull
	f.registry.Register("bob", bob)

	_, err := f.chat.SendMessage(context.Background(), "alice", "bob", "hi", "")
	assert.NoError(t, err)
}

func TestChat_ConversationUnknownPeer(t *testing.T) {
	f := newChat(t)
	f.addUser(t, "alice", time.Now())

	_, err := f.chat.Conversation(context.Background(), "alice", "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
