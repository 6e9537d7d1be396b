package memory

import (
	"context"
	"testing"
	"time"

	"relaychat/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUserRepository(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()
	now := time.Now()

	alice := &domain.User{ID: "alice", Email: "Alice@Example.com", FullName: "Alice", CreatedAt: now}
	require.NoError(t, repo.Create(ctx, alice))
	require.NoError(t, repo.Create(ctx, &domain.User{ID: "bob", Email: "bob@example.com", CreatedAt: now.Add(-time.Minute)}))

	err := repo.Create(ctx, &domain.User{ID: "alice2", Email: "alice@example.com"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	got, err := repo.GetByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("alice"), got.ID)

	// returned values are copies
	got.FullName = "changed"
	again, err := repo.GetByID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.FullName)

	again.ProfilePic = "/media/a.png"
	require.NoError(t, repo.Update(ctx, again))
	updated, _ := repo.GetByID(ctx, "alice")
	assert.Equal(t, "/media/a.png", updated.ProfilePic)

	_, err = repo.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.ErrorIs(t, repo.Update(ctx, &domain.User{ID: "ghost"}), domain.ErrUserNotFound)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domain.UserID("bob"), all[0].ID)
}

func TestMemoryMessageRepository_Conversation(t *testing.T) {
	repo := NewMemoryMessageRepository()
	ctx := context.Background()
	base := time.Now()

	save := func(from, to, text string, at time.Time) {
		require.NoError(t, repo.Save(ctx, &domain.Message{
			ID:         domain.NewMessageID(),
			SenderID:   domain.UserID(from),
			ReceiverID: domain.UserID(to),
			Text:       text,
			CreatedAt:  at,
		}))
	}
	save("bob", "alice", "second", base.Add(time.Second))
	save("alice", "bob", "first", base)
	save("alice", "carol", "other", base)

	conv, err := repo.Conversation(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Len(t, conv, 2)
	assert.Equal(t, "first", conv[0].Text)
	assert.Equal(t, "second", conv[1].Text)

	reversed, err := repo.Conversation(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, conv, reversed)

	none, err := repo.Conversation(ctx, "bob", "carol")
	require.NoError(t, err)
	assert.Empty(t, none)
}
