package redis

import (
	"testing"
	"time"

	"relaychat/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestKeyspace(t *testing.T) {
	k := newKeyspace("")
	assert.Equal(t, "relaychat:user:u1", k.user("u1"))
	assert.Equal(t, "relaychat:email:a@b.c", k.email("a@b.c"))
	assert.Equal(t, "relaychat:schema:version", k.schemaVersion())
	assert.Equal(t, "relaychat:schema:lock", k.migrationLock())

	assert.Equal(t, k.conversation("alice", "bob"), k.conversation("bob", "alice"))
	assert.NotEqual(t, k.conversation("alice", "bob"), k.conversation("alice", "carol"))

	custom := newKeyspace("staging")
	assert.Equal(t, "staging:users", custom.users())
}

func TestUserRecord_KeepsPasswordHash(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	user := &domain.User{
		ID:           "u1",
		FullName:     "Ada Lovelace",
		Email:        "Ada@Example.com",
		PasswordHash: "$2a$10$hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	rec := toUserRecord(user)
	assert.Equal(t, "ada@example.com", rec.Email)

	back := rec.toDomain()
	assert.Equal(t, user.PasswordHash, back.PasswordHash)
	assert.Equal(t, user.ID, back.ID)
	assert.True(t, back.CreatedAt.Equal(now))
}
