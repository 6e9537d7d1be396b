package reliability

import (
	"context"

	"relaychat/internal/core/domain"
	"relaychat/internal/core/ports"

	"go.uber.org/zap"
)

// MessageRepositoryWrapper guards a networked or on-disk message store.
type MessageRepositoryWrapper struct {
	repo  ports.MessageRepository
	guard *guard
}

func NewMessageRepositoryWrapper(repo ports.MessageRepository, driver string, policy Policy, metrics StoreMetrics, logger *zap.SugaredLogger) *MessageRepositoryWrapper {
	return &MessageRepositoryWrapper{
		repo:  repo,
		guard: newGuard("messages", driver, policy, metrics, logger),
	}
}

func (w *MessageRepositoryWrapper) Save(ctx context.Context, msg *domain.Message) error {
	return exec(ctx, w.guard, "save_message", func(ctx context.Context) error {
		return w.repo.Save(ctx, msg)
	})
}

func (w *MessageRepositoryWrapper) Conversation(ctx context.Context, a, b domain.UserID) ([]*domain.Message, error) {
	return call(ctx, w.guard, "conversation", func(ctx context.Context) ([]*domain.Message, error) {
		return w.repo.Conversation(ctx, a, b)
	})
}

type UserRepositoryWrapper struct {
	repo  ports.UserRepository
	guard *guard
}

func NewUserRepositoryWrapper(repo ports.UserRepository, driver string, policy Policy, metrics StoreMetrics, logger *zap.SugaredLogger) *UserRepositoryWrapper {
	return &UserRepositoryWrapper{
		repo:  repo,
		guard: newGuard("users", driver, policy, metrics, logger),
	}
}

func (w *UserRepositoryWrapper) Create(ctx context.Context, user *domain.User) error {
	return exec(ctx, w.guard, "create_user", func(ctx context.Context) error {
		return w.repo.Create(ctx, user)
	})
}

func (w *UserRepositoryWrapper) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return call(ctx, w.guard, "get_user", func(ctx context.Context) (*domain.User, error) {
		return w.repo.GetByID(ctx, id)
	})
}

func (w *UserRepositoryWrapper) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return call(ctx, w.guard, "get_user_by_email", func(ctx context.Context) (*domain.User, error) {
		return w.repo.GetByEmail(ctx, email)
	})
}

func (w *UserRepositoryWrapper) List(ctx context.Context) ([]*domain.User, error) {
	return call(ctx, w.guard, "list_users", func(ctx context.Context) ([]*domain.User, error) {
		return w.repo.List(ctx)
	})
}

func (w *UserRepositoryWrapper) Update(ctx context.Context, user *domain.User) error {
	return exec(ctx, w.guard, "update_user", func(ctx context.Context) error {
		return w.repo.Update(ctx, user)
	})
}
