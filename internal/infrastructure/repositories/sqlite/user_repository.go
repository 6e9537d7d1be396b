package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"relaychat/internal/core/domain"
	"relaychat/internal/core/ports"
)

type SQLiteUserRepository struct {
	db *DB
}

func NewSQLiteUserRepository(db *DB) ports.UserRepository {
	return &SQLiteUserRepository{db: db}
}

const userColumns = `id, full_name, email, password_hash, profile_pic, created_at, updated_at`

func (r *SQLiteUserRepository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.db.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID.String(), user.FullName, strings.ToLower(user.Email), user.PasswordHash,
		user.ProfilePic, user.CreatedAt.UnixNano(), user.UpdatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *SQLiteUserRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	row := r.db.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id.String())
	return scanUser(row)
}

func (r *SQLiteUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(email))
	return scanUser(row)
}

func (r *SQLiteUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *SQLiteUserRepository) Update(ctx context.Context, user *domain.User) error {
	res, err := r.db.db.ExecContext(ctx,
		`UPDATE users SET full_name = ?, profile_pic = ?, password_hash = ?, updated_at = ? WHERE id = ?`,
		user.FullName, user.ProfilePic, user.PasswordHash, user.UpdatedAt.UnixNano(), user.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user             domain.User
		id               string
		created, updated int64
	)
	err := row.Scan(&id, &user.FullName, &user.Email, &user.PasswordHash, &user.ProfilePic, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.ID = domain.UserID(id)
	user.CreatedAt = time.Unix(0, created).UTC()
	user.UpdatedAt = time.Unix(0, updated).UTC()
	return &user, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
