package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"relaychat/internal/core/domain"
	"relaychat/internal/core/ports"
	"relaychat/pkg/validation"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrUnauthorized = errors.New("unauthorized")
)

type AuthService interface {
	Signup(ctx context.Context, fullName, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.User, error)
	CurrentUser(ctx context.Context, id domain.UserID) (*domain.User, error)
	UpdateProfilePic(ctx context.Context, id domain.UserID, dataURL string) (*domain.User, error)

	GenerateToken(userID domain.UserID) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	TokenTTL() time.Duration
}

type Claims struct {
	UserID domain.UserID `json:"userId"`
	jwt.RegisteredClaims
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	BcryptCost    int
	MaxMediaBytes int64
}

type authService struct {
	users  ports.UserRepository
	media  ports.BlobStore
	cfg    AuthConfig
	secret []byte
	logger *zap.SugaredLogger
}

func NewAuthService(users ports.UserRepository, media ports.BlobStore, cfg AuthConfig, logger *zap.SugaredLogger) AuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &authService{
		users:  users,
		media:  media,
		cfg:    cfg,
		secret: []byte(cfg.JWTSecret),
		logger: logger,
	}
}

func (s *authService) Signup(ctx context.Context, fullName, email, password string) (*domain.User, error) {
	if err := validation.ValidateFullName(fullName); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           domain.NewUserID(),
		FullName:     strings.TrimSpace(fullName),
		Email:        normalizeEmail(email),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Infow("user signed up", "user_id", user.ID)
	return user, nil
}

// Login checks the password against the stored hash. Unknown email and
// wrong password both yield ErrInvalidCredentials.
func (s *authService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Debugw("login rejected", "user_id", user.ID)
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

func (s *authService) CurrentUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *authService) UpdateProfilePic(ctx context.Context, id domain.UserID, dataURL string) (*domain.User, error) {
	if dataURL == "" {
		return nil, fmt.Errorf("%w: profile pic is required", domain.ErrInvalidInput)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	data, contentType, err := domain.DecodeDataURL(dataURL, s.cfg.MaxMediaBytes)
	if err != nil {
		return nil, err
	}
	url, err := s.media.Put(ctx, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("store profile pic: %w", err)
	}

	user.ProfilePic = url
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Infow("profile updated", "user_id", id)
	return user, nil
}

func (s *authService) GenerateToken(userID domain.UserID) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *authService) TokenTTL() time.Duration {
	return s.cfg.TokenTTL
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
