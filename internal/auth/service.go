// Package auth はトークンの発行・検証、セッション照合、アカウント登録とログインを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/tweetstream/internal/model"
	"github.com/hitoshi/tweetstream/internal/repository"
	"github.com/hitoshi/tweetstream/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost はパスワードハッシュの既定コスト。
const DefaultBcryptCost = 12

// TokenCodec はトークンの発行と検証を行う。
type TokenCodec interface {
	TokenVerifier
	Issue(userID int64, username string) (string, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionTTL time.Duration // セッションマーカーの有効期間
	BcryptCost int           // 0の場合はDefaultBcryptCost
}

// RegisterInput はユーザー登録の入力値。
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
	Bio         *string
}

// AuthResult は登録・ログイン成功時に返すユーザーとトークン。
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users    repository.UserRepository
	codec    TokenCodec
	sessions SessionStore
	gate     *Gate
	config   ServiceConfig
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	codec TokenCodec,
	sessions SessionStore,
	config ServiceConfig,
	logger *slog.Logger,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = DefaultBcryptCost
	}
	return &Service{
		users:    users,
		codec:    codec,
		sessions: sessions,
		gate:     NewGate(codec, sessions),
		config:   config,
		logger:   logger,
	}
}

// Gate はこのサービスが使う認証ゲートを返す。
func (s *Service) Gate() *Gate {
	return s.gate
}

// Register はユーザーを登録し、トークンとセッションを発行する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	// 1. 入力値の検証
	var errs validation.Errors
	errs.Check(validation.IsUsername(in.Username), "username",
		"Username must be 3-50 characters and contain only letters, numbers, and underscores")
	errs.Check(validation.IsEmail(in.Email), "email", "Valid email is required")
	errs.Check(len(in.Password) >= 6, "password", "Password must be at least 6 characters")
	errs.Check(validation.Length(in.DisplayName, 1, 100), "display_name", "Display name is required")
	if in.Bio != nil {
		errs.Check(validation.Length(*in.Bio, 0, 500), "bio", "Bio must be less than 500 characters")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	// 2. 重複チェック
	exists, err := s.users.ExistsByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, model.NewDuplicateUserError()
	}

	// 3. パスワードハッシュ
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// 4. ユーザー作成（重複チェック後に同時登録された場合は一意制約違反になる）
	user, err := s.users.Create(ctx, &model.NewUser{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		DisplayName:  in.DisplayName,
		Bio:          in.Bio,
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, model.NewDuplicateUserError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)

	// 5. トークンとセッションの発行
	return s.issueSession(ctx, user)
}

// Login はユーザー名またはメールアドレスとパスワードで認証し、トークンを発行する。
func (s *Service) Login(ctx context.Context, login, password string) (*AuthResult, error) {
	var errs validation.Errors
	errs.Check(strings.TrimSpace(login) != "", "username", "Username is required")
	errs.Check(password != "", "password", "Password is required")
	if err := errs.Err(); err != nil {
		return nil, err
	}

	user, err := s.users.FindByLogin(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	return s.issueSession(ctx, user)
}

// Logout はトークンに対応するセッションだけを削除する。
// トークンが無効な場合も成功として扱う。
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	claims, err := s.codec.Verify(token)
	if err != nil {
		s.logger.Debug("logout with unverifiable token", slog.String("error", err.Error()))
		return nil
	}

	if err := s.sessions.Delete(ctx, claims.UserID, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Verify はトークンを認証し、現在のユーザー情報を返す。
func (s *Service) Verify(ctx context.Context, token string) (*model.User, error) {
	identity, err := s.gate.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError("User not found")
	}
	return user, nil
}

// issueSession はトークンを発行し、対応するセッションマーカーを保存する。
func (s *Service) issueSession(ctx context.Context, user *model.User) (*AuthResult, error) {
	token, err := s.codec.Issue(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Put(ctx, user.ID, token, s.config.SessionTTL); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// compile-time check
var _ TokenCodec = (*Codec)(nil)
