package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/tweetstream/internal/model"
)

const userColumns = `id, username, email, password_hash, display_name, bio, avatar_url, verified,
	followers_count, following_count, tweets_count, created_at, updated_at`

const userSummaryColumns = `id, username, display_name, avatar_url, verified, bio,
	followers_count, following_count, tweets_count`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Bio, &u.AvatarURL, &u.Verified,
		&u.FollowersCount, &u.FollowingCount, &u.TweetsCount, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func scanUserSummary(row rowScanner, extra ...any) (model.UserSummary, error) {
	var s model.UserSummary
	dest := []any{
		&s.ID, &s.Username, &s.DisplayName, &s.AvatarURL, &s.Verified, &s.Bio,
		&s.FollowersCount, &s.FollowingCount, &s.TweetsCount,
	}
	err := row.Scan(append(dest, extra...)...)
	return s, err
}

func (r *PostgresUserRepo) findOne(ctx context.Context, where string, arg any) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := r.findOne(ctx, `id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return u, nil
}

// FindByUsername はユーザー名でユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := r.findOne(ctx, `username = $1`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}
	return u, nil
}

// FindByLogin はユーザー名またはメールアドレスでユーザーを取得する。
func (r *PostgresUserRepo) FindByLogin(ctx context.Context, login string) (*model.User, error) {
	u, err := r.findOne(ctx, `username = $1 OR email = $1`, login)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by login: %w", err)
	}
	return u, nil
}

// ExistsByUsernameOrEmail はユーザー名またはメールアドレスが登録済みかを返す。
func (r *PostgresUserRepo) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 OR email = $2)`,
		username, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, in *model.NewUser) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`INSERT INTO users (username, email, password_hash, display_name, bio)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		in.Username, in.Email, in.PasswordHash, in.DisplayName, in.Bio,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return u, nil
}

// UpdateProfile はnilでないフィールドのみ更新する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, id int64, upd model.ProfileUpdate) (*model.User, error) {
	var sets []string
	var args []any
	add := func(column string, v *string) {
		if v == nil {
			return
		}
		args = append(args, *v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("display_name", upd.DisplayName)
	add("bio", upd.Bio)
	add("avatar_url", upd.AvatarURL)
	if len(sets) == 0 {
		return r.FindByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE users SET %s, updated_at = now() WHERE id = $%d RETURNING `+userColumns,
		strings.Join(sets, ", "), len(args),
	)

	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return u, nil
}

// Search はユーザー名、表示名、自己紹介の部分一致でユーザーを検索する。
// フォロワー数の多い順に返す。
func (r *PostgresUserRepo) Search(ctx context.Context, query string, page model.Page) ([]model.UserSummary, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userSummaryColumns+`
		 FROM users
		 WHERE username ILIKE $1 OR display_name ILIKE $1 OR bio ILIKE $1
		 ORDER BY followers_count DESC, username ASC
		 LIMIT $2 OFFSET $3`,
		pattern, page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	users := []model.UserSummary{}
	for rows.Next() {
		s, err := scanUserSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, s)
	}
	return users, rows.Err()
}

// escapeLike はLIKEパターンのメタ文字をエスケープする。
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
