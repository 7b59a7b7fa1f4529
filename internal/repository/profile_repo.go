package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/profilekeeper/internal/database"
	"github.com/hitoshi/profilekeeper/internal/model"
)

// ProfileRepo はuser_profileテーブルを使用したプロフィールリポジトリ。
// PostgreSQLとSQLiteの両方で同じクエリを使う。
type ProfileRepo struct {
	db     *sql.DB
	driver database.Driver
}

// NewProfileRepo はProfileRepoを生成する。
func NewProfileRepo(db *sql.DB, driver database.Driver) *ProfileRepo {
	return &ProfileRepo{db: db, driver: driver}
}

// FindByEmail はemailが完全一致するプロフィールを取得する。見つからない場合はnilを返す。
func (r *ProfileRepo) FindByEmail(ctx context.Context, email string) (*model.Profile, error) {
	row := r.db.QueryRowContext(ctx,
		rebind(r.driver, `SELECT id, email, nickname, address FROM user_profile WHERE email = ?`),
		email,
	)

	profile, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by email: %w", err)
	}

	return profile, nil
}

// Create はemailのみを設定したプロフィールを作成する。
// 同時に同じemailで作成された場合はmodel.ErrDuplicateEmailを返す。
func (r *ProfileRepo) Create(ctx context.Context, email string) (*model.Profile, error) {
	profile := &model.Profile{Email: email}

	err := r.db.QueryRowContext(ctx,
		rebind(r.driver, `INSERT INTO user_profile (email) VALUES (?) RETURNING id`),
		email,
	).Scan(&profile.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to insert profile: %w", err)
	}

	return profile, nil
}

// Update はemailに一致するプロフィールのnicknameとaddressを上書きし、更新後の値を返す。
// emailは変更しない。該当行がない場合はmodel.ErrProfileNotFoundを返す。
func (r *ProfileRepo) Update(ctx context.Context, email, nickname, address string) (*model.Profile, error) {
	row := r.db.QueryRowContext(ctx,
		rebind(r.driver,
			`UPDATE user_profile SET nickname = ?, address = ?
			 WHERE email = ?
			 RETURNING id, email, nickname, address`),
		nullString(nickname), nullString(address), email,
	)

	profile, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return profile, nil
}

// scanProfile は1行分のプロフィールを読み取る。NULL列は空文字列になる。
func scanProfile(row *sql.Row) (*model.Profile, error) {
	var (
		profile  model.Profile
		nickname sql.NullString
		address  sql.NullString
	)
	if err := row.Scan(&profile.ID, &profile.Email, &nickname, &address); err != nil {
		return nil, err
	}
	profile.Nickname = nickname.String
	profile.Address = address.String
	return &profile, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ ProfileRepository = (*ProfileRepo)(nil)
