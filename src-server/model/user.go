package model

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"parish/src-server/apperr"

	"github.com/uptrace/bun"
)

const (
	ROLE_ADMIN  = "admin"
	ROLE_EDITOR = "editor"
	ROLE_BELLS  = "bells"
	ROLE_MEMBER = "member"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID                 int64  `bun:"id,pk,autoincrement"`
	UserName           string `bun:"user_name,notnull,unique"` // required
	Email              string `bun:"email,notnull,unique"`     // required
	Phone              string `bun:"phone"`
	Password           string `bun:"password,notnull"` // required, bcrypt hash
	Roles              string `bun:"roles,notnull"`    // comma separated
	IsActive           bool   `bun:"is_active,notnull"`
	PasswordResetToken string `bun:"password_reset_token,nullzero"`
	TokenExpiration    int64  `bun:"token_expiration,nullzero"` // unix seconds
	UserNote           string `bun:"user_note"`
	CreatedAt          int64  `bun:"created_at,notnull"`
}

func (u *User) GetRoles() []string {
	roles := make([]string, 0)
	for _, role := range strings.Split(u.Roles, ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}

// HasRole is true for the role itself and for admins.
func (u *User) HasRole(role string) bool {
	roles := u.GetRoles()
	return slices.Contains(roles, role) || slices.Contains(roles, ROLE_ADMIN)
}

func (u *User) Insert(ctx context.Context, db bun.IDB) error {
	u.UserName = strings.TrimSpace(u.UserName)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	switch {
	case u.UserName == "":
		return fmt.Errorf("(*User).Insert: %w", invalid("username", "username is required"))
	case !strings.Contains(u.Email, "@"):
		return fmt.Errorf("(*User).Insert: %w", invalid("email", "email address is not valid"))
	case u.Password == "":
		return fmt.Errorf("(*User).Insert: password hash is empty")
	}
	if u.Roles == "" {
		u.Roles = ROLE_MEMBER
	}
	if u.CreatedAt == 0 {
		u.CreatedAt = time.Now().UTC().Unix()
	}

	if _, err := db.NewInsert().Model(u).Exec(ctx); err != nil {
		if column, ok := IsUniqueViolation(err); ok {
			dup := &apperr.DuplicateError{Field: column, Err: err}
			switch column {
			case "user_name":
				dup.Msg = "This username is already taken."
			default:
				dup.Msg = "This email address is already registered."
			}
			return fmt.Errorf("(*User).Insert: %w", dup)
		}
		return fmt.Errorf("(*User).Insert: %w", err)
	}
	return nil
}

func (u *User) UpdatePassword(ctx context.Context, db bun.IDB, hash string) error {
	res, err := db.NewUpdate().
		Model((*User)(nil)).
		Set("password = ?", hash).
		Set("password_reset_token = NULL").
		Set("token_expiration = NULL").
		Where("id = ?", u.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("(*User).UpdatePassword: %w", err)
	}
	if err := affected(res, "user", u.ID); err != nil {
		return fmt.Errorf("(*User).UpdatePassword: %w", err)
	}
	u.Password = hash
	u.PasswordResetToken = ""
	u.TokenExpiration = 0
	return nil
}

// SetPasswordHash swaps the hash only, a pending reset token stays valid.
func (u *User) SetPasswordHash(ctx context.Context, db bun.IDB, hash string) error {
	if _, err := db.NewUpdate().
		Model((*User)(nil)).
		Set("password = ?", hash).
		Where("id = ?", u.ID).
		Exec(ctx); err != nil {
		return fmt.Errorf("(*User).SetPasswordHash: %w", err)
	}
	u.Password = hash
	return nil
}

func (u *User) SetResetToken(ctx context.Context, db bun.IDB, token string, expiration time.Time) error {
	if _, err := db.NewUpdate().
		Model((*User)(nil)).
		Set("password_reset_token = ?", token).
		Set("token_expiration = ?", expiration.Unix()).
		Where("id = ?", u.ID).
		Exec(ctx); err != nil {
		return fmt.Errorf("(*User).SetResetToken: %w", err)
	}
	u.PasswordResetToken = token
	u.TokenExpiration = expiration.Unix()
	return nil
}

func (u *User) SetActive(ctx context.Context, db bun.IDB, active bool) error {
	res, err := db.NewUpdate().
		Model((*User)(nil)).
		Set("is_active = ?", active).
		Where("id = ?", u.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("(*User).SetActive: %w", err)
	}
	if err := affected(res, "user", u.ID); err != nil {
		return fmt.Errorf("(*User).SetActive: %w", err)
	}
	u.IsActive = active
	return nil
}

func GetUserByID(ctx context.Context, db bun.IDB, id int64) (*User, error) {
	user := new(User)
	if err := db.NewSelect().Model(user).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, fmt.Errorf("GetUserByID: %w", notFound(err, "user", id))
	}
	return user, nil
}

func GetUserByEmail(ctx context.Context, db bun.IDB, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user := new(User)
	if err := db.NewSelect().Model(user).Where("email = ?", email).Scan(ctx); err != nil {
		return nil, fmt.Errorf("GetUserByEmail: %w", notFound(err, "user", email))
	}
	return user, nil
}

func GetUserByResetToken(ctx context.Context, db bun.IDB, token string) (*User, error) {
	user := new(User)
	if err := db.NewSelect().
		Model(user).
		Where("password_reset_token = ?", token).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("GetUserByResetToken: %w", notFound(err, "reset token", "(hidden)"))
	}
	return user, nil
}

func ListUsers(ctx context.Context, db bun.IDB) ([]User, error) {
	users := make([]User, 0)
	if err := db.NewSelect().Model(&users).Order("user_name").Scan(ctx); err != nil {
		return nil, fmt.Errorf("ListUsers: %w", err)
	}
	return users, nil
}

// ClearExpiredResetTokens removes tokens past their expiration, returns how many.
func ClearExpiredResetTokens(ctx context.Context, db bun.IDB, now time.Time) (int64, error) {
	res, err := db.NewUpdate().
		Model((*User)(nil)).
		Set("password_reset_token = NULL").
		Set("token_expiration = NULL").
		Where("token_expiration IS NOT NULL").
		Where("token_expiration < ?", now.Unix()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("ClearExpiredResetTokens: %w", err)
	}
	return res.RowsAffected()
}
