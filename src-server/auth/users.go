package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"parish/src-server/apperr"
	"parish/src-server/mailer"
	"parish/src-server/model"

	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

const (
	PASSWORD_MIN_LENGTH = 6
	RESET_TOKEN_BYTES   = 16
	RESET_TOKEN_TTL     = 24 * time.Hour
)

type Users struct {
	db        *bun.DB
	auth      *Authenticator
	mail      mailer.Sender
	publicURL string
	now       func() time.Time
}

func NewUsers(db *bun.DB, authenticator *Authenticator, mail mailer.Sender, publicURL string) *Users {
	return &Users{
		db:        db,
		auth:      authenticator,
		mail:      mail,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		now:       time.Now,
	}
}

func (u *Users) SetClock(now func() time.Time) {
	u.now = now
}

type Registration struct {
	UserName string   `json:"user_name"`
	Email    string   `json:"email"`
	Phone    string   `json:"phone"`
	Password string   `json:"password"`
	Roles    []string `json:"roles"`
	IsActive bool     `json:"is_active"`
}

func checkPassword(field, password string) error {
	if utf8.RuneCountInString(password) < PASSWORD_MIN_LENGTH {
		return &apperr.ValidationError{
			Field: field,
			Msg:   fmt.Sprintf("password must have at least %d characters", PASSWORD_MIN_LENGTH),
		}
	}
	return nil
}

// Register creates an account. A taken username or e-mail comes back as
// *apperr.DuplicateError carrying a message fit for the user.
func (u *Users) Register(ctx context.Context, reg Registration) (*model.User, error) {
	if err := checkPassword("password", reg.Password); err != nil {
		return nil, fmt.Errorf("(*Users).Register: %w", err)
	}
	hash, err := u.auth.Hash(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("(*Users).Register: %w", err)
	}
	user := &model.User{
		UserName: reg.UserName,
		Email:    reg.Email,
		Phone:    strings.TrimSpace(reg.Phone),
		Password: hash,
		Roles:    strings.Join(reg.Roles, ","),
		IsActive: reg.IsActive,
	}
	if err := user.Insert(ctx, u.db); err != nil {
		return nil, fmt.Errorf("(*Users).Register: %w", err)
	}
	slog.Info("user registered", "user", user.ID, "roles", user.Roles, "active", user.IsActive)
	return user, nil
}

// RequestPasswordReset stores a fresh token for the account and mails the
// reset link. An unknown e-mail is not reported so the endpoint can't be used
// to find out which accounts exist.
func (u *Users) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := model.GetUserByEmail(ctx, u.db, email)
	var notFoundErr *apperr.NotFoundError
	switch {
	case errors.As(err, &notFoundErr):
		slog.Info("password reset for unknown e-mail", "email", email)
		return nil
	case err != nil:
		return fmt.Errorf("(*Users).RequestPasswordReset: %w", err)
	}

	token, err := newResetToken()
	if err != nil {
		return fmt.Errorf("(*Users).RequestPasswordReset: %w", err)
	}
	if err := user.SetResetToken(ctx, u.db, token, u.now().Add(RESET_TOKEN_TTL)); err != nil {
		return fmt.Errorf("(*Users).RequestPasswordReset: %w", err)
	}

	link := u.publicURL + "/auth/reset?token=" + url.QueryEscape(token)
	if err := u.mail.Send(ctx, mailer.Message{
		To:      user.Email,
		Subject: "Password reset",
		Body: "Someone asked to reset the password of the account " + user.UserName + ".\n" +
			"Open the link within 24 hours to choose a new one, or ignore this message.",
		URL: link,
	}); err != nil {
		return fmt.Errorf("(*Users).RequestPasswordReset: %w", err)
	}
	return nil
}

// ResetPassword sets a new password for the holder of a valid reset token
// and logs the account out everywhere.
func (u *Users) ResetPassword(ctx context.Context, token, password string) error {
	if err := checkPassword("password", password); err != nil {
		return fmt.Errorf("(*Users).ResetPassword: %w", err)
	}
	invalidToken := &apperr.ValidationError{Field: "token", Msg: "the reset link is invalid or has expired"}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("(*Users).ResetPassword: %w", invalidToken)
	}

	hash, err := u.auth.Hash(password)
	if err != nil {
		return fmt.Errorf("(*Users).ResetPassword: %w", err)
	}
	if err := u.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		user, err := model.GetUserByResetToken(ctx, tx, token)
		var notFoundErr *apperr.NotFoundError
		switch {
		case errors.As(err, &notFoundErr):
			return invalidToken
		case err != nil:
			return err
		case user.TokenExpiration < u.now().Unix():
			return invalidToken
		}
		if err := user.UpdatePassword(ctx, tx, hash); err != nil {
			return err
		}
		return model.DeleteSessionTokensOfUser(ctx, tx, user.ID)
	}); err != nil {
		return fmt.Errorf("(*Users).ResetPassword: %w", err)
	}
	return nil
}

func (u *Users) ChangePassword(ctx context.Context, userID int64, current, password string) error {
	if err := checkPassword("new_password", password); err != nil {
		return fmt.Errorf("(*Users).ChangePassword: %w", err)
	}
	user, err := model.GetUserByID(ctx, u.db, userID)
	if err != nil {
		return fmt.Errorf("(*Users).ChangePassword: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)); err != nil {
		return fmt.Errorf("(*Users).ChangePassword: %w", &apperr.AuthError{Reason: apperr.AuthBadCredential})
	}
	hash, err := u.auth.Hash(password)
	if err != nil {
		return fmt.Errorf("(*Users).ChangePassword: %w", err)
	}
	if err := user.UpdatePassword(ctx, u.db, hash); err != nil {
		return fmt.Errorf("(*Users).ChangePassword: %w", err)
	}
	return nil
}

func newResetToken() (string, error) {
	buf := make([]byte, RESET_TOKEN_BYTES)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("newResetToken: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
