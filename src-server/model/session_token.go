package model

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type SessionToken struct {
	bun.BaseModel `bun:"table:session_tokens"`

	Secret    string `bun:"secret,pk,notnull"`  // required
	UserID    int64  `bun:"user_id,notnull"`    // required
	CreatedAt int64  `bun:"created_at,notnull"` // required
	ExpiresAt int64  `bun:"expires_at,notnull"` // required
	IpAddress string `bun:"ip_address,notnull"`
	UserAgent string `bun:"user_agent"`
}

func (s *SessionToken) Insert(ctx context.Context, db bun.IDB) error {
	switch {
	case s.Secret == "":
		return fmt.Errorf("(*SessionToken).Insert: secret is empty")
	case s.UserID == 0:
		return fmt.Errorf("(*SessionToken).Insert: user id is empty")
	case s.ExpiresAt <= s.CreatedAt:
		return fmt.Errorf("(*SessionToken).Insert: session expires before it is created")
	}
	if _, err := db.NewInsert().Model(s).Exec(ctx); err != nil {
		return fmt.Errorf("(*SessionToken).Insert: %w", err)
	}
	return nil
}

func (s *SessionToken) IsExpired(now time.Time) bool {
	return now.Unix() >= s.ExpiresAt
}

func GetSessionToken(ctx context.Context, db bun.IDB, secret string) (*SessionToken, error) {
	token := new(SessionToken)
	if err := db.NewSelect().Model(token).Where("secret = ?", secret).Scan(ctx); err != nil {
		return nil, fmt.Errorf("GetSessionToken: %w", notFound(err, "session", "(hidden)"))
	}
	return token, nil
}

func DeleteSessionToken(ctx context.Context, db bun.IDB, secret string) error {
	if _, err := db.NewDelete().
		Model((*SessionToken)(nil)).
		Where("secret = ?", secret).
		Exec(ctx); err != nil {
		return fmt.Errorf("DeleteSessionToken: %w", err)
	}
	return nil
}

func DeleteSessionTokensOfUser(ctx context.Context, db bun.IDB, userID int64) error {
	if _, err := db.NewDelete().
		Model((*SessionToken)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx); err != nil {
		return fmt.Errorf("DeleteSessionTokensOfUser: %w", err)
	}
	return nil
}

func DeleteExpiredSessionTokens(ctx context.Context, db bun.IDB, now time.Time) (int64, error) {
	res, err := db.NewDelete().
		Model((*SessionToken)(nil)).
		Where("expires_at <= ?", now.Unix()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("DeleteExpiredSessionTokens: %w", err)
	}
	return res.RowsAffected()
}
