package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"parish/src-server/apperr"
	"parish/src-server/model"

	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

type Authenticator struct {
	db   bun.IDB
	cost int
}

func NewAuthenticator(db bun.IDB) *Authenticator {
	return &Authenticator{db: db, cost: bcrypt.DefaultCost}
}

// SetCost changes the bcrypt cost of new hashes, existing ones are rehashed
// on their next successful login.
func (a *Authenticator) SetCost(cost int) {
	a.cost = max(bcrypt.MinCost, min(bcrypt.MaxCost, cost))
}

func (a *Authenticator) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return "", fmt.Errorf("(*Authenticator).Hash: %w", err)
	}
	return string(hash), nil
}

// Authenticate fails with *apperr.AuthError telling apart an unknown e-mail,
// an inactive account and a wrong password, checked in that order.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (*Identity, error) {
	user, err := model.GetUserByEmail(ctx, a.db, email)
	var notFoundErr *apperr.NotFoundError
	switch {
	case errors.As(err, &notFoundErr):
		return nil, &apperr.AuthError{Reason: apperr.AuthNotFound}
	case err != nil:
		return nil, fmt.Errorf("(*Authenticator).Authenticate: %w", err)
	case !user.IsActive:
		return nil, &apperr.AuthError{Reason: apperr.AuthInactive}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, &apperr.AuthError{Reason: apperr.AuthBadCredential}
	}

	if cost, err := bcrypt.Cost([]byte(user.Password)); err == nil && cost != a.cost {
		hash, err := a.Hash(password)
		if err == nil {
			err = user.SetPasswordHash(ctx, a.db, hash)
		}
		if err != nil {
			// the old hash still works
			slog.Warn("can't rehash password", "user", user.ID, "error", err)
		} else {
			slog.Debug("password rehashed", "user", user.ID, "from", cost, "to", a.cost)
		}
	}
	return identityOf(user), nil
}

// Restore re-reads the user behind a stored session. A deleted or inactive
// account gives nil, nil and the caller logs the session out.
func (a *Authenticator) Restore(ctx context.Context, userID int64) (*Identity, error) {
	user, err := model.GetUserByID(ctx, a.db, userID)
	var notFoundErr *apperr.NotFoundError
	switch {
	case errors.As(err, &notFoundErr):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("(*Authenticator).Restore: %w", err)
	case !user.IsActive:
		return nil, nil
	}
	return identityOf(user), nil
}
