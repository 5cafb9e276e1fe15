package model

import (
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"parish/src-server/apperr"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
)

// Remover is the part of the asset storage that models need when a row
// owning a photo is deleted.
type Remover interface {
	Exists(rel string) bool
	Delete(rel string) error
}

// IsUniqueViolation reports a unique-constraint failure on either store,
// column is the offending column when the driver tells us.
func IsUniqueViolation(err error) (column string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgerrcode.UniqueViolation {
			return "", false
		}
		// users_email_key -> email
		constraint := strings.TrimSuffix(pgErr.ConstraintName, "_key")
		if i := strings.Index(constraint, "_"); i >= 0 {
			constraint = constraint[i+1:]
		}
		return constraint, true
	}

	// sqlite: "UNIQUE constraint failed: users.email"
	if err == nil {
		return "", false
	}
	msg := err.Error()
	i := strings.Index(msg, "UNIQUE constraint failed: ")
	if i < 0 {
		return "", false
	}
	column = msg[i+len("UNIQUE constraint failed: "):]
	if j := strings.IndexAny(column, ", "); j >= 0 {
		column = column[:j]
	}
	if j := strings.LastIndex(column, "."); j >= 0 {
		column = column[j+1:]
	}
	return column, true
}

func notFound(err error, entity string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &apperr.NotFoundError{Entity: entity, ID: id}
	}
	return err
}

func invalid(field, msg string) error {
	return &apperr.ValidationError{Field: field, Msg: msg}
}

// affected turns a zero-row update or delete into a NotFoundError.
func affected(res sql.Result, entity string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &apperr.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

func removePhoto(remover Remover, rel string) {
	if remover == nil || rel == "" {
		return
	}
	if !remover.Exists(rel) {
		return
	}
	if err := remover.Delete(rel); err != nil {
		slog.Warn("can't remove photo", "path", rel, "error", err)
	}
}
