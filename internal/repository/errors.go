// Package repository provides data access layer implementations for the application.
package repository

import (
	"errors"

	"github.com/blondeglamazon/message-board-sub000/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// isUniqueViolation recognizes duplicate keys from both the translated GORM
// error and a raw postgres error that bypassed translation.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// notFoundOr maps gorm.ErrRecordNotFound to a NOT_FOUND AppError and leaves
// other errors untouched.
func notFoundOr(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return err
}
