package repository

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when no row matches.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

const (
	uniqueViolation = "23505"
	// invalidTextRepresentation is raised when Postgres cannot parse an input
	// literal, such as a malformed UUID.
	invalidTextRepresentation = "22P02"
)

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return ErrDuplicate
		case invalidTextRepresentation:
			return ErrNotFound
		}
	}
	return err
}

// validID reports whether id can address a UUID primary key. Callers treat a
// malformed id as a missing row, matching the in-memory repositories.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
