package database

import (
	"context"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/Joshypeace/PharmaStore/internal/core"
)

var userColumns = []string{"id", "name", "email", "role", "password_hash", "created_at"}

func scanUser(row scanner) (core.User, error) {
	var u core.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.PasswordHash, &u.CreatedAt); err != nil {
		return core.User{}, mapError(err)
	}
	return u, nil
}

// UserByEmail matches case-insensitively.
func (s *Store) UserByEmail(ctx context.Context, email string) (core.User, error) {
	row, err := s.queryRow(ctx, psql.
		Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"email": strings.ToLower(strings.TrimSpace(email))}))
	if err != nil {
		return core.User{}, err
	}
	return scanUser(row)
}

func (s *Store) UserByID(ctx context.Context, id int64) (core.User, error) {
	row, err := s.queryRow(ctx, psql.
		Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"id": id}))
	if err != nil {
		return core.User{}, err
	}
	return scanUser(row)
}

// CreateUser stores u with a lowercased email. ErrDuplicate means the
// email is taken.
func (s *Store) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	row, err := s.queryRow(ctx, psql.
		Insert("users").
		Columns("name", "email", "role", "password_hash").
		Values(u.Name, u.Email, u.Role, u.PasswordHash).
		Suffix("RETURNING id, created_at"))
	if err != nil {
		return core.User{}, err
	}
	if err := row.Scan(&u.ID, &u.CreatedAt); err != nil {
		return core.User{}, mapError(err)
	}
	return u, nil
}
