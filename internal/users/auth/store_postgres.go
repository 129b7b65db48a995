// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/gatekeeper/internal/platform/apperr"
	"github.com/taibuivan/gatekeeper/internal/platform/database/schema"
	"github.com/taibuivan/gatekeeper/internal/platform/dberr"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
)

// # User Repository

// resourceUser names the entity in NOT_FOUND and CONFLICT messages.
const resourceUser = "User"

// account is shorthand for the users.account descriptor.
var account = schema.UserAccount

// PostgresUserRepository implements [UserRepository] on the users.account table.
//
// # Error Mapping
//
// Storage errors pass through [dberr.Wrap]: missing rows become NOT_FOUND and
// unique violations become CONFLICT, so no pgx type leaks past this file.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool, now: time.Now}
}

// scanUser hydrates a User from a row produced with the account projection.
func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// findOne runs a single-row lookup keyed on column.
func (repository *PostgresUserRepository) findOne(context context.Context, column, value, action string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, account.Projection(), account.Table, column)

	user, err := scanUser(repository.pool.QueryRow(context, query, value))
	if err != nil {
		return nil, dberr.Wrap(err, resourceUser, action)
	}
	return user, nil
}

/*
FindByID retrieves a user record by their unique ID.

Parameters:
  - context: context.Context
  - id: string (UUIDv7)

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	return repository.findOne(context, account.ID, id, "postgres_user_repo_find_by_id_failed")
}

// FindByUsername retrieves a user record by their unique username.
func (repository *PostgresUserRepository) FindByUsername(context context.Context, username string) (*User, error) {
	return repository.findOne(context, account.Username, username, "postgres_user_repo_find_by_username_failed")
}

// FindByEmail retrieves a user record by their unique email address.
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	return repository.findOne(context, account.Email, email, "postgres_user_repo_find_by_email_failed")
}

// ExistsByUsername reports whether the username is taken.
func (repository *PostgresUserRepository) ExistsByUsername(context context.Context, username string) (bool, error) {
	return repository.exists(context, account.Username, username)
}

// ExistsByEmail reports whether the email is taken.
func (repository *PostgresUserRepository) ExistsByEmail(context context.Context, email string) (bool, error) {
	return repository.exists(context, account.Email, email)
}

func (repository *PostgresUserRepository) exists(context context.Context, column, value string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)`, account.Table, column)

	var found bool
	if err := repository.pool.QueryRow(context, query, value).Scan(&found); err != nil {
		return false, fmt.Errorf("postgres_user_repo_exists_failed: %w", err)
	}
	return found, nil
}

/*
List returns one page of accounts ordered by creation time.

Description: The total is computed with a window function in the same
statement, so page and count are consistent with each other.

Parameters:
  - context: context.Context
  - limit: int
  - offset: int

Returns:
  - []*User: The page (empty, never nil)
  - int: Total number of accounts
  - error: Database errors
*/
func (repository *PostgresUserRepository) List(context context.Context, limit, offset int) ([]*User, int, error) {
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER () AS total
		FROM %s
		ORDER BY %s, %s
		LIMIT $1 OFFSET $2`,
		account.Projection(), account.Table, account.CreatedAt, account.ID)

	rows, err := repository.pool.Query(context, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_user_repo_list_failed: %w", err)
	}
	defer rows.Close()

	users := make([]*User, 0, limit)
	total := 0

	for rows.Next() {
		user := &User{}
		if err := rows.Scan(
			&user.ID, &user.Username, &user.Email, &user.PasswordHash,
			&user.FirstName, &user.LastName, &user.Role,
			&user.CreatedAt, &user.UpdatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("postgres_user_repo_list_scan_failed: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_user_repo_list_failed: %w", err)
	}

	// An offset past the end yields no rows, and therefore no total.
	if len(users) == 0 && offset > 0 {
		if err := repository.pool.QueryRow(context, `SELECT COUNT(*) FROM `+account.Table).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("postgres_user_repo_count_failed: %w", err)
		}
	}

	return users, total, nil
}

/*
Create persists a new user record into the users.account table.

Parameters:
  - context: context.Context
  - user: *User (Entity to persist; timestamps are set here)

Returns:
  - error: apperr.Conflict on duplicate username/email, or database errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		account.Table, account.Projection())

	now := repository.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := repository.pool.Exec(context, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		string(user.Role),
		user.CreatedAt,
		user.UpdatedAt,
	)

	return dberr.Wrap(err, resourceUser, "postgres_user_repo_create_failed")
}

// Update persists username, email and names.
func (repository *PostgresUserRepository) Update(context context.Context, user *User) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = $3, %s = $4, %s = $5, %s = $6
		WHERE %s = $1`,
		account.Table,
		account.Username, account.Email, account.FirstName, account.LastName, account.UpdatedAt,
		account.ID)

	user.UpdatedAt = repository.now().UTC()

	return repository.execOne(context, "postgres_user_repo_update_failed", query,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName, user.UpdatedAt)
}

// UpdatePassword replaces the password hash.
func (repository *PostgresUserRepository) UpdatePassword(context context.Context, id, passwordHash string) error {
	return repository.execOne(context, "postgres_user_repo_update_password_failed", setColumn(account.Password),
		id, passwordHash, repository.now().UTC())
}

// UpdateRole replaces the role.
func (repository *PostgresUserRepository) UpdateRole(context context.Context, id string, role sec.UserRole) error {
	return repository.execOne(context, "postgres_user_repo_update_role_failed", setColumn(account.Role),
		id, string(role), repository.now().UTC())
}

// Delete removes the account row.
func (repository *PostgresUserRepository) Delete(context context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, account.Table, account.ID)
	return repository.execOne(context, "postgres_user_repo_delete_failed", query, id)
}

// setColumn builds an UPDATE of one column plus updatedat, keyed by id.
func setColumn(column string) string {
	return fmt.Sprintf(`UPDATE %s SET %s = $2, %s = $3 WHERE %s = $1`,
		account.Table, column, account.UpdatedAt, account.ID)
}

// execOne runs a statement that must affect exactly one row.
func (repository *PostgresUserRepository) execOne(context context.Context, action, query string, args ...any) error {
	tag, err := repository.pool.Exec(context, query, args...)
	if err != nil {
		return dberr.Wrap(err, resourceUser, action)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(resourceUser)
	}
	return nil
}
