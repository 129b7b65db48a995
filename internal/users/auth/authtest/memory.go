// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package authtest provides in-memory implementations of the auth repositories
// for use in tests of this module.
package authtest

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/taibuivan/gatekeeper/internal/platform/apperr"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
	"github.com/taibuivan/gatekeeper/internal/users/auth"
)

// # Users

// UserRepository is a mutex-guarded, map-backed [auth.UserRepository].
// It enforces the same uniqueness rules as the PostgreSQL schema.
type UserRepository struct {
	mu    sync.Mutex
	users map[string]auth.User
	order []string
}

// NewUserRepository returns an empty repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]auth.User)}
}

func (repository *UserRepository) findBy(match func(auth.User) bool) (*auth.User, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	for _, id := range repository.order {
		if user := repository.users[id]; match(user) {
			return &user, nil
		}
	}
	return nil, apperr.NotFound("User")
}

// FindByID implements [auth.UserRepository].
func (repository *UserRepository) FindByID(_ context.Context, id string) (*auth.User, error) {
	return repository.findBy(func(user auth.User) bool { return user.ID == id })
}

// FindByUsername implements [auth.UserRepository].
func (repository *UserRepository) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	return repository.findBy(func(user auth.User) bool { return user.Username == username })
}

// FindByEmail implements [auth.UserRepository].
func (repository *UserRepository) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	return repository.findBy(func(user auth.User) bool { return user.Email == email })
}

// ExistsByUsername implements [auth.UserRepository].
func (repository *UserRepository) ExistsByUsername(context context.Context, username string) (bool, error) {
	_, err := repository.FindByUsername(context, username)
	return err == nil, nil
}

// ExistsByEmail implements [auth.UserRepository].
func (repository *UserRepository) ExistsByEmail(context context.Context, email string) (bool, error) {
	_, err := repository.FindByEmail(context, email)
	return err == nil, nil
}

// List implements [auth.UserRepository].
func (repository *UserRepository) List(_ context.Context, limit, offset int) ([]*auth.User, int, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	page := make([]*auth.User, 0, limit)
	for index, id := range repository.order {
		if index < offset || len(page) == limit {
			continue
		}
		user := repository.users[id]
		page = append(page, &user)
	}
	return page, len(repository.order), nil
}

// conflict reports a unique-index violation against any account other than id.
func (repository *UserRepository) conflict(id, username, email string) error {
	for otherID, other := range repository.users {
		if otherID == id {
			continue
		}
		if other.Username == username || strings.EqualFold(other.Email, email) {
			return apperr.Conflict("User already exists")
		}
	}
	return nil
}

// Create implements [auth.UserRepository].
func (repository *UserRepository) Create(_ context.Context, user *auth.User) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	if err := repository.conflict(user.ID, user.Username, user.Email); err != nil {
		return err
	}

	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	repository.users[user.ID] = *user
	repository.order = append(repository.order, user.ID)
	return nil
}

// Update implements [auth.UserRepository].
func (repository *UserRepository) Update(_ context.Context, user *auth.User) error {
	return repository.mutate(user.ID, func(stored *auth.User) error {
		if err := repository.conflict(user.ID, user.Username, user.Email); err != nil {
			return err
		}
		stored.Username, stored.Email = user.Username, user.Email
		stored.FirstName, stored.LastName = user.FirstName, user.LastName
		user.UpdatedAt = stored.UpdatedAt
		return nil
	})
}

// UpdatePassword implements [auth.UserRepository].
func (repository *UserRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return repository.mutate(id, func(stored *auth.User) error {
		stored.PasswordHash = passwordHash
		return nil
	})
}

// UpdateRole implements [auth.UserRepository].
func (repository *UserRepository) UpdateRole(_ context.Context, id string, role sec.UserRole) error {
	return repository.mutate(id, func(stored *auth.User) error {
		stored.Role = role
		return nil
	})
}

// Delete implements [auth.UserRepository].
func (repository *UserRepository) Delete(_ context.Context, id string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	if _, found := repository.users[id]; !found {
		return apperr.NotFound("User")
	}
	delete(repository.users, id)
	repository.order = slices.DeleteFunc(repository.order, func(other string) bool { return other == id })
	return nil
}

func (repository *UserRepository) mutate(id string, apply func(*auth.User) error) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	stored, found := repository.users[id]
	if !found {
		return apperr.NotFound("User")
	}
	if err := apply(&stored); err != nil {
		return err
	}
	stored.UpdatedAt = time.Now().UTC()
	repository.users[id] = stored
	return nil
}

// # Revocations

// RevocationRepository is a map-backed [auth.RevocationRepository] with expiry.
type RevocationRepository struct {
	mu      sync.Mutex
	revoked map[string]time.Time

	// Now is the clock used to expire entries.
	Now func() time.Time
}

// NewRevocationRepository returns an empty repository using the wall clock.
func NewRevocationRepository() *RevocationRepository {
	return &RevocationRepository{revoked: make(map[string]time.Time), Now: time.Now}
}

// Revoke implements [auth.RevocationRepository].
func (repository *RevocationRepository) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	repository.revoked[jti] = repository.Now().Add(ttl)
	return nil
}

// IsRevoked implements [auth.RevocationRepository].
func (repository *RevocationRepository) IsRevoked(_ context.Context, jti string) (bool, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	expiresAt, found := repository.revoked[jti]
	return found && repository.Now().Before(expiresAt), nil
}
