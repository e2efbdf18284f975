// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

// Package memstore provides an in-process auth.UserRepository.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/fashionhall/storefront/internal/auth"
)

// UserRepository implements auth.UserRepository in memory.
// IDs are sequential starting at 1. Stored users are copied in and out.
type UserRepository struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]*auth.User
	byEmail map[string]int64
	now     func() time.Time
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[int64]*auth.User),
		byEmail: make(map[string]int64),
		now:     time.Now,
	}
}

// Create stores a new user. The email check and insert happen under one lock.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return oops.Code(auth.CodeEmailTaken).
			With("email", user.Email).
			Wrap(auth.ErrEmailTaken)
	}

	r.nextID++
	now := r.now().UTC()
	user.ID = r.nextID
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	r.byID[stored.ID] = &stored
	r.byEmail[stored.Email] = stored.ID
	return nil
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, oops.Code(auth.CodeUserNotFound).
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	user := *r.byID[id]
	return &user, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id int64) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.byID[id]
	if !ok {
		return nil, oops.Code(auth.CodeUserNotFound).
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	user := *stored
	return &user, nil
}

// Delete removes a user. Outstanding tokens for the user stay valid but
// no longer resolve.
func (r *UserRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	if !ok {
		return oops.Code(auth.CodeUserNotFound).
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	delete(r.byEmail, stored.Email)
	delete(r.byID, id)
	return nil
}

// Len returns the number of stored users.
func (r *UserRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
