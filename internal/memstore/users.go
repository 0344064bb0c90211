package memstore

import (
	"context"
	"strings"
	"time"

	"github.com/busstation/station/internal/model"
)

// ---- Users ----

// CreateUser stores an active user and returns its ID.  Emails are
// unique regardless of case.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash, role string) (uint64, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return 0, model.ErrEmailExists
		}
	}
	now := s.now().UTC()
	id := next(&s.seq.user)
	s.users[id] = model.User{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return id, nil
}

// GetUserByEmail looks the email up case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, model.ErrUserNotFound
}

// GetUserByID returns model.ErrUserNotFound for unknown IDs.
func (s *Store) GetUserByID(ctx context.Context, id uint64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return &u, nil
}

// DeleteUser removes a user with their orders, tickets and refresh tokens.
func (s *Store) DeleteUser(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return model.ErrUserNotFound
	}
	delete(s.users, id)
	for oid, o := range s.orders {
		if o.UserID == id {
			s.deleteOrderLocked(oid)
		}
	}
	for h, t := range s.tokens {
		if t.userID == id {
			delete(s.tokens, h)
		}
	}
	return nil
}

// ---- Refresh tokens ----

// StoreRefresh keeps a refresh token hash for userID.
func (s *Store) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return model.ErrUserNotFound
	}
	s.tokens[tokenHash] = tokenRow{userID: userID, expiresAt: expiresAt}
	return nil
}

// ValidateRefresh returns the owner of a stored, unrevoked and unexpired
// refresh token.
func (s *Store) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[tokenHash]
	if !ok || t.revokedAt != nil || !s.now().Before(t.expiresAt) {
		return 0, model.ErrInvalidRefresh
	}
	return t.userID, nil
}

// RevokeByHash revokes a live refresh token and fails with
// model.ErrInvalidRefresh if the token is unknown, revoked or expired.
func (s *Store) RevokeByHash(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenHash]
	if !ok || t.revokedAt != nil || !s.now().Before(t.expiresAt) {
		return model.ErrInvalidRefresh
	}
	now := s.now().UTC()
	t.revokedAt = &now
	s.tokens[tokenHash] = t
	return nil
}

// RevokeAllForUser revokes every live refresh token of the user.
func (s *Store) RevokeAllForUser(ctx context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	for h, t := range s.tokens {
		if t.userID == userID && t.revokedAt == nil {
			t.revokedAt = &now
			s.tokens[h] = t
		}
	}
	return nil
}
