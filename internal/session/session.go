// Package session stores login and guest sessions keyed by a random cookie value.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kjstillabower/project-tracker-service/internal/models"
)

// Session is the server-side state behind a session cookie.
// Guests have no account; their projects live in GuestProjects.
type Session struct {
	ID            string                    `json:"id"`
	Username      string                    `json:"username,omitempty"`
	UserID        string                    `json:"userId,omitempty"`
	IsAdmin       bool                      `json:"isAdmin,omitempty"`
	IsGuest       bool                      `json:"isGuest,omitempty"`
	GuestProjects map[string]models.Project `json:"guestProjects"`
	CreatedAt     time.Time                 `json:"createdAt"`
}

// LoggedIn reports whether the session belongs to a registered user.
func (s *Session) LoggedIn() bool {
	return s != nil && !s.IsGuest && s.UserID != ""
}

// Store defines the interface for session storage implementations.
// Get returns (nil, false, nil) for unknown or expired sessions. Set refreshes the TTL.
type Store interface {
	Get(ctx context.Context, id string) (*Session, bool, error)
	Set(ctx context.Context, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// NewID returns a random session identifier.
func NewID() string {
	return uuid.NewString()
}

// NewUser returns a fresh session for a registered user.
func NewUser(username, userID string, isAdmin bool) *Session {
	return &Session{
		ID:        NewID(),
		Username:  username,
		UserID:    userID,
		IsAdmin:   isAdmin,
		CreatedAt: time.Now().UTC(),
	}
}

// NewGuest returns a fresh guest session with no projects.
func NewGuest() *Session {
	return &Session{
		ID:            NewID(),
		IsGuest:       true,
		GuestProjects: make(map[string]models.Project),
		CreatedAt:     time.Now().UTC(),
	}
}
