// Package history keeps the immutable call and message log.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for history rows.
//
// It MUST be append-only for writes.
// No Update/Delete methods are provided by design.
type Repository interface {
	AppendCall(ctx context.Context, e CallEntry) error
	AppendMessage(ctx context.Context, e MessageEntry) error
	ListCalls(ctx context.Context, userID string, limit int) ([]CallEntry, error)
	ListMessages(ctx context.Context, userID string, limit int) ([]MessageEntry, error)
}

var ErrInvalidEntry = errors.New("history: invalid entry")

const defaultListLimit = 100

// Service records call and message events.
//
// Callers should treat history writes as best-effort: the action being
// logged already happened and is never rolled back over a failed write.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) AppendCall(ctx context.Context, e CallEntry) error {
	if e.UserID == "" || e.PhoneNumber == "" {
		return ErrInvalidEntry
	}
	if e.Direction != DirectionIncoming && e.Direction != DirectionOutgoing {
		return ErrInvalidEntry
	}
	if e.Status == "" {
		return ErrInvalidEntry
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.clock().UTC()
	}
	return s.repo.AppendCall(ctx, e)
}

func (s *Service) AppendMessage(ctx context.Context, e MessageEntry) error {
	if e.UserID == "" || e.PhoneNumber == "" || e.Content == "" {
		return ErrInvalidEntry
	}
	if e.Direction != DirectionIncoming && e.Direction != DirectionOutgoing {
		return ErrInvalidEntry
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.clock().UTC()
	}
	return s.repo.AppendMessage(ctx, e)
}

// ListCalls returns the user's call log, newest first.
func (s *Service) ListCalls(ctx context.Context, userID string, limit int) ([]CallEntry, error) {
	if userID == "" {
		return nil, ErrInvalidEntry
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.ListCalls(ctx, userID, limit)
}

// ListMessages returns the user's message log, newest first.
func (s *Service) ListMessages(ctx context.Context, userID string, limit int) ([]MessageEntry, error) {
	if userID == "" {
		return nil, ErrInvalidEntry
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.ListMessages(ctx, userID, limit)
}
