// Package messages sends outbound texts through the provider.
package messages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"phoneb/internal/contacts"
	"phoneb/internal/credentials"
	"phoneb/internal/history"
	"phoneb/internal/telephony"
)

// ErrNoFromNumber means the resolved account carries no originating number.
var ErrNoFromNumber = errors.New("messages: no originating number configured")

type Resolver interface {
	Resolve(ctx context.Context, userID, accountRef string) (credentials.Resolved, error)
}

// Service is the server-side message flow, the messaging twin of the call
// origination service.
type Service struct {
	resolver Resolver
	provider telephony.API
	contacts contacts.Repository
	history  *history.Service

	clock func() time.Time
	log   *slog.Logger
}

func NewService(
	resolver Resolver,
	provider telephony.API,
	contactRepo contacts.Repository,
	historySvc *history.Service,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		resolver: resolver,
		provider: provider,
		contacts: contactRepo,
		history:  historySvc,
		clock:    time.Now,
		log:      log,
	}
}

// Send delivers body to the given address and returns the provider message
// id. Contact and history writes are best-effort once the provider accepted
// the message.
func (s *Service) Send(ctx context.Context, userID, to, body, accountRef string) (string, error) {
	if to == "" || body == "" {
		return "", fmt.Errorf("messages: destination and body are required")
	}

	res, err := s.resolver.Resolve(ctx, userID, accountRef)
	if err != nil {
		return "", err
	}
	if res.FromNumber == "" {
		return "", ErrNoFromNumber
	}

	result, err := s.provider.SendMessage(ctx, res.Credentials(), res.FromNumber, to, body)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	now := s.clock().UTC()
	if err := s.contacts.Touch(ctx, userID, to, contacts.TypeMessage, now); err != nil {
		s.log.Warn("contact upsert failed after message", "user_id", userID, "err", err)
	}
	if err := s.history.AppendMessage(ctx, history.MessageEntry{
		UserID:      userID,
		PhoneNumber: to,
		Content:     body,
		Direction:   history.DirectionOutgoing,
		AccountSID:  res.AccountSID,
		MessageSID:  result.SID,
		Timestamp:   now,
	}); err != nil {
		s.log.Warn("message history write failed", "user_id", userID, "err", err)
	}

	return result.SID, nil
}
