// Package calls originates outbound calls through the provider.
package calls

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
	"phoneb/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// ErrNoFromNumber means the resolved account carries no originating number.
var ErrNoFromNumber = errors.New("calls: no originating number configured")

const (
	// maxConcurrentPerUser caps simultaneous outbound originations per user.
	maxConcurrentPerUser = 3
	concurrencyTTL       = 4 * time.Hour
)

var ErrTooManyConcurrentCalls = errors.New("calls: too many concurrent calls")

type Resolver interface {
	Resolve(ctx context.Context, userID, accountRef string) (credentials.Resolved, error)
}

// Service is the server-side call origination flow: resolve credentials,
// place the call, then log it.
type Service struct {
	resolver Resolver
	provider telephony.API
	contacts contacts.Repository
	history  *history.Service
	rdb      *redis.Client

	// instructionURL is where the provider fetches call-handling TwiML.
	instructionURL string

	clock func() time.Time
	log   *slog.Logger
}

func NewService(
	resolver Resolver,
	provider telephony.API,
	contactRepo contacts.Repository,
	historySvc *history.Service,
	rdb *redis.Client,
	instructionURL string,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		resolver:       resolver,
		provider:       provider,
		contacts:       contactRepo,
		history:        historySvc,
		rdb:            rdb,
		instructionURL: instructionURL,
		clock:          time.Now,
		log:            log,
	}
}

// PlaceCall originates a call from the user's resolved number to the given
// address and returns the provider call id. Contact and history writes are
// best-effort: once the provider accepted the call it is never reported as
// failed over a bookkeeping write.
func (s *Service) PlaceCall(ctx context.Context, userID, to, accountRef string) (string, error) {
	if to == "" {
		return "", fmt.Errorf("calls: destination is required")
	}

	res, err := s.resolver.Resolve(ctx, userID, accountRef)
	if err != nil {
		return "", err
	}
	if res.FromNumber == "" {
		return "", ErrNoFromNumber
	}

	release, err := s.acquireSlot(ctx, userID)
	if err != nil {
		return "", err
	}
	defer release()

	result, err := s.provider.CreateCall(ctx, res.Credentials(), res.FromNumber, to, s.instructionURL)
	if err != nil {
		return "", fmt.Errorf("place call: %w", err)
	}

	now := s.clock().UTC()
	if err := s.contacts.Touch(ctx, userID, to, contacts.TypeCall, now); err != nil {
		s.log.Warn("contact upsert failed after call", "user_id", userID, "err", err)
	}
	if err := s.history.AppendCall(ctx, history.CallEntry{
		UserID:      userID,
		PhoneNumber: to,
		Direction:   history.DirectionOutgoing,
		Status:      "initiated",
		AccountSID:  res.AccountSID,
		CallSID:     result.SID,
		Timestamp:   now,
	}); err != nil {
		s.log.Warn("call history write failed", "user_id", userID, "err", err)
	}

	return result.SID, nil
}

// acquireSlot enforces the per-user concurrency cap. Redis being down never
// blocks calling; the cap degrades to unlimited.
func (s *Service) acquireSlot(ctx context.Context, userID string) (func(), error) {
	if s.rdb == nil {
		return func() {}, nil
	}
	key := "calls:concurrent:" + userID
	ok, err := utils.AcquireConcurrencyCap(ctx, s.rdb, key, maxConcurrentPerUser, concurrencyTTL)
	if err != nil {
		s.log.Warn("concurrency cap unavailable", "err", err)
		return func() {}, nil
	}
	if !ok {
		return nil, ErrTooManyConcurrentCalls
	}
	return func() {
		if err := utils.ReleaseConcurrencyCap(context.WithoutCancel(ctx), s.rdb, key); err != nil {
			s.log.Warn("concurrency cap release failed", "err", err)
		}
	}, nil
}
