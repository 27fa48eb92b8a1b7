package accounts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service owns the account write path. The default-flag invariant lives
// here, not in storage: after any successful write a user with accounts has
// exactly one default.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

type CreateRequest struct {
	Name        string `json:"account_name"`
	AccountSID  string `json:"account_sid"`
	AuthToken   string `json:"auth_token"`
	AppSID      string `json:"app_sid,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	IsDefault   bool   `json:"is_default"`
}

func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (Account, error) {
	if userID == "" || strings.TrimSpace(req.Name) == "" || req.AccountSID == "" || req.AuthToken == "" {
		return Account{}, ErrInvalidArgument
	}

	existing, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return Account{}, err
	}

	now := s.clock().UTC()
	a := Account{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        strings.TrimSpace(req.Name),
		AccountSID:  req.AccountSID,
		AuthToken:   req.AuthToken,
		AppSID:      req.AppSID,
		PhoneNumber: req.PhoneNumber,
		// The first account is always the default.
		IsDefault: req.IsDefault || len(existing) == 0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// Create demotes the previous default itself so the flag never
	// collides with the uniqueness constraint on the storage side.
	if err := s.repo.Create(ctx, a); err != nil {
		return Account{}, err
	}
	return a, nil
}

type UpdateRequest struct {
	Name        *string `json:"account_name,omitempty"`
	AccountSID  *string `json:"account_sid,omitempty"`
	AuthToken   *string `json:"auth_token,omitempty"`
	AppSID      *string `json:"app_sid,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

func (s *Service) Update(ctx context.Context, userID, accountID string, req UpdateRequest) (Account, error) {
	a, err := s.repo.Get(ctx, userID, accountID)
	if err != nil {
		return Account{}, err
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return Account{}, ErrInvalidArgument
		}
		a.Name = strings.TrimSpace(*req.Name)
	}
	if req.AccountSID != nil {
		a.AccountSID = *req.AccountSID
	}
	if req.AuthToken != nil {
		a.AuthToken = *req.AuthToken
	}
	if req.AppSID != nil {
		a.AppSID = *req.AppSID
	}
	if req.PhoneNumber != nil {
		a.PhoneNumber = *req.PhoneNumber
	}
	a.UpdatedAt = s.clock().UTC()
	if err := s.repo.Update(ctx, a); err != nil {
		return Account{}, err
	}
	return a, nil
}

// Delete removes an account. Deleting the default promotes the most recently
// created survivor so the one-default invariant holds.
func (s *Service) Delete(ctx context.Context, userID, accountID string) error {
	a, err := s.repo.Get(ctx, userID, accountID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID, accountID); err != nil {
		return err
	}
	if !a.IsDefault {
		return nil
	}

	remaining, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		return nil
	}
	// ListByUser is newest-first.
	return s.repo.SetDefault(ctx, userID, remaining[0].ID)
}

func (s *Service) SetDefault(ctx context.Context, userID, accountID string) error {
	if _, err := s.repo.Get(ctx, userID, accountID); err != nil {
		return err
	}
	return s.repo.SetDefault(ctx, userID, accountID)
}

func (s *Service) Get(ctx context.Context, userID, accountID string) (Account, error) {
	return s.repo.Get(ctx, userID, accountID)
}

func (s *Service) List(ctx context.Context, userID string) ([]Account, error) {
	return s.repo.ListByUser(ctx, userID)
}
