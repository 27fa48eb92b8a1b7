package contacts

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is the in-memory Repository used by tests.
type MemoryRepo struct {
	mu       sync.Mutex
	contacts map[string]Contact // key: userID + "\x00" + phoneNumber
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{contacts: make(map[string]Contact)}
}

func key(userID, phoneNumber string) string { return userID + "\x00" + phoneNumber }

func (r *MemoryRepo) Touch(ctx context.Context, userID, phoneNumber, contactType string, at time.Time) error {
	if userID == "" || phoneNumber == "" {
		return fmt.Errorf("%w: user id and phone number are required", ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(userID, phoneNumber)
	c, ok := r.contacts[k]
	if !ok {
		c = Contact{
			ID:          uuid.NewString(),
			UserID:      userID,
			PhoneNumber: phoneNumber,
			CreatedAt:   at,
		}
	}
	c.ContactType = contactType
	t := at
	c.LastContacted = &t
	r.contacts[k] = c
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, userID, phoneNumber string) (Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[key(userID, phoneNumber)]
	if !ok {
		return Contact{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Contact
	for _, c := range r.contacts {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := out[i].LastContacted, out[j].LastContacted
		switch {
		case li != nil && lj != nil && !li.Equal(*lj):
			return li.After(*lj)
		case li != nil && lj == nil:
			return true
		case li == nil && lj != nil:
			return false
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
