package contacts

import (
	"context"
	"time"
)

// Repository stores one contact per (user, phone number).
type Repository interface {
	// Touch upserts: a missing contact is created, an existing one gets its
	// last-contacted timestamp and contact type bumped.
	Touch(ctx context.Context, userID, phoneNumber, contactType string, at time.Time) error
	Get(ctx context.Context, userID, phoneNumber string) (Contact, error)
	ListByUser(ctx context.Context, userID string) ([]Contact, error)
}
