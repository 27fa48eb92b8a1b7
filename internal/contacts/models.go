package contacts

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("contacts: not found")
	ErrInvalidArgument = errors.New("contacts: invalid argument")
)

// ContactType records how the contact was last reached.
const (
	TypeCall    = "call"
	TypeMessage = "message"
)

type Contact struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	PhoneNumber   string     `json:"phone_number"`
	Name          string     `json:"name,omitempty"`
	Company       string     `json:"company,omitempty"`
	Email         string     `json:"email,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	ContactType   string     `json:"contact_type,omitempty"`
	Favorite      bool       `json:"favorite"`
	LastContacted *time.Time `json:"last_contacted,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
