package history

import "time"

// Direction of a call or message relative to the owning user.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// CallEntry is one immutable call-history row.
type CallEntry struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	PhoneNumber     string    `json:"phone_number"`
	ContactName     string    `json:"contact_name,omitempty"`
	Direction       Direction `json:"direction"`
	Status          string    `json:"status"`
	DurationSeconds int       `json:"duration_seconds,omitempty"`
	AccountSID      string    `json:"account_sid,omitempty"`
	CallSID         string    `json:"call_sid,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// MessageEntry is one immutable message-history row.
type MessageEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	PhoneNumber string    `json:"phone_number"`
	ContactName string    `json:"contact_name,omitempty"`
	Content     string    `json:"content"`
	Direction   Direction `json:"direction"`
	AccountSID  string    `json:"account_sid,omitempty"`
	MessageSID  string    `json:"message_sid,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
