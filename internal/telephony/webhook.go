package telephony

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// InboundEvent is the parsed form of a provider webhook delivery. CallSID and
// MessageSID are mutually exclusive; exactly one is set on a valid event.
type InboundEvent struct {
	CallSID    string `json:"CallSid"`
	MessageSID string `json:"MessageSid"`
	AccountSID string `json:"AccountSid"`

	From string `json:"From"`
	To   string `json:"To"`

	// Call-only fields.
	CallStatus   string `json:"CallStatus"`
	CallDuration int    `json:"-"`

	// Message-only field.
	Body string `json:"Body"`
}

type EventKind string

const (
	EventKindCall    EventKind = "call"
	EventKindMessage EventKind = "message"
)

var ErrUnclassifiableEvent = errors.New("telephony: event has neither CallSid nor MessageSid")

// Kind classifies the event by correlation id presence.
func (e InboundEvent) Kind() (EventKind, error) {
	switch {
	case e.CallSID != "" && e.MessageSID != "":
		return "", ErrUnclassifiableEvent
	case e.CallSID != "":
		return EventKindCall, nil
	case e.MessageSID != "":
		return EventKindMessage, nil
	default:
		return "", ErrUnclassifiableEvent
	}
}

// ParseInboundEvent accepts the provider's form-encoded default as well as
// JSON payloads (some delivery configurations send application/json).
func ParseInboundEvent(r *http.Request) (InboundEvent, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		return parseJSONEvent(r)
	}
	return parseFormEvent(r)
}

func parseFormEvent(r *http.Request) (InboundEvent, error) {
	if err := r.ParseForm(); err != nil {
		return InboundEvent{}, err
	}
	e := InboundEvent{
		CallSID:    r.PostFormValue("CallSid"),
		MessageSID: r.PostFormValue("MessageSid"),
		AccountSID: r.PostFormValue("AccountSid"),
		From:       normalizePhone(r.PostFormValue("From")),
		To:         normalizePhone(r.PostFormValue("To")),
		CallStatus: r.PostFormValue("CallStatus"),
		Body:       r.PostFormValue("Body"),
	}
	if v := r.PostFormValue("CallDuration"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			e.CallDuration = n
		}
	}
	return e, nil
}

func parseJSONEvent(r *http.Request) (InboundEvent, error) {
	var raw struct {
		InboundEvent
		CallDuration json.Number `json:"CallDuration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return InboundEvent{}, err
	}
	e := raw.InboundEvent
	e.From = normalizePhone(e.From)
	e.To = normalizePhone(e.To)
	if raw.CallDuration != "" {
		if n, err := raw.CallDuration.Int64(); err == nil {
			e.CallDuration = int(n)
		}
	}
	return e, nil
}

func normalizePhone(s string) string {
	// The provider sometimes sends "anonymous" or empty; keep as-is.
	return strings.TrimSpace(s)
}
