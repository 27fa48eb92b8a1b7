// Package webhooks attributes provider-originated events to their owners.
package webhooks

import (
	"context"
	"log/slog"
	"time"

	"phoneb/internal/contacts"
	"phoneb/internal/history"
	"phoneb/internal/telephony"
)

// OwnerMatcher finds every user owning a provider account SID.
type OwnerMatcher interface {
	MatchOwners(ctx context.Context, accountSID string) ([]string, error)
}

// Ingestor records inbound call and message events. It never fails toward
// the provider: whatever happens internally, the caller gets a well-formed
// acknowledgement, because a webhook retry only produces duplicate rows.
type Ingestor struct {
	owners   OwnerMatcher
	contacts contacts.Repository
	history  *history.Service

	clock func() time.Time
	log   *slog.Logger
}

func NewIngestor(owners OwnerMatcher, contactRepo contacts.Repository, historySvc *history.Service, log *slog.Logger) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{
		owners:   owners,
		contacts: contactRepo,
		history:  historySvc,
		clock:    time.Now,
		log:      log,
	}
}

// Ingest fans the event out to every owner of its account SID and returns
// the TwiML acknowledgement body. The returned document is always valid,
// including for events this system cannot attribute.
func (i *Ingestor) Ingest(ctx context.Context, event telephony.InboundEvent) string {
	kind, err := event.Kind()
	if err != nil {
		i.log.Warn("unclassifiable webhook event", "account_sid", event.AccountSID, "err", err)
		return i.ack(kind)
	}

	owners, err := i.owners.MatchOwners(ctx, event.AccountSID)
	if err != nil {
		i.log.Error("owner lookup failed", "account_sid", event.AccountSID, "err", err)
		return i.ack(kind)
	}
	if len(owners) == 0 {
		i.log.Info("webhook event matched no owner", "account_sid", event.AccountSID, "kind", kind)
		return i.ack(kind)
	}

	now := i.clock().UTC()
	for _, userID := range owners {
		i.record(ctx, userID, kind, event, now)
	}
	return i.ack(kind)
}

func (i *Ingestor) record(ctx context.Context, userID string, kind telephony.EventKind, event telephony.InboundEvent, now time.Time) {
	contactType := contacts.TypeCall
	if kind == telephony.EventKindMessage {
		contactType = contacts.TypeMessage
	}
	if err := i.contacts.Touch(ctx, userID, event.From, contactType, now); err != nil {
		i.log.Warn("contact upsert failed for webhook", "user_id", userID, "err", err)
	}

	var recErr error
	switch kind {
	case telephony.EventKindCall:
		status := event.CallStatus
		if status == "" {
			status = "received"
		}
		recErr = i.history.AppendCall(ctx, history.CallEntry{
			UserID:          userID,
			PhoneNumber:     event.From,
			Direction:       history.DirectionIncoming,
			Status:          status,
			DurationSeconds: event.CallDuration,
			AccountSID:      event.AccountSID,
			CallSID:         event.CallSID,
			Timestamp:       now,
		})
	case telephony.EventKindMessage:
		recErr = i.history.AppendMessage(ctx, history.MessageEntry{
			UserID:      userID,
			PhoneNumber: event.From,
			Content:     event.Body,
			Direction:   history.DirectionIncoming,
			AccountSID:  event.AccountSID,
			MessageSID:  event.MessageSID,
			Timestamp:   now,
		})
	}
	if recErr != nil {
		i.log.Warn("history write failed for webhook", "user_id", userID, "kind", kind, "err", recErr)
	}
}

// ack renders the acknowledgement the provider turns into further
// instructions. Message events get a canned reply, everything else an empty
// response document.
func (i *Ingestor) ack(kind telephony.EventKind) string {
	var (
		doc string
		err error
	)
	if kind == telephony.EventKindMessage {
		doc, err = telephony.MessageAck("Thank you for your message. We'll get back to you soon.")
	} else {
		doc, err = telephony.EmptyAck()
	}
	if err != nil {
		// Render failures cannot happen with static documents; guard anyway.
		i.log.Error("twiml render failed", "err", err)
		return `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
	}
	return doc
}
