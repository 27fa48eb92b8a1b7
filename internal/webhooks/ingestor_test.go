package webhooks

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"phoneb/internal/contacts"
	"phoneb/internal/history"
	"phoneb/internal/telephony"
)

type stubOwners struct {
	owners []string
	err    error
}

func (s *stubOwners) MatchOwners(ctx context.Context, accountSID string) ([]string, error) {
	return s.owners, s.err
}

func newIngestor(owners *stubOwners) (*Ingestor, *history.MemoryRepo, *contacts.MemoryRepo) {
	historyRepo := history.NewMemoryRepo()
	contactRepo := contacts.NewMemoryRepo()
	ing := NewIngestor(owners, contactRepo, history.NewService(historyRepo), nil)
	ing.clock = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	return ing, historyRepo, contactRepo
}

func TestIngestFansOutToEveryOwner(t *testing.T) {
	ing, historyRepo, contactRepo := newIngestor(&stubOwners{owners: []string{"u1", "u2"}})
	ctx := context.Background()

	doc := ing.Ingest(ctx, telephony.InboundEvent{
		CallSID:      "CA-in",
		AccountSID:   "ACX",
		From:         "+15550107777",
		CallStatus:   "completed",
		CallDuration: 42,
	})
	if !strings.Contains(doc, "<Response") {
		t.Fatalf("expected twiml ack, got %q", doc)
	}

	for _, userID := range []string{"u1", "u2"} {
		entries, _ := historyRepo.ListCalls(ctx, userID, 10)
		if len(entries) != 1 {
			t.Fatalf("expected one history row for %s, got %d", userID, len(entries))
		}
		e := entries[0]
		if e.Direction != history.DirectionIncoming || e.CallSID != "CA-in" || e.DurationSeconds != 42 {
			t.Fatalf("unexpected row for %s: %+v", userID, e)
		}
		if _, err := contactRepo.Get(ctx, userID, "+15550107777"); err != nil {
			t.Fatalf("expected contact for %s: %v", userID, err)
		}
	}
}

func TestIngestMessageEventAcksWithReply(t *testing.T) {
	ing, historyRepo, _ := newIngestor(&stubOwners{owners: []string{"u1"}})
	ctx := context.Background()

	doc := ing.Ingest(ctx, telephony.InboundEvent{
		MessageSID: "SM-in",
		AccountSID: "ACX",
		From:       "+15550107777",
		Body:       "hi",
	})
	if !strings.Contains(doc, "<Message>") {
		t.Fatalf("message events get a canned reply, got %q", doc)
	}

	entries, _ := historyRepo.ListMessages(ctx, "u1", 10)
	if len(entries) != 1 || entries[0].Content != "hi" || entries[0].MessageSID != "SM-in" {
		t.Fatalf("unexpected message rows: %+v", entries)
	}
}

func TestIngestUnmatchedEventStillAcks(t *testing.T) {
	ing, historyRepo, _ := newIngestor(&stubOwners{})
	ctx := context.Background()

	doc := ing.Ingest(ctx, telephony.InboundEvent{CallSID: "CA-in", AccountSID: "ACX", From: "+1555"})
	if !strings.Contains(doc, "<Response") {
		t.Fatalf("unmatched event must still ack, got %q", doc)
	}
	entries, _ := historyRepo.ListCalls(ctx, "u1", 10)
	if len(entries) != 0 {
		t.Fatalf("no rows expected for unmatched event")
	}
}

func TestIngestOwnerLookupFailureStillAcks(t *testing.T) {
	ing, _, _ := newIngestor(&stubOwners{err: errors.New("db down")})

	doc := ing.Ingest(context.Background(), telephony.InboundEvent{CallSID: "CA-in", AccountSID: "ACX"})
	if !strings.Contains(doc, "<Response") {
		t.Fatalf("lookup failure must still ack, got %q", doc)
	}
}

func TestIngestUnclassifiableEventStillAcks(t *testing.T) {
	ing, _, _ := newIngestor(&stubOwners{owners: []string{"u1"}})

	doc := ing.Ingest(context.Background(), telephony.InboundEvent{AccountSID: "ACX"})
	if !strings.Contains(doc, "<Response") {
		t.Fatalf("unclassifiable event must still ack, got %q", doc)
	}
}
