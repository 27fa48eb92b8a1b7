package contacts

import (
	"context"
	"testing"
	"time"
)

func TestTouchCreatesThenBumps(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	first := time.Unix(1700000000, 0).UTC()

	if err := repo.Touch(ctx, "u1", "+15550100199", TypeCall, first); err != nil {
		t.Fatalf("touch: %v", err)
	}
	c, err := repo.Get(ctx, "u1", "+15550100199")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.ContactType != TypeCall || c.LastContacted == nil || !c.LastContacted.Equal(first) {
		t.Fatalf("unexpected contact after create: %+v", c)
	}

	second := first.Add(time.Hour)
	if err := repo.Touch(ctx, "u1", "+15550100199", TypeMessage, second); err != nil {
		t.Fatalf("second touch: %v", err)
	}
	c2, err := repo.Get(ctx, "u1", "+15550100199")
	if err != nil {
		t.Fatalf("get after bump: %v", err)
	}
	if c2.ID != c.ID {
		t.Fatalf("touch must not create a second row for the same number")
	}
	if c2.ContactType != TypeMessage || !c2.LastContacted.Equal(second) {
		t.Fatalf("expected bumped contact, got %+v", c2)
	}
	if !c2.CreatedAt.Equal(first) {
		t.Fatalf("created-at must not move on bump")
	}
}

func TestListByUserOrdersByLastContacted(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()

	repo.Touch(ctx, "u1", "+15550100001", TypeCall, base)
	repo.Touch(ctx, "u1", "+15550100002", TypeCall, base.Add(time.Minute))
	repo.Touch(ctx, "u2", "+15550100003", TypeCall, base)

	out, err := repo.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 || out[0].PhoneNumber != "+15550100002" {
		t.Fatalf("expected most recent first for u1, got %+v", out)
	}
}
