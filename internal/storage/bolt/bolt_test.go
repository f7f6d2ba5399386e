package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/luminapp/lumin/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "lumin.bolt"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	return store
}

func TestUserStoreEmailIndex(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	user := storage.User{ID: "u1", Email: "A@B.com", PasswordHash: "x"}
	if err := store.Users().Upsert(context.Background(), user); err != nil {
		t.Fatalf("upsert user: %v", err)
	}

	got, err := store.Users().GetByEmail(context.Background(), "a@b.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != "u1" {
		t.Fatalf("expected user u1, got %s", got.ID)
	}

	// Changing the address must retire the old index entry.
	user.Email = "new@b.com"
	if err := store.Users().Upsert(context.Background(), user); err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	if _, err := store.Users().GetByEmail(context.Background(), "a@b.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for stale email, got %v", err)
	}
	if _, err := store.Users().GetByEmail(context.Background(), "new@b.com"); err != nil {
		t.Fatalf("get by new email: %v", err)
	}
}

func TestTaskStoreAddWorkTime(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	task := storage.Task{ID: "t1", UserID: "u1", Text: "write tests"}
	if err := store.Tasks().Upsert(context.Background(), task); err != nil {
		t.Fatalf("upsert task: %v", err)
	}

	if err := store.Tasks().AddWorkTime(context.Background(), "u1", "t1", 25); err != nil {
		t.Fatalf("add work time: %v", err)
	}
	if err := store.Tasks().AddWorkTime(context.Background(), "u1", "t1", 5); err != nil {
		t.Fatalf("add work time: %v", err)
	}

	got, err := store.Tasks().Get(context.Background(), "u1", "t1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.TotalWorkTime != 30 {
		t.Fatalf("expected 30 work minutes, got %d", got.TotalWorkTime)
	}

	if err := store.Tasks().AddWorkTime(context.Background(), "u1", "t1", -5); err == nil {
		t.Fatal("expected error for negative work time delta")
	}
}

func TestTaskStoreListIsolatesUsers(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	tasks := []storage.Task{
		{ID: "t1", UserID: "u1", Text: "one"},
		{ID: "t2", UserID: "u1", Text: "two"},
		{ID: "t3", UserID: "u2", Text: "three"},
	}
	for _, task := range tasks {
		if err := store.Tasks().Upsert(context.Background(), task); err != nil {
			t.Fatalf("upsert task: %v", err)
		}
	}

	list, err := store.Tasks().List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 tasks for u1, got %d", len(list))
	}
}

func TestEntitlementStoreIdempotentUpsert(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ent := storage.UserEntitlement{
		UserID:           "u1",
		Email:            "a@b.com",
		Premium:          true,
		StripeCustomerID: "cus_1",
	}

	for i := 0; i < 2; i++ {
		if err := store.Entitlements().Upsert(context.Background(), ent); err != nil {
			t.Fatalf("upsert entitlement (attempt %d): %v", i+1, err)
		}
	}

	got, err := store.Entitlements().Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get entitlement: %v", err)
	}
	if !got.Premium {
		t.Fatal("expected premium to be set")
	}
	if got.StripeCustomerID != "cus_1" {
		t.Fatalf("expected customer cus_1, got %s", got.StripeCustomerID)
	}
}

func TestEntitlementStorePremiumIsSticky(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	if err := store.Entitlements().Upsert(context.Background(), storage.UserEntitlement{
		UserID: "u1", Premium: true, StripeCustomerID: "cus_1",
	}); err != nil {
		t.Fatalf("upsert entitlement: %v", err)
	}

	// A later write without the flag must not revoke the grant.
	if err := store.Entitlements().Upsert(context.Background(), storage.UserEntitlement{
		UserID: "u1", Email: "a@b.com",
	}); err != nil {
		t.Fatalf("upsert entitlement: %v", err)
	}

	got, err := store.Entitlements().Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get entitlement: %v", err)
	}
	if !got.Premium {
		t.Fatal("premium grant was revoked by a non-premium write")
	}
	if got.StripeCustomerID != "cus_1" {
		t.Fatalf("customer ID was cleared, got %q", got.StripeCustomerID)
	}
}

func TestSessionStoreCleanup(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now().Add(-time.Hour)

	sessions := []storage.FocusSession{
		{ID: "s1", UserID: "u1", TaskID: "t1", DurationMinutes: 25, SessionType: storage.SessionFocus, StartedAt: old},
		{ID: "s2", UserID: "u1", TaskID: "t1", DurationMinutes: 25, SessionType: storage.SessionFocus, StartedAt: recent},
	}
	for _, session := range sessions {
		if err := store.FocusSessions().Add(context.Background(), session); err != nil {
			t.Fatalf("add session: %v", err)
		}
	}

	deleted, err := store.FocusSessions().DeleteBefore(context.Background(), time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("delete before: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted session, got %d", deleted)
	}

	remaining, err := store.FocusSessions().ListByTask(context.Background(), "u1", "t1")
	if err != nil {
		t.Fatalf("list by task: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "s2" {
		t.Fatalf("expected only s2 to remain, got %+v", remaining)
	}
}
