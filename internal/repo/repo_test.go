package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"clipflow/internal/db"
	"clipflow/internal/domain"
	"clipflow/internal/events"
	"clipflow/internal/migrate"
)

func newTestRepo(t *testing.T) Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatal(err)
	}
	return Repo{DB: conn}
}

func testItem(id, platform, status string) domain.QueueItem {
	now := time.Now().UTC().Format(time.RFC3339)
	return domain.QueueItem{
		ID:          id,
		Platform:    platform,
		ClipType:    domain.ClipShort,
		PostContent: "content for " + id,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestItemInsertAndGet(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	want := testItem("a", "x", "pending")
	if err := r.InsertItem(ctx, want); err != nil {
		t.Fatal(err)
	}

	got, err := r.GetItem(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if got.Platform != "x" || got.Status != "pending" || got.PostContent != want.PostContent {
		t.Fatalf("item = %+v", got)
	}
	if got.LatePostID != nil || got.ScheduledFor != nil {
		t.Fatalf("unset optionals came back non-nil: %+v", got)
	}
}

func TestGetItemNotFound(t *testing.T) {
	r := newTestRepo(t)
	if _, err := r.GetItem(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestListItemsFilters(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	early := testItem("a", "x", "pending")
	early.CreatedAt = "2026-09-01T10:00:00Z"
	late := testItem("b", "x", "approved")
	late.CreatedAt = "2026-09-02T10:00:00Z"
	other := testItem("c", "tiktok", "pending")
	other.CreatedAt = "2026-09-03T10:00:00Z"
	for _, it := range []domain.QueueItem{late, early, other} {
		if err := r.InsertItem(ctx, it); err != nil {
			t.Fatal(err)
		}
	}

	all, err := r.ListItems(ctx, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != "a" || all[2].ID != "c" {
		t.Fatalf("order = %+v", all)
	}

	pending, err := r.ListItems(ctx, "pending", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %+v", pending)
	}

	xPending, err := r.ListItems(ctx, "pending", "x")
	if err != nil {
		t.Fatal(err)
	}
	if len(xPending) != 1 || xPending[0].ID != "a" {
		t.Fatalf("x pending = %+v", xPending)
	}
}

func TestPublishLifecycle(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if err := r.InsertItem(ctx, testItem("a", "x", "approved")); err != nil {
		t.Fatal(err)
	}

	slot := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	if err := r.MarkPublished(ctx, "a", "post-1", slot, "https://x.com/p/1"); err != nil {
		t.Fatal(err)
	}

	got, err := r.GetItem(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "published" {
		t.Fatalf("status = %q", got.Status)
	}
	if got.LatePostID == nil || *got.LatePostID != "post-1" {
		t.Fatalf("late post id = %v", got.LatePostID)
	}
	if got.ScheduledFor == nil || *got.ScheduledFor != "2026-09-07T09:00:00Z" {
		t.Fatalf("scheduled for = %v", got.ScheduledFor)
	}

	published, err := r.ListPublished(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(published) != 1 || published[0].PostContent != got.PostContent {
		t.Fatalf("published = %+v", published)
	}
}

func TestMarkFailedRecordsReason(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if err := r.InsertItem(ctx, testItem("a", "x", "approved")); err != nil {
		t.Fatal(err)
	}
	if err := r.MarkFailed(ctx, "a", "no account configured for platform x"); err != nil {
		t.Fatal(err)
	}

	got, _ := r.GetItem(ctx, "a")
	if got.Status != "failed" || got.FailureReason == "" {
		t.Fatalf("item = %+v", got)
	}
}

func TestSetItemStatusMissingItem(t *testing.T) {
	r := newTestRepo(t)
	if err := r.SetItemStatus(context.Background(), "missing", "approved", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestCountItemsByStatus(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	for _, it := range []domain.QueueItem{
		testItem("a", "x", "pending"),
		testItem("b", "x", "pending"),
		testItem("c", "x", "published"),
	} {
		if err := r.InsertItem(ctx, it); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := r.CountItemsByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts["pending"] != 2 || counts["published"] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestEventsCursorPagination(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	w := events.Writer{DB: r.DB}

	for i := 0; i < 3; i++ {
		if err := w.Append(ctx, "item.created", "queue_item", "a", "tester", events.EventPayload{"n": i}); err != nil {
			t.Fatal(err)
		}
	}

	first, err := r.EventsAfter(ctx, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 {
		t.Fatalf("page = %+v", first)
	}

	rest, err := r.EventsAfter(ctx, 10, first[1].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 1 || rest[0].ID <= first[1].ID {
		t.Fatalf("rest = %+v", rest)
	}

	latest, err := r.LatestEventID(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if latest != rest[0].ID {
		t.Fatalf("latest = %d, want %d", latest, rest[0].ID)
	}
}

func TestEventActorDefaultsToSystem(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	w := events.Writer{DB: r.DB}

	if err := w.Append(ctx, "schedule.reloaded", "schedule", "", "", nil); err != nil {
		t.Fatal(err)
	}
	evts, err := r.EventsAfter(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) != 1 || evts[0].ActorID != "system" {
		t.Fatalf("events = %+v", evts)
	}
}

func TestAPIKeyRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	raw := "cf_live_secret"
	key := domain.APIKey{ID: "k1", ActorID: "tester", Name: "laptop", KeyHash: HashAPIKey(raw)}
	if err := r.InsertAPIKey(ctx, key); err != nil {
		t.Fatal(err)
	}

	got, err := r.GetAPIKeyByHash(ctx, HashAPIKey("  cf_live_secret  "))
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "k1" || got.ActorID != "tester" {
		t.Fatalf("key = %+v", got)
	}

	keys, err := r.ListAPIKeys(ctx, "tester")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 {
		t.Fatalf("keys = %+v", keys)
	}

	if err := r.DeleteAPIKey(ctx, "k1"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.GetAPIKeyByHash(ctx, HashAPIKey(raw)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
