package scheduler

import (
	"reflect"
	"testing"
	"time"

	"clipflow/internal/domain"
)

func timePtr(t time.Time) *time.Time { return &t }

func resolved(id, platform string, clipType domain.ClipType, scheduledFor *time.Time) ResolvedPost {
	post := remotePost(id, platform, "content "+id)
	post.ScheduledFor = scheduledFor
	return ResolvedPost{Post: post, Platform: platform, ClipType: clipType}
}

func newTestPlanner(t *testing.T, now time.Time) *Planner {
	t.Helper()
	cfg := testSchedule()
	return &Planner{Schedule: cfg, Slots: newTestGenerator(t, cfg, now)}
}

func TestBuildAssignsByCurrentScheduleOrder(t *testing.T) {
	p := newTestPlanner(t, sundayNoon)

	early := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	late := time.Date(2026, 9, 3, 8, 0, 0, 0, time.UTC)
	res := Resolution{Posts: []ResolvedPost{
		resolved("later", "x", domain.ClipShort, timePtr(late)),
		resolved("earlier", "x", domain.ClipShort, timePtr(early)),
		resolved("unscheduled", "x", domain.ClipShort, nil),
	}}

	plan := p.Build(res)
	if len(plan.Posts) != 3 {
		t.Fatalf("planned %d posts, want 3", len(plan.Posts))
	}
	order := []string{plan.Posts[0].Post.ID, plan.Posts[1].Post.ID, plan.Posts[2].Post.ID}
	want := []string{"earlier", "later", "unscheduled"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("assignment order = %v, want %v", order, want)
	}
	for i := 1; i < len(plan.Posts); i++ {
		if !plan.Posts[i-1].NewScheduledFor.Before(plan.Posts[i].NewScheduledFor) {
			t.Fatalf("slots not strictly increasing: %v then %v", plan.Posts[i-1].NewScheduledFor, plan.Posts[i].NewScheduledFor)
		}
	}
}

func TestBuildSkipsPostsAlreadyAtTheirSlot(t *testing.T) {
	p := newTestPlanner(t, sundayNoon)

	slot := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	res := Resolution{Posts: []ResolvedPost{
		resolved("aligned", "x", domain.ClipShort, timePtr(slot)),
	}}

	plan := p.Build(res)
	if plan.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", plan.Skipped)
	}
	if len(plan.Posts) != 0 {
		t.Fatalf("planned %d posts, want 0", len(plan.Posts))
	}
}

func TestBuildDraftAtSlotTimeStillRescheduled(t *testing.T) {
	p := newTestPlanner(t, sundayNoon)

	slot := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	rp := resolved("draft", "x", domain.ClipShort, timePtr(slot))
	rp.Post.Status = "draft"

	plan := p.Build(Resolution{Posts: []ResolvedPost{rp}})
	if plan.Skipped != 0 {
		t.Fatalf("skipped = %d, want 0 for a draft post", plan.Skipped)
	}
	if len(plan.Posts) != 1 {
		t.Fatalf("planned %d posts, want 1", len(plan.Posts))
	}
}

func TestBuildCancelsGroupsWithoutSchedule(t *testing.T) {
	p := newTestPlanner(t, sundayNoon)

	res := Resolution{Posts: []ResolvedPost{
		resolved("orphan", "tiktok", domain.ClipShort, nil),
	}}

	plan := p.Build(res)
	if len(plan.ToCancel) != 1 {
		t.Fatalf("to cancel = %d, want 1", len(plan.ToCancel))
	}
	if plan.ToCancel[0].Reason != reasonNoSchedule {
		t.Fatalf("reason = %q, want %q", plan.ToCancel[0].Reason, reasonNoSchedule)
	}
}

func TestBuildDoesNotReCancelCancelledPosts(t *testing.T) {
	p := newTestPlanner(t, sundayNoon)

	rp := resolved("gone", "tiktok", domain.ClipShort, nil)
	rp.Post.Status = "cancelled"

	plan := p.Build(Resolution{Posts: []ResolvedPost{rp}})
	if len(plan.ToCancel) != 0 {
		t.Fatalf("to cancel = %d, want 0 for already-cancelled posts", len(plan.ToCancel))
	}
}

func TestBuildCancelsOverflowWhenSlotsRunOut(t *testing.T) {
	p := newTestPlanner(t, sundayNoon)
	p.Slots.HorizonDays = 2 // one Monday only

	res := Resolution{Posts: []ResolvedPost{
		resolved("a", "x", domain.ClipShort, nil),
		resolved("b", "x", domain.ClipShort, nil),
		resolved("c", "x", domain.ClipShort, nil),
	}}

	plan := p.Build(res)
	if len(plan.Posts) != 2 {
		t.Fatalf("planned %d posts, want 2 (Monday has two slots)", len(plan.Posts))
	}
	if len(plan.ToCancel) != 1 {
		t.Fatalf("to cancel = %d, want 1", len(plan.ToCancel))
	}
	if plan.ToCancel[0].Reason != reasonNoSlots {
		t.Fatalf("reason = %q, want %q", plan.ToCancel[0].Reason, reasonNoSlots)
	}
}

func TestBuildSharesBookingsAcrossGroups(t *testing.T) {
	cfg := testSchedule()
	cfg.Platforms["x"]["video"] = cfg.Platforms["x"]["short"]
	p := &Planner{Schedule: cfg, Slots: newTestGenerator(t, cfg, sundayNoon)}

	res := Resolution{Posts: []ResolvedPost{
		resolved("s", "x", domain.ClipShort, nil),
		resolved("v", "x", domain.ClipVideo, nil),
	}}

	plan := p.Build(res)
	if len(plan.Posts) != 2 {
		t.Fatalf("planned %d posts, want 2", len(plan.Posts))
	}
	if plan.Posts[0].NewScheduledFor.Equal(plan.Posts[1].NewScheduledFor) {
		t.Fatalf("both groups booked the same slot %v", plan.Posts[0].NewScheduledFor)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	res := Resolution{Posts: []ResolvedPost{
		resolved("a", "x", domain.ClipShort, timePtr(time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC))),
		resolved("b", "x", domain.ClipShort, nil),
		resolved("c", "tiktok", domain.ClipShort, nil),
	}}

	first := newTestPlanner(t, sundayNoon).Build(res)
	second := newTestPlanner(t, sundayNoon).Build(res)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("plans differ across runs:\n%+v\n%+v", first, second)
	}
}

func TestBuildRoundTripSkipsEverything(t *testing.T) {
	// Applying a plan and realigning again must be a no-op: every post now
	// sits at its assigned slot and registers as skipped.
	p := newTestPlanner(t, sundayNoon)
	res := Resolution{Posts: []ResolvedPost{
		resolved("a", "x", domain.ClipShort, nil),
		resolved("b", "x", domain.ClipShort, nil),
	}}
	plan := p.Build(res)
	if len(plan.Posts) != 2 {
		t.Fatalf("planned %d posts, want 2", len(plan.Posts))
	}

	var after []ResolvedPost
	for _, rp := range plan.Posts {
		moved := rp.Post
		moved.ScheduledFor = timePtr(rp.NewScheduledFor)
		after = append(after, ResolvedPost{Post: moved, Platform: rp.Platform, ClipType: rp.ClipType})
	}

	second := newTestPlanner(t, sundayNoon).Build(Resolution{Posts: after})
	if second.Skipped != 2 {
		t.Fatalf("skipped = %d, want 2", second.Skipped)
	}
	if len(second.Posts) != 0 || len(second.ToCancel) != 0 {
		t.Fatalf("round trip not a no-op: %+v", second)
	}
}
