package scheduler

import (
	"math/rand"
	"testing"
	"time"

	"clipflow/internal/domain"
)

func newTestPrioritized(t *testing.T, rules []domain.PriorityRule) *PrioritizedPlanner {
	t.Helper()
	cfg := testSchedule()
	return &PrioritizedPlanner{
		Schedule: cfg,
		Slots:    newTestGenerator(t, cfg, sundayNoon),
		Rules:    rules,
		Rand:     rand.New(rand.NewSource(1)),
	}
}

func withContent(rp ResolvedPost, content string) ResolvedPost {
	rp.Post.Content = content
	return rp
}

func TestPrioritizedFullSaturationClaimsFirstSlot(t *testing.T) {
	rules := []domain.PriorityRule{{Keywords: []string{"launch"}, Saturation: 1}}
	p := newTestPrioritized(t, rules)

	early := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	late := time.Date(2026, 9, 3, 8, 0, 0, 0, time.UTC)
	res := Resolution{Posts: []ResolvedPost{
		withContent(resolved("plain", "x", domain.ClipShort, timePtr(early)), "regular update"),
		withContent(resolved("hot", "x", domain.ClipShort, timePtr(late)), "big LAUNCH post"),
	}}

	plan := p.Build(res)
	if len(plan.Posts) != 2 {
		t.Fatalf("planned %d posts, want 2", len(plan.Posts))
	}
	if plan.Posts[0].Post.ID != "hot" {
		t.Fatalf("first slot went to %q, want the keyword-matched post", plan.Posts[0].Post.ID)
	}
}

func TestPrioritizedZeroSaturationReservesMatchedPosts(t *testing.T) {
	// A keyword match reserves the post for its rule even when the rule never
	// fires; the post is cancelled rather than placed from the remainder pool.
	rules := []domain.PriorityRule{{Keywords: []string{"launch"}, Saturation: 0}}
	p := newTestPrioritized(t, rules)
	p.Slots.HorizonDays = 2 // Monday's two slots only

	res := Resolution{Posts: []ResolvedPost{
		withContent(resolved("reserved", "x", domain.ClipShort, nil), "the launch post"),
		withContent(resolved("plain", "x", domain.ClipShort, nil), "regular update"),
	}}

	plan := p.Build(res)
	if len(plan.Posts) != 1 || plan.Posts[0].Post.ID != "plain" {
		t.Fatalf("planned posts = %+v, want only the unmatched post", plan.Posts)
	}
	if len(plan.ToCancel) != 1 || plan.ToCancel[0].Post.ID != "reserved" {
		t.Fatalf("to cancel = %+v, want the reserved post", plan.ToCancel)
	}
	if plan.ToCancel[0].Reason != reasonNoSlots {
		t.Fatalf("reason = %q, want %q", plan.ToCancel[0].Reason, reasonNoSlots)
	}
}

func TestPrioritizedRuleWindowGatesSlots(t *testing.T) {
	rules := []domain.PriorityRule{{
		Keywords:   []string{"launch"},
		Saturation: 1,
		From:       "2026-09-09", // Wednesday; Monday slots are out of window
		To:         "2026-09-30",
	}}
	p := newTestPrioritized(t, rules)
	p.Slots.HorizonDays = 2 // Monday's two slots, both before the window opens

	res := Resolution{Posts: []ResolvedPost{
		withContent(resolved("windowed", "x", domain.ClipShort, nil), "launch teaser"),
		withContent(resolved("plain", "x", domain.ClipShort, nil), "regular update"),
	}}

	plan := p.Build(res)
	// The unmatched post takes a Monday slot; the matched post stays reserved
	// for its rule and is cancelled rather than placed out of window.
	if len(plan.Posts) != 1 || plan.Posts[0].Post.ID != "plain" {
		t.Fatalf("planned posts = %+v, want only plain", plan.Posts)
	}
	if len(plan.ToCancel) != 1 || plan.ToCancel[0].Post.ID != "windowed" {
		t.Fatalf("to cancel = %+v, want the windowed post", plan.ToCancel)
	}
}

func TestPrioritizedRuleOrderIsPriorityRank(t *testing.T) {
	rules := []domain.PriorityRule{
		{Keywords: []string{"alpha"}, Saturation: 1},
		{Keywords: []string{"beta"}, Saturation: 1},
	}
	p := newTestPrioritized(t, rules)

	res := Resolution{Posts: []ResolvedPost{
		withContent(resolved("second", "x", domain.ClipShort, nil), "beta feature"),
		withContent(resolved("first", "x", domain.ClipShort, nil), "alpha feature"),
	}}

	plan := p.Build(res)
	if plan.Posts[0].Post.ID != "first" {
		t.Fatalf("first slot went to %q, want the higher-ranked rule's post", plan.Posts[0].Post.ID)
	}
}

func TestPrioritizedNoScheduleCancelsGroup(t *testing.T) {
	p := newTestPrioritized(t, nil)
	res := Resolution{Posts: []ResolvedPost{
		resolved("orphan", "tiktok", domain.ClipShort, nil),
	}}
	plan := p.Build(res)
	if len(plan.ToCancel) != 1 || plan.ToCancel[0].Reason != reasonNoSchedule {
		t.Fatalf("to cancel = %+v, want one %q cancellation", plan.ToCancel, reasonNoSchedule)
	}
}

func TestPrioritizedSeededPlansAreReproducible(t *testing.T) {
	rules := []domain.PriorityRule{{Keywords: []string{"launch"}, Saturation: 0.5}}
	res := Resolution{Posts: []ResolvedPost{
		withContent(resolved("a", "x", domain.ClipShort, nil), "launch one"),
		withContent(resolved("b", "x", domain.ClipShort, nil), "launch two"),
		withContent(resolved("c", "x", domain.ClipShort, nil), "regular"),
	}}

	build := func() []string {
		p := newTestPrioritized(t, rules)
		p.Rand = rand.New(rand.NewSource(42))
		plan := p.Build(res)
		ids := make([]string, 0, len(plan.Posts))
		for _, rp := range plan.Posts {
			ids = append(ids, rp.Post.ID)
		}
		return ids
	}

	first, second := build(), build()
	if len(first) != len(second) {
		t.Fatalf("plans differ in length: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("seeded plans differ: %v vs %v", first, second)
		}
	}
}
