package scheduler

import (
	"testing"
	"time"

	"clipflow/internal/config"
	"clipflow/internal/domain"
)

func days(ds ...time.Weekday) []config.Weekday {
	out := make([]config.Weekday, 0, len(ds))
	for _, d := range ds {
		out = append(out, config.Weekday(d))
	}
	return out
}

func testSchedule() *config.ScheduleConfig {
	return &config.ScheduleConfig{
		Timezone: "UTC",
		Platforms: map[string]map[string]config.PlatformSchedule{
			"x": {
				"short": {Slots: []config.Slot{
					{Time: "09:00", Days: days(time.Monday, time.Wednesday)},
					{Time: "15:00", Days: days(time.Monday)},
				}},
			},
		},
	}
}

func newTestGenerator(t *testing.T, cfg *config.ScheduleConfig, now time.Time) *SlotGenerator {
	t.Helper()
	g, err := NewSlotGenerator(cfg)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	g.Now = func() time.Time { return now }
	return g
}

// Sunday noon, the week of 2026-09-07.
var sundayNoon = time.Date(2026, 9, 6, 12, 0, 0, 0, time.UTC)

func TestGenerateWalksSlotsInOrder(t *testing.T) {
	g := newTestGenerator(t, testSchedule(), sundayNoon)

	got := g.Generate("x", domain.ClipShort, 3, BookedSet{})
	want := []time.Time{
		time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 7, 15, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 9, 9, 0, 0, 0, time.UTC),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d slots, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("slot %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestGenerateSkipsBookedSlots(t *testing.T) {
	g := newTestGenerator(t, testSchedule(), sundayNoon)

	booked := BookedSet{}
	booked.Add(time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC))

	got := g.Generate("x", domain.ClipShort, 1, booked)
	if len(got) != 1 {
		t.Fatalf("got %d slots, want 1", len(got))
	}
	want := time.Date(2026, 9, 7, 15, 0, 0, 0, time.UTC)
	if !got[0].Equal(want) {
		t.Fatalf("slot = %v, want %v", got[0], want)
	}
}

func TestGenerateSlotsAreStrictlyFuture(t *testing.T) {
	now := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	g := newTestGenerator(t, testSchedule(), now)

	got := g.Generate("x", domain.ClipShort, 1, BookedSet{})
	if len(got) != 1 {
		t.Fatalf("got %d slots, want 1", len(got))
	}
	// The 09:00 slot equals now and must be excluded.
	want := time.Date(2026, 9, 7, 15, 0, 0, 0, time.UTC)
	if !got[0].Equal(want) {
		t.Fatalf("slot = %v, want %v", got[0], want)
	}
}

func TestGenerateHonorsAvoidDays(t *testing.T) {
	cfg := testSchedule()
	ps := cfg.Platforms["x"]["short"]
	ps.AvoidDays = days(time.Monday)
	cfg.Platforms["x"]["short"] = ps

	g := newTestGenerator(t, cfg, sundayNoon)
	got := g.Generate("x", domain.ClipShort, 2, BookedSet{})
	for _, slot := range got {
		if slot.Weekday() == time.Monday {
			t.Fatalf("generated slot on avoided Monday: %v", slot)
		}
	}
}

func TestGenerateUnknownScheduleReturnsNothing(t *testing.T) {
	g := newTestGenerator(t, testSchedule(), sundayNoon)
	if got := g.Generate("x", domain.ClipVideo, 2, BookedSet{}); got != nil {
		t.Fatalf("expected no slots for unconfigured clip type, got %v", got)
	}
	if got := g.Generate("tiktok", domain.ClipShort, 2, BookedSet{}); got != nil {
		t.Fatalf("expected no slots for unconfigured platform, got %v", got)
	}
}

func TestGenerateRegistersSlotsInBooked(t *testing.T) {
	g := newTestGenerator(t, testSchedule(), sundayNoon)
	booked := BookedSet{}
	first := g.Generate("x", domain.ClipShort, 2, booked)
	second := g.Generate("x", domain.ClipShort, 2, booked)
	for _, a := range first {
		for _, b := range second {
			if a.Equal(b) {
				t.Fatalf("slot %v handed out twice", a)
			}
		}
	}
}

func TestGenerateKeepsLocalWallTimeAcrossDST(t *testing.T) {
	cfg := &config.ScheduleConfig{
		Timezone: "America/New_York",
		Platforms: map[string]map[string]config.PlatformSchedule{
			"x": {"short": {Slots: []config.Slot{
				{Time: "09:00", Days: days(time.Saturday, time.Sunday)},
			}}},
		},
	}
	// The US switches off daylight saving on 2026-11-01.
	now := time.Date(2026, 10, 30, 12, 0, 0, 0, time.UTC)
	g := newTestGenerator(t, cfg, now)

	got := g.Generate("x", domain.ClipShort, 2, BookedSet{})
	if len(got) != 2 {
		t.Fatalf("got %d slots, want 2", len(got))
	}
	loc, _ := time.LoadLocation("America/New_York")
	for _, slot := range got {
		local := slot.In(loc)
		if local.Hour() != 9 || local.Minute() != 0 {
			t.Fatalf("slot %v is %02d:%02d local, want 09:00", slot, local.Hour(), local.Minute())
		}
	}
	// Before the transition 09:00 EDT is 13:00 UTC; after it, 14:00 UTC.
	if got[0].UTC().Hour() != 13 {
		t.Fatalf("pre-transition slot = %v UTC, want hour 13", got[0].UTC())
	}
	if got[1].UTC().Hour() != 14 {
		t.Fatalf("post-transition slot = %v UTC, want hour 14", got[1].UTC())
	}
}
