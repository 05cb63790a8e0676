package scheduler

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"clipflow/internal/config"
	"clipflow/internal/domain"
)

// Slot search stops after two calendar years; a group that still has posts
// left gets them cancelled rather than scheduled into the far future.
const defaultHorizonDays = 730

// BookedSet tracks already-claimed slot instants at millisecond resolution
// to prevent double-booking within one planning pass.
type BookedSet map[int64]struct{}

func (b BookedSet) Has(t time.Time) bool {
	_, ok := b[t.UnixMilli()]
	return ok
}

func (b BookedSet) Add(t time.Time) {
	b[t.UnixMilli()] = struct{}{}
}

// SlotGenerator produces future candidate instants for a platform and clip
// type from the weekly schedule.
type SlotGenerator struct {
	Schedule    *config.ScheduleConfig
	Now         func() time.Time
	HorizonDays int

	loc *time.Location
}

// NewSlotGenerator resolves the schedule timezone once up front.
func NewSlotGenerator(cfg *config.ScheduleConfig) (*SlotGenerator, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &SlotGenerator{Schedule: cfg, loc: loc}, nil
}

func (g *SlotGenerator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *SlotGenerator) horizon() int {
	if g.HorizonDays > 0 {
		return g.HorizonDays
	}
	return defaultHorizonDays
}

// Generate returns up to count future instants for the platform and clip
// type, strictly after now and never colliding with booked. Accepted instants
// are added to booked, which callers share across groups within one planning
// pass. Fewer than count entries signals slot exhaustion.
func (g *SlotGenerator) Generate(platform string, clipType domain.ClipType, count int, booked BookedSet) []time.Time {
	if count <= 0 {
		return nil
	}
	ps, ok := g.Schedule.ScheduleFor(platform, clipType)
	if !ok {
		return nil
	}

	now := g.now()
	year, month, day := now.In(g.loc).Date()

	var out []time.Time
	for offset := 0; offset <= g.horizon() && len(out) < count; offset++ {
		// Constructing the date in the schedule timezone re-derives the UTC
		// offset for that specific day, so slots stay at their local wall
		// time across daylight-saving transitions.
		date := time.Date(year, month, day+offset, 0, 0, 0, 0, g.loc)
		weekday := date.Weekday()
		if config.ContainsDay(ps.AvoidDays, weekday) {
			continue
		}

		var candidates []time.Time
		for _, slot := range ps.Slots {
			if !config.ContainsDay(slot.Days, weekday) {
				continue
			}
			hh, mm, ok := parseSlotTime(slot.Time)
			if !ok {
				continue
			}
			candidates = append(candidates, time.Date(date.Year(), date.Month(), date.Day(), hh, mm, 0, 0, g.loc))
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Before(candidates[j]) })

		for _, instant := range candidates {
			if len(out) >= count {
				break
			}
			if !instant.After(now) || booked.Has(instant) {
				continue
			}
			booked.Add(instant)
			out = append(out, instant)
		}
	}
	return out
}

func parseSlotTime(s string) (hh, mm int, ok bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	hh, err1 := strconv.Atoi(parts[0])
	mm, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return hh, mm, true
}
