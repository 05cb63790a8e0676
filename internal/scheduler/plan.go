package scheduler

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"clipflow/internal/config"
	"clipflow/internal/domain"
)

const (
	reasonNoSchedule = "no schedule for this platform/clip-type"
	reasonNoSlots    = "no more available slots"
)

// Planner assigns resolved posts to future slots first-come first-served:
// posts sorted by their current schedule are zipped onto generated slots in
// order. Building a plan never mutates remote or local state.
type Planner struct {
	Schedule *config.ScheduleConfig
	Slots    *SlotGenerator
	Logger   logrus.FieldLogger
}

// Build computes a realign plan for the resolved posts.
func (p *Planner) Build(res Resolution) domain.RealignPlan {
	plan := newPlan(res)
	booked := BookedSet{}

	for _, key := range groupKeys(res.Posts) {
		group := groupFor(res.Posts, key)
		if _, ok := p.Schedule.ScheduleFor(key.platform, key.clipType); !ok {
			cancelGroup(&plan, group, reasonNoSchedule)
			continue
		}
		sortByCurrentSchedule(group)

		slots := p.Slots.Generate(key.platform, key.clipType, len(group), booked)
		if len(slots) < len(group) && p.Logger != nil {
			p.Logger.WithFields(logrus.Fields{
				"platform":  key.platform,
				"clip_type": key.clipType,
				"posts":     len(group),
				"slots":     len(slots),
			}).Warn("Slot horizon exhausted for group")
		}
		for i, rp := range group {
			if i >= len(slots) {
				plan.ToCancel = append(plan.ToCancel, domain.CancelPost{Post: rp.Post, Platform: rp.Platform, Reason: reasonNoSlots})
				continue
			}
			assignSlot(&plan, rp, slots[i])
		}
	}

	sortPlanPosts(&plan)
	return plan
}

func newPlan(res Resolution) domain.RealignPlan {
	return domain.RealignPlan{
		TotalFetched:   len(res.Posts),
		IDMatched:      res.IDMatched,
		ContentMatched: res.ContentMatched,
		Unmatched:      res.Unmatched,
	}
}

type groupKey struct {
	platform string
	clipType domain.ClipType
}

func groupKeys(posts []ResolvedPost) []groupKey {
	seen := map[groupKey]struct{}{}
	var keys []groupKey
	for _, rp := range posts {
		key := groupKey{platform: rp.Platform, clipType: rp.ClipType}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].platform != keys[j].platform {
			return keys[i].platform < keys[j].platform
		}
		return keys[i].clipType < keys[j].clipType
	})
	return keys
}

func groupFor(posts []ResolvedPost, key groupKey) []ResolvedPost {
	var group []ResolvedPost
	for _, rp := range posts {
		if rp.Platform == key.platform && rp.ClipType == key.clipType {
			group = append(group, rp)
		}
	}
	return group
}

// cancelGroup marks every not-already-cancelled post in the group for
// cancellation.
func cancelGroup(plan *domain.RealignPlan, group []ResolvedPost, reason string) {
	for _, rp := range group {
		if rp.Post.Status == "cancelled" {
			continue
		}
		plan.ToCancel = append(plan.ToCancel, domain.CancelPost{Post: rp.Post, Platform: rp.Platform, Reason: reason})
	}
}

// sortByCurrentSchedule orders a group by current scheduled time ascending,
// unscheduled posts last, ties broken by post id for determinism.
func sortByCurrentSchedule(group []ResolvedPost) {
	sort.SliceStable(group, func(i, j int) bool {
		a, b := group[i].Post.ScheduledFor, group[j].Post.ScheduledFor
		switch {
		case a == nil && b == nil:
			return group[i].Post.ID < group[j].Post.ID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return group[i].Post.ID < group[j].Post.ID
		default:
			return a.Before(*b)
		}
	})
}

// assignSlot records a reschedule, or counts a skip when the post already
// sits at the assigned slot with status scheduled.
func assignSlot(plan *domain.RealignPlan, rp ResolvedPost, slot time.Time) {
	if rp.Post.ScheduledFor != nil && rp.Post.ScheduledFor.Equal(slot) && rp.Post.Status == "scheduled" {
		plan.Skipped++
		return
	}
	plan.Posts = append(plan.Posts, domain.RealignPost{
		Post:            rp.Post,
		Platform:        rp.Platform,
		ClipType:        rp.ClipType,
		OldScheduledFor: rp.Post.ScheduledFor,
		NewScheduledFor: slot,
	})
}

func sortPlanPosts(plan *domain.RealignPlan) {
	sort.SliceStable(plan.Posts, func(i, j int) bool {
		return plan.Posts[i].NewScheduledFor.Before(plan.Posts[j].NewScheduledFor)
	})
}
