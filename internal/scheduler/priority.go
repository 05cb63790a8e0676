package scheduler

import (
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"clipflow/internal/config"
	"clipflow/internal/domain"
)

// PrioritizedPlanner assigns slots like Planner but lets ordered priority
// rules claim eligible slots for keyword-matched posts first. Rule firing is
// probabilistic (saturation), driven by an injectable random source so tests
// can pin both branches.
type PrioritizedPlanner struct {
	Schedule *config.ScheduleConfig
	Slots    *SlotGenerator
	Rules    []domain.PriorityRule
	Rand     *rand.Rand
	Logger   logrus.FieldLogger
}

func (p *PrioritizedPlanner) random() *rand.Rand {
	if p.Rand == nil {
		p.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return p.Rand
}

// Build computes a realign plan honoring the priority rules.
func (p *PrioritizedPlanner) Build(res Resolution) domain.RealignPlan {
	plan := newPlan(res)
	booked := BookedSet{}
	loc, err := p.Schedule.Location()
	if err != nil {
		loc = time.UTC
	}

	for _, key := range groupKeys(res.Posts) {
		group := groupFor(res.Posts, key)
		if _, ok := p.Schedule.ScheduleFor(key.platform, key.clipType); !ok {
			cancelGroup(&plan, group, reasonNoSchedule)
			continue
		}
		sortByCurrentSchedule(group)

		queues, remainder := p.partition(group)
		slots := p.Slots.Generate(key.platform, key.clipType, len(group), booked)

		// A post may sit in several rule queues; once assigned anywhere it is
		// burned everywhere.
		used := map[string]struct{}{}
		for _, slot := range slots {
			rp, ok := p.draw(queues, remainder, used, slot.In(loc))
			if !ok {
				continue
			}
			used[rp.Post.ID] = struct{}{}
			assignSlot(&plan, rp, slot)
		}

		for _, rp := range group {
			if _, ok := used[rp.Post.ID]; ok {
				continue
			}
			plan.ToCancel = append(plan.ToCancel, domain.CancelPost{Post: rp.Post, Platform: rp.Platform, Reason: reasonNoSlots})
		}
	}

	sortPlanPosts(&plan)
	return plan
}

// partition builds one FIFO queue per rule from the group's keyword matches
// and a remainder pool of everything no rule matched. Matched posts are
// reserved for their rules: they must wait for the rule's window to fire
// rather than being consumed early by the remainder pool.
func (p *PrioritizedPlanner) partition(group []ResolvedPost) (queues [][]ResolvedPost, remainder []ResolvedPost) {
	queues = make([][]ResolvedPost, len(p.Rules))
	for _, rp := range group {
		matched := false
		for ri, rule := range p.Rules {
			if matchesKeywords(rp.Post.Content, rule.Keywords) {
				queues[ri] = append(queues[ri], rp)
				matched = true
			}
		}
		if !matched {
			remainder = append(remainder, rp)
		}
	}
	return queues, remainder
}

// draw picks the post for one slot: rules in priority order first, then the
// remainder pool. ok is false when every source is exhausted.
func (p *PrioritizedPlanner) draw(queues [][]ResolvedPost, remainder []ResolvedPost, used map[string]struct{}, slotLocal time.Time) (ResolvedPost, bool) {
	for ri, rule := range p.Rules {
		if !p.ruleInWindow(rule, slotLocal) {
			continue
		}
		rp, ok := nextUnused(queues[ri], used)
		if !ok {
			continue
		}
		if p.random().Float64() < rule.Saturation {
			return rp, true
		}
	}
	return nextUnused(remainder, used)
}

func nextUnused(queue []ResolvedPost, used map[string]struct{}) (ResolvedPost, bool) {
	for _, rp := range queue {
		if _, ok := used[rp.Post.ID]; !ok {
			return rp, true
		}
	}
	return ResolvedPost{}, false
}

// ruleInWindow reports whether the slot's calendar date in the schedule
// timezone falls within the rule's optional [from, to] bounds.
func (p *PrioritizedPlanner) ruleInWindow(rule domain.PriorityRule, slotLocal time.Time) bool {
	from, to, err := config.RuleWindow(rule)
	if err != nil {
		if p.Logger != nil {
			p.Logger.WithError(err).Warn("Skipping rule with invalid date window")
		}
		return false
	}
	date := time.Date(slotLocal.Year(), slotLocal.Month(), slotLocal.Day(), 0, 0, 0, 0, time.UTC)
	if from != nil && date.Before(*from) {
		return false
	}
	if to != nil && date.After(*to) {
		return false
	}
	return true
}

func matchesKeywords(content string, keywords []string) bool {
	lowered := strings.ToLower(content)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
