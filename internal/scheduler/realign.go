package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"clipflow/internal/config"
	"clipflow/internal/domain"
	"clipflow/internal/late"
)

// RemoteAPI is the slice of the remote client realignment needs.
type RemoteAPI interface {
	ListPosts(ctx context.Context, filter late.PostFilter) ([]domain.RemotePost, error)
	UpdatePost(ctx context.Context, id string, update late.PostUpdate) (domain.RemotePost, error)
}

// ContentStore is the slice of the local store realignment needs.
type ContentStore interface {
	ListPublished(ctx context.Context) ([]domain.PublishedItem, error)
}

// Realigner wires fetch, resolution, planning and execution for one
// realignment pass. The plan is a pure value: BuildPlan never mutates remote
// or local state, only Execute does.
type Realigner struct {
	Remote   RemoteAPI
	Store    ContentStore
	Schedule *config.ScheduleConfig
	Rules    []domain.PriorityRule
	Rand     *rand.Rand
	Now      func() time.Time
	Interval time.Duration
	Logger   logrus.FieldLogger
}

// BuildPlan fetches remote state, resolves clip types and computes a
// conflict-free slot assignment.
func (r *Realigner) BuildPlan(ctx context.Context, prioritized bool) (domain.RealignPlan, error) {
	posts, err := r.Remote.ListPosts(ctx, late.PostFilter{Status: "scheduled"})
	if err != nil {
		return domain.RealignPlan{}, fmt.Errorf("list remote posts: %w", err)
	}
	published, err := r.Store.ListPublished(ctx)
	if err != nil {
		return domain.RealignPlan{}, fmt.Errorf("list published items: %w", err)
	}

	res := Resolver{Default: r.Schedule.Fallback()}.Resolve(posts, published)

	slots, err := NewSlotGenerator(r.Schedule)
	if err != nil {
		return domain.RealignPlan{}, err
	}
	slots.Now = r.Now

	if prioritized && len(r.Rules) > 0 {
		planner := &PrioritizedPlanner{Schedule: r.Schedule, Slots: slots, Rules: r.Rules, Rand: r.Rand, Logger: r.Logger}
		return planner.Build(res), nil
	}
	planner := &Planner{Schedule: r.Schedule, Slots: slots, Logger: r.Logger}
	return planner.Build(res), nil
}

// Execute applies a previously built plan.
func (r *Realigner) Execute(ctx context.Context, plan domain.RealignPlan, progress ProgressFunc) domain.ExecuteResult {
	exec := NewExecutor(r.Remote, r.Interval, r.Logger)
	exec.OnProgress = progress
	return exec.Execute(ctx, plan)
}
