package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"clipflow/internal/domain"
	"clipflow/internal/late"
)

// DefaultCallInterval is the pacing between remote calls when no policy is
// configured.
const DefaultCallInterval = 300 * time.Millisecond

const (
	PhaseCancelling   = "cancelling"
	PhaseRescheduling = "rescheduling"
)

// RemoteUpdater is the slice of the remote client the executor needs.
type RemoteUpdater interface {
	UpdatePost(ctx context.Context, id string, update late.PostUpdate) (domain.RemotePost, error)
}

// ProgressFunc reports execution progress after every item, for UI polling.
type ProgressFunc func(completed, total int, phase string)

// Executor applies a realign plan against the remote service one call at a
// time behind a rate limiter. Per-item failures are collected, never fatal:
// downstream items still get a chance to succeed.
type Executor struct {
	Remote     RemoteUpdater
	Limiter    *rate.Limiter
	Logger     logrus.FieldLogger
	OnProgress ProgressFunc
}

// NewExecutor builds an executor pacing remote calls at the given interval.
func NewExecutor(remote RemoteUpdater, interval time.Duration, logger logrus.FieldLogger) *Executor {
	if interval <= 0 {
		interval = DefaultCallInterval
	}
	return &Executor{
		Remote:  remote,
		Limiter: rate.NewLimiter(rate.Every(interval), 1),
		Logger:  logger,
	}
}

func (e *Executor) log() logrus.FieldLogger {
	if e.Logger != nil {
		return e.Logger
	}
	return logrus.StandardLogger()
}

// Execute applies the plan: cancellations first, then reschedules.
func (e *Executor) Execute(ctx context.Context, plan domain.RealignPlan) domain.ExecuteResult {
	var result domain.ExecuteResult
	total := len(plan.ToCancel) + len(plan.Posts)
	completed := 0

	report := func(phase string) {
		completed++
		if e.OnProgress != nil {
			e.OnProgress(completed, total, phase)
		}
	}

	cancelled := "cancelled"
	for _, cp := range plan.ToCancel {
		err := e.call(ctx, cp.Post.ID, late.PostUpdate{Status: cancelled})
		if err != nil {
			e.recordFailure(&result, cp.Post.ID, err)
		} else {
			result.Cancelled++
			e.log().WithFields(logrus.Fields{"post_id": cp.Post.ID, "reason": cp.Reason}).Info("Cancelled remote post")
		}
		report(PhaseCancelling)
	}

	for _, rp := range plan.Posts {
		update := late.PostUpdate{ScheduledFor: &rp.NewScheduledFor}
		// Only force the status when the post isn't already scheduled, to
		// avoid reactivating it unnecessarily.
		if rp.Post.Status != "scheduled" {
			update.Status = "scheduled"
		}
		err := e.call(ctx, rp.Post.ID, update)
		if err != nil {
			e.recordFailure(&result, rp.Post.ID, err)
		} else {
			result.Updated++
			e.log().WithFields(logrus.Fields{
				"post_id":       rp.Post.ID,
				"platform":      rp.Platform,
				"scheduled_for": rp.NewScheduledFor.Format(time.RFC3339),
			}).Info("Rescheduled remote post")
		}
		report(PhaseRescheduling)
	}

	return result
}

func (e *Executor) call(ctx context.Context, id string, update late.PostUpdate) error {
	if e.Limiter != nil {
		if err := e.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	_, err := e.Remote.UpdatePost(ctx, id, update)
	return err
}

func (e *Executor) recordFailure(result *domain.ExecuteResult, postID string, err error) {
	result.Failed++
	result.Errors = append(result.Errors, domain.ItemError{PostID: postID, Error: err.Error()})
	e.log().WithError(err).WithField("post_id", postID).Error("Remote update failed")
}
