// Package dispatch publishes approved queue items to the scheduling API.
// A single worker goroutine drains a request channel, so batches never
// interleave and per-batch slot bookings stay consistent.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"clipflow/internal/config"
	"clipflow/internal/domain"
	"clipflow/internal/events"
	"clipflow/internal/late"
	"clipflow/internal/scheduler"
)

// DefaultCallInterval spaces outbound creation calls against provider limits.
const DefaultCallInterval = 300 * time.Millisecond

// RemotePublisher is the slice of the scheduling API the dispatcher needs.
type RemotePublisher interface {
	CreatePost(ctx context.Context, req late.CreatePostRequest) (late.CreatedPost, error)
	UploadMedia(ctx context.Context, path string) (late.Media, error)
}

// ItemStore persists the outcome of each dispatch attempt.
type ItemStore interface {
	GetItem(ctx context.Context, id string) (domain.QueueItem, error)
	MarkPublished(ctx context.Context, id, latePostID string, scheduledFor time.Time, publishedURL string) error
	MarkFailed(ctx context.Context, id, reason string) error
}

// Auditor records dispatch outcomes in the event log.
type Auditor interface {
	Append(ctx context.Context, evtType, entityKind, entityID, actorID string, payload events.EventPayload) error
}

// ItemResult is one item's outcome within a batch.
type ItemResult struct {
	ItemID       string     `json:"item_id"`
	Status       string     `json:"status"`
	PostID       string     `json:"post_id,omitempty"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// BatchResult summarizes a dispatched batch.
type BatchResult struct {
	Published int          `json:"published"`
	Failed    int          `json:"failed"`
	Items     []ItemResult `json:"items"`
}

type request struct {
	ctx     context.Context
	itemIDs []string
	actorID string
	reply   chan BatchResult
}

// Dispatcher publishes approved items one batch at a time. Construct with
// New and call Start once; Dispatch is safe from any goroutine.
type Dispatcher struct {
	remote   RemotePublisher
	store    ItemStore
	schedule func() (*config.ScheduleConfig, error)
	audit    Auditor
	limiter  *rate.Limiter
	logger   logrus.FieldLogger
	now      func() time.Time
	queue    chan request
}

type Option func(*Dispatcher)

func WithAuditor(a Auditor) Option {
	return func(d *Dispatcher) { d.audit = a }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

func WithCallInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval <= 0 {
			d.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		d.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func New(remote RemotePublisher, store ItemStore, schedule func() (*config.ScheduleConfig, error), opts ...Option) *Dispatcher {
	d := &Dispatcher{
		remote:   remote,
		store:    store,
		schedule: schedule,
		limiter:  rate.NewLimiter(rate.Every(DefaultCallInterval), 1),
		now:      time.Now,
		queue:    make(chan request, 16),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the worker goroutine. It exits when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case req := <-d.queue:
				req.reply <- d.runBatch(req.ctx, req.itemIDs, req.actorID)
			}
		}
	}()
}

// Dispatch enqueues a batch and blocks until the worker has processed it.
func (d *Dispatcher) Dispatch(ctx context.Context, itemIDs []string, actorID string) (BatchResult, error) {
	req := request{ctx: ctx, itemIDs: itemIDs, actorID: actorID, reply: make(chan BatchResult, 1)}
	select {
	case d.queue <- req:
	case <-ctx.Done():
		return BatchResult{}, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res, nil
	case <-ctx.Done():
		return BatchResult{}, ctx.Err()
	}
}

func (d *Dispatcher) runBatch(ctx context.Context, itemIDs []string, actorID string) BatchResult {
	res := BatchResult{Items: make([]ItemResult, 0, len(itemIDs))}

	cfg, err := d.schedule()
	if err != nil {
		for _, id := range itemIDs {
			res.Items = append(res.Items, ItemResult{ItemID: id, Status: "failed", Error: err.Error()})
			res.Failed++
		}
		return res
	}
	slots, err := scheduler.NewSlotGenerator(cfg)
	if err != nil {
		for _, id := range itemIDs {
			res.Items = append(res.Items, ItemResult{ItemID: id, Status: "failed", Error: err.Error()})
			res.Failed++
		}
		return res
	}
	slots.Now = d.now

	// Slot bookings and rate-limit state are scoped to the batch: two items
	// for the same platform/clip-type get distinct slots, and once a platform
	// reports a limit the rest of its items fail without a network call.
	booked := scheduler.BookedSet{}
	limited := map[string]bool{}

	for _, id := range itemIDs {
		outcome := d.publishItem(ctx, cfg, slots, booked, limited, id, actorID)
		if outcome.Status == "published" {
			res.Published++
		} else {
			res.Failed++
		}
		res.Items = append(res.Items, outcome)
	}
	return res
}

func (d *Dispatcher) publishItem(ctx context.Context, cfg *config.ScheduleConfig, slots *scheduler.SlotGenerator, booked scheduler.BookedSet, limited map[string]bool, id, actorID string) ItemResult {
	item, err := d.store.GetItem(ctx, id)
	if err != nil {
		return ItemResult{ItemID: id, Status: "failed", Error: err.Error()}
	}

	platform := config.CanonicalPlatform(item.Platform)
	if limited[platform] {
		return d.failItem(ctx, id, platform, actorID, fmt.Sprintf("platform %s hit its rate limit earlier in this batch", platform))
	}

	accountID := item.AccountID
	if accountID == "" {
		accountID = cfg.DefaultAccount(platform)
	}
	if accountID == "" {
		return d.failItem(ctx, id, platform, actorID, fmt.Sprintf("no account configured for platform %s", platform))
	}

	var mediaURLs []string
	if item.SourceMediaPath != "" {
		if _, statErr := os.Stat(item.SourceMediaPath); statErr == nil {
			if err := d.pace(ctx); err != nil {
				return d.failItem(ctx, id, platform, actorID, err.Error())
			}
			media, upErr := d.remote.UploadMedia(ctx, item.SourceMediaPath)
			if upErr != nil {
				if isRateLimitError(upErr) {
					d.markLimited(ctx, limited, platform, actorID, upErr)
				}
				return d.failItem(ctx, id, platform, actorID, fmt.Sprintf("upload media: %v", upErr))
			}
			mediaURLs = append(mediaURLs, media.URL)
		}
	}

	candidates := slots.Generate(platform, item.ClipType, 1, booked)
	if len(candidates) == 0 {
		return d.failItem(ctx, id, platform, actorID, "no available slot within scheduling horizon")
	}
	slot := candidates[0]

	req := late.CreatePostRequest{
		Content:          item.PostContent,
		Platforms:        []late.PlatformTarget{{Platform: platform, AccountID: accountID}},
		ScheduledFor:     slot,
		MediaURLs:        mediaURLs,
		PlatformSettings: platformSettings(platform, item.ClipType),
	}

	if err := d.pace(ctx); err != nil {
		return d.failItem(ctx, id, platform, actorID, err.Error())
	}
	created, err := d.remote.CreatePost(ctx, req)
	if err != nil {
		if isRateLimitError(err) {
			d.markLimited(ctx, limited, platform, actorID, err)
		}
		return d.failItem(ctx, id, platform, actorID, err.Error())
	}

	if err := d.store.MarkPublished(ctx, id, created.ID, slot, ""); err != nil {
		return ItemResult{ItemID: id, Status: "failed", Error: fmt.Sprintf("record publish: %v", err)}
	}
	d.event(ctx, "item.published", id, actorID, events.EventPayload{
		"platform":      platform,
		"post_id":       created.ID,
		"scheduled_for": slot.Format(time.RFC3339),
	})
	d.log().WithFields(logrus.Fields{"item_id": id, "platform": platform, "post_id": created.ID}).Info("Published queue item")
	return ItemResult{ItemID: id, Status: "published", PostID: created.ID, ScheduledFor: &slot}
}

func (d *Dispatcher) failItem(ctx context.Context, id, platform, actorID, reason string) ItemResult {
	if err := d.store.MarkFailed(ctx, id, reason); err != nil && !errors.Is(err, context.Canceled) {
		d.log().WithError(err).WithField("item_id", id).Warn("Could not record item failure")
	}
	d.event(ctx, "item.failed", id, actorID, events.EventPayload{"platform": platform, "reason": reason})
	return ItemResult{ItemID: id, Status: "failed", Error: reason}
}

func (d *Dispatcher) markLimited(ctx context.Context, limited map[string]bool, platform, actorID string, cause error) {
	limited[platform] = true
	d.event(ctx, "platform.ratelimited", platform, actorID, events.EventPayload{"error": cause.Error()})
	d.log().WithField("platform", platform).Warn("Platform rate limited, skipping its remaining items this batch")
}

func (d *Dispatcher) pace(ctx context.Context) error {
	return d.limiter.Wait(ctx)
}

func (d *Dispatcher) event(ctx context.Context, evtType, entityID, actorID string, payload events.EventPayload) {
	if d.audit == nil {
		return
	}
	kind := "queue_item"
	if evtType == "platform.ratelimited" {
		kind = "platform"
	}
	if err := d.audit.Append(ctx, evtType, kind, entityID, actorID, payload); err != nil {
		d.log().WithError(err).Warn("Could not append event")
	}
}

func (d *Dispatcher) log() logrus.FieldLogger {
	if d.logger != nil {
		return d.logger
	}
	return logrus.StandardLogger()
}

// platformSettings shapes the provider payload for short-form video targets.
func platformSettings(platform string, clipType domain.ClipType) map[string]map[string]any {
	if clipType != domain.ClipShort {
		return nil
	}
	switch platform {
	case "tiktok":
		return map[string]map[string]any{"tiktok": {"privacyLevel": "PUBLIC_TO_EVERYONE", "allowComments": true}}
	case "instagram":
		return map[string]map[string]any{"instagram": {"reelShareToFeed": true}}
	case "youtube":
		return map[string]map[string]any{"youtube": {"madeForKids": false}}
	}
	return nil
}

var rateLimitSignatures = []string{"429", "rate limit", "daily post limit"}

func isRateLimitError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, sig := range rateLimitSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
