package domain

import "time"

// ClipType classifies content and selects which slot schedule applies.
type ClipType string

const (
	ClipShort  ClipType = "short"
	ClipMedium ClipType = "medium-clip"
	ClipVideo  ClipType = "video"
)

// ValidClipType reports whether s is a known clip type.
func ValidClipType(s string) bool {
	switch ClipType(s) {
	case ClipShort, ClipMedium, ClipVideo:
		return true
	}
	return false
}

// RemotePost is the remote scheduling service's system of record. It is only
// read and mutated through API calls, never cached beyond one planning pass.
type RemotePost struct {
	ID           string         `json:"id"`
	Content      string         `json:"content"`
	Platforms    []PostPlatform `json:"platforms"`
	Status       string         `json:"status" enum:"draft,scheduled,cancelled,failed,published"`
	ScheduledFor *time.Time     `json:"scheduled_for,omitempty" format:"date-time"`
}

type PostPlatform struct {
	Platform  string `json:"platform"`
	AccountID string `json:"account_id,omitempty"`
}

// Platform returns the post's first platform name, or empty.
func (p RemotePost) Platform() string {
	if len(p.Platforms) == 0 {
		return ""
	}
	return p.Platforms[0].Platform
}

// QueueItem is a locally generated content item awaiting review and dispatch.
type QueueItem struct {
	ID              string   `json:"id"`
	Platform        string   `json:"platform"`
	ClipType        ClipType `json:"clip_type"`
	SourceMediaPath string   `json:"source_media_path,omitempty"`
	PostContent     string   `json:"post_content"`
	LatePostID      *string  `json:"late_post_id,omitempty"`
	AccountID       string   `json:"account_id,omitempty"`
	Status          string   `json:"status" enum:"pending,approved,rejected,published,failed"`
	ScheduledFor    *string  `json:"scheduled_for,omitempty" format:"date-time"`
	PublishedURL    string   `json:"published_url,omitempty"`
	FailureReason   string   `json:"failure_reason,omitempty"`
	CreatedAt       string   `json:"created_at" format:"date-time"`
	UpdatedAt       string   `json:"updated_at" format:"date-time"`
}

// PublishedItem pairs stored item metadata with its post content, the local
// half of the clip-type join against remote posts.
type PublishedItem struct {
	Item        QueueItem `json:"item"`
	PostContent string    `json:"post_content"`
}

// RealignPost is one planned reschedule inside a RealignPlan.
type RealignPost struct {
	Post            RemotePost `json:"post"`
	Platform        string     `json:"platform"`
	ClipType        ClipType   `json:"clip_type"`
	OldScheduledFor *time.Time `json:"old_scheduled_for,omitempty"`
	NewScheduledFor time.Time  `json:"new_scheduled_for"`
}

// CancelPost is one planned cancellation inside a RealignPlan.
type CancelPost struct {
	Post     RemotePost `json:"post"`
	Platform string     `json:"platform"`
	Reason   string     `json:"reason"`
}

// RealignPlan is a computed, not-yet-applied assignment of remote posts to
// new schedule slots plus a cancellation list. Building a plan never mutates
// remote or local state.
type RealignPlan struct {
	Posts          []RealignPost `json:"posts"`
	ToCancel       []CancelPost  `json:"to_cancel"`
	Skipped        int           `json:"skipped"`
	Unmatched      int           `json:"unmatched"`
	IDMatched      int           `json:"id_matched"`
	ContentMatched int           `json:"content_matched"`
	TotalFetched   int           `json:"total_fetched"`
}

// PriorityRule claims eligible slots for keyword-matched posts with the given
// probability. Rules are evaluated in list order; list order is priority rank.
type PriorityRule struct {
	Keywords   []string `json:"keywords" yaml:"keywords"`
	Saturation float64  `json:"saturation" yaml:"saturation"`
	From       string   `json:"from,omitempty" yaml:"from,omitempty" format:"date"`
	To         string   `json:"to,omitempty" yaml:"to,omitempty" format:"date"`
}

// ItemError records a single failed remote call during plan execution.
type ItemError struct {
	PostID string `json:"post_id"`
	Error  string `json:"error"`
}

// ExecuteResult aggregates the outcome of applying a RealignPlan. Individual
// failures never abort execution; they land here.
type ExecuteResult struct {
	Updated   int         `json:"updated"`
	Cancelled int         `json:"cancelled"`
	Failed    int         `json:"failed"`
	Errors    []ItemError `json:"errors,omitempty"`
}

// Event is one row of the append-only audit log.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIKey authenticates a caller of the HTTP API.
type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
