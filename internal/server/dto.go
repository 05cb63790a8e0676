package server

import (
	"encoding/json"

	"clipflow/internal/domain"
)

// Request payloads

type RealignRequest struct {
	Prioritized bool   `json:"prioritized,omitempty"`
	DryRun      bool   `json:"dry_run,omitempty"`
	Seed        *int64 `json:"seed,omitempty"`
}

type CreateQueueItemRequest struct {
	ID              *string `json:"id,omitempty"`
	Platform        string  `json:"platform"`
	ClipType        string  `json:"clip_type" enum:"short,medium-clip,video"`
	PostContent     string  `json:"post_content"`
	SourceMediaPath *string `json:"source_media_path,omitempty"`
	AccountID       *string `json:"account_id,omitempty"`
}

type RejectQueueItemRequest struct {
	Reason string `json:"reason,omitempty"`
}

type ApprovalsRequest struct {
	ItemIDs []string `json:"item_ids"`
}

type CreateAPIKeyRequest struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

// Response payloads

type RealignAcceptedResponse struct {
	JobID string `json:"job_id"`
}

type QueueItemResponse struct {
	ID              string  `json:"id"`
	Platform        string  `json:"platform"`
	ClipType        string  `json:"clip_type"`
	PostContent     string  `json:"post_content"`
	SourceMediaPath string  `json:"source_media_path,omitempty"`
	LatePostID      *string `json:"late_post_id,omitempty"`
	AccountID       string  `json:"account_id,omitempty"`
	Status          string  `json:"status"`
	ScheduledFor    *string `json:"scheduled_for,omitempty"`
	PublishedURL    string  `json:"published_url,omitempty"`
	FailureReason   string  `json:"failure_reason,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at"`
	// Key is only present on creation; the plaintext is never stored.
	Key string `json:"key,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

func itemResponse(it domain.QueueItem) QueueItemResponse {
	return QueueItemResponse{
		ID:              it.ID,
		Platform:        it.Platform,
		ClipType:        string(it.ClipType),
		PostContent:     it.PostContent,
		SourceMediaPath: it.SourceMediaPath,
		LatePostID:      it.LatePostID,
		AccountID:       it.AccountID,
		Status:          it.Status,
		ScheduledFor:    it.ScheduledFor,
		PublishedURL:    it.PublishedURL,
		FailureReason:   it.FailureReason,
		CreatedAt:       it.CreatedAt,
		UpdatedAt:       it.UpdatedAt,
	}
}

func mapItems(items []domain.QueueItem) []QueueItemResponse {
	out := make([]QueueItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, itemResponse(it))
	}
	return out
}

func eventResponse(e domain.Event) EventResponse {
	resp := EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
	}
	if e.Payload != "" {
		_ = json.Unmarshal([]byte(e.Payload), &resp.Payload)
	}
	return resp
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{ID: k.ID, ActorID: k.ActorID, Name: k.Name, CreatedAt: k.CreatedAt}
}
