package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"clipflow/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const itemColumns = `id,platform,clip_type,COALESCE(source_media_path,''),post_content,late_post_id,COALESCE(account_id,''),status,scheduled_for,COALESCE(published_url,''),COALESCE(failure_reason,''),created_at,updated_at`

func scanItem(row interface{ Scan(...any) error }) (domain.QueueItem, error) {
	var it domain.QueueItem
	var latePostID, scheduledFor sql.NullString
	err := row.Scan(&it.ID, &it.Platform, &it.ClipType, &it.SourceMediaPath, &it.PostContent,
		&latePostID, &it.AccountID, &it.Status, &scheduledFor, &it.PublishedURL,
		&it.FailureReason, &it.CreatedAt, &it.UpdatedAt)
	if err == sql.ErrNoRows {
		return it, ErrNotFound
	}
	if latePostID.Valid {
		it.LatePostID = &latePostID.String
	}
	if scheduledFor.Valid {
		it.ScheduledFor = &scheduledFor.String
	}
	return it, err
}

func (r Repo) InsertItem(ctx context.Context, it domain.QueueItem) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO queue_items(id,platform,clip_type,source_media_path,post_content,late_post_id,account_id,status,scheduled_for,published_url,failure_reason,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		it.ID, it.Platform, string(it.ClipType), nullable(it.SourceMediaPath), it.PostContent,
		it.LatePostID, nullable(it.AccountID), it.Status, it.ScheduledFor, nullable(it.PublishedURL),
		nullable(it.FailureReason), it.CreatedAt, it.UpdatedAt)
	return err
}

func (r Repo) GetItem(ctx context.Context, id string) (domain.QueueItem, error) {
	return scanItem(r.DB.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id=?`, id))
}

// ListItems returns queue items, optionally filtered by status and platform.
func (r Repo) ListItems(ctx context.Context, status, platform string) ([]domain.QueueItem, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items`
	var (
		clauses []string
		args    []any
	)
	if status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, status)
	}
	if platform != "" {
		clauses = append(clauses, "platform=?")
		args = append(args, platform)
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.QueueItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListPublished returns published items paired with their post content, the
// local side of the clip-type join against remote posts.
func (r Repo) ListPublished(ctx context.Context) ([]domain.PublishedItem, error) {
	items, err := r.ListItems(ctx, "published", "")
	if err != nil {
		return nil, err
	}
	published := make([]domain.PublishedItem, 0, len(items))
	for _, it := range items {
		published = append(published, domain.PublishedItem{Item: it, PostContent: it.PostContent})
	}
	return published, nil
}

// SetItemStatus moves an item between review states (pending, approved,
// rejected); publication transitions go through MarkPublished/MarkFailed.
func (r Repo) SetItemStatus(ctx context.Context, id, status, reason string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := r.DB.ExecContext(ctx, `UPDATE queue_items SET status=?, failure_reason=?, updated_at=? WHERE id=?`,
		status, nullable(reason), now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPublished records the remote post id and assigned slot after a
// successful dispatch.
func (r Repo) MarkPublished(ctx context.Context, id, latePostID string, scheduledFor time.Time, publishedURL string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := r.DB.ExecContext(ctx,
		`UPDATE queue_items SET status='published', late_post_id=?, scheduled_for=?, published_url=?, failure_reason=NULL, updated_at=? WHERE id=?`,
		latePostID, scheduledFor.UTC().Format(time.RFC3339), nullable(publishedURL), now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) MarkFailed(ctx context.Context, id, reason string) error {
	return r.SetItemStatus(ctx, id, "failed", reason)
}

func (r Repo) CountItemsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// EventsAfter returns up to limit events with id greater than cursor.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`,
		cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := r.DB.QueryRowContext(ctx, `SELECT MAX(id) FROM events`).Scan(&id); err != nil {
		return 0, fmt.Errorf("latest event id: %w", err)
	}
	return id.Int64, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
