package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/tourgen/internal/models"
)

const clipColumns = `
	id, video_project_id, sequence_order, room_type, room_label,
	source_image_url, end_image_url, motion_prompt, duration_seconds,
	transition_type, status, clip_url, transition_clip_url, error_message,
	lease_owner, lease_expires_at, created_at, updated_at
`

func scanClip(row interface{ Scan(...any) error }, c *models.VideoClip) error {
	var leaseExpires sql.NullInt64
	err := row.Scan(
		&c.ID, &c.VideoProjectID, &c.SequenceOrder, &c.RoomType, &c.RoomLabel,
		&c.SourceImageURL, &c.EndImageURL, &c.MotionPrompt, &c.DurationSeconds,
		&c.TransitionType, &c.Status, &c.ClipURL, &c.TransitionClipURL, &c.ErrorMessage,
		&c.LeaseOwner, &leaseExpires, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if leaseExpires.Valid {
		t := time.UnixMilli(leaseExpires.Int64).UTC()
		c.LeaseExpiresAt = &t
	}
	return nil
}

func (db *DB) CreateVideoClip(ctx context.Context, c *models.VideoClip) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = models.ClipStatusPending
	}
	if c.TransitionType == "" {
		c.TransitionType = models.TransitionCut
	}
	if c.DurationSeconds == 0 {
		c.DurationSeconds = 5
	}
	now := db.timestamp()
	c.CreatedAt, c.UpdatedAt = now, now

	query := `
		INSERT INTO video_clips (
			id, video_project_id, sequence_order, room_type, room_label,
			source_image_url, end_image_url, motion_prompt, duration_seconds,
			transition_type, status, clip_url, transition_clip_url, error_message,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.exec(ctx, query,
		c.ID, c.VideoProjectID, c.SequenceOrder, c.RoomType, c.RoomLabel,
		c.SourceImageURL, c.EndImageURL, c.MotionPrompt, c.DurationSeconds,
		c.TransitionType, c.Status, c.ClipURL, c.TransitionClipURL, c.ErrorMessage,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create video clip: %w", err)
	}
	return nil
}

func (db *DB) GetVideoClip(ctx context.Context, id uuid.UUID) (*models.VideoClip, error) {
	query := `SELECT ` + clipColumns + ` FROM video_clips WHERE id = ?`

	c := &models.VideoClip{}
	err := scanClip(db.queryRow(ctx, query, id), c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("video clip %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video clip: %w", err)
	}
	return c, nil
}

// ListProjectClips returns the project's clips in sequence order.
func (db *DB) ListProjectClips(ctx context.Context, projectID uuid.UUID) ([]models.VideoClip, error) {
	query := `SELECT ` + clipColumns + ` FROM video_clips WHERE video_project_id = ? ORDER BY sequence_order, created_at`
	return db.listClips(ctx, query, projectID)
}

// ListClipsByStatus returns every clip in the given status, oldest update first.
func (db *DB) ListClipsByStatus(ctx context.Context, status models.ClipStatus) ([]models.VideoClip, error) {
	query := `SELECT ` + clipColumns + ` FROM video_clips WHERE status = ? ORDER BY updated_at`
	return db.listClips(ctx, query, status)
}

func (db *DB) listClips(ctx context.Context, query string, args ...any) ([]models.VideoClip, error) {
	rows, err := db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clips: %w", err)
	}
	defer rows.Close()

	var clips []models.VideoClip
	for rows.Next() {
		var c models.VideoClip
		if err := scanClip(rows, &c); err != nil {
			return nil, fmt.Errorf("failed to scan clip: %w", err)
		}
		clips = append(clips, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clips: %w", err)
	}
	return clips, nil
}

// MarkClipProcessing moves a pending or processing clip into processing. Completed
// and failed clips are left alone; a failed clip needs ResetFailedClips first.
func (db *DB) MarkClipProcessing(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE video_clips SET status = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)`
	_, err := db.exec(ctx, query, models.ClipStatusProcessing, db.timestamp(), id,
		models.ClipStatusPending, models.ClipStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to mark clip processing: %w", err)
	}
	return nil
}

// CompleteClip records the durable asset and clears any earlier error.
func (db *DB) CompleteClip(ctx context.Context, id uuid.UUID, clipURL string) error {
	query := `
		UPDATE video_clips
		SET status = ?, clip_url = ?, error_message = NULL, updated_at = ?
		WHERE id = ?
	`
	res, err := db.exec(ctx, query, models.ClipStatusCompleted, clipURL, db.timestamp(), id)
	if err != nil {
		return fmt.Errorf("failed to complete clip: %w", err)
	}
	return expectRow(res, "video clip", id)
}

// FailClip records a terminal failure. A clip that already completed keeps its asset.
func (db *DB) FailClip(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE video_clips
		SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND status <> ?
	`
	_, err := db.exec(ctx, query, models.ClipStatusFailed, message, db.timestamp(), id, models.ClipStatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to mark clip failed: %w", err)
	}
	return nil
}

// SetTransitionURL stores the blend leaving this clip. Status and clip_url are untouched.
func (db *DB) SetTransitionURL(ctx context.Context, id uuid.UUID, url string) error {
	query := `UPDATE video_clips SET transition_clip_url = ?, updated_at = ? WHERE id = ?`
	res, err := db.exec(ctx, query, url, db.timestamp(), id)
	if err != nil {
		return fmt.Errorf("failed to set transition url: %w", err)
	}
	return expectRow(res, "video clip", id)
}

// ResetFailedClips moves the project's failed clips back to pending so they can be
// re-run. It is the only backwards status transition.
func (db *DB) ResetFailedClips(ctx context.Context, projectID uuid.UUID) (int64, error) {
	query := `
		UPDATE video_clips
		SET status = ?, error_message = NULL, updated_at = ?
		WHERE video_project_id = ? AND status = ?
	`
	res, err := db.exec(ctx, query, models.ClipStatusPending, db.timestamp(), projectID, models.ClipStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("failed to reset failed clips: %w", err)
	}
	return res.RowsAffected()
}

// UpdateClipSequence persists new sequence orders in one transaction.
func (db *DB) UpdateClipSequence(ctx context.Context, clips []models.VideoClip) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := db.rebind(`UPDATE video_clips SET sequence_order = ?, updated_at = ? WHERE id = ?`)
	now := db.timestamp()
	for _, c := range clips {
		if _, err := tx.ExecContext(ctx, query, c.SequenceOrder, now, c.ID); err != nil {
			return fmt.Errorf("failed to update sequence of clip %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sequence: %w", err)
	}
	return nil
}

// AcquireClipLease claims the clip for owner until ttl elapses. The same owner may
// re-acquire; anyone else gets ErrLeaseHeld until the lease expires.
func (db *DB) AcquireClipLease(ctx context.Context, id uuid.UUID, owner string, ttl time.Duration) error {
	now := db.now()
	query := `
		UPDATE video_clips
		SET lease_owner = ?, lease_expires_at = ?
		WHERE id = ? AND (lease_owner IS NULL OR lease_owner = ? OR lease_expires_at IS NULL OR lease_expires_at < ?)
	`
	res, err := db.exec(ctx, query, owner, now.Add(ttl).UnixMilli(), id, owner, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to acquire clip lease: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		if _, err := db.GetVideoClip(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("video clip %s: %w", id, ErrLeaseHeld)
	}
	return nil
}

// ReleaseClipLease drops owner's lease. Releasing a lease owned by someone else is a no-op.
func (db *DB) ReleaseClipLease(ctx context.Context, id uuid.UUID, owner string) error {
	query := `UPDATE video_clips SET lease_owner = NULL, lease_expires_at = NULL WHERE id = ? AND lease_owner = ?`
	if _, err := db.exec(ctx, query, id, owner); err != nil {
		return fmt.Errorf("failed to release clip lease: %w", err)
	}
	return nil
}

// ListStuckClips returns processing clips untouched for staleAfter whose lease,
// if any, has expired.
func (db *DB) ListStuckClips(ctx context.Context, staleAfter time.Duration) ([]models.VideoClip, error) {
	clips, err := db.ListClipsByStatus(ctx, models.ClipStatusProcessing)
	if err != nil {
		return nil, err
	}

	now := db.now()
	cutoff := now.Add(-staleAfter)
	stuck := clips[:0]
	for _, c := range clips {
		if c.UpdatedAt.After(cutoff) {
			continue
		}
		if c.LeaseExpiresAt != nil && c.LeaseExpiresAt.After(now) {
			continue
		}
		stuck = append(stuck, c)
	}
	return stuck, nil
}
