package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bobarin/tourgen/internal/models"
)

const projectColumns = `
	id, workspace_id, name, aspect_ratio, clip_count, completed_clip_count,
	status, generate_native_audio, music_track_id, error_message,
	created_at, updated_at
`

func scanProject(row interface{ Scan(...any) error }, p *models.VideoProject) error {
	return row.Scan(
		&p.ID, &p.WorkspaceID, &p.Name, &p.AspectRatio, &p.ClipCount, &p.CompletedClipCount,
		&p.Status, &p.GenerateNativeAudio, &p.MusicTrackID, &p.ErrorMessage,
		&p.CreatedAt, &p.UpdatedAt,
	)
}

func (db *DB) CreateVideoProject(ctx context.Context, p *models.VideoProject) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = models.ProjectStatusDraft
	}
	if p.AspectRatio == "" {
		p.AspectRatio = models.AspectRatioLandscape
	}
	now := db.timestamp()
	p.CreatedAt, p.UpdatedAt = now, now

	query := `
		INSERT INTO video_projects (
			id, workspace_id, name, aspect_ratio, clip_count, completed_clip_count,
			status, generate_native_audio, music_track_id, error_message,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.exec(ctx, query,
		p.ID, p.WorkspaceID, p.Name, p.AspectRatio, p.ClipCount, p.CompletedClipCount,
		p.Status, p.GenerateNativeAudio, p.MusicTrackID, p.ErrorMessage,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create video project: %w", err)
	}
	return nil
}

func (db *DB) GetVideoProject(ctx context.Context, id uuid.UUID) (*models.VideoProject, error) {
	query := `SELECT ` + projectColumns + ` FROM video_projects WHERE id = ?`

	p := &models.VideoProject{}
	err := scanProject(db.queryRow(ctx, query, id), p)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("video project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video project: %w", err)
	}
	return p, nil
}

// GetVideoProjectWithTrack loads the project together with its music track, if any.
func (db *DB) GetVideoProjectWithTrack(ctx context.Context, id uuid.UUID) (*models.VideoProjectWithTrack, error) {
	p, err := db.GetVideoProject(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &models.VideoProjectWithTrack{VideoProject: *p}
	if p.MusicTrackID == nil {
		return out, nil
	}

	track, err := db.GetMusicTrack(ctx, *p.MusicTrackID)
	if errors.Is(err, ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	out.MusicTrack = track
	return out, nil
}

func (db *DB) UpdateVideoProjectStatus(ctx context.Context, id uuid.UUID, status models.ProjectStatus) error {
	query := `UPDATE video_projects SET status = ?, updated_at = ? WHERE id = ?`
	res, err := db.exec(ctx, query, status, db.timestamp(), id)
	if err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}
	return expectRow(res, "video project", id)
}

// UpdateProjectAggregates writes the derived counters and status. It touches no other column.
func (db *DB) UpdateProjectAggregates(ctx context.Context, id uuid.UUID, clipCount, completed int, status models.ProjectStatus) error {
	query := `
		UPDATE video_projects
		SET clip_count = ?, completed_clip_count = ?, status = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := db.exec(ctx, query, clipCount, completed, status, db.timestamp(), id)
	if err != nil {
		return fmt.Errorf("failed to update project aggregates: %w", err)
	}
	return expectRow(res, "video project", id)
}

func expectRow(res sql.Result, kind string, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
