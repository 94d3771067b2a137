package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bobarin/tourgen/internal/models"
)

// AddWorkspaceMember grants userID access to the workspace. Re-adding is a no-op.
func (db *DB) AddWorkspaceMember(ctx context.Context, workspaceID uuid.UUID, userID, role string) error {
	if role == "" {
		role = "member"
	}
	query := `
		INSERT INTO workspace_members (workspace_id, user_id, role)
		VALUES (?, ?, ?)
		ON CONFLICT (workspace_id, user_id) DO NOTHING
	`
	if _, err := db.exec(ctx, query, workspaceID, userID, role); err != nil {
		return fmt.Errorf("failed to add workspace member: %w", err)
	}
	return nil
}

// IsWorkspaceMember reports whether userID belongs to the workspace.
func (db *DB) IsWorkspaceMember(ctx context.Context, workspaceID uuid.UUID, userID string) (bool, error) {
	query := `SELECT COUNT(*) FROM workspace_members WHERE workspace_id = ? AND user_id = ?`

	var n int
	if err := db.queryRow(ctx, query, workspaceID, userID).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check workspace membership: %w", err)
	}
	return n > 0, nil
}

func (db *DB) CreateProjectPayment(ctx context.Context, p *models.ProjectPayment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = db.timestamp()

	query := `
		INSERT INTO project_payments (id, video_project_id, status, method, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := db.exec(ctx, query, p.ID, p.VideoProjectID, p.Status, p.Method, p.CreatedAt); err != nil {
		return fmt.Errorf("failed to create project payment: %w", err)
	}
	return nil
}

// IsProjectPaid reports whether any payment for the project has completed.
func (db *DB) IsProjectPaid(ctx context.Context, projectID uuid.UUID) (bool, error) {
	query := `SELECT COUNT(*) FROM project_payments WHERE video_project_id = ? AND status = ?`

	var n int
	if err := db.queryRow(ctx, query, projectID, models.PaymentStatusCompleted).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check project payment: %w", err)
	}
	return n > 0, nil
}

func (db *DB) CreateMusicTrack(ctx context.Context, t *models.MusicTrack) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	query := `INSERT INTO music_tracks (id, name, category, mood) VALUES (?, ?, ?, ?)`
	if _, err := db.exec(ctx, query, t.ID, t.Name, t.Category, t.Mood); err != nil {
		return fmt.Errorf("failed to create music track: %w", err)
	}
	return nil
}

func (db *DB) GetMusicTrack(ctx context.Context, id uuid.UUID) (*models.MusicTrack, error) {
	query := `SELECT id, name, category, mood FROM music_tracks WHERE id = ?`

	t := &models.MusicTrack{}
	err := db.queryRow(ctx, query, id).Scan(&t.ID, &t.Name, &t.Category, &t.Mood)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("music track %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get music track: %w", err)
	}
	return t, nil
}
