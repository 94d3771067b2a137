package models

import (
	"time"

	"github.com/google/uuid"
)

// Enums
type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "draft"
	ProjectStatusProcessing ProjectStatus = "processing"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusFailed     ProjectStatus = "failed"
)

type ClipStatus string

const (
	ClipStatusPending    ClipStatus = "pending"
	ClipStatusProcessing ClipStatus = "processing"
	ClipStatusCompleted  ClipStatus = "completed"
	ClipStatusFailed     ClipStatus = "failed"
)

// Terminal reports whether no job will move the clip any further.
func (s ClipStatus) Terminal() bool {
	return s == ClipStatusCompleted || s == ClipStatusFailed
}

type AspectRatio string

const (
	AspectRatioLandscape AspectRatio = "16:9"
	AspectRatioPortrait  AspectRatio = "9:16"
	AspectRatioSquare    AspectRatio = "1:1"
)

func (a AspectRatio) Valid() bool {
	switch a {
	case AspectRatioLandscape, AspectRatioPortrait, AspectRatioSquare:
		return true
	}
	return false
}

// ClipDuration is the vendor's duration string. Only two lengths are supported.
type ClipDuration string

const (
	ClipDurationShort ClipDuration = "5"
	ClipDurationLong  ClipDuration = "10"
)

// DurationFromSeconds maps a stored duration onto the supported set, defaulting to 5s.
func DurationFromSeconds(seconds int) ClipDuration {
	if seconds >= 10 {
		return ClipDurationLong
	}
	return ClipDurationShort
}

type TransitionType string

const (
	TransitionCut      TransitionType = "cut"
	TransitionSeamless TransitionType = "seamless"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Models

type VideoProject struct {
	ID                  uuid.UUID     `json:"id"`
	WorkspaceID         uuid.UUID     `json:"workspace_id"`
	Name                string        `json:"name"`
	AspectRatio         AspectRatio   `json:"aspect_ratio"`
	ClipCount           int           `json:"clip_count"`
	CompletedClipCount  int           `json:"completed_clip_count"`
	Status              ProjectStatus `json:"status"`
	GenerateNativeAudio bool          `json:"generate_native_audio"`
	MusicTrackID        *uuid.UUID    `json:"music_track_id,omitempty"`
	ErrorMessage        *string       `json:"error_message,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

type VideoClip struct {
	ID                uuid.UUID      `json:"id"`
	VideoProjectID    uuid.UUID      `json:"video_project_id"`
	SequenceOrder     int            `json:"sequence_order"`
	RoomType          RoomType       `json:"room_type"`
	RoomLabel         *string        `json:"room_label,omitempty"`
	SourceImageURL    string         `json:"source_image_url"`
	EndImageURL       *string        `json:"end_image_url,omitempty"`
	MotionPrompt      *string        `json:"motion_prompt,omitempty"`
	DurationSeconds   int            `json:"duration_seconds"`
	TransitionType    TransitionType `json:"transition_type"`
	Status            ClipStatus     `json:"status"`
	ClipURL           *string        `json:"clip_url,omitempty"`
	TransitionClipURL *string        `json:"transition_clip_url,omitempty"`
	ErrorMessage      *string        `json:"error_message,omitempty"`
	LeaseOwner        *string        `json:"-"`
	LeaseExpiresAt    *time.Time     `json:"-"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Completed reports whether the clip already holds its generated asset.
func (c *VideoClip) Completed() bool {
	return c.Status == ClipStatusCompleted && c.ClipURL != nil && *c.ClipURL != ""
}

// EndFrameURL is the frame the clip finishes on: its own end frame when set,
// otherwise the start frame.
func (c *VideoClip) EndFrameURL() string {
	if c.EndImageURL != nil && *c.EndImageURL != "" {
		return *c.EndImageURL
	}
	return c.SourceImageURL
}

type MusicTrack struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Category string    `json:"category"`
	Mood     *string   `json:"mood,omitempty"`
}

type ProjectPayment struct {
	ID             uuid.UUID     `json:"id"`
	VideoProjectID uuid.UUID     `json:"video_project_id"`
	Status         PaymentStatus `json:"status"`
	Method         *string       `json:"method,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// VideoProjectWithTrack is the project as the generation jobs need it.
type VideoProjectWithTrack struct {
	VideoProject
	MusicTrack *MusicTrack `json:"music_track,omitempty"`
}

// DTOs for API responses
type VideoProjectResponse struct {
	VideoProject
	Clips []VideoClip `json:"clips"`
}

type TriggerRequest struct {
	VideoProjectID string `json:"videoProjectId"`
}

type TriggerResponse struct {
	VideoProjectID uuid.UUID `json:"videoProjectId"`
	JobIDs         []string  `json:"jobIds"`
	ClipJobs       int       `json:"clipJobs"`
	TransitionJobs int       `json:"transitionJobs"`
}
