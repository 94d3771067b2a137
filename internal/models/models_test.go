package models

import (
	"testing"
)

func TestProjectStatus(t *testing.T) {
	statuses := []ProjectStatus{
		ProjectStatusDraft,
		ProjectStatusProcessing,
		ProjectStatusCompleted,
		ProjectStatusFailed,
	}

	for _, status := range statuses {
		if status == "" {
			t.Errorf("empty status found")
		}
	}
}

func TestClipStatusTerminal(t *testing.T) {
	cases := map[ClipStatus]bool{
		ClipStatusPending:    false,
		ClipStatusProcessing: false,
		ClipStatusCompleted:  true,
		ClipStatusFailed:     true,
	}

	for status, want := range cases {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestDurationFromSeconds(t *testing.T) {
	if d := DurationFromSeconds(0); d != ClipDurationShort {
		t.Errorf("expected default 5, got %s", d)
	}
	if d := DurationFromSeconds(5); d != ClipDurationShort {
		t.Errorf("expected 5, got %s", d)
	}
	if d := DurationFromSeconds(10); d != ClipDurationLong {
		t.Errorf("expected 10, got %s", d)
	}
}

func TestClipCompletedRequiresURL(t *testing.T) {
	url := "https://cdn.example.com/clip.mp4"
	empty := ""

	clip := VideoClip{Status: ClipStatusCompleted}
	if clip.Completed() {
		t.Error("completed clip without url must not count as completed")
	}

	clip.ClipURL = &empty
	if clip.Completed() {
		t.Error("completed clip with empty url must not count as completed")
	}

	clip.ClipURL = &url
	if !clip.Completed() {
		t.Error("expected clip to be completed")
	}
}

func TestEndFrameURLFallsBackToSource(t *testing.T) {
	clip := VideoClip{SourceImageURL: "https://img/start.jpg"}
	if got := clip.EndFrameURL(); got != "https://img/start.jpg" {
		t.Errorf("expected source image, got %s", got)
	}

	end := "https://img/end.jpg"
	clip.EndImageURL = &end
	if got := clip.EndFrameURL(); got != end {
		t.Errorf("expected end image, got %s", got)
	}
}

func TestRoomTypes(t *testing.T) {
	if len(AllRoomTypes) != 27 {
		t.Fatalf("expected 27 room types, got %d", len(AllRoomTypes))
	}
	if !RoomKitchen.Valid() {
		t.Error("kitchen should be valid")
	}
	if RoomType("attic").Valid() {
		t.Error("attic is not a room type")
	}
	if !AspectRatioPortrait.Valid() || AspectRatio("4:3").Valid() {
		t.Error("aspect ratio validation is wrong")
	}
}
