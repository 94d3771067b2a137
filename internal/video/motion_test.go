package video

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/tourgen/internal/models"
)

func TestMotionPromptCoversEveryRoom(t *testing.T) {
	for _, room := range models.AllRoomTypes {
		p := MotionPrompt(room)
		assert.NotEmpty(t, p, "room %s", room)
		if room != models.RoomOther {
			assert.NotEqual(t, otherPrompt, p, "room %s should have its own prompt", room)
		}
	}
}

func TestMotionPromptFallsBackToOther(t *testing.T) {
	assert.Equal(t, MotionPrompt(models.RoomOther), MotionPrompt(models.RoomType("attic")))
	assert.Equal(t, otherPrompt, MotionPrompt(""))
}

func TestGenerateMotionPromptBlankAdditionsAreNoop(t *testing.T) {
	for _, room := range models.AllRoomTypes {
		assert.Equal(t, MotionPrompt(room), GenerateMotionPrompt(room, ""))
		assert.Equal(t, MotionPrompt(room), GenerateMotionPrompt(room, "  \t\n"))
	}
}

func TestGenerateMotionPromptAppendsTrimmedAdditions(t *testing.T) {
	got := GenerateMotionPrompt(models.RoomKitchen, "  Focus on the marble island.  ")
	assert.Equal(t, MotionPrompt(models.RoomKitchen)+" Focus on the marble island.", got)
}

func TestTowardRoom(t *testing.T) {
	base := MotionPrompt(models.RoomHallway)

	assert.Equal(t, base, TowardRoom(base, ""))
	assert.Equal(t, base, TowardRoom(base, "   "))
	assert.Equal(t, base+" The camera gradually moves toward the living room.", TowardRoom(base, "Living Room"))
}

func TestAudioPrompt(t *testing.T) {
	mood := "uplifting"
	track := &models.MusicTrack{Name: "Morning Light", Category: "acoustic", Mood: &mood}

	got := AudioPrompt(track, "kitchen")
	assert.Equal(t, `Background audio: uplifting acoustic music inspired by "Morning Light". Ambient environmental sounds of a kitchen.`, got)

	track.Mood = nil
	got = AudioPrompt(track, "kitchen")
	assert.True(t, strings.HasPrefix(got, `Background audio: acoustic music inspired by "Morning Light".`), got)

	got = AudioPrompt(nil, "living room")
	assert.Equal(t, "Background cinematic ambient music. Ambient environmental sounds of a living room.", got)
}

func TestAmbientRoomName(t *testing.T) {
	label := "Master Suite"
	blank := " "

	assert.Equal(t, "Master Suite", AmbientRoomName(models.RoomBedroom, &label))
	assert.Equal(t, "walk in closet", AmbientRoomName(models.RoomWalkInCloset, &blank))
	assert.Equal(t, "living room", AmbientRoomName(models.RoomLivingRoom, nil))
}

func TestFixedPrompts(t *testing.T) {
	require.NotEmpty(t, NegativePrompt)
	assert.Contains(t, NegativePrompt, "watermark")
	assert.Contains(t, TransitionPrompt, "seamless morphing transition")
}
