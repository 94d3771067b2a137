package video

import (
	"fmt"
	"strings"

	"github.com/bobarin/tourgen/internal/models"
)

// ---------------------------------------------------------------------------
// Motion prompts
// Structure: [Camera action] + [Direction/Speed] + [Framing] + [Subject focus] + [Style].
// One camera movement per prompt; combined movements produce warped geometry.
// ---------------------------------------------------------------------------

// NegativePrompt lists artifacts the vendor should avoid on every generation.
const NegativePrompt = "blurry, low resolution, distorted, shaky camera, jerky motion, flickering, morphing, unstable geometry, warped textures, overexposed, underexposed, watermark, text overlay, extra limbs, floating objects"

// TransitionPrompt is used for every seamless blend between two shots.
const TransitionPrompt = "Smooth, seamless morphing transition between two scenes. Professional cinematic blend with natural motion. Elegant and fluid transformation."

const otherPrompt = "Camera tracks slowly across the space at medium distance, maintaining a steady horizontal movement. Highlights the room's unique features, textures, and natural lighting. Professional real estate cinematography style, 4k high resolution."

var motionPrompts = map[models.RoomType]string{
	models.RoomExterior:      "Camera performs a slow, cinematic dolly-in towards the front facade at eye-level. Natural daylight highlights architectural textures, professional landscaping, and the driveway. Steady movement, luxury real estate style, 4k high resolution.",
	models.RoomHallway:       "Camera pushes forward smoothly through the entrance and into the hallway. Warm ambient lighting creates a welcoming atmosphere, revealing the transition into the main living spaces. Stable motion, professional real estate cinematography, 4k high resolution.",
	models.RoomLivingRoom:    "Camera performs a slow, sweeping pan from left to right across the living room at eye-level. Natural sunlight streams through windows, illuminating hardwood floors and plush furniture textures. Steady, professional real estate cinematography, 4k high resolution, serene atmosphere.",
	models.RoomKitchen:       "Camera tracks slowly along the kitchen island and countertops at medium distance. Highlights the clean lines of the cabinetry, modern stainless steel appliances, and premium finishes. Bright, clear lighting, professional real estate style, 4k high resolution.",
	models.RoomDiningRoom:    "Camera slowly pulls back from the dining table at eye-level, revealing the elegant setting and connection to adjacent rooms. Warm, soft lighting creates an inviting atmosphere for entertaining. Steady motion, professional cinematography, 4k high resolution.",
	models.RoomTVRoom:        "Camera pans slowly across the cozy media room, highlighting the comfortable seating arrangement and large screen. Dim, moody lighting creates a perfect cinematic experience. Steady, professional real estate cinematography, 4k high resolution.",
	models.RoomBedroom:       "Camera tracks gently across the primary bedroom, showcasing the spacious layout and soft bedding textures. Natural light from windows creates a calm, tranquil retreat. Smooth horizontal movement, professional real estate style, 4k high resolution.",
	models.RoomChildrensRoom: "Camera tracks right across the bright and playful children's room. Highlights the organized toys, creative wall decor, and natural window light. Warm, cheerful atmosphere, 4k high resolution.",
	models.RoomBathroom:      "Camera pushes forward slowly into the spa-like bathroom. Steady motion highlights the premium fixtures, glass shower details, and clean surfaces. Bright, clean lighting, professional real estate cinematography, 4k high resolution.",
	models.RoomToilet:        "Camera performs a slow, steady pan across the modern restroom, highlighting premium tile work and sleek fixtures. Clean, bright lighting, 4k high resolution.",
	models.RoomWalkInCloset:  "Camera tracks slowly through the spacious walk-in closet, showcasing custom cabinetry and organized storage. Bright, even lighting highlights the premium finishes. 4k high resolution.",
	models.RoomLaundryRoom:   "Camera pans across the functional laundry room, highlighting the modern appliances, storage solutions, and clean workspace. Bright, practical lighting, 4k high resolution.",
	models.RoomOffice:        "Camera tracks right across the quiet office space at eye-level. Steady movement reveals the organized workspace, natural window light, and productive environment. Modern professional style, 4k high resolution.",
	models.RoomLibrary:       "Camera tracks slowly across the built-in bookshelves and cozy reading area. Soft, warm lighting creates a peaceful, intellectual atmosphere. 4k high resolution.",
	models.RoomGym:           "Camera performs a slow pan across the home gym area, highlighting the fitness equipment and professional flooring. Bright, energetic lighting, 4k high resolution.",
	models.RoomSauna:         "Camera tracks slowly across the wooden sauna interior. Soft, warm lighting highlights the cedar textures and peaceful atmosphere. Steady motion, 4k high resolution.",
	models.RoomPoolArea:      "Camera performs a cinematic sweep across the indoor pool area, highlighting the sparkling water and surrounding lounge space. Bright, expansive lighting, 4k high resolution.",
	models.RoomHobbyRoom:     "Camera tracks right across the workshop or hobby space, revealing the organized tools and creative workspace. Practical lighting, 4k high resolution.",
	models.RoomPantry:        "Camera pans across the organized pantry shelves, highlighting the custom storage and ample space. Bright, clear lighting, 4k high resolution.",
	models.RoomStorageRoom:   "Camera tracks slowly through the storage area, highlighting the clean, organized space and shelving. Practical lighting, 4k high resolution.",
	models.RoomUtilityRoom:   "Camera pans across the utility room, highlighting the clean installation of home systems and equipment. Bright, practical lighting, 4k high resolution.",
	models.RoomConservatory:  "Camera performs a slow, sweeping pan across the sunlit conservatory. Abundant natural light highlights the lush plants and connection to the garden. 4k high resolution.",
	models.RoomGarage:        "Camera tracks slowly through the clean, spacious garage, highlighting the professional flooring and storage possibilities. Bright, practical lighting, 4k high resolution.",
	models.RoomTerrace:       "Camera pans slowly across the outdoor terrace or balcony, highlighting the seating area and view. Natural daylight or golden hour lighting creates a relaxing atmosphere. 4k high resolution.",
	models.RoomGarden:        "Camera performs a slow, cinematic sweep across the landscaped garden. Natural sunlight highlights the lush greenery and peaceful outdoor environment. 4k high resolution.",
	models.RoomLandscape:     "Camera performs a wide, sweeping pan across the surrounding property landscape. Captures the expansive views and natural beauty of the setting. 4k high resolution.",
	models.RoomOther:         otherPrompt,
}

// MotionPrompt returns the base camera instruction for a room type.
// Unmapped room types get the generic "other" prompt.
func MotionPrompt(room models.RoomType) string {
	if p, ok := motionPrompts[room]; ok {
		return p
	}
	return otherPrompt
}

// GenerateMotionPrompt appends trimmed custom additions to the room's base prompt.
// Blank additions return the base prompt unchanged.
func GenerateMotionPrompt(room models.RoomType, customAdditions string) string {
	base := MotionPrompt(room)
	extra := strings.TrimSpace(customAdditions)
	if extra == "" {
		return base
	}
	return base + " " + extra
}

// TowardRoom steers the camera towards the room the next shot starts in,
// so consecutive clips read as one walk-through.
func TowardRoom(prompt, targetRoomLabel string) string {
	label := strings.TrimSpace(targetRoomLabel)
	if label == "" {
		return prompt
	}
	return fmt.Sprintf("%s The camera gradually moves toward the %s.", prompt, strings.ToLower(label))
}

// AudioPrompt builds the clause appended when the project asks for native audio:
// music derived from the selected track (or a cinematic ambient fallback) plus
// ambient sounds of the room.
func AudioPrompt(track *models.MusicTrack, roomName string) string {
	var music string
	if track != nil {
		mood := ""
		if track.Mood != nil && strings.TrimSpace(*track.Mood) != "" {
			mood = strings.TrimSpace(*track.Mood) + " "
		}
		music = fmt.Sprintf("Background audio: %s%s music inspired by \"%s\".", mood, track.Category, track.Name)
	} else {
		music = "Background cinematic ambient music."
	}

	return fmt.Sprintf("%s Ambient environmental sounds of a %s.", music, roomName)
}

// AmbientRoomName is the room name used in the audio clause: the clip's own label
// when set, otherwise the room type with dashes spelled as spaces.
func AmbientRoomName(room models.RoomType, label *string) string {
	if label != nil && strings.TrimSpace(*label) != "" {
		return strings.TrimSpace(*label)
	}
	return strings.ReplaceAll(string(room), "-", " ")
}
