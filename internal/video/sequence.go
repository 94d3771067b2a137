package video

import (
	"sort"
	"strings"

	"github.com/bobarin/tourgen/internal/models"
)

// unmappedPriority sorts unknown room types after every enumerated one.
const unmappedPriority = 100

type roomInfo struct {
	label    string
	priority int
}

// Tour order: arrive outside, enter, living areas, bedrooms, wet rooms,
// utility spaces, then back outside.
var rooms = map[models.RoomType]roomInfo{
	models.RoomExterior:      {"Exterior", 1},
	models.RoomHallway:       {"Hallway/Entrance", 2},
	models.RoomLivingRoom:    {"Living Room", 3},
	models.RoomKitchen:       {"Kitchen", 4},
	models.RoomDiningRoom:    {"Dining Room", 5},
	models.RoomTVRoom:        {"TV Room/Media Room", 6},
	models.RoomBedroom:       {"Bedroom", 7},
	models.RoomChildrensRoom: {"Children's Room", 8},
	models.RoomBathroom:      {"Bathroom", 9},
	models.RoomToilet:        {"Toilet", 10},
	models.RoomWalkInCloset:  {"Walk-in Closet", 11},
	models.RoomLaundryRoom:   {"Laundry Room", 12},
	models.RoomOffice:        {"Office/Workspace", 13},
	models.RoomLibrary:       {"Library/Reading Room", 14},
	models.RoomGym:           {"Gym/Exercise Room", 15},
	models.RoomSauna:         {"Sauna", 16},
	models.RoomPoolArea:      {"Pool Area", 17},
	models.RoomHobbyRoom:     {"Hobby Room/Workshop", 18},
	models.RoomPantry:        {"Pantry", 19},
	models.RoomStorageRoom:   {"Storage Room", 20},
	models.RoomUtilityRoom:   {"Utility Room", 21},
	models.RoomConservatory:  {"Conservatory/Sunroom", 22},
	models.RoomGarage:        {"Garage", 23},
	models.RoomTerrace:       {"Terrace/Balcony", 24},
	models.RoomGarden:        {"Garden", 25},
	models.RoomLandscape:     {"Landscape", 26},
	models.RoomOther:         {"Other", 27},
}

// SequencePriority is the room's position in a canonical tour.
func SequencePriority(room models.RoomType) int {
	if info, ok := rooms[room]; ok {
		return info.priority
	}
	return unmappedPriority
}

// RoomLabel returns the display label, or the raw value for unmapped types.
func RoomLabel(room models.RoomType) string {
	if info, ok := rooms[room]; ok {
		return info.label
	}
	return string(room)
}

// AutoSequence returns a copy of clips ordered by room priority. Clips with equal
// priority keep their authored order.
func AutoSequence(clips []models.VideoClip) []models.VideoClip {
	out := make([]models.VideoClip, len(clips))
	copy(out, clips)

	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := SequencePriority(out[i].RoomType), SequencePriority(out[j].RoomType)
		if pi != pj {
			return pi < pj
		}
		return out[i].SequenceOrder < out[j].SequenceOrder
	})
	return out
}

// Reindex assigns dense 1..N sequence orders following slice order.
func Reindex(clips []models.VideoClip) []models.VideoClip {
	out := make([]models.VideoClip, len(clips))
	for i, clip := range clips {
		clip.SequenceOrder = i + 1
		out[i] = clip
	}
	return out
}

// Legacy room names from the image-editing projects, including the Norwegian
// labels the first workspaces were created with.
var roomAliases = map[string]models.RoomType{
	"living-room":   models.RoomLivingRoom,
	"bedroom":       models.RoomBedroom,
	"kitchen":       models.RoomKitchen,
	"bathroom":      models.RoomBathroom,
	"dining-room":   models.RoomDiningRoom,
	"office":        models.RoomOffice,
	"stue":          models.RoomLivingRoom,
	"kjokken":       models.RoomKitchen,
	"soverom":       models.RoomBedroom,
	"bad":           models.RoomBathroom,
	"toalett":       models.RoomToilet,
	"gang":          models.RoomHallway,
	"vaskerom":      models.RoomLaundryRoom,
	"bod":           models.RoomStorageRoom,
	"garderobe":     models.RoomWalkInCloset,
	"badstue":       models.RoomSauna,
	"treningsrom":   models.RoomGym,
	"barnerom":      models.RoomChildrensRoom,
	"bassengområde": models.RoomPoolArea,
	"tvstue":        models.RoomTVRoom,
	"bibliotek":     models.RoomLibrary,
	"hobbyrom":      models.RoomHobbyRoom,
	"tekniskrom":    models.RoomUtilityRoom,
	"matbod":        models.RoomPantry,
	"vinterhage":    models.RoomConservatory,
	"garasje":       models.RoomGarage,
	"terrasse":      models.RoomTerrace,
	"hage":          models.RoomGarden,
	"landskap":      models.RoomLandscape,
	"eksterior":     models.RoomExterior,
}

// MapProjectRoomType converts an image-project room name into a room type.
// Unknown names map to "other".
func MapProjectRoomType(name string) models.RoomType {
	if rt, ok := roomAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return rt
	}
	return models.RoomOther
}
