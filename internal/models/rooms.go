package models

// RoomType classifies a property space. It drives both sequencing and prompt selection.
type RoomType string

const (
	RoomExterior      RoomType = "exterior"
	RoomHallway       RoomType = "hallway"
	RoomLivingRoom    RoomType = "living-room"
	RoomKitchen       RoomType = "kitchen"
	RoomDiningRoom    RoomType = "dining-room"
	RoomTVRoom        RoomType = "tv-room"
	RoomBedroom       RoomType = "bedroom"
	RoomChildrensRoom RoomType = "childrens-room"
	RoomBathroom      RoomType = "bathroom"
	RoomToilet        RoomType = "toilet"
	RoomWalkInCloset  RoomType = "walk-in-closet"
	RoomLaundryRoom   RoomType = "laundry-room"
	RoomOffice        RoomType = "office"
	RoomLibrary       RoomType = "library"
	RoomGym           RoomType = "gym"
	RoomSauna         RoomType = "sauna"
	RoomPoolArea      RoomType = "pool-area"
	RoomHobbyRoom     RoomType = "hobby-room"
	RoomPantry        RoomType = "pantry"
	RoomStorageRoom   RoomType = "storage-room"
	RoomUtilityRoom   RoomType = "utility-room"
	RoomConservatory  RoomType = "conservatory"
	RoomGarage        RoomType = "garage"
	RoomTerrace       RoomType = "terrace"
	RoomGarden        RoomType = "garden"
	RoomLandscape     RoomType = "landscape"
	RoomOther         RoomType = "other"
)

// AllRoomTypes lists every room type in canonical tour order.
var AllRoomTypes = []RoomType{
	RoomExterior,
	RoomHallway,
	RoomLivingRoom,
	RoomKitchen,
	RoomDiningRoom,
	RoomTVRoom,
	RoomBedroom,
	RoomChildrensRoom,
	RoomBathroom,
	RoomToilet,
	RoomWalkInCloset,
	RoomLaundryRoom,
	RoomOffice,
	RoomLibrary,
	RoomGym,
	RoomSauna,
	RoomPoolArea,
	RoomHobbyRoom,
	RoomPantry,
	RoomStorageRoom,
	RoomUtilityRoom,
	RoomConservatory,
	RoomGarage,
	RoomTerrace,
	RoomGarden,
	RoomLandscape,
	RoomOther,
}

func (r RoomType) Valid() bool {
	for _, rt := range AllRoomTypes {
		if rt == r {
			return true
		}
	}
	return false
}
