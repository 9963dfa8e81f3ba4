package models

// HallType classifies bookable rooms.
type HallType string

const (
	HallTypeLecturerHall HallType = "Lecturer Hall"
	HallTypeLaboratory   HallType = "Laboratory"
	HallTypeMeetingRoom  HallType = "Meeting Room"
)

// Room is a bookable space identified by its LID.
type Room struct {
	LID            string   `db:"lid" json:"LID"`
	HallType       HallType `db:"hall_type" json:"hallType"`
	Department     string   `db:"department" json:"department"`
	Floor          string   `db:"floor" json:"floor"`
	TotalSeats     int      `db:"total_seats" json:"totalSeats"`
	TotalComputers *int     `db:"total_computers" json:"totalComputers,omitempty"`
	IsMassHall     bool     `db:"is_mass_hall" json:"isMassHall"`
	IsGeneralHall  bool     `db:"is_general_hall" json:"isGeneralHall"`
	IsMiniHall     bool     `db:"is_mini_hall" json:"isMiniHall"`
}

// CategoryValid reports whether a lecturer hall carries exactly one category flag.
// Other hall types must not carry any.
func (r Room) CategoryValid() bool {
	flags := 0
	for _, set := range []bool{r.IsMassHall, r.IsGeneralHall, r.IsMiniHall} {
		if set {
			flags++
		}
	}
	if r.HallType == HallTypeLecturerHall {
		return flags == 1
	}
	return flags == 0
}

// RoomFilter narrows room listings.
type RoomFilter struct {
	HallType HallType
}
