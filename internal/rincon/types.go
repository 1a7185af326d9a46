package rincon

// Snapshot is the reservation state returned by the El Rincón de Lola API.
// /api/today omits the date field; /api/prev and /api/next include it.
// A Snapshot is always replaced wholesale, never patched.
type Snapshot struct {
	HasReservation bool    `json:"has_reservation"`
	UserName       *string `json:"user_name"`
	Date           *string `json:"date"`
	IsBirthday     bool    `json:"is_birthday"`
	IsHoliday      bool    `json:"is_holiday"`
	ProfilePicURL  *string `json:"profile_pic_url"`
}

// API endpoints served by the reservation backend.
const (
	EndpointToday  = "/api/today"
	EndpointPrev   = "/api/prev"
	EndpointNext   = "/api/next"
	EndpointEvents = "/api/events"
)
