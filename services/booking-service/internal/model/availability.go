package model

// BreakTime is a half-open [Start, End) window removed from a working day.
type BreakTime struct {
	Start string
	End   string
}

// WeeklyAvailability is one provider's open hours for one weekday
// (0 = Sunday ... 6 = Saturday).
type WeeklyAvailability struct {
	ID           string
	ProviderID   string
	DayOfWeek    int
	StartTime    string
	EndTime      string
	SlotDuration int
	BreakTimes   []BreakTime
}

// AllowedSlotDurations lists the slot lengths, in minutes, a schedule may use.
var AllowedSlotDurations = []int{15, 30, 45, 60}

func ValidSlotDuration(mins int) bool {
	for _, d := range AllowedSlotDurations {
		if d == mins {
			return true
		}
	}
	return false
}
