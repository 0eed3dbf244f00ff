package models

import "fmt"

// MilestoneBadgeCode is the badge awarded for reaching a streak milestone
func MilestoneBadgeCode(days int) string {
	return fmt.Sprintf("streak_%d", days)
}

var badgeNames = map[string]string{
	"streak_7":   "Week Warrior",
	"streak_14":  "Fortnight Regular",
	"streak_30":  "Monthly Maven",
	"streak_60":  "Two-Month Titan",
	"streak_100": "Century Voice",
	"streak_365": "Year of Opinions",
}

// BadgeName returns the display name, or the code for unknown badges
func BadgeName(code string) string {
	if name, ok := badgeNames[code]; ok {
		return name
	}
	return code
}
