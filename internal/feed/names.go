package feed

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"

	"github.com/zpcg-gtfs/poller/internal/timetable"
)

// GTFS route types (basic and extended)
const (
	RouteTypeRail         = 2
	RouteTypeBus          = 3
	RouteTypeLongDistance = 102
	RouteTypeRegionalRail = 106
)

// ErrUnsupportedMode is returned for transport modes the feed does not model
var ErrUnsupportedMode = errors.New("unsupported mode")

// SplitTripName separates a category prefix from the train number.
// "IC 1137" -> ("IC", "1137"), "R 6 100" -> ("R", "6100"), "1137" -> ("", "1137").
func SplitTripName(name string) (category, number string) {
	parts := strings.Split(name, " ")
	if len(parts) >= 2 && isAlpha(parts[0]) {
		return parts[0], strings.Join(parts[1:], "")
	}
	return "", name
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// RouteType maps a mode and train category onto a GTFS route type.
// Unknown train categories fall back to plain rail; known is false for them.
func RouteType(mode timetable.Mode, category string) (routeType int, known bool, err error) {
	switch mode {
	case timetable.ModeBus:
		return RouteTypeBus, true, nil
	case timetable.ModeTrain:
		switch category {
		case "R", "E":
			return RouteTypeRegionalRail, true, nil
		case "IC", "EC", "D":
			return RouteTypeLongDistance, true, nil
		case "":
			return RouteTypeRail, true, nil
		default:
			log.Printf("Warning: unknown train category %q", category)
			return RouteTypeRail, false, nil
		}
	}
	return 0, false, fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
}

// TimeToGTFS formats t as HH:MM:SS relative to midnight of refDate's calendar
// date in t's location. Hours exceed 23 for trips running past midnight.
func TimeToGTFS(refDate, t time.Time) string {
	y, m, d := refDate.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	seconds := int64(t.Sub(midnight) / time.Second)
	if t.Sub(midnight)%time.Second < 0 {
		seconds--
	}

	hours := floorDiv(seconds, 3600)
	minutes := floorDiv(seconds-hours*3600, 60)
	secs := seconds - hours*3600 - minutes*60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// ServiceDate formats the calendar date of t as YYYYMMDD
func ServiceDate(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}
