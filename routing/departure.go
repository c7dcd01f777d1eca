package routing

import (
	"fmt"
	"strings"
	"time"

	"finnsync/models"
)

// Policy decides departure times and leg direction for commute attributes.
type Policy struct {
	MorningWeekday time.Weekday
	MorningHour    int
	ReturnHour     int
	Location       *time.Location
}

// NewPolicy parses the configured weekday and timezone.
func NewPolicy(weekday string, morningHour, returnHour int, timezone string) (Policy, error) {
	wd, err := ParseWeekday(weekday)
	if err != nil {
		return Policy{}, err
	}
	loc := time.UTC
	if timezone != "" {
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return Policy{}, fmt.Errorf("load timezone %s: %w", timezone, err)
		}
	}
	if morningHour < 0 || morningHour > 23 || returnHour < 0 || returnHour > 23 {
		return Policy{}, fmt.Errorf("departure hours must be 0-23, got %d and %d", morningHour, returnHour)
	}
	return Policy{MorningWeekday: wd, MorningHour: morningHour, ReturnHour: returnHour, Location: loc}, nil
}

func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return time.Monday, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// NextDeparture is the first time strictly after now that falls on weekday
// at hour:00 in loc.
func NextDeparture(now time.Time, weekday time.Weekday, hour int, loc *time.Location) time.Time {
	local := now.In(loc)
	days := (int(weekday) - int(local.Weekday()) + 7) % 7
	t := time.Date(local.Year(), local.Month(), local.Day()+days, hour, 0, 0, 0, loc)
	if !t.After(local) {
		t = t.AddDate(0, 0, 7)
	}
	return t
}

// Departure returns the departure time for leg. Return legs leave on the
// same day as the morning leg.
func (p Policy) Departure(leg models.Leg, now time.Time) time.Time {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	morning := NextDeparture(now, p.MorningWeekday, p.MorningHour, loc)
	if leg == models.LegAfternoon {
		return time.Date(morning.Year(), morning.Month(), morning.Day(), p.ReturnHour, 0, 0, 0, loc)
	}
	return morning
}

// BuildRequest turns attr into a routing request for a listing address.
// Morning legs go from the listing to the anchor, afternoon legs back.
func (p Policy) BuildRequest(attr models.CommuteAttribute, origin, anchorAddress string, now time.Time) Request {
	req := Request{
		Origin:        origin,
		Destination:   anchorAddress,
		Mode:          attr.Mode,
		DepartureTime: p.Departure(attr.Leg, now),
	}
	if attr.Leg == models.LegAfternoon {
		req.Origin, req.Destination = anchorAddress, origin
	}
	return req
}
