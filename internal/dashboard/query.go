// Package dashboard filters and exports the entry log snapshot.
// Everything here is pure and synchronous.
package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/codecurser/park-vision-control-system/internal/domain"
)

type DateRange string

const (
	RangeToday  DateRange = "today"
	Range7Days  DateRange = "7days"
	Range30Days DateRange = "30days"
	RangeAll    DateRange = "all"
)

func ParseDateRange(s string) (DateRange, error) {
	switch DateRange(strings.ToLower(strings.TrimSpace(s))) {
	case "", RangeAll:
		return RangeAll, nil
	case RangeToday:
		return RangeToday, nil
	case Range7Days:
		return Range7Days, nil
	case Range30Days:
		return Range30Days, nil
	}
	return "", fmt.Errorf("unknown date range %q", s)
}

// Filter combines its predicates with AND. Zero values match everything.
type Filter struct {
	Search    string
	EntryType domain.EntryType // empty means all
	Range     DateRange
}

// ParseFilter validates raw query values.
func ParseFilter(dto domain.EntryFilterDTO) (Filter, error) {
	f := Filter{Search: strings.TrimSpace(dto.Search)}

	switch t := strings.TrimSpace(dto.Type); strings.ToLower(t) {
	case "", "all":
	default:
		et, err := domain.ParseEntryType(t)
		if err != nil {
			return Filter{}, err
		}
		f.EntryType = et
	}

	r, err := ParseDateRange(dto.Range)
	if err != nil {
		return Filter{}, err
	}
	f.Range = r
	return f, nil
}

func (f Filter) Match(e domain.ParkingEntry, now time.Time) bool {
	if f.Search != "" && !strings.Contains(strings.ToLower(e.PlateNumber), strings.ToLower(f.Search)) {
		return false
	}
	if f.EntryType != "" && e.EntryType != f.EntryType {
		return false
	}
	return inRange(e.Timestamp, f.Range, now)
}

func inRange(ts time.Time, r DateRange, now time.Time) bool {
	switch r {
	case RangeToday:
		local := ts.In(now.Location())
		y1, m1, d1 := local.Date()
		y2, m2, d2 := now.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	case Range7Days:
		return !ts.Before(now.Add(-7 * 24 * time.Hour))
	case Range30Days:
		return !ts.Before(now.Add(-30 * 24 * time.Hour))
	}
	return true
}

// Apply returns the matching entries, preserving order.
func Apply(entries []domain.ParkingEntry, f Filter, now time.Time) []domain.ParkingEntry {
	out := make([]domain.ParkingEntry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e, now) {
			out = append(out, e)
		}
	}
	return out
}

type Summary struct {
	Total   int `json:"total"`
	Entries int `json:"entries"`
	Exits   int `json:"exits"`
	Today   int `json:"today"`
}

func Summarize(entries []domain.ParkingEntry, now time.Time) Summary {
	var s Summary
	for _, e := range entries {
		s.Total++
		switch e.EntryType {
		case domain.EntryTypeEntry:
			s.Entries++
		case domain.EntryTypeExit:
			s.Exits++
		}
		if inRange(e.Timestamp, RangeToday, now) {
			s.Today++
		}
	}
	return s
}
