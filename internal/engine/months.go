package engine

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MonthSet is a set of calendar months, bit i set for time.Month(i)
type MonthSet uint16

// Add returns s with m included. Months outside 1..12 are ignored.
func (s MonthSet) Add(m time.Month) MonthSet {
	if m < time.January || m > time.December {
		return s
	}
	return s | 1<<uint(m)
}

// Has reports whether m is in the set
func (s MonthSet) Has(m time.Month) bool {
	if m < time.January || m > time.December {
		return false
	}
	return s&(1<<uint(m)) != 0
}

// Empty reports whether no month is set
func (s MonthSet) Empty() bool {
	return s == 0
}

// Months lists the set in calendar order
func (s MonthSet) Months() []time.Month {
	var out []time.Month
	for m := time.January; m <= time.December; m++ {
		if s.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

// String renders the set as abbreviated month names, e.g. "Mar, Apr, May"
func (s MonthSet) String() string {
	months := s.Months()
	names := make([]string, len(months))
	for i, m := range months {
		names[i] = m.String()[:3]
	}
	return strings.Join(names, ", ")
}

// GrowingWindow is the parsed month set of each seasonal window
type GrowingWindow map[WindowKind]MonthSet

// Empty reports whether no window has any month
func (g GrowingWindow) Empty() bool {
	for _, s := range g {
		if !s.Empty() {
			return false
		}
	}
	return true
}

var monthNames = map[string]time.Month{
	"january":   time.January,
	"jan":       time.January,
	"february":  time.February,
	"feb":       time.February,
	"march":     time.March,
	"mar":       time.March,
	"april":     time.April,
	"apr":       time.April,
	"may":       time.May,
	"june":      time.June,
	"jun":       time.June,
	"july":      time.July,
	"jul":       time.July,
	"august":    time.August,
	"aug":       time.August,
	"september": time.September,
	"sep":       time.September,
	"sept":      time.September,
	"october":   time.October,
	"oct":       time.October,
	"november":  time.November,
	"nov":       time.November,
	"december":  time.December,
	"dec":       time.December,
}

// ParseMonth reads a month name, abbreviation or number 1-12
func ParseMonth(token string) (time.Month, bool) {
	t := strings.ToLower(strings.TrimSpace(token))
	t = strings.TrimSuffix(t, ".")
	if t == "" {
		return 0, false
	}
	if m, ok := monthNames[t]; ok {
		return m, true
	}

	n, err := strconv.ParseFloat(t, 64)
	if err != nil || n != float64(int(n)) || n < 1 || n > 12 {
		return 0, false
	}
	return time.Month(int(n)), true
}

// ParseMonthToken reads a single month or an inclusive range such as
// "Mar-May" or "11-2". Ranges wrap across the year end.
func ParseMonthToken(token string) MonthSet {
	var set MonthSet

	if m, ok := ParseMonth(token); ok {
		return set.Add(m)
	}

	sep := strings.IndexAny(token, "-–")
	if sep <= 0 {
		return set
	}
	_, width := utf8.DecodeRuneInString(token[sep:])
	from, okFrom := ParseMonth(token[:sep])
	to, okTo := ParseMonth(token[sep+width:])
	if !okFrom || !okTo {
		return set
	}

	for m := from; ; m = m%12 + 1 {
		set = set.Add(m)
		if m == to {
			break
		}
	}
	return set
}

// ParseGrowingWindow builds the month sets for the known windows.
// Unknown window names and unrecognized tokens are skipped.
func ParseGrowingWindow(raw map[string][]MonthToken) GrowingWindow {
	g := GrowingWindow{}
	for name, tokens := range raw {
		kind := WindowKind(strings.ToLower(strings.TrimSpace(name)))
		if _, known := windowPhase[kind]; !known {
			continue
		}
		set := g[kind]
		for _, tok := range tokens {
			set |= ParseMonthToken(string(tok))
		}
		g[kind] = set
	}
	return g
}
