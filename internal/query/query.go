// Package query answers filter/sort views over a catalog snapshot. It is a
// pure function of its inputs: no mutation, no side effects, safe to call
// concurrently with catalog writes.
package query

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/MikeSquared-Agency/reel/internal/catalog"
)

type TimeFilter string

const (
	TimeAll   TimeFilter = "all"
	TimeToday TimeFilter = "today"
	TimeWeek  TimeFilter = "week"
	TimeMonth TimeFilter = "month"
)

type SortKey string

const (
	SortDate     SortKey = "date"
	SortDuration SortKey = "duration"
	SortName     SortKey = "name"
)

// ParseTimeFilter validates a wire value; empty means "all".
func ParseTimeFilter(s string) (TimeFilter, bool) {
	switch TimeFilter(s) {
	case TimeAll, TimeToday, TimeWeek, TimeMonth:
		return TimeFilter(s), true
	case "":
		return TimeAll, true
	}
	return "", false
}

// ParseSortKey validates a wire value; empty means "date".
func ParseSortKey(s string) (SortKey, bool) {
	switch SortKey(s) {
	case SortDate, SortDuration, SortName:
		return SortKey(s), true
	case "":
		return SortDate, true
	}
	return "", false
}

type Params struct {
	Search string
	Time   TimeFilter
	Sort   SortKey
}

// Engine filters and sorts catalog snapshots. Filename ordering is
// locale-aware under the configured collation language.
type Engine struct {
	lang language.Tag
	now  func() time.Time
}

func New(lang language.Tag) *Engine {
	return &Engine{lang: lang, now: time.Now}
}

// Query returns the entries matching p, sorted per p.Sort. Ties on the
// primary key break by id ascending so repeated calls on identical input are
// deterministic. The input slice is never modified.
func (e *Engine) Query(entries []catalog.Entry, p Params) []catalog.Entry {
	now := e.now()
	term := strings.ToLower(p.Search)

	out := make([]catalog.Entry, 0, len(entries))
	for _, ent := range entries {
		if matchesSearch(ent, term) && matchesTime(ent, p.Time, now) {
			out = append(out, ent)
		}
	}

	// Collators carry internal buffers, so each call gets its own.
	coll := collate.New(e.lang)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch p.Sort {
		case SortDuration:
			if a.DurationSeconds != b.DurationSeconds {
				return a.DurationSeconds > b.DurationSeconds
			}
		case SortName:
			if c := coll.CompareString(a.Filename, b.Filename); c != 0 {
				return c < 0
			}
		default: // SortDate
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	})
	return out
}

// matchesSearch is a case-insensitive substring match over filename or
// session id; the empty term matches everything.
func matchesSearch(e catalog.Entry, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Filename), term) ||
		strings.Contains(strings.ToLower(e.SessionID), term)
}

func matchesTime(e catalog.Entry, f TimeFilter, now time.Time) bool {
	switch f {
	case TimeToday:
		y1, m1, d1 := now.Date()
		y2, m2, d2 := e.CreatedAt.In(now.Location()).Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	case TimeWeek:
		return !e.CreatedAt.Before(now.Add(-7 * 24 * time.Hour))
	case TimeMonth:
		return !e.CreatedAt.Before(now.Add(-30 * 24 * time.Hour))
	default:
		return true
	}
}
