package stats

import (
	"fmt"
	"time"

	"pricetracker/pkg/market"
)

// TablePolicy selects how a series is sampled into table rows.
type TablePolicy string

const (
	// PolicyWeekly keeps the newest point of each ISO week.
	PolicyWeekly TablePolicy = "weekly"
	// PolicyMonthWeek keys buckets by year and floor(day of month / 7).
	// Buckets from different months of the same year collide; kept only for
	// output compatibility with older dashboards.
	PolicyMonthWeek TablePolicy = "month_week"
	// PolicyRecent keeps the most recent points without bucketing.
	PolicyRecent TablePolicy = "recent"
)

const (
	DefaultWeeks  = 10
	DefaultRecent = 30
)

// ParseTablePolicy accepts the config spelling of a policy.
func ParseTablePolicy(s string) (TablePolicy, error) {
	switch p := TablePolicy(s); p {
	case PolicyWeekly, PolicyMonthWeek, PolicyRecent:
		return p, nil
	case "":
		return PolicyWeekly, nil
	default:
		return "", fmt.Errorf("unknown table policy %q", s)
	}
}

// Row is a single table line. HasChange is false for the oldest visible row.
type Row struct {
	Point     market.PricePoint
	Change    float64
	HasChange bool
}

// TableOptions bounds the number of rows per policy.
type TableOptions struct {
	Policy TablePolicy
	Weeks  int // rows for the bucketed policies
	Recent int // rows for PolicyRecent
}

// BuildTable samples an ascending series into rows ordered newest first.
// Each row's change is measured against the next older visible row.
func BuildTable(points []market.PricePoint, opts TableOptions) []Row {
	if len(points) == 0 {
		return nil
	}
	if opts.Weeks <= 0 {
		opts.Weeks = DefaultWeeks
	}
	if opts.Recent <= 0 {
		opts.Recent = DefaultRecent
	}

	newest := make([]market.PricePoint, len(points))
	for i, p := range points {
		newest[len(points)-1-i] = p
	}

	var picked []market.PricePoint
	switch opts.Policy {
	case PolicyRecent:
		picked = newest[:min(opts.Recent, len(newest))]
	case PolicyMonthWeek:
		picked = firstPerBucket(newest, monthWeekKey, opts.Weeks)
	default:
		picked = firstPerBucket(newest, isoWeekKey, opts.Weeks)
	}

	rows := make([]Row, len(picked))
	for i, p := range picked {
		rows[i] = Row{Point: p}
		if i+1 < len(picked) {
			rows[i].Change, rows[i].HasChange = market.ChangePercent(p.Price, picked[i+1].Price)
		}
	}
	return rows
}

// firstPerBucket walks newest first and keeps the first point seen per key.
func firstPerBucket(newest []market.PricePoint, key func(time.Time) string, limit int) []market.PricePoint {
	seen := make(map[string]struct{}, limit)
	out := make([]market.PricePoint, 0, limit)
	for _, p := range newest {
		k := key(p.Time())
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out
}

func isoWeekKey(t time.Time) string {
	y, w := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

func monthWeekKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%d-%d", t.Year(), t.Day()/7)
}
