package campaign

import (
	"time"
	_ "time/tzdata" // campaign timezones must load without system zoneinfo

	"github.com/sells-group/leadgen/internal/model"
)

// firstRunDelay applies to a never-run campaign with no preferred time.
const firstRunDelay = 5 * time.Minute

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day
)

// ComputeNextRun returns when c should run next. A campaign that has run
// is due one interval after its last run. A never-run campaign is due at
// its preferred time today (tomorrow if that slot has passed), or
// firstRunDelay from now when it has none. The result depends only on c and
// now.
func ComputeNextRun(c *model.Campaign, now time.Time) time.Time {
	if c.LastRunAt != nil {
		return c.LastRunAt.UTC().Add(Interval(c.Frequency))
	}

	if c.PreferredTime == "" {
		return now.UTC().Add(firstRunDelay)
	}
	tod, err := time.Parse("15:04", c.PreferredTime)
	if err != nil {
		return now.UTC().Add(firstRunDelay)
	}

	loc := location(c.Timezone)
	local := now.In(loc)
	slot := time.Date(local.Year(), local.Month(), local.Day(), tod.Hour(), tod.Minute(), 0, 0, loc)
	if !slot.After(local) {
		slot = time.Date(local.Year(), local.Month(), local.Day()+1, tod.Hour(), tod.Minute(), 0, 0, loc)
	}
	return slot.UTC()
}

// maxInterval is the longest custom interval. Larger values saturate here.
const maxInterval = model.MaxIntervalHours * time.Hour

// Interval is the time between runs for a frequency. Months are 30 days.
// Custom frequencies count hours, days or weeks; any other unit falls back
// to one day.
func Interval(f model.Frequency) time.Duration {
	switch f.Kind {
	case model.FrequencyDaily:
		return day
	case model.FrequencyWeekly:
		return week
	case model.FrequencyMonthly:
		return month
	case model.FrequencyCustom:
		switch f.Unit {
		case model.UnitHour:
			return times(f.Value, time.Hour)
		case model.UnitDay:
			return times(f.Value, day)
		case model.UnitWeek:
			return times(f.Value, week)
		}
	}
	return day
}

// times multiplies unit by n (at least 1) without overflowing past maxInterval.
func times(n int, unit time.Duration) time.Duration {
	n = max(n, 1)
	if int64(n) > int64(maxInterval/unit) {
		return maxInterval
	}
	return time.Duration(n) * unit
}

// IsDue reports whether c is active and its next run is unset or not after now.
func IsDue(c *model.Campaign, now time.Time) bool {
	if c.Status != model.CampaignStatusActive {
		return false
	}
	return c.NextRunAt == nil || !c.NextRunAt.After(now)
}

// location loads an IANA zone, falling back to UTC.
func location(name string) *time.Location {
	if name == "" {
		name = model.DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
