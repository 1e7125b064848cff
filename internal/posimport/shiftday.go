package posimport

import "time"

const dayFormat = "2006-01-02"

// DayResolver computes the canonical business day for a transaction.
// Transactions before the rollover hour belong to the previous calendar
// day: a hotel bar receipt closed at 02:30 counts towards yesterday's
// shift, not today's.
type DayResolver struct {
	rollover    int
	timeLayouts []string
	dateLayouts []string
}

// NewDayResolver builds a resolver for one vendor profile. The profile's
// rollover hour wins over the configured default.
func NewDayResolver(profile VendorProfile, defaultRollover int) *DayResolver {
	rollover := defaultRollover
	if profile.RolloverHour != nil {
		rollover = *profile.RolloverHour
	}
	if rollover < 0 || rollover > 23 {
		rollover = 0
	}
	timeLayouts := profile.TimeLayouts
	if len(timeLayouts) == 0 {
		timeLayouts = defaultTimeLayouts()
	}
	dateLayouts := profile.DateLayouts
	if len(dateLayouts) == 0 {
		dateLayouts = defaultDateLayouts()
	}
	return &DayResolver{rollover: rollover, timeLayouts: timeLayouts, dateLayouts: dateLayouts}
}

// Resolve returns the business day for a transaction, preferring the
// finalization timestamp over the creation timestamp, with a date-only
// parse (no rollover adjustment) as last resort. It returns "" when every
// parse fails; the caller must skip the row, never default to today.
func (r *DayResolver) Resolve(createdRaw, finalizedRaw string) string {
	if day, ok := r.resolveTimestamp(finalizedRaw); ok {
		return day
	}
	if day, ok := r.resolveTimestamp(createdRaw); ok {
		return day
	}
	if day, ok := r.resolveDateOnly(finalizedRaw); ok {
		return day
	}
	if day, ok := r.resolveDateOnly(createdRaw); ok {
		return day
	}
	return ""
}

// resolveTimestamp parses a timestamp with a time component and applies the
// shift rollover: hours strictly before the rollover hour shift the date one
// calendar day back. A rollover hour of zero disables the adjustment.
func (r *DayResolver) resolveTimestamp(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	for _, layout := range r.timeLayouts {
		ts, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		if r.rollover > 0 && ts.Hour() < r.rollover {
			ts = ts.AddDate(0, 0, -1)
		}
		return ts.Format(dayFormat), true
	}
	return "", false
}

func (r *DayResolver) resolveDateOnly(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	for _, layout := range r.dateLayouts {
		ts, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		return ts.Format(dayFormat), true
	}
	return "", false
}
