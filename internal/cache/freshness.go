package cache

import "time"

// refreshZone is the fixed UTC+9 zone the daily refresh hour is anchored to.
var refreshZone = time.FixedZone("JST", 9*60*60)

// staleCeiling is the absolute, zone-independent age past which a snapshot is
// always stale.
const staleCeiling = 24 * time.Hour

// FreshnessPolicy decides when a snapshot must be recomputed: once per JST
// calendar day no earlier than RefreshHour, and never older than 24 hours
// regardless of the hour. The ceiling covers snapshots computed after the
// refresh hour on their own day, where the date comparison alone would wait
// an extra full day.
type FreshnessPolicy struct {
	RefreshHour int
	// Now is injected for deterministic tests.
	Now func() time.Time
}

// IsStale reports whether a snapshot last updated at lastUpdated must be
// replaced.
func (p FreshnessPolicy) IsStale(lastUpdated time.Time) bool {
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}

	if now.Sub(lastUpdated) > staleCeiling {
		return true
	}

	localNow := now.In(refreshZone)
	localUpdated := lastUpdated.In(refreshZone)
	if sameDate(localNow, localUpdated) {
		return false
	}
	return localNow.Hour() >= p.RefreshHour
}

func sameDate(a, b time.Time) bool {
	aYear, aMonth, aDay := a.Date()
	bYear, bMonth, bDay := b.Date()
	return aYear == bYear && aMonth == bMonth && aDay == bDay
}
