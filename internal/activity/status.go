package activity

// Tier is one of three ordered health tiers derived from a commit count.
type Tier string

const (
	// TierHealthy indicates the count reached the healthy threshold.
	TierHealthy Tier = "healthy"
	// TierModerate indicates the count reached the moderate threshold only.
	TierModerate Tier = "moderate"
	// TierInactive indicates the count reached neither threshold.
	TierInactive Tier = "inactive"
)

// Thresholds holds the two ordered classification boundaries. Healthy must
// exceed Moderate; config validation enforces this before a Thresholds value
// is ever built.
type Thresholds struct {
	Healthy  int
	Moderate int
}

// Classify maps a commit count to a health tier. Both boundaries are
// inclusive.
func Classify(count int, t Thresholds) Tier {
	if count >= t.Healthy {
		return TierHealthy
	}
	if count >= t.Moderate {
		return TierModerate
	}
	return TierInactive
}
