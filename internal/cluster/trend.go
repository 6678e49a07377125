package cluster

import (
	"math"
	"time"
)

// TrendScore measures how hot a cluster is right now. Each member
// contributes weight 2^(-age/halfLife), so a member created just now
// counts 1.0 and one created a half-life ago counts 0.5. The sum is
// scaled by 10 to land small fresh bursts comfortably above typical
// trending thresholds.
func TrendScore(memberTimes []time.Time, now time.Time, halfLifeHours float64) float64 {
	if halfLifeHours <= 0 {
		halfLifeHours = 12
	}

	var weight float64
	for _, t := range memberTimes {
		age := now.Sub(t).Hours()
		if age < 0 {
			age = 0
		}
		weight += math.Exp2(-age / halfLifeHours)
	}
	return weight * 10
}
