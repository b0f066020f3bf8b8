// Package scoring recomputes freelancer credibility scores from reviews,
// completed projects and milestone punctuality.
package scoring

import (
	"math"

	"symbio/internal/model"
)

// 各项权重，和为 1
const (
	weightRating    = 0.5
	weightCompleted = 0.2
	weightOnTime    = 0.3

	maxRating          = 5.0
	completedSaturates = 10
)

// Score 计算 0..100 的信誉分，保留两位小数
func Score(in model.ScoringInput) float64 {
	rating := clamp(in.AvgRating/maxRating, 0, 1)

	completed := in.CompletedProjects
	if completed > completedSaturates {
		completed = completedSaturates
	}
	if completed < 0 {
		completed = 0
	}

	var onTime float64
	if in.DueMilestones > 0 {
		onTime = clamp(float64(in.OnTimeMilestones)/float64(in.DueMilestones), 0, 1)
	}

	raw := 100 * (weightRating*rating +
		weightCompleted*float64(completed)/completedSaturates +
		weightOnTime*onTime)
	return math.Round(raw*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
