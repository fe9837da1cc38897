package curiosity

import "math"

// typeWeight is the per-signal-type component of the priority score.
var typeWeight = map[string]float64{
	SignalCorrection:        0.9,
	SignalEmotionalPeak:     0.7,
	SignalKnowledgeGap:      0.6,
	"unfinished_thread":     0.6,
	SignalUnfamiliarEntity:  0.5,
	"research_chain":        0.4,
}

// ttlDays returns the signal type's time-to-live, used by the recency term.
func ttlDays(signalType string) float64 {
	if signalType == SignalCorrection {
		return 7
	}
	return 14
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// PriorityInputs holds everything the priority function needs beyond the
// signal itself: how old the task is, and how many times it has already
// been explored/re-triggered.
type PriorityInputs struct {
	Signal           Signal
	AgeDays          float64
	ExplorationCount int
	TriggerCount     int // 0 on first insert; prior trigger_count on a re-trigger
}

// Score computes the raw [0,1] priority score per spec §4.2's formula.
func Score(in PriorityInputs) float64 {
	explorationBoost := math.Max(0, 1-0.1*float64(in.ExplorationCount))
	recency := math.Max(0, 1-in.AgeDays/ttlDays(in.Signal.Type))
	tw := typeWeight[in.Signal.Type]

	score := 0.30*in.Signal.UserInterest +
		0.25*in.Signal.KnowledgeGap +
		0.20*tw +
		0.15*recency +
		0.10*explorationBoost
	return clamp01(score)
}

// RepeatBonus is added to Score on a re-trigger, per spec:
// repeat_bonus = min(0.20, 0.05 * trigger_count).
func RepeatBonus(triggerCount int) float64 {
	bonus := 0.05 * float64(triggerCount)
	if bonus > 0.20 {
		bonus = 0.20
	}
	return bonus
}

// StoredPriority converts a [0,1] score to the stored integer priority.
func StoredPriority(score float64) int {
	return int(math.Floor(clamp01(score) * 100))
}
