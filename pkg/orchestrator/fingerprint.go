package orchestrator

// Fingerprint is a point-in-time snapshot of what the user is doing, used to
// detect whether context has changed enough since the last tick to be worth
// a fresh engagement decision.
type Fingerprint struct {
	ActivityApp   string
	ActivityTitle string
	Entities      []string
	TaskIDs       []string
}

// Similarity scores how alike two fingerprints are in [0,1]:
// 0.5*activity-match + 0.3*jaccard(entities) + 0.2*jaccard(tasks).
func Similarity(a, b Fingerprint) float64 {
	activity := 0.0
	if a.ActivityApp == b.ActivityApp && a.ActivityTitle == b.ActivityTitle {
		activity = 1.0
	}
	return 0.5*activity + 0.3*jaccard(a.Entities, b.Entities) + 0.2*jaccard(a.TaskIDs, b.TaskIDs)
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	setA := toSet(a)
	setB := toSet(b)
	intersection := 0
	for k := range setA {
		if setB[k] {
			intersection++
		}
	}
	union := len(setA)
	for k := range setB {
		if !setA[k] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, i := range items {
		set[i] = true
	}
	return set
}
