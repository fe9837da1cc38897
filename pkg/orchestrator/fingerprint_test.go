package orchestrator_test

import (
	"testing"

	"github.com/omniwaifu/dere-sub005/pkg/orchestrator"
	"github.com/stretchr/testify/assert"
)

func TestSimilarityIdenticalFingerprintsScoreOne(t *testing.T) {
	fp := orchestrator.Fingerprint{ActivityApp: "vscode", ActivityTitle: "main.go", Entities: []string{"a", "b"}, TaskIDs: []string{"t1"}}
	assert.InDelta(t, 1.0, orchestrator.Similarity(fp, fp), 0.0001)
}

func TestSimilarityDifferentActivityAndNoOverlapScoresZero(t *testing.T) {
	a := orchestrator.Fingerprint{ActivityApp: "vscode", ActivityTitle: "main.go", Entities: []string{"a"}, TaskIDs: []string{"t1"}}
	b := orchestrator.Fingerprint{ActivityApp: "slack", ActivityTitle: "#general", Entities: []string{"b"}, TaskIDs: []string{"t2"}}
	assert.InDelta(t, 0.0, orchestrator.Similarity(a, b), 0.0001)
}

func TestSimilarityPartialEntityOverlap(t *testing.T) {
	a := orchestrator.Fingerprint{ActivityApp: "vscode", ActivityTitle: "main.go", Entities: []string{"a", "b"}}
	b := orchestrator.Fingerprint{ActivityApp: "vscode", ActivityTitle: "main.go", Entities: []string{"b", "c"}}
	// activity match (0.5) + jaccard(entities)=1/3 * 0.3 + jaccard(tasks, both empty)=1 * 0.2
	assert.InDelta(t, 0.5+0.3*(1.0/3.0)+0.2, orchestrator.Similarity(a, b), 0.0001)
}
