// Package emotion buffers emotional stimuli derived from user turns for the
// Conversation Ingestor's fan-out, and rolls them up into a per-user summary
// for the /emotion/summary endpoint.
package emotion

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/omniwaifu/dere-sub005/pkg/store"
)

var positiveLexicon = []string{"love", "amazing", "great", "excited", "thrilled", "awesome", "fantastic", "thanks", "thank you"}
var negativeLexicon = []string{"hate", "furious", "terrible", "awful", "devastated", "angry", "livid", "frustrated", "annoyed"}

// Buffer implements ingest.EmotionBuffer, scoring a turn's text for
// intensity and valence and persisting the reading via store.EmotionStore.
type Buffer struct {
	stimuli *store.EmotionStore
	now     func() time.Time
}

// New constructs a Buffer backed by db.
func New(db *sql.DB) *Buffer {
	return &Buffer{stimuli: store.NewEmotionStore(db), now: time.Now}
}

// Enqueue scores text and buffers the resulting stimulus. Scoring failures
// never occur; a stimulus with zero intensity is simply uninteresting, not
// an error.
func (b *Buffer) Enqueue(ctx context.Context, sessionID, userID, text string) error {
	intensity, valence := score(text)
	return b.stimuli.Insert(ctx, &store.EmotionStimulus{
		SessionID: sessionID,
		UserID:    userID,
		Text:      text,
		Intensity: intensity,
		Valence:   valence,
		CreatedAt: b.now().UTC(),
	})
}

// score reuses the same punctuation/uppercase/lexicon heuristic the
// Curiosity Pipeline's emotional_peak detector uses for intensity, and adds
// a lexicon-based valence sign — positive hits outweigh negative, negative
// hits outweigh positive.
func score(text string) (intensity, valence float64) {
	if text == "" {
		return 0, 0
	}
	lower := strings.ToLower(text)

	var posHits, negHits int
	for _, w := range positiveLexicon {
		if strings.Contains(lower, w) {
			posHits++
		}
	}
	for _, w := range negativeLexicon {
		if strings.Contains(lower, w) {
			negHits++
		}
	}
	lexiconScore := float64(posHits+negHits) * 0.3

	exclamations := strings.Count(text, "!")
	punctuationScore := float64(exclamations) * 0.15
	if punctuationScore > 0.45 {
		punctuationScore = 0.45
	}

	if r := uppercaseRatio(text); r > 0.5 {
		lexiconScore += 0.3
	}

	intensity = lexiconScore + punctuationScore
	if intensity > 1.0 {
		intensity = 1.0
	}

	switch {
	case posHits == 0 && negHits == 0:
		valence = 0
	case posHits >= negHits:
		valence = float64(posHits) / float64(posHits+negHits)
	default:
		valence = -float64(negHits) / float64(posHits+negHits)
	}
	return intensity, valence
}

func uppercaseRatio(s string) float64 {
	var letters, upper int
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			letters++
		case r >= 'A' && r <= 'Z':
			letters++
			upper++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}
