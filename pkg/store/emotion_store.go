package store

import (
	"context"
	"fmt"
	"time"
)

// EmotionStimulus is one scored emotional reading taken from a user turn,
// buffered by the Conversation Ingestor's fan-out and drained into a
// per-user rolling summary.
type EmotionStimulus struct {
	ID        string
	SessionID string
	UserID    string
	Text      string
	Intensity float64 // 0..1, how strong the signal was
	Valence   float64 // -1..1, negative..positive
	CreatedAt time.Time
}

// EmotionStore is the data access layer for buffered emotion stimuli.
type EmotionStore struct {
	db Queryer
}

// NewEmotionStore creates an EmotionStore.
func NewEmotionStore(db Queryer) *EmotionStore {
	return &EmotionStore{db: db}
}

// Insert buffers one scored stimulus.
func (s *EmotionStore) Insert(ctx context.Context, e *EmotionStimulus) error {
	if e.SessionID == "" || e.UserID == "" {
		return NewValidationError("user_id", "session_id and user_id are required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO emotion_stimuli (id, session_id, user_id, text, intensity, valence, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, newID(), e.SessionID, e.UserID, e.Text, e.Intensity, e.Valence, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert emotion stimulus: %w", err)
	}
	return nil
}

// EmotionSummary is a rolling aggregate of a user's recent emotional
// stimuli, the payload for GET /emotion/summary.
type EmotionSummary struct {
	Count         int     `json:"count"`
	AvgIntensity  float64 `json:"avg_intensity"`
	AvgValence    float64 `json:"avg_valence"`
	PeakCount     int     `json:"peak_count"` // stimuli with intensity >= 0.7
	DominantLabel string  `json:"dominant_label"`
}

// Summary aggregates a user's stimuli since the given time.
func (s *EmotionStore) Summary(ctx context.Context, userID string, since time.Time) (EmotionSummary, error) {
	var sum EmotionSummary
	var avgIntensity, avgValence *float64
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*), avg(intensity), avg(valence),
		       count(*) FILTER (WHERE intensity >= 0.7)
		FROM emotion_stimuli WHERE user_id = $1 AND created_at >= $2
	`, userID, since).Scan(&sum.Count, &avgIntensity, &avgValence, &sum.PeakCount)
	if err != nil {
		return EmotionSummary{}, fmt.Errorf("emotion summary: %w", err)
	}
	if avgIntensity != nil {
		sum.AvgIntensity = *avgIntensity
	}
	if avgValence != nil {
		sum.AvgValence = *avgValence
	}
	switch {
	case sum.Count == 0:
		sum.DominantLabel = "neutral"
	case sum.AvgValence > 0.15:
		sum.DominantLabel = "positive"
	case sum.AvgValence < -0.15:
		sum.DominantLabel = "negative"
	default:
		sum.DominantLabel = "neutral"
	}
	return sum, nil
}
