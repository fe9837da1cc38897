package curiosity

import (
	"regexp"
	"strings"
)

// Signal kinds, matching spec §4.2's detector names.
const (
	SignalUnfamiliarEntity = "unfamiliar_entity"
	SignalCorrection       = "correction"
	SignalEmotionalPeak    = "emotional_peak"
	SignalKnowledgeGap     = "knowledge_gap"
)

// Signal is one detector's observation about a turn: a candidate curiosity
// task plus the interest/knowledge-gap inputs the priority function needs.
type Signal struct {
	Type         string
	Title        string
	UserInterest float64
	KnowledgeGap float64
}

var correctionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bno,?\s+actually\b`),
	regexp.MustCompile(`(?i)\bthat'?s\s+(not\s+right|wrong|incorrect)\b`),
	regexp.MustCompile(`(?i)\bi\s+meant\b`),
	regexp.MustCompile(`(?i)\bnot\s+what\s+i\s+(said|meant)\b`),
	regexp.MustCompile(`(?i)\byou\s+misunderstood\b`),
	regexp.MustCompile(`(?i)\bactually,?\s+it'?s\b`),
}

// DetectCorrection fires when a user turn follows an assistant turn and
// matches a correction pattern.
func DetectCorrection(prevRole, prompt string) *Signal {
	if prevRole != "assistant" {
		return nil
	}
	for _, p := range correctionPatterns {
		if p.MatchString(prompt) {
			return &Signal{Type: SignalCorrection, Title: "Correction: " + firstClause(prompt), UserInterest: 0.7}
		}
	}
	return nil
}

var hedgingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bi'?m\s+not\s+(sure|certain)\b`),
	regexp.MustCompile(`(?i)\bi\s+don'?t\s+know\b`),
	regexp.MustCompile(`(?i)\bmight\s+be\b`),
	regexp.MustCompile(`(?i)\bpossibly\b`),
	regexp.MustCompile(`(?i)\bcould\s+be\s+wrong\b`),
	regexp.MustCompile(`(?i)\bi\s+think\b`),
}

// DetectKnowledgeGap fires when an assistant turn hedges and the preceding
// turn was from the user.
func DetectKnowledgeGap(prevRole, prompt string) *Signal {
	if prevRole != "user" {
		return nil
	}
	for _, p := range hedgingPatterns {
		if p.MatchString(prompt) {
			return &Signal{Type: SignalKnowledgeGap, Title: "Knowledge gap: " + firstClause(prompt), UserInterest: 0.4, KnowledgeGap: 0.8}
		}
	}
	return nil
}

var positiveLexicon = []string{"love", "amazing", "great", "excited", "thrilled", "awesome", "fantastic"}
var negativeLexicon = []string{"hate", "furious", "terrible", "awful", "devastated", "angry", "livid"}

// DetectEmotionalPeak scores a user turn's intensity via a scored lexicon,
// punctuation, and uppercase-ratio heuristic; fires when intensity ≥ 0.7.
func DetectEmotionalPeak(role, prompt string) *Signal {
	if role != "user" || prompt == "" {
		return nil
	}
	intensity := emotionalIntensity(prompt)
	if intensity < 0.7 {
		return nil
	}
	interest := intensity + 0.1
	if interest > 1.0 {
		interest = 1.0
	}
	return &Signal{Type: SignalEmotionalPeak, Title: "Emotional peak: " + firstClause(prompt), UserInterest: interest}
}

func emotionalIntensity(prompt string) float64 {
	lower := strings.ToLower(prompt)
	var lexiconScore float64
	for _, w := range positiveLexicon {
		if strings.Contains(lower, w) {
			lexiconScore += 0.3
		}
	}
	for _, w := range negativeLexicon {
		if strings.Contains(lower, w) {
			lexiconScore += 0.3
		}
	}

	exclamations := strings.Count(prompt, "!")
	punctuationScore := float64(exclamations) * 0.15
	if punctuationScore > 0.45 {
		punctuationScore = 0.45
	}

	upperRatio := uppercaseRatio(prompt)
	var upperScore float64
	if upperRatio > 0.5 {
		upperScore = 0.3
	}

	total := lexiconScore + punctuationScore + upperScore
	if total > 1.0 {
		total = 1.0
	}
	return total
}

func uppercaseRatio(s string) float64 {
	var letters, upper int
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			letters++
		} else if r >= 'A' && r <= 'Z' {
			letters++
			upper++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

var capitalizedPhrase = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]{2,}(?:\s[A-Z][a-zA-Z0-9]{2,}){0,2}\b`)

var commonSentenceStarters = map[string]bool{
	"The": true, "This": true, "That": true, "There": true, "What": true,
	"When": true, "Where": true, "Why": true, "How": true, "I": true,
	"It": true, "We": true, "You": true, "They": true, "A": true, "An": true,
}

// ExtractEntityCandidates returns plausible proper-noun phrases from a user
// turn for the unfamiliar_entity detector. It is a heuristic, not an NER
// model: capitalized tokens/phrases, minus common sentence-starting words.
func ExtractEntityCandidates(prompt string) []string {
	matches := capitalizedPhrase.FindAllString(prompt, -1)
	var out []string
	seen := map[string]bool{}
	for _, m := range matches {
		if commonSentenceStarters[m] {
			continue
		}
		key := strings.ToLower(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}

func firstClause(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexAny(s, ".!?\n"); idx > 0 {
		s = s[:idx]
	}
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}
