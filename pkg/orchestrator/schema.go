package orchestrator

// MissionDecision is the structured response the orchestrator asks the LLM
// Adapter for when deciding whether to proactively reach out.
type MissionDecision struct {
	Send       bool    `json:"send"`
	Message    string  `json:"message"`
	Priority   string  `json:"priority"` // silent | ambient | conversation | urgent
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// MinConfidence is the floor below which a decision is dropped even if Send
// is true.
const MinConfidence = 0.5

// ambientMissionDecisionSchema is the JSON Schema handed to the LLM Adapter
// alongside the prompt, constraining the shape of MissionDecision.
var ambientMissionDecisionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"send":       map[string]any{"type": "boolean"},
		"message":    map[string]any{"type": "string"},
		"priority":   map[string]any{"type": "string", "enum": []string{"silent", "ambient", "conversation", "urgent"}},
		"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"reasoning":  map[string]any{"type": "string"},
	},
	"required":             []string{"send", "priority", "confidence"},
	"additionalProperties": false,
}
