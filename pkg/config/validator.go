package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New()

// ValidateAll performs comprehensive struct-tag validation plus a handful
// of cross-field checks that `validate` tags cannot express, failing fast
// at the first problem encountered (curiosity → orchestrator → summary →
// queue). Presence and retention settings are not validated.
func ValidateAll(cfg *Config) error {
	if err := structValidator.Struct(cfg.Curiosity); err != nil {
		return fmt.Errorf("%w: curiosity: %v", ErrValidationFailed, err)
	}
	if err := validateCuriosityWeights(cfg.Curiosity); err != nil {
		return err
	}
	if err := structValidator.Struct(cfg.Orchestrator); err != nil {
		return fmt.Errorf("%w: orchestrator: %v", ErrValidationFailed, err)
	}
	if err := structValidator.Struct(cfg.Summary); err != nil {
		return fmt.Errorf("%w: summary: %v", ErrValidationFailed, err)
	}
	if err := structValidator.Struct(cfg.Queue); err != nil {
		return fmt.Errorf("%w: queue: %v", ErrValidationFailed, err)
	}
	return nil
}

// validateCuriosityWeights checks that every weight configured is within
// [0,1] — validator's dive doesn't reach map values cleanly here, so this
// is a manual pass, matching the teacher's habit of supplementing struct
// tags with targeted manual checks (see tarsy's validateChains).
func validateCuriosityWeights(c *CuriosityConfig) error {
	for name, w := range c.TypeWeights {
		if w < 0 || w > 1 {
			return NewValidationError("curiosity", "type_weights."+name,
				fmt.Errorf("weight %v out of range [0,1]", w))
		}
	}
	return nil
}
