package lessons

import (
	"fmt"
	"strings"
)

// Proficiency is the learner's self-reported level.
type Proficiency string

const (
	Beginner     Proficiency = "Beginner"
	Intermediate Proficiency = "Intermediate"
	Advanced     Proficiency = "Advanced"
)

// Proficiencies lists the levels in ascending order.
var Proficiencies = []Proficiency{Beginner, Intermediate, Advanced}

// ParseProficiency matches s case-insensitively against the known levels.
func ParseProficiency(s string) (Proficiency, error) {
	for _, p := range Proficiencies {
		if strings.EqualFold(strings.TrimSpace(s), string(p)) {
			return p, nil
		}
	}
	return "", &ConfigurationError{
		Field:   "proficiency",
		Message: fmt.Sprintf("Unknown proficiency %q (choose Beginner, Intermediate or Advanced)", s),
	}
}

// Scenarios is the built-in scenario catalogue. Any other non-empty
// scenario is accepted as free-form text.
var Scenarios = []string{
	"Restaurant",
	"Hotel",
	"Shopping",
	"Directions",
	"Social",
	"Work",
}

// DefaultScenario is used when a lesson is started without one.
const DefaultScenario = "Restaurant"

// Config describes one lesson. It is fixed for the lifetime of a session.
type Config struct {
	NativeLanguage   string      `json:"native_language"`
	LearningLanguage string      `json:"learning_language"`
	Proficiency      Proficiency `json:"proficiency"`
	Scenario         string      `json:"scenario"`
}

// Normalize trims whitespace, fills defaults and validates the config.
// Missing languages yield a *ConfigurationError.
func (c Config) Normalize() (Config, error) {
	c.NativeLanguage = strings.TrimSpace(c.NativeLanguage)
	c.LearningLanguage = strings.TrimSpace(c.LearningLanguage)
	c.Scenario = strings.TrimSpace(c.Scenario)

	if c.NativeLanguage == "" || c.LearningLanguage == "" {
		return c, &ConfigurationError{Field: "language", Message: "Please specify both languages"}
	}

	if c.Proficiency == "" {
		c.Proficiency = Beginner
	} else {
		p, err := ParseProficiency(string(c.Proficiency))
		if err != nil {
			return c, err
		}
		c.Proficiency = p
	}

	if c.Scenario == "" {
		c.Scenario = DefaultScenario
	}
	return c, nil
}

// ConfigurationError rejects a lesson before any model call is made.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// GenerationConfig holds model settings for tutor turns.
type GenerationConfig struct {
	MaxTokens   int
	Temperature float64
}

// DefaultGenerationConfig keeps replies short and corrections consistent.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MaxTokens:   1024,
		Temperature: 0.2,
	}
}
