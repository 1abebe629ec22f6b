package guard

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// InputVerdict is the structured outcome of input validation.
type InputVerdict struct {
	Valid     bool           `json:"valid"`
	Rejection InputRejection `json:"rejection,omitempty"`
	Error     string         `json:"error,omitempty"`
	Sanitized string         `json:"sanitized_question"`
	Warnings  []string       `json:"warnings,omitempty"`
}

// TopicVerdict is the outcome of topic relevance scoring.
type TopicVerdict struct {
	OnTopic    bool    `json:"on_topic"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// InputConfig holds the static pattern and keyword tables driving input
// validation. Tables are fixed at construction; tests may supply their own.
type InputConfig struct {
	BlockedPatterns       []*regexp.Regexp
	InappropriateKeywords []string
	OnTopicKeywords       []string
	OffTopicKeywords      []string
	GenericPhrases        []string
	Suggestions           []string
	MinLength             int
	MaxLength             int
}

// DefaultInputConfig returns the production tables for the wind-turbine
// assistant.
func DefaultInputConfig() InputConfig {
	return InputConfig{
		BlockedPatterns: []*regexp.Regexp{
			// XSS
			regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
			regexp.MustCompile(`(?i)javascript:`),
			regexp.MustCompile(`(?i)onerror\s*=`),
			regexp.MustCompile(`(?i)onclick\s*=`),
			regexp.MustCompile(`(?i)<iframe`),
			// SQL injection
			regexp.MustCompile(`(?i);\s*DROP\s+TABLE`),
			regexp.MustCompile(`(?i)UNION\s+SELECT`),
			regexp.MustCompile(`(?m)--\s*$`),
			regexp.MustCompile(`(?s)/\*.*?\*/`),
			// Command injection
			regexp.MustCompile(`(?i);\s*rm\s+-rf`),
			regexp.MustCompile(`\$\(.*?\)`),
			regexp.MustCompile("`.*?`"),
			regexp.MustCompile(`(?i)&&\s*rm`),
			// Path traversal
			regexp.MustCompile(`\.\./\.\.`),
			regexp.MustCompile(`\.\.\\\.\.\\`),
		},
		InappropriateKeywords: []string{
			"porn", "xxx", "sex", "nude", "nsfw",
			"drugs", "cocaine", "heroin", "meth",
			"bomb", "weapon", "gun", "explosive",
			"kill", "murder", "suicide", "hate",
		},
		OnTopicKeywords: []string{
			// Core components
			"turbine", "wind", "rotor", "blade", "nacelle", "tower",
			"gearbox", "generator", "bearing", "shaft", "hub",
			"pitch", "yaw", "brake",
			// Operations
			"power", "output", "generation", "performance", "capacity",
			"rpm", "rotation", "speed", "production", "efficiency",
			// Maintenance
			"maintenance", "repair", "inspection", "service", "failure",
			"diagnostic", "troubleshoot", "replace", "fix", "check",
			"lubrication", "oil", "grease",
			// Measurements
			"temperature", "vibration", "pressure", "voltage", "current",
			"sensor", "reading", "measurement", "monitor", "data",
			// Issues
			"alarm", "fault", "error", "warning", "problem", "issue",
			"noise", "leak", "damage", "wear", "crack", "corrosion",
			// Costs and planning
			"cost", "price", "expense", "budget", "downtime", "schedule",
			// Status
			"status", "health", "condition", "state", "operating",
			"shutdown", "startup", "running", "stopped",
		},
		OffTopicKeywords: []string{
			"weather", "forecast", "rain", "snow",
			"recipe", "cooking", "movie", "game", "sport",
			"politics", "news", "stock", "bitcoin", "crypto",
			"car", "airplane", "ship", "train", "boat",
		},
		GenericPhrases: []string{
			"what can you", "help me", "tell me about", "explain",
			"how does", "what is", "show me", "analyze", "status",
			"current", "now", "today", "check", "look at",
		},
		Suggestions: []string{
			"What causes high vibration in wind turbines?",
			"Analyze my current turbine performance",
			"What are the symptoms of bearing failure?",
			"How much does gearbox maintenance cost?",
			"What's the current turbine status?",
			"Explain temperature monitoring best practices",
			"What maintenance is due this month?",
			"Troubleshoot power output issues",
		},
		MinLength: 3,
		MaxLength: 500,
	}
}

// InputValidator validates questions before any retrieval or completion call.
// Checks run in a fixed order and terminate at the first failure.
type InputValidator struct {
	cfg InputConfig
}

// NewInputValidator builds a validator from the given tables.
func NewInputValidator(cfg InputConfig) *InputValidator {
	return &InputValidator{cfg: cfg}
}

// Validate runs the full input state machine over a raw question.
func (v *InputValidator) Validate(question string) InputVerdict {
	if strings.TrimSpace(question) == "" {
		return rejectInput(EmptyInput, "Question cannot be empty")
	}

	sanitized := strings.TrimSpace(question)

	if len(sanitized) < v.cfg.MinLength {
		return rejectInput(TooShort, "Question too short")
	}
	if len(sanitized) > v.cfg.MaxLength {
		return rejectInput(TooLong, "Question too long")
	}

	for _, pat := range v.cfg.BlockedPatterns {
		if pat.MatchString(sanitized) {
			return rejectInput(SecurityViolation, "Invalid input detected - potential security risk")
		}
	}

	lower := strings.ToLower(sanitized)
	for _, kw := range v.cfg.InappropriateKeywords {
		if strings.Contains(lower, kw) {
			return rejectInput(InappropriateContent, "Question contains inappropriate content")
		}
	}

	if specialCharRatio(sanitized) > 0.3 {
		return rejectInput(SpamCharacterRatio, "Question contains too many special characters")
	}

	if hasRepeatedRun(sanitized, 11) {
		return rejectInput(SpamRepetition, "Invalid input format detected")
	}

	var warnings []string
	if utf8.RuneCountInString(sanitized) > 10 && uppercaseRatio(sanitized) > 0.7 {
		warnings = append(warnings, "Excessive capitalization detected")
	}

	return InputVerdict{Valid: true, Sanitized: sanitized, Warnings: warnings}
}

// CheckTopicRelevance scores whether a (validated) question concerns wind
// turbines. Confidence scales with the number of on-topic keyword hits.
func (v *InputValidator) CheckTopicRelevance(question string) TopicVerdict {
	lower := strings.ToLower(question)

	onHits := countSubstrings(lower, v.cfg.OnTopicKeywords)
	offHits := countSubstrings(lower, v.cfg.OffTopicKeywords)

	if offHits > 0 && onHits == 0 {
		return TopicVerdict{
			OnTopic:    false,
			Confidence: 0.9,
			Reason:     "Question appears to be off-topic rather than about wind turbines",
		}
	}

	if onHits == 0 {
		for _, phrase := range v.cfg.GenericPhrases {
			if strings.Contains(lower, phrase) {
				return TopicVerdict{
					OnTopic:    true,
					Confidence: 0.5,
					Reason:     "General question accepted (may relate to turbine data)",
				}
			}
		}
		return TopicVerdict{
			OnTopic:    false,
			Confidence: 0.7,
			Reason:     "No wind turbine-related keywords found",
		}
	}

	return TopicVerdict{
		OnTopic:    true,
		Confidence: min(float64(onHits)*0.25, 1.0),
		Reason:     "Turbine-related keywords found",
	}
}

// Suggestions returns the pool of example questions surfaced on off-topic
// input.
func (v *InputValidator) Suggestions() []string {
	return v.cfg.Suggestions
}

func rejectInput(kind InputRejection, msg string) InputVerdict {
	return InputVerdict{Rejection: kind, Error: msg}
}

func countSubstrings(haystack string, needles []string) int {
	n := 0
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			n++
		}
	}
	return n
}

// specialCharRatio is the share of runes that are neither alphanumeric nor
// whitespace.
func specialCharRatio(s string) float64 {
	total, special := 0, 0
	for _, r := range s {
		total++
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(special) / float64(total)
}

// hasRepeatedRun reports whether any rune repeats at least n times in a row.
func hasRepeatedRun(s string, n int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
			if run >= n {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

func uppercaseRatio(s string) float64 {
	total, upper := 0, 0
	for _, r := range s {
		total++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(upper) / float64(total)
}
