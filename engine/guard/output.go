package guard

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// OutputVerdict is the structured outcome of output validation, including
// advisory hallucination metadata.
type OutputVerdict struct {
	Valid                   bool            `json:"valid"`
	Rejection               OutputRejection `json:"rejection,omitempty"`
	Error                   string          `json:"error,omitempty"`
	Sanitized               string          `json:"sanitized_response"`
	QualityScore            float64         `json:"quality_score"`
	Warnings                []string        `json:"warnings,omitempty"`
	HallucinationDetected   bool            `json:"hallucination_detected"`
	HallucinationConfidence float64         `json:"hallucination_confidence"`
	UnsupportedClaims       []string        `json:"unsupported_claims,omitempty"`
}

// Hallucination is the result of cross-referencing response values against
// retrieved context. It is advisory only and never blocks a response.
type Hallucination struct {
	Detected          bool
	Confidence        float64
	UnsupportedClaims []string
}

// OutputConfig holds the static tables driving output validation.
type OutputConfig struct {
	HarmfulPatterns      []*regexp.Regexp
	FakeCitationPatterns []*regexp.Regexp
	MinLength            int
	MaxLength            int
}

// DefaultOutputConfig returns the production output-validation tables.
func DefaultOutputConfig() OutputConfig {
	return OutputConfig{
		HarmfulPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)suicide`),
			regexp.MustCompile(`(?i)self[- ]harm`),
			regexp.MustCompile(`(?i)kill yourself`),
			regexp.MustCompile(`(?i)end your life`),
			regexp.MustCompile(`(?i)hurt yourself`),
		},
		FakeCitationPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)according to (?:a )?(?:study|research|paper) (?:by|from) \w+ et al\.`),
			regexp.MustCompile(`(?i)(?:researchers|scientists) at \w+ (?:university|institute) found`),
			regexp.MustCompile(`(?is)published in.*?\d{4}`),
			regexp.MustCompile(`(?i)DOI:?\s*\d+`),
			regexp.MustCompile(`(?is)Journal of.*?\d{4}`),
			regexp.MustCompile(`(?is)Proceedings of.*?Conference`),
		},
		MinLength: 50,
		MaxLength: 3000,
	}
}

// Value-extraction patterns for hallucination cross-referencing: euro costs,
// percentages, temperatures, and vibration velocities.
var (
	euroPattern       = regexp.MustCompile(`€[\d,]+(?:-€[\d,]+)?`)
	percentPattern    = regexp.MustCompile(`\d+(?:\.\d+)?%`)
	tempPattern       = regexp.MustCompile(`\d+(?:\.\d+)?°C`)
	vibrationPattern  = regexp.MustCompile(`\d+(?:\.\d+)?\s*mm/s`)
	digitPattern      = regexp.MustCompile(`\d+`)
	euroAmountPattern = regexp.MustCompile(`€[\d,]+`)
	citationPattern   = regexp.MustCompile(`(?i)according to|manual|documentation`)
)

var refusalPhrases = []string{
	"i don't know",
	"i cannot help",
	"i'm not able to",
	"i don't have information",
}

const truncationNotice = "\n\n[Response truncated for length]"

// OutputValidator validates generated responses for safety and quality before
// they reach the user.
type OutputValidator struct {
	cfg OutputConfig
}

// NewOutputValidator builds a validator from the given tables.
func NewOutputValidator(cfg OutputConfig) *OutputValidator {
	return &OutputValidator{cfg: cfg}
}

// Validate checks a generated response. ragUsed indicates whether retrieval
// context was supplied to the completion function; without it, responses
// citing studies or journals are rejected as fabricated.
func (v *OutputValidator) Validate(response string, ragUsed bool) OutputVerdict {
	if strings.TrimSpace(response) == "" {
		return OutputVerdict{Rejection: EmptyResponse, Error: "Empty response generated"}
	}

	sanitized := strings.TrimSpace(response)
	var warnings []string

	if len(sanitized) < v.cfg.MinLength {
		return OutputVerdict{
			Rejection:    ResponseTooShort,
			Error:        "Response too short (lacks detail)",
			Warnings:     []string{"Insufficient detail"},
			QualityScore: 0.3,
		}
	}

	if len(sanitized) > v.cfg.MaxLength {
		cut := v.cfg.MaxLength
		for cut > 0 && !utf8.RuneStart(sanitized[cut]) {
			cut--
		}
		sanitized = sanitized[:cut] + truncationNotice
		warnings = append(warnings, "Response truncated to maximum length")
	}

	for _, pat := range v.cfg.HarmfulPatterns {
		if pat.MatchString(sanitized) {
			return OutputVerdict{
				Rejection: HarmfulContent,
				Error:     "Response contains harmful content",
				Warnings:  []string{"Harmful content detected"},
			}
		}
	}

	if !ragUsed {
		for _, pat := range v.cfg.FakeCitationPatterns {
			if pat.MatchString(sanitized) {
				return OutputVerdict{
					Rejection: FabricatedCitation,
					Error:     "Response contains unverified citations (possible hallucination)",
					Warnings:  []string{"Fake citations detected"},
				}
			}
		}
	}

	lower := strings.ToLower(sanitized)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) && len(sanitized) < 100 {
			warnings = append(warnings, "Response is very short refusal")
			break
		}
	}

	quality := qualityScore(sanitized, ragUsed)
	if quality < 0.3 {
		warnings = append(warnings, "Low quality response detected")
	}

	return OutputVerdict{
		Valid:        true,
		Sanitized:    sanitized,
		QualityScore: quality,
		Warnings:     warnings,
	}
}

// DetectHallucination extracts specific values from the response and checks
// each against the context's value set and raw text. Confidence is the share
// of response values with no support.
func (v *OutputValidator) DetectHallucination(response, ragContext string) Hallucination {
	if ragContext == "" {
		return Hallucination{}
	}

	responseValues := ExtractValues(response)
	if len(responseValues) == 0 {
		return Hallucination{}
	}
	contextValues := make(map[string]struct{})
	for _, val := range ExtractValues(ragContext) {
		contextValues[val] = struct{}{}
	}

	var unsupported []string
	for _, val := range responseValues {
		if _, ok := contextValues[val]; ok {
			continue
		}
		if strings.Contains(ragContext, val) {
			continue
		}
		unsupported = append(unsupported, val)
	}

	confidence := float64(len(unsupported)) / float64(len(responseValues))
	return Hallucination{
		Detected:          confidence > 0.5,
		Confidence:        confidence,
		UnsupportedClaims: unsupported,
	}
}

// ExtractValues pulls cost, percentage, temperature, and vibration tokens
// from text, deduplicated in order of first appearance.
func ExtractValues(text string) []string {
	var values []string
	seen := make(map[string]struct{})
	for _, pat := range []*regexp.Regexp{euroPattern, percentPattern, tempPattern, vibrationPattern} {
		for _, m := range pat.FindAllString(text, -1) {
			if _, ok := seen[m]; !ok {
				seen[m] = struct{}{}
				values = append(values, m)
			}
		}
	}
	return values
}

// qualityScore grades a response from a 0.5 base: length appropriateness,
// presence of numbers, presence of concrete costs, and citations when
// retrieval context was used. Capped at 1.0.
func qualityScore(response string, ragUsed bool) float64 {
	score := 0.5

	length := len(response)
	switch {
	case length >= 200 && length <= 1500:
		score += 0.2
	case (length >= 100 && length < 200) || (length > 1500 && length <= 2000):
		score += 0.1
	}

	if digitPattern.MatchString(response) {
		score += 0.1
	}
	if euroAmountPattern.MatchString(response) {
		score += 0.1
	}
	if ragUsed && citationPattern.MatchString(response) {
		score += 0.1
	}

	return min(score, 1.0)
}
