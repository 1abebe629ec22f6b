// Package guard implements the input and output guardrails around the chat
// pipeline: request sanitization, topic relevance scoring, response quality
// scoring, and hallucination detection against retrieved context.
package guard

// InputRejection classifies why an input was rejected.
type InputRejection int

const (
	InputAccepted InputRejection = iota
	EmptyInput
	TooShort
	TooLong
	SecurityViolation
	InappropriateContent
	SpamCharacterRatio
	SpamRepetition
)

func (k InputRejection) String() string {
	switch k {
	case InputAccepted:
		return "accepted"
	case EmptyInput:
		return "empty_input"
	case TooShort:
		return "too_short"
	case TooLong:
		return "too_long"
	case SecurityViolation:
		return "security_violation"
	case InappropriateContent:
		return "inappropriate_content"
	case SpamCharacterRatio:
		return "spam_character_ratio"
	case SpamRepetition:
		return "spam_repetition"
	default:
		return "unknown"
	}
}

// OutputRejection classifies why a generated response was rejected.
type OutputRejection int

const (
	OutputAccepted OutputRejection = iota
	EmptyResponse
	ResponseTooShort
	HarmfulContent
	FabricatedCitation
)

func (k OutputRejection) String() string {
	switch k {
	case OutputAccepted:
		return "accepted"
	case EmptyResponse:
		return "empty_response"
	case ResponseTooShort:
		return "response_too_short"
	case HarmfulContent:
		return "harmful_content"
	case FabricatedCitation:
		return "fabricated_citation"
	default:
		return "unknown"
	}
}
