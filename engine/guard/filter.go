package guard

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Filter combines input and output validation behind a single entry point and
// keeps running counters for the stats endpoint.
type Filter struct {
	input  *InputValidator
	output *OutputValidator
	logger *slog.Logger

	mu                 sync.Mutex
	inputChecks        int64
	inputRejections    int64
	outputChecks       int64
	outputRejections   int64
	hallucinationFlags int64
}

// FilterStats is a point-in-time snapshot of guardrail activity.
type FilterStats struct {
	InputChecks        int64 `json:"input_checks"`
	InputRejections    int64 `json:"input_rejections"`
	OutputChecks       int64 `json:"output_checks"`
	OutputRejections   int64 `json:"output_rejections"`
	HallucinationFlags int64 `json:"hallucination_flags"`
}

// NewFilter wires the default validation tables.
func NewFilter(logger *slog.Logger) *Filter {
	return &Filter{
		input:  NewInputValidator(DefaultInputConfig()),
		output: NewOutputValidator(DefaultOutputConfig()),
		logger: logger,
	}
}

// FilterInput validates a user question and checks its topic relevance.
// Topic relevance is only computed for questions that pass validation.
func (f *Filter) FilterInput(question string) (InputVerdict, TopicVerdict) {
	f.mu.Lock()
	f.inputChecks++
	f.mu.Unlock()

	verdict := f.input.Validate(question)
	if !verdict.Valid {
		f.mu.Lock()
		f.inputRejections++
		f.mu.Unlock()
		f.logger.Info("input rejected",
			"rejection", verdict.Rejection.String(),
			"error", verdict.Error)
		return verdict, TopicVerdict{}
	}

	topic := f.input.CheckTopicRelevance(verdict.Sanitized)
	if !topic.OnTopic {
		f.logger.Info("question off topic",
			"confidence", topic.Confidence,
			"reason", topic.Reason)
	}
	return verdict, topic
}

// FilterOutput validates a generated response and annotates the verdict with
// advisory hallucination metadata. ragContext is the retrieved context the
// response was grounded on ("" when retrieval found nothing).
func (f *Filter) FilterOutput(response, ragContext string) OutputVerdict {
	f.mu.Lock()
	f.outputChecks++
	f.mu.Unlock()

	ragUsed := ragContext != ""
	verdict := f.output.Validate(response, ragUsed)
	if !verdict.Valid {
		f.mu.Lock()
		f.outputRejections++
		f.mu.Unlock()
		f.logger.Warn("output rejected",
			"rejection", verdict.Rejection.String(),
			"error", verdict.Error)
		return verdict
	}

	h := f.output.DetectHallucination(verdict.Sanitized, ragContext)
	verdict.HallucinationDetected = h.Detected
	verdict.HallucinationConfidence = h.Confidence
	verdict.UnsupportedClaims = h.UnsupportedClaims
	if h.Detected {
		f.mu.Lock()
		f.hallucinationFlags++
		f.mu.Unlock()
		verdict.Warnings = append(verdict.Warnings,
			fmt.Sprintf("Potential hallucination (confidence %.2f)", h.Confidence))
		f.logger.Warn("potential hallucination",
			"confidence", h.Confidence,
			"unsupported_claims", h.UnsupportedClaims)
	}
	return verdict
}

// OffTopicResponse builds the canned redirect shown when a question falls
// outside turbine operations. Up to five suggested questions are included.
func (f *Filter) OffTopicResponse(topic TopicVerdict) string {
	var b strings.Builder
	b.WriteString("I'm specialized in wind turbine operations and maintenance. ")
	b.WriteString("Your question appears to be outside my area of expertise.\n\n")
	b.WriteString("Here are some questions I can help with:\n")
	suggestions := f.input.Suggestions()
	if len(suggestions) > 5 {
		suggestions = suggestions[:5]
	}
	for _, s := range suggestions {
		b.WriteString("- ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	return b.String()
}

// Stats returns a snapshot of guardrail counters.
func (f *Filter) Stats() FilterStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FilterStats{
		InputChecks:        f.inputChecks,
		InputRejections:    f.inputRejections,
		OutputChecks:       f.outputChecks,
		OutputRejections:   f.outputRejections,
		HallucinationFlags: f.hallucinationFlags,
	}
}
