package guard

import (
	"io"
	"log/slog"
	"strings"
	"testing"
)

func newFilter(t *testing.T) *Filter {
	t.Helper()
	return NewFilter(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFilterInputCounters(t *testing.T) {
	f := newFilter(t)

	if verdict, _ := f.FilterInput("What causes bearing failure?"); !verdict.Valid {
		t.Fatalf("expected valid, got %s", verdict.Rejection)
	}
	if verdict, _ := f.FilterInput(""); verdict.Valid {
		t.Fatal("expected rejection")
	}

	stats := f.Stats()
	if stats.InputChecks != 2 {
		t.Errorf("InputChecks = %d, want 2", stats.InputChecks)
	}
	if stats.InputRejections != 1 {
		t.Errorf("InputRejections = %d, want 1", stats.InputRejections)
	}
}

func TestFilterInputSkipsTopicOnRejection(t *testing.T) {
	f := newFilter(t)
	_, topic := f.FilterInput("ab")
	if topic.OnTopic || topic.Confidence != 0 {
		t.Errorf("rejected input should carry a zero topic verdict, got %+v", topic)
	}
}

func TestFilterOutputAnnotatesHallucination(t *testing.T) {
	f := newFilter(t)
	context := "Bearing replacement costs €15,000."
	response := "Per the manual, a bearing replacement runs €999,999 and should be scheduled within the next maintenance window."

	verdict := f.FilterOutput(response, context)
	if !verdict.Valid {
		t.Fatalf("expected valid, got %s", verdict.Rejection)
	}
	if !verdict.HallucinationDetected {
		t.Fatal("expected hallucination flag")
	}
	if len(verdict.Warnings) == 0 {
		t.Error("expected a hallucination warning")
	}
	if f.Stats().HallucinationFlags != 1 {
		t.Errorf("HallucinationFlags = %d, want 1", f.Stats().HallucinationFlags)
	}
}

func TestFilterOutputRejectionCounted(t *testing.T) {
	f := newFilter(t)
	verdict := f.FilterOutput("", "")
	if verdict.Valid {
		t.Fatal("expected rejection")
	}
	if f.Stats().OutputRejections != 1 {
		t.Errorf("OutputRejections = %d, want 1", f.Stats().OutputRejections)
	}
}

func TestOffTopicResponse(t *testing.T) {
	f := newFilter(t)
	_, topic := f.FilterInput("what is the weather forecast for tomorrow")
	if topic.OnTopic {
		t.Fatal("expected off-topic")
	}
	resp := f.OffTopicResponse(topic)
	if !strings.Contains(resp, "wind turbine operations") {
		t.Error("expected the specialization notice")
	}
	if got := strings.Count(resp, "- "); got != 5 {
		t.Errorf("expected 5 suggestions, got %d", got)
	}
}
