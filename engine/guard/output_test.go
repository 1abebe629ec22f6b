package guard

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func newOutput(t *testing.T) *OutputValidator {
	t.Helper()
	return NewOutputValidator(DefaultOutputConfig())
}

const goodResponse = "Gearbox bearing failures typically show elevated vibration above 4.0 mm/s " +
	"and oil temperatures climbing past 70°C. According to the maintenance manual, " +
	"a full bearing replacement costs €15,000 and takes two days of downtime."

func TestOutputValidateAccepts(t *testing.T) {
	v := newOutput(t)
	verdict := v.Validate(goodResponse, true)
	if !verdict.Valid {
		t.Fatalf("expected valid, got %s: %s", verdict.Rejection, verdict.Error)
	}
	if verdict.Sanitized != goodResponse {
		t.Error("sanitized response should be unchanged")
	}
	// 200-1500 chars (+0.2), digits (+0.1), euro amount (+0.1), citation with
	// rag in use (+0.1) on the 0.5 base.
	if verdict.QualityScore != 1.0 {
		t.Errorf("QualityScore = %v, want 1.0", verdict.QualityScore)
	}
}

func TestOutputValidateRejections(t *testing.T) {
	v := newOutput(t)
	tests := []struct {
		name     string
		response string
		ragUsed  bool
		want     OutputRejection
	}{
		{"empty", "", false, EmptyResponse},
		{"whitespace", "   ", false, EmptyResponse},
		{"too short", "Check the gearbox.", false, ResponseTooShort},
		{"harmful", strings.Repeat("x", 40) + " you should kill yourself " + strings.Repeat("x", 40), false, HarmfulContent},
		{"fabricated citation", "According to a study by Smith et al. the optimal pitch angle reduces loads significantly across all wind regimes.", false, FabricatedCitation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			verdict := v.Validate(tc.response, tc.ragUsed)
			if verdict.Valid {
				t.Fatal("expected rejection, got valid")
			}
			if verdict.Rejection != tc.want {
				t.Errorf("expected %s, got %s", tc.want, verdict.Rejection)
			}
		})
	}
}

func TestOutputTooShortQuality(t *testing.T) {
	v := newOutput(t)
	verdict := v.Validate("Check the gearbox.", false)
	if verdict.QualityScore != 0.3 {
		t.Errorf("QualityScore = %v, want 0.3", verdict.QualityScore)
	}
}

func TestCitationAllowedWithContext(t *testing.T) {
	v := newOutput(t)
	response := "According to a study by Smith et al. the optimal pitch angle reduces loads significantly across all wind regimes."
	verdict := v.Validate(response, true)
	if !verdict.Valid {
		t.Fatalf("citation should pass when grounded in retrieval, got %s", verdict.Rejection)
	}
}

func TestOutputTruncation(t *testing.T) {
	v := newOutput(t)
	long := strings.Repeat("The turbine is operating within normal parameters. ", 80)
	verdict := v.Validate(long, false)
	if !verdict.Valid {
		t.Fatalf("expected valid, got %s", verdict.Rejection)
	}
	if !strings.HasSuffix(verdict.Sanitized, truncationNotice) {
		t.Error("expected truncation notice suffix")
	}
	if len(verdict.Sanitized) != 3000+len(truncationNotice) {
		t.Errorf("sanitized length = %d", len(verdict.Sanitized))
	}
	if len(verdict.Warnings) == 0 {
		t.Error("expected a truncation warning")
	}
}

func TestOutputTruncationKeepsRuneBoundary(t *testing.T) {
	v := newOutput(t)
	// Place a multibyte euro sign straddling the 3000-byte cut point.
	long := strings.Repeat("a", 2999) + "€" + strings.Repeat("b", 200)
	verdict := v.Validate(long, false)
	if !verdict.Valid {
		t.Fatalf("expected valid, got %s", verdict.Rejection)
	}
	if !utf8.ValidString(verdict.Sanitized) {
		t.Error("truncated response contains invalid UTF-8")
	}
	if !strings.HasSuffix(verdict.Sanitized, truncationNotice) {
		t.Error("expected truncation notice suffix")
	}
	body := strings.TrimSuffix(verdict.Sanitized, truncationNotice)
	if strings.ContainsRune(body, '€') {
		t.Error("the straddling rune should have been dropped, not split")
	}
	if len(body) != 2999 {
		t.Errorf("body length = %d, want 2999 (backed up to the rune boundary)", len(body))
	}
}

func TestExtractValues(t *testing.T) {
	text := "Replacement costs €15,000-€25,000 total; efficiency drops 3.5%, oil at 78°C, vibration 4.2 mm/s."
	values := ExtractValues(text)
	want := map[string]bool{
		"€15,000-€25,000": true,
		"3.5%":            true,
		"78°C":            true,
		"4.2 mm/s":        true,
	}
	for _, v := range values {
		delete(want, v)
	}
	if len(want) != 0 {
		t.Errorf("missing values: %v (got %v)", want, values)
	}
}

func TestDetectHallucination(t *testing.T) {
	v := newOutput(t)
	context := "Bearing replacement costs €15,000 and requires 48 hours of downtime."

	t.Run("supported value", func(t *testing.T) {
		h := v.DetectHallucination("The bearing replacement costs €15,000.", context)
		if h.Detected {
			t.Errorf("supported value flagged, claims %v", h.UnsupportedClaims)
		}
		if h.Confidence != 0 {
			t.Errorf("Confidence = %v, want 0", h.Confidence)
		}
	})

	t.Run("unsupported value", func(t *testing.T) {
		h := v.DetectHallucination("The bearing replacement costs €999,999.", context)
		if !h.Detected {
			t.Fatal("expected hallucination flag")
		}
		if h.Confidence != 1.0 {
			t.Errorf("Confidence = %v, want 1.0", h.Confidence)
		}
		if len(h.UnsupportedClaims) != 1 || h.UnsupportedClaims[0] != "€999,999" {
			t.Errorf("UnsupportedClaims = %v", h.UnsupportedClaims)
		}
	})

	t.Run("no values in response", func(t *testing.T) {
		h := v.DetectHallucination("Schedule an inspection soon.", context)
		if h.Detected || h.Confidence != 0 {
			t.Errorf("expected zero result, got %+v", h)
		}
	})

	t.Run("no context", func(t *testing.T) {
		h := v.DetectHallucination("Costs €999,999.", "")
		if h.Detected {
			t.Error("detection requires context to compare against")
		}
	})
}
