package chat

import (
	"fmt"
	"strings"

	"github.com/aeolus-energy/turbobot/engine/telemetry"
)

const systemPreamble = `You are a wind turbine operations assistant for a wind farm control room.
Answer questions about turbine maintenance, performance, and troubleshooting.
Be specific and cite concrete figures when the provided material contains them.
If the material does not cover the question, say so rather than guessing.`

const normalRanges = `NORMAL OPERATING RANGES:
- Gearbox temperature: 45-70°C normal, above 70°C warning
- Vibration: below 4.0 mm/s normal, above 4.0 mm/s warning
- Power: cubic in wind speed, rated 2000 kW at 12 m/s and above`

// buildPrompt assembles the completion prompt. Live telemetry, trend
// statistics over the recent window, and the session's recent turns are
// included whenever available; with retrieved context the model is told to
// ground its answer in that material, without it the model answers from
// general turbine knowledge.
func buildPrompt(question, ragContext, history string, latest *telemetry.Reading, trend telemetry.TrendStats) string {
	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n\n")

	if latest != nil {
		b.WriteString("CURRENT TURBINE STATUS:\n")
		b.WriteString(formatReading(*latest))
		b.WriteString("\n\n")
	}
	if trend.Count > 0 {
		fmt.Fprintf(&b, "RECENT TRENDS (last %d readings):\n", trend.Count)
		fmt.Fprintf(&b, "- Average power: %.1f kW\n- Average wind: %.1f m/s\n- Maximum temperature: %.1f°C\n- Maximum vibration: %.2f mm/s\n\n",
			trend.AvgPowerOutput, trend.AvgWindSpeed, trend.MaxTemperature, trend.MaxVibration)
	}
	b.WriteString(normalRanges)
	b.WriteString("\n\n")

	if history != "" {
		b.WriteString("RECENT CONVERSATION:\n")
		b.WriteString(history)
		b.WriteString("\n\n")
	}

	if ragContext != "" {
		b.WriteString(ragContext)
		b.WriteString("\n\n")
	} else {
		b.WriteString("No manual excerpts matched this question. Answer from general wind turbine knowledge, do not invent specific costs or sources, and recommend checking the maintenance manuals for exact procedures.\n\n")
	}

	b.WriteString("QUESTION: ")
	b.WriteString(question)
	b.WriteString("\n\nANSWER:")
	return b.String()
}

func formatReading(r telemetry.Reading) string {
	return fmt.Sprintf(
		"- Power output: %.1f kW\n- Wind speed: %.1f m/s\n- Gearbox temperature: %.1f°C\n- Vibration: %.2f mm/s\n- Status: %s",
		r.PowerOutput, r.WindSpeed, r.Temperature, r.Vibration, r.Status)
}

// fallbackResponse produces a deterministic answer from the latest telemetry
// when the completion backend is unavailable. It never fails.
func fallbackResponse(latest *telemetry.Reading) string {
	var b strings.Builder
	b.WriteString("The language model is temporarily unavailable, so here is a summary based on current turbine telemetry instead.\n\n")

	if latest == nil {
		b.WriteString("No recent telemetry has been received. ")
		b.WriteString("Normal operating ranges for reference: gearbox temperature 45-70°C, vibration below 4.0 mm/s, rated power 2000 kW at wind speeds of 12 m/s and above.")
		return b.String()
	}

	b.WriteString("Current readings:\n")
	b.WriteString(formatReading(*latest))
	b.WriteString("\n\n")

	var concerns []string
	if latest.Temperature > telemetry.TempWarnC {
		concerns = append(concerns, fmt.Sprintf("gearbox temperature %.1f°C exceeds the %.0f°C threshold", latest.Temperature, telemetry.TempWarnC))
	}
	if latest.Vibration > telemetry.VibrationWarnM {
		concerns = append(concerns, fmt.Sprintf("vibration %.2f mm/s exceeds the %.1f mm/s threshold", latest.Vibration, telemetry.VibrationWarnM))
	}
	if len(concerns) > 0 {
		b.WriteString("Attention needed: ")
		b.WriteString(strings.Join(concerns, "; "))
		b.WriteString(". Consider scheduling an inspection.\n\n")
	} else {
		b.WriteString("All readings are within normal operating ranges.\n\n")
	}

	b.WriteString("Normal ranges: gearbox temperature 45-70°C, vibration below 4.0 mm/s, rated power 2000 kW at wind speeds of 12 m/s and above.")
	return b.String()
}
