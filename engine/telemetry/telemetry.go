// Package telemetry models turbine sensor readings: generation of synthetic
// series for the simulator, a latest-snapshot holder fed from the bus, and
// trend statistics over a window.
package telemetry

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Subject is the bus subject turbine readings are published on.
const Subject = "telemetry.readings"

// Operational thresholds. Readings beyond either flip status to warning.
const (
	TempWarnC      = 70.0
	VibrationWarnM = 4.0
)

// Reading is a single turbine sensor sample.
type Reading struct {
	Timestamp   time.Time `json:"timestamp"`
	TurbineID   string    `json:"turbine_id"`
	PowerOutput float64   `json:"power_output"` // kW
	WindSpeed   float64   `json:"wind_speed"`   // m/s
	Temperature float64   `json:"temperature"`  // °C, gearbox
	Vibration   float64   `json:"vibration"`    // mm/s
	Status      string    `json:"status"`
}

// TrendStats summarizes a window of readings.
type TrendStats struct {
	Count          int     `json:"count"`
	AvgPowerOutput float64 `json:"avg_power_output"`
	AvgWindSpeed   float64 `json:"avg_wind_speed"`
	MaxTemperature float64 `json:"max_temperature"`
	MaxVibration   float64 `json:"max_vibration"`
	WarningCount   int     `json:"warning_count"`
}

// PowerFromWind approximates the turbine power curve: cubic in wind speed
// below rated, capped at 2000 kW from 12 m/s up, zero below cut-in.
func PowerFromWind(windSpeed float64) float64 {
	switch {
	case windSpeed < 3.0:
		return 0
	case windSpeed >= 12.0:
		return 2000
	default:
		// Scale the cube so the curve meets rated output at 12 m/s.
		return 2000 * math.Pow(windSpeed/12.0, 3)
	}
}

// GenerateSeries produces n hourly readings ending at end, with wind varying
// around a site mean and slight degradation (rising temperature and
// vibration) over the last quarter of the window.
func GenerateSeries(turbineID string, n int, end time.Time, rng *rand.Rand) []Reading {
	readings := make([]Reading, 0, n)
	degradeFrom := n - n/4
	for i := 0; i < n; i++ {
		ts := end.Add(-time.Duration(n-1-i) * time.Hour)

		wind := 8.0 + rng.NormFloat64()*3.0
		if wind < 0 {
			wind = 0
		}
		power := PowerFromWind(wind)

		// Gearbox temperature tracks load; vibration tracks temperature.
		temp := 45.0 + power/2000*20 + rng.NormFloat64()*2.0
		vib := 1.5 + (temp-45.0)/30*1.5 + rng.NormFloat64()*0.3
		if vib < 0 {
			vib = 0
		}

		if i >= degradeFrom {
			drift := float64(i-degradeFrom+1) / float64(n-degradeFrom)
			temp += drift * 12
			vib += drift * 1.8
		}

		readings = append(readings, NewReading(turbineID, ts, power, wind, temp, vib))
	}
	return readings
}

// NewReading assembles a reading and derives its status from thresholds.
func NewReading(turbineID string, ts time.Time, power, wind, temp, vib float64) Reading {
	status := "normal"
	if temp > TempWarnC || vib > VibrationWarnM {
		status = "warning"
	}
	return Reading{
		Timestamp:   ts,
		TurbineID:   turbineID,
		PowerOutput: round1(power),
		WindSpeed:   round1(wind),
		Temperature: round1(temp),
		Vibration:   round2(vib),
		Status:      status,
	}
}

// Trend computes summary statistics over readings. Empty input yields a
// zero-valued result.
func Trend(readings []Reading) TrendStats {
	stats := TrendStats{Count: len(readings)}
	if len(readings) == 0 {
		return stats
	}
	var sumPower, sumWind float64
	for _, r := range readings {
		sumPower += r.PowerOutput
		sumWind += r.WindSpeed
		if r.Temperature > stats.MaxTemperature {
			stats.MaxTemperature = r.Temperature
		}
		if r.Vibration > stats.MaxVibration {
			stats.MaxVibration = r.Vibration
		}
		if r.Status == "warning" {
			stats.WarningCount++
		}
	}
	stats.AvgPowerOutput = round1(sumPower / float64(len(readings)))
	stats.AvgWindSpeed = round1(sumWind / float64(len(readings)))
	return stats
}

// Snapshot holds the most recent readings received from the bus, bounded to
// a fixed window.
type Snapshot struct {
	mu       sync.RWMutex
	window   int
	readings []Reading
}

// NewSnapshot bounds the held window to n readings.
func NewSnapshot(n int) *Snapshot {
	return &Snapshot{window: n}
}

// Record appends a reading, evicting the oldest beyond the window.
func (s *Snapshot) Record(r Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r)
	if len(s.readings) > s.window {
		s.readings = s.readings[len(s.readings)-s.window:]
	}
}

// Latest returns the most recent reading, or false when none has arrived.
func (s *Snapshot) Latest() (Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.readings) == 0 {
		return Reading{}, false
	}
	return s.readings[len(s.readings)-1], true
}

// Window returns a copy of the held readings, oldest first.
func (s *Snapshot) Window() []Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Reading, len(s.readings))
	copy(out, s.readings)
	return out
}

// Trend summarizes the held window.
func (s *Snapshot) Trend() TrendStats {
	return Trend(s.Window())
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
