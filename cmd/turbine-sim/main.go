// Command turbine-sim generates synthetic turbine sensor readings and
// publishes them to the telemetry bus. On startup it replays a backfill
// window of hourly readings, then emits live readings at a fixed interval.
package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aeolus-energy/turbobot/engine/telemetry"
	"github.com/aeolus-energy/turbobot/pkg/natsutil"
)

func main() {
	natsURL := flag.String("nats", nats.DefaultURL, "NATS server URL")
	turbineID := flag.String("turbine", "WTG-01", "turbine identifier")
	backfill := flag.Int("backfill", 48, "hourly readings to publish on startup")
	interval := flag.Duration("interval", 30*time.Second, "live publish interval")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nc, err := nats.Connect(*natsURL)
	if err != nil {
		logger.Error("nats connect", "err", err)
		os.Exit(1)
	}
	defer nc.Close()

	series := telemetry.GenerateSeries(*turbineID, *backfill, time.Now().UTC(), rng)
	for _, r := range series {
		if err := natsutil.Publish(ctx, nc, telemetry.Subject, r); err != nil {
			logger.Error("publish backfill reading", "err", err)
			os.Exit(1)
		}
	}
	logger.Info("backfill published", "turbine", *turbineID, "readings", len(series))

	// Live readings random-walk from the end of the backfill window.
	wind := 8.0
	if len(series) > 0 {
		wind = series[len(series)-1].WindSpeed
	}
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
			wind += rng.NormFloat64() * 0.8
			if wind < 0 {
				wind = 0
			}
			power := telemetry.PowerFromWind(wind)
			temp := 45.0 + power/2000*20 + rng.NormFloat64()*2.0
			vib := 1.5 + (temp-45.0)/30*1.5 + rng.NormFloat64()*0.3
			if vib < 0 {
				vib = 0
			}
			r := telemetry.NewReading(*turbineID, time.Now().UTC(), power, wind, temp, vib)
			if err := natsutil.Publish(ctx, nc, telemetry.Subject, r); err != nil {
				logger.Warn("publish reading", "err", err)
				continue
			}
			logger.Info("reading published",
				"power_kw", r.PowerOutput,
				"wind_ms", r.WindSpeed,
				"status", r.Status,
			)
		}
	}
}
