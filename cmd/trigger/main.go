package main

import (
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	config "github.com/maheshrc27/postflow/configs"
	job "github.com/maheshrc27/postflow/internal/jobs"
	"github.com/robfig/cron"
)

// The poll loop can hold a single cycle for POLL_ATTEMPTS * POLL_INTERVAL.
const requestTimeout = 10 * time.Minute

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	if cfg.CronSecret == "" {
		log.Fatal("CRON_SECRET is required")
	}

	triggerJob := job.NewTriggerJob(cfg.TriggerURL, cfg.CronSecret, requestTimeout)

	c := cron.New()
	if err := c.AddFunc(cfg.TriggerSchedule, triggerJob.Run); err != nil {
		log.Fatalf("Invalid TRIGGER_SCHEDULE %q: %v", cfg.TriggerSchedule, err)
	}
	c.Start()
	slog.Info("trigger started", "schedule", cfg.TriggerSchedule, "url", cfg.TriggerURL)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	c.Stop()
	log.Println("Trigger stopped.")
}
