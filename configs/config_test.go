package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("POLL_ATTEMPTS", "")

	cfg := LoadConfig()
	if cfg.Port != "3000" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.Automation.PollInterval != 4*time.Second || cfg.Automation.PollAttempts != 15 {
		t.Errorf("Automation = %+v", cfg.Automation)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("POLL_ATTEMPTS", "3")
	t.Setenv("FETCH_RETRIES", "0")
	t.Setenv("RAPIDAPI_HOST", "example.p.rapidapi.com")

	cfg := LoadConfig()
	if cfg.Automation.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.Automation.PollInterval)
	}
	if cfg.Automation.PollAttempts != 3 {
		t.Errorf("PollAttempts = %d", cfg.Automation.PollAttempts)
	}
	if cfg.Automation.FetchRetries != 0 {
		t.Errorf("FetchRetries = %d", cfg.Automation.FetchRetries)
	}
	if cfg.RapidAPI.Host != "example.p.rapidapi.com" {
		t.Errorf("RapidAPI.Host = %q", cfg.RapidAPI.Host)
	}
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("POLL_ATTEMPTS", "many")
	t.Setenv("FETCH_RETRY_DELAY", "soon")

	cfg := LoadConfig()
	if cfg.Automation.PollAttempts != 15 {
		t.Errorf("PollAttempts = %d", cfg.Automation.PollAttempts)
	}
	if cfg.Automation.FetchRetryDelay != 1500*time.Millisecond {
		t.Errorf("FetchRetryDelay = %v", cfg.Automation.FetchRetryDelay)
	}
}
