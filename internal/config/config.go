// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits with an error.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the digest service.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	// Batch tuning. Defaults match the product baseline of ~10k users.
	Concurrency        int           // worker pool size
	DBMaxConns         int           // storage pool limit, independent of Concurrency
	ErrorRateThreshold float64       // fraction of failed users that aborts the run
	UserTaskTimeout    time.Duration // per-user pipeline budget
	CompanyCap         int           // max picks per employer per user per day
	CandidateCap       int           // max candidates fed to the scorer per user
	CronSpec           string        // daily trigger, robfig/cron syntax
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	port := os.Getenv("DIGEST_PORT")
	if port == "" {
		port = "8083"
	}

	concurrency, err := intEnv("BATCH_CONCURRENCY", 8)
	if err != nil {
		return nil, err
	}

	dbMaxConns, err := intEnv("DB_MAX_CONNS", 16)
	if err != nil {
		return nil, err
	}

	companyCap, err := intEnv("COMPANY_CAP", 3)
	if err != nil {
		return nil, err
	}

	candidateCap, err := intEnv("CANDIDATE_CAP", 500)
	if err != nil {
		return nil, err
	}

	threshold := 0.05
	if s := os.Getenv("ERROR_RATE_THRESHOLD"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 || v > 1 {
			return nil, fmt.Errorf("ERROR_RATE_THRESHOLD must be in (0,1], got %q", s)
		}
		threshold = v
	}

	timeoutSec, err := intEnv("USER_TASK_TIMEOUT_SECONDS", 5)
	if err != nil {
		return nil, err
	}

	cronSpec := os.Getenv("DIGEST_CRON")
	if cronSpec == "" {
		cronSpec = "0 6 * * *" // daily, 06:00
	}

	return &Config{
		Port:               port,
		DatabaseURL:        dbURL,
		RedisURL:           redisURL,
		Concurrency:        concurrency,
		DBMaxConns:         dbMaxConns,
		ErrorRateThreshold: threshold,
		UserTaskTimeout:    time.Duration(timeoutSec) * time.Second,
		CompanyCap:         companyCap,
		CandidateCap:       candidateCap,
		CronSpec:           cronSpec,
	}, nil
}

// intEnv parses a positive integer env var, falling back to def when unset.
func intEnv(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, s)
	}
	return v, nil
}
