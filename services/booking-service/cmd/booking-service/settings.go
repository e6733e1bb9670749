package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/repbook/libs/config"
)

const (
	storePostgres = "postgres"
	storeMemory   = "memory"
)

type settings struct {
	Service            string
	Port               string
	LogLevel           string
	Store              string
	DatabaseURL        string
	DBMaxConns         int
	BookingMaxAttempts int
	JWTSecret          string
	KafkaBrokers       string
	OutboxPollEvery    time.Duration
	RedisURL           string
	RateLimitPerMinute int
	CORSOrigins        []string
	SeedFile           string
	RequestTimeout     time.Duration
}

func loadSettings() (settings, error) {
	s := settings{
		Service:      config.String("SERVICE_NAME", "booking-service"),
		LogLevel:     config.String("LOG_LEVEL", "info"),
		Store:        strings.ToLower(config.String("STORE", storePostgres)),
		KafkaBrokers: config.String("KAFKA_BROKERS", ""),
		RedisURL:     config.String("REDIS_URL", ""),
		CORSOrigins:  config.List("CORS_ORIGINS"),
		SeedFile:     config.String("SEED_FILE", ""),
	}

	var err error
	if s.Port, err = config.Port("PORT", "8083"); err != nil {
		return s, err
	}
	if s.JWTSecret, err = config.RequiredString("JWT_SECRET"); err != nil {
		return s, err
	}
	switch s.Store {
	case storePostgres:
		if s.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
			return s, err
		}
	case storeMemory:
	default:
		return s, fmt.Errorf("STORE must be %q or %q (got %q)", storePostgres, storeMemory, s.Store)
	}
	if s.DBMaxConns, err = config.Int("DB_MAX_CONNS", 10); err != nil {
		return s, err
	}
	if s.BookingMaxAttempts, err = config.Int("BOOKING_MAX_ATTEMPTS", 5); err != nil {
		return s, err
	}
	if s.BookingMaxAttempts < 2 {
		return s, fmt.Errorf("BOOKING_MAX_ATTEMPTS must allow at least one retry (got %d)", s.BookingMaxAttempts)
	}
	if s.RateLimitPerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 30); err != nil {
		return s, err
	}
	if s.OutboxPollEvery, err = config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second); err != nil {
		return s, err
	}
	if s.RequestTimeout, err = config.Duration("REQUEST_TIMEOUT", 15*time.Second); err != nil {
		return s, err
	}
	return s, nil
}
