package main

import (
	"time"

	"github.com/md-rashed-zaman/tablekeeper/libs/config"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/civil"
)

type settings struct {
	Service  string
	LogLevel string
	Port     string
	GRPCPort string

	DatabaseURL    string
	MigrateOnStart bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SlotCacheTTL  time.Duration

	KafkaBrokers string
	KafkaGroupID string

	RateLimitPerMinute int
	CORSOrigins        []string

	BookingMaxAttempts int
	Engine             availability.Config
}

func loadSettings() (settings, error) {
	var (
		s   settings
		err error
	)
	s.Service = config.String("SERVICE_NAME", "availability-service")
	s.LogLevel = config.String("LOG_LEVEL", "info")
	if s.Port, err = config.Port("PORT", "8085"); err != nil {
		return s, err
	}
	if s.GRPCPort, err = config.Port("GRPC_PORT", "9095"); err != nil {
		return s, err
	}
	if s.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
		return s, err
	}
	if s.MigrateOnStart, err = config.Bool("MIGRATE_ON_START", false); err != nil {
		return s, err
	}

	s.RedisAddr = config.String("REDIS_ADDR", "")
	s.RedisPassword = config.String("REDIS_PASSWORD", "")
	if s.RedisDB, err = config.Int("REDIS_DB", 0); err != nil {
		return s, err
	}
	ttl, err := config.Int("SLOT_CACHE_TTL_SECONDS", 60)
	if err != nil {
		return s, err
	}
	s.SlotCacheTTL = time.Duration(ttl) * time.Second

	s.KafkaBrokers = config.String("KAFKA_BROKERS", "")
	s.KafkaGroupID = config.String("KAFKA_GROUP_ID", "availability-service")
	if s.RateLimitPerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return s, err
	}
	s.CORSOrigins = config.List("CORS_ALLOWED_ORIGINS", nil)
	if s.BookingMaxAttempts, err = config.Int("BOOKING_MAX_ATTEMPTS", 3); err != nil {
		return s, err
	}

	s.Engine, err = engineConfig()
	return s, err
}

func engineConfig() (availability.Config, error) {
	cfg := availability.DefaultConfig()

	var err error
	if cfg.BusinessID, err = config.RequiredString("BUSINESS_ID"); err != nil {
		return cfg, err
	}
	if cfg.Zone, err = civil.LoadZone(config.String("BUSINESS_TIMEZONE", "UTC")); err != nil {
		return cfg, err
	}

	minutes := func(key string, fallback time.Duration) (time.Duration, error) {
		n, err := config.Int(key, int(fallback/time.Minute))
		return time.Duration(n) * time.Minute, err
	}
	if cfg.Step, err = minutes("SLOT_STEP_MINUTES", cfg.Step); err != nil {
		return cfg, err
	}
	if cfg.Durations.SmallPartyMaxSize, err = config.Int("SMALL_PARTY_MAX_SIZE", cfg.Durations.SmallPartyMaxSize); err != nil {
		return cfg, err
	}
	if cfg.Durations.Short, err = minutes("SMALL_PARTY_DURATION_MINUTES", cfg.Durations.Short); err != nil {
		return cfg, err
	}
	if cfg.Durations.Long, err = minutes("LARGE_PARTY_DURATION_MINUTES", cfg.Durations.Long); err != nil {
		return cfg, err
	}
	if cfg.MaxPartySize, err = config.Int("MAX_PARTY_SIZE", cfg.MaxPartySize); err != nil {
		return cfg, err
	}
	if cfg.MinLead, err = minutes("MIN_LEAD_MINUTES", cfg.MinLead); err != nil {
		return cfg, err
	}
	if cfg.MaxAdvanceDays, err = config.Int("MAX_ADVANCE_DAYS", cfg.MaxAdvanceDays); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}
