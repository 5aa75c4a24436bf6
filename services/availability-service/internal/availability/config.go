package availability

import (
	"errors"
	"time"

	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/civil"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/slots"
)

// Config is fixed for the lifetime of a Service.
type Config struct {
	BusinessID   string
	Zone         civil.Zone
	Step         time.Duration
	Durations    slots.DurationPolicy
	MaxPartySize int
	// MinLead is how far ahead of now a table must be requested. Zero only rejects the past.
	MinLead time.Duration
	// MaxAdvanceDays caps how many days ahead of today a date may be. Zero disables the cap.
	MaxAdvanceDays int
}

func DefaultConfig() Config {
	return Config{
		Zone:           civil.UTC(),
		Step:           15 * time.Minute,
		Durations:      slots.DefaultDurations(),
		MaxPartySize:   20,
		MaxAdvanceDays: 90,
	}
}

func (c Config) Validate() error {
	if c.Step < time.Minute || c.Step%time.Minute != 0 {
		return errors.New("slot step must be a positive whole number of minutes")
	}
	if c.Durations.Short <= 0 || c.Durations.Long <= 0 {
		return errors.New("slot durations must be positive")
	}
	if c.MaxPartySize < 1 {
		return errors.New("max party size must be at least 1")
	}
	if c.MinLead < 0 || c.MaxAdvanceDays < 0 {
		return errors.New("booking window must not be negative")
	}
	return nil
}
