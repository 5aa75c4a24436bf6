package main

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://tk:tk@localhost:5432/tablekeeper")
	t.Setenv("BUSINESS_ID", "bistro")
}

func TestLoadSettingsDefaults(t *testing.T) {
	setRequired(t)
	s, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if s.Port != "8085" || s.GRPCPort != "9095" || s.SlotCacheTTL != time.Minute || s.BookingMaxAttempts != 3 {
		t.Fatalf("unexpected defaults %+v", s)
	}
	e := s.Engine
	if e.BusinessID != "bistro" || e.Step != 15*time.Minute || e.MaxPartySize != 20 || e.MaxAdvanceDays != 90 {
		t.Fatalf("unexpected engine config %+v", e)
	}
	if e.Durations.SmallPartyMaxSize != 2 || e.Durations.Short != 90*time.Minute || e.Durations.Long != 120*time.Minute {
		t.Fatalf("unexpected durations %+v", e.Durations)
	}
}

func TestLoadSettingsOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("BUSINESS_TIMEZONE", "Europe/Lisbon")
	t.Setenv("SLOT_STEP_MINUTES", "30")
	t.Setenv("LARGE_PARTY_DURATION_MINUTES", "150")
	t.Setenv("MIN_LEAD_MINUTES", "60")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://bistro.example")

	s, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if s.Engine.Zone.Location().String() != "Europe/Lisbon" || s.Engine.Step != 30*time.Minute {
		t.Fatalf("unexpected engine config %+v", s.Engine)
	}
	if s.Engine.Durations.Long != 150*time.Minute || s.Engine.MinLead != time.Hour {
		t.Fatalf("unexpected durations %+v", s.Engine)
	}
	if len(s.CORSOrigins) != 1 {
		t.Fatalf("unexpected origins %v", s.CORSOrigins)
	}
}

func TestLoadSettingsZones(t *testing.T) {
	for _, name := range []string{"America/New_York", "Asia/Dhaka", "Australia/Lord_Howe", "Pacific/Chatham"} {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			t.Setenv("BUSINESS_TIMEZONE", name)
			s, err := loadSettings()
			if err != nil {
				t.Fatalf("loadSettings: %v", err)
			}
			if got := s.Engine.Zone.Location().String(); got != name {
				t.Fatalf("expected zone %s, got %s", name, got)
			}
		})
	}
}

func TestLoadSettingsErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing database", env: map[string]string{"DATABASE_URL": ""}},
		{name: "missing business", env: map[string]string{"BUSINESS_ID": ""}},
		{name: "unknown zone", env: map[string]string{"BUSINESS_TIMEZONE": "Mars/Olympus"}},
		{name: "zero step", env: map[string]string{"SLOT_STEP_MINUTES": "0"}},
		{name: "bad port", env: map[string]string{"PORT": "http"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := loadSettings(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
