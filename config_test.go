package server

import "testing"

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max players", func(c *Config) { c.MaxPlayers = 0 }},
		{"max players over id space", func(c *Config) { c.MaxPlayers = 256 }},
		{"zero min players", func(c *Config) { c.MinPlayers = 0 }},
		{"min above max", func(c *Config) { c.MinPlayers = 5; c.MaxPlayers = 4 }},
		{"zero tick interval", func(c *Config) { c.TickInterval = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
