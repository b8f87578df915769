package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_DRIVER", "JWT_EXPIRES_DAYS", "SEASON_END", "SEASON_ID", "SEASON_REPORT_TO", "NODE_ENV", "JWT_SECRET"} {
		t.Setenv(k, "")
	}
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.Port != "5175" || c.DBDriver != "sqlite3" || c.JWTTTL != 14*24*time.Hour {
		t.Fatalf("defaults = %+v", c)
	}
	if !c.Season.End.IsZero() || c.Production {
		t.Fatalf("season = %+v, production = %v", c.Season, c.Production)
	}
}

func TestLoadSeasonAndReports(t *testing.T) {
	tests := []struct {
		name   string
		end    string
		id     string
		wantID string
		want   time.Time
	}{
		{"date only", "2026-06-30", "", "2026-06-30", time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)},
		{"rfc3339 with id", "2026-06-30T18:00:00Z", "spring", "spring", time.Date(2026, 6, 30, 18, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SEASON_END", tt.end)
			t.Setenv("SEASON_ID", tt.id)
			t.Setenv("SEASON_REPORT_TO", " ops@example.com, ,dev@example.com")
			c, err := Load()
			if err != nil {
				t.Fatal(err)
			}
			if c.Season.ID != tt.wantID || !c.Season.End.Equal(tt.want) {
				t.Fatalf("season = %+v", c.Season)
			}
			if len(c.SeasonReportTo) != 2 || c.SeasonReportTo[1] != "dev@example.com" {
				t.Fatalf("report to = %q", c.SeasonReportTo)
			}
		})
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad ttl", map[string]string{"JWT_EXPIRES_DAYS": "soon"}},
		{"bad season end", map[string]string{"SEASON_END": "next summer"}},
		{"production without secret", map[string]string{"NODE_ENV": "production", "JWT_SECRET": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
