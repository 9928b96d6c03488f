package info

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/cf-usage-dashboard/internal/app"
	"github.com/j-veylop/cf-usage-dashboard/internal/config"
	"github.com/j-veylop/cf-usage-dashboard/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		APIToken:        "secret-token",
		Backend:         config.BackendRedis,
		RedisURL:        "redis://:hunter2@cache:6379/0",
		DashboardUser:   "ops",
		DashboardURL:    "https://usage.example.com",
		ListenAddr:      ":8080",
		PreWarmInterval: 6 * time.Hour,
	}
}

func TestNew(t *testing.T) {
	if m := New(app.NewState(), &config.Config{}); m == nil {
		t.Fatal("New returned nil")
	}
}

func TestModel_Init(t *testing.T) {
	if cmd := New(app.NewState(), &config.Config{}).Init(); cmd != nil {
		t.Error("Init should return nil")
	}
}

func TestModel_Update(t *testing.T) {
	m := New(app.NewState(), &config.Config{})
	if updated, _ := m.Update(nil); updated == nil {
		t.Error("Update returned nil model")
	}
	if updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown}); updated == nil {
		t.Error("Update returned nil model")
	}
}

func TestModel_View(t *testing.T) {
	state := app.NewState()
	m := New(state, testConfig())
	m.SetSize(120, 100)

	view := m.View()
	for _, want := range []string{
		"API token",
		"redis",
		"cache:6379",
		"ops",
		"https://usage.example.com",
		"6h0m0s",
		"cfud config import",
		"not in this session",
		"About Cloudflare Usage Dashboard",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("View missing %q", want)
		}
	}
	for _, secret := range []string{"secret-token", "hunter2"} {
		if strings.Contains(view, secret) {
			t.Errorf("View leaks %q", secret)
		}
	}
}

func TestModel_ViewSettingsAndReport(t *testing.T) {
	state := app.NewState()
	threshold := int64(5000)
	s := &models.Settings{
		AccountIDs:    []string{"a", "b"},
		AlertsEnabled: true,
		SlackWebhook:  "https://hooks.slack.com/services/x",
	}
	s.ApplicationServices.Core.Enabled = true
	s.ApplicationServices.PageShield = models.AddonService{Enabled: true, Threshold: &threshold}
	state.SetSettings(s)
	state.SetPreWarm(time.Now().Add(-time.Minute), 1500*time.Millisecond)
	state.SetReport(&models.ThresholdReport{
		CheckedAt: time.Now(),
		Alerts: []models.Alert{{
			MetricKey: "requests", Name: "HTTP Requests", Current: 950, Threshold: 1000, Percentage: 95,
		}},
		SlackError: "webhook returned 500",
	})

	m := New(state, testConfig())
	m.SetSize(120, 100)

	view := m.View()
	for _, want := range []string{
		"Page Shield",
		"threshold 5,000",
		"configured",
		"took 1.5s",
		"HTTP Requests 95.0% (950 of 1,000)",
		"webhook returned 500",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("View missing %q", want)
		}
	}
	if strings.Contains(view, "hooks.slack.com") {
		t.Error("View leaks the webhook URL")
	}
}

func TestModel_ViewWithoutConfig(t *testing.T) {
	m := New(app.NewState(), nil)
	m.SetSize(80, 60)
	if view := m.View(); !strings.Contains(view, "Configuration not loaded") {
		t.Error("View should note the missing configuration")
	}
}

func TestModel_Help(t *testing.T) {
	m := New(app.NewState(), &config.Config{})
	if len(m.ShortHelp()) != 2 {
		t.Errorf("ShortHelp = %d bindings, want 2", len(m.ShortHelp()))
	}
	if len(m.FullHelp()) != 1 {
		t.Errorf("FullHelp = %d groups, want 1", len(m.FullHelp()))
	}
}
