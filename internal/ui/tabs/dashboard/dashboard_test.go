package dashboard

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/cf-usage-dashboard/internal/app"
	"github.com/j-veylop/cf-usage-dashboard/internal/models"
)

func ptr(v int64) *int64 { return &v }

func testResponse() *models.Response {
	return &models.Response{
		Phase:     models.Phase3,
		ZoneCount: 3,
		Core: &models.AggregateMetrics{
			Current: models.CurrentUsage{
				UsageTotals: models.UsageTotals{Requests: 900, Bytes: 2048, DNSQueries: 40},
				Confidence: models.UsageConfidence{
					Requests: &models.ConfidenceInterval{Estimate: 900, Lower: 890, Upper: 910},
				},
			},
			Previous: models.UsageTotals{Requests: 1200},
			ZoneBreakdown: models.ZoneBreakdown{
				SecondaryCount: 3,
				Zones: []models.ZoneUsage{
					{ZoneID: "z1", ZoneName: "a.example", Requests: 500},
					{ZoneID: "z2", ZoneName: "b.example", Requests: 300, DNSUnavailable: true},
					{ZoneID: "z3", ZoneName: "c.example", Requests: 100},
				},
			},
			PerAccountData: []*models.AccountMetrics{
				{
					AccountID:   "acc-1",
					AccountName: "Production",
					Current:     models.CurrentUsage{UsageTotals: models.UsageTotals{Requests: 800}},
					ZoneBreakdown: models.ZoneBreakdown{
						SecondaryCount: 2,
						Zones: []models.ZoneUsage{
							{ZoneID: "z1", ZoneName: "a.example", Requests: 500},
							{ZoneID: "z2", ZoneName: "b.example", Requests: 300},
						},
					},
				},
				{AccountID: "acc-2", Current: models.CurrentUsage{UsageTotals: models.UsageTotals{Requests: 100}}},
			},
		},
		BotManagement: &models.AddonMetrics{Type: models.AddonBotManagement, Current: models.AddonUsage{Metric: 70}},
	}
}

func testSettings() *models.Settings {
	s := &models.Settings{AccountIDs: []string{"acc-1", "acc-2"}}
	s.ApplicationServices.Core = models.CoreService{
		Enabled:           true,
		ThresholdRequests: ptr(1000),
	}
	s.ApplicationServices.BotManagement = models.AddonService{Enabled: true, Threshold: ptr(100)}
	return s
}

func newLoadedModel() (*Model, *app.State) {
	state := app.NewState()
	state.SetLoading(app.ResourceInitial, false)
	state.SetSettings(testSettings())
	state.SetResponse(testResponse())
	m := New(state)
	m.SetSize(140, 100)
	return m, state
}

func TestNew(t *testing.T) {
	if m := New(app.NewState()); m == nil {
		t.Fatal("New returned nil")
	}
}

func TestModel_Init(t *testing.T) {
	if New(app.NewState()).Init() == nil {
		t.Error("Init returned nil")
	}
}

func TestModel_Update(t *testing.T) {
	m := New(app.NewState())
	if updated, _ := m.Update(nil); updated == nil {
		t.Error("Update returned nil model")
	}
}

func TestModel_ViewLoading(t *testing.T) {
	state := app.NewState()
	m := New(state)
	m.SetSize(80, 24)

	if view := m.View(); !strings.Contains(view, "Loading usage") {
		t.Errorf("initial view should show the spinner, got %q", view)
	}
}

func TestModel_ViewSetupError(t *testing.T) {
	state := app.NewState()
	state.SetLoading(app.ResourceInitial, false)
	state.SetSetupError("No configuration yet")
	m := New(state)
	m.SetSize(120, 40)

	view := m.View()
	for _, want := range []string{"Dashboard unavailable", "No configuration yet"} {
		if !strings.Contains(view, want) {
			t.Errorf("View missing %q", want)
		}
	}
}

func TestModel_View(t *testing.T) {
	m, _ := newLoadedModel()

	view := m.View()
	for _, want := range []string{
		"Cloudflare Usage",
		"3 zones",
		"live",
		"HTTP requests",
		"90.0%",
		"900 / 1,000",
		"Bot Management",
		"70 / 100",
		"requests 98.9%",
		"1,200 requests",
		"DNS data unavailable for 1 zone(s)",
		"Production",
		"acc-2",
		"Top zones by requests",
		"a.example",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("View missing %q", want)
		}
	}
}

func TestModel_ViewPending(t *testing.T) {
	state := app.NewState()
	state.SetLoading(app.ResourceInitial, false)
	state.SetSettings(testSettings())
	state.SetResponse(&models.Response{Phase: models.Phase1, Loading: true, ZoneCount: 4})
	m := New(state)
	m.SetSize(140, 60)

	view := m.View()
	for _, want := range []string{"4 zones", "phase 1/3", "Data transfer", "Bot Management"} {
		if !strings.Contains(view, want) {
			t.Errorf("View missing %q", want)
		}
	}
	if strings.Contains(view, "Accounts") {
		t.Error("accounts need phase 2 data")
	}
}

func TestModel_ViewReport(t *testing.T) {
	m, state := newLoadedModel()
	state.SetReport(&models.ThresholdReport{
		CheckedAt: time.Now(),
		Alerts:    []models.Alert{{MetricKey: "requests"}},
	})

	if view := m.View(); !strings.Contains(view, "1 metric(s) at or above 90%") {
		t.Error("View should summarize the last threshold check")
	}
}

func TestUsageRows(t *testing.T) {
	if rows := usageRows(nil, nil); rows != nil {
		t.Errorf("nil response rows = %v", rows)
	}

	rows := usageRows(testResponse(), testSettings())
	if len(rows) != 7 {
		t.Fatalf("rows = %d, want 6 core + 1 add-on", len(rows))
	}
	if got := rows[3].Percent(); got != 90 {
		t.Errorf("requests percent = %v, want 90", got)
	}
	if got := rows[0].Percent(); got != -1 {
		t.Errorf("zones without threshold = %v, want -1", got)
	}

	complete := testResponse()
	complete.BotManagement = nil
	if rows := usageRows(complete, testSettings()); len(rows) != 6 {
		t.Errorf("a missing add-on on a complete payload should be hidden, got %d rows", len(rows))
	}
}

func TestModel_AccountSelection(t *testing.T) {
	m, state := newLoadedModel()

	cmd := m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	if cmd == nil {
		t.Fatal("j should change the selection")
	}
	msg, ok := cmd().(app.SelectedAccountChangedMsg)
	if !ok || msg.Index != 1 || msg.AccountID != "acc-2" {
		t.Errorf("selection msg = %+v", msg)
	}
	if state.GetSelectedAccountIndex() != 1 {
		t.Errorf("selected = %d, want 1", state.GetSelectedAccountIndex())
	}

	m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	if state.GetSelectedAccountIndex() != 0 {
		t.Error("selection should wrap to the first account")
	}

	m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'G'}})
	if state.GetSelectedAccountIndex() != 1 {
		t.Error("G should select the last account")
	}

	if cmd := m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'G'}}); cmd != nil {
		t.Error("selecting the current account should do nothing")
	}

	m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'g'}})
	if state.GetSelectedAccountIndex() != 0 {
		t.Error("g should select the first account")
	}
}

func TestModel_Animations(t *testing.T) {
	m, _ := newLoadedModel()
	now := time.Now()

	if !m.syncAnimationTargets(now) {
		t.Fatal("new targets should animate")
	}
	if _, ok := m.animations["zones"]; ok {
		t.Error("metrics without a threshold should not animate")
	}

	m.stepAnimations(now.Add(2 * time.Second))
	if got := m.animations["requests"].CurrentPercent; got != 90 {
		t.Errorf("requests = %v, want 90 after the animation", got)
	}
	if m.syncAnimationTargets(now.Add(2 * time.Second)) {
		t.Error("finished animations should settle")
	}
}

func TestModel_AnimationTick(t *testing.T) {
	m, state := newLoadedModel()

	if cmd := m.handleAnimationTick(animationTickMsg(time.Now())); cmd == nil {
		t.Error("tick should continue while bars move")
	}

	m.stepAnimations(time.Now().Add(time.Minute))
	if cmd := m.handleAnimationTick(animationTickMsg(time.Now().Add(time.Minute))); cmd != nil {
		t.Error("tick should stop once idle")
	}

	state.SetLoading(app.ResourceMetrics, true)
	if cmd := m.handleAnimationTick(animationTickMsg(time.Now())); cmd == nil {
		t.Error("tick should continue while loading")
	}
}

func TestModel_Help(t *testing.T) {
	m := New(app.NewState())
	if len(m.ShortHelp()) != 4 {
		t.Errorf("ShortHelp = %d bindings, want 4", len(m.ShortHelp()))
	}
	if len(m.FullHelp()) != 2 {
		t.Errorf("FullHelp = %d groups, want 2", len(m.FullHelp()))
	}
}
