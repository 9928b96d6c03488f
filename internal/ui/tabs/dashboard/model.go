// Package dashboard provides the usage overview tab.
package dashboard

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/cf-usage-dashboard/internal/app"
	"github.com/j-veylop/cf-usage-dashboard/internal/models"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/alerts"
	"github.com/j-veylop/cf-usage-dashboard/internal/ui/components"
)

type animationTickMsg time.Time

func animationTickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*40, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

// keyMap defines the key bindings specific to the dashboard tab.
type keyMap struct {
	NextAccount  key.Binding
	PrevAccount  key.Binding
	FirstAccount key.Binding
	LastAccount  key.Binding
}

// defaultKeyMap returns the default key bindings for the dashboard tab.
func defaultKeyMap() keyMap {
	return keyMap{
		NextAccount: key.NewBinding(
			key.WithKeys("n", "j", "down"),
			key.WithHelp("j/n", "next account"),
		),
		PrevAccount: key.NewBinding(
			key.WithKeys("p", "k", "up"),
			key.WithHelp("k/p", "prev account"),
		),
		FirstAccount: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "first account"),
		),
		LastAccount: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "last account"),
		),
	}
}

// AnimationState tracks the state of an animation.
type AnimationState struct {
	StartTime      time.Time
	CurrentPercent float64
	TargetPercent  float64
	StartPercent   float64
}

// Model represents the dashboard tab state.
type Model struct {
	state          *app.State
	animations     map[string]*AnimationState
	spinner        components.LoadingSpinner
	keys           keyMap
	viewport       viewport.Model
	width          int
	height         int
	animationFrame int
}

// New creates a new dashboard model.
func New(state *app.State) *Model {
	return &Model{
		state:      state,
		spinner:    components.NewSpinner("Loading usage..."),
		keys:       defaultKeyMap(),
		viewport:   viewport.New(0, 0),
		animations: make(map[string]*AnimationState),
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Init(), animationTickCmd())
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case animationTickMsg:
		cmds = append(cmds, m.handleAnimationTick(msg))

	case app.StartLoadingMsg:
		cmds = append(cmds, animationTickCmd())

	case app.DataUpdatedMsg:
		m.syncAnimationTargets(time.Now())
		cmds = append(cmds, animationTickCmd())

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyMsg(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleAnimationTick(msg animationTickMsg) tea.Cmd {
	m.animationFrame++
	now := time.Time(msg)

	animating := m.syncAnimationTargets(now)
	m.stepAnimations(now)

	if animating || m.state.AnyLoading() {
		return animationTickCmd()
	}
	return nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	count := m.state.GetAccountCount()
	current := m.state.GetSelectedAccountIndex()
	next := current

	switch {
	case key.Matches(msg, m.keys.NextAccount):
		if count > 0 {
			next = (current + 1) % count
		}
	case key.Matches(msg, m.keys.PrevAccount):
		if count > 0 {
			next = (current - 1 + count) % count
		}
	case key.Matches(msg, m.keys.FirstAccount):
		next = 0
	case key.Matches(msg, m.keys.LastAccount):
		if count > 0 {
			next = count - 1
		}
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}

	if next == current || count == 0 {
		return nil
	}
	return m.selectAccount(next)
}

func (m *Model) selectAccount(idx int) tea.Cmd {
	m.state.SetSelectedAccountIndex(idx)
	acc := m.state.GetSelectedAccount()
	if acc == nil {
		return nil
	}
	id := acc.AccountID
	return func() tea.Msg {
		return app.SelectedAccountChangedMsg{Index: idx, AccountID: id}
	}
}

// SetSize sets the available size for the dashboard.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// syncAnimationTargets points every bar at its latest percentage and reports
// whether any bar still has to move.
func (m *Model) syncAnimationTargets(now time.Time) (animating bool) {
	resp := m.state.GetResponse()
	s := m.state.GetSettings()

	for _, row := range usageRows(resp, s) {
		if m.updateAnimationState(row.Key, row.Percent(), now) {
			animating = true
		}
	}
	return animating
}

func (m *Model) updateAnimationState(animKey string, target float64, now time.Time) bool {
	if target < 0 {
		delete(m.animations, animKey)
		return false
	}

	state, exists := m.animations[animKey]
	if !exists {
		state = &AnimationState{StartTime: now}
		m.animations[animKey] = state
	}

	if target != state.TargetPercent {
		state.StartPercent = state.CurrentPercent
		state.TargetPercent = target
		state.StartTime = now
	}

	return state.CurrentPercent != state.TargetPercent
}

func (m *Model) stepAnimations(now time.Time) {
	for _, state := range m.animations {
		if state.CurrentPercent != state.TargetPercent {
			elapsed := now.Sub(state.StartTime).Seconds()
			duration := 1.5

			if elapsed >= duration {
				state.CurrentPercent = state.TargetPercent
			} else {
				progress := elapsed / duration
				ease := 1.0 - (1.0-progress)*(1.0-progress)
				state.CurrentPercent = state.StartPercent + (state.TargetPercent-state.StartPercent)*ease
			}
		}
	}
}

// displayPercent returns the animated percentage for a bar, falling back to
// the target when the bar has not been animated yet.
func (m *Model) displayPercent(row usageRow) float64 {
	target := row.Percent()
	if target < 0 {
		return target
	}
	if state, ok := m.animations[row.Key]; ok {
		return state.CurrentPercent
	}
	return target
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.NextAccount,
		m.keys.PrevAccount,
		m.keys.FirstAccount,
		m.keys.LastAccount,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.NextAccount, m.keys.PrevAccount},
		{m.keys.FirstAccount, m.keys.LastAccount},
	}
}

// usageRow is one metric line of the overview with its configured threshold.
// Key doubles as the alert metric key.
type usageRow struct {
	Key       string
	Label     string
	Current   int64
	Threshold *int64
	Pending   bool
}

// Percent returns the share of the threshold used, or -1 without one.
func (r usageRow) Percent() float64 {
	if r.Pending {
		return -1
	}
	return components.UsagePercent(float64(r.Current), r.Threshold)
}

// usageRows lists the core metrics followed by every enabled add-on. Rows
// whose data has not arrived yet are marked pending.
func usageRows(resp *models.Response, s *models.Settings) []usageRow {
	if resp == nil {
		return nil
	}

	var core models.CoreService
	if s != nil {
		core = s.ApplicationServices.Core
	}

	rows := make([]usageRow, 0, 10)
	if c := resp.Core; c != nil {
		bd := c.ZoneBreakdown
		rows = append(rows,
			usageRow{Key: alerts.MetricZones, Label: "Zones",
				Current: int64(bd.ZoneCount()), Threshold: core.ThresholdZones},
			usageRow{Key: alerts.MetricPrimaryZones, Label: "Primary zones",
				Current: int64(bd.PrimaryCount), Threshold: core.PrimaryZones},
			usageRow{Key: alerts.MetricSecondaryZones, Label: "Secondary zones",
				Current: int64(bd.SecondaryCount), Threshold: core.SecondaryZones},
			usageRow{Key: alerts.MetricRequests, Label: "HTTP requests",
				Current: c.Current.Requests, Threshold: core.ThresholdRequests},
			usageRow{Key: alerts.MetricBandwidth, Label: "Data transfer",
				Current: c.Current.Bytes, Threshold: core.ThresholdBandwidth},
			usageRow{Key: alerts.MetricDNSQueries, Label: "DNS queries",
				Current: c.Current.DNSQueries, Threshold: core.ThresholdDNSQueries},
		)
	} else {
		rows = append(rows,
			usageRow{Key: alerts.MetricZones, Label: "Zones",
				Current: int64(resp.ZoneCount), Threshold: core.ThresholdZones},
			usageRow{Key: alerts.MetricRequests, Label: "HTTP requests", Pending: true},
			usageRow{Key: alerts.MetricBandwidth, Label: "Data transfer", Pending: true},
			usageRow{Key: alerts.MetricDNSQueries, Label: "DNS queries", Pending: true},
		)
	}

	if s == nil {
		return rows
	}
	for _, kind := range models.AllAddons {
		cfg := s.ApplicationServices.Addon(kind)
		if !cfg.Enabled {
			continue
		}
		row := usageRow{Key: string(kind), Label: kind.DisplayName(), Threshold: cfg.Threshold}
		switch a := resp.Addon(kind); {
		case a != nil:
			row.Current = a.Current.Metric
		case resp.Loading:
			row.Pending = true
		default:
			continue
		}
		rows = append(rows, row)
	}
	return rows
}
