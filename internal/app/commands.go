package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/cf-usage-dashboard/internal/models"
	"github.com/j-veylop/cf-usage-dashboard/internal/services"
)

const (
	// DefaultTickInterval is the default interval between ticks.
	DefaultTickInterval = 2 * time.Second

	// DefaultNotificationDuration is the default duration for notifications.
	DefaultNotificationDuration = 5 * time.Second

	// QuickNotificationDuration is for brief notifications.
	QuickNotificationDuration = 3 * time.Second

	// LongNotificationDuration is for important notifications.
	LongNotificationDuration = 10 * time.Second

	// requestTimeout bounds a single backend call made from the UI.
	requestTimeout = 2 * time.Minute
)

// Backend is the part of the service manager the TUI drives.
type Backend interface {
	Metrics(ctx context.Context, phase models.Phase) (*models.Response, error)
	Settings(ctx context.Context) (*models.Settings, error)
	CheckThresholds(ctx context.Context, test bool) (*models.ThresholdReport, error)
	PreWarm(ctx context.Context) (*models.Response, error)
	Subscribe() (chan services.ServiceEvent, tea.Cmd)
}

// tickCmd returns a command that sends a TickMsg after the specified interval.
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// defaultTickCmd returns a command that sends a TickMsg after the default interval.
func defaultTickCmd() tea.Cmd {
	return tickCmd(DefaultTickInterval)
}

// loadInitialData loads the configuration record and starts the
// progressive load.
func loadInitialData(b Backend) tea.Cmd {
	return tea.Batch(
		loadSettingsCmd(b),
		loadPhaseCmd(b, models.Phase1),
	)
}

// loadPhaseCmd fetches one progressive phase.
func loadPhaseCmd(b Backend, phase models.Phase) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		resp, err := b.Metrics(ctx, phase)
		return MetricsLoadedMsg{Phase: phase, Response: resp, Error: err}
	}
}

// nextPhase returns the phase to request after resp, or false when the
// payload is complete.
func nextPhase(requested models.Phase, resp *models.Response) (models.Phase, bool) {
	if resp == nil || !resp.Loading || resp.Phase == models.PhaseCached {
		return "", false
	}
	switch requested {
	case models.Phase1:
		return models.Phase2, true
	case models.Phase2:
		return models.Phase3, true
	default:
		return "", false
	}
}

// loadSettingsCmd reads the configuration record.
func loadSettingsCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		s, err := b.Settings(ctx)
		return SettingsLoadedMsg{Settings: s, Error: err}
	}
}

// checkThresholdsCmd runs a threshold check, or sends the test message.
func checkThresholdsCmd(b Backend, test bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		report, err := b.CheckThresholds(ctx, test)
		return ThresholdCheckedMsg{Test: test, Report: report, Error: err}
	}
}

// preWarmCmd recomputes and stores the full snapshot.
func preWarmCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		start := time.Now()
		resp, err := b.PreWarm(ctx)
		return PreWarmDoneMsg{Response: resp, Duration: time.Since(start), Error: err}
	}
}

// subscribeToServicesCmd returns a command that subscribes to service events.
func subscribeToServicesCmd(b Backend) tea.Cmd {
	ch, _ := b.Subscribe()
	return func() tea.Msg {
		return SubscriptionEventMsg{Channel: ch}
	}
}

// waitForServiceEventCmd returns a command that waits for the next service event.
func waitForServiceEventCmd(ch <-chan services.ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ServiceEventMsg{Event: event}
	}
}

// clearNotificationCmd returns a command that removes a notification after a delay.
func clearNotificationCmd(id string, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(_ time.Time) tea.Msg {
		return RemoveNotificationMsg{ID: id}
	})
}

func notifyCmd(t NotificationType, message string, d time.Duration) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{Type: t, Message: message, Duration: d}
	}
}

// notifySuccessCmd returns a command that adds a success notification.
func notifySuccessCmd(message string) tea.Cmd {
	return notifyCmd(NotificationSuccess, message, DefaultNotificationDuration)
}

// notifyErrorCmd returns a command that adds an error notification.
func notifyErrorCmd(message string) tea.Cmd {
	return notifyCmd(NotificationError, message, LongNotificationDuration)
}

// notifyWarningCmd returns a command that adds a warning notification.
func notifyWarningCmd(message string) tea.Cmd {
	return notifyCmd(NotificationWarning, message, LongNotificationDuration)
}

// notifyInfoCmd returns a command that adds an info notification.
func notifyInfoCmd(message string) tea.Cmd {
	return notifyCmd(NotificationInfo, message, QuickNotificationDuration)
}

// Commands provides a public interface to the command functions for tabs.
type Commands struct {
	backend Backend
}

// NewCommands creates a new Commands instance.
func NewCommands(b Backend) *Commands {
	return &Commands{backend: b}
}

// Tick returns a tick command with the specified interval.
func (c *Commands) Tick(interval time.Duration) tea.Cmd {
	return tickCmd(interval)
}

// DefaultTick returns a tick command with the default interval.
func (c *Commands) DefaultTick() tea.Cmd {
	return defaultTickCmd()
}

// LoadPhase returns a command that fetches one progressive phase.
func (c *Commands) LoadPhase(phase models.Phase) tea.Cmd {
	return loadPhaseCmd(c.backend, phase)
}

// CheckThresholds returns a command that runs a threshold check.
func (c *Commands) CheckThresholds(test bool) tea.Cmd {
	return checkThresholdsCmd(c.backend, test)
}

// PreWarm returns a command that refreshes the stored snapshot.
func (c *Commands) PreWarm() tea.Cmd {
	return preWarmCmd(c.backend)
}

// NotifySuccess returns a command that adds a success notification.
func (c *Commands) NotifySuccess(message string) tea.Cmd {
	return notifySuccessCmd(message)
}

// NotifyError returns a command that adds an error notification.
func (c *Commands) NotifyError(message string) tea.Cmd {
	return notifyErrorCmd(message)
}

// NotifyWarning returns a command that adds a warning notification.
func (c *Commands) NotifyWarning(message string) tea.Cmd {
	return notifyWarningCmd(message)
}

// NotifyInfo returns a command that adds an info notification.
func (c *Commands) NotifyInfo(message string) tea.Cmd {
	return notifyInfoCmd(message)
}

// ClearNotification returns a command that removes a notification after a delay.
func (c *Commands) ClearNotification(id string, delay time.Duration) tea.Cmd {
	return clearNotificationCmd(id, delay)
}

// Quit returns a command that quits the application.
func (c *Commands) Quit() tea.Cmd {
	return tea.Quit
}

// Batch combines multiple commands into one.
func (c *Commands) Batch(cmds ...tea.Cmd) tea.Cmd {
	return tea.Batch(cmds...)
}
