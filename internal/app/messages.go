package app

import (
	"time"

	"github.com/j-veylop/cf-usage-dashboard/internal/models"
	"github.com/j-veylop/cf-usage-dashboard/internal/services"
)

// TickMsg is sent periodically to trigger state refresh.
type TickMsg struct {
	Time time.Time
}

// StartLoadingMsg signals that a resource is starting to load.
type StartLoadingMsg struct {
	Resource string
}

// StopLoadingMsg signals that a resource has finished loading.
type StopLoadingMsg struct {
	Resource string
}

// MetricsLoadedMsg carries the result of one progressive phase.
type MetricsLoadedMsg struct {
	Phase    models.Phase
	Response *models.Response
	Error    error
}

// SettingsLoadedMsg carries the configuration record.
type SettingsLoadedMsg struct {
	Settings *models.Settings
	Error    error
}

// ThresholdCheckedMsg carries the result of a manual threshold check.
type ThresholdCheckedMsg struct {
	Test   bool
	Report *models.ThresholdReport
	Error  error
}

// PreWarmDoneMsg carries the result of a manual pre-warm.
type PreWarmDoneMsg struct {
	Response *models.Response
	Duration time.Duration
	Error    error
}

// RefreshMsg restarts the progressive load from phase 1.
type RefreshMsg struct{}

// AddNotificationMsg requests adding a new notification.
type AddNotificationMsg struct {
	Type     NotificationType
	Message  string
	Duration time.Duration
}

// RemoveNotificationMsg requests removal of a notification.
type RemoveNotificationMsg struct {
	ID string
}

// ClearExpiredNotificationsMsg triggers clearing of expired notifications.
type ClearExpiredNotificationsMsg struct{}

// ServiceEventMsg wraps a service event from the service manager.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}

// SubscriptionEventMsg is the callback wrapper for service subscription.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}

// ErrorMsg represents a general error.
type ErrorMsg struct {
	Error   error
	Context string
}

// QuitMsg requests the application to quit.
type QuitMsg struct{}

// TabSwitchMsg requests switching to a specific tab.
type TabSwitchMsg struct {
	Tab TabID
}

// ToggleHelpMsg toggles the help display.
type ToggleHelpMsg struct{}

// DataUpdatedMsg tells the tabs that State holds a new payload.
type DataUpdatedMsg struct {
	Phase models.Phase
}

// SelectedAccountChangedMsg signals that the selected account in the UI has changed.
type SelectedAccountChangedMsg struct {
	Index     int
	AccountID string
}
