// Package app provides the main Bubble Tea application model and state management.
package app

import (
	"sync"
	"time"

	"github.com/j-veylop/cf-usage-dashboard/internal/models"
)

// NotificationType defines the type of notification.
type NotificationType int

const (
	// NotificationSuccess represents a success notification.
	NotificationSuccess NotificationType = iota
	// NotificationError represents an error notification.
	NotificationError
	// NotificationWarning represents a warning notification.
	NotificationWarning
	// NotificationInfo represents an informational notification.
	NotificationInfo
	// NotificationLoading represents a loading notification with spinner.
	NotificationLoading
)

const (
	// LoadingNotificationID is the fixed ID for loading notifications.
	LoadingNotificationID = "__loading__"

	maxNotifications = 10
)

// String returns the string representation of a NotificationType.
func (n NotificationType) String() string {
	switch n {
	case NotificationSuccess:
		return "success"
	case NotificationError:
		return "error"
	case NotificationWarning:
		return "warning"
	case NotificationInfo:
		return "info"
	case NotificationLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// Notification represents a user-facing notification message.
type Notification struct {
	ID        string
	Type      NotificationType
	Message   string
	CreatedAt time.Time
	Duration  time.Duration
}

// IsExpired returns true if the notification has expired.
func (n *Notification) IsExpired() bool {
	if n.Duration <= 0 {
		return false
	}
	return time.Since(n.CreatedAt) > n.Duration
}

// Loading resources.
const (
	ResourceInitial    = "initial"
	ResourceMetrics    = "metrics"
	ResourceThresholds = "thresholds"
	ResourcePreWarm    = "prewarm"
)

// LoadingState tracks loading states for different resources.
type LoadingState struct {
	Initial    bool
	Metrics    bool
	Thresholds bool
	PreWarm    bool
}

// State is the data shared by every tab.
type State struct {
	mu sync.RWMutex

	Response   *models.Response
	Settings   *models.Settings
	LastReport *models.ThresholdReport

	// SetupError is set while the dashboard cannot load, e.g. before the
	// configuration record exists.
	SetupError string

	LastPreWarm         time.Time
	LastPreWarmDuration time.Duration

	SelectedAccountIndex int

	Loading     LoadingState
	LastUpdated time.Time

	notifications   []Notification
	notificationSeq int
}

// NewState creates the shared state with the initial load pending.
func NewState() *State {
	return &State{
		notifications: make([]Notification, 0),
		Loading:       LoadingState{Initial: true},
	}
}

// SetLoading sets the loading state for a specific resource.
func (s *State) SetLoading(resource string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch resource {
	case ResourceInitial:
		s.Loading.Initial = loading
	case ResourceMetrics:
		s.Loading.Metrics = loading
	case ResourceThresholds:
		s.Loading.Thresholds = loading
	case ResourcePreWarm:
		s.Loading.PreWarm = loading
	}
}

// AnyLoading returns true if any resource is currently loading.
func (s *State) AnyLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.Loading.Initial ||
		s.Loading.Metrics ||
		s.Loading.Thresholds ||
		s.Loading.PreWarm
}

// IsInitialLoading returns true if initial data is still loading.
func (s *State) IsInitialLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Initial
}

// IsLoading reports whether one resource is loading.
func (s *State) IsLoading(resource string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch resource {
	case ResourceInitial:
		return s.Loading.Initial
	case ResourceMetrics:
		return s.Loading.Metrics
	case ResourceThresholds:
		return s.Loading.Thresholds
	case ResourcePreWarm:
		return s.Loading.PreWarm
	default:
		return false
	}
}

// GetLoadingResources returns a list of currently loading resources.
func (s *State) GetLoadingResources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var resources []string
	if s.Loading.Initial {
		resources = append(resources, ResourceInitial)
	}
	if s.Loading.Metrics {
		resources = append(resources, ResourceMetrics)
	}
	if s.Loading.Thresholds {
		resources = append(resources, ResourceThresholds)
	}
	if s.Loading.PreWarm {
		resources = append(resources, ResourcePreWarm)
	}
	return resources
}

// SetResponse stores a dashboard payload and clears the setup error.
func (s *State) SetResponse(resp *models.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Response = resp
	s.SetupError = ""
	s.LastUpdated = time.Now()

	if n := s.accountCountLocked(); s.SelectedAccountIndex >= n {
		s.SelectedAccountIndex = max(n-1, 0)
	}
}

// GetResponse returns the latest payload, or nil before the first load.
func (s *State) GetResponse() *models.Response {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Response
}

// SetSettings stores the configuration record.
func (s *State) SetSettings(settings *models.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Settings = settings
}

// GetSettings returns the configuration record, or nil when unknown.
func (s *State) GetSettings() *models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Settings
}

// SetReport stores the latest threshold check result.
func (s *State) SetReport(report *models.ThresholdReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastReport = report
}

// GetReport returns the latest threshold check result.
func (s *State) GetReport() *models.ThresholdReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastReport
}

// SetPreWarm records a finished pre-warm run.
func (s *State) SetPreWarm(at time.Time, took time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastPreWarm = at
	s.LastPreWarmDuration = took
}

// GetPreWarm returns when the last pre-warm finished and how long it took.
func (s *State) GetPreWarm() (time.Time, time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastPreWarm, s.LastPreWarmDuration
}

// SetSetupError records why the dashboard cannot load.
func (s *State) SetSetupError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SetupError = msg
}

// GetSetupError returns the setup error, empty when loading works.
func (s *State) GetSetupError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.SetupError
}

// GetAccounts returns the per-account core metrics of the latest payload.
func (s *State) GetAccounts() []*models.AccountMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Response == nil || s.Response.Core == nil {
		return nil
	}
	accounts := make([]*models.AccountMetrics, len(s.Response.Core.PerAccountData))
	copy(accounts, s.Response.Core.PerAccountData)
	return accounts
}

// GetAccountCount returns the number of accounts with core metrics.
func (s *State) GetAccountCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountCountLocked()
}

func (s *State) accountCountLocked() int {
	if s.Response == nil || s.Response.Core == nil {
		return 0
	}
	return len(s.Response.Core.PerAccountData)
}

// GetSelectedAccount returns the highlighted account, or nil.
func (s *State) GetSelectedAccount() *models.AccountMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Response == nil || s.Response.Core == nil {
		return nil
	}
	accounts := s.Response.Core.PerAccountData
	if s.SelectedAccountIndex < 0 || s.SelectedAccountIndex >= len(accounts) {
		return nil
	}
	return accounts[s.SelectedAccountIndex]
}

// GetSelectedAccountIndex returns the currently selected account index.
func (s *State) GetSelectedAccountIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.SelectedAccountIndex
}

// SetSelectedAccountIndex updates the selected account index.
func (s *State) SetSelectedAccountIndex(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SelectedAccountIndex = idx
}

// AddNotification adds a new notification and returns its ID.
func (s *State) AddNotification(notifType NotificationType, message string, duration time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notificationSeq++
	id := time.Now().Format("20060102150405") + "-" + string(rune('A'+s.notificationSeq%26))

	s.notifications = append(s.notifications, Notification{
		ID:        id,
		Type:      notifType,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  duration,
	})

	if len(s.notifications) > maxNotifications {
		s.notifications = s.notifications[len(s.notifications)-maxNotifications:]
	}

	return id
}

// RemoveNotification removes a notification by ID.
func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

// ClearExpiredNotifications removes all expired notifications.
func (s *State) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}
	s.notifications = active
}

// GetNotifications returns a copy of all active notifications.
func (s *State) GetNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}
	return active
}

// ClearAllNotifications removes all notifications.
func (s *State) ClearAllNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = make([]Notification, 0)
}

// SetLoadingNotification sets a loading notification message.
func (s *State) SetLoadingNotification(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == LoadingNotificationID {
			s.notifications[i].Message = message
			return
		}
	}

	s.notifications = append(s.notifications, Notification{
		ID:        LoadingNotificationID,
		Type:      NotificationLoading,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

// ClearLoadingNotification removes the loading notification.
func (s *State) ClearLoadingNotification() {
	s.RemoveNotification(LoadingNotificationID)
}

// GetLastUpdated returns the last time a payload was stored.
func (s *State) GetLastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastUpdated
}

// TimeSinceUpdate returns the duration since the last update.
func (s *State) TimeSinceUpdate() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.LastUpdated.IsZero() {
		return 0
	}
	return time.Since(s.LastUpdated)
}
