package app

import (
	"testing"
	"time"

	"github.com/j-veylop/cf-usage-dashboard/internal/models"
)

func TestNewState(t *testing.T) {
	s := NewState()
	if s == nil {
		t.Fatal("NewState returned nil")
	}
	if s.GetResponse() != nil {
		t.Error("Response should be empty")
	}
	if s.Loading.Initial != true {
		t.Error("Initial loading should be true")
	}
}

func TestState_SetLoading(t *testing.T) {
	s := NewState()

	s.SetLoading(ResourceMetrics, true)
	if !s.IsLoading(ResourceMetrics) {
		t.Error("Metrics loading should be true")
	}
	if !s.AnyLoading() {
		t.Error("AnyLoading should be true")
	}

	s.SetLoading(ResourceMetrics, false)
	if !s.AnyLoading() {
		t.Error("AnyLoading should be true (Initial is true)")
	}

	s.SetLoading(ResourceInitial, false)
	if s.AnyLoading() || s.IsInitialLoading() {
		t.Error("AnyLoading should be false")
	}

	if resources := s.GetLoadingResources(); len(resources) != 0 {
		t.Errorf("GetLoadingResources should be empty, got %v", resources)
	}

	s.SetLoading(ResourcePreWarm, true)
	resources := s.GetLoadingResources()
	if len(resources) != 1 || resources[0] != ResourcePreWarm {
		t.Errorf("GetLoadingResources should contain prewarm, got %v", resources)
	}

	if s.IsLoading("unknown") {
		t.Error("unknown resources never load")
	}
}

func TestState_Accounts(t *testing.T) {
	s := NewState()
	if s.GetAccounts() != nil || s.GetAccountCount() != 0 {
		t.Error("no accounts before the first payload")
	}

	s.SetResponse(&models.Response{Core: &models.AggregateMetrics{
		PerAccountData: []*models.AccountMetrics{{AccountID: "a"}, {AccountID: "b"}},
	}})

	if s.GetAccountCount() != 2 {
		t.Errorf("GetAccountCount = %d, want 2", s.GetAccountCount())
	}

	s.SetSelectedAccountIndex(1)
	selected := s.GetSelectedAccount()
	if selected == nil || selected.AccountID != "b" {
		t.Fatalf("GetSelectedAccount = %v, want b", selected)
	}

	accounts := s.GetAccounts()
	accounts[0] = nil
	if s.GetAccounts()[0] == nil {
		t.Error("GetAccounts should return a copy")
	}
}

func TestState_Notifications(t *testing.T) {
	s := NewState()

	id := s.AddNotification(NotificationInfo, "test", time.Minute)
	if id == "" {
		t.Error("AddNotification returned empty ID")
	}

	notifs := s.GetNotifications()
	if len(notifs) != 1 {
		t.Errorf("GetNotifications len = %d, want 1", len(notifs))
	}
	if notifs[0].Message != "test" {
		t.Errorf("Notification message = %s, want test", notifs[0].Message)
	}

	s.RemoveNotification(id)
	if len(s.GetNotifications()) != 0 {
		t.Error("Notification should be removed")
	}
}

func TestState_ClearExpiredNotifications(t *testing.T) {
	s := NewState()

	// Expired
	s.notifications = append(s.notifications, Notification{
		ID:        "expired",
		CreatedAt: time.Now().Add(-2 * time.Minute),
		Duration:  time.Minute,
	})

	// Active
	s.notifications = append(s.notifications, Notification{
		ID:        "active",
		CreatedAt: time.Now(),
		Duration:  time.Minute,
	})

	s.ClearExpiredNotifications()

	notifs := s.GetNotifications()
	if len(notifs) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(notifs))
	}
	if notifs[0].ID != "active" {
		t.Errorf("Expected active notification, got %s", notifs[0].ID)
	}
}

func TestState_LoadingNotification(t *testing.T) {
	s := NewState()

	s.SetLoadingNotification("loading...")
	notifs := s.GetNotifications()
	if len(notifs) != 1 {
		t.Errorf("Expected 1 notification, got %d", len(notifs))
	}
	if notifs[0].ID != LoadingNotificationID {
		t.Errorf("Expected ID %s, got %s", LoadingNotificationID, notifs[0].ID)
	}
	if notifs[0].Message != "loading..." {
		t.Errorf("Expected message loading..., got %s", notifs[0].Message)
	}

	// Update message
	s.SetLoadingNotification("still loading...")
	notifs = s.GetNotifications()
	if len(notifs) != 1 {
		t.Errorf("Expected 1 notification after update")
	}
	if notifs[0].Message != "still loading..." {
		t.Errorf("Expected message still loading..., got %s", notifs[0].Message)
	}

	s.ClearLoadingNotification()
	if len(s.GetNotifications()) != 0 {
		t.Error("Loading notification should be cleared")
	}
}

func TestState_SelectedAccountIndex(t *testing.T) {
	s := NewState()

	s.SetSelectedAccountIndex(5)
	if s.GetSelectedAccountIndex() != 5 {
		t.Errorf("GetSelectedAccountIndex = %d, want 5", s.GetSelectedAccountIndex())
	}
}

func TestState_Response(t *testing.T) {
	s := NewState()
	s.SetSetupError("not configured")
	s.SetSelectedAccountIndex(5)

	before := s.GetLastUpdated()
	time.Sleep(time.Millisecond)

	s.SetResponse(&models.Response{Phase: models.Phase2, Core: &models.AggregateMetrics{
		PerAccountData: []*models.AccountMetrics{{AccountID: "a"}, {AccountID: "b"}},
	}})

	if s.GetSetupError() != "" {
		t.Error("SetResponse should clear the setup error")
	}
	if !s.GetLastUpdated().After(before) {
		t.Error("LastUpdated should be updated")
	}
	if s.TimeSinceUpdate() == 0 {
		t.Error("TimeSinceUpdate should be > 0")
	}
	if got := s.GetSelectedAccountIndex(); got != 1 {
		t.Errorf("selection = %d, want clamped to 1", got)
	}

	s.SetResponse(&models.Response{Phase: models.Phase1})
	if got := s.GetSelectedAccountIndex(); got != 0 {
		t.Errorf("selection = %d, want 0 without accounts", got)
	}
	if s.GetSelectedAccount() != nil {
		t.Error("no account should be selected without core data")
	}
}

func TestState_ReportAndPreWarm(t *testing.T) {
	s := NewState()

	report := &models.ThresholdReport{Alerts: []models.Alert{{MetricKey: "requests"}}}
	s.SetReport(report)
	if s.GetReport() != report {
		t.Error("GetReport should return the stored report")
	}

	settings := &models.Settings{AccountIDs: []string{"a"}}
	s.SetSettings(settings)
	if s.GetSettings() != settings {
		t.Error("GetSettings should return the stored record")
	}

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.SetPreWarm(at, 3*time.Second)
	gotAt, took := s.GetPreWarm()
	if !gotAt.Equal(at) || took != 3*time.Second {
		t.Errorf("GetPreWarm = %v, %v", gotAt, took)
	}
}

func TestNotificationType_String(t *testing.T) {
	tests := []struct {
		t    NotificationType
		want string
	}{
		{NotificationSuccess, "success"},
		{NotificationError, "error"},
		{NotificationWarning, "warning"},
		{NotificationInfo, "info"},
		{NotificationLoading, "loading"},
		{NotificationType(999), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.t.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
