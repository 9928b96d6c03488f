// Package settings stores the operator configuration record and keeps it in
// sync with an optional JSON file on disk.
package settings

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/cf-usage-dashboard/internal/cache"
	"github.com/j-veylop/cf-usage-dashboard/internal/logger"
	"github.com/j-veylop/cf-usage-dashboard/internal/models"
)

// ErrNotConfigured is returned when no configuration record exists yet.
var ErrNotConfigured = errors.New("dashboard is not configured")

// Event is emitted when the stored settings change.
type Event struct {
	Type     EventType
	Settings *models.Settings
	Error    error
}

// EventType defines the type of settings event.
type EventType int

const (
	EventSaved EventType = iota
	EventImported
	EventError
)

// Service loads and saves the configuration record of one dashboard user.
type Service struct {
	mu            sync.Mutex
	cache         *cache.Cache
	userID        string
	watcher       *fsnotify.Watcher
	eventChan     chan Event
	stopChan      chan struct{}
	debounceTimer *time.Timer
}

// New creates a settings service for userID.
func New(c *cache.Cache, userID string) *Service {
	return &Service{
		cache:     c,
		userID:    userID,
		eventChan: make(chan Event, 16),
		stopChan:  make(chan struct{}),
	}
}

// Events returns the event channel for subscribing to settings changes.
func (s *Service) Events() <-chan Event {
	return s.eventChan
}

// Load returns the stored record. Records still carrying the legacy single
// account field are migrated and written back.
func (s *Service) Load(ctx context.Context) (*models.Settings, error) {
	stored, ok := cache.Get[models.Settings](ctx, s.cache, cache.ConfigKey(s.userID), cache.Config)
	if !ok {
		return nil, ErrNotConfigured
	}

	legacy := stored.LegacyAccountID != ""
	stored.Normalize()
	if stored.AccountIDs == nil {
		stored.AccountIDs = []string{}
	}

	if legacy {
		if err := s.put(ctx, &stored); err != nil {
			logger.Warn("failed to persist migrated settings", "user", s.userID, "error", err)
		} else {
			logger.Info("migrated legacy account field", "user", s.userID, "accounts", len(stored.AccountIDs))
		}
	}
	return &stored, nil
}

// LoadOrDefault is Load that falls back to DefaultSettings when nothing has
// been stored yet.
func (s *Service) LoadOrDefault(ctx context.Context) (*models.Settings, error) {
	settings, err := s.Load(ctx)
	if errors.Is(err, ErrNotConfigured) {
		return models.DefaultSettings(), nil
	}
	return settings, err
}

// Save validates and stores the record.
func (s *Service) Save(ctx context.Context, settings *models.Settings) error {
	if err := s.save(ctx, settings); err != nil {
		return err
	}
	s.sendEvent(Event{Type: EventSaved, Settings: settings})
	return nil
}

func (s *Service) save(ctx context.Context, settings *models.Settings) error {
	settings.Normalize()
	if err := Validate(settings); err != nil {
		return err
	}
	return s.put(ctx, settings)
}

func (s *Service) put(ctx context.Context, settings *models.Settings) error {
	if err := s.cache.Put(ctx, cache.ConfigKey(s.userID), settings, cache.Config); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Validate rejects negative thresholds and malformed webhook URLs.
func Validate(settings *models.Settings) error {
	core := settings.ApplicationServices.Core
	thresholds := map[string]*int64{
		"thresholdZones":      core.ThresholdZones,
		"primaryZones":        core.PrimaryZones,
		"secondaryZones":      core.SecondaryZones,
		"thresholdRequests":   core.ThresholdRequests,
		"thresholdBandwidth":  core.ThresholdBandwidth,
		"thresholdDnsQueries": core.ThresholdDNSQueries,
	}
	for _, kind := range models.AllAddons {
		thresholds[string(kind)+".threshold"] = settings.ApplicationServices.Addon(kind).Threshold
	}
	for name, v := range thresholds {
		if v != nil && *v < 0 {
			return fmt.Errorf("invalid %s: must not be negative", name)
		}
	}

	if settings.SlackWebhook != "" {
		u, err := url.Parse(settings.SlackWebhook)
		if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
			return fmt.Errorf("invalid slack webhook %q", settings.SlackWebhook)
		}
	}
	return nil
}

// Parse decodes a configuration record.
func Parse(data []byte) (*models.Settings, error) {
	settings := models.DefaultSettings()
	if err := sonic.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	settings.Normalize()
	return settings, nil
}

// ImportFile reads a JSON record from path and saves it.
func (s *Service) ImportFile(ctx context.Context, path string) (*models.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	settings, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, settings); err != nil {
		return nil, err
	}

	s.sendEvent(Event{Type: EventImported, Settings: settings})
	return settings, nil
}

// Export renders the record as indented JSON.
func Export(settings *models.Settings) ([]byte, error) {
	return sonic.ConfigStd.MarshalIndent(settings, "", "  ")
}

// Watch imports path now and again whenever it changes.
func (s *Service) Watch(ctx context.Context, path string) error {
	if _, err := s.ImportFile(ctx, path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to import %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory to catch editors that replace the file.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return err
	}

	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()

	go s.watchLoop(ctx, watcher, path)
	return nil
}

// watchLoop handles file system events with debouncing.
func (s *Service) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	const debounceInterval = 100 * time.Millisecond

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			s.mu.Lock()
			if s.debounceTimer != nil {
				s.debounceTimer.Stop()
			}
			s.debounceTimer = time.AfterFunc(debounceInterval, func() {
				s.handleFileChange(ctx, path)
			})
			s.mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.sendEvent(Event{Type: EventError, Error: err})

		case <-ctx.Done():
			return

		case <-s.stopChan:
			return
		}
	}
}

func (s *Service) handleFileChange(ctx context.Context, path string) {
	settings, err := s.ImportFile(ctx, path)
	if err != nil {
		logger.Warn("settings file import failed", "path", path, "error", err)
		s.sendEvent(Event{Type: EventError, Error: err})
		return
	}

	logger.Info("settings file imported", "path", path, "accounts", len(settings.AccountIDs))
}

// sendEvent sends an event to the event channel non-blocking.
func (s *Service) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		// Channel full, drop oldest event
		select {
		case <-s.eventChan:
		default:
		}
		select {
		case s.eventChan <- event:
		default:
		}
	}
}

// Close stops the file watcher.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.stopChan:
		return nil
	default:
		close(s.stopChan)
	}

	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
