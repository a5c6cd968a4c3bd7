// Package home holds the in-memory application state and is the only
// component that talks to the persistence backend.
//
// Every write follows the same path: call the backend, then on success swap
// the cached entry by id; on failure record the error string and return the
// error. The store lock is never held across backend I/O.
package home

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/homepanel/pkg/db"
	"github.com/urmzd/homepanel/pkg/device"
	"github.com/urmzd/homepanel/pkg/device/schema"
	"github.com/urmzd/homepanel/pkg/tokens"
	"golang.org/x/sync/errgroup"
)

// MaxActivityLogs bounds the in-memory activity list.
const MaxActivityLogs = 50

// DefaultSceneStepDelay is the pause between consecutive scene steps.
const DefaultSceneStepDelay = 200 * time.Millisecond

// Backend is the persistence service. *db.DB satisfies it.
type Backend interface {
	Rooms() db.RoomStore
	Devices() db.DeviceStore
	Activity() db.ActivityStore
	Scenes() db.SceneStore
	Settings() db.SettingStore
}

// Options configures a Store.
type Options struct {
	// Validator checks status patches against per-type schemas. Nil disables
	// validation.
	Validator *schema.Validator

	// Sink receives the merged status after every committed device update.
	// Nil means device.NullSink.
	Sink device.Sink

	// SceneStepDelay is the pause between scene steps. Zero means
	// DefaultSceneStepDelay; negative disables pacing.
	SceneStepDelay time.Duration
}

// Store is the application state store.
type Store struct {
	backend   Backend
	validator *schema.Validator
	sink      device.Sink
	stepDelay time.Duration
	observers observers

	// writeMu serializes device updates from lookup through the cache swap so
	// that concurrent patches merge against the latest committed status.
	writeMu sync.Mutex

	mu         sync.RWMutex
	rooms      []device.Room
	devices    []device.Device
	activity   []device.ActivityLog // newest first
	scenes     []device.Scene
	settings   []device.Setting
	tokenStats device.TokenStats
	security   device.SecurityMode
	lastErr    string
	loaded     bool
}

// New creates a Store. Call Initialize before use.
func New(backend Backend, opts Options) *Store {
	sink := opts.Sink
	if sink == nil {
		sink = device.NewNullSink()
	}
	delay := opts.SceneStepDelay
	if delay == 0 {
		delay = DefaultSceneStepDelay
	}
	return &Store{
		backend:    backend,
		validator:  opts.Validator,
		sink:       sink,
		stepDelay:  delay,
		security:   device.SecurityDisarmed,
		tokenStats: device.TokenStats{CompressionRatio: 1.0},
	}
}

// Initialize loads rooms, devices, recent activity, scenes and settings in
// parallel. On failure the cache is left untouched and the error recorded.
func (s *Store) Initialize(ctx context.Context) error {
	var (
		rooms    []device.Room
		devices  []device.Device
		activity []device.ActivityLog
		scenes   []device.Scene
		settings []device.Setting
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rooms, err = s.backend.Rooms().List(gctx)
		return err
	})
	g.Go(func() (err error) {
		devices, err = s.backend.Devices().List(gctx)
		return err
	})
	g.Go(func() (err error) {
		activity, err = s.backend.Activity().List(gctx, MaxActivityLogs)
		return err
	})
	g.Go(func() (err error) {
		scenes, err = s.backend.Scenes().List(gctx)
		return err
	})
	g.Go(func() (err error) {
		settings, err = s.backend.Settings().List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return s.fail("initialize", err)
	}

	s.mu.Lock()
	s.rooms = rooms
	s.devices = devices
	s.activity = capActivity(activity)
	s.scenes = scenes
	s.settings = settings
	s.lastErr = ""
	s.loaded = true
	s.mu.Unlock()

	log.Info().
		Int("rooms", len(rooms)).
		Int("devices", len(devices)).
		Int("scenes", len(scenes)).
		Msg("Home state loaded")

	s.observers.notify(Event{Kind: EventRefreshed})
	return nil
}

// Refresh re-reads devices and recent activity. It is best effort: failures
// are logged and never returned. Device updates wait for the refresh so the
// cache never falls behind a committed write.
func (s *Store) Refresh(ctx context.Context) {
	s.writeMu.Lock()

	var (
		devices  []device.Device
		activity []device.ActivityLog
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		devices, err = s.backend.Devices().List(gctx)
		return err
	})
	g.Go(func() (err error) {
		activity, err = s.backend.Activity().List(gctx, MaxActivityLogs)
		return err
	})
	if err := g.Wait(); err != nil {
		s.writeMu.Unlock()
		log.Warn().Err(err).Msg("Failed to refresh home state")
		return
	}

	s.mu.Lock()
	s.devices = devices
	s.activity = capActivity(activity)
	s.mu.Unlock()
	s.writeMu.Unlock()

	s.observers.notify(Event{Kind: EventRefreshed})
}

// Subscribe registers an observer and returns a function that removes it.
func (s *Store) Subscribe(fn Observer) func() {
	return s.observers.add(fn)
}

// Loaded reports whether Initialize has succeeded at least once.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Rooms returns the rooms in display order.
func (s *Store) Rooms() []device.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]device.Room(nil), s.rooms...)
}

// Devices returns deep copies of all devices.
func (s *Store) Devices() []device.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]device.Device, len(s.devices))
	for i, d := range s.devices {
		out[i] = d.Clone()
	}
	return out
}

// Device returns a copy of the device with the given id.
func (s *Store) Device(id string) (device.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.devices {
		if d.ID == id {
			return d.Clone(), true
		}
	}
	return device.Device{}, false
}

// ActivityLogs returns the cached activity, newest first.
func (s *Store) ActivityLogs() []device.ActivityLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]device.ActivityLog(nil), s.activity...)
}

// Err returns the last recorded error message, or "".
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// SetError records msg as the current error. An empty msg clears it.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()

	if msg != "" {
		s.observers.notify(Event{Kind: EventError, Error: msg})
	}
}

// fail records err, logs it with the failing operation and returns it.
func (s *Store) fail(op string, err error) error {
	log.Error().Err(err).Str("op", op).Msg("Home store operation failed")
	s.SetError(err.Error())
	return err
}

// SecurityMode returns the current alarm state.
func (s *Store) SecurityMode() device.SecurityMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.security
}

// SetSecurityMode changes the local alarm state.
func (s *Store) SetSecurityMode(mode device.SecurityMode) error {
	if !mode.Valid() {
		return invalid("unknown security mode %q", mode)
	}

	s.mu.Lock()
	s.security = mode
	s.mu.Unlock()

	s.observers.notify(Event{Kind: EventSecurityChanged, Security: mode})
	return nil
}

// TokenStats returns the session compression counters.
func (s *Store) TokenStats() device.TokenStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokenStats
}

// RecordTokenUsage stores the latest compression outcome and adds its savings
// to the session total.
func (s *Store) RecordTokenUsage(original, compressed int, ratio float64) device.TokenStats {
	saved := tokens.Saved(original, compressed)

	s.mu.Lock()
	s.tokenStats = device.TokenStats{
		OriginalTokens:     original,
		CompressedTokens:   compressed,
		TokensSaved:        saved,
		CompressionRatio:   ratio,
		SessionTokensSaved: s.tokenStats.SessionTokensSaved + saved,
	}
	stats := s.tokenStats
	s.mu.Unlock()

	s.observers.notify(Event{Kind: EventTokenStats, TokenStats: &stats})
	return stats
}

func capActivity(logs []device.ActivityLog) []device.ActivityLog {
	if len(logs) > MaxActivityLogs {
		logs = logs[:MaxActivityLogs]
	}
	return logs
}
