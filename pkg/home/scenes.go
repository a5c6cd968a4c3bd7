package home

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/homepanel/pkg/device"
)

// Scenes returns the scenes in name order.
func (s *Store) Scenes() []device.Scene {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]device.Scene(nil), s.scenes...)
}

// Scene returns the scene with the given id.
func (s *Store) Scene(id string) (device.Scene, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sc := range s.scenes {
		if sc.ID == id {
			return sc, true
		}
	}
	return device.Scene{}, false
}

// CreateScene persists sc and inserts it into the cache in name order.
func (s *Store) CreateScene(ctx context.Context, sc device.Scene) (device.Scene, error) {
	if strings.TrimSpace(sc.Name) == "" {
		return device.Scene{}, s.fail("create_scene", invalid("scene name is required"))
	}
	for i, step := range sc.DeviceStates {
		if step.DeviceID == "" || len(step.Status) == 0 {
			return device.Scene{}, s.fail("create_scene", invalid("scene step %d needs a device_id and a status", i))
		}
	}

	sc.ID = ""
	if err := s.backend.Scenes().Create(ctx, &sc); err != nil {
		return device.Scene{}, s.fail("create_scene", err)
	}

	s.mu.Lock()
	at := sort.Search(len(s.scenes), func(i int) bool { return s.scenes[i].Name > sc.Name })
	s.scenes = slices.Insert(s.scenes, at, sc)
	s.mu.Unlock()

	s.observers.notify(Event{Kind: EventSceneCreated, Scene: &sc})
	return sc, nil
}

// SnapshotScene creates a scene from the current status of every device that
// can be mutated. Read-only devices are skipped.
func (s *Store) SnapshotScene(ctx context.Context, name, description, icon string) (device.Scene, error) {
	devices := s.Devices()
	states := make([]device.SceneState, 0, len(devices))
	for _, d := range devices {
		if d.ReadOnly() || len(d.Status) == 0 {
			continue
		}
		states = append(states, device.SceneState{DeviceID: d.ID, Status: d.Status})
	}

	return s.CreateScene(ctx, device.Scene{
		Name:         name,
		Description:  description,
		Icon:         icon,
		DeviceStates: states,
	})
}

// DeleteScene removes the scene from the backend and the cache.
func (s *Store) DeleteScene(ctx context.Context, id string) error {
	if err := s.backend.Scenes().Delete(ctx, id); err != nil {
		return s.fail("delete_scene", err)
	}

	s.mu.Lock()
	for i := range s.scenes {
		if s.scenes[i].ID == id {
			s.scenes = append(s.scenes[:i:i], s.scenes[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.observers.notify(Event{Kind: EventSceneDeleted, SceneID: id})
	return nil
}

// ToggleSceneFavorite flips the favorite flag of a cached scene.
func (s *Store) ToggleSceneFavorite(ctx context.Context, id string) (device.Scene, error) {
	current, ok := s.Scene(id)
	if !ok {
		return device.Scene{}, s.fail("toggle_scene_favorite", fmt.Errorf("%w: %s", device.ErrSceneNotFound, id))
	}

	updated, err := s.backend.Scenes().SetFavorite(ctx, id, !current.IsFavorite)
	if err != nil {
		return device.Scene{}, s.fail("toggle_scene_favorite", err)
	}
	s.replaceScene(*updated)

	s.observers.notify(Event{Kind: EventSceneUpdated, Scene: updated})
	return *updated, nil
}

func (s *Store) replaceScene(sc device.Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.scenes {
		if s.scenes[i].ID == sc.ID {
			s.scenes[i] = sc
			return
		}
	}
}

// ApplyScene replays every step of the scene through UpdateDevice with
// trigger scene, strictly in order, pausing between steps. The first failing
// step aborts the rest; earlier steps stay applied. After the last step a
// single scene_applied entry is written with the given trigger.
func (s *Store) ApplyScene(ctx context.Context, id string, trigger device.Trigger) error {
	sc, ok := s.Scene(id)
	if !ok {
		return s.fail("apply_scene", fmt.Errorf("%w: %s", device.ErrSceneNotFound, id))
	}
	if trigger != device.TriggerScheduled {
		trigger = device.TriggerManual
	}

	log.Info().
		Str("scene", sc.Name).
		Int("steps", len(sc.DeviceStates)).
		Str("trigger", string(trigger)).
		Msg("Applying scene")

	for i, step := range sc.DeviceStates {
		if i > 0 {
			if err := s.pause(ctx); err != nil {
				return s.fail("apply_scene", err)
			}
		}
		if _, err := s.UpdateDevice(ctx, step.DeviceID, step.Status, device.TriggerScene); err != nil {
			return fmt.Errorf("scene %q step %d: %w", sc.Name, i+1, err)
		}
	}

	if _, err := s.AddActivityLog(ctx, device.ActivityLog{
		ActionType: device.ActionSceneApplied,
		Trigger:    trigger,
		Command:    "Applied scene: " + sc.Name,
	}); err != nil {
		log.Warn().Err(err).Str("scene", sc.Name).Msg("Failed to record scene activity")
	}

	s.observers.notify(Event{Kind: EventSceneApplied, SceneID: sc.ID, Trigger: trigger})
	return nil
}

// pause waits for the scene step delay or until ctx is done.
func (s *Store) pause(ctx context.Context) error {
	if s.stepDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.stepDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
