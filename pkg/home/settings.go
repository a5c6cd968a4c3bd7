package home

import (
	"context"
	"strings"

	"github.com/urmzd/homepanel/pkg/device"
)

// Settings returns all cached settings.
func (s *Store) Settings() []device.Setting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]device.Setting(nil), s.settings...)
}

// Setting returns the cached setting for key, or nil. It never touches the
// backend.
func (s *Store) Setting(key string) *device.Setting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.settings {
		if st.Key == key {
			cp := st
			return &cp
		}
	}
	return nil
}

// UpdateSetting upserts the value for key and replaces (or appends) the
// cached entry.
func (s *Store) UpdateSetting(ctx context.Context, key string, value map[string]any) (device.Setting, error) {
	if strings.TrimSpace(key) == "" {
		return device.Setting{}, s.fail("update_setting", invalid("setting key is required"))
	}
	if value == nil {
		value = map[string]any{}
	}

	updated, err := s.backend.Settings().Upsert(ctx, key, value)
	if err != nil {
		return device.Setting{}, s.fail("update_setting", err)
	}

	s.mu.Lock()
	replaced := false
	for i := range s.settings {
		if s.settings[i].Key == key {
			s.settings[i] = *updated
			replaced = true
			break
		}
	}
	if !replaced {
		s.settings = append(s.settings, *updated)
	}
	s.mu.Unlock()

	s.observers.notify(Event{Kind: EventSettingUpdated, Setting: updated})
	return *updated, nil
}
