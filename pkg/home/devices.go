package home

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/homepanel/pkg/device"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", device.ErrValidation, fmt.Sprintf(format, args...))
}

// UpdateDevice merges patch into the device's status and persists it.
//
// The device is looked up in the cache before any I/O: unknown ids return
// device.ErrNotFound, read-only devices device.ErrReadOnly and patches that
// violate the type schema device.ErrValidation. The cache entry is replaced
// only after the backend confirms the write. Updates are serialized, so a
// patch never merges against a status another update is about to replace.
// The activity entry that follows is best effort.
func (s *Store) UpdateDevice(ctx context.Context, id string, patch device.Status, trigger device.Trigger) (device.Device, error) {
	if !trigger.Valid() {
		trigger = device.TriggerManual
	}

	current, updated, err := s.commitStatus(ctx, id, patch)
	if err != nil {
		return device.Device{}, s.fail("update_device", err)
	}

	log.Info().
		Str("device_id", id).
		Str("device", updated.Name).
		Str("trigger", string(trigger)).
		Msg("Device updated")

	result := updated.Clone()
	s.observers.notify(Event{Kind: EventDeviceUpdated, Device: &result, Trigger: trigger})

	if err := s.sink.PublishStatus(ctx, updated.Clone()); err != nil {
		log.Warn().Err(err).Str("device_id", id).Msg("Failed to publish device status")
	}

	if _, err := s.AddActivityLog(ctx, device.ActivityLog{
		DeviceID:      id,
		RoomID:        current.RoomID,
		ActionType:    device.ActionDeviceUpdate,
		PreviousState: current.Status,
		NewState:      patch.Clone(),
		Trigger:       trigger,
	}); err != nil {
		log.Warn().Err(err).Str("device_id", id).Msg("Failed to record device activity")
	}

	return result, nil
}

// AddActivityLog persists entry and prepends it to the cached list, keeping
// at most MaxActivityLogs entries. Failures are logged and returned but are
// not recorded as the store error.
func (s *Store) AddActivityLog(ctx context.Context, entry device.ActivityLog) (device.ActivityLog, error) {
	if err := s.backend.Activity().Create(ctx, &entry); err != nil {
		return device.ActivityLog{}, err
	}

	s.mu.Lock()
	s.activity = append([]device.ActivityLog{entry}, s.activity...)
	s.activity = capActivity(s.activity)
	s.mu.Unlock()

	s.observers.notify(Event{Kind: EventActivityAdded, Activity: &entry})
	return entry, nil
}

// commitStatus validates patch, merges it into the cached status and persists
// the result, holding writeMu until the cache reflects the write. It returns
// the device as it was before the update and as persisted.
func (s *Store) commitStatus(ctx context.Context, id string, patch device.Status) (device.Device, *device.Device, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, ok := s.Device(id)
	if !ok {
		return device.Device{}, nil, fmt.Errorf("%w: %s", device.ErrNotFound, id)
	}
	if current.ReadOnly() {
		return device.Device{}, nil, fmt.Errorf("%w: %s", device.ErrReadOnly, current.Name)
	}
	if len(patch) == 0 {
		return device.Device{}, nil, invalid("empty status patch")
	}
	if s.validator != nil {
		if err := s.validator.ValidatePatch(current.Type, patch); err != nil {
			return device.Device{}, nil, err
		}
	}

	updated, err := s.backend.Devices().UpdateStatus(ctx, id, current.Status.Merge(patch))
	if err != nil {
		return device.Device{}, nil, err
	}

	s.mu.Lock()
	for i := range s.devices {
		if s.devices[i].ID == id {
			s.devices[i] = *updated
			break
		}
	}
	s.mu.Unlock()

	return current, updated, nil
}
