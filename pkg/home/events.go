package home

import (
	"sync"

	"github.com/urmzd/homepanel/pkg/device"
)

// EventKind names a state change in the store.
type EventKind string

const (
	EventRefreshed       EventKind = "refreshed"
	EventDeviceUpdated   EventKind = "device_updated"
	EventActivityAdded   EventKind = "activity_added"
	EventSceneCreated    EventKind = "scene_created"
	EventSceneUpdated    EventKind = "scene_updated"
	EventSceneDeleted    EventKind = "scene_deleted"
	EventSceneApplied    EventKind = "scene_applied"
	EventSettingUpdated  EventKind = "setting_updated"
	EventSecurityChanged EventKind = "security_changed"
	EventTokenStats      EventKind = "token_stats"
	EventError           EventKind = "error"
)

// Event is delivered to observers after a change has been committed. Only the
// fields relevant to Kind are set.
type Event struct {
	Kind       EventKind           `json:"kind"`
	Device     *device.Device      `json:"device,omitempty"`
	Activity   *device.ActivityLog `json:"activity,omitempty"`
	Scene      *device.Scene       `json:"scene,omitempty"`
	SceneID    string              `json:"scene_id,omitempty"`
	Setting    *device.Setting     `json:"setting,omitempty"`
	Security   device.SecurityMode `json:"security,omitempty"`
	TokenStats *device.TokenStats  `json:"token_stats,omitempty"`
	Trigger    device.Trigger      `json:"trigger,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// Observer is called synchronously, outside the store lock, after each
// change. Observers must not block.
type Observer func(Event)

type observers struct {
	mu   sync.RWMutex
	next int
	fns  map[int]Observer
}

func (o *observers) add(fn Observer) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fns == nil {
		o.fns = make(map[int]Observer)
	}
	id := o.next
	o.next++
	o.fns[id] = fn

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.fns, id)
	}
}

func (o *observers) notify(e Event) {
	o.mu.RLock()
	fns := make([]Observer, 0, len(o.fns))
	for _, fn := range o.fns {
		fns = append(fns, fn)
	}
	o.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}
