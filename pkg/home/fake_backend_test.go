package home

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/urmzd/homepanel/pkg/db"
	"github.com/urmzd/homepanel/pkg/device"
)

var errBackendDown = errors.New("backend unavailable")

// fakeBackend is an in-memory Backend with per-operation failure switches.
type fakeBackend struct {
	mu       sync.Mutex
	rooms    []device.Room
	devices  []device.Device
	activity []device.ActivityLog
	scenes   []device.Scene
	settings []device.Setting
	nextID   int

	failList        bool
	failUpdate      map[string]bool // device id -> fail UpdateStatus
	failActivity    bool
	failScene       bool
	failSetting     bool
	statusUpdates   []string // device ids, in call order
	activityCreates int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{failUpdate: map[string]bool{}}
}

func (f *fakeBackend) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeBackend) Rooms() db.RoomStore        { return fakeRooms{f} }
func (f *fakeBackend) Devices() db.DeviceStore    { return fakeDevices{f} }
func (f *fakeBackend) Activity() db.ActivityStore { return fakeActivity{f} }
func (f *fakeBackend) Scenes() db.SceneStore      { return fakeScenes{f} }
func (f *fakeBackend) Settings() db.SettingStore  { return fakeSettings{f} }

type fakeRooms struct{ f *fakeBackend }

func (r fakeRooms) List(context.Context) ([]device.Room, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.failList {
		return nil, errBackendDown
	}
	return append([]device.Room(nil), r.f.rooms...), nil
}

func (r fakeRooms) Get(_ context.Context, id string) (*device.Room, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, room := range r.f.rooms {
		if room.ID == id {
			return &room, nil
		}
	}
	return nil, db.ErrRoomNotFound
}

func (r fakeRooms) Create(_ context.Context, room *device.Room) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if room.ID == "" {
		room.ID = r.f.id("room")
	}
	r.f.rooms = append(r.f.rooms, *room)
	return nil
}

type fakeDevices struct{ f *fakeBackend }

func (d fakeDevices) List(context.Context) ([]device.Device, error) {
	d.f.mu.Lock()
	defer d.f.mu.Unlock()
	if d.f.failList {
		return nil, errBackendDown
	}
	out := make([]device.Device, len(d.f.devices))
	for i, dev := range d.f.devices {
		out[i] = dev.Clone()
	}
	return out, nil
}

func (d fakeDevices) Get(_ context.Context, id string) (*device.Device, error) {
	d.f.mu.Lock()
	defer d.f.mu.Unlock()
	for _, dev := range d.f.devices {
		if dev.ID == id {
			cp := dev.Clone()
			return &cp, nil
		}
	}
	return nil, device.ErrNotFound
}

func (d fakeDevices) Create(_ context.Context, dev *device.Device) error {
	d.f.mu.Lock()
	defer d.f.mu.Unlock()
	if dev.ID == "" {
		dev.ID = d.f.id("dev")
	}
	d.f.devices = append(d.f.devices, dev.Clone())
	return nil
}

func (d fakeDevices) UpdateStatus(_ context.Context, id string, status device.Status) (*device.Device, error) {
	d.f.mu.Lock()
	defer d.f.mu.Unlock()
	d.f.statusUpdates = append(d.f.statusUpdates, id)
	if d.f.failUpdate[id] {
		return nil, errBackendDown
	}
	for i := range d.f.devices {
		if d.f.devices[i].ID == id {
			d.f.devices[i].Status = status.Clone()
			d.f.devices[i].UpdatedAt = time.Now()
			cp := d.f.devices[i].Clone()
			return &cp, nil
		}
	}
	return nil, device.ErrNotFound
}

type fakeActivity struct{ f *fakeBackend }

func (a fakeActivity) List(_ context.Context, limit int) ([]device.ActivityLog, error) {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	if a.f.failList {
		return nil, errBackendDown
	}
	out := make([]device.ActivityLog, 0, len(a.f.activity))
	for i := len(a.f.activity) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, a.f.activity[i])
	}
	return out, nil
}

func (a fakeActivity) Create(_ context.Context, l *device.ActivityLog) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	a.f.activityCreates++
	if a.f.failActivity {
		return errBackendDown
	}
	if l.ID == "" {
		l.ID = a.f.id("log")
	}
	l.CreatedAt = time.Now()
	a.f.activity = append(a.f.activity, *l)
	return nil
}

type fakeScenes struct{ f *fakeBackend }

func (s fakeScenes) List(context.Context) ([]device.Scene, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if s.f.failList {
		return nil, errBackendDown
	}
	return append([]device.Scene(nil), s.f.scenes...), nil
}

func (s fakeScenes) Get(_ context.Context, id string) (*device.Scene, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	for _, sc := range s.f.scenes {
		if sc.ID == id {
			return &sc, nil
		}
	}
	return nil, device.ErrSceneNotFound
}

func (s fakeScenes) Create(_ context.Context, sc *device.Scene) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if s.f.failScene {
		return errBackendDown
	}
	if sc.ID == "" {
		sc.ID = s.f.id("scene")
	}
	s.f.scenes = append(s.f.scenes, *sc)
	return nil
}

func (s fakeScenes) SetFavorite(_ context.Context, id string, favorite bool) (*device.Scene, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if s.f.failScene {
		return nil, errBackendDown
	}
	for i := range s.f.scenes {
		if s.f.scenes[i].ID == id {
			s.f.scenes[i].IsFavorite = favorite
			cp := s.f.scenes[i]
			return &cp, nil
		}
	}
	return nil, device.ErrSceneNotFound
}

func (s fakeScenes) Delete(_ context.Context, id string) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if s.f.failScene {
		return errBackendDown
	}
	for i := range s.f.scenes {
		if s.f.scenes[i].ID == id {
			s.f.scenes = append(s.f.scenes[:i], s.f.scenes[i+1:]...)
			return nil
		}
	}
	return device.ErrSceneNotFound
}

type fakeSettings struct{ f *fakeBackend }

func (s fakeSettings) List(context.Context) ([]device.Setting, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if s.f.failList {
		return nil, errBackendDown
	}
	return append([]device.Setting(nil), s.f.settings...), nil
}

func (s fakeSettings) Get(_ context.Context, key string) (*device.Setting, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	for _, st := range s.f.settings {
		if st.Key == key {
			return &st, nil
		}
	}
	return nil, db.ErrSettingNotFound
}

func (s fakeSettings) Upsert(_ context.Context, key string, value map[string]any) (*device.Setting, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if s.f.failSetting {
		return nil, errBackendDown
	}
	for i := range s.f.settings {
		if s.f.settings[i].Key == key {
			s.f.settings[i].Value = value
			cp := s.f.settings[i]
			return &cp, nil
		}
	}
	st := device.Setting{ID: s.f.id("setting"), Key: key, Value: value}
	s.f.settings = append(s.f.settings, st)
	return &st, nil
}
