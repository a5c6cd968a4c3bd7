package home

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/homepanel/pkg/db"
	"github.com/urmzd/homepanel/pkg/device"
	"github.com/urmzd/homepanel/pkg/device/schema"
)

// fixture: one room, a light, a TV and a read-only sensor, plus one scene.
func newFixture(t *testing.T) (*Store, *fakeBackend) {
	t.Helper()
	f := newFakeBackend()
	f.rooms = []device.Room{{ID: "r1", Name: "Living Room", Slug: "living_room", DisplayOrder: 1}}
	f.devices = []device.Device{
		{ID: "light", RoomID: "r1", Name: "Smart Lights", Type: device.TypeLights, Status: device.Status{"state": "off", "brightness": float64(0)}},
		{ID: "tv", RoomID: "r1", Name: "Smart TV", Type: device.TypeTV, Status: device.Status{"state": "off", "volume": float64(30)}},
		{ID: "sensor", RoomID: "r1", Name: "Sensor", Type: device.TypeSensor, Status: device.Status{"temperature": float64(24)}, Metadata: device.Metadata{"read_only": true}},
	}
	f.scenes = []device.Scene{{
		ID:   "movie",
		Name: "Movie Night",
		DeviceStates: []device.SceneState{
			{DeviceID: "light", Status: device.Status{"state": "on", "brightness": 20}},
			{DeviceID: "tv", Status: device.Status{"state": "on"}},
		},
	}}

	s := New(f, Options{Validator: schema.NewValidator(), SceneStepDelay: -1})
	require.NoError(t, s.Initialize(context.Background()))
	return s, f
}

func TestInitialize_LoadsEverything(t *testing.T) {
	s, _ := newFixture(t)

	assert.True(t, s.Loaded())
	assert.Len(t, s.Rooms(), 1)
	assert.Len(t, s.Devices(), 3)
	assert.Len(t, s.Scenes(), 1)
	assert.Empty(t, s.Err())
	assert.Equal(t, device.SecurityDisarmed, s.SecurityMode())
	assert.Equal(t, 1.0, s.TokenStats().CompressionRatio)
}

func TestInitialize_FailureRecordsError(t *testing.T) {
	f := newFakeBackend()
	f.failList = true
	s := New(f, Options{})

	err := s.Initialize(context.Background())
	assert.ErrorIs(t, err, errBackendDown)
	assert.Equal(t, errBackendDown.Error(), s.Err())
	assert.False(t, s.Loaded())
}

func TestUpdateDevice_MergesPatch(t *testing.T) {
	s, f := newFixture(t)

	updated, err := s.UpdateDevice(context.Background(), "light", device.Status{"brightness": 80}, device.TriggerManual)
	require.NoError(t, err)

	want := device.Status{"state": "off", "brightness": 80}
	if diff := cmp.Diff(want, updated.Status); diff != "" {
		t.Errorf("merged status mismatch (-want +got):\n%s", diff)
	}

	cached, ok := s.Device("light")
	require.True(t, ok)
	assert.Equal(t, updated.Status, cached.Status)
	assert.Equal(t, []string{"light"}, f.statusUpdates)

	logs := s.ActivityLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, device.ActionDeviceUpdate, logs[0].ActionType)
	assert.Equal(t, device.TriggerManual, logs[0].Trigger)
	assert.Equal(t, "r1", logs[0].RoomID)
	assert.Equal(t, "off", logs[0].PreviousState["state"])
	assert.Equal(t, device.Status{"brightness": 80}, logs[0].NewState, "new_state holds the patch")
}

func TestUpdateDevice_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		patch   device.Status
		wantErr error
	}{
		{"unknown device", "nope", device.Status{"state": "on"}, device.ErrNotFound},
		{"read-only device", "sensor", device.Status{"temperature": 10}, device.ErrReadOnly},
		{"schema violation", "light", device.Status{"brightness": 150}, device.ErrValidation},
		{"bad enum", "light", device.Status{"state": "purple"}, device.ErrValidation},
		{"empty patch", "light", device.Status{}, device.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, f := newFixture(t)

			_, err := s.UpdateDevice(context.Background(), tt.id, tt.patch, device.TriggerManual)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NotEmpty(t, s.Err())
			assert.Empty(t, f.statusUpdates, "no backend call")
			assert.Empty(t, s.ActivityLogs())
		})
	}
}

func TestUpdateDevice_PersistFailureLeavesCache(t *testing.T) {
	s, f := newFixture(t)
	f.failUpdate["light"] = true

	_, err := s.UpdateDevice(context.Background(), "light", device.Status{"state": "on"}, device.TriggerAI)
	assert.ErrorIs(t, err, errBackendDown)

	cached, _ := s.Device("light")
	assert.Equal(t, "off", cached.Status["state"])
	assert.Equal(t, errBackendDown.Error(), s.Err())
	assert.Empty(t, s.ActivityLogs())
}

func TestUpdateDevice_LogFailureIsBestEffort(t *testing.T) {
	s, f := newFixture(t)
	f.failActivity = true

	updated, err := s.UpdateDevice(context.Background(), "tv", device.Status{"state": "on"}, device.TriggerAI)
	require.NoError(t, err)
	assert.Equal(t, "on", updated.Status["state"])
	assert.Equal(t, 1, f.activityCreates)
	assert.Empty(t, s.Err())
}

type recordingSink struct {
	mu      sync.Mutex
	devices []device.Device
	fail    bool
}

func (r *recordingSink) PublishStatus(_ context.Context, d device.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = append(r.devices, d)
	if r.fail {
		return errors.New("broker down")
	}
	return nil
}

func (r *recordingSink) IsConnected() bool { return true }
func (r *recordingSink) Close()            {}

func TestUpdateDevice_PublishesMergedStatus(t *testing.T) {
	f := newFakeBackend()
	f.rooms = []device.Room{{ID: "r1"}}
	f.devices = []device.Device{{ID: "fan", RoomID: "r1", Type: device.TypeFan, Status: device.Status{"state": "off", "speed": 0}}}
	sink := &recordingSink{fail: true}
	s := New(f, Options{Sink: sink})
	require.NoError(t, s.Initialize(context.Background()))

	_, err := s.UpdateDevice(context.Background(), "fan", device.Status{"speed": 40}, device.TriggerManual)
	require.NoError(t, err, "sink failures do not fail the update")

	require.Len(t, sink.devices, 1)
	assert.Equal(t, device.Status{"state": "off", "speed": 40}, sink.devices[0].Status)
}

func TestActivityLog_CappedNewestFirst(t *testing.T) {
	s, _ := newFixture(t)
	ctx := context.Background()

	for i := 0; i < MaxActivityLogs+10; i++ {
		_, err := s.AddActivityLog(ctx, device.ActivityLog{
			ActionType: device.ActionAICommand,
			Trigger:    device.TriggerAI,
			Command:    string(rune('A' + i%26)),
		})
		require.NoError(t, err)
	}

	logs := s.ActivityLogs()
	require.Len(t, logs, MaxActivityLogs)
	last := MaxActivityLogs + 9
	assert.Equal(t, string(rune('A'+last%26)), logs[0].Command)
}

func TestApplyScene_RunsStepsInOrder(t *testing.T) {
	s, f := newFixture(t)

	require.NoError(t, s.ApplyScene(context.Background(), "movie", device.TriggerManual))

	assert.Equal(t, []string{"light", "tv"}, f.statusUpdates)

	light, _ := s.Device("light")
	assert.Equal(t, "on", light.Status["state"])
	assert.Equal(t, 20, light.Status["brightness"])

	logs := s.ActivityLogs()
	require.Len(t, logs, 3)
	assert.Equal(t, device.ActionSceneApplied, logs[0].ActionType)
	assert.Equal(t, "Applied scene: Movie Night", logs[0].Command)
	assert.Equal(t, device.TriggerManual, logs[0].Trigger)
	assert.Equal(t, device.TriggerScene, logs[1].Trigger)
	assert.Equal(t, device.TriggerScene, logs[2].Trigger)
}

func TestApplyScene_ScheduledTrigger(t *testing.T) {
	s, _ := newFixture(t)

	require.NoError(t, s.ApplyScene(context.Background(), "movie", device.TriggerScheduled))
	assert.Equal(t, device.TriggerScheduled, s.ActivityLogs()[0].Trigger)
}

func TestApplyScene_UnknownScene(t *testing.T) {
	s, f := newFixture(t)

	err := s.ApplyScene(context.Background(), "nope", device.TriggerManual)
	assert.ErrorIs(t, err, device.ErrSceneNotFound)
	assert.Empty(t, f.statusUpdates)
	assert.Empty(t, s.ActivityLogs())
}

func TestApplyScene_StopsAtFirstFailure(t *testing.T) {
	s, f := newFixture(t)
	f.failUpdate["light"] = true

	err := s.ApplyScene(context.Background(), "movie", device.TriggerManual)
	assert.ErrorIs(t, err, errBackendDown)
	assert.Equal(t, []string{"light"}, f.statusUpdates, "tv step never attempted")

	for _, l := range s.ActivityLogs() {
		assert.NotEqual(t, device.ActionSceneApplied, l.ActionType)
	}
}

func TestApplyScene_NoRollback(t *testing.T) {
	s, f := newFixture(t)
	f.failUpdate["tv"] = true

	err := s.ApplyScene(context.Background(), "movie", device.TriggerManual)
	assert.Error(t, err)

	light, _ := s.Device("light")
	assert.Equal(t, "on", light.Status["state"], "earlier step stays applied")
}

func TestApplyScene_PacesBetweenSteps(t *testing.T) {
	f := newFakeBackend()
	f.devices = []device.Device{
		{ID: "a", Type: "x", Status: device.Status{"state": "off"}},
		{ID: "b", Type: "x", Status: device.Status{"state": "off"}},
		{ID: "c", Type: "x", Status: device.Status{"state": "off"}},
	}
	f.scenes = []device.Scene{{ID: "s", Name: "Slow", DeviceStates: []device.SceneState{
		{DeviceID: "a", Status: device.Status{"state": "on"}},
		{DeviceID: "b", Status: device.Status{"state": "on"}},
		{DeviceID: "c", Status: device.Status{"state": "on"}},
	}}}
	s := New(f, Options{SceneStepDelay: 30 * time.Millisecond})
	require.NoError(t, s.Initialize(context.Background()))

	start := time.Now()
	require.NoError(t, s.ApplyScene(context.Background(), "s", device.TriggerManual))

	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, f.statusUpdates)
}

func TestSnapshotScene_SkipsReadOnly(t *testing.T) {
	s, _ := newFixture(t)

	sc, err := s.SnapshotScene(context.Background(), "Current", "", "Camera")
	require.NoError(t, err)

	ids := make([]string, 0, len(sc.DeviceStates))
	for _, st := range sc.DeviceStates {
		ids = append(ids, st.DeviceID)
	}
	assert.ElementsMatch(t, []string{"light", "tv"}, ids)
	assert.Len(t, s.Scenes(), 2)
}

func TestCreateScene_KeepsNameOrder(t *testing.T) {
	s, _ := newFixture(t)
	ctx := context.Background()

	_, err := s.CreateScene(ctx, device.Scene{Name: "Away Mode"})
	require.NoError(t, err)
	_, err = s.CreateScene(ctx, device.Scene{Name: "Zen"})
	require.NoError(t, err)

	var names []string
	for _, sc := range s.Scenes() {
		names = append(names, sc.Name)
	}
	assert.Equal(t, []string{"Away Mode", "Movie Night", "Zen"}, names)
}

func TestCreateScene_Validation(t *testing.T) {
	s, _ := newFixture(t)

	_, err := s.CreateScene(context.Background(), device.Scene{Name: " "})
	assert.ErrorIs(t, err, device.ErrValidation)

	_, err = s.CreateScene(context.Background(), device.Scene{
		Name:         "Broken",
		DeviceStates: []device.SceneState{{DeviceID: "light"}},
	})
	assert.ErrorIs(t, err, device.ErrValidation)
}

func TestDeleteAndToggleScene(t *testing.T) {
	s, f := newFixture(t)
	ctx := context.Background()

	sc, err := s.ToggleSceneFavorite(ctx, "movie")
	require.NoError(t, err)
	assert.True(t, sc.IsFavorite)
	cached, _ := s.Scene("movie")
	assert.True(t, cached.IsFavorite)

	f.failScene = true
	err = s.DeleteScene(ctx, "movie")
	assert.ErrorIs(t, err, errBackendDown)
	assert.Len(t, s.Scenes(), 1, "cache untouched on failure")

	f.failScene = false
	require.NoError(t, s.DeleteScene(ctx, "movie"))
	assert.Empty(t, s.Scenes())

	_, err = s.ToggleSceneFavorite(ctx, "movie")
	assert.ErrorIs(t, err, device.ErrSceneNotFound)
}

func TestSettings_LocalRead(t *testing.T) {
	s, f := newFixture(t)
	ctx := context.Background()

	assert.Nil(t, s.Setting(device.SettingAPIKeys))

	_, err := s.UpdateSetting(ctx, device.SettingAPIKeys, map[string]any{"gemini_api_key": "k1"})
	require.NoError(t, err)
	_, err = s.UpdateSetting(ctx, device.SettingAPIKeys, map[string]any{"gemini_api_key": "k2"})
	require.NoError(t, err)

	assert.Len(t, s.Settings(), 1)

	f.failList = true // a local read must not hit the backend
	assert.Equal(t, "k2", s.Setting(device.SettingAPIKeys).String("gemini_api_key"))

	f.failSetting = true
	_, err = s.UpdateSetting(ctx, device.SettingAPIKeys, map[string]any{"gemini_api_key": "k3"})
	assert.ErrorIs(t, err, errBackendDown)
	assert.Equal(t, "k2", s.Setting(device.SettingAPIKeys).String("gemini_api_key"))
}

func TestSecurityMode(t *testing.T) {
	s, _ := newFixture(t)

	require.NoError(t, s.SetSecurityMode(device.SecurityAway))
	assert.Equal(t, device.SecurityAway, s.SecurityMode())

	assert.ErrorIs(t, s.SetSecurityMode("panic"), device.ErrValidation)
	assert.Equal(t, device.SecurityAway, s.SecurityMode())
}

func TestRecordTokenUsage_AccumulatesSession(t *testing.T) {
	s, _ := newFixture(t)

	s.RecordTokenUsage(400, 100, 0.25)
	stats := s.RecordTokenUsage(200, 150, 0.75)

	assert.Equal(t, 200, stats.OriginalTokens)
	assert.Equal(t, 150, stats.CompressedTokens)
	assert.Equal(t, 50, stats.TokensSaved)
	assert.Equal(t, 0.75, stats.CompressionRatio)
	assert.Equal(t, 350, stats.SessionTokensSaved)
	assert.Equal(t, stats, s.TokenStats())
}

func TestRefresh_BestEffort(t *testing.T) {
	s, f := newFixture(t)

	f.mu.Lock()
	f.devices[0].Status = device.Status{"state": "on", "brightness": float64(100)}
	f.mu.Unlock()

	s.Refresh(context.Background())
	light, _ := s.Device("light")
	assert.Equal(t, "on", light.Status["state"])

	f.failList = true
	s.Refresh(context.Background())
	assert.Empty(t, s.Err(), "refresh failures are not recorded")
	assert.Len(t, s.Devices(), 3)
}

func TestSubscribe_ReceivesEvents(t *testing.T) {
	s, _ := newFixture(t)

	var mu sync.Mutex
	var kinds []EventKind
	unsubscribe := s.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, e.Kind)
	})

	_, err := s.UpdateDevice(context.Background(), "tv", device.Status{"volume": 10}, device.TriggerManual)
	require.NoError(t, err)

	unsubscribe()
	require.NoError(t, s.SetSecurityMode(device.SecurityArmed))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventKind{EventDeviceUpdated, EventActivityAdded}, kinds)
}

func TestConcurrentUpdates_KeepEveryPatchedKey(t *testing.T) {
	s, f := newFixture(t)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.UpdateDevice(ctx, "tv", device.Status{fmt.Sprintf("preset_%d", i): i}, device.TriggerManual)
			assert.NoError(t, err)
			_ = s.Devices()
			_ = s.ActivityLogs()
		}(i)
	}
	wg.Wait()

	cached, _ := s.Device("tv")
	persisted, err := f.Devices().Get(ctx, "tv")
	require.NoError(t, err)
	for i := 0; i < writers; i++ {
		key := fmt.Sprintf("preset_%d", i)
		assert.Contains(t, cached.Status, key)
		assert.Contains(t, persisted.Status, key)
	}
	assert.EqualValues(t, 30, cached.Status["volume"])
	assert.Len(t, s.ActivityLogs(), writers)
}

// slowWriteBackend holds the first status write until release is closed.
type slowWriteBackend struct {
	*fakeBackend
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *slowWriteBackend) Devices() db.DeviceStore {
	return slowWriteDevices{fakeDevices{b.fakeBackend}, b}
}

type slowWriteDevices struct {
	fakeDevices
	b *slowWriteBackend
}

func (d slowWriteDevices) UpdateStatus(ctx context.Context, id string, status device.Status) (*device.Device, error) {
	first := false
	d.b.once.Do(func() { first = true })
	if first {
		close(d.b.entered)
		<-d.b.release
	}
	return d.fakeDevices.UpdateStatus(ctx, id, status)
}

func TestUpdateDevice_OverlappingPatchesBothSurvive(t *testing.T) {
	_, f := newFixture(t)
	slow := &slowWriteBackend{fakeBackend: f, entered: make(chan struct{}), release: make(chan struct{})}
	s := New(slow, Options{Validator: schema.NewValidator(), SceneStepDelay: -1})
	require.NoError(t, s.Initialize(context.Background()))
	ctx := context.Background()

	errs := make(chan error, 2)
	go func() {
		_, err := s.UpdateDevice(ctx, "light", device.Status{"state": "on"}, device.TriggerManual)
		errs <- err
	}()
	<-slow.entered

	go func() {
		_, err := s.UpdateDevice(ctx, "light", device.Status{"brightness": float64(80)}, device.TriggerManual)
		errs <- err
	}()
	// Give the second update time to reach the backend if nothing holds it back.
	time.Sleep(50 * time.Millisecond)
	close(slow.release)

	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	want := device.Status{"state": "on", "brightness": float64(80)}
	cached, _ := s.Device("light")
	persisted, err := f.Devices().Get(ctx, "light")
	require.NoError(t, err)
	if diff := cmp.Diff(want, cached.Status); diff != "" {
		t.Errorf("cached status mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, persisted.Status); diff != "" {
		t.Errorf("persisted status mismatch (-want +got):\n%s", diff)
	}
}
