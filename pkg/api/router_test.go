package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/homepanel/pkg/api/types"
	"github.com/urmzd/homepanel/pkg/assistant"
	"github.com/urmzd/homepanel/pkg/device"
	"github.com/urmzd/homepanel/pkg/home"
	"github.com/urmzd/homepanel/pkg/home/hometest"
	"github.com/urmzd/homepanel/pkg/interpreter"
)

type stubRunner struct {
	got    assistant.Command
	result *assistant.Result
	err    error

	// ctxErr and hasDeadline capture the context as seen during the call.
	ctxErr      error
	hasDeadline bool
}

func (r *stubRunner) Execute(ctx context.Context, cmd assistant.Command) (*assistant.Result, error) {
	r.got = cmd
	r.ctxErr = ctx.Err()
	_, r.hasDeadline = ctx.Deadline()
	return r.result, r.err
}

type stubSink struct{ connected bool }

func (s stubSink) PublishStatus(context.Context, device.Device) error { return nil }
func (s stubSink) IsConnected() bool                                   { return s.connected }
func (s stubSink) Close()                                              {}

func newTestRouter(t *testing.T, deps Dependencies) (http.Handler, *home.Store) {
	t.Helper()
	if deps.Store == nil {
		deps.Store, _ = hometest.NewStore(t, home.Options{})
	}
	return NewRouter(deps).Handler(), deps.Store
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t, Dependencies{Sink: stubSink{connected: true}})

	rec := do(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decodeBody[types.HealthResponse](t, rec)
	assert.Equal(t, "healthy", out.Status)
	assert.Equal(t, "loaded", out.Store)
	assert.Equal(t, "connected", out.Bridge)
}

func TestHealth_BridgeDisabled(t *testing.T) {
	h, _ := newTestRouter(t, Dependencies{})

	out := decodeBody[types.HealthResponse](t, do(t, h, http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, "disabled", out.Bridge)
}

func TestListRoomsAndDevices(t *testing.T) {
	h, store := newTestRouter(t, Dependencies{})

	rooms := decodeBody[types.ListRoomsResponse](t, do(t, h, http.MethodGet, "/api/v1/rooms", nil))
	require.Equal(t, len(store.Rooms()), rooms.Count)
	require.NotZero(t, rooms.Count)

	roomID := rooms.Rooms[0].ID
	rec := do(t, h, http.MethodGet, "/api/v1/devices?room_id="+roomID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	devices := decodeBody[types.ListDevicesResponse](t, rec)
	require.NotZero(t, devices.Count)
	for _, d := range devices.Devices {
		assert.Equal(t, roomID, d.RoomID)
	}
}

func TestGetDevice_NotFound(t *testing.T) {
	h, _ := newTestRouter(t, Dependencies{})

	rec := do(t, h, http.MethodGet, "/api/v1/devices/missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeBody[types.ErrorResponse](t, rec).Error)
}

func TestUpdateStatus(t *testing.T) {
	h, store := newTestRouter(t, Dependencies{})
	tv := hometest.Device(t, store, "Smart TV")

	rec := do(t, h, http.MethodPatch, "/api/v1/devices/"+tv.ID+"/status", types.UpdateStatusRequest{
		Status: device.Status{"volume": 45},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decodeBody[types.DeviceResponse](t, rec)
	assert.EqualValues(t, 45, out.Device.Status["volume"])
	assert.Equal(t, "1", out.Device.Status["channel"])

	logs := store.ActivityLogs()
	assert.Equal(t, tv.ID, logs[0].DeviceID)
	assert.Equal(t, device.TriggerManual, logs[0].Trigger)
}

func TestUpdateStatus_Errors(t *testing.T) {
	h, store := newTestRouter(t, Dependencies{})
	tv := hometest.Device(t, store, "Smart TV")
	sensor := hometest.Device(t, store, "Temperature Sensor")

	tests := []struct {
		name   string
		id     string
		body   any
		status int
		code   string
	}{
		{"missing body", tv.ID, map[string]any{}, http.StatusBadRequest, "invalid_request"},
		{"schema violation", tv.ID, types.UpdateStatusRequest{Status: device.Status{"volume": 500}}, http.StatusBadRequest, "validation_error"},
		{"unknown device", "missing", types.UpdateStatusRequest{Status: device.Status{"state": "on"}}, http.StatusNotFound, "not_found"},
		{"read-only device", sensor.ID, types.UpdateStatusRequest{Status: device.Status{"temperature": 30}}, http.StatusConflict, "read_only"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPatch, "/api/v1/devices/"+tt.id+"/status", tt.body)

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decodeBody[types.ErrorResponse](t, rec).Error)
		})
	}

	got, _ := store.Device(tv.ID)
	assert.EqualValues(t, 30, got.Status["volume"])
}

func TestScenesLifecycle(t *testing.T) {
	h, store := newTestRouter(t, Dependencies{})
	fan := hometest.Device(t, store, "Fan")

	rec := do(t, h, http.MethodPost, "/api/v1/scenes", types.CreateSceneRequest{
		Name:         "Breeze",
		DeviceStates: []device.SceneState{{DeviceID: fan.ID, Status: device.Status{"state": "on", "speed": 40}}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[types.SceneResponse](t, rec).Scene

	rec = do(t, h, http.MethodPost, "/api/v1/scenes/"+created.ID+"/favorite", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[types.SceneResponse](t, rec).Scene.IsFavorite)

	rec = do(t, h, http.MethodPost, "/api/v1/scenes/"+created.ID+"/apply", types.ApplySceneRequest{Trigger: "bogus"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, device.TriggerManual, decodeBody[types.ApplySceneResponse](t, rec).Trigger)

	got, _ := store.Device(fan.ID)
	assert.Equal(t, "on", got.Status["state"])

	rec = do(t, h, http.MethodDelete, "/api/v1/scenes/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/scenes/"+created.ID+"/apply", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApplyScene_Scheduled(t *testing.T) {
	h, store := newTestRouter(t, Dependencies{})
	movie := hometest.Scene(t, store, "Movie Night")

	rec := do(t, h, http.MethodPost, "/api/v1/scenes/"+movie.ID+"/apply", types.ApplySceneRequest{Trigger: device.TriggerScheduled})
	require.Equal(t, http.StatusOK, rec.Code)

	logs := store.ActivityLogs()
	var summary *device.ActivityLog
	for i := range logs {
		if logs[i].ActionType == device.ActionSceneApplied {
			summary = &logs[i]
			break
		}
	}
	require.NotNil(t, summary)
	assert.Equal(t, device.TriggerScheduled, summary.Trigger)
}

func TestApplyScene_SurvivesClientDisconnect(t *testing.T) {
	store, _ := hometest.NewStore(t, home.Options{SceneStepDelay: 10 * time.Millisecond})
	h, _ := newTestRouter(t, Dependencies{Store: store})
	movie := hometest.Scene(t, store, "Movie Night")
	require.Greater(t, len(movie.DeviceStates), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scenes/"+movie.ID+"/apply", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, step := range movie.DeviceStates {
		got, ok := store.Device(step.DeviceID)
		require.True(t, ok)
		for k, v := range step.Status {
			assert.EqualValues(t, v, got.Status[k], "device %s key %s", step.DeviceID, k)
		}
	}

	var applied bool
	for _, l := range store.ActivityLogs() {
		if l.ActionType == device.ActionSceneApplied {
			applied = true
		}
	}
	assert.True(t, applied)
}

func TestSnapshotScene(t *testing.T) {
	h, _ := newTestRouter(t, Dependencies{})

	rec := do(t, h, http.MethodPost, "/api/v1/scenes/snapshot", types.SnapshotSceneRequest{Name: "Right Now"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	sc := decodeBody[types.SceneResponse](t, rec).Scene
	assert.Equal(t, "Right Now", sc.Name)
	assert.NotEmpty(t, sc.DeviceStates)
}

func TestListActivity_Limit(t *testing.T) {
	h, store := newTestRouter(t, Dependencies{})
	fan := hometest.Device(t, store, "Fan")
	for i := 1; i <= 3; i++ {
		_, err := store.UpdateDevice(context.Background(), fan.ID, device.Status{"speed": i * 10}, device.TriggerManual)
		require.NoError(t, err)
	}

	out := decodeBody[types.ListActivityResponse](t, do(t, h, http.MethodGet, "/api/v1/activity?limit=2", nil))
	assert.Equal(t, 2, out.Count)

	rec := do(t, h, http.MethodGet, "/api/v1/activity?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettings_RedactsAndKeepsMaskedKeys(t *testing.T) {
	h, store := newTestRouter(t, Dependencies{})
	key := "/api/v1/settings/" + device.SettingAPIKeys

	rec := do(t, h, http.MethodPut, key, types.UpdateSettingRequest{Value: map[string]any{
		assistant.KeyGemini:             "secret-key",
		assistant.KeyCompressionEnabled: true,
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decodeBody[types.SettingResponse](t, rec)
	assert.Equal(t, "********", out.Setting.Value[assistant.KeyGemini])
	assert.NotContains(t, rec.Body.String(), "secret-key")

	// Round-trip the masked value with one field changed.
	value := out.Setting.Value
	value[assistant.KeyCompressionEnabled] = false
	rec = do(t, h, http.MethodPut, key, types.UpdateSettingRequest{Value: value})
	require.Equal(t, http.StatusOK, rec.Code)

	stored := store.Setting(device.SettingAPIKeys)
	require.NotNil(t, stored)
	assert.Equal(t, "secret-key", stored.Value[assistant.KeyGemini])
	assert.Equal(t, false, stored.Value[assistant.KeyCompressionEnabled])

	list := do(t, h, http.MethodGet, "/api/v1/settings", nil)
	assert.NotContains(t, list.Body.String(), "secret-key")

	rec = do(t, h, http.MethodGet, "/api/v1/settings/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSecurity(t *testing.T) {
	h, store := newTestRouter(t, Dependencies{})

	rec := do(t, h, http.MethodPut, "/api/v1/security", types.SecurityRequest{Mode: device.SecurityAway})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, device.SecurityAway, store.SecurityMode())

	rec = do(t, h, http.MethodPut, "/api/v1/security", types.SecurityRequest{Mode: "panic"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, device.SecurityAway, store.SecurityMode())

	out := decodeBody[types.SecurityResponse](t, do(t, h, http.MethodGet, "/api/v1/security", nil))
	assert.Equal(t, device.SecurityAway, out.Mode)
}

func TestRunCommand(t *testing.T) {
	runner := &stubRunner{result: &assistant.Result{Confirmation: "Fan is on"}}
	h, _ := newTestRouter(t, Dependencies{Commands: runner})

	rec := do(t, h, http.MethodPost, "/api/v1/commands", types.CommandRequest{Text: "fan on", Source: "voice"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decodeBody[types.CommandResponse](t, rec)
	assert.Equal(t, "Fan is on", out.Confirmation)
	assert.NotNil(t, out.Suggestions)
	assert.Equal(t, assistant.Command{Text: "fan on", Source: "voice"}, runner.got)
}

func TestRunCommand_DetachedFromRequestCancellation(t *testing.T) {
	runner := &stubRunner{result: &assistant.Result{Confirmation: "done"}}
	h, _ := newTestRouter(t, Dependencies{Commands: runner})

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(types.CommandRequest{Text: "lights on"}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/commands", &buf).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NoError(t, runner.ctxErr)
	assert.True(t, runner.hasDeadline)
}

func TestRunCommand_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not configured", &interpreter.Error{Kind: interpreter.KindConfig, Message: "no key"}, http.StatusBadRequest, "not_configured"},
		{"transport", &interpreter.Error{Kind: interpreter.KindTransport, Status: 503}, http.StatusBadGateway, "interpreter_transport"},
		{"parse", &interpreter.Error{Kind: interpreter.KindParse}, http.StatusBadGateway, "interpreter_parse"},
		{"empty", assistant.ErrEmptyCommand, http.StatusBadRequest, "validation_error"},
		{"read only", fmt.Errorf("executing action on x: %w", device.ErrReadOnly), http.StatusConflict, "read_only"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{"interpreter timeout", &interpreter.Error{Kind: interpreter.KindTransport, Err: context.DeadlineExceeded}, http.StatusGatewayTimeout, "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestRouter(t, Dependencies{Commands: &stubRunner{err: tt.err}})

			rec := do(t, h, http.MethodPost, "/api/v1/commands", types.CommandRequest{Text: "do it"})

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeBody[types.ErrorResponse](t, rec).Error)
		})
	}
}

func TestRunCommand_RejectsUnknownSource(t *testing.T) {
	runner := &stubRunner{}
	h, _ := newTestRouter(t, Dependencies{Commands: runner})

	rec := do(t, h, http.MethodPost, "/api/v1/commands", types.CommandRequest{Text: "fan on", Source: "telepathy"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, runner.got.Text)
}

func TestCommandsRoutesNeedRunner(t *testing.T) {
	h, _ := newTestRouter(t, Dependencies{})

	rec := do(t, h, http.MethodGet, "/api/v1/commands/suggestions", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSuggestions(t *testing.T) {
	h, _ := newTestRouter(t, Dependencies{Commands: &stubRunner{}})

	out := decodeBody[types.SuggestionsResponse](t, do(t, h, http.MethodGet, "/api/v1/commands/suggestions", nil))

	assert.Equal(t, assistant.QuickActions, out.Suggestions)
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	h, _ := newTestRouter(t, Dependencies{Metrics: metrics})

	rec := do(t, h, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRequestID(t *testing.T) {
	h, _ := newTestRouter(t, Dependencies{})

	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestEventStream(t *testing.T) {
	h, store := newTestRouter(t, Dependencies{})
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	next := func(prefix string) string {
		for lines.Scan() {
			if strings.HasPrefix(lines.Text(), prefix) {
				return lines.Text()
			}
		}
		require.FailNow(t, "stream ended", "waiting for %q", prefix)
		return ""
	}

	assert.Equal(t, "event: connected", next("event: "))

	fan := hometest.Device(t, store, "Fan")
	_, err = store.UpdateDevice(context.Background(), fan.ID, device.Status{"speed": 40}, device.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, "event: device_updated", next("event: "))
	assert.Contains(t, next("data: "), fan.ID)
}
