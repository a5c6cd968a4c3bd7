package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/homepanel/pkg/device"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type applyCall struct {
	id      string
	trigger device.Trigger
}

type fakeApplier struct {
	mu     sync.Mutex
	scenes []device.Scene
	calls  []applyCall
}

func (f *fakeApplier) Scenes() []device.Scene { return f.scenes }

func (f *fakeApplier) ApplyScene(_ context.Context, id string, trigger device.Trigger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, applyCall{id, trigger})
	return nil
}

func (f *fakeApplier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newApplier() *fakeApplier {
	return &fakeApplier{scenes: []device.Scene{
		{ID: "s1", Name: "Good Morning"},
		{ID: "s2", Name: "Goodnight"},
	}}
}

func TestResolve(t *testing.T) {
	scenes := newApplier().scenes

	sc, ok := Resolve(scenes, "s2")
	require.True(t, ok)
	assert.Equal(t, "Goodnight", sc.Name)

	sc, ok = Resolve(scenes, "good morning")
	require.True(t, ok)
	assert.Equal(t, "s1", sc.ID)

	_, ok = Resolve(scenes, "Party")
	assert.False(t, ok)
}

func TestRun_AppliesWithScheduledTrigger(t *testing.T) {
	a := newApplier()
	s := New(a, 0)

	require.NoError(t, s.Run(context.Background(), "Goodnight"))

	assert.Equal(t, []applyCall{{"s2", device.TriggerScheduled}}, a.calls)
}

func TestRun_UnknownScene(t *testing.T) {
	s := New(newApplier(), 0)

	err := s.Run(context.Background(), "Party")

	assert.ErrorIs(t, err, device.ErrSceneNotFound)
}

func TestAdd_RejectsBadExpression(t *testing.T) {
	s := New(newApplier(), 0)

	assert.Error(t, s.Add(Job{Scene: "Goodnight", Cron: "every night"}))
	assert.Empty(t, s.Entries())
}

func TestEntries(t *testing.T) {
	s := New(newApplier(), 0)
	require.NoError(t, s.Add(Job{Scene: "Good Morning", Cron: "0 7 * * *"}))
	require.NoError(t, s.Add(Job{Scene: "Goodnight", Cron: "@daily"}))

	entries := s.Entries()
	require.Len(t, entries, 2)
	scenes := []string{entries[0].Scene, entries[1].Scene}
	assert.ElementsMatch(t, []string{"Good Morning", "Goodnight"}, scenes)
}

func TestStart_FiresJobsUntilStopped(t *testing.T) {
	a := newApplier()
	s := New(a, time.Second)
	require.NoError(t, s.Add(Job{Scene: "s1", Cron: "@every 1s"}))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	require.Eventually(t, func() bool { return a.callCount() >= 1 }, 3*time.Second, 20*time.Millisecond)
	cancel()
	s.Stop()

	a.mu.Lock()
	defer a.mu.Unlock()
	assert.Equal(t, applyCall{"s1", device.TriggerScheduled}, a.calls[0])
}
