// Package hometest builds seeded stores backed by a temporary SQLite file.
package hometest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urmzd/homepanel/pkg/db"
	"github.com/urmzd/homepanel/pkg/device"
	"github.com/urmzd/homepanel/pkg/device/schema"
	"github.com/urmzd/homepanel/pkg/home"
)

// NewDB opens, migrates and seeds a database in t.TempDir().
func NewDB(t testing.TB) *db.DB {
	t.Helper()
	ctx := context.Background()

	database, err := db.Open(filepath.Join(t.TempDir(), "homepanel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, database.Migrate(ctx))
	require.NoError(t, database.Bootstrap(ctx))
	return database
}

// NewStore returns an initialized store over a seeded database. Scene pacing
// is disabled unless opts sets it.
func NewStore(t testing.TB, opts home.Options) (*home.Store, *db.DB) {
	t.Helper()
	database := NewDB(t)
	if opts.Validator == nil {
		opts.Validator = schema.NewValidator()
	}
	if opts.SceneStepDelay == 0 {
		opts.SceneStepDelay = -1
	}
	store := home.New(database, opts)
	require.NoError(t, store.Initialize(context.Background()))
	return store, database
}

// Device returns the seeded device with the given name.
func Device(t testing.TB, store *home.Store, name string) device.Device {
	t.Helper()
	for _, d := range store.Devices() {
		if d.Name == name {
			return d
		}
	}
	require.FailNowf(t, "device not found", "no device named %q", name)
	return device.Device{}
}

// Scene returns the seeded scene with the given name.
func Scene(t testing.TB, store *home.Store, name string) device.Scene {
	t.Helper()
	for _, sc := range store.Scenes() {
		if sc.Name == name {
			return sc
		}
	}
	require.FailNowf(t, "scene not found", "no scene named %q", name)
	return device.Scene{}
}
