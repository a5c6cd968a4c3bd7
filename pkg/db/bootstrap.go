package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/homepanel/pkg/device"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

type seedFile struct {
	Rooms  []seedRoom  `yaml:"rooms"`
	Scenes []seedScene `yaml:"scenes"`
}

type seedRoom struct {
	Name         string       `yaml:"name"`
	Slug         string       `yaml:"slug"`
	AccentColor  string       `yaml:"accent_color"`
	Icon         string       `yaml:"icon"`
	DisplayOrder int          `yaml:"display_order"`
	Devices      []seedDevice `yaml:"devices"`
}

type seedDevice struct {
	Name     string         `yaml:"name"`
	Type     string         `yaml:"type"`
	Status   map[string]any `yaml:"status"`
	Metadata map[string]any `yaml:"metadata"`
}

type seedScene struct {
	Name         string          `yaml:"name"`
	Description  string          `yaml:"description"`
	Icon         string          `yaml:"icon"`
	IsFavorite   bool            `yaml:"is_favorite"`
	DeviceStates []seedSceneStep `yaml:"device_states"`
}

// seedSceneStep refers to a device by room slug and name since ids are
// generated at insert time.
type seedSceneStep struct {
	Room   string         `yaml:"room"`
	Device string         `yaml:"device"`
	Status map[string]any `yaml:"status"`
}

// Bootstrap loads the demo home if the database has no rooms.
// This is called after migrations and handles first-run setup.
func (db *DB) Bootstrap(ctx context.Context) error {
	needs, err := db.NeedsBootstrap(ctx)
	if err != nil {
		return fmt.Errorf("failed to check rooms: %w", err)
	}
	if !needs {
		return nil // Already bootstrapped
	}

	var seed seedFile
	if err := yaml.Unmarshal(seedYAML, &seed); err != nil {
		return fmt.Errorf("failed to parse seed data: %w", err)
	}

	var deviceCount int
	err = db.Tx(ctx, func(tx *sql.Tx) error {
		ids := make(map[string]string) // "room/device name" -> device id

		for _, sr := range seed.Rooms {
			room := &device.Room{
				Name:         sr.Name,
				Slug:         sr.Slug,
				AccentColor:  sr.AccentColor,
				Icon:         sr.Icon,
				DisplayOrder: sr.DisplayOrder,
			}
			if err := createRoom(ctx, tx, room); err != nil {
				return err
			}

			for _, sd := range sr.Devices {
				d := &device.Device{
					RoomID:   room.ID,
					Name:     sd.Name,
					Type:     sd.Type,
					Status:   device.Status(sd.Status),
					Metadata: device.Metadata(sd.Metadata),
				}
				if err := createDevice(ctx, tx, d); err != nil {
					return err
				}
				ids[sr.Slug+"/"+sd.Name] = d.ID
				deviceCount++
			}
		}

		for _, ss := range seed.Scenes {
			sc := &device.Scene{
				Name:         ss.Name,
				Description:  ss.Description,
				Icon:         ss.Icon,
				IsFavorite:   ss.IsFavorite,
				DeviceStates: make([]device.SceneState, 0, len(ss.DeviceStates)),
			}
			for _, step := range ss.DeviceStates {
				id, ok := ids[step.Room+"/"+step.Device]
				if !ok {
					return fmt.Errorf("scene %q refers to unknown device %s/%s", ss.Name, step.Room, step.Device)
				}
				sc.DeviceStates = append(sc.DeviceStates, device.SceneState{
					DeviceID: id,
					Status:   device.Status(step.Status),
				})
			}
			if err := createScene(ctx, tx, sc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to seed demo home: %w", err)
	}

	log.Info().
		Int("rooms", len(seed.Rooms)).
		Int("devices", deviceCount).
		Int("scenes", len(seed.Scenes)).
		Msg("Seeded demo home")
	return nil
}

// NeedsBootstrap returns true if the database needs initial setup.
func (db *DB) NeedsBootstrap(ctx context.Context) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&count)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}
