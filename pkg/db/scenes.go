package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/urmzd/homepanel/pkg/device"
)

// SceneStore provides scene operations. Missing scenes are reported as
// device.ErrSceneNotFound.
type SceneStore interface {
	List(ctx context.Context) ([]device.Scene, error)
	Get(ctx context.Context, id string) (*device.Scene, error)
	Create(ctx context.Context, sc *device.Scene) error
	SetFavorite(ctx context.Context, id string, favorite bool) (*device.Scene, error)
	Delete(ctx context.Context, id string) error
}

// Scenes returns a SceneStore for this database.
func (db *DB) Scenes() SceneStore {
	return &sceneStore{db: db}
}

type sceneStore struct {
	db *DB
}

const sceneColumns = `id, name, description, icon, device_states, is_favorite, created_at, updated_at`

func scanScene(row scanner) (device.Scene, error) {
	var sc device.Scene
	var states sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&sc.ID, &sc.Name, &sc.Description, &sc.Icon, &states, &sc.IsFavorite, &createdAt, &updatedAt); err != nil {
		return sc, err
	}
	if err := decodeJSON(states, &sc.DeviceStates); err != nil {
		return sc, fmt.Errorf("scene %s: invalid device_states: %w", sc.ID, err)
	}
	if sc.DeviceStates == nil {
		sc.DeviceStates = []device.SceneState{}
	}
	sc.CreatedAt = parseTime(createdAt)
	sc.UpdatedAt = parseTime(updatedAt)
	return sc, nil
}

func (s *sceneStore) List(ctx context.Context) ([]device.Scene, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sceneColumns+`
		FROM scenes ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	scenes := []device.Scene{}
	for rows.Next() {
		sc, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, sc)
	}
	return scenes, rows.Err()
}

func (s *sceneStore) Get(ctx context.Context, id string) (*device.Scene, error) {
	sc, err := scanScene(s.db.QueryRowContext(ctx, `
		SELECT `+sceneColumns+` FROM scenes WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, device.ErrSceneNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *sceneStore) Create(ctx context.Context, sc *device.Scene) error {
	return createScene(ctx, s.db.DB, sc)
}

func createScene(ctx context.Context, ex execer, sc *device.Scene) error {
	if sc.ID == "" {
		sc.ID = newID()
	}
	if sc.DeviceStates == nil {
		sc.DeviceStates = []device.SceneState{}
	}
	states, err := encodeJSON(sc.DeviceStates, "[]")
	if err != nil {
		return fmt.Errorf("failed to encode device_states: %w", err)
	}
	ts := now()
	sc.CreatedAt, sc.UpdatedAt = ts, ts

	_, err = ex.ExecContext(ctx, `
		INSERT INTO scenes (`+sceneColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sc.ID, sc.Name, sc.Description, sc.Icon, states, sc.IsFavorite, formatTime(ts), formatTime(ts))
	if err != nil {
		return fmt.Errorf("failed to create scene: %w", err)
	}
	return nil
}

func (s *sceneStore) SetFavorite(ctx context.Context, id string, favorite bool) (*device.Scene, error) {
	var updated *device.Scene
	err := s.db.Tx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE scenes SET is_favorite = ?, updated_at = ? WHERE id = ?
		`, favorite, formatTime(now()), id)
		if err != nil {
			return fmt.Errorf("failed to update scene: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return device.ErrSceneNotFound
		}

		sc, err := scanScene(tx.QueryRowContext(ctx, `
			SELECT `+sceneColumns+` FROM scenes WHERE id = ?
		`, id))
		if err != nil {
			return err
		}
		updated = &sc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *sceneStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM scenes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return device.ErrSceneNotFound
	}
	return nil
}
