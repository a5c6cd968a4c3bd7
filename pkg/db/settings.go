package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/urmzd/homepanel/pkg/device"
)

var ErrSettingNotFound = errors.New("setting not found")

// SettingStore provides keyed settings. Upsert replaces the whole value.
type SettingStore interface {
	List(ctx context.Context) ([]device.Setting, error)
	Get(ctx context.Context, key string) (*device.Setting, error)
	Upsert(ctx context.Context, key string, value map[string]any) (*device.Setting, error)
}

// Settings returns a SettingStore for this database.
func (db *DB) Settings() SettingStore {
	return &settingStore{db: db}
}

type settingStore struct {
	db *DB
}

const settingColumns = `id, key, value, created_at, updated_at`

func scanSetting(row scanner) (device.Setting, error) {
	var st device.Setting
	var value sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&st.ID, &st.Key, &value, &createdAt, &updatedAt); err != nil {
		return st, err
	}
	if err := decodeJSON(value, &st.Value); err != nil {
		return st, fmt.Errorf("setting %s: invalid value: %w", st.Key, err)
	}
	if st.Value == nil {
		st.Value = map[string]any{}
	}
	st.CreatedAt = parseTime(createdAt)
	st.UpdatedAt = parseTime(updatedAt)
	return st, nil
}

func (s *settingStore) List(ctx context.Context) ([]device.Setting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+settingColumns+` FROM settings ORDER BY key
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	settings := []device.Setting{}
	for rows.Next() {
		st, err := scanSetting(rows)
		if err != nil {
			return nil, err
		}
		settings = append(settings, st)
	}
	return settings, rows.Err()
}

func (s *settingStore) Get(ctx context.Context, key string) (*device.Setting, error) {
	st, err := scanSetting(s.db.QueryRowContext(ctx, `
		SELECT `+settingColumns+` FROM settings WHERE key = ?
	`, key))
	if err == sql.ErrNoRows {
		return nil, ErrSettingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *settingStore) Upsert(ctx context.Context, key string, value map[string]any) (*device.Setting, error) {
	encoded, err := encodeJSON(value, "{}")
	if err != nil {
		return nil, fmt.Errorf("failed to encode setting: %w", err)
	}
	ts := formatTime(now())

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (id, key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, newID(), key, encoded, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert setting: %w", err)
	}
	return s.Get(ctx, key)
}
