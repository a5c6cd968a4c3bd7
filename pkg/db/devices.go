package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/urmzd/homepanel/pkg/device"
)

// DeviceStore provides device operations. Missing devices are reported as
// device.ErrNotFound.
type DeviceStore interface {
	List(ctx context.Context) ([]device.Device, error)
	Get(ctx context.Context, id string) (*device.Device, error)
	Create(ctx context.Context, d *device.Device) error
	// UpdateStatus replaces the stored status and returns the persisted record.
	UpdateStatus(ctx context.Context, id string, status device.Status) (*device.Device, error)
}

// Devices returns a DeviceStore for this database.
func (db *DB) Devices() DeviceStore {
	return &deviceStore{db: db}
}

type deviceStore struct {
	db *DB
}

const deviceColumns = `id, room_id, name, type, status, metadata, created_at, updated_at`

func scanDevice(row scanner) (device.Device, error) {
	var d device.Device
	var status, metadata sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&d.ID, &d.RoomID, &d.Name, &d.Type, &status, &metadata, &createdAt, &updatedAt); err != nil {
		return d, err
	}
	if err := decodeJSON(status, &d.Status); err != nil {
		return d, fmt.Errorf("device %s: invalid status: %w", d.ID, err)
	}
	if err := decodeJSON(metadata, &d.Metadata); err != nil {
		return d, fmt.Errorf("device %s: invalid metadata: %w", d.ID, err)
	}
	if d.Status == nil {
		d.Status = device.Status{}
	}
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return d, nil
}

func (s *deviceStore) List(ctx context.Context) ([]device.Device, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+deviceColumns+`
		FROM devices ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	devices := []device.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (s *deviceStore) Get(ctx context.Context, id string) (*device.Device, error) {
	d, err := scanDevice(s.db.QueryRowContext(ctx, `
		SELECT `+deviceColumns+` FROM devices WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, device.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *deviceStore) Create(ctx context.Context, d *device.Device) error {
	return createDevice(ctx, s.db.DB, d)
}

func createDevice(ctx context.Context, ex execer, d *device.Device) error {
	if d.ID == "" {
		d.ID = newID()
	}
	if d.Status == nil {
		d.Status = device.Status{}
	}
	status, err := encodeJSON(d.Status, "{}")
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	metadata, err := encodeJSON(d.Metadata, "{}")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	ts := now()
	d.CreatedAt, d.UpdatedAt = ts, ts

	_, err = ex.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.RoomID, d.Name, d.Type, status, metadata, formatTime(ts), formatTime(ts))
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

func (s *deviceStore) UpdateStatus(ctx context.Context, id string, status device.Status) (*device.Device, error) {
	encoded, err := encodeJSON(status, "{}")
	if err != nil {
		return nil, fmt.Errorf("failed to encode status: %w", err)
	}

	var updated *device.Device
	err = s.db.Tx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE devices SET status = ?, updated_at = ? WHERE id = ?
		`, encoded, formatTime(now()), id)
		if err != nil {
			return fmt.Errorf("failed to update device: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return device.ErrNotFound
		}

		d, err := scanDevice(tx.QueryRowContext(ctx, `
			SELECT `+deviceColumns+` FROM devices WHERE id = ?
		`, id))
		if err != nil {
			return err
		}
		updated = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
