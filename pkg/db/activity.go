package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/urmzd/homepanel/pkg/device"
)

// DefaultActivityLimit is the number of entries List returns when limit <= 0.
const DefaultActivityLimit = 50

// ActivityStore records and lists activity log entries. Entries are never
// updated or deleted.
type ActivityStore interface {
	// List returns the newest entries first.
	List(ctx context.Context, limit int) ([]device.ActivityLog, error)
	Create(ctx context.Context, l *device.ActivityLog) error
}

// Activity returns an ActivityStore for this database.
func (db *DB) Activity() ActivityStore {
	return &activityStore{db: db}
}

type activityStore struct {
	db *DB
}

const activityColumns = `id, device_id, room_id, action_type, previous_state, new_state, trigger_type, command, created_at`

func (s *activityStore) List(ctx context.Context, limit int) ([]device.ActivityLog, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+activityColumns+`
		FROM activity_logs ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	logs := []device.ActivityLog{}
	for rows.Next() {
		var l device.ActivityLog
		var prev, next sql.NullString
		var trigger, createdAt string
		if err := rows.Scan(&l.ID, &l.DeviceID, &l.RoomID, &l.ActionType, &prev, &next, &trigger, &l.Command, &createdAt); err != nil {
			return nil, err
		}
		if err := decodeJSON(prev, &l.PreviousState); err != nil {
			return nil, fmt.Errorf("activity %s: invalid previous_state: %w", l.ID, err)
		}
		if err := decodeJSON(next, &l.NewState); err != nil {
			return nil, fmt.Errorf("activity %s: invalid new_state: %w", l.ID, err)
		}
		l.Trigger = device.Trigger(trigger)
		l.CreatedAt = parseTime(createdAt)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *activityStore) Create(ctx context.Context, l *device.ActivityLog) error {
	if l.ID == "" {
		l.ID = newID()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now()
	}

	prev, err := nullableJSON(l.PreviousState)
	if err != nil {
		return fmt.Errorf("failed to encode previous_state: %w", err)
	}
	next, err := nullableJSON(l.NewState)
	if err != nil {
		return fmt.Errorf("failed to encode new_state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (`+activityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.DeviceID, l.RoomID, l.ActionType, prev, next, string(l.Trigger), l.Command, formatTime(l.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create activity log: %w", err)
	}
	return nil
}

func nullableJSON(status device.Status) (sql.NullString, error) {
	if status == nil {
		return sql.NullString{}, nil
	}
	s, err := encodeJSON(status, "{}")
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: s, Valid: true}, nil
}
