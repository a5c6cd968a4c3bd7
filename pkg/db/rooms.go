package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/urmzd/homepanel/pkg/device"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomStore provides room operations.
type RoomStore interface {
	List(ctx context.Context) ([]device.Room, error)
	Get(ctx context.Context, id string) (*device.Room, error)
	Create(ctx context.Context, r *device.Room) error
}

// Rooms returns a RoomStore for this database.
func (db *DB) Rooms() RoomStore {
	return &roomStore{db: db}
}

type roomStore struct {
	db *DB
}

const roomColumns = `id, name, slug, accent_color, icon, display_order, created_at, updated_at`

func scanRoom(row scanner) (device.Room, error) {
	var r device.Room
	var createdAt, updatedAt string
	if err := row.Scan(&r.ID, &r.Name, &r.Slug, &r.AccentColor, &r.Icon, &r.DisplayOrder, &createdAt, &updatedAt); err != nil {
		return r, err
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}

func (s *roomStore) List(ctx context.Context) ([]device.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+roomColumns+`
		FROM rooms ORDER BY display_order, name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	rooms := []device.Room{}
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

func (s *roomStore) Get(ctx context.Context, id string) (*device.Room, error) {
	r, err := scanRoom(s.db.QueryRowContext(ctx, `
		SELECT `+roomColumns+` FROM rooms WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *roomStore) Create(ctx context.Context, r *device.Room) error {
	return createRoom(ctx, s.db.DB, r)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func createRoom(ctx context.Context, ex execer, r *device.Room) error {
	if r.ID == "" {
		r.ID = newID()
	}
	ts := now()
	r.CreatedAt, r.UpdatedAt = ts, ts

	_, err := ex.ExecContext(ctx, `
		INSERT INTO rooms (`+roomColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Name, r.Slug, r.AccentColor, r.Icon, r.DisplayOrder, formatTime(ts), formatTime(ts))
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}
