package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SlotRepository stores one named document per row of storage_slots.
// It satisfies history.Slot.
type SlotRepository struct {
	db   *Database
	name string
	now  func() time.Time
}

// NewSlotRepository returns the slot called name.
func NewSlotRepository(database *Database, name string) *SlotRepository {
	return &SlotRepository{db: database, name: name, now: time.Now}
}

// Name returns the slot name.
func (r *SlotRepository) Name() string {
	return r.name
}

// Read returns the stored document, or nil when the slot has never been written.
func (r *SlotRepository) Read(ctx context.Context) ([]byte, error) {
	conn, err := r.db.conn()
	if err != nil {
		return nil, err
	}

	var value []byte
	err = conn.QueryRowContext(ctx, `SELECT value FROM storage_slots WHERE name = ?`, r.name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db: read slot %s: %w", r.name, err)
	}
	return value, nil
}

// Write replaces the stored document.
func (r *SlotRepository) Write(ctx context.Context, data []byte) error {
	conn, err := r.db.conn()
	if err != nil {
		return err
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO storage_slots (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		r.name, data, r.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("db: write slot %s: %w", r.name, err)
	}
	return nil
}

// UpdatedAt returns when the slot was last written; zero if never.
func (r *SlotRepository) UpdatedAt(ctx context.Context) (time.Time, error) {
	conn, err := r.db.conn()
	if err != nil {
		return time.Time{}, err
	}

	var millis int64
	err = conn.QueryRowContext(ctx, `SELECT updated_at FROM storage_slots WHERE name = ?`, r.name).Scan(&millis)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("db: slot %s updated_at: %w", r.name, err)
	}
	return time.UnixMilli(millis), nil
}
