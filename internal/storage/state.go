// Package storage persists per-user dashboard state and drawing assets.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rpm-monitor/backend/internal/models"
)

// ErrNotFound is returned by StateStore.Read when the user has no saved document.
var ErrNotFound = errors.New("state not found")

// StateStore is the per-user document store.
type StateStore interface {
	Read(ctx context.Context, userID string) (*models.UserState, error)
	Upsert(ctx context.Context, userID string, doc *models.UserState) error
	Close() error
}

const stateColumns = `user_id, active_tab, calc_params, group_inputs, custom_markers, view_state, drawing_url, updated_at`

// sqlStateStore holds the queries shared by the SQL-backed state stores.
// Structured fields are stored as JSON text; updated_at as unix milliseconds.
type sqlStateStore struct {
	db *sql.DB
}

func (s *sqlStateStore) createTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS user_states (
			user_id        VARCHAR PRIMARY KEY,
			active_tab     VARCHAR NOT NULL,
			calc_params    VARCHAR NOT NULL,
			group_inputs   VARCHAR NOT NULL,
			custom_markers VARCHAR NOT NULL,
			view_state     VARCHAR NOT NULL,
			drawing_url    VARCHAR,
			updated_at     BIGINT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create user_states: %w", err)
	}
	return nil
}

func (s *sqlStateStore) Read(ctx context.Context, userID string) (*models.UserState, error) {
	var (
		doc                                     models.UserState
		tab, params, inputs, markers, viewState string
		drawing                                 sql.NullString
		updatedAt                               int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT `+stateColumns+` FROM user_states WHERE user_id = ?`, userID,
	).Scan(&doc.UserID, &tab, &params, &inputs, &markers, &viewState, &drawing, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", userID, err)
	}

	doc.ActiveTab = models.Tab(tab)
	doc.DrawingURL = drawing.String
	doc.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	fields := []struct {
		name string
		raw  string
		dst  any
	}{
		{"calc_params", params, &doc.CalcParams},
		{"group_inputs", inputs, &doc.GroupInputs},
		{"custom_markers", markers, &doc.CustomMarkers},
		{"view_state", viewState, &doc.ViewState},
	}
	for _, f := range fields {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("decode %s for %s: %w", f.name, userID, err)
		}
	}
	if doc.CustomMarkers == nil {
		doc.CustomMarkers = make(map[string]models.Marker)
	}
	return &doc, nil
}

func (s *sqlStateStore) Upsert(ctx context.Context, userID string, doc *models.UserState) error {
	encoded := make([]string, 0, 4)
	for _, v := range []any{doc.CalcParams, doc.GroupInputs, doc.CustomMarkers, doc.ViewState} {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode state for %s: %w", userID, err)
		}
		encoded = append(encoded, string(b))
	}

	updatedAt := doc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	var drawing sql.NullString
	if doc.DrawingURL != "" {
		drawing = sql.NullString{String: doc.DrawingURL, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_states (`+stateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			active_tab     = excluded.active_tab,
			calc_params    = excluded.calc_params,
			group_inputs   = excluded.group_inputs,
			custom_markers = excluded.custom_markers,
			view_state     = excluded.view_state,
			drawing_url    = excluded.drawing_url,
			updated_at     = excluded.updated_at
	`, userID, string(doc.ActiveTab), encoded[0], encoded[1], encoded[2], encoded[3], drawing, updatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert state %s: %w", userID, err)
	}
	return nil
}

func (s *sqlStateStore) Close() error {
	return s.db.Close()
}
