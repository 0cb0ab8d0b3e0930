package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpm-monitor/backend/internal/models"
)

// DrawingKey is the fixed key under which the local store keeps a user's drawing.
const DrawingKey = "technical_drawing"

var ErrBadDataURI = errors.New("malformed data URI")

// LocalKV is the local-only key-value store. It doubles as an AssetStore that
// embeds the drawing as a data URI under DrawingKey.
type LocalKV struct {
	db *sql.DB
}

// NewLocalKV creates the kv table on db if needed.
func NewLocalKV(ctx context.Context, db *sql.DB) (*LocalKV, error) {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("create kv: %w", err)
	}
	return &LocalKV{db: db}, nil
}

// Put stores value under key, replacing any previous value.
func (kv *LocalKV) Put(ctx context.Context, key, value string) error {
	_, err := kv.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Get returns the value stored under key, or ErrNotFound.
func (kv *LocalKV) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := kv.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Delete removes key.
func (kv *LocalKV) Delete(ctx context.Context, key string) error {
	if _, err := kv.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func drawingKey(userID string) string {
	return userID + "/" + DrawingKey
}

// drawingNameKey holds the versioned file name of the drawing in the slot.
func drawingNameKey(userID string) string {
	return drawingKey(userID) + "_name"
}

// Save stores the drawing as a data URI. Each user has a single drawing slot;
// every save gets a fresh file name so clients never reuse a cached drawing.
func (kv *LocalKV) Save(ctx context.Context, userID, name string, r io.Reader) (*models.AssetInfo, error) {
	user, err := cleanSegment(userID)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading drawing: %w", err)
	}

	ct := ContentType(name)
	file := DrawingKey + "-" + uuid.New().String() + strings.ToLower(filepath.Ext(name))
	if err := kv.Put(ctx, drawingKey(user), EncodeDataURI(ct, data)); err != nil {
		return nil, err
	}
	if err := kv.Put(ctx, drawingNameKey(user), file); err != nil {
		return nil, err
	}

	return &models.AssetInfo{
		ID:          file,
		UserID:      user,
		Name:        name,
		Size:        int64(len(data)),
		ContentType: ct,
		URL:         AssetURL(user, file),
		UploadedAt:  time.Now(),
	}, nil
}

// Open decodes the stored drawing of userID. Only the file name of the latest
// save resolves; earlier names are not found.
func (kv *LocalKV) Open(ctx context.Context, userID, file string) (io.ReadCloser, *models.AssetInfo, error) {
	user, err := cleanSegment(userID)
	if err != nil {
		return nil, nil, err
	}
	current, err := kv.Get(ctx, drawingNameKey(user))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, nil, err
	}
	if file != current {
		return nil, nil, fmt.Errorf("%w: %s/%s", ErrAssetNotFound, user, file)
	}

	uri, err := kv.Get(ctx, drawingKey(user))
	if errors.Is(err, ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %s/%s", ErrAssetNotFound, user, file)
	}
	if err != nil {
		return nil, nil, err
	}
	ct, data, err := DecodeDataURI(uri)
	if err != nil {
		return nil, nil, err
	}

	info := &models.AssetInfo{
		ID:          file,
		UserID:      user,
		Name:        file,
		Size:        int64(len(data)),
		ContentType: ct,
		URL:         AssetURL(user, file),
	}
	return io.NopCloser(bytes.NewReader(data)), info, nil
}

// EncodeDataURI returns a base64 data URI for data.
func EncodeDataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI parses a base64 data URI.
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrBadDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrBadDataURI
	}
	ct, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("%w: not base64", ErrBadDataURI)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadDataURI, err)
	}
	if ct == "" {
		ct = "text/plain"
	}
	return ct, data, nil
}
