// mock_storage.go - In-memory stores for testing
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rpm-monitor/backend/internal/models"
	"github.com/rpm-monitor/backend/internal/storage"
)

// MockStateStore implements storage.StateStore in memory. Documents are stored
// as JSON so that callers never share memory with the store.
type MockStateStore struct {
	mu       sync.Mutex
	docs     map[string][]byte
	reads    int
	writes   int
	ReadErr  error
	WriteErr error
}

// NewMockStateStore creates an empty store.
func NewMockStateStore() *MockStateStore {
	return &MockStateStore{docs: make(map[string][]byte)}
}

func (m *MockStateStore) Read(_ context.Context, userID string) (*models.UserState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reads++
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	raw, ok := m.docs[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	var doc models.UserState
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (m *MockStateStore) Upsert(_ context.Context, userID string, doc *models.UserState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writes++
	if m.WriteErr != nil {
		return m.WriteErr
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.docs[userID] = raw
	return nil
}

func (m *MockStateStore) Close() error { return nil }

// Ensure MockStateStore implements storage.StateStore
var _ storage.StateStore = (*MockStateStore)(nil)

// Test Helper Methods

// Put stores a document directly.
func (m *MockStateStore) Put(doc *models.UserState) {
	raw, err := json.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("failed to encode test document: %v", err))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.UserID] = raw
}

// Doc returns the stored document of userID, or nil.
func (m *MockStateStore) Doc(userID string) *models.UserState {
	m.mu.Lock()
	raw, ok := m.docs[userID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	var doc models.UserState
	if err := json.Unmarshal(raw, &doc); err != nil {
		panic(fmt.Sprintf("failed to decode test document: %v", err))
	}
	return &doc
}

// Reads returns the number of Read calls.
func (m *MockStateStore) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Writes returns the number of Upsert calls.
func (m *MockStateStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// SetReadErr makes subsequent reads fail with err.
func (m *MockStateStore) SetReadErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadErr = err
}

// SetWriteErr makes subsequent writes fail with err.
func (m *MockStateStore) SetWriteErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteErr = err
}

// MockAssetStore implements storage.AssetStore in memory.
type MockAssetStore struct {
	mu      sync.RWMutex
	assets  map[string]*models.AssetInfo
	data    map[string][]byte
	SaveErr error
}

// NewMockAssetStore creates an empty asset store.
func NewMockAssetStore() *MockAssetStore {
	return &MockAssetStore{
		assets: make(map[string]*models.AssetInfo),
		data:   make(map[string][]byte),
	}
}

func (m *MockAssetStore) Save(_ context.Context, userID, name string, r io.Reader) (*models.AssetInfo, error) {
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return m.AddAsset(userID, generateTestID()+strings.ToLower(filepath.Ext(name)), data), nil
}

func (m *MockAssetStore) Open(_ context.Context, userID, file string) (io.ReadCloser, *models.AssetInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := userID + "/" + file
	info, ok := m.assets[key]
	if !ok {
		return nil, nil, storage.ErrAssetNotFound
	}
	return io.NopCloser(bytes.NewReader(m.data[key])), info, nil
}

// Ensure MockAssetStore implements storage.AssetStore
var _ storage.AssetStore = (*MockAssetStore)(nil)

// AddAsset stores data directly under userID/file.
func (m *MockAssetStore) AddAsset(userID, file string, data []byte) *models.AssetInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := &models.AssetInfo{
		ID:          file,
		UserID:      userID,
		Name:        file,
		Size:        int64(len(data)),
		ContentType: storage.ContentType(file),
		URL:         storage.AssetURL(userID, file),
		UploadedAt:  time.Now(),
	}
	m.assets[userID+"/"+file] = info
	m.data[userID+"/"+file] = data
	return info
}

// AssetCount returns the number of stored assets.
func (m *MockAssetStore) AssetCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.assets)
}

// ErrInjected is a generic failure for fault injection.
var ErrInjected = errors.New("injected failure")

// generateTestID generates a simple test ID
var testIDCounter int
var testIDMutex sync.Mutex

func generateTestID() string {
	testIDMutex.Lock()
	defer testIDMutex.Unlock()
	testIDCounter++
	return fmt.Sprintf("test-id-%d", testIDCounter)
}
