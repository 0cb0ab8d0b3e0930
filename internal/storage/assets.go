package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rpm-monitor/backend/internal/models"
)

var (
	ErrAssetNotFound = errors.New("asset not found")
	ErrInvalidPath   = errors.New("invalid asset path")
)

// AssetStore keeps imported drawings and serves them back by URL.
type AssetStore interface {
	Save(ctx context.Context, userID, name string, r io.Reader) (*models.AssetInfo, error)
	Open(ctx context.Context, userID, file string) (io.ReadCloser, *models.AssetInfo, error)
}

// AssetURL returns the public URL of a stored file.
func AssetURL(userID, file string) string {
	return "/assets/" + userID + "/" + file
}

// ContentType guesses the media type of a drawing from its name.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func cleanSegment(s string) (string, error) {
	if s == "" || s == "." || s == ".." || s != filepath.Base(s) || strings.ContainsAny(s, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, s)
	}
	return s, nil
}

// FileAssetStore stores drawings on the local filesystem under <dir>/<user>/<uuid>.<ext>.
type FileAssetStore struct {
	mu     sync.RWMutex
	dir    string
	assets map[string]*models.AssetInfo
}

// NewFileAssetStore creates the asset directory if needed.
func NewFileAssetStore(dir string) (*FileAssetStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating asset directory: %w", err)
	}
	return &FileAssetStore{
		dir:    dir,
		assets: make(map[string]*models.AssetInfo),
	}, nil
}

// Save writes r under a fresh random name that keeps the extension of name.
func (s *FileAssetStore) Save(ctx context.Context, userID, name string, r io.Reader) (*models.AssetInfo, error) {
	user, err := cleanSegment(userID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	userDir := filepath.Join(s.dir, user)
	if err := os.MkdirAll(userDir, 0755); err != nil {
		return nil, fmt.Errorf("creating user directory: %w", err)
	}

	file := uuid.New().String() + strings.ToLower(filepath.Ext(name))
	path := filepath.Join(userDir, file)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.AssetInfo{
		ID:          file,
		UserID:      user,
		Name:        name,
		Size:        size,
		ContentType: ContentType(name),
		URL:         AssetURL(user, file),
		UploadedAt:  time.Now(),
	}

	s.mu.Lock()
	s.assets[user+"/"+file] = info
	s.mu.Unlock()

	return info, nil
}

// Open returns the content of a stored file.
func (s *FileAssetStore) Open(_ context.Context, userID, file string) (io.ReadCloser, *models.AssetInfo, error) {
	user, err := cleanSegment(userID)
	if err != nil {
		return nil, nil, err
	}
	if file, err = cleanSegment(file); err != nil {
		return nil, nil, err
	}

	path := filepath.Join(s.dir, user, file)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: %s/%s", ErrAssetNotFound, user, file)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("opening asset: %w", err)
	}

	s.mu.RLock()
	info, ok := s.assets[user+"/"+file]
	s.mu.RUnlock()
	if !ok {
		// stored by an earlier process
		st, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("stat asset: %w", err)
		}
		info = &models.AssetInfo{
			ID:          file,
			UserID:      user,
			Name:        file,
			Size:        st.Size(),
			ContentType: ContentType(file),
			URL:         AssetURL(user, file),
			UploadedAt:  st.ModTime(),
		}
	}
	return f, info, nil
}

// Staging holds chunked uploads until they are assembled into a single file.
type Staging struct {
	dir string
}

// NewStaging creates the staging directory if needed.
func NewStaging(dir string) (*Staging, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	return &Staging{dir: dir}, nil
}

// chunkDir returns the directory holding one user's chunks of an upload.
// Uploads are keyed by owner so a client cannot reach another user's chunks.
func (s *Staging) chunkDir(userID, uploadID string) (string, string, error) {
	user, err := cleanSegment(userID)
	if err != nil {
		return "", "", err
	}
	id, err := cleanSegment(uploadID)
	if err != nil {
		return "", "", err
	}
	return filepath.Join(s.dir, "chunks", user, id), user + "_" + id, nil
}

// SaveChunk saves a single chunk of a user's upload to a temporary location.
func (s *Staging) SaveChunk(userID, uploadID string, chunkIndex int, r io.Reader) error {
	chunkDir, _, err := s.chunkDir(userID, uploadID)
	if err != nil {
		return err
	}
	if chunkIndex < 0 {
		return fmt.Errorf("invalid chunk index %d", chunkIndex)
	}

	if err := os.MkdirAll(chunkDir, 0755); err != nil {
		return fmt.Errorf("creating chunk directory: %w", err)
	}

	f, err := os.Create(filepath.Join(chunkDir, fmt.Sprintf("chunk_%d", chunkIndex)))
	if err != nil {
		return fmt.Errorf("creating chunk file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("writing chunk: %w", err)
	}
	return nil
}

// Assemble concatenates the chunks of a user's upload into one staged file and
// returns its path. The chunks are removed afterwards.
func (s *Staging) Assemble(userID, uploadID string, totalChunks int) (string, int64, error) {
	chunkDir, stem, err := s.chunkDir(userID, uploadID)
	if err != nil {
		return "", 0, err
	}
	if totalChunks <= 0 {
		return "", 0, fmt.Errorf("invalid chunk count %d", totalChunks)
	}

	finalPath := filepath.Join(s.dir, stem+".part")

	out, err := os.Create(finalPath)
	if err != nil {
		return "", 0, fmt.Errorf("creating final file: %w", err)
	}
	defer out.Close()

	var totalSize int64
	for i := 0; i < totalChunks; i++ {
		in, err := os.Open(filepath.Join(chunkDir, fmt.Sprintf("chunk_%d", i)))
		if err != nil {
			os.Remove(finalPath)
			return "", 0, fmt.Errorf("opening chunk %d: %w", i, err)
		}
		n, err := io.Copy(out, in)
		in.Close()
		if err != nil {
			os.Remove(finalPath)
			return "", 0, fmt.Errorf("copying chunk %d: %w", i, err)
		}
		totalSize += n
	}

	os.RemoveAll(chunkDir)
	return finalPath, totalSize, nil
}

// Discard removes a staged file.
func (s *Staging) Discard(path string) {
	if filepath.Dir(path) == filepath.Clean(s.dir) {
		os.Remove(path)
	}
}
