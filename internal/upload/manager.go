// Package upload runs drawing imports in the background: chunk assembly,
// optional gzip decompression, page probing and storage.
package upload

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rpm-monitor/backend/internal/models"
	"github.com/rpm-monitor/backend/internal/render"
	"github.com/rpm-monitor/backend/internal/storage"
)

// Status represents the import processing status.
type Status string

const (
	StatusProcessing    Status = "processing"
	StatusAssembling    Status = "assembling"
	StatusDecompressing Status = "decompressing"
	StatusRendering     Status = "rendering"
	StatusStoring       Status = "storing"
	StatusComplete      Status = "complete"
	StatusError         Status = "error"
)

var (
	ErrJobNotFound = errors.New("import job not found")
	ErrTooLarge    = errors.New("drawing exceeds the size limit")
)

// Request describes a staged upload to import.
type Request struct {
	UserID       string `json:"userId"`
	UploadID     string `json:"uploadId"`
	FileName     string `json:"fileName"`
	TotalChunks  int    `json:"totalChunks"`
	OriginalSize int64  `json:"originalSize"`
	Encoding     string `json:"encoding"`
}

// Job represents an async drawing import.
type Job struct {
	ID           string            `json:"id"`
	UserID       string            `json:"userId"`
	UploadID     string            `json:"uploadId"`
	FileName     string            `json:"fileName"`
	TotalChunks  int               `json:"totalChunks"`
	OriginalSize int64             `json:"originalSize"`
	Encoding     string            `json:"encoding"`
	Status       Status            `json:"status"`
	Progress     float64           `json:"progress"`
	Stage        string            `json:"stage"`
	Asset        *models.AssetInfo `json:"asset,omitempty"`
	Page         *render.Page      `json:"page,omitempty"`
	Error        string            `json:"error,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`

	done chan struct{}
}

// Callbacks report the outcome of a job. Exactly one of them runs, once.
type Callbacks struct {
	OnComplete func(job Job)
	OnFail     func(job Job, err error)
}

// Manager handles async drawing imports.
type Manager struct {
	jobs     map[string]*Job
	mu       sync.RWMutex
	staging  *storage.Staging
	assets   storage.AssetStore
	renderer render.Renderer
	maxSize  int64
	log      *slog.Logger
}

// NewManager creates an import manager. maxSize <= 0 disables the size check.
func NewManager(staging *storage.Staging, assets storage.AssetStore, renderer render.Renderer, maxSize int64) *Manager {
	return &Manager{
		jobs:     make(map[string]*Job),
		staging:  staging,
		assets:   assets,
		renderer: renderer,
		maxSize:  maxSize,
		log:      slog.Default().With("component", "upload"),
	}
}

// StartJob begins async processing of a staged upload.
func (m *Manager) StartJob(req Request, cb Callbacks) Job {
	job := &Job{
		ID:           uuid.New().String(),
		UserID:       req.UserID,
		UploadID:     req.UploadID,
		FileName:     req.FileName,
		TotalChunks:  req.TotalChunks,
		OriginalSize: req.OriginalSize,
		Encoding:     req.Encoding,
		Status:       StatusProcessing,
		Stage:        "preparing",
		CreatedAt:    time.Now(),
		done:         make(chan struct{}),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	snapshot := *job
	m.mu.Unlock()

	go m.processJob(job, cb)

	return snapshot
}

// GetJob returns a copy of a job by ID.
func (m *Manager) GetJob(id string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Wait blocks until the job has finished or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (Job, error) {
	m.mu.RLock()
	job, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return Job{}, ErrJobNotFound
	}

	select {
	case <-job.done:
		j, _ := m.GetJob(id)
		return j, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

func (m *Manager) processJob(job *Job, cb Callbacks) {
	log := m.log.With("job", job.ID[:8], "user", job.UserID)
	log.Info("starting import", "file", job.FileName)

	asset, page, err := m.run(job, log)
	if err != nil {
		m.markJobError(job, err)
		log.Warn("import failed", "error", err)
		if cb.OnFail != nil {
			cb.OnFail(m.finish(job), err)
		}
		return
	}

	m.markJobComplete(job, asset, page)
	log.Info("import complete", "url", asset.URL, "width", page.Width, "height", page.Height)
	if cb.OnComplete != nil {
		cb.OnComplete(m.finish(job))
	}
}

func (m *Manager) finish(job *Job) Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	close(job.done)
	return *job
}

func (m *Manager) run(job *Job, log *slog.Logger) (asset *models.AssetInfo, page *render.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("import panicked", "panic", r)
			asset, page, err = nil, nil, fmt.Errorf("import panicked: %v", r)
		}
	}()

	m.updateJobStatus(job, StatusAssembling, "assembling chunks", 0)
	path, size, err := m.staging.Assemble(job.UserID, job.UploadID, job.TotalChunks)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to assemble chunks: %w", err)
	}
	defer m.staging.Discard(path)
	m.updateJobStatus(job, StatusAssembling, "assembling chunks", 100)
	log.Debug("chunks assembled", "bytes", size)

	if job.Encoding == "gzip" || job.Encoding == "binary-gzip" {
		m.updateJobStatus(job, StatusDecompressing, "decompressing file", 0)
		if n, err := m.decompressFile(job, path); err != nil {
			// the payload may not have been compressed after all
			log.Warn("decompression failed, using file as-is", "error", err)
		} else {
			size = n
		}
		m.updateJobStatus(job, StatusDecompressing, "decompressing file", 100)
	}

	if m.maxSize > 0 && size > m.maxSize {
		return nil, nil, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, size, m.maxSize)
	}

	m.updateJobStatus(job, StatusRendering, "reading page size", 0)
	probed, err := m.probe(path)
	if err != nil {
		return nil, nil, err
	}

	m.updateJobStatus(job, StatusStoring, "storing drawing", 0)
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening staged drawing: %w", err)
	}
	defer f.Close()

	stored, err := m.assets.Save(context.Background(), job.UserID, job.FileName, f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to store drawing: %w", err)
	}
	return stored, &probed, nil
}

func (m *Manager) probe(path string) (render.Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return render.Page{}, fmt.Errorf("opening staged drawing: %w", err)
	}
	defer f.Close()

	page, err := m.renderer.Render(context.Background(), f, 1)
	if err != nil {
		return render.Page{}, fmt.Errorf("failed to read drawing: %w", err)
	}
	return page, nil
}

// decompressFile replaces a gzip file in place with its content.
func (m *Manager) decompressFile(job *Job, path string) (int64, error) {
	compressed, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer compressed.Close()

	magic := make([]byte, 2)
	if _, err := io.ReadFull(compressed, magic); err != nil {
		return 0, err
	}
	if magic[0] != 0x1f || magic[1] != 0x8b {
		return 0, fmt.Errorf("not a gzip file")
	}
	if _, err := compressed.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}

	reader, err := gzip.NewReader(compressed)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	tempPath := path + ".decompressing"
	out, err := os.Create(tempPath)
	if err != nil {
		return 0, err
	}

	var src io.Reader = reader
	if m.maxSize > 0 {
		// one extra byte lets the size check fire
		src = io.LimitReader(reader, m.maxSize+1)
	}
	written, err := io.Copy(out, src)
	out.Close()
	if err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("decompress: %w", err)
	}

	if job.OriginalSize > 0 && written != job.OriginalSize {
		os.Remove(tempPath)
		return 0, fmt.Errorf("decompressed size mismatch: got %d bytes, expected %d bytes", written, job.OriginalSize)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return 0, err
	}
	return written, nil
}

// updateJobStatus updates job progress (thread-safe).
func (m *Manager) updateJobStatus(job *Job, status Status, stage string, stageProgress float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = status
	job.Stage = stage

	// Assembling: 0-30%, Decompressing: 30-60%, Rendering: 60-80%, Storing: 80-100%
	switch status {
	case StatusAssembling:
		job.Progress = stageProgress * 0.3
	case StatusDecompressing:
		job.Progress = 30 + stageProgress*0.3
	case StatusRendering:
		job.Progress = 60 + stageProgress*0.2
	case StatusStoring:
		job.Progress = 80 + stageProgress*0.2
	}
}

func (m *Manager) markJobComplete(job *Job, asset *models.AssetInfo, page *render.Page) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusComplete
	job.Stage = "done"
	job.Progress = 100
	job.Asset = asset
	job.Page = page
	now := time.Now()
	job.CompletedAt = &now
}

func (m *Manager) markJobError(job *Job, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusError
	job.Error = err.Error()
	now := time.Now()
	job.CompletedAt = &now
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for id, job := range m.jobs {
		if job.Status == StatusComplete || job.Status == StatusError {
			if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
				delete(m.jobs, id)
			}
		}
	}
}
