// handlers_drawing.go - Technical drawing import and asset handlers
package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rpm-monitor/backend/internal/session"
	"github.com/rpm-monitor/backend/internal/storage"
	"github.com/rpm-monitor/backend/internal/upload"
	"github.com/rpm-monitor/backend/internal/vision"
)

// HandleImportDrawing accepts a drawing as multipart/form-data and starts an
// async import job.
func (h *Handler) HandleImportDrawing(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}
	if err := h.checkExtension(file.Filename); err != nil {
		return err
	}
	ctrl, err := h.writable(c)
	if err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	uploadID := uuid.New().String()
	if err := h.staging.SaveChunk(ctrl.UserID(), uploadID, 0, src); err != nil {
		return NewInternalError("failed to stage file", err)
	}

	job, err := h.startImport(ctrl, upload.Request{
		UploadID:     uploadID,
		FileName:     file.Filename,
		TotalChunks:  1,
		OriginalSize: file.Size,
		Encoding:     c.FormValue("encoding"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, job)
}

// HandleImportChunk stores one chunk of a chunked drawing upload.
func (h *Handler) HandleImportChunk(c echo.Context) error {
	uploadID := c.FormValue("uploadId")
	if uploadID == "" {
		return NewValidationError("uploadId")
	}
	chunkIndex := 0
	if err := echo.FormFieldBinder(c).MustInt("chunkIndex", &chunkIndex).BindError(); err != nil {
		return NewValidationError("chunkIndex")
	}
	if chunkIndex < 0 {
		return NewValidationError("chunkIndex")
	}
	ctrl, err := h.writable(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no chunk provided", err)
	}
	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open chunk", err)
	}
	defer src.Close()

	if err := h.staging.SaveChunk(ctrl.UserID(), uploadID, chunkIndex, src); err != nil {
		if errors.Is(err, storage.ErrInvalidPath) {
			return NewValidationError("uploadId")
		}
		return NewInternalError("failed to save chunk", err)
	}
	return c.NoContent(http.StatusAccepted)
}

// HandleCompleteImport finishes a chunked upload and starts the import job.
func (h *Handler) HandleCompleteImport(c echo.Context) error {
	var req completeImportRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}
	if err := h.checkExtension(req.FileName); err != nil {
		return err
	}
	ctrl, err := h.writable(c)
	if err != nil {
		return err
	}

	job, err := h.startImport(ctrl, upload.Request{
		UploadID:     req.UploadID,
		FileName:     req.FileName,
		TotalChunks:  req.TotalChunks,
		OriginalSize: req.OriginalSize,
		Encoding:     req.Encoding,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, job)
}

// startImport gates the surface and runs the import job. The job reports back
// into the session: success shows the new drawing, failure rolls back.
func (h *Handler) startImport(ctrl *session.Controller, req upload.Request) (upload.Job, error) {
	if err := ctrl.BeginImport(); err != nil {
		return upload.Job{}, FromDomainError(err)
	}
	req.UserID = ctrl.UserID()

	job := h.imports.StartJob(req, upload.Callbacks{
		OnComplete: func(job upload.Job) {
			var natural vision.Size
			if job.Page != nil {
				natural = vision.Size{Width: float64(job.Page.Width), Height: float64(job.Page.Height)}
			}
			if err := ctrl.CompleteImport(job.Asset.URL, natural); err != nil {
				h.log.Warn("failed to apply imported drawing", "user", ctrl.UserID(), "error", err)
			}
		},
		OnFail: func(job upload.Job, err error) {
			h.log.Warn("drawing import failed", "user", ctrl.UserID(), "job", job.ID, "error", err)
			if ferr := ctrl.FailImport(importMessage(err)); ferr != nil {
				h.log.Warn("failed to roll back drawing", "user", ctrl.UserID(), "error", ferr)
			}
		},
	})

	h.log.Info("drawing import started", "user", ctrl.UserID(), "job", job.ID, "file", req.FileName)
	return job, nil
}

// importMessage is the operator-facing text of an import failure.
func importMessage(err error) string {
	switch {
	case errors.Is(err, upload.ErrTooLarge):
		return "O arquivo excede o tamanho máximo permitido."
	default:
		return "Erro ao carregar o desenho técnico: " + err.Error()
	}
}

// HandleGetImportJob returns the status of an import job owned by the caller.
func (h *Handler) HandleGetImportJob(c echo.Context) error {
	id := c.Param("jobId")
	ctrl := h.controller(c)

	job, ok := h.imports.GetJob(id)
	if !ok || job.UserID != ctrl.UserID() {
		return NewNotFoundError("import job", id)
	}
	return c.JSON(http.StatusOK, job)
}

// HandleExampleDrawing switches to the bundled example drawing.
func (h *Handler) HandleExampleDrawing(c echo.Context) error {
	ctrl, err := h.writable(c)
	if err != nil {
		return err
	}
	if err := ctrl.UseExampleDrawing(); err != nil {
		return FromDomainError(err)
	}
	return snapshot(c, ctrl)
}

// HandleDrawingRendered receives the client's render outcome for the current
// drawing: the natural size on success, a message on failure.
func (h *Handler) HandleDrawingRendered(c echo.Context) error {
	var req renderedRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	ctrl, err := h.writable(c)
	if err != nil {
		return err
	}

	switch outcome := c.Param("outcome"); outcome {
	case "loaded":
		err = ctrl.DrawingLoaded(vision.Size{Width: req.Width, Height: req.Height})
	case "failed":
		msg := req.Message
		if msg == "" {
			msg = "Não foi possível exibir o desenho técnico."
		}
		err = ctrl.DrawingFailed(msg)
	default:
		return NewNotFoundError("render outcome", outcome)
	}
	if err != nil {
		return FromDomainError(err)
	}
	return snapshot(c, ctrl)
}

// HandleGetAsset serves a stored drawing.
func (h *Handler) HandleGetAsset(c echo.Context) error {
	rc, info, err := h.assets.Open(c.Request().Context(), c.Param("userId"), c.Param("file"))
	if err != nil {
		if errors.Is(err, storage.ErrAssetNotFound) || errors.Is(err, storage.ErrInvalidPath) {
			return NewNotFoundError("asset", c.Param("file"))
		}
		return NewInternalError("failed to open asset", err)
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=3600")
	return c.Stream(http.StatusOK, info.ContentType, rc)
}

// checkExtension rejects drawing types outside the configured list. A
// trailing .gz is ignored; compressed uploads are unpacked by the importer.
func (h *Handler) checkExtension(name string) error {
	if len(h.allowed) == 0 {
		return nil
	}
	lower := strings.TrimSuffix(strings.ToLower(name), ".gz")
	if !slices.Contains(h.allowed, filepath.Ext(lower)) {
		return NewBadRequestError("unsupported drawing type", errors.New(filepath.Ext(lower)))
	}
	return nil
}

// Request types

type completeImportRequest struct {
	UploadID     string `json:"uploadId"`
	FileName     string `json:"fileName"`
	TotalChunks  int    `json:"totalChunks"`
	OriginalSize int64  `json:"originalSize"`
	Encoding     string `json:"encoding"`
}

func (r *completeImportRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.FileName == "" {
		return NewValidationError("fileName")
	}
	if r.TotalChunks <= 0 {
		return NewBadRequestError("totalChunks must be positive", nil)
	}
	return nil
}

type renderedRequest struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Message string  `json:"message"`
}
