package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/timesheet-prove/internal/application/port"
	"github.com/garyjia/timesheet-prove/internal/application/service"
	"github.com/garyjia/timesheet-prove/internal/domain/entity"
	"github.com/garyjia/timesheet-prove/internal/ocr"
	"github.com/garyjia/timesheet-prove/internal/verification"
	"github.com/garyjia/timesheet-prove/pkg/utils"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	verificationService service.VerificationService
	uploads             port.FileStorage
	enqueuer            port.TaskEnqueuer
	maxUploadBytes      int64
	imageRoots          []string
	logger              Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	verificationService service.VerificationService,
	uploads port.FileStorage,
	enqueuer port.TaskEnqueuer,
	maxUploadMB int64,
	imageRoots []string,
	logger Logger,
) *Handlers {
	return &Handlers{
		verificationService: verificationService,
		uploads:             uploads,
		enqueuer:            enqueuer,
		maxUploadBytes:      maxUploadMB << 20,
		imageRoots:          imageRoots,
		logger:              logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// VerifyResponse is returned by POST /api/verify
type VerifyResponse struct {
	Run    *entity.VerificationRun `json:"run"`
	Result *verification.Result    `json:"result"`
	Report string                  `json:"report"`
}

// EnqueueRequest lists server-side image paths to verify through the queue
type EnqueueRequest struct {
	Paths []string `json:"paths" binding:"required,min=1"`
}

// EnqueueResponse is returned by POST /api/runs
type EnqueueResponse struct {
	RunID    string `json:"run_id"`
	Enqueued int    `json:"enqueued"`
}

// ListRunsRequest represents query parameters for listing runs
type ListRunsRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// VerifyUpload handles POST /api/verify with a multipart "image" field.
// The image is verified synchronously in a run of its own.
func (h *Handlers) VerifyUpload(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		fail(c, http.StatusBadRequest, "missing image file")
		return
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		fail(c, http.StatusRequestEntityTooLarge, "image too large")
		return
	}
	if !ocr.IsSupported(file.Filename) {
		fail(c, http.StatusBadRequest, "unsupported image type")
		return
	}

	src, err := file.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, "unreadable upload")
		return
	}
	content, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		fail(c, http.StatusBadRequest, "unreadable upload")
		return
	}

	ctx := c.Request.Context()
	name := fmt.Sprintf("%s__%s", uuid.New().String(), utils.SanitizeFilename(file.Filename))
	if err := h.uploads.Save(ctx, name, content); err != nil {
		h.logger.Error("Failed to store upload", "file", file.Filename, "error", err)
		fail(c, http.StatusInternalServerError, "failed to store upload")
		return
	}

	run, err := h.verificationService.StartRun(ctx, entity.RunSourceHTTP)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to start run")
		return
	}
	result, err := h.verificationService.VerifyInto(ctx, run.ID, h.uploads.GetFullPath(name))
	if err != nil {
		h.logger.Error("Verification failed", "run_id", run.ID, "error", err)
		fail(c, http.StatusInternalServerError, "verification failed")
		return
	}
	run, err = h.verificationService.CompleteRun(ctx, run.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to complete run")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    VerifyResponse{Run: run, Result: result, Report: result.String()},
	})
}

// EnqueueRun handles POST /api/runs. It opens a queue run and pushes one
// task per path; the run is closed with POST /api/runs/:id/complete.
func (h *Handlers) EnqueueRun(c *gin.Context) {
	if h.enqueuer == nil {
		fail(c, http.StatusServiceUnavailable, "queue not configured")
		return
	}
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "paths required")
		return
	}
	paths := make([]string, 0, len(req.Paths))
	for _, p := range req.Paths {
		resolved, err := h.resolveImagePath(p)
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		paths = append(paths, resolved)
	}

	ctx := c.Request.Context()
	run, err := h.verificationService.StartRun(ctx, entity.RunSourceQueue)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to start run")
		return
	}

	enqueued := 0
	for _, p := range paths {
		if err := h.enqueuer.EnqueueVerify(ctx, port.VerifyTask{RunID: run.ID, ImagePath: p}); err != nil {
			h.logger.Error("Failed to enqueue image", "run_id", run.ID, "path", p, "error", err)
			continue
		}
		enqueued++
	}

	c.JSON(http.StatusAccepted, Response{
		Success: true,
		Data:    EnqueueResponse{RunID: run.ID, Enqueued: enqueued},
	})
}

// resolveImagePath returns the absolute form of p when it lies inside one of
// the image roots.
func (h *Handlers) resolveImagePath(p string) (string, error) {
	if len(h.imageRoots) == 0 {
		return "", fmt.Errorf("no image directories configured")
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(h.imageRoots[0], p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("invalid path %q", p)
	}
	for _, root := range h.imageRoots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absRoot, abs)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return abs, nil
	}
	return "", fmt.Errorf("path outside image directories: %s", p)
}

// ListRuns handles GET /api/runs
func (h *Handlers) ListRuns(c *gin.Context) {
	var req ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid query parameters")
		return
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	runs, err := h.verificationService.ListRuns(c.Request.Context(), req.Limit, req.Offset)
	if err != nil {
		h.logger.Error("Failed to list runs", "error", err)
		fail(c, http.StatusInternalServerError, "failed to retrieve runs")
		return
	}
	if runs == nil {
		runs = []*entity.VerificationRun{}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: runs})
}

// GetRun handles GET /api/runs/:id
func (h *Handlers) GetRun(c *gin.Context) {
	run, err := h.verificationService.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: run})
}

// GetResults handles GET /api/runs/:id/results
func (h *Handlers) GetResults(c *gin.Context) {
	records, err := h.verificationService.GetResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	if records == nil {
		records = []*entity.VerificationRecord{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// CompleteRun handles POST /api/runs/:id/complete
func (h *Handlers) CompleteRun(c *gin.Context) {
	run, err := h.verificationService.CompleteRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: run})
}

func (h *Handlers) lookupFailed(c *gin.Context, err error) {
	if errors.Is(err, port.ErrNotFound) {
		fail(c, http.StatusNotFound, "run not found")
		return
	}
	h.logger.Error("Run lookup failed", "id", c.Param("id"), "error", err)
	fail(c, http.StatusInternalServerError, "failed to retrieve run")
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{Success: false, Error: msg})
}
