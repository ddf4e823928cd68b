package api

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"scribedesk/internal/auth"
	"scribedesk/internal/collections"
	"scribedesk/internal/intake"
	"scribedesk/internal/models"
	"scribedesk/internal/storage"
	"scribedesk/internal/worker"
	"scribedesk/internal/workflow"
	"scribedesk/internal/workspace"
)

const (
	workspaceContextKey = "workspace"
	// maxMultipartMemory bounds the in-memory part of a parsed form.
	maxMultipartMemory = 8 << 20
	// MaxRequestBytes bounds any request body, a handful of 5 MiB files.
	MaxRequestBytes = 64 << 20
)

type WorkspaceStore interface {
	Create(ctx context.Context) (*workspace.Workspace, error)
	Get(ctx context.Context, id string) (*workspace.Workspace, error)
	Drop(ctx context.Context, id string) bool
}

type JobRunner interface {
	Submit(job worker.Job) error
}

// History is the local log served by the history routes.
type History interface {
	ListSummaries(ctx context.Context, limit int) ([]*models.SummaryRecord, error)
	GetSummary(ctx context.Context, id string) (*models.SummaryRecord, error)
	ListMutations(ctx context.Context, collectionID string, limit int) ([]*models.MutationRecord, error)
}

// Handler wires HTTP routes to the workspaces.
type Handler struct {
	workspaces WorkspaceStore
	jobs       JobRunner
	history    History
	gateway    *auth.Gateway
	logger     *slog.Logger
}

// NewHandler constructs a Handler. history and gateway may be nil.
func NewHandler(workspaces WorkspaceStore, jobs JobRunner, history History, gateway *auth.Gateway, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		workspaces: workspaces,
		jobs:       jobs,
		history:    history,
		gateway:    gateway,
		logger:     logger,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/health", h.health)

	guarded := api.Group("")
	guarded.Use(h.gateway.Middleware())
	guarded.POST("/workspaces", h.createWorkspace)

	ws := guarded.Group("/workspaces/:ws")
	ws.Use(h.requireWorkspace())
	ws.DELETE("", h.dropWorkspace)

	ws.GET("/documents", h.getDocuments)
	ws.DELETE("/documents", h.deleteDocuments)
	ws.POST("/files", h.selectFiles)
	ws.DELETE("/files", h.clearFiles)
	ws.POST("/upload", h.upload)

	ws.GET("/collections", h.getCollections)
	ws.DELETE("/collections/:id", h.deleteCollection)
	ws.POST("/collections/:id/update", h.updateCollection)
	ws.GET("/collections/:id/events", h.collectionEvents)

	ws.GET("/notices", h.listNotices)
	ws.DELETE("/notices/:id", h.dismissNotice)

	ws.GET("/summary", h.getSummary)
	ws.PUT("/summary/input", h.setSummaryInput)
	ws.POST("/summary/file", h.loadSummaryFile)
	ws.POST("/summary/generate", h.generateSummary)
	ws.POST("/summary/edit", h.beginEdit)
	ws.PUT("/summary/edit", h.updateEdit)
	ws.DELETE("/summary/edit", h.cancelEdit)
	ws.POST("/summary/save", h.saveSummary)

	ws.GET("/summaries", h.listSavedSummaries)
	ws.GET("/summaries/:id", h.getSavedSummary)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) requireWorkspace() gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := h.workspaces.Get(c.Request.Context(), c.Param("ws"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "workspace not found"})
			return
		}
		c.Set(workspaceContextKey, ws)
		c.Next()
	}
}

func currentWorkspace(c *gin.Context) *workspace.Workspace {
	return c.MustGet(workspaceContextKey).(*workspace.Workspace)
}

// respondError maps workflow errors to HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	var (
		validationErr *workflow.ValidationError
		rejection     *intake.Rejection
		backendErr    *workflow.BackendError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
	case errors.As(err, &rejection):
		c.JSON(http.StatusBadRequest, gin.H{"error": rejection.Message, "reason": rejection.Reason.String()})
	case errors.Is(err, workflow.ErrBusy), errors.Is(err, workflow.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, collections.ErrUnknownCollection):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, worker.ErrDispatcherBusy):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry"})
	case errors.As(err, &backendErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": backendErr.Message})
	default:
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handler) createWorkspace(c *gin.Context) {
	ws, err := h.workspaces.Create(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         ws.ID,
		"created_at": ws.CreatedAt,
		"board":      ws.Board.Snapshot(),
	})
}

func (h *Handler) dropWorkspace(c *gin.Context) {
	h.workspaces.Drop(c.Request.Context(), currentWorkspace(c).ID)
	c.Status(http.StatusNoContent)
}

func (h *Handler) getDocuments(c *gin.Context) {
	ws := currentWorkspace(c)
	if c.Query("refresh") == "1" || c.Query("refresh") == "true" {
		// failures are logged by the board; the previous state is served
		_ = ws.Board.Mount(c.Request.Context())
	}
	c.JSON(http.StatusOK, ws.Board.Snapshot())
}

func (h *Handler) getCollections(c *gin.Context) {
	ws := currentWorkspace(c)
	if c.Query("refresh") == "1" || c.Query("refresh") == "true" {
		_ = ws.Board.RefreshCollections(c.Request.Context())
	}
	c.JSON(http.StatusOK, gin.H{"collections": ws.Board.Snapshot().Collections})
}

type rejectionView struct {
	File    string `json:"file"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type fileView struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mime_type"`
}

func fileViews(files []*intake.SelectedFile) []fileView {
	out := make([]fileView, 0, len(files))
	for _, f := range files {
		out = append(out, fileView{Name: f.Name, Size: f.Size, MIMEType: f.MIMEType})
	}
	return out
}

func formFiles(c *gin.Context, field string) ([]*multipart.FileHeader, error) {
	if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, err
	}
	if c.Request.MultipartForm == nil {
		return nil, http.ErrMissingFile
	}
	headers := c.Request.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, http.ErrMissingFile
	}
	return headers, nil
}

func (h *Handler) selectFiles(c *gin.Context) {
	ws := currentWorkspace(c)
	headers, err := formFiles(c, "files")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "files are required"})
		return
	}
	files := make([]*intake.SelectedFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, intake.FromMultipart(fh))
	}
	accepted, rejected := ws.Uploads.Select(files...)
	rejections := make([]rejectionView, 0, len(rejected))
	for _, r := range rejected {
		rejections = append(rejections, rejectionView{File: r.File, Reason: r.Reason.String(), Message: r.Message})
	}
	c.JSON(http.StatusOK, gin.H{
		"accepted":  fileViews(accepted),
		"rejected":  rejections,
		"selection": fileViews(ws.Uploads.Selection().Files()),
	})
}

func (h *Handler) clearFiles(c *gin.Context) {
	currentWorkspace(c).Uploads.Selection().Clear()
	c.Status(http.StatusNoContent)
}

func (h *Handler) upload(c *gin.Context) {
	ws := currentWorkspace(c)
	acked, err := ws.Uploads.Upload(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"uploaded":  acked,
		"documents": ws.Board.Snapshot().Documents,
	})
}

// confirmed reports whether the request carries the explicit confirmation.
// Without it the prompt is returned with 409.
func confirmed(c *gin.Context, id collections.ID) bool {
	ok, _ := strconv.ParseBool(c.Query("confirm"))
	if !ok {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "confirmation required",
			"prompt": workflow.DeletePrompt(id),
		})
	}
	return ok
}

var alwaysConfirm = workflow.ConfirmFunc(func(ctx context.Context, prompt string) bool { return true })

func (h *Handler) deleteDocuments(c *gin.Context) {
	if !confirmed(c, collections.UserDocuments) {
		return
	}
	h.runDelete(c, collections.UserDocuments)
}

func (h *Handler) deleteCollection(c *gin.Context) {
	id := collections.ID(c.Param("id"))
	// unknown ids fail in the mutator without a prompt
	if _, err := collections.Lookup(id); err == nil && !confirmed(c, id) {
		return
	}
	h.runDelete(c, id)
}

func (h *Handler) runDelete(c *gin.Context, id collections.ID) {
	ws := currentWorkspace(c)
	if err := ws.DeleteCollection(c.Request.Context(), id, alwaysConfirm); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"board": ws.Board.Snapshot()})
}

func (h *Handler) updateCollection(c *gin.Context) {
	ws := currentWorkspace(c)
	id := collections.ID(c.Param("id"))
	handle, run, err := ws.StartUpdate(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	err = h.jobs.Submit(worker.Job{
		Key:  ws.ID,
		Name: "update:" + string(id),
		Run:  run,
		Done: func(err error) {
			if errors.Is(err, worker.ErrDispatcherClosed) {
				ws.Mutator.AbortUpdate(id, handle, "Update cancelled: server shutting down.")
			}
		},
	})
	if err != nil {
		ws.Mutator.AbortUpdate(id, handle, "Server is busy, please retry the update.")
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"notice_id": handle})
}

func (h *Handler) collectionEvents(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusOK, gin.H{"events": []*models.MutationRecord{}})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	events, err := h.history.ListMutations(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if events == nil {
		events = []*models.MutationRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *Handler) listNotices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notices": currentWorkspace(c).Notices.List()})
}

func (h *Handler) dismissNotice(c *gin.Context) {
	if !currentWorkspace(c).Notices.Dismiss(workflow.NoticeID(c.Param("id"))) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notice not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listSavedSummaries(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusOK, gin.H{"summaries": []*models.SummaryRecord{}})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.history.ListSummaries(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if list == nil {
		list = []*models.SummaryRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"summaries": list})
}

func (h *Handler) getSavedSummary(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "summary not found"})
		return
	}
	rec, err := h.history.GetSummary(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "summary not found"})
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
