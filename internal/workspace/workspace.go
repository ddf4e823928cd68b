// Package workspace owns the per-client state containers and their shared
// plumbing: local history, draft cache and collection change fan-out.
package workspace

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"scribedesk/internal/collections"
	"scribedesk/internal/models"
	"scribedesk/internal/workflow"
)

// Backend is the full backend surface a workspace drives.
type Backend interface {
	workflow.BoardClient
	workflow.UploadClient
	workflow.SummaryClient
	workflow.MutationClient
}

// HistoryStore persists a local log of what a workspace did.
type HistoryStore interface {
	RecordSummary(ctx context.Context, rec models.SummaryRecord) error
	RecordUpload(ctx context.Context, rec models.UploadRecord) (int64, error)
	RecordMutation(ctx context.Context, rec models.MutationRecord) error
}

// Workspace bundles the views of one browser tab or CLI run.
type Workspace struct {
	ID         string
	CreatedAt  time.Time
	Notices    *workflow.NoticeBoard
	Board      *workflow.Board
	Uploads    *workflow.UploadPage
	Summarizer *workflow.Summarizer
	Mutator    *workflow.Mutator

	history HistoryStore
	logger  *slog.Logger

	mu       sync.Mutex
	lastSeen time.Time
}

// New wires a standalone workspace. History may be nil.
func New(id string, be Backend, reader workflow.FileReader, history HistoryStore, logger *slog.Logger, boardOpts ...workflow.BoardOption) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("workspace", id)
	notices := workflow.NewNoticeBoard()
	board := workflow.NewBoard(be, append([]workflow.BoardOption{workflow.WithBoardLogger(logger)}, boardOpts...)...)
	uploads := workflow.NewUploadPage(workflow.NewUploader(be), board, notices)
	now := time.Now()
	ws := &Workspace{
		ID:         id,
		CreatedAt:  now,
		Notices:    notices,
		Board:      board,
		Uploads:    uploads,
		Summarizer: workflow.NewSummarizer(be, reader, notices),
		Mutator:    workflow.NewMutator(be, board, notices, logger),
		history:    history,
		logger:     logger,
		lastSeen:   now,
	}
	if history != nil {
		uploads.SetRecorder(uploadLog{workspaceID: id, store: history})
		ws.Summarizer.OnSaved(ws.recordSummary)
	}
	return ws
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

// LastSeen is the last time the workspace was looked up.
func (w *Workspace) LastSeen() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

// DeleteCollection runs the confirmed delete and logs its outcome.
func (w *Workspace) DeleteCollection(ctx context.Context, id collections.ID, confirm workflow.Confirmer) error {
	err := w.Mutator.DeleteCollection(ctx, id, confirm)
	w.recordMutation(ctx, id, "delete", err)
	return err
}

// StartUpdate posts the loading notice for an update of id. The returned
// function performs it and logs the outcome.
func (w *Workspace) StartUpdate(id collections.ID) (workflow.NoticeID, func(ctx context.Context) error, error) {
	handle, run, err := w.Mutator.StartUpdate(id)
	if err != nil {
		return "", nil, err
	}
	return handle, func(ctx context.Context) error {
		err := run(ctx)
		w.recordMutation(ctx, id, "update", err)
		return err
	}, nil
}

func (w *Workspace) recordMutation(ctx context.Context, id collections.ID, action string, err error) {
	if w.history == nil {
		return
	}
	rec := models.MutationRecord{
		WorkspaceID:  w.ID,
		CollectionID: string(id),
		Action:       action,
		Outcome:      models.OutcomeSucceeded,
	}
	var backendErr *workflow.BackendError
	switch {
	case err == nil:
	case errors.As(err, &backendErr):
		rec.Outcome = models.OutcomeFailed
		rec.Message = backendErr.Message
	default:
		// declined, busy or unknown collection: nothing reached the backend
		return
	}
	if err := w.history.RecordMutation(context.WithoutCancel(ctx), rec); err != nil {
		w.logger.Warn("record mutation failed", "collection", id, "error", err)
	}
}

func (w *Workspace) recordSummary(ctx context.Context, saved workflow.SavedSummary) {
	rec := models.SummaryRecord{
		ID:          saved.ID,
		WorkspaceID: w.ID,
		Title:       saved.Title,
		Content:     saved.Content,
		SourceFile:  saved.Source,
	}
	if err := w.history.RecordSummary(context.WithoutCancel(ctx), rec); err != nil {
		w.logger.Warn("record summary failed", "summary", saved.ID, "error", err)
	}
}

type uploadLog struct {
	workspaceID string
	store       HistoryStore
}

func (l uploadLog) RecordUpload(ctx context.Context, doc workflow.UploadedDocument) error {
	_, err := l.store.RecordUpload(context.WithoutCancel(ctx), models.UploadRecord{
		WorkspaceID: l.workspaceID,
		DocumentID:  doc.ID,
		FileName:    doc.Filename,
		Synthesized: doc.Synthesized,
	})
	return err
}
