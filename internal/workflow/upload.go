package workflow

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"scribedesk/internal/backend"
	"scribedesk/internal/intake"
)

const (
	msgNoFilesSelected  = "Please select file(s) first."
	msgUploadNoDetail   = "Files uploaded successfully, but no detailed info returned."
	msgUploadErrorFmt   = "Upload error: %s"
	msgUploadedFilesFmt = "%d file(s) processed and added to the knowledge base!"
	msgSelectedFilesFmt = "Selected %d file(s). Ready to upload."
)

// UploadClient is the backend surface used for ingestion.
type UploadClient interface {
	UploadDocuments(ctx context.Context, files []backend.FilePart) (*backend.UploadResult, error)
}

// UploadedDocument is a document acknowledged by the backend, or a local
// placeholder when the backend gave no per-file detail.
type UploadedDocument struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	// Synthesized is set when ID was generated locally.
	Synthesized bool `json:"synthesized,omitempty"`
}

// Uploader submits validated files in one multipart request.
type Uploader struct {
	client UploadClient
	now    func() time.Time
}

func NewUploader(client UploadClient) *Uploader {
	return &Uploader{client: client, now: time.Now}
}

// Submit uploads files. onSuccess runs once per acknowledged file; onFailure
// runs once with the user-facing message when the upload fails.
func (u *Uploader) Submit(ctx context.Context, files []*intake.SelectedFile, onSuccess func(UploadedDocument), onFailure func(string)) ([]UploadedDocument, error) {
	parts := make([]backend.FilePart, 0, len(files))
	for _, f := range files {
		parts = append(parts, f)
	}
	res, err := u.client.UploadDocuments(ctx, parts)
	if err != nil {
		msg := backend.Message(err)
		if onFailure != nil {
			onFailure(msg)
		}
		return nil, &BackendError{Message: msg, Err: err}
	}

	var acked []UploadedDocument
	if res.PartialSuccess() {
		stamp := strconv.FormatInt(u.now().UnixMilli(), 10)
		for _, f := range files {
			acked = append(acked, UploadedDocument{ID: stamp + f.Name, Filename: f.Name, Synthesized: true})
		}
	} else {
		for _, uf := range res.Files {
			acked = append(acked, UploadedDocument{ID: uf.ID, Filename: uf.Filename})
		}
	}
	if onSuccess != nil {
		for _, doc := range acked {
			onSuccess(doc)
		}
	}
	return acked, nil
}

// UploadRecorder is notified of every acknowledged upload.
type UploadRecorder interface {
	RecordUpload(ctx context.Context, doc UploadedDocument) error
}

// UploadPage is the state container of the knowledge-base upload view.
type UploadPage struct {
	uploader  *Uploader
	selection *intake.Selection
	board     *Board
	notifier  Notifier
	recorder  UploadRecorder

	mu        sync.Mutex
	uploading bool
}

func NewUploadPage(uploader *Uploader, board *Board, notifier Notifier) *UploadPage {
	return &UploadPage{
		uploader:  uploader,
		selection: intake.NewSelection(intake.KnowledgeBase),
		board:     board,
		notifier:  notifier,
	}
}

// SetRecorder attaches an upload log.
func (p *UploadPage) SetRecorder(r UploadRecorder) {
	p.recorder = r
}

func (p *UploadPage) Selection() *intake.Selection {
	return p.selection
}

// Select stages files from the picker or drop zone and notifies every
// rejection separately.
func (p *UploadPage) Select(files ...*intake.SelectedFile) ([]*intake.SelectedFile, []*intake.Rejection) {
	accepted, rejected := p.selection.Pick(files...)
	for _, rej := range rejected {
		p.notifier.Error(rej.Message)
	}
	if len(accepted) > 0 {
		p.notifier.Info(fmt.Sprintf(msgSelectedFilesFmt, len(accepted)))
	}
	return accepted, rejected
}

func (p *UploadPage) Uploading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uploading
}

// Upload submits the staged files. The selection is cleared only on success.
func (p *UploadPage) Upload(ctx context.Context) ([]UploadedDocument, error) {
	files := p.selection.Files()
	if len(files) == 0 {
		p.notifier.Error(msgNoFilesSelected)
		return nil, &ValidationError{Message: msgNoFilesSelected}
	}

	p.mu.Lock()
	if p.uploading {
		p.mu.Unlock()
		return nil, ErrBusy
	}
	p.uploading = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.uploading = false
		p.mu.Unlock()
	}()

	onSuccess := func(doc UploadedDocument) {
		p.board.AppendUploaded(doc)
		if p.recorder != nil {
			if err := p.recorder.RecordUpload(ctx, doc); err != nil {
				p.board.logger.Warn("record upload failed", "file", doc.Filename, "error", err)
			}
		}
	}
	onFailure := func(msg string) {
		p.notifier.Error(fmt.Sprintf(msgUploadErrorFmt, msg))
	}
	acked, err := p.uploader.Submit(ctx, files, onSuccess, onFailure)
	if err != nil {
		return nil, err
	}
	if len(acked) > 0 && acked[0].Synthesized {
		p.notifier.Success(msgUploadNoDetail)
	} else {
		p.notifier.Success(fmt.Sprintf(msgUploadedFilesFmt, len(acked)))
	}
	p.selection.Clear()
	return acked, nil
}
