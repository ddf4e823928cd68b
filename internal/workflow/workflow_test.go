package workflow

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"scribedesk/internal/backend"
	"scribedesk/internal/collections"
	"scribedesk/internal/intake"
)

type mockBackend struct {
	mu sync.Mutex

	docs        []backend.Document
	docsErr     error
	meta        map[string]backend.CollectionMeta
	metaErr     error
	metaCalls   int
	uploadRes   *backend.UploadResult
	uploadErr   error
	uploaded    []string
	deleted     []string
	deleteErr   error
	updated     []string
	updateErr   error
	summary     string
	generateErr error
	generated   []backend.SummaryRequest
	saveErr     error
	saves       []backend.SaveRequest
}

func (m *mockBackend) ListDocuments(ctx context.Context) ([]backend.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs, m.docsErr
}

func (m *mockBackend) ListCollections(ctx context.Context) (map[string]backend.CollectionMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metaCalls++
	return m.meta, m.metaErr
}

func (m *mockBackend) UploadDocuments(ctx context.Context, files []backend.FilePart) (*backend.UploadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range files {
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		_, _ = io.Copy(io.Discard, rc)
		rc.Close()
		m.uploaded = append(m.uploaded, f.FileName())
	}
	return m.uploadRes, m.uploadErr
}

func (m *mockBackend) DeleteUserDocuments(ctx context.Context) error {
	return m.DeleteCollection(ctx, "user")
}

func (m *mockBackend) DeleteCollection(ctx context.Context, suffix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, suffix)
	return m.deleteErr
}

func (m *mockBackend) UpdateCollection(ctx context.Context, suffix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = append(m.updated, suffix)
	return m.updateErr
}

func (m *mockBackend) GenerateSummary(ctx context.Context, in backend.SummaryRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generated = append(m.generated, in)
	return m.summary, m.generateErr
}

func (m *mockBackend) SaveSummary(ctx context.Context, in backend.SaveRequest) (*backend.SaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves = append(m.saves, in)
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	id := in.ID
	status := "updated"
	if id == "" {
		id = "sum-1"
		status = "created"
	}
	return &backend.SaveResult{ID: id, Status: status}, nil
}

type stubReader struct {
	text string
	err  error
}

func (r stubReader) ReadText(ctx context.Context, f *intake.SelectedFile) (string, error) {
	return r.text, r.err
}

func lastNotice(t *testing.T, nb *NoticeBoard) Notice {
	t.Helper()
	list := nb.List()
	if len(list) == 0 {
		t.Fatalf("expected a notice")
	}
	return list[len(list)-1]
}

func strptr(s string) *string { return &s }

func TestUploadSuccessInvokesCallbackPerFile(t *testing.T) {
	mb := &mockBackend{uploadRes: &backend.UploadResult{Files: []backend.UploadedFile{{ID: "test-id", Filename: "test.pdf"}}}}
	uploader := NewUploader(mb)
	var got []UploadedDocument
	var failures []string
	_, err := uploader.Submit(context.Background(),
		[]*intake.SelectedFile{intake.FromBytes("test.pdf", "application/pdf", []byte("%PDF"))},
		func(d UploadedDocument) { got = append(got, d) },
		func(msg string) { failures = append(failures, msg) },
	)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(got) != 1 || got[0].ID != "test-id" || got[0].Filename != "test.pdf" {
		t.Fatalf("success callback mismatch: %+v", got)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected failure callback: %v", failures)
	}
}

func TestUploadFallbackIDs(t *testing.T) {
	mb := &mockBackend{uploadRes: &backend.UploadResult{Message: "ok"}}
	uploader := NewUploader(mb)
	uploader.now = func() time.Time { return time.UnixMilli(1700000000000) }
	var got []UploadedDocument
	_, err := uploader.Submit(context.Background(),
		[]*intake.SelectedFile{intake.FromBytes("a.txt", "text/plain", []byte("a")), intake.FromBytes("b.txt", "text/plain", []byte("b"))},
		func(d UploadedDocument) { got = append(got, d) }, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(got) != 2 || got[0].ID != "1700000000000a.txt" || got[1].ID != "1700000000000b.txt" || !got[0].Synthesized {
		t.Fatalf("fallback ids mismatch: %+v", got)
	}
}

func TestUploadFailureMessage(t *testing.T) {
	mb := &mockBackend{uploadErr: &backend.HTTPError{StatusCode: 413, Detail: "File too big"}}
	var failures []string
	_, err := NewUploader(mb).Submit(context.Background(),
		[]*intake.SelectedFile{intake.FromBytes("a.txt", "text/plain", []byte("a"))},
		nil, func(msg string) { failures = append(failures, msg) })
	if err == nil || len(failures) != 1 || failures[0] != "File too big" {
		t.Fatalf("failure callback mismatch: %v %v", err, failures)
	}
}

func TestUploadPageFlow(t *testing.T) {
	mb := &mockBackend{uploadRes: &backend.UploadResult{Files: []backend.UploadedFile{{ID: "1", Filename: "a.pdf"}}}}
	nb := NewNoticeBoard()
	board := NewBoard(mb)
	page := NewUploadPage(NewUploader(mb), board, nb)

	if _, err := page.Upload(context.Background()); err == nil {
		t.Fatalf("expected error for empty selection")
	}
	if n := lastNotice(t, nb); n.Message != "Please select file(s) first." || n.Level != LevelError {
		t.Fatalf("empty selection notice mismatch: %+v", n)
	}
	if len(mb.uploaded) != 0 {
		t.Fatalf("no request expected for empty selection")
	}

	page.Select(intake.FromBytes("a.pdf", "application/pdf", []byte("%PDF")))
	if _, err := page.Upload(context.Background()); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if page.Selection().Len() != 0 {
		t.Fatalf("selection should clear after success")
	}
	snap := board.Snapshot()
	if len(snap.Documents) != 1 || snap.Documents[0].Title != "a.pdf" {
		t.Fatalf("uploaded document not appended: %+v", snap.Documents)
	}
	if page.Uploading() {
		t.Fatalf("uploading flag must clear")
	}
}

func TestUploadPageKeepsSelectionOnFailure(t *testing.T) {
	mb := &mockBackend{uploadErr: &backend.TransportError{Op: "upload", Err: errors.New("connection refused")}}
	nb := NewNoticeBoard()
	page := NewUploadPage(NewUploader(mb), NewBoard(mb), nb)
	page.Select(intake.FromBytes("a.pdf", "application/pdf", []byte("%PDF")))
	if _, err := page.Upload(context.Background()); err == nil {
		t.Fatalf("expected upload error")
	}
	if page.Selection().Len() != 1 {
		t.Fatalf("selection must survive failure")
	}
	if n := lastNotice(t, nb); n.Message != "Upload error: connection refused" {
		t.Fatalf("notice mismatch: %+v", n)
	}
}

func TestBoardMountFormatsAndKeepsStateOnFailure(t *testing.T) {
	mb := &mockBackend{
		docs: []backend.Document{
			{ID: "a.pdf", Title: "a.pdf", UploadDate: "2024-01-02"},
			{ID: "b.pdf", Title: "b.pdf", UploadDate: "unknown"},
		},
		meta: map[string]backend.CollectionMeta{
			"miriad_knowledge": {LastUpdated: strptr("2024-08-15T12:00:00")},
			"nice_knowledge":   {LastUpdated: nil},
		},
	}
	board := NewBoard(mb, WithLocation(time.UTC))
	if err := board.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}
	snap := board.Snapshot()
	if snap.Documents[0].UploadDate != "02/01/2024" || snap.Documents[1].UploadDate != "Unknown" {
		t.Fatalf("document dates mismatch: %+v", snap.Documents)
	}
	byID := map[collections.ID]CollectionRow{}
	for _, c := range snap.Collections {
		byID[c.ID] = c
	}
	if byID[collections.MiriadKnowledge].LastUpdated != "15/08/2024, 12:00:00" {
		t.Fatalf("miriad timestamp mismatch: %+v", byID[collections.MiriadKnowledge])
	}
	if byID[collections.NiceKnowledge].LastUpdated != "Collection deleted" {
		t.Fatalf("nice should be deleted: %+v", byID[collections.NiceKnowledge])
	}

	mb.mu.Lock()
	mb.docsErr = errors.New("boom")
	mb.meta = map[string]backend.CollectionMeta{"miriad_knowledge": {LastUpdated: strptr("deleted")}}
	mb.mu.Unlock()
	if err := board.Mount(context.Background()); err == nil {
		t.Fatalf("expected informational error")
	}
	snap = board.Snapshot()
	if len(snap.Documents) != 2 {
		t.Fatalf("failed fetch must keep previous documents")
	}
	for _, c := range snap.Collections {
		if c.ID == collections.MiriadKnowledge && c.LastUpdated != "Collection deleted" {
			t.Fatalf("collections fetch should still apply: %+v", c)
		}
		if c.ID == collections.NiceKnowledge && c.LastUpdated != "Unknown" {
			t.Fatalf("absent metadata should be Unknown: %+v", c)
		}
	}
}

func TestSummarizeTypedText(t *testing.T) {
	mb := &mockBackend{summary: "Generated summary"}
	nb := NewNoticeBoard()
	s := NewSummarizer(mb, stubReader{}, nb)
	s.SetText("Test transcription")
	out, err := s.Summarize(context.Background())
	if err != nil || out != "Generated summary" {
		t.Fatalf("summarize: %q %v", out, err)
	}
	if len(mb.generated) != 1 || mb.generated[0].Text != "Test transcription" || mb.generated[0].FileName != "" {
		t.Fatalf("request mismatch: %+v", mb.generated)
	}
	if s.Snapshot().Phase != PhaseReady {
		t.Fatalf("expected ready")
	}
	if n := lastNotice(t, nb); n.Message != "Summary generated successfully!" || n.Level != LevelSuccess {
		t.Fatalf("notice mismatch: %+v", n)
	}
}

func TestSummarizeRejectsBlankInput(t *testing.T) {
	mb := &mockBackend{summary: "x"}
	nb := NewNoticeBoard()
	s := NewSummarizer(mb, stubReader{}, nb)
	s.SetText("   \n\t")
	if _, err := s.Summarize(context.Background()); err == nil {
		t.Fatalf("expected validation error")
	}
	if len(mb.generated) != 0 {
		t.Fatalf("no request expected")
	}
	if n := lastNotice(t, nb); n.Message != "Please provide text or upload a file for summarization." {
		t.Fatalf("notice mismatch: %+v", n)
	}
	if s.Snapshot().Phase != PhaseIdle {
		t.Fatalf("phase must stay idle")
	}
}

func TestSummarizeSendsFullFileText(t *testing.T) {
	full := strings.Repeat("x", 1500)
	mb := &mockBackend{summary: "ok"}
	nb := NewNoticeBoard()
	s := NewSummarizer(mb, stubReader{text: full}, nb)
	if err := s.LoadFile(context.Background(), intake.FromBytes("visit.txt", "text/plain", []byte(full))); err != nil {
		t.Fatalf("load: %v", err)
	}
	snap := s.Snapshot()
	if !strings.HasSuffix(snap.Preview, "[Full transcription loaded, showing first 1000 characters] ...") {
		t.Fatalf("preview marker missing")
	}
	if n := lastNotice(t, nb); n.Message != `File "visit.txt" loaded successfully.` {
		t.Fatalf("notice mismatch: %+v", n)
	}
	if _, err := s.Summarize(context.Background()); err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if mb.generated[0].Text != full || mb.generated[0].FileName != "visit.txt" {
		t.Fatalf("request must carry full text and filename")
	}
}

func TestLoadFileFailureKeepsPreviousInput(t *testing.T) {
	nb := NewNoticeBoard()
	s := NewSummarizer(&mockBackend{}, stubReader{err: errors.New("eof")}, nb)
	s.SetText("keep me")
	err := s.LoadFile(context.Background(), intake.FromBytes("scan.pdf", "application/pdf", []byte("%PDF")))
	var rej *intake.Rejection
	if !errors.As(err, &rej) || rej.Reason != intake.ReasonUnsupportedType {
		t.Fatalf("expected unsupported type, got %v", err)
	}
	err = s.LoadFile(context.Background(), intake.FromBytes("visit.txt", "text/plain", []byte("x")))
	if !errors.As(err, &rej) || rej.Message != "Failed to read file." {
		t.Fatalf("expected read failure, got %v", err)
	}
	if s.Snapshot().Input != "keep me" {
		t.Fatalf("input must be untouched")
	}
}

func TestSummarizeFailureKeepsSummary(t *testing.T) {
	mb := &mockBackend{summary: "first"}
	nb := NewNoticeBoard()
	s := NewSummarizer(mb, stubReader{}, nb)
	s.SetText("text")
	if _, err := s.Summarize(context.Background()); err != nil {
		t.Fatalf("summarize: %v", err)
	}
	mb.generateErr = &backend.HTTPError{StatusCode: 500, Detail: "model overloaded"}
	if _, err := s.Summarize(context.Background()); err == nil {
		t.Fatalf("expected failure")
	}
	snap := s.Snapshot()
	if snap.Summary != "first" || snap.Phase != PhaseReady {
		t.Fatalf("previous summary must stay: %+v", snap)
	}
	if n := lastNotice(t, nb); n.Message != "Summarization error: model overloaded" {
		t.Fatalf("notice mismatch: %+v", n)
	}

	mb.generateErr = &backend.HTTPError{StatusCode: 500}
	_, _ = s.Summarize(context.Background())
	if n := lastNotice(t, nb); n.Message != "Summarization error: Summarization failed for an unknown reason." {
		t.Fatalf("generic notice mismatch: %+v", n)
	}
}

func TestEditSaveCycle(t *testing.T) {
	mb := &mockBackend{summary: "Generated summary"}
	nb := NewNoticeBoard()
	s := NewSummarizer(mb, stubReader{}, nb)
	s.SetText("text")
	if _, err := s.Summarize(context.Background()); err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if err := s.BeginEdit(); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	if s.Snapshot().EditBuffer != "Generated summary" {
		t.Fatalf("buffer not seeded")
	}

	_ = s.Edit("   ")
	if _, err := s.Save(context.Background()); err == nil {
		t.Fatalf("expected empty summary error")
	}
	if len(mb.saves) != 0 {
		t.Fatalf("no save request expected")
	}
	if n := lastNotice(t, nb); n.Message != "Summary cannot be empty." {
		t.Fatalf("notice mismatch: %+v", n)
	}
	if snap := s.Snapshot(); snap.Summary != "Generated summary" || snap.Phase != PhaseEditing {
		t.Fatalf("summary must remain displayed: %+v", snap)
	}

	_ = s.Edit("Edited summary")
	res, err := s.Save(context.Background())
	if err != nil || res.ID != "sum-1" {
		t.Fatalf("save: %+v %v", res, err)
	}
	if mb.saves[0].Title != "Clinical Summary" || mb.saves[0].ID != "" {
		t.Fatalf("save request mismatch: %+v", mb.saves[0])
	}
	snap := s.Snapshot()
	if snap.Summary != "Edited summary" || snap.EditBuffer != "" || snap.Phase != PhaseReady {
		t.Fatalf("save did not commit: %+v", snap)
	}

	_ = s.BeginEdit()
	_ = s.Edit("Second edit")
	if _, err := s.Save(context.Background()); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if mb.saves[1].ID != "sum-1" {
		t.Fatalf("second save must reuse id: %+v", mb.saves[1])
	}
}

func TestSaveFailureKeepsBuffer(t *testing.T) {
	mb := &mockBackend{summary: "s", saveErr: &backend.HTTPError{StatusCode: 500}}
	nb := NewNoticeBoard()
	s := NewSummarizer(mb, stubReader{}, nb)
	s.SetText("text")
	_, _ = s.Summarize(context.Background())
	_ = s.BeginEdit()
	_ = s.Edit("work in progress")
	if _, err := s.Save(context.Background()); err == nil {
		t.Fatalf("expected save failure")
	}
	snap := s.Snapshot()
	if snap.Phase != PhaseEditing || snap.EditBuffer != "work in progress" {
		t.Fatalf("buffer must survive: %+v", snap)
	}
	if n := lastNotice(t, nb); n.Message != "Save failed" {
		t.Fatalf("notice mismatch: %+v", n)
	}
}

func TestCancelEdit(t *testing.T) {
	nb := NewNoticeBoard()
	s := NewSummarizer(&mockBackend{summary: "s"}, stubReader{}, nb)
	if err := s.BeginEdit(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("edit from idle must fail, got %v", err)
	}
	s.SetText("text")
	_, _ = s.Summarize(context.Background())
	_ = s.BeginEdit()
	_ = s.Edit("changed")
	if err := s.CancelEdit(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	snap := s.Snapshot()
	if snap.Summary != "s" || snap.Phase != PhaseReady || snap.EditBuffer != "" {
		t.Fatalf("cancel mismatch: %+v", snap)
	}
	if n := lastNotice(t, nb); n.Message != "Edit cancelled." {
		t.Fatalf("notice mismatch: %+v", n)
	}
}

func TestDeleteCollectionRequiresConfirmation(t *testing.T) {
	mb := &mockBackend{meta: map[string]backend.CollectionMeta{}}
	nb := NewNoticeBoard()
	m := NewMutator(mb, NewBoard(mb), nb, nil)

	var prompts []string
	decline := ConfirmFunc(func(ctx context.Context, prompt string) bool {
		prompts = append(prompts, prompt)
		return false
	})
	if err := m.DeleteCollection(context.Background(), collections.MiriadKnowledge, decline); !errors.Is(err, ErrDeclined) {
		t.Fatalf("expected declined, got %v", err)
	}
	if len(mb.deleted) != 0 || mb.metaCalls != 0 {
		t.Fatalf("declined delete must not call backend")
	}
	if prompts[0] != "Are you sure you want to delete the miriad_knowledge collection? This cannot be undone." {
		t.Fatalf("prompt mismatch: %q", prompts[0])
	}

	accept := ConfirmFunc(func(ctx context.Context, prompt string) bool { return true })
	if err := m.DeleteCollection(context.Background(), collections.MiriadKnowledge, accept); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(mb.deleted) != 1 || mb.deleted[0] != "miriad" {
		t.Fatalf("must hit mapped suffix, got %v", mb.deleted)
	}
	if mb.metaCalls != 1 {
		t.Fatalf("metadata must be refetched after delete")
	}
	if n := lastNotice(t, nb); n.Message != "miriad_knowledge collection deleted successfully" {
		t.Fatalf("notice mismatch: %+v", n)
	}
}

func TestDeleteUnknownCollection(t *testing.T) {
	mb := &mockBackend{}
	nb := NewNoticeBoard()
	m := NewMutator(mb, NewBoard(mb), nb, nil)
	accept := ConfirmFunc(func(ctx context.Context, prompt string) bool { return true })
	err := m.DeleteCollection(context.Background(), "pubmed", accept)
	if !errors.Is(err, collections.ErrUnknownCollection) {
		t.Fatalf("expected unknown collection, got %v", err)
	}
	if len(mb.deleted) != 0 {
		t.Fatalf("no request expected")
	}
}

func TestDeleteAllUserDocuments(t *testing.T) {
	mb := &mockBackend{docs: []backend.Document{{ID: "a", Title: "a"}}, meta: map[string]backend.CollectionMeta{}}
	nb := NewNoticeBoard()
	board := NewBoard(mb)
	_ = board.Mount(context.Background())
	m := NewMutator(mb, board, nb, nil)
	var prompt string
	err := m.DeleteAllUserDocuments(context.Background(), ConfirmFunc(func(ctx context.Context, p string) bool {
		prompt = p
		return true
	}))
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if prompt != "Are you sure you want to delete ALL documents? This cannot be undone." {
		t.Fatalf("prompt mismatch: %q", prompt)
	}
	if mb.deleted[0] != "user" || len(board.Snapshot().Documents) != 0 {
		t.Fatalf("documents not cleared")
	}
	if n := lastNotice(t, nb); n.Message != "Collection deleted successfully" {
		t.Fatalf("notice mismatch: %+v", n)
	}
}

func TestDeleteFailureMessages(t *testing.T) {
	accept := ConfirmFunc(func(ctx context.Context, prompt string) bool { return true })
	mb := &mockBackend{deleteErr: &backend.HTTPError{StatusCode: 500}}
	nb := NewNoticeBoard()
	m := NewMutator(mb, NewBoard(mb), nb, nil)
	_ = m.DeleteCollection(context.Background(), collections.NiceKnowledge, accept)
	if n := lastNotice(t, nb); n.Message != "Failed to delete nice_knowledge collection" {
		t.Fatalf("notice mismatch: %+v", n)
	}
	mb.deleteErr = &backend.TransportError{Err: errors.New("dial tcp")}
	_ = m.DeleteCollection(context.Background(), collections.NiceKnowledge, accept)
	if n := lastNotice(t, nb); n.Message != "Error deleting nice_knowledge collection" {
		t.Fatalf("notice mismatch: %+v", n)
	}
}

func TestUpdateReplacesLoadingNotice(t *testing.T) {
	mb := &mockBackend{meta: map[string]backend.CollectionMeta{}}
	nb := NewNoticeBoard()
	m := NewMutator(mb, NewBoard(mb), nb, nil)
	if err := m.UpdateCollection(context.Background(), collections.MiriadKnowledge); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(mb.updated) != 1 || mb.updated[0] != "update_miriad" {
		t.Fatalf("update suffix mismatch: %v", mb.updated)
	}
	list := nb.List()
	if len(list) != 1 {
		t.Fatalf("expected a single notice, got %+v", list)
	}
	if list[0].Level != LevelSuccess || list[0].Message != "miriad_knowledge collection updated successfully" {
		t.Fatalf("notice mismatch: %+v", list[0])
	}
	if mb.metaCalls != 1 {
		t.Fatalf("metadata must be refetched after update")
	}

	mb.updateErr = &backend.HTTPError{StatusCode: 502, Detail: "source unavailable"}
	handle, run, err := m.StartUpdate(collections.NiceKnowledge)
	if err != nil {
		t.Fatalf("start update: %v", err)
	}
	if n, _ := nb.Get(handle); n.Level != LevelLoading {
		t.Fatalf("expected loading notice, got %+v", n)
	}
	if _, _, err := m.StartUpdate(collections.NiceKnowledge); !errors.Is(err, ErrBusy) {
		t.Fatalf("re-trigger must be rejected, got %v", err)
	}
	_ = run(context.Background())
	if n, _ := nb.Get(handle); n.Level != LevelError || n.Message != "source unavailable" {
		t.Fatalf("notice not resolved in place: %+v", n)
	}
	if m.Running("update:" + string(collections.NiceKnowledge)) {
		t.Fatalf("in-flight flag must clear")
	}
}

func TestAbortUpdateClearsFlight(t *testing.T) {
	mb := &mockBackend{}
	nb := NewNoticeBoard()
	m := NewMutator(mb, NewBoard(mb), nb, nil)
	handle, _, err := m.StartUpdate(collections.MiriadKnowledge)
	if err != nil {
		t.Fatalf("start update: %v", err)
	}
	m.AbortUpdate(collections.MiriadKnowledge, handle, "server busy")
	if n, _ := nb.Get(handle); n.Level != LevelError || n.Message != "server busy" {
		t.Fatalf("notice not resolved: %+v", n)
	}
	if m.Running("update:" + string(collections.MiriadKnowledge)) {
		t.Fatalf("in-flight flag must clear")
	}
	if len(mb.updated) != 0 {
		t.Fatalf("aborted update must not reach the backend")
	}
}

func TestUpdateUserCollectionRejected(t *testing.T) {
	mb := &mockBackend{}
	nb := NewNoticeBoard()
	m := NewMutator(mb, NewBoard(mb), nb, nil)
	if err := m.UpdateCollection(context.Background(), collections.UserDocuments); err == nil {
		t.Fatalf("expected error")
	}
	if len(mb.updated) != 0 {
		t.Fatalf("no request expected")
	}
	if n := lastNotice(t, nb); n.Message != "No update endpoint defined for collection user" {
		t.Fatalf("notice mismatch: %+v", n)
	}
}

func TestNoticeBoardDismissAndCap(t *testing.T) {
	nb := NewNoticeBoard()
	nb.limit = 3
	loading := nb.Loading("working")
	for i := 0; i < 5; i++ {
		nb.Info("x")
	}
	list := nb.List()
	if len(list) != 3 || list[0].ID != loading {
		t.Fatalf("loading notice must survive trimming: %+v", list)
	}
	if !nb.Dismiss(loading) || nb.Dismiss(loading) {
		t.Fatalf("dismiss should succeed once")
	}
	nb.Resolve(loading, LevelSuccess, "done")
	if n, ok := nb.Get(loading); !ok || n.Message != "done" {
		t.Fatalf("resolve after dismiss should re-post: %+v", n)
	}
}
