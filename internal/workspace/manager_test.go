package workspace

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"scribedesk/internal/backend"
	"scribedesk/internal/collections"
	"scribedesk/internal/config"
	"scribedesk/internal/intake"
	"scribedesk/internal/models"
	"scribedesk/internal/redis"
	"scribedesk/internal/workflow"
)

type fakeBackend struct {
	mu        sync.Mutex
	docs      []backend.Document
	meta      map[string]backend.CollectionMeta
	metaCalls int
	updateErr error
	summary   string
}

func (f *fakeBackend) ListDocuments(ctx context.Context) ([]backend.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs, nil
}

func (f *fakeBackend) ListCollections(ctx context.Context) (map[string]backend.CollectionMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaCalls++
	return f.meta, nil
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metaCalls
}

func (f *fakeBackend) UploadDocuments(ctx context.Context, files []backend.FilePart) (*backend.UploadResult, error) {
	res := &backend.UploadResult{Message: "ok"}
	for i, part := range files {
		rc, err := part.Open()
		if err != nil {
			return nil, err
		}
		_, _ = io.Copy(io.Discard, rc)
		rc.Close()
		res.Files = append(res.Files, backend.UploadedFile{ID: "doc-" + strconv.Itoa(i), Filename: part.FileName()})
	}
	return res, nil
}

func (f *fakeBackend) DeleteUserDocuments(ctx context.Context) error { return nil }

func (f *fakeBackend) DeleteCollection(ctx context.Context, suffix string) error { return nil }

func (f *fakeBackend) UpdateCollection(ctx context.Context, suffix string) error {
	return f.updateErr
}

func (f *fakeBackend) GenerateSummary(ctx context.Context, in backend.SummaryRequest) (string, error) {
	return f.summary, nil
}

func (f *fakeBackend) SaveSummary(ctx context.Context, in backend.SaveRequest) (*backend.SaveResult, error) {
	return &backend.SaveResult{ID: "sum-9", Status: "created"}, nil
}

type fakeReader struct{}

func (fakeReader) ReadText(ctx context.Context, f *intake.SelectedFile) (string, error) {
	return "transcript", nil
}

type memoryHistory struct {
	mu        sync.Mutex
	summaries []models.SummaryRecord
	uploads   []models.UploadRecord
	mutations []models.MutationRecord
}

func (h *memoryHistory) RecordSummary(ctx context.Context, rec models.SummaryRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.summaries = append(h.summaries, rec)
	return nil
}

func (h *memoryHistory) RecordUpload(ctx context.Context, rec models.UploadRecord) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.uploads = append(h.uploads, rec)
	return int64(len(h.uploads)), nil
}

func (h *memoryHistory) RecordMutation(ctx context.Context, rec models.MutationRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mutations = append(h.mutations, rec)
	return nil
}

func yes() workflow.Confirmer {
	return workflow.ConfirmFunc(func(ctx context.Context, prompt string) bool { return true })
}

func newTestManager(t *testing.T, be *fakeBackend, history HistoryStore) *Manager {
	t.Helper()
	m, err := NewManager(Options{Backend: be, Reader: fakeReader{}, History: history, TTL: time.Minute})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestCreateAndGet(t *testing.T) {
	be := &fakeBackend{docs: []backend.Document{{ID: "d1", Title: "Referral.pdf", UploadDate: "2024-03-01T10:00:00Z"}}}
	m := newTestManager(t, be, nil)
	ctx := context.Background()

	ws, err := m.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	snap := ws.Board.Snapshot()
	if len(snap.Documents) != 1 || snap.Documents[0].Title != "Referral.pdf" {
		t.Fatalf("board not mounted: %+v", snap.Documents)
	}

	got, err := m.Get(ctx, ws.ID)
	if err != nil || got != ws {
		t.Fatalf("get mismatch: %v", err)
	}
	if _, err := m.Get(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.Get(ctx, "0b7c5a36-2f43-4b8e-9d61-6f0cbb4b8e11"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestSweepEvictsIdleWorkspaces(t *testing.T) {
	m := newTestManager(t, &fakeBackend{}, nil)
	ctx := context.Background()

	var evicted []string
	m.OnEvict(func(id string) { evicted = append(evicted, id) })

	stale, _ := m.Create(ctx)
	base := time.Now()
	m.now = func() time.Time { return base.Add(2 * time.Minute) }
	fresh, _ := m.Create(ctx)

	if n := m.Sweep(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if len(evicted) != 1 || evicted[0] != stale.ID {
		t.Fatalf("unexpected evictions %v", evicted)
	}
	if _, err := m.Get(ctx, fresh.ID); err != nil {
		t.Fatalf("fresh workspace evicted: %v", err)
	}
	if !m.Drop(ctx, fresh.ID) || m.Len() != 0 {
		t.Fatalf("drop failed")
	}
}

func TestMutationRefreshesOtherWorkspaces(t *testing.T) {
	be := &fakeBackend{}
	m := newTestManager(t, be, nil)
	ctx := context.Background()

	a, _ := m.Create(ctx)
	_, _ = m.Create(ctx)
	before := be.calls()

	if err := a.DeleteCollection(ctx, collections.NiceKnowledge, yes()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// one refresh for the origin plus one for the other workspace
	deadline := time.Now().Add(2 * time.Second)
	for be.calls() < before+2 {
		if time.Now().After(deadline) {
			t.Fatalf("other workspace not refreshed: %d calls", be.calls()-before)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHistoryRecording(t *testing.T) {
	be := &fakeBackend{summary: "## Plan\nRest", updateErr: &backend.HTTPError{StatusCode: 500, Status: "500 Internal Server Error"}}
	history := &memoryHistory{}
	m := newTestManager(t, be, history)
	ctx := context.Background()
	ws, _ := m.Create(ctx)

	ws.Uploads.Select(intake.FromBytes("notes.txt", "text/plain", []byte("hello")))
	if _, err := ws.Uploads.Upload(ctx); err != nil {
		t.Fatalf("upload: %v", err)
	}

	ws.Summarizer.SetText("patient presents with cough")
	if _, err := ws.Summarizer.Summarize(ctx); err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if err := ws.Summarizer.BeginEdit(); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	if _, err := ws.Summarizer.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}

	_, run, err := ws.StartUpdate(collections.MiriadKnowledge)
	if err != nil {
		t.Fatalf("start update: %v", err)
	}
	if err := run(ctx); err == nil {
		t.Fatalf("expected update failure")
	}

	declined := workflow.ConfirmFunc(func(ctx context.Context, prompt string) bool { return false })
	if err := ws.DeleteCollection(ctx, collections.MiriadKnowledge, declined); !errors.Is(err, workflow.ErrDeclined) {
		t.Fatalf("expected ErrDeclined, got %v", err)
	}

	history.mu.Lock()
	defer history.mu.Unlock()
	if len(history.uploads) != 1 || history.uploads[0].FileName != "notes.txt" || history.uploads[0].WorkspaceID != ws.ID {
		t.Fatalf("upload not recorded: %+v", history.uploads)
	}
	if len(history.summaries) != 1 || history.summaries[0].ID != "sum-9" || history.summaries[0].Title != workflow.DefaultSummaryTitle {
		t.Fatalf("summary not recorded: %+v", history.summaries)
	}
	if len(history.mutations) != 1 {
		t.Fatalf("expected only the attempted update to be recorded: %+v", history.mutations)
	}
	got := history.mutations[0]
	if got.Action != "update" || got.Outcome != models.OutcomeFailed || got.Message != "Failed to update miriad_knowledge collection" {
		t.Fatalf("unexpected mutation record %+v", got)
	}
}

func TestDraftSurvivesRestart(t *testing.T) {
	client := newTestRedis(t)
	be := &fakeBackend{summary: "Summary body"}
	ctx := context.Background()

	first, err := NewManager(Options{Backend: be, Reader: fakeReader{}, Redis: client, TTL: time.Minute})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	ws, _ := first.Create(ctx)
	ws.Summarizer.SetText("cached transcript")
	if _, err := ws.Summarizer.Summarize(ctx); err != nil {
		t.Fatalf("summarize: %v", err)
	}

	second, _ := NewManager(Options{Backend: be, Reader: fakeReader{}, Redis: client, TTL: time.Minute})
	resumed, err := second.Get(ctx, ws.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	d := resumed.Summarizer.Snapshot()
	if d.Input != "cached transcript" || d.Summary != "Summary body" || d.Phase != workflow.PhaseReady {
		t.Fatalf("draft not restored: %+v", d)
	}

	second.Drop(ctx, ws.ID)
	third, _ := NewManager(Options{Backend: be, Reader: fakeReader{}, Redis: client, TTL: time.Minute})
	if _, err := third.Get(ctx, ws.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected dropped draft to be gone, got %v", err)
	}
}

func TestCollectionChangeBroadcast(t *testing.T) {
	client := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	beA := &fakeBackend{}
	beB := &fakeBackend{}
	a, _ := NewManager(Options{Backend: beA, Reader: fakeReader{}, Redis: client, TTL: time.Minute})
	b, _ := NewManager(Options{Backend: beB, Reader: fakeReader{}, Redis: client, TTL: time.Minute})
	go b.Run(ctx)
	time.Sleep(100 * time.Millisecond)

	wsA, _ := a.Create(ctx)
	_, _ = b.Create(ctx)
	before := beB.calls()

	if err := wsA.DeleteCollection(ctx, collections.MiriadKnowledge, yes()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for beB.calls() == before {
		if time.Now().After(deadline) {
			t.Fatalf("remote workspace not refreshed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed workspace tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi port: %v", err)
	}
	client, err := redis.NewRedisClient(&config.Config{Redis: config.RedisConfig{Host: host, Port: port}})
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Raw().FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush db: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}
