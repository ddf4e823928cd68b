package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"scribedesk/internal/backend"
	"scribedesk/internal/collections"
)

const (
	unknownTimestamp  = "Unknown"
	deletedCollection = "Collection deleted"
	deletedSentinel   = "deleted"
	unknownFileTitle  = "Unknown File"

	DefaultDateLayout      = "02/01/2006"
	DefaultTimestampLayout = "02/01/2006, 15:04:05"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// BoardClient is the backend surface the board reads from.
type BoardClient interface {
	ListDocuments(ctx context.Context) ([]backend.Document, error)
	ListCollections(ctx context.Context) (map[string]backend.CollectionMeta, error)
}

// DocumentRow is an UploadedDocumentRecord formatted for display.
type DocumentRow struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	UploadDate string `json:"upload_date"`
}

// CollectionRow is a named collection with its formatted metadata.
type CollectionRow struct {
	ID          collections.ID `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Kind        string         `json:"kind"`
	Updatable   bool           `json:"updatable"`
	LastUpdated string         `json:"last_updated"`
}

// BoardSnapshot is a copy of the board for rendering.
type BoardSnapshot struct {
	Documents   []DocumentRow   `json:"documents"`
	Collections []CollectionRow `json:"collections"`
	SyncedAt    time.Time       `json:"synced_at"`
}

// Board keeps the document list and collection metadata in sync with the
// backend. Fetch failures are logged and leave the previous state in place.
type Board struct {
	client BoardClient
	logger *slog.Logger

	dateLayout      string
	timestampLayout string
	location        *time.Location
	now             func() time.Time

	mu          sync.RWMutex
	documents   []DocumentRow
	collections []CollectionRow
	syncedAt    time.Time
}

// BoardOption customises a Board.
type BoardOption func(*Board)

// WithLayouts sets the date layout for documents and the timestamp layout for collections.
func WithLayouts(date, timestamp string) BoardOption {
	return func(b *Board) {
		if date != "" {
			b.dateLayout = date
		}
		if timestamp != "" {
			b.timestampLayout = timestamp
		}
	}
}

// WithLocation renders timestamps in loc.
func WithLocation(loc *time.Location) BoardOption {
	return func(b *Board) {
		if loc != nil {
			b.location = loc
		}
	}
}

func WithBoardLogger(logger *slog.Logger) BoardOption {
	return func(b *Board) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func NewBoard(client BoardClient, opts ...BoardOption) *Board {
	b := &Board{
		client:          client,
		logger:          slog.Default(),
		dateLayout:      DefaultDateLayout,
		timestampLayout: DefaultTimestampLayout,
		location:        time.Local,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.collections = b.collectionRows(nil)
	return b
}

// Mount issues the document and collection fetches concurrently. A failure of
// one does not cancel the other. The returned error is informational.
func (b *Board) Mount(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return b.RefreshDocuments(ctx) })
	g.Go(func() error { return b.RefreshCollections(ctx) })
	return g.Wait()
}

// RefreshDocuments replaces the document list with the backend's.
func (b *Board) RefreshDocuments(ctx context.Context) error {
	docs, err := b.client.ListDocuments(ctx)
	if err != nil {
		b.logger.Warn("fetch documents failed", "error", err)
		return fmt.Errorf("fetch documents: %w", err)
	}
	rows := make([]DocumentRow, 0, len(docs))
	for _, d := range docs {
		title := d.Title
		if title == "" {
			title = d.ID
		}
		rows = append(rows, DocumentRow{ID: d.ID, Title: title, UploadDate: b.formatDate(d.UploadDate)})
	}
	b.mu.Lock()
	b.documents = rows
	b.syncedAt = b.now()
	b.mu.Unlock()
	return nil
}

// RefreshCollections replaces the collection metadata with the backend's.
func (b *Board) RefreshCollections(ctx context.Context) error {
	meta, err := b.client.ListCollections(ctx)
	if err != nil {
		b.logger.Warn("fetch collections failed", "error", err)
		return fmt.Errorf("fetch collections: %w", err)
	}
	rows := b.collectionRows(meta)
	b.mu.Lock()
	b.collections = rows
	b.syncedAt = b.now()
	b.mu.Unlock()
	return nil
}

func (b *Board) collectionRows(meta map[string]backend.CollectionMeta) []CollectionRow {
	var rows []CollectionRow
	for _, e := range collections.All() {
		if e.Kind == collections.KindUser {
			continue
		}
		rows = append(rows, CollectionRow{
			ID:          e.ID,
			Name:        e.Name,
			Description: e.Description,
			Kind:        e.Kind.String(),
			Updatable:   e.Updatable(),
			LastUpdated: b.formatCollectionTime(meta, e.ID),
		})
	}
	return rows
}

func (b *Board) formatCollectionTime(meta map[string]backend.CollectionMeta, id collections.ID) string {
	m, ok := meta[string(id)]
	if !ok {
		return unknownTimestamp
	}
	if m.LastUpdated == nil || strings.EqualFold(strings.TrimSpace(*m.LastUpdated), deletedSentinel) {
		return deletedCollection
	}
	if t, ok := parseTimestamp(*m.LastUpdated); ok {
		return t.In(b.location).Format(b.timestampLayout)
	}
	return unknownTimestamp
}

func (b *Board) formatDate(raw string) string {
	if t, ok := parseTimestamp(raw); ok {
		return t.In(b.location).Format(b.dateLayout)
	}
	return unknownTimestamp
}

// parseTimestamp accepts ISO-8601 variants. Values without a zone are UTC.
func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AppendUploaded adds a freshly uploaded document until the next refetch.
func (b *Board) AppendUploaded(doc UploadedDocument) DocumentRow {
	title := doc.Filename
	if title == "" {
		title = unknownFileTitle
	}
	row := DocumentRow{ID: doc.ID, Title: title, UploadDate: b.now().In(b.location).Format(b.dateLayout)}
	b.mu.Lock()
	b.documents = append(b.documents, row)
	b.mu.Unlock()
	return row
}

// ClearDocuments empties the local document list.
func (b *Board) ClearDocuments() {
	b.mu.Lock()
	b.documents = nil
	b.mu.Unlock()
}

func (b *Board) Snapshot() BoardSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	docs := make([]DocumentRow, len(b.documents))
	copy(docs, b.documents)
	cols := make([]CollectionRow, len(b.collections))
	copy(cols, b.collections)
	return BoardSnapshot{Documents: docs, Collections: cols, SyncedAt: b.syncedAt}
}
