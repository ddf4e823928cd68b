package workspace

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"scribedesk/internal/collections"
	"scribedesk/internal/redis"
	"scribedesk/internal/workflow"
)

// ErrNotFound is returned for an unknown or expired workspace id.
var ErrNotFound = errors.New("workspace not found")

const (
	defaultTTL     = time.Hour
	refreshTimeout = 30 * time.Second
)

type Options struct {
	Backend Backend
	Reader  workflow.FileReader
	// History is optional.
	History HistoryStore
	// Redis is optional. When set, drafts survive restarts and collection
	// changes are broadcast to other instances.
	Redis        *redis.Client
	TTL          time.Duration
	Logger       *slog.Logger
	BoardOptions []workflow.BoardOption
}

// Manager keeps the live workspaces and expires idle ones.
type Manager struct {
	opts     Options
	cache    *stateCache
	logger   *slog.Logger
	instance string
	now      func() time.Time

	mu         sync.Mutex
	workspaces map[string]*Workspace
	onEvict    func(id string)
}

func NewManager(opts Options) (*Manager, error) {
	if opts.Backend == nil {
		return nil, errors.New("backend required")
	}
	if opts.Reader == nil {
		return nil, errors.New("file reader required")
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		opts:       opts,
		cache:      newStateCache(opts.Redis, opts.TTL, opts.Logger),
		logger:     opts.Logger,
		instance:   uuid.NewString(),
		now:        time.Now,
		workspaces: make(map[string]*Workspace),
	}, nil
}

// OnEvict registers a hook run after a workspace is dropped.
func (m *Manager) OnEvict(fn func(id string)) {
	m.mu.Lock()
	m.onEvict = fn
	m.mu.Unlock()
}

// Create builds a new workspace and mounts its board.
func (m *Manager) Create(ctx context.Context) (*Workspace, error) {
	ws := m.build(uuid.NewString())
	if err := ws.Board.Mount(ctx); err != nil {
		m.logger.Warn("initial board sync incomplete", "workspace", ws.ID, "error", err)
	}
	m.mu.Lock()
	m.workspaces[ws.ID] = ws
	m.mu.Unlock()
	return ws, nil
}

// Get returns the live workspace behind id. A workspace lost to a restart is
// rebuilt when its draft is still cached.
func (m *Manager) Get(ctx context.Context, id string) (*Workspace, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	m.mu.Lock()
	ws, ok := m.workspaces[id]
	m.mu.Unlock()
	if ok {
		ws.touch(m.now())
		return ws, nil
	}

	draft, ok := m.cache.loadDraft(ctx, id)
	if !ok {
		return nil, ErrNotFound
	}
	ws = m.build(id)
	ws.Summarizer.Restore(draft)
	if err := ws.Board.Mount(ctx); err != nil {
		m.logger.Warn("board sync after resume incomplete", "workspace", id, "error", err)
	}

	m.mu.Lock()
	if existing, ok := m.workspaces[id]; ok {
		m.mu.Unlock()
		existing.touch(m.now())
		return existing, nil
	}
	m.workspaces[id] = ws
	m.mu.Unlock()
	m.logger.Info("workspace resumed from cache", "workspace", id)
	return ws, nil
}

func (m *Manager) build(id string) *Workspace {
	ws := New(id, m.opts.Backend, m.opts.Reader, m.opts.History, m.logger, m.opts.BoardOptions...)
	ws.touch(m.now())
	if m.cache != nil {
		ws.Summarizer.OnChange(func(d workflow.SummaryDraft) {
			ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
			defer cancel()
			m.cache.saveDraft(ctx, id, d)
		})
	}
	ws.Mutator.OnChange(func(cid collections.ID) {
		m.collectionsChanged(id, cid)
	})
	return ws
}

// Drop removes a workspace and its cached draft.
func (m *Manager) Drop(ctx context.Context, id string) bool {
	m.mu.Lock()
	_, ok := m.workspaces[id]
	delete(m.workspaces, id)
	fn := m.onEvict
	m.mu.Unlock()
	m.cache.dropDraft(ctx, id)
	if ok && fn != nil {
		fn(id)
	}
	return ok
}

// Len reports the number of live workspaces.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workspaces)
}

// Sweep evicts workspaces idle for longer than the TTL. Cached drafts expire
// on their own.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.opts.TTL)
	var evicted []string
	m.mu.Lock()
	for id, ws := range m.workspaces {
		if ws.LastSeen().Before(cutoff) {
			delete(m.workspaces, id)
			evicted = append(evicted, id)
		}
	}
	fn := m.onEvict
	m.mu.Unlock()
	for _, id := range evicted {
		m.logger.Debug("workspace expired", "workspace", id)
		if fn != nil {
			fn(id)
		}
	}
	return len(evicted)
}

// Run sweeps idle workspaces and, with redis, listens for collection
// changes from other instances. It blocks until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	if m.cache != nil {
		if err := m.cache.listen(ctx, m.applyChange); err != nil {
			return err
		}
	}
	interval := m.opts.TTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// collectionsChanged fans a mutation out to every other workspace.
func (m *Manager) collectionsChanged(origin string, cid collections.ID) {
	msg := changeMessage{Origin: m.instance, WorkspaceID: origin, CollectionID: string(cid)}
	if m.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
		defer cancel()
		err := m.cache.publishChange(ctx, msg)
		if err == nil {
			return
		}
		m.logger.Warn("collection change publish failed", "error", err)
	}
	m.applyChange(msg)
}

func (m *Manager) applyChange(msg changeMessage) {
	m.mu.Lock()
	targets := make([]*Workspace, 0, len(m.workspaces))
	for id, ws := range m.workspaces {
		if msg.Origin == m.instance && id == msg.WorkspaceID {
			continue
		}
		targets = append(targets, ws)
	}
	m.mu.Unlock()

	for _, ws := range targets {
		go func(ws *Workspace) {
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			defer cancel()
			if collections.ID(msg.CollectionID) == collections.UserDocuments {
				_ = ws.Board.Mount(ctx)
				return
			}
			_ = ws.Board.RefreshCollections(ctx)
		}(ws)
	}
}
