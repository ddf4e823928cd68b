package workflow

import (
	"strconv"
	"sync"
	"time"
)

// Level is the severity of a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelLoading Level = "loading"
)

// NoticeID is the handle used to replace a notice in place.
type NoticeID string

// Notice is one transient, dismissable message shown to the user.
type Notice struct {
	ID        NoticeID  `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Notifier surfaces messages to the user.
type Notifier interface {
	Info(msg string) NoticeID
	Success(msg string) NoticeID
	Error(msg string) NoticeID
	// Loading posts a persistent notice that stays until resolved.
	Loading(msg string) NoticeID
	// Resolve replaces the notice behind id instead of stacking a new one.
	Resolve(id NoticeID, level Level, msg string)
}

const defaultNoticeCap = 50

// NoticeBoard keeps notices in memory for one workspace.
type NoticeBoard struct {
	mu      sync.Mutex
	seq     int64
	notices []Notice
	limit   int
	now     func() time.Time
}

func NewNoticeBoard() *NoticeBoard {
	return &NoticeBoard{limit: defaultNoticeCap, now: time.Now}
}

func (b *NoticeBoard) Info(msg string) NoticeID    { return b.post(LevelInfo, msg) }
func (b *NoticeBoard) Success(msg string) NoticeID { return b.post(LevelSuccess, msg) }
func (b *NoticeBoard) Error(msg string) NoticeID   { return b.post(LevelError, msg) }
func (b *NoticeBoard) Loading(msg string) NoticeID { return b.post(LevelLoading, msg) }

func (b *NoticeBoard) post(level Level, msg string) NoticeID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	now := b.now()
	id := NoticeID(strconv.FormatInt(b.seq, 10))
	b.notices = append(b.notices, Notice{ID: id, Level: level, Message: msg, CreatedAt: now, UpdatedAt: now})
	b.trimLocked()
	return id
}

// trimLocked drops the oldest settled notices once the cap is exceeded.
// Loading notices are kept until resolved.
func (b *NoticeBoard) trimLocked() {
	for len(b.notices) > b.limit {
		dropped := false
		for i, n := range b.notices {
			if n.Level != LevelLoading {
				b.notices = append(b.notices[:i], b.notices[i+1:]...)
				dropped = true
				break
			}
		}
		if !dropped {
			return
		}
	}
}

func (b *NoticeBoard) Resolve(id NoticeID, level Level, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.notices {
		if b.notices[i].ID == id {
			b.notices[i].Level = level
			b.notices[i].Message = msg
			b.notices[i].UpdatedAt = b.now()
			return
		}
	}
	// Dismissed while loading: show the outcome under the same handle.
	now := b.now()
	b.notices = append(b.notices, Notice{ID: id, Level: level, Message: msg, CreatedAt: now, UpdatedAt: now})
	b.trimLocked()
}

// Dismiss removes a notice. It reports whether the notice existed.
func (b *NoticeBoard) Dismiss(id NoticeID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.notices {
		if b.notices[i].ID == id {
			b.notices = append(b.notices[:i], b.notices[i+1:]...)
			return true
		}
	}
	return false
}

// List returns a copy of the current notices, oldest first.
func (b *NoticeBoard) List() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Notice, len(b.notices))
	copy(out, b.notices)
	return out
}

// Get returns the notice behind id.
func (b *NoticeBoard) Get(id NoticeID) (Notice, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, n := range b.notices {
		if n.ID == id {
			return n, true
		}
	}
	return Notice{}, false
}
