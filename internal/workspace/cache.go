package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"scribedesk/internal/redis"
	"scribedesk/internal/workflow"
)

const (
	draftKeyPrefix     = "scribedesk:draft:"
	collectionsChannel = "scribedesk:collections"
	defaultDraftTTL    = time.Hour
	cacheOpTimeout     = 2 * time.Second
)

// changeMessage announces that a collection was mutated from some workspace.
type changeMessage struct {
	Origin       string `json:"origin"`
	WorkspaceID  string `json:"workspace_id"`
	CollectionID string `json:"collection_id"`
}

// stateCache keeps summary drafts in redis and carries collection change
// broadcasts between gateway instances.
type stateCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func newStateCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *stateCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultDraftTTL
	}
	return &stateCache{client: client, ttl: ttl, logger: logger}
}

func draftKey(workspaceID string) string {
	return draftKeyPrefix + workspaceID
}

func (c *stateCache) saveDraft(ctx context.Context, workspaceID string, d workflow.SummaryDraft) {
	if c == nil {
		return
	}
	data, err := json.Marshal(d)
	if err != nil {
		c.logger.Warn("draft marshal failed", "workspace", workspaceID, "error", err)
		return
	}
	if err := c.client.Set(ctx, draftKey(workspaceID), data, c.ttl); err != nil {
		c.logger.Warn("draft cache write failed", "workspace", workspaceID, "error", err)
	}
}

func (c *stateCache) loadDraft(ctx context.Context, workspaceID string) (workflow.SummaryDraft, bool) {
	if c == nil {
		return workflow.SummaryDraft{}, false
	}
	raw, err := c.client.Get(ctx, draftKey(workspaceID))
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			c.logger.Warn("draft cache read failed", "workspace", workspaceID, "error", err)
		}
		return workflow.SummaryDraft{}, false
	}
	var d workflow.SummaryDraft
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		c.logger.Warn("draft decode failed", "workspace", workspaceID, "error", err)
		return workflow.SummaryDraft{}, false
	}
	return d, true
}

func (c *stateCache) dropDraft(ctx context.Context, workspaceID string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, draftKey(workspaceID)); err != nil && !errors.Is(err, redis.ErrCacheMiss) {
		c.logger.Warn("draft cache delete failed", "workspace", workspaceID, "error", err)
	}
}

func (c *stateCache) publishChange(ctx context.Context, msg changeMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	return c.client.Publish(ctx, collectionsChannel, payload)
}

// listen delivers every change broadcast to handler until ctx is done.
func (c *stateCache) listen(ctx context.Context, handler func(changeMessage)) error {
	return c.client.Subscribe(ctx, collectionsChannel, func(payload string) {
		var msg changeMessage
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			c.logger.Warn("collection change decode failed", "error", err)
			return
		}
		handler(msg)
	})
}
