package backend

import (
	"context"
	"fmt"
	"net/http"
)

// CollectionMeta is the metadata the backend keeps per collection.
type CollectionMeta struct {
	// LastUpdated is nil when the backend reports null.
	LastUpdated *string `json:"last_updated"`
}

// ListCollections returns collection metadata keyed by collection id.
func (c *Client) ListCollections(ctx context.Context) (map[string]CollectionMeta, error) {
	out := make(map[string]CollectionMeta)
	if err := c.doJSON(ctx, http.MethodGet, c.documentsURL+"/collections", "list collections", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateCollection asks the backend to rebuild the collection behind suffix.
// The call can run for several minutes.
func (c *Client) UpdateCollection(ctx context.Context, suffix string) error {
	url := fmt.Sprintf("%s/collections/%s", c.documentsURL, suffix)
	return c.doJSON(ctx, http.MethodPost, url, "update collection", struct{}{}, nil)
}
