package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// SummaryRequest is the payload for summary generation. FileName is sent only
// when the text came from a loaded file.
type SummaryRequest struct {
	Text     string `json:"text"`
	FileName string `json:"file_name,omitempty"`
}

// SaveRequest persists a summary. An empty ID creates a new record.
type SaveRequest struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// SaveResult reports the stored id and whether it was created or updated.
type SaveResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Summary is a stored summary record.
type Summary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// GenerateSummary asks the summaries service for a clinical summary.
func (c *Client) GenerateSummary(ctx context.Context, in SummaryRequest) (string, error) {
	var out struct {
		Summary string `json:"summary"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.summariesURL+"/summaries/generate/", "generate summary", in, &out); err != nil {
		return "", err
	}
	if out.Summary == "" {
		return "", errors.New("summary response was empty")
	}
	return out.Summary, nil
}

// SaveSummary stores or updates a summary.
func (c *Client) SaveSummary(ctx context.Context, in SaveRequest) (*SaveResult, error) {
	var out SaveResult
	if err := c.doJSON(ctx, http.MethodPost, c.documentsURL+"/summaries/save/", "save summary", in, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID = in.ID
	}
	return &out, nil
}

// GetSummary fetches one stored summary.
func (c *Client) GetSummary(ctx context.Context, id string) (*Summary, error) {
	var out Summary
	endpoint := fmt.Sprintf("%s/summaries/get/%s", c.documentsURL, url.PathEscape(id))
	if err := c.doJSON(ctx, http.MethodGet, endpoint, "get summary", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSummaries returns up to limit stored summaries.
func (c *Client) ListSummaries(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 10
	}
	endpoint := c.documentsURL + "/summaries/list/?limit=" + strconv.Itoa(limit)
	var out []Summary
	if err := c.doJSON(ctx, http.MethodGet, endpoint, "list summaries", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
