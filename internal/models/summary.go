package models

import "time"

// SummaryRecord is a locally logged copy of a summary saved to the backend.
type SummaryRecord struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	SourceFile  string    `json:"source_file,omitempty"`
	Revisions   int       `json:"revisions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
