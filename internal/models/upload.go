package models

import "time"

// UploadRecord logs one document acknowledged by the ingestion endpoint.
type UploadRecord struct {
	ID          int64     `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	DocumentID  string    `json:"document_id"`
	FileName    string    `json:"file_name"`
	Synthesized bool      `json:"synthesized"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// MutationOutcome is the result of a collection mutation.
type MutationOutcome string

const (
	OutcomeSucceeded MutationOutcome = "succeeded"
	OutcomeFailed    MutationOutcome = "failed"
)

// MutationRecord is an audit entry for a delete or update on a collection.
type MutationRecord struct {
	ID           int64           `json:"id"`
	WorkspaceID  string          `json:"workspace_id"`
	CollectionID string          `json:"collection_id"`
	Action       string          `json:"action"`
	Outcome      MutationOutcome `json:"outcome"`
	Message      string          `json:"message"`
	CreatedAt    time.Time       `json:"created_at"`
}
