package backend

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// Document is one entry of the user's document collection.
type Document struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	// UploadDate is the raw timestamp, empty when the backend omitted it.
	UploadDate string `json:"uploadDate"`
}

// UploadedFile acknowledges one file accepted by the backend.
type UploadedFile struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

// UploadResult is the backend's answer to an upload. Files is nil when the
// backend did not report per-file results.
type UploadResult struct {
	Message string
	Files   []UploadedFile
}

// PartialSuccess reports whether the upload succeeded without per-file ids.
func (r *UploadResult) PartialSuccess() bool {
	return r != nil && r.Files == nil
}

// FilePart is a file that can be streamed into a multipart upload.
type FilePart interface {
	FileName() string
	Open() (io.ReadCloser, error)
}

type documentPayload struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	UploadDate string `json:"uploadDate"`
	LegacyDate string `json:"upload_date"`
}

// ListDocuments returns the documents in the user collection.
func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	var payload []documentPayload
	if err := c.doJSON(ctx, http.MethodGet, c.documentsURL+"/documents", "list documents", nil, &payload); err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(payload))
	for _, p := range payload {
		d := Document{ID: p.ID, Title: p.Title, UploadDate: p.UploadDate}
		if d.UploadDate == "" {
			d.UploadDate = p.LegacyDate
		}
		if d.Title == "" {
			d.Title = d.ID
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// UploadDocuments sends every file in one multipart request using the
// repeatable "files" field.
func (c *Client) UploadDocuments(ctx context.Context, files []FilePart) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("upload documents: no files")
	}
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeParts(writer, files))
	}()

	req, err := c.newRequest(ctx, http.MethodPost, c.documentsURL+"/documents/upload/", pr, writer.FormDataContentType())
	if err != nil {
		pr.Close()
		return nil, err
	}
	var payload struct {
		Message       string          `json:"message"`
		UploadedFiles *[]UploadedFile `json:"uploaded_files"`
	}
	if err := c.do(req, "upload documents", &payload); err != nil {
		pr.Close()
		return nil, err
	}
	result := &UploadResult{Message: payload.Message}
	if payload.UploadedFiles != nil {
		result.Files = *payload.UploadedFiles
		if result.Files == nil {
			result.Files = []UploadedFile{}
		}
	}
	return result, nil
}

func writeParts(writer *multipart.Writer, files []FilePart) error {
	for _, f := range files {
		part, err := writer.CreateFormFile("files", f.FileName())
		if err != nil {
			return fmt.Errorf("create multipart file: %w", err)
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", f.FileName(), err)
		}
		_, err = io.Copy(part, rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("copy %s: %w", f.FileName(), err)
		}
	}
	return writer.Close()
}

// DeleteUserDocuments removes every document the user uploaded.
func (c *Client) DeleteUserDocuments(ctx context.Context) error {
	return c.DeleteCollection(ctx, "user")
}

// DeleteCollection removes the collection behind suffix.
func (c *Client) DeleteCollection(ctx context.Context, suffix string) error {
	url := fmt.Sprintf("%s/documents/collections/%s", c.documentsURL, suffix)
	return c.doJSON(ctx, http.MethodDelete, url, "delete collection", nil, nil)
}
