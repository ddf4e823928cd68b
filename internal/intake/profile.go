// Package intake validates files picked or dropped by the user before they
// are uploaded or read for summarisation.
package intake

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MaxBytes is the per-file size limit.
const MaxBytes = 5 << 20

// Reason classifies why a file was refused.
type Reason int

const (
	ReasonUnsupportedType Reason = iota + 1
	ReasonTooLarge
	ReasonReadFailed
)

func (r Reason) String() string {
	switch r {
	case ReasonUnsupportedType:
		return "unsupported_type"
	case ReasonTooLarge:
		return "too_large"
	case ReasonReadFailed:
		return "read_failed"
	default:
		return "unknown"
	}
}

// Rejection is a file that failed validation.
type Rejection struct {
	File    string `json:"file"`
	Reason  Reason `json:"-"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (r *Rejection) Error() string { return r.Message }

func (r *Rejection) Unwrap() error { return r.Err }

// Profile is the acceptance policy for one kind of intake.
type Profile struct {
	Name     string
	Multiple bool
	MaxBytes int64
	// types are exact MIME types without parameters.
	types map[string]struct{}
	// extensions are accepted when the MIME type is not in types.
	extensions map[string]struct{}
	messages   func(name string, reason Reason) string
}

// KnowledgeBase accepts reference documents for the user collection.
var KnowledgeBase = Profile{
	Name:     "knowledge_base",
	Multiple: true,
	MaxBytes: MaxBytes,
	types: set(
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"text/plain",
		"text/csv",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	),
	extensions: set(".pdf", ".doc", ".docx", ".txt", ".csv", ".xlsx"),
	messages: func(name string, reason Reason) string {
		switch reason {
		case ReasonUnsupportedType:
			return "Unsupported file type: " + name
		case ReasonTooLarge:
			return fmt.Sprintf("File %s is too large (max 5MB).", name)
		default:
			return "Failed to read file " + name + "."
		}
	},
}

// Transcription accepts a single conversation transcript.
var Transcription = Profile{
	Name:       "transcription",
	MaxBytes:   MaxBytes,
	types:      set("text/plain", "application/json", "text/markdown"),
	extensions: set(".md"),
	messages: func(_ string, reason Reason) string {
		switch reason {
		case ReasonUnsupportedType:
			return "Unsupported file type. Please upload a .txt, .json, or .md file."
		case ReasonTooLarge:
			return "File is too large (max 5MB)."
		default:
			return "Failed to read file."
		}
	},
}

func set(values ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

// Accepts reports whether the type or extension is allowed.
func (p Profile) Accepts(name, mimeType string) bool {
	if _, ok := p.types[baseType(mimeType)]; ok {
		return true
	}
	_, ok := p.extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Validate checks type then size. A file that could not be read is reported
// as ReasonReadFailed.
func (p Profile) Validate(f *SelectedFile) *Rejection {
	if f == nil {
		return p.reject("", ReasonReadFailed, nil)
	}
	if !p.Accepts(f.Name, f.MIMEType) {
		return p.reject(f.Name, ReasonUnsupportedType, nil)
	}
	limit := p.MaxBytes
	if limit <= 0 {
		limit = MaxBytes
	}
	if f.Size > limit {
		return p.reject(f.Name, ReasonTooLarge, nil)
	}
	if f.readErr != nil {
		return p.reject(f.Name, ReasonReadFailed, f.readErr)
	}
	return nil
}

// ReadFailure builds the read-failure rejection for name.
func (p Profile) ReadFailure(name string, err error) *Rejection {
	return p.reject(name, ReasonReadFailed, err)
}

func (p Profile) reject(name string, reason Reason, err error) *Rejection {
	return &Rejection{File: name, Reason: reason, Message: p.messages(name, reason), Err: err}
}

func baseType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
