package intake

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// SelectedFile is a file chosen by the user. Content is read lazily.
type SelectedFile struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mime_type"`
	Path     string `json:"-"`

	open    func() (io.ReadCloser, error)
	readErr error
}

// FileName returns the base name sent to the backend.
func (f *SelectedFile) FileName() string { return f.Name }

// Open returns a fresh reader over the file content.
func (f *SelectedFile) Open() (io.ReadCloser, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	if f.open == nil {
		return nil, fmt.Errorf("file %s has no content", f.Name)
	}
	return f.open()
}

var extensionTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".json": "application/json",
	".md":   "text/markdown",
}

// resolveType prefers the declared type, then the extension, then sniffing.
func resolveType(name, declared string, head []byte) string {
	if declared = baseType(declared); declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	if len(head) == 0 {
		return ""
	}
	return baseType(mimetype.Detect(head).String())
}

// FromBytes wraps in-memory content.
func FromBytes(name, declaredType string, data []byte) *SelectedFile {
	name = filepath.Base(name)
	return &SelectedFile{
		Name:     name,
		Size:     int64(len(data)),
		MIMEType: resolveType(name, declaredType, data),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FromPath describes a local file without reading it fully.
func FromPath(path string) (*SelectedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	f := &SelectedFile{
		Name: filepath.Base(path),
		Size: info.Size(),
		Path: path,
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
	var head []byte
	if fh, err := os.Open(path); err == nil {
		buf := make([]byte, 3072)
		n, _ := io.ReadFull(fh, buf)
		fh.Close()
		head = buf[:n]
	} else {
		f.readErr = err
	}
	f.MIMEType = resolveType(f.Name, "", head)
	return f, nil
}

// FromMultipart copies an uploaded form file into memory so the selection
// outlives the request. Files over the limit are only described.
func FromMultipart(fh *multipart.FileHeader) *SelectedFile {
	name := filepath.Base(fh.Filename)
	declared := fh.Header.Get("Content-Type")
	if fh.Size > MaxBytes {
		return &SelectedFile{
			Name:     name,
			Size:     fh.Size,
			MIMEType: resolveType(name, declared, nil),
			readErr:  fmt.Errorf("file %s exceeds %d bytes", name, MaxBytes),
		}
	}
	src, err := fh.Open()
	if err != nil {
		return &SelectedFile{Name: name, Size: fh.Size, MIMEType: resolveType(name, declared, nil), readErr: err}
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, MaxBytes+1))
	if err != nil {
		return &SelectedFile{Name: name, Size: fh.Size, MIMEType: resolveType(name, declared, nil), readErr: err}
	}
	return FromBytes(name, declared, data)
}
