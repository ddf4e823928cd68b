package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// ErrNotFound matches any *HTTPError carrying a 404 status.
var ErrNotFound = errors.New("not found")

const networkErrorMessage = "network error"

// HTTPError is a response outside the 2xx range.
type HTTPError struct {
	StatusCode int
	Status     string
	// Detail is the backend's "detail" field rendered as text.
	Detail string
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if text := http.StatusText(e.StatusCode); text != "" {
		return text
	}
	if e.Status != "" {
		return e.Status
	}
	return "request failed"
}

func (e *HTTPError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// TransportError is a request that never produced a response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil || e.Err.Error() == "" {
		return networkErrorMessage
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Message returns the user-facing text for err: the backend detail, the
// status text or the transport error, in that order.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Error()
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Error()
	}
	return err.Error()
}

// Detail returns only the backend supplied detail, or "" when there is none.
func Detail(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Detail
	}
	return ""
}

// IsTransport reports whether err never reached the backend.
func IsTransport(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

func decodeHTTPError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Detail:     detailFromBody(body),
	}
}

// detailFromBody extracts "detail" from a JSON error body. String details are
// returned verbatim and structured ones as compact JSON.
func detailFromBody(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	raw := bytes.TrimSpace(payload.Detail)
	if bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return string(raw)
	}
	return compact.String()
}
