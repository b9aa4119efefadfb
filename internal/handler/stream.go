package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sakif/mymume/internal/apperror"
)

// Messages of the ingestion stream, one JSON object per line. The stream
// ends after the first text or error message.
type progressMessage struct {
	Type  string `json:"type"` // "progress"
	Count int    `json:"count"`
}

type textMessage struct {
	Type    string `json:"type"` // "text"
	Content string `json:"content"`
}

type streamError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ndjsonWriter writes newline-delimited JSON and flushes after every line.
// Progress may be reported from another goroutine, so writes are serialized,
// and close stops any write that arrives after the handler returned.
type ndjsonWriter struct {
	mu     sync.Mutex
	w      io.Writer
	rc     *http.ResponseController
	closed bool
	failed bool
}

// startNDJSON sends the stream headers. The server write timeout is lifted
// for this response because a scrape can outlast it.
func startNDJSON(w http.ResponseWriter) *ndjsonWriter {
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	return &ndjsonWriter{w: w, rc: rc}
}

// send writes one message. After the first failed write (client gone) it
// becomes a no-op; the caller keeps working regardless.
func (s *ndjsonWriter) send(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.failed {
		return
	}
	line, err := json.Marshal(v)
	if err != nil {
		return
	}
	if _, err := s.w.Write(append(line, '\n')); err != nil {
		s.failed = true
		return
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.failed = true
	}
}

func (s *ndjsonWriter) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// streamErrorFor renders err the way the stream reports failures: the
// user-facing message, and the upstream cause as details.
func streamErrorFor(err error, fallback string) streamError {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return streamError{Error: fallback}
	}
	msg := streamError{Error: appErr.Message}
	if appErr.Cause != nil {
		msg.Details = appErr.Cause.Error()
	}
	return msg
}
