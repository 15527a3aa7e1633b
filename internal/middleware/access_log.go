package middleware

import (
	"fmt"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"hemisphere-atlas/internal/logger"
)

// AccessLog feeds chi's RequestLogger into the application logger, so access
// lines share the console format and the rotated log file.
type AccessLog struct {
	log logger.ILogger
}

func NewAccessLog(log logger.ILogger) *AccessLog {
	return &AccessLog{log: log}
}

func (a *AccessLog) NewLogEntry(r *http.Request) chimiddleware.LogEntry {
	return &accessEntry{
		log:       a.log,
		method:    r.Method,
		path:      r.URL.Path,
		remote:    r.RemoteAddr,
		requestID: r.Header.Get("X-Request-ID"),
	}
}

type accessEntry struct {
	log       logger.ILogger
	method    string
	path      string
	remote    string
	requestID string
}

func (e *accessEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	details := map[string]interface{}{
		"method":      e.method,
		"path":        e.path,
		"remote":      e.remote,
		"request_id":  e.requestID,
		"status":      status,
		"bytes":       bytes,
		"duration_ms": elapsed.Milliseconds(),
	}

	switch {
	case status >= http.StatusInternalServerError:
		e.log.Error("http", "request completed", details)
	case status >= http.StatusBadRequest:
		e.log.Warn("http", "request completed", details)
	default:
		e.log.Info("http", "request completed", details)
	}
}

func (e *accessEntry) Panic(v interface{}, stack []byte) {
	e.log.Error("http", "request panicked", map[string]interface{}{
		"method":     e.method,
		"path":       e.path,
		"request_id": e.requestID,
		"panic":      fmt.Sprint(v),
		"stack":      string(stack),
	})
}
