package assistant

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// TranscriptEvent is one logged conversation event.
type TranscriptEvent struct {
	Timestamp string         `json:"ts"`
	SessionID string         `json:"session_id"`
	Channel   string         `json:"channel"`
	Direction string         `json:"direction"`
	EventType string         `json:"event_type"`
	Content   string         `json:"content"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// TranscriptLogConfig controls NDJSON transcript logging.
type TranscriptLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// TranscriptLogger appends conversation events to per-session NDJSON
// files, and optionally to one global file. Writes happen on a single
// background goroutine; when the queue is full events are dropped (and
// counted) rather than blocking the request path.
type TranscriptLogger interface {
	Log(event TranscriptEvent)
	Close() error
}

type noopTranscriptLogger struct{}

func (noopTranscriptLogger) Log(TranscriptEvent) {}
func (noopTranscriptLogger) Close() error        { return nil }

type fileTranscriptLogger struct {
	cfg     TranscriptLogConfig
	logger  *slog.Logger
	queue   chan TranscriptEvent
	done    chan struct{}
	dropped int64
	mu      sync.Mutex
	closed  bool
}

// NewTranscriptLogger creates a transcript logger. A disabled config
// yields a no-op logger so call sites never need nil checks.
func NewTranscriptLogger(cfg TranscriptLogConfig, logger *slog.Logger) (TranscriptLogger, error) {
	if !cfg.Enabled {
		return noopTranscriptLogger{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, err
	}

	l := &fileTranscriptLogger{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan TranscriptEvent, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Log enqueues an event for writing. Never blocks.
func (l *fileTranscriptLogger) Log(event TranscriptEvent) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	select {
	case l.queue <- event:
	default:
		l.mu.Lock()
		l.dropped++
		dropped := l.dropped
		l.mu.Unlock()
		if dropped%100 == 1 {
			l.logger.Warn("transcript log queue full, dropping events", "dropped_total", dropped)
		}
	}
}

func (l *fileTranscriptLogger) run() {
	defer close(l.done)
	for event := range l.queue {
		l.write(event)
	}
}

func (l *fileTranscriptLogger) write(event TranscriptEvent) {
	line, err := json.Marshal(event)
	if err != nil {
		l.logger.Warn("failed to marshal transcript event", "error", err)
		return
	}
	line = append(line, '\n')

	path := filepath.Join(l.cfg.Dir, sanitizeFilename(event.SessionID)+".ndjson")
	if err := appendFile(path, line); err != nil {
		l.logger.Warn("failed to append transcript event", "path", path, "error", err)
	}

	if l.cfg.GlobalEnabled && l.cfg.GlobalPath != "" {
		if err := appendFile(l.cfg.GlobalPath, line); err != nil {
			l.logger.Warn("failed to append global transcript event", "path", l.cfg.GlobalPath, "error", err)
		}
	}
}

// Close drains the queue and stops the writer.
func (l *fileTranscriptLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	close(l.queue)
	<-l.done
	return nil
}

func appendFile(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(line)
	return err
}

// sanitizeFilename keeps session tokens filesystem-safe.
func sanitizeFilename(name string) string {
	if name == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
