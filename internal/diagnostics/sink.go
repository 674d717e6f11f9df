// Package diagnostics ships log entries in batches to a remote collection
// endpoint.
package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Limits of the collection endpoint's columns.
const (
	MaxMessageLength = 64
	MaxCodeLength    = 65000
)

const (
	defaultMaxAttempts   = 3
	defaultRetryDelay    = time.Second
	defaultFlushInterval = 5 * time.Second
	defaultHTTPTimeout   = 10 * time.Second
	errorMessage         = "Logger.error"
)

// Entry is one logged event.
type Entry struct {
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
	Code    string    `json:"code,omitempty"`
	Time    time.Time `json:"time"`
}

// UserInfo identifies the installation and process that produced a batch.
type UserInfo struct {
	InstallationID string `json:"installationID"`
	SessionID      string `json:"sessionID"`
	Tool           string `json:"tool"`
}

// Batch is the body of one POST.
type Batch struct {
	UserInfo UserInfo `json:"userInfo"`
	Logs     []Entry  `json:"logs"`
}

// Config configures a Sink.
type Config struct {
	// Endpoint receives batches as JSON POST requests.
	Endpoint string
	// InstallationID is a stable id for this machine. A random one is used
	// when empty.
	InstallationID string
	// FlushInterval is the period of Run. Defaults to 5s.
	FlushInterval time.Duration
	// MaxAttempts bounds deliveries of one batch. Defaults to 3.
	MaxAttempts int
	// RetryDelay separates attempts. Defaults to 1s.
	RetryDelay time.Duration
	// Client sends requests. Defaults to a client with a 10s timeout.
	Client *http.Client
	Logger *slog.Logger
}

// Sink buffers entries and posts them in batches. Safe for concurrent use.
type Sink struct {
	endpoint    string
	userInfo    UserInfo
	interval    time.Duration
	maxAttempts int
	retryDelay  time.Duration
	client      *http.Client
	logger      *slog.Logger
	now         func() time.Time

	mu      sync.Mutex
	pending []Entry

	loggingError atomic.Bool
}

// NewSink validates cfg and returns a sink.
func NewSink(cfg Config) (*Sink, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("diagnostics endpoint is required")
	}
	if cfg.MaxAttempts < 0 || cfg.RetryDelay < 0 || cfg.FlushInterval < 0 {
		return nil, fmt.Errorf("diagnostics attempts, retry delay and flush interval must be non-negative")
	}
	installation := cfg.InstallationID
	if installation == "" {
		installation = uuid.NewString()
	}
	s := &Sink{
		endpoint:    cfg.Endpoint,
		userInfo:    UserInfo{InstallationID: installation, SessionID: uuid.NewString(), Tool: "block-replay"},
		interval:    cfg.FlushInterval,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		client:      cfg.Client,
		logger:      cfg.Logger,
		now:         time.Now,
	}
	if s.interval == 0 {
		s.interval = defaultFlushInterval
	}
	if s.maxAttempts == 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.retryDelay == 0 {
		s.retryDelay = defaultRetryDelay
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// UserInfo returns the identity attached to every batch.
func (s *Sink) UserInfo() UserInfo {
	return s.userInfo
}

// Log queues an entry for the next flush.
func (s *Sink) Log(message string, data any, code string) {
	s.enqueue(Entry{Message: message, Data: data, Code: code, Time: s.now()})
}

func (s *Sink) enqueue(e Entry) {
	s.mu.Lock()
	s.pending = append(s.pending, e)
	s.mu.Unlock()
}

// Pending returns the number of queued entries.
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Run flushes every flush interval until ctx ends, then flushes once more.
func (s *Sink) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), defaultHTTPTimeout)
			if err := s.Flush(final); err != nil {
				s.logger.Warn("final diagnostics flush failed", "error", err)
			}
			cancel()
			return
		case <-ticker.C:
			if err := s.Flush(ctx); err != nil {
				s.logger.Warn("diagnostics flush failed", "error", err)
			}
		}
	}
}

// Flush posts every queued entry as one batch. Oversized fields are
// truncated; each truncation is then reported in a batch of its own.
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	notices := truncate(batch)
	err := s.post(ctx, batch)
	for _, notice := range notices {
		s.logErrorNow(ctx, notice)
	}
	return err
}

// truncate clips oversized codes and messages in place and returns a notice
// for each change.
func truncate(batch []Entry) []string {
	var notices []string
	for i := range batch {
		e := &batch[i]
		if len(e.Code) > MaxCodeLength {
			notices = append(notices, fmt.Sprintf(
				"Attempted to log code with length %d > %d. Log was truncated.", len(e.Code), MaxCodeLength))
			e.Code = clip(e.Code, MaxCodeLength)
		}
		if len(e.Message) > MaxMessageLength {
			notices = append(notices, "Log messages must be < 64 characters: "+e.Message)
			e.Message = clip(e.Message, MaxMessageLength-3) + "..."
		}
	}
	return notices
}

// clip cuts s to at most n bytes without splitting a UTF-8 sequence.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// logErrorNow sends message in a batch by itself. Errors raised while doing
// so are dropped.
func (s *Sink) logErrorNow(ctx context.Context, message string) {
	if !s.loggingError.CompareAndSwap(false, true) {
		return
	}
	defer s.loggingError.Store(false)

	if err := s.Flush(ctx); err != nil {
		s.logger.Debug("diagnostics flush failed", "error", err)
	}
	s.enqueue(Entry{Message: errorMessage, Data: map[string]any{"error": message}, Time: s.now()})
	if err := s.Flush(ctx); err != nil {
		s.logger.Debug("diagnostics error report failed", "error", err)
	}
}

// post delivers one batch. Non-200 responses and transport errors are
// retried; a 200 with a body means the server rejected the batch and is
// reported, not retried.
func (s *Sink) post(ctx context.Context, logs []Entry) error {
	body, err := json.Marshal(Batch{UserInfo: s.userInfo, Logs: logs})
	if err != nil {
		return fmt.Errorf("diagnostics batch encode failed: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}
		status, reply, err := s.send(ctx, body)
		if err != nil {
			lastErr = err
			continue
		}
		if status != http.StatusOK {
			lastErr = fmt.Errorf("diagnostics response %d", status)
			continue
		}
		if reply = strings.TrimSpace(reply); reply != "" {
			s.logger.Error("diagnostics server rejected batch", "reply", reply)
			s.logErrorNow(ctx, "Failed to log data: "+reply)
		}
		return nil
	}
	return fmt.Errorf("diagnostics batch dropped after %d attempts: %w", s.maxAttempts, lastErr)
}

func (s *Sink) send(ctx context.Context, body []byte) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("diagnostics request build failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("diagnostics request failed: %w", err)
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("diagnostics response read failed: %w", err)
	}
	return resp.StatusCode, string(reply), nil
}
