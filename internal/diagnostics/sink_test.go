package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector is a fake collection endpoint. replies are consumed one per
// request; once exhausted every request gets a plain 200.
type collector struct {
	mu      sync.Mutex
	batches []Batch
	replies []reply
	calls   int
}

type reply struct {
	status int
	body   string
}

func (c *collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	var b Batch
	if err := json.Unmarshal(body, &b); err == nil {
		c.batches = append(c.batches, b)
	}
	rep := reply{status: http.StatusOK}
	if len(c.replies) > 0 {
		rep = c.replies[0]
		c.replies = c.replies[1:]
	}
	w.WriteHeader(rep.status)
	_, _ = w.Write([]byte(rep.body))
}

func newSink(t *testing.T, c *collector) (*Sink, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(c)
	t.Cleanup(srv.Close)
	logs := &bytes.Buffer{}
	s, err := NewSink(Config{
		Endpoint:       srv.URL,
		InstallationID: "install-1",
		RetryDelay:     time.Millisecond,
		Logger:         slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	require.NoError(t, err)
	return s, logs
}

func TestNewSink_Validation(t *testing.T) {
	_, err := NewSink(Config{})
	assert.Error(t, err)
	_, err = NewSink(Config{Endpoint: "http://x", MaxAttempts: -1})
	assert.Error(t, err)

	s, err := NewSink(Config{Endpoint: "http://x"})
	require.NoError(t, err)
	assert.Len(t, s.UserInfo().InstallationID, 36)
	assert.NotEqual(t, s.UserInfo().InstallationID, s.UserInfo().SessionID)
}

func TestSink_FlushSendsOneBatch(t *testing.T) {
	c := &collector{}
	s, _ := newSink(t, c)
	s.Log("Replay.step", map[string]any{"type": "run"}, "")
	s.Log("Replay.done", nil, "<xml/>")

	require.NoError(t, s.Flush(context.Background()))
	require.NoError(t, s.Flush(context.Background()), "empty flush")

	require.Len(t, c.batches, 1)
	b := c.batches[0]
	assert.Equal(t, "install-1", b.UserInfo.InstallationID)
	assert.Equal(t, "block-replay", b.UserInfo.Tool)
	require.Len(t, b.Logs, 2)
	assert.Equal(t, "Replay.done", b.Logs[1].Message)
	assert.Equal(t, "<xml/>", b.Logs[1].Code)
	assert.Equal(t, 0, s.Pending())
}

func TestSink_TruncatesAndReportsLater(t *testing.T) {
	c := &collector{}
	s, _ := newSink(t, c)
	long := strings.Repeat("m", 70)
	s.Log(long, nil, strings.Repeat("c", MaxCodeLength+5))

	require.NoError(t, s.Flush(context.Background()))

	require.Len(t, c.batches, 3, "original batch plus one batch per notice")
	sent := c.batches[0].Logs[0]
	assert.Len(t, sent.Message, MaxMessageLength)
	assert.True(t, strings.HasSuffix(sent.Message, "..."))
	assert.Equal(t, long[:61], sent.Message[:61])
	assert.Len(t, sent.Code, MaxCodeLength)

	codeNotice := c.batches[1].Logs
	require.Len(t, codeNotice, 1)
	assert.Equal(t, "Logger.error", codeNotice[0].Message)
	assert.Contains(t, codeNotice[0].Data.(map[string]any)["error"], "Log was truncated")
	assert.Contains(t, c.batches[2].Logs[0].Data.(map[string]any)["error"], "Log messages must be < 64 characters")
}

func TestSink_TruncatesOnRuneBoundary(t *testing.T) {
	c := &collector{}
	s, _ := newSink(t, c)
	s.Log(strings.Repeat("m", 60)+"éééé", nil, strings.Repeat("c", MaxCodeLength-1)+"€x")

	require.NoError(t, s.Flush(context.Background()))

	sent := c.batches[0].Logs[0]
	assert.True(t, utf8.ValidString(sent.Message))
	assert.Equal(t, strings.Repeat("m", 60)+"...", sent.Message)
	assert.True(t, utf8.ValidString(sent.Code))
	assert.Equal(t, strings.Repeat("c", MaxCodeLength-1), sent.Code)
}

func TestClip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short", in: "abc", n: 5, want: "abc"},
		{name: "ascii", in: "abcdef", n: 3, want: "abc"},
		{name: "inside two-byte rune", in: "aé", n: 2, want: "a"},
		{name: "after two-byte rune", in: "aéb", n: 3, want: "aé"},
		{name: "inside four-byte rune", in: "x😀", n: 3, want: "x"},
		{name: "zero", in: "é", n: 0, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clip(tt.in, tt.n))
		})
	}
}

func TestSink_Retries(t *testing.T) {
	tests := []struct {
		name      string
		replies   []reply
		wantCalls int
		wantErr   bool
	}{
		{name: "success", wantCalls: 1},
		{name: "recovers", replies: []reply{{status: 500}}, wantCalls: 2},
		{name: "gives up after three", replies: []reply{{status: 500}, {status: 502}, {status: 503}, {status: 500}}, wantCalls: 3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &collector{replies: tt.replies}
			s, _ := newSink(t, c)
			s.Log("x", nil, "")
			err := s.Flush(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "dropped after 3 attempts")
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, c.calls)
		})
	}
}

func TestSink_RejectedBatchReportedOnce(t *testing.T) {
	c := &collector{replies: []reply{
		{status: 200, body: "column too long"},
		{status: 200, body: "still broken"},
		{status: 200, body: "still broken"},
	}}
	s, logs := newSink(t, c)
	s.Log("x", nil, "")

	require.NoError(t, s.Flush(context.Background()))

	assert.Equal(t, 2, c.calls, "rejected batch is not retried and the error report does not loop")
	require.Len(t, c.batches, 2)
	assert.Equal(t, "Logger.error", c.batches[1].Logs[0].Message)
	assert.Contains(t, c.batches[1].Logs[0].Data.(map[string]any)["error"], "Failed to log data: column too long")
	assert.Contains(t, logs.String(), "diagnostics server rejected batch")
}

func TestSink_RetryStopsOnCancel(t *testing.T) {
	c := &collector{replies: []reply{{status: 500}, {status: 500}}}
	s, _ := newSink(t, c)
	s.retryDelay = time.Hour
	s.Log("x", nil, "")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Flush(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, c.calls)
}

func TestSink_RunFlushesOnStop(t *testing.T) {
	c := &collector{}
	s, _ := newSink(t, c)
	s.interval = time.Hour
	s.Log("x", nil, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Len(t, c.batches, 1)
}

func TestHandler(t *testing.T) {
	c := &collector{}
	s, _ := newSink(t, c)
	var text bytes.Buffer
	logger := slog.New(Fanout(
		NewHandler(s, slog.LevelWarn),
		slog.NewTextHandler(&text, nil),
	)).With("session", "1700000000000").WithGroup("step")

	logger.Info("step applied", "type", "run")
	logger.Warn("step timed out", "type", "run", "index", 3)

	assert.Contains(t, text.String(), "step applied")
	require.Equal(t, 1, s.Pending())
	require.NoError(t, s.Flush(context.Background()))

	entry := c.batches[0].Logs[0]
	assert.Equal(t, "step timed out", entry.Message)
	data := entry.Data.(map[string]any)
	assert.Equal(t, "WARN", data["level"])
	assert.Equal(t, "1700000000000", data["session"])
	assert.Equal(t, "run", data["step.type"])
	assert.Equal(t, float64(3), data["step.index"])
}
