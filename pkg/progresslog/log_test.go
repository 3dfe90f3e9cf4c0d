package progresslog

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func TestLogWriteFlushesOnSize(t *testing.T) {
	var out bytes.Buffer
	eph := NewEphemeralSink(&out)
	l := New(zap.NewNop(), []Sink{eph}, WithFlushBytes(5))

	if err := l.Write("hello world"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if out.Len() == 0 {
		t.Fatal("expected immediate flush once buffered size crosses the threshold")
	}
}

func TestLogCloseIsIdempotentAndFlushes(t *testing.T) {
	var out bytes.Buffer
	eph := NewEphemeralSink(&out)
	l := New(zap.NewNop(), []Sink{eph}, WithFlushBytes(1_000_000))

	_ = l.Write("line one")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !strings.Contains(out.String(), "line one") {
		t.Fatalf("expected close to flush pending content, got %q", out.String())
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got %v", err)
	}
}

func TestLogWriteAfterCloseIsNoop(t *testing.T) {
	var out bytes.Buffer
	eph := NewEphemeralSink(&out)
	l := New(zap.NewNop(), []Sink{eph})
	_ = l.Close()
	if err := l.Write("too late"); err != nil {
		t.Fatalf("Write after close: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output after close, got %q", out.String())
	}
}

func TestRemoteSinkFallsBackOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var mu sync.Mutex
	var fallbackLines []string
	fallback := &recordingSink{onWrite: func(line string) { mu.Lock(); fallbackLines = append(fallbackLines, line); mu.Unlock() }}

	remote := NewRemoteSink(srv.Client(), srv.URL, fallback)
	_ = remote.Write("progress: building")
	if err := remote.Flush(); err != nil {
		t.Fatalf("Flush should fall back rather than error on first failure: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(fallbackLines) == 0 {
		t.Fatal("expected fallback sink to receive the batch after remote failure")
	}
}

type recordingSink struct {
	onWrite func(string)
}

func (r *recordingSink) Write(line string) error { r.onWrite(line); return nil }
func (r *recordingSink) Flush() error            { return nil }
func (r *recordingSink) Close() error            { return nil }
