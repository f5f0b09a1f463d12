package clog

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextHandler(t *testing.T) {
	tests := []struct {
		name string
		log  func(l *slog.Logger)
		want string
	}{
		{
			name: "warning with attributes",
			log: func(l *slog.Logger) {
				l.Warn("unknown account: creds (in app.py), falling back to '*'", "function", "orders", "service", "s3")
			},
			want: "warn: unknown account: creds (in app.py), falling back to '*' function=orders service=s3\n",
		},
		{
			name: "quoted values",
			log:  func(l *slog.Logger) { l.Error("scan failed", "error", "exit status 1") },
			want: "error: scan failed error=\"exit status 1\"\n",
		},
		{
			name: "debug hidden at info",
			log:  func(l *slog.Logger) { l.Debug("starting stage") },
			want: "",
		},
		{
			name: "groups and bound attributes",
			log: func(l *slog.Logger) {
				l.With("function", "orders").WithGroup("aws").Info("listed", "kind", "dynamodb.tables")
			},
			want: "info: listed function=orders aws.kind=dynamodb.tables\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(slog.New(NewTextHandler(&buf, WithColor(false))))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestTextHandlerLevelAndRedaction(t *testing.T) {
	var buf bytes.Buffer
	redact := func(_ []string, a slog.Attr) slog.Attr {
		if a.Key == "secret" {
			a.Value = slog.StringValue("[REDACTED]")
		}
		return a
	}
	l := slog.New(NewTextHandler(&buf, WithColor(false), WithLevel(slog.LevelDebug), WithReplaceAttr(redact)))

	l.Debug("resolved credentials", "secret", "hunter2")
	assert.Equal(t, "debug: resolved credentials secret=[REDACTED]\n", buf.String())
}

func TestTextHandlerColor(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewTextHandler(&buf, WithColor(true))).Warn("careful")
	assert.Contains(t, buf.String(), "\x1b[33m")
	assert.Contains(t, buf.String(), "careful")
}

func TestTextHandlerConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewTextHandler(&buf, WithColor(false)))

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Info("scanned")
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 20)
	for _, line := range lines {
		assert.Equal(t, "info: scanned", line)
	}
}
