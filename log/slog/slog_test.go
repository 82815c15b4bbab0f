package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/ledgercache"
)

func TestLoggerOrderAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(stdslog.New(stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo})))

	l.Debug("dropped", ledgercache.Fields{"x": 1})
	l.Info("staleness computed", ledgercache.Fields{"stale": 2, "dataset": "c1", "listed": 9})

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("debug line logged at info level: %s", out)
	}
	if !strings.Contains(out, "dataset=c1 listed=9 stale=2") {
		t.Fatalf("attrs not in key order: %s", out)
	}
}
