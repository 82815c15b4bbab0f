package zap

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/ledgercache"
)

func TestLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	l.Warn("malformed wrapped reference", ledgercache.Fields{"reference": "a.b.c", "parts": 3})
	l.Error("sync pass failed", ledgercache.Fields{"err": errors.New("boom")})

	entries := logs.AllUntimed()
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["reference"] != "a.b.c" || ctx["parts"] != int64(3) {
		t.Fatalf("fields = %v", ctx)
	}
	if entries[1].Level != zapcore.ErrorLevel || entries[1].ContextMap()["error"] != "boom" {
		t.Fatalf("error entry = %+v", entries[1])
	}
}

func TestNilLogger(t *testing.T) {
	New(nil).Info("ignored", nil)
}
