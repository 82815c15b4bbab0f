package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/ledgercache"
)

func TestLoggerFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	l.Info("sync pass done", ledgercache.Fields{"dataset": "c1", "refreshed": 4})
	e := hook.LastEntry()
	if e == nil || e.Level != logrus.InfoLevel || e.Data["dataset"] != "c1" || e.Data["refreshed"] != 4 {
		t.Fatalf("entry = %+v", e)
	}

	boom := errors.New("boom")
	l.Error("sync pass failed", ledgercache.Fields{"err": boom})
	if got := hook.LastEntry().Data[logrus.ErrorKey]; got != boom {
		t.Fatalf("error field = %v", got)
	}

	l.Debug("no fields", nil)
	if len(hook.AllEntries()) != 3 {
		t.Fatalf("entries = %d", len(hook.AllEntries()))
	}
}
