package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("api", "loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewAcceptsMixedCaseLevel(t *testing.T) {
	log, err := New("worker", "WARN")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if log.Core().Enabled(zap.InfoLevel) {
		t.Fatalf("info should be disabled at warn level")
	}
}

func TestGocronForwardsKeyValues(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := Gocron(zap.New(core))

	l.Error("job failed", "name", "orphan-conversations", "error", "boom")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("unexpected entry count: %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if entries[0].LoggerName != "scheduler" || fields["name"] != "orphan-conversations" {
		t.Fatalf("unexpected entry: %+v %v", entries[0], fields)
	}
}
