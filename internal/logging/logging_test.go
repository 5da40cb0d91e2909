package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	for _, json := range []bool{true, false} {
		l, err := New("debug", json)
		if err != nil {
			t.Fatalf("json=%v: %v", json, err)
		}
		if !l.Core().Enabled(zapcore.DebugLevel) {
			t.Fatalf("json=%v: debug not enabled", json)
		}
	}
	if _, err := New("loud", false); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
