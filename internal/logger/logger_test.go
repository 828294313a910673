package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestForSessionAddsField(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetCore(core)
	t.Cleanup(func() { _ = Init("test") })

	ForSession("finder", "sess-1").Warnf("검증 실패 (place_id=%s)", "abc")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.LoggerName != "finder" || e.Message != "검증 실패 (place_id=abc)" {
		t.Errorf("Unexpected entry %+v", e)
	}
	if got := e.ContextMap()["session_id"]; got != "sess-1" {
		t.Errorf("Expected session_id sess-1, got %v", got)
	}
}

func TestInitLevels(t *testing.T) {
	testCases := []struct {
		env      string
		logLevel string
		debug    bool
		wantErr  bool
	}{
		{env: "development", debug: true},
		{env: "production", debug: false},
		{env: "production", logLevel: "debug", debug: true},
		{env: "production", logLevel: "loud", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.env+"/"+tc.logLevel, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tc.logLevel)
			err := Init(tc.env)
			if tc.wantErr {
				if err == nil {
					t.Error("Expected an error for an invalid LOG_LEVEL")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			got := GetLogger("x").Desugar().Core().Enabled(zapcore.DebugLevel)
			if got != tc.debug {
				t.Errorf("Expected debug enabled=%v, got %v", tc.debug, got)
			}
		})
	}
}
