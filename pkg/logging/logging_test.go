package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prev := L()
	SetLogger(zap.New(core))
	t.Cleanup(func() {
		SetLogger(prev)
		SetLevelFromString("info")
	})
	return logs
}

func TestSetLevelFromString(t *testing.T) {
	tests := []struct {
		in    string
		debug bool
		info  bool
		warn  bool
	}{
		{"debug", true, true, true},
		{"INFO", false, true, true},
		{" warning ", false, false, true},
		{"err", false, false, false},
		{"", false, true, true},
	}
	for _, tt := range tests {
		SetLevelFromString(tt.in)
		if Enabled(Debug) != tt.debug || Enabled(Info) != tt.info || Enabled(Warn) != tt.warn {
			t.Errorf("level %q: debug=%v info=%v warn=%v", tt.in, Enabled(Debug), Enabled(Info), Enabled(Warn))
		}
		if !Enabled(Error) {
			t.Errorf("level %q: error must always be enabled", tt.in)
		}
	}
	SetLevelFromString("warn")
	SetLevelFromString("bogus")
	if Enabled(Info) {
		t.Error("unknown level should keep the current level")
	}
	SetLevelFromString("info")
}

func TestPrintfHelpersRespectLevel(t *testing.T) {
	logs := observe(t)

	SetLevelFromString("info")
	Debugf("hidden %d", 1)
	Infof("shown %d", 2)
	Errorf("boom %s", "x")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "shown 2" || entries[1].Message != "boom x" {
		t.Fatalf("unexpected messages: %q, %q", entries[0].Message, entries[1].Message)
	}
	t.Log("✓ debug suppressed at info level")
}

func TestSetQuiet(t *testing.T) {
	logs := observe(t)
	SetQuiet(true)
	Infof("should not appear")
	Warnf("should not appear either")
	Errorf("visible")
	if logs.Len() != 1 {
		t.Fatalf("expected only the error entry, got %d", logs.Len())
	}
}

func TestWithCarriesFields(t *testing.T) {
	logs := observe(t)
	With(String("session", "127.0.0.1:1234")).Infof("command %s", "cd")

	entries := logs.FilterField(zap.String("session", "127.0.0.1:1234")).All()
	if len(entries) != 1 || entries[0].Message != "command cd" {
		t.Fatalf("expected one entry with session field, got %+v", logs.All())
	}
}

func TestInitFromEnv(t *testing.T) {
	t.Cleanup(func() { SetLevelFromString("info") })
	t.Setenv("GOFSH_LOG_LEVEL", "debug")
	InitFromEnv()
	if !Enabled(Debug) {
		t.Fatal("GOFSH_LOG_LEVEL=debug not applied")
	}

	t.Setenv("GOFSH_QUIET", "true")
	InitFromEnv()
	if Enabled(Info) {
		t.Fatal("GOFSH_QUIET=true should limit output to errors")
	}
}

func TestInitJSON(t *testing.T) {
	prev := L()
	t.Cleanup(func() {
		SetLogger(prev)
		SetLevelFromString("info")
	})
	if err := Init(Config{Level: "warn", Format: "json", OutputPath: t.TempDir() + "/log.json"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if Enabled(Info) || !Enabled(Warn) {
		t.Fatal("Init level not applied")
	}
}
