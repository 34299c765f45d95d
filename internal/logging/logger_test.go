package logging

import (
	"context"
	"log/slog"
	"testing"
)

func reset() {
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	reset()
	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"gpio":   "debug",
			"sunset": "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"gpio", true, true, true},
		{"sunset", false, false, true},
		{"control", false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			h := GetLogger(tt.module).Handler()
			ctx := context.Background()
			if got := h.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := h.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := h.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestInitializeReconfiguresExistingLoggers(t *testing.T) {
	reset()
	early := GetLogger("mqtt")
	if early.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("default level should be info")
	}

	Initialize(Config{Level: "debug"})
	if !GetLogger("mqtt").Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger should pick up the new global level")
	}
}

func TestGetLoggerCached(t *testing.T) {
	reset()
	if GetLogger("web") != GetLogger("web") {
		t.Error("expected the same logger instance")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]*slog.Level{
		"debug":   ptr(slog.LevelDebug),
		"INFO":    ptr(slog.LevelInfo),
		"warning": ptr(slog.LevelWarn),
		"error":   ptr(slog.LevelError),
		"loud":    nil,
	}
	for in, want := range tests {
		got := parseLevel(in)
		switch {
		case want == nil && got != nil:
			t.Errorf("parseLevel(%q) = %v, want nil", in, *got)
		case want != nil && (got == nil || *got != *want):
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, *want)
		}
	}
}

func ptr(l slog.Level) *slog.Level { return &l }

func TestAddAttrToFields(t *testing.T) {
	fields := make(map[string]string)
	addAttrToFields(fields, slog.Int("channel", 3), nil)
	addAttrToFields(fields, slog.Bool("powered", true), []string{"relay"})
	addAttrToFields(fields, slog.Group("sensor", slog.Float64("celsius", 41.5)), nil)

	want := map[string]string{
		"CHANNEL":        "3",
		"RELAY_POWERED":  "true",
		"SENSOR_CELSIUS": "41.5",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("fields[%q] = %q, want %q", k, fields[k], v)
		}
	}
}

func TestMultiHandlerEnabled(t *testing.T) {
	warn := slog.NewTextHandler(nil, &slog.HandlerOptions{Level: slog.LevelWarn})
	debug := slog.NewTextHandler(nil, &slog.HandlerOptions{Level: slog.LevelDebug})
	m := NewMultiHandler(warn, debug)
	if !m.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("multi handler should be enabled when any child is")
	}
	if NewMultiHandler(warn).Enabled(context.Background(), slog.LevelInfo) {
		t.Error("warn-only handler should not accept info")
	}
}
