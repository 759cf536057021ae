package logging

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"debug", "DEBUG", false},
		{"INFO", "INFO", false},
		{"", "INFO", false},
		{"warning", "WARN", false},
		{"error", "ERROR", false},
		{"loud", "INFO", true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNewRespectsLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf, Enabled: true})

	l.Debug("hidden")
	l.WithPrefix("cache").Info("opened", "path", "/tmp/x")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message should be filtered: %s", out)
	}
	if !strings.Contains(out, `"component":"cache"`) || !strings.Contains(out, `"msg":"opened"`) {
		t.Errorf("unexpected JSON output: %s", out)
	}
}

func TestDisabledLoggerDiscards(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelDebug, Output: &buf, Enabled: false})
	l.Error("nothing")
	if buf.Len() != 0 {
		t.Errorf("disabled logger wrote %q", buf.String())
	}
}

func TestOpenFile(t *testing.T) {
	f, err := OpenFile(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer func() { _ = f.Close() }()
	if !strings.HasPrefix(filepath.Base(f.Name()), "ab-av1_") {
		t.Errorf("unexpected log file name %s", f.Name())
	}
}
