package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestRedactSensitive_SensitiveKeyName(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Info("login", "password", "hunter2", "db_secret", "s3cr3t", "empty_token", "")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	if logEntry["password"] != redactedValue {
		t.Errorf("password = %v, want redacted", logEntry["password"])
	}
	if logEntry["db_secret"] != redactedValue {
		t.Errorf("db_secret = %v, want redacted", logEntry["db_secret"])
	}
	if logEntry["empty_token"] != "" {
		t.Errorf("empty values should stay empty, got %v", logEntry["empty_token"])
	}
}

func TestRedactSensitive_CmdlineKey(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Info("probe", "cmdline", "server --token=abc --port 8080")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	want := "server --token=***REDACTED*** --port 8080"
	if logEntry["cmdline"] != want {
		t.Errorf("cmdline = %v, want %q", logEntry["cmdline"], want)
	}
}

func TestRedactSensitive_NormalValues(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Info("dump", "artifact", "t1_20240101_120000.qsnap", "pid", 42)

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	if logEntry["artifact"] != "t1_20240101_120000.qsnap" {
		t.Errorf("artifact = %v, want unchanged", logEntry["artifact"])
	}
}

func TestRedactCmdline(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"vim notes.txt", "vim notes.txt"},
		{"app --password=hunter2", "app --password=***REDACTED***"},
		{"app --token abc --user bob", "app --token ***REDACTED*** --user bob"},
		{"app -api_key=xyz", "app -api_key=***REDACTED***"},
		{"app --auth", "app --auth"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := RedactCmdline(tt.in); got != tt.want {
				t.Errorf("RedactCmdline(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsSensitiveKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"password", true},
		{"DB_PASSWORD", true},
		{"session_token", true},
		{"Authorization", true},
		{"artifact", false},
		{"pid", false},
	}
	for _, tt := range tests {
		if got := IsSensitiveKey(tt.key); got != tt.want {
			t.Errorf("IsSensitiveKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}
