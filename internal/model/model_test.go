package model

import (
	"testing"
)

func TestObject_IsFolder(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"trackinglog/", true},
		{"trackinglog/2024/", true},
		{"trackinglog/a.gz", false},
		{"a.gz", false},
	}

	for _, tt := range tests {
		if got := (Object{Key: tt.key}).IsFolder(); got != tt.want {
			t.Errorf("IsFolder(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestObject_BaseName(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"trackinglog/2024/tracking.log-1.gz", "tracking.log-1.gz"},
		{"a.gz", "a.gz"},
		{"trackinglog/2024/", "2024"},
	}

	for _, tt := range tests {
		if got := (Object{Key: tt.key}).BaseName(); got != tt.want {
			t.Errorf("BaseName(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestStage_String(t *testing.T) {
	if StageForwarding.String() != "forwarding" {
		t.Errorf("expected 'forwarding', got %q", StageForwarding.String())
	}
	if Stage(99).String() != "unknown" {
		t.Errorf("expected 'unknown' for out of range stage, got %q", Stage(99).String())
	}
	if !StageFailed.Terminal() || !StageCompleted.Terminal() {
		t.Error("expected completed and failed to be terminal")
	}
	if StageDownloaded.Terminal() {
		t.Error("expected downloaded to be non-terminal")
	}
}

func TestNewLogEntry(t *testing.T) {
	entry := NewLogEntry("logs/a.gz", []byte("test message"))

	if entry.Source != "logs/a.gz" {
		t.Errorf("expected source 'logs/a.gz', got %q", entry.Source)
	}
	if entry.Parsed == nil || entry.Metadata == nil {
		t.Error("expected maps to be initialized")
	}
	if entry.Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
}

func TestPayload_Entries(t *testing.T) {
	p := &Payload{
		Key:  "logs/a.gz",
		Data: []byte("{\"event\":1}\r\n\n  \n{\"event\":2}\n"),
	}

	entries := p.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if string(entries[0].Raw) != `{"event":1}` {
		t.Errorf("unexpected first line: %q", entries[0].Raw)
	}
	if entries[1].Source != "logs/a.gz" {
		t.Errorf("expected source to be the object key, got %q", entries[1].Source)
	}
}

func TestPayload_Entries_Empty(t *testing.T) {
	p := &Payload{Key: "k"}
	if n := len(p.Entries()); n != 0 {
		t.Errorf("expected no entries, got %d", n)
	}
}
