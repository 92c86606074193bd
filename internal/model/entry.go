package model

import (
	"bytes"
	"time"
)

// LogEntry is a single payload line prepared for a line-oriented sink.
type LogEntry struct {
	// Timestamp is when the entry was built from the payload.
	Timestamp time.Time

	// Source is the object key the line was read from.
	Source string

	// Raw contains the line as found in the payload, without the newline.
	Raw []byte

	// Parsed holds structured fields extracted by the processor chain.
	Parsed map[string]any

	// Metadata contains enrichment labels like hostname or static labels.
	Metadata map[string]string
}

// NewLogEntry creates a new LogEntry with initialized maps and current timestamp.
func NewLogEntry(source string, raw []byte) *LogEntry {
	return &LogEntry{
		Timestamp: time.Now(),
		Source:    source,
		Raw:       raw,
		Parsed:    make(map[string]any),
		Metadata:  make(map[string]string),
	}
}

// Payload is the decompressed content of one object, ready for delivery.
type Payload struct {
	// Key is the object key the payload was produced from.
	Key string

	// Path is the local decompressed file.
	Path string

	// Data is the full file content.
	Data []byte
}

// Entries splits the payload into one LogEntry per non-blank line.
func (p *Payload) Entries() []*LogEntry {
	var entries []*LogEntry
	for _, line := range bytes.Split(p.Data, []byte("\n")) {
		line = bytes.TrimRight(line, "\r")
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		entries = append(entries, NewLogEntry(p.Key, line))
	}
	return entries
}
