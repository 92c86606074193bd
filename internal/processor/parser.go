package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/GabrielNunesIT/s3-log-sync/internal/config"
	"github.com/GabrielNunesIT/s3-log-sync/internal/model"
)

// Parsed field markers.
const (
	FormatField  = "_parsed_format"
	PatternField = "_parsed_pattern"
)

// timeFields are JSON fields that carry the event time, in lookup order.
var timeFields = []string{"time", "timestamp", "@timestamp"}

// timeLayouts are the accepted encodings of an event time.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
}

// NamedPatterns are regex presets that can be referenced by name in the
// parser's pattern list.
var NamedPatterns = map[string]string{
	// Apache/Nginx combined log format.
	"combined": `^(?P<remote_addr>\S+) - (?P<remote_user>\S+) \[(?P<time_local>[^\]]+)\] "(?P<request>[^"]*)" (?P<status>\d+) (?P<body_bytes>\d+) "(?P<http_referer>[^"]*)" "(?P<http_user_agent>[^"]*)"`,

	// RFC 3164 syslog.
	"syslog": `^<(?P<priority>\d+)>(?P<timestamp>\w{3}\s+\d+\s+\d+:\d+:\d+)\s+(?P<hostname>\S+)\s+(?P<program>[^\[:]+)(?:\[(?P<pid>\d+)\])?:\s*(?P<message>.*)`,

	// Log level anywhere in the line.
	"level": `(?i)\b(?P<level>DEBUG|INFO|WARN(?:ING)?|ERROR|FATAL|CRITICAL|TRACE)\b`,
}

// Parser extracts structured fields from payload lines.
type Parser struct {
	cfg      config.ParserConfig
	patterns []*regexp.Regexp
}

// NewParser creates a new parsing processor. Each configured pattern is either
// a key of NamedPatterns or a regular expression with named groups.
func NewParser(cfg config.ParserConfig) (*Parser, error) {
	p := &Parser{cfg: cfg}

	for _, pattern := range cfg.Patterns {
		if preset, ok := NamedPatterns[pattern]; ok {
			pattern = preset
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern %q: %w", pattern, err)
		}
		p.patterns = append(p.patterns, re)
	}

	return p, nil
}

// Name returns the processor identifier.
func (p *Parser) Name() string {
	return "parser"
}

// Process parses the entry and populates its Parsed field. Lines matching
// nothing pass through untouched.
func (p *Parser) Process(ctx context.Context, entry *model.LogEntry) error {
	if !p.cfg.Enabled {
		return nil
	}

	if p.cfg.JSONAutoDetect && p.tryParseJSON(entry) {
		return nil
	}

	for _, re := range p.patterns {
		if p.tryParseRegex(entry, re) {
			return nil
		}
	}

	return nil
}

// tryParseJSON parses a JSON object line. When the object carries an event
// time the entry's Timestamp is moved to it.
func (p *Parser) tryParseJSON(entry *model.LogEntry) bool {
	raw := bytes.TrimSpace(entry.Raw)
	if len(raw) == 0 || raw[0] != '{' {
		return false
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return false
	}

	for k, v := range data {
		entry.Parsed[k] = v
	}
	entry.Parsed[FormatField] = "json"

	if ts, ok := eventTime(data); ok {
		entry.Timestamp = ts
	}
	return true
}

func eventTime(data map[string]any) (time.Time, bool) {
	for _, field := range timeFields {
		s, ok := data[field].(string)
		if !ok || s == "" {
			continue
		}
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

// tryParseRegex extracts named groups from re.
func (p *Parser) tryParseRegex(entry *model.LogEntry, re *regexp.Regexp) bool {
	names := re.SubexpNames()
	if len(names) <= 1 {
		return false
	}

	matches := re.FindSubmatch(entry.Raw)
	if matches == nil {
		return false
	}

	for i, name := range names {
		if i == 0 || name == "" || i >= len(matches) {
			continue
		}
		entry.Parsed[name] = string(matches[i])
	}

	entry.Parsed[FormatField] = "regex"
	entry.Parsed[PatternField] = re.String()
	return true
}
