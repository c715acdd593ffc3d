package logstream

import (
	"regexp"
	"strings"
	"time"
)

// TimestampLayout matches the ISO-8601 form the server emits and the one
// synthesized for lines without a timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// leadingTimestamp matches an ISO-8601 timestamp followed by whitespace
// (or end of line) at the start of a log line.
var leadingTimestamp = regexp.MustCompile(
	`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2}))(?:\s+(.*)|\s*)$`)

// ParseLine splits a raw log line into timestamp and content.
// Lines without a recognizable timestamp keep their full text and get now
// as the timestamp. ok is false when there is no non-blank content.
func ParseLine(line string, now time.Time) (timestamp, content string, ok bool) {
	if strings.TrimSpace(line) == "" {
		return "", "", false
	}
	if m := leadingTimestamp.FindStringSubmatch(line); m != nil {
		timestamp, content = m[1], m[2]
	} else {
		timestamp, content = FormatTimestamp(now), line
	}
	if strings.TrimSpace(content) == "" {
		return "", "", false
	}
	return timestamp, content, true
}

// FormatTimestamp renders t in TimestampLayout (UTC, millisecond precision).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// SplitLines splits bootstrap text on newlines, dropping blank lines and a
// trailing carriage return on each line.
func SplitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSuffix(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}
