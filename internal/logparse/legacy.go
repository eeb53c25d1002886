package logparse

import (
	"regexp"
	"time"
)

// legacyPattern matches `TIMESTAMP [LEVEL] INSTRUMENT_ID: MESSAGE`.
var legacyPattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}) \[(\w+)\] (\w+): (.+)$`)

// legacyLevels is the known level set of the legacy format. A bracketed token
// outside this set is treated as a non-matching line, not an entry.
var legacyLevels = map[string]struct{}{
	"ERROR":   {},
	"WARN":    {},
	"WARNING": {},
	"INFO":    {},
	"DEBUG":   {},
}

// parseLegacyLine parses one legacy-format line.
// Returns (nil, false) if the line does not match.
func parseLegacyLine(line string) (*LogEntry, bool) {
	m := legacyPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}

	if _, ok := legacyLevels[m[2]]; !ok {
		return nil, false
	}

	// The legacy format carries no zone; interpret as UTC so signatures and
	// chunk metadata are stable across machines.
	ts, err := time.ParseInLocation(legacyTimeLayout, m[1], time.UTC)
	if err != nil {
		return nil, false
	}

	return &LogEntry{
		Timestamp:    ts,
		Level:        m[2],
		Severity:     ParseSeverity(m[2]),
		InstrumentID: m[3],
		Message:      m[4],
		FullText:     line,
		Format:       FormatLegacy,
	}, true
}
