package logparse

import (
	"regexp"
	"time"
)

// ulfAttrPattern matches one Key="Value" attribute. ULF lines are a flat
// sequence of such attributes in arbitrary order.
var ulfAttrPattern = regexp.MustCompile(`(\w+)="([^"]*)"`)

// ulfRequiredKeys are the attributes a ULF line must carry to produce an
// entry. A line missing any of them is skipped.
var ulfRequiredKeys = []string{"MsgID", "TimeStamp", "Channel", "Type", "Severity", "Message"}

// parseULFLine parses one ULF attribute-style line.
// Returns (nil, false) if the line does not match or lacks a required key.
func parseULFLine(line string) (*LogEntry, bool) {
	matches := ulfAttrPattern.FindAllStringSubmatch(line, -1)
	if matches == nil {
		return nil, false
	}

	attrs := make(map[string]string, len(matches))
	for _, m := range matches {
		attrs[m[1]] = m[2]
	}

	for _, key := range ulfRequiredKeys {
		if _, ok := attrs[key]; !ok {
			return nil, false
		}
	}

	// ISO-8601 with fractional seconds and Z suffix. time.Parse accepts the
	// fractional part even though the RFC3339 layout does not spell it out.
	ts, err := time.Parse(time.RFC3339, attrs["TimeStamp"])
	if err != nil {
		return nil, false
	}

	return &LogEntry{
		Timestamp:    ts,
		Level:        attrs["Severity"],
		Severity:     ParseSeverity(attrs["Severity"]),
		InstrumentID: attrs["Channel"],
		Message:      attrs["Message"],
		MessageID:    attrs["MsgID"],
		Channel:      attrs["Channel"],
		LogType:      attrs["Type"],
		FullText:     line,
		Format:       FormatULF,
	}, true
}
