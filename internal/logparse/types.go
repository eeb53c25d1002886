// Package logparse parses instrument log files into structured entries.
//
// Two line formats are recognized:
//
//   - Legacy: `2024-06-01 10:30:15 [ERROR] TEMP_001: Temperature sensor reading invalid`
//   - ULF:    `MsgID="12345" TimeStamp="2024-06-01T10:30:15.123Z" Channel="SystemChannel" Type="Error" Severity="Error" Message="..."`
//
// Lines matching neither format are skipped, not errored: instrument logs
// routinely contain banners, separators and blank lines that are not log
// records at all.
package logparse

import (
	"fmt"
	"strings"
	"time"
)

// Format identifies which line format an entry was parsed from.
type Format string

const (
	// FormatLegacy is the bracketed `TIMESTAMP [LEVEL] INSTRUMENT: MESSAGE` format.
	FormatLegacy Format = "legacy"

	// FormatULF is the attribute-style Universal Log Format.
	FormatULF Format = "ulf"
)

// Severity is a normalized log level used for ranking and filtering.
type Severity string

const (
	SeverityDebug   Severity = "Debug"
	SeverityInfo    Severity = "Info"
	SeverityWarning Severity = "Warning"
	SeverityError   Severity = "Error"
	SeverityUnknown Severity = "Unknown"
)

// ParseSeverity maps a raw level token to a Severity.
// Recognizes the common spellings of both formats (WARN, Warning, error, ...).
func ParseSeverity(s string) Severity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "TRACE":
		return SeverityDebug
	case "INFO", "INFORMATION":
		return SeverityInfo
	case "WARN", "WARNING":
		return SeverityWarning
	case "ERROR", "ERR", "FATAL", "CRITICAL":
		return SeverityError
	default:
		return SeverityUnknown
	}
}

// Rank orders severities for comparison. Unknown ranks below Debug so that
// unrecognized levels never win the "highest severity in chunk" computation.
func (s Severity) Rank() int {
	switch s {
	case SeverityDebug:
		return 1
	case SeverityInfo:
		return 2
	case SeverityWarning:
		return 3
	case SeverityError:
		return 4
	default:
		return 0
	}
}

// IsActionable reports whether the severity is worth matching against the
// knowledge base (Error or Warning).
func (s Severity) IsActionable() bool {
	return s == SeverityError || s == SeverityWarning
}

// LogEntry is one parsed log record. Entries are immutable after parsing.
type LogEntry struct {
	// Timestamp is the parse of the line's time field. Legacy timestamps
	// carry no zone and are interpreted as UTC.
	Timestamp time.Time

	// Level is the verbatim level token from the line (e.g. "ERROR", "Error").
	Level string

	// Severity is the normalized form of Level.
	Severity Severity

	// InstrumentID identifies the source device or channel. For ULF entries
	// this is the Channel attribute.
	InstrumentID string

	// Message is the free-text message.
	Message string

	// MessageID is the ULF MsgID attribute. Empty for legacy entries.
	MessageID string

	// Channel is the ULF Channel attribute. Empty for legacy entries.
	Channel string

	// LogType is the ULF Type attribute. Empty for legacy entries.
	LogType string

	// FullText is the verbatim source line, retained for audit output.
	FullText string

	// Format records which parser produced the entry.
	Format Format
}

// legacyTimeLayout is the timestamp layout of the legacy format.
const legacyTimeLayout = "2006-01-02 15:04:05"

// String renders the entry in the canonical legacy layout. For legacy
// entries this reproduces the source line exactly; for ULF entries it is the
// stable textual form used when building chunk text.
func (e LogEntry) String() string {
	return fmt.Sprintf("%s [%s] %s: %s",
		e.Timestamp.UTC().Format(legacyTimeLayout), e.Level, e.InstrumentID, e.Message)
}
