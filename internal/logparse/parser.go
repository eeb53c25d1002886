package logparse

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Result holds the entries parsed from one source plus skip accounting.
type Result struct {
	// Entries are the parsed records in original log order.
	Entries []LogEntry

	// LinesSkipped counts non-empty lines that matched no known format.
	LinesSkipped int

	// HasULF is true when at least one ULF entry was parsed. The chunker
	// uses it to pick per-error chunking over fixed-size grouping.
	HasULF bool
}

// ParseLine parses one raw line, trying the legacy format first, then ULF.
// Returns (nil, false) when the line matches neither format; this is the
// normal skip path, never an error.
func ParseLine(line string) (*LogEntry, bool) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil, false
	}
	if entry, ok := parseLegacyLine(line); ok {
		return entry, true
	}
	if entry, ok := parseULFLine(line); ok {
		return entry, true
	}
	return nil, false
}

// ParseReader scans r line by line and collects entries.
// Blank lines are ignored entirely; other non-matching lines count as skipped.
func ParseReader(r io.Reader) (*Result, error) {
	result := &Result{}

	scanner := bufio.NewScanner(r)
	// Some instruments dump very long single-line payloads.
	const maxLineSize = 1024 * 1024
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		entry, ok := ParseLine(line)
		if !ok {
			result.LinesSkipped++
			continue
		}

		if entry.Format == FormatULF {
			result.HasULF = true
		}
		result.Entries = append(result.Entries, *entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning log: %w", err)
	}
	return result, nil
}

// ParseFile parses one log file.
func ParseFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	result, err := ParseReader(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return result, nil
}

// logExtensions are the file suffixes ParseDir considers log files.
var logExtensions = map[string]struct{}{
	".log": {},
	".txt": {},
}

// ParseDir recursively parses all log files under dir, keyed by path.
// Unreadable files abort the walk; unparseable lines within a file do not.
func ParseDir(dir string) (map[string]*Result, error) {
	results := make(map[string]*Result)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := logExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}

		result, err := ParseFile(path)
		if err != nil {
			return err
		}
		results[path] = result
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}

	return results, nil
}
