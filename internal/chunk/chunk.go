// Package chunk groups parsed log entries into units for embedding.
//
// Legacy logs are partitioned into fixed-size groups in original order;
// ULF logs produce one single-entry chunk per Error/Warning record.
package chunk

import (
	"strings"
	"time"

	"github.com/fyrsmithlabs/instrumentqa/internal/logparse"
)

// DefaultSize is the legacy-mode group size. Inherited from the original
// analyzer; not tuned, hence configurable.
const DefaultSize = 7

// Chunk is one unit of log text submitted for embedding and matching.
// A chunk's text is deterministic given its member entries: entries are
// concatenated in original log order using their canonical string form.
type Chunk struct {
	// Entries are the member records in original log order.
	Entries []logparse.LogEntry

	// StartTime and EndTime are the timestamps of the first and last entry.
	StartTime time.Time
	EndTime   time.Time

	// Instruments lists the distinct instrument IDs in order of first
	// appearance.
	Instruments []string

	// MaxSeverity is the highest severity present in the chunk.
	MaxSeverity logparse.Severity

	// Text is the concatenated canonical form of the entries.
	Text string
}

// Chunker builds chunks from ordered entry sequences.
type Chunker struct {
	// Size is the legacy-mode group size. Zero or negative selects DefaultSize.
	Size int
}

// NewChunker creates a Chunker with the given legacy group size.
func NewChunker(size int) Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	return Chunker{Size: size}
}

// ChunkLegacy partitions entries into fixed-size groups in original order.
// The final group may be shorter. Every entry lands in exactly one chunk
// regardless of severity.
func (c Chunker) ChunkLegacy(entries []logparse.LogEntry) []Chunk {
	size := c.Size
	if size <= 0 {
		size = DefaultSize
	}

	var chunks []Chunk
	for i := 0; i < len(entries); i += size {
		end := i + size
		if end > len(entries) {
			end = len(entries)
		}
		chunks = append(chunks, build(entries[i:end]))
	}
	return chunks
}

// ChunkULF produces one single-entry chunk per Error/Warning entry.
// Info and Debug entries still count toward file statistics upstream but
// are never embedded or matched.
func (c Chunker) ChunkULF(entries []logparse.LogEntry) []Chunk {
	var chunks []Chunk
	for _, entry := range entries {
		if !entry.Severity.IsActionable() {
			continue
		}
		chunks = append(chunks, build([]logparse.LogEntry{entry}))
	}
	return chunks
}

// Chunk dispatches on the parse result: per-error chunking when the file
// contained ULF entries, fixed-size grouping otherwise.
func (c Chunker) Chunk(result *logparse.Result) []Chunk {
	if result.HasULF {
		return c.ChunkULF(result.Entries)
	}
	return c.ChunkLegacy(result.Entries)
}

// build derives chunk metadata from a non-empty entry slice.
func build(entries []logparse.LogEntry) Chunk {
	lines := make([]string, len(entries))
	var instruments []string
	seen := make(map[string]struct{})
	maxSev := entries[0].Severity

	for i, e := range entries {
		lines[i] = e.String()
		if _, ok := seen[e.InstrumentID]; !ok {
			seen[e.InstrumentID] = struct{}{}
			instruments = append(instruments, e.InstrumentID)
		}
		if e.Severity.Rank() > maxSev.Rank() {
			maxSev = e.Severity
		}
	}

	return Chunk{
		Entries:     entries,
		StartTime:   entries[0].Timestamp,
		EndTime:     entries[len(entries)-1].Timestamp,
		Instruments: instruments,
		MaxSeverity: maxSev,
		Text:        strings.Join(lines, "\n"),
	}
}
