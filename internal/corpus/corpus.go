// Package corpus reads feed entries stored as JSON lines.
package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/feedtag/internal/domain/entry"
)

// maxLineBytes bounds one entry; full-content feeds run to a few hundred KiB.
const maxLineBytes = 16 << 20

// Read decodes one entry per line. Blank lines are skipped; the first
// malformed line aborts with its line number.
func Read(r io.Reader) ([]entry.Entry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var out []entry.Entry
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var dto entryDTO
		if err := json.Unmarshal(raw, &dto); err != nil {
			return nil, fmt.Errorf("line %d: decode entry: %w", line, err)
		}
		e, err := dto.toDomain()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return out, nil
}

// ReadFile reads a corpus file. "-" reads stdin.
func ReadFile(path string) ([]entry.Entry, error) {
	if path == "-" {
		return Read(os.Stdin)
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	entries, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}
