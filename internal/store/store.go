// Package store persists the line count time series as a JSON file.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/naka-gawa/loc-stats/internal/domain"
	"github.com/naka-gawa/loc-stats/internal/logging"
)

// DefaultPath is where the time series is written when nothing else is configured.
const DefaultPath = "stats.json"

// File is a time series stored as a pretty-printed JSON array.
type File struct {
	path   string
	logger *logging.Logger
}

// NewFile creates a File store for path. An empty path means DefaultPath.
func NewFile(path string, logger *logging.Logger) *File {
	if path == "" {
		path = DefaultPath
	}
	return &File{path: path, logger: logger}
}

// Load reads the existing records. A missing, unreadable or malformed file
// yields an empty list; Load never fails.
func (f *File) Load() []domain.StatsRecord {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		f.logger.Infof("%s does not exist, a new file will be created.", f.path)
		return []domain.StatsRecord{}
	}
	if err != nil {
		f.logger.Errorf("Failed to read %s: %v", f.path, err)
		return []domain.StatsRecord{}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		f.logger.Warnf("%s does not contain a JSON array, starting a new one.", f.path)
		return []domain.StatsRecord{}
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(trimmed, &elements); err != nil {
		f.logger.Warnf("Failed to decode %s, starting a new one: %v", f.path, err)
		return []domain.StatsRecord{}
	}

	records := make([]domain.StatsRecord, 0, len(elements))
	for i, raw := range elements {
		record, ok := decodeRecord(raw)
		if !ok {
			f.logger.Warnf("Skipping malformed record %d in %s: %s", i, f.path, raw)
			continue
		}
		records = append(records, record)
	}
	return records
}

// storedRecord accepts totals written as integers, floats or numeric strings.
type storedRecord struct {
	Date       string      `json:"date"`
	TotalLines json.Number `json:"total_lines"`
}

// decodeRecord needs a date; a missing total counts as zero, fractions are
// truncated and negative totals are clamped.
func decodeRecord(raw json.RawMessage) (domain.StatsRecord, bool) {
	var r storedRecord
	if err := json.Unmarshal(raw, &r); err != nil || r.Date == "" {
		return domain.StatsRecord{}, false
	}
	var total int64
	if r.TotalLines != "" {
		if v, err := r.TotalLines.Int64(); err == nil {
			total = v
		} else if fv, err := r.TotalLines.Float64(); err == nil {
			total = int64(fv)
		} else {
			return domain.StatsRecord{}, false
		}
	}
	return domain.StatsRecord{Date: r.Date, TotalLines: max(total, 0)}, true
}

// Persist replaces the file with records. The content is written to a
// temporary file in the same directory first and renamed over the target.
func (f *File) Persist(records []domain.StatsRecord) error {
	if records == nil {
		records = []domain.StatsRecord{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}

	f.logger.Infof("%s updated, %d records.", f.path, len(records))
	return nil
}

// Upsert sets the total for date, replacing an existing record for the same
// date or appending a new one, and returns the list sorted by date.
// ISO dates sort chronologically as strings. The input slice is not modified.
func Upsert(records []domain.StatsRecord, date string, totalLines int64) []domain.StatsRecord {
	totalLines = max(totalLines, 0)
	out := make([]domain.StatsRecord, len(records), len(records)+1)
	copy(out, records)

	updated := false
	for i := range out {
		if out[i].Date == date {
			out[i].TotalLines = totalLines
			updated = true
			break
		}
	}
	if !updated {
		out = append(out, domain.StatsRecord{Date: date, TotalLines: totalLines})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}
