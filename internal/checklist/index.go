package checklist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// indexFile is the persisted task index. It is derived state keyed by the
// source document's modification time: a reader whose current mtime does
// not match must discard it and re-parse.
type indexFile struct {
	// SourceMtimeNs is the source document mtime in Unix nanoseconds.
	SourceMtimeNs int64 `json:"source_mtime_ns"`
	// Tasks is the parsed result at that mtime.
	Tasks []Task `json:"tasks"`
}

// readIndex loads a persisted index and returns its tasks when the stored
// mtime matches the given source mtime exactly. Any read, decode, or mtime
// mismatch is a cache miss, never an error: the index is always
// reproducible by re-parsing.
func readIndex(path string, sourceMtime time.Time) ([]Task, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var idx indexFile
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, false
	}
	if idx.SourceMtimeNs != sourceMtime.UnixNano() {
		return nil, false
	}
	return idx.Tasks, true
}

// writeIndex persists the parsed tasks keyed by the source mtime. The write
// goes through a temp file and rename so a concurrent reader never sees a
// torn index.
func writeIndex(path string, sourceMtime time.Time, tasks []Task) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(indexFile{
		SourceMtimeNs: sourceMtime.UnixNano(),
		Tasks:         tasks,
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
