package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// WriteError reports a failure to produce an output file.
type WriteError struct {
	Path string
	Op   string // "encode", "mkdir", "write", "rename"
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// EncodeCSV writes the header and rows as CSV.
func EncodeCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSV writes the conversation table to path. The file is replaced
// atomically, so a failed write leaves any previous output untouched.
func WriteCSV(path string, rows []Row) error {
	var buf bytes.Buffer
	if err := EncodeCSV(&buf, rows); err != nil {
		return &WriteError{Path: path, Op: "encode", Err: err}
	}
	return writeFileAtomic(path, buf.Bytes())
}

// WriteSamples writes one JSON object per line.
func WriteSamples(path string, samples []Sample) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, s := range samples {
		if err := enc.Encode(s); err != nil {
			return &WriteError{Path: path, Op: "encode", Err: err}
		}
	}
	return writeFileAtomic(path, buf.Bytes())
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &WriteError{Path: path, Op: "mkdir", Err: err}
	}

	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d", filepath.Base(path), time.Now().UnixNano()))
	if err := writeAndSync(tmpPath, data); err != nil {
		return &WriteError{Path: path, Op: "write", Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return &WriteError{Path: path, Op: "rename", Err: err}
	}
	return nil
}

func writeAndSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	if _, err = f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}
