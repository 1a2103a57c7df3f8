package runlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cleared-dev/reconciler/internal/reconcile"
)

// Entry is one reconciliation run in the log.
type Entry struct {
	Started  time.Time
	Duration time.Duration
	Scanned  int
	Matched  int
	Error    string
}

// Header is the CSV header of a run log.
const Header = "started,duration_ms,scanned,matched,error"

const (
	numFields   = 5
	colStarted  = 0
	colDuration = 1
	colScanned  = 2
	colMatched  = 3
	colError    = 4
)

// FromRun converts an engine run summary to a log entry.
func FromRun(run reconcile.Run) Entry {
	e := Entry{
		Started:  run.Started,
		Duration: run.Duration,
		Scanned:  run.Scanned,
		Matched:  run.Matched,
	}
	if run.Err != nil {
		e.Error = run.Err.Error()
	}
	return e
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colStarted] = e.Started.UTC().Format(time.RFC3339)
	row[colDuration] = strconv.FormatInt(e.Duration.Milliseconds(), 10)
	row[colScanned] = strconv.Itoa(e.Scanned)
	row[colMatched] = strconv.Itoa(e.Matched)
	row[colError] = e.Error
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	started, err := time.Parse(time.RFC3339, record[colStarted])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing started %q: %w", record[colStarted], err)
	}
	ms, err := strconv.ParseInt(record[colDuration], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing duration %q: %w", record[colDuration], err)
	}
	scanned, err := strconv.Atoi(record[colScanned])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing scanned %q: %w", record[colScanned], err)
	}
	matched, err := strconv.Atoi(record[colMatched])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing matched %q: %w", record[colMatched], err)
	}

	return Entry{
		Started:  started,
		Duration: time.Duration(ms) * time.Millisecond,
		Scanned:  scanned,
		Matched:  matched,
		Error:    record[colError],
	}, nil
}

// ErrHeader reports a log whose first row is not Header.
var ErrHeader = errors.New("unexpected run log header")

// CorruptError reports a run log row that cannot be decoded. Line is 1-based
// and counts the header.
type CorruptError struct {
	Path string
	Line int
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("run log %s line %d: %v", e.Path, e.Line, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Append adds runs to the log at path. The header is written when the file is
// empty, so a log truncated by hand starts over cleanly.
func Append(path string, entries ...Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating run log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat run log: %w", err)
	}

	cw := csv.NewWriter(f)
	if info.Size() == 0 {
		_ = cw.Write(strings.Split(Header, ","))
	}
	for _, e := range entries {
		_ = cw.Write(MarshalEntry(e))
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("writing run log: %w", err)
	}
	return nil
}

// Read returns every run in the log at path, oldest first.
func Read(path string) ([]Entry, error) {
	return Tail(path, 0)
}

// Tail returns the last n runs in the log at path, oldest first; n < 1 means
// all of them. A missing log holds no runs. A row that cannot be decoded
// yields a *CorruptError.
func Tail(path string, n int) ([]Entry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	corrupt := func(err error) error {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return &CorruptError{Path: path, Line: perr.StartLine, Err: perr.Err}
		}
		line, _ := cr.FieldPos(0)
		return &CorruptError{Path: path, Line: line, Err: err}
	}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, corrupt(err)
	}
	if strings.Join(header, ",") != Header {
		return nil, corrupt(ErrHeader)
	}

	var entries []Entry
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, corrupt(err)
		}
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, corrupt(err)
		}
		if n > 0 && len(entries) == n {
			entries = append(entries[:0], entries[1:]...)
		}
		entries = append(entries, e)
	}
}

// File records engine runs to a CSV log on disk.
type File struct {
	Path string
}

// Record appends run to the log.
func (f File) Record(run reconcile.Run) error {
	return Append(f.Path, FromRun(run))
}
