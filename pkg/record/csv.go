package record

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/cycle"
)

var (
	readingHeader = []string{"temperature", "cycle"}
	cycleHeader   = []string{"min", "max", "cycle"}
)

// ReadingFile returns the continuous readings file of a session.
func ReadingFile(dir string, start time.Time) string {
	return filepath.Join(dir, start.Format(SessionLayout)+"_continuous.csv")
}

// CycleFile returns the highest-lowest file of a session.
func CycleFile(dir string, start time.Time) string {
	return filepath.Join(dir, start.Format(SessionLayout)+"_highest_lowest.csv")
}

// csvFile is an append-only CSV file flushed after every row.
type csvFile struct {
	path string

	mu     sync.Mutex
	f      *os.File
	writer *csv.Writer
}

func openCSV(path string, header []string) (*csvFile, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &PersistenceError{Path: path, Op: "open", Err: err}
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, &PersistenceError{Path: path, Op: "open", Err: err}
	}

	c := &csvFile{path: path, f: f, writer: csv.NewWriter(f)}

	info, err := f.Stat()
	if err == nil && info.Size() == 0 {
		if err := c.write(header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *csvFile) write(row []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.f == nil {
		return &PersistenceError{Path: c.path, Op: "write", Err: os.ErrClosed}
	}

	if err := c.writer.Write(row); err != nil {
		return &PersistenceError{Path: c.path, Op: "write", Err: err}
	}
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return &PersistenceError{Path: c.path, Op: "write", Err: err}
	}
	return nil
}

// Close flushes and closes the file. Closing twice is a no-op.
func (c *csvFile) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.f == nil {
		return nil
	}
	c.writer.Flush()
	err := c.writer.Error()
	if cerr := c.f.Close(); err == nil {
		err = cerr
	}
	c.f = nil
	if err != nil {
		return &PersistenceError{Path: c.path, Op: "close", Err: err}
	}
	return nil
}

// Path returns the file path.
func (c *csvFile) Path() string {
	return c.path
}

// ReadingCSV writes "temperature,cycle" rows.
type ReadingCSV struct {
	*csvFile
}

// OpenReadingCSV creates or appends to the continuous readings file of the
// session started at start.
func OpenReadingCSV(dir string, start time.Time) (*ReadingCSV, error) {
	f, err := openCSV(ReadingFile(dir, start), readingHeader)
	if err != nil {
		return nil, err
	}
	return &ReadingCSV{f}, nil
}

// WriteReading appends one reading.
func (r *ReadingCSV) WriteReading(temperature float64, cycle int) error {
	return r.write([]string{formatFloat(temperature), strconv.Itoa(cycle)})
}

// CycleCSV writes "min,max,cycle" rows.
type CycleCSV struct {
	*csvFile
}

// OpenCycleCSV creates or appends to the highest-lowest file of the
// session started at start.
func OpenCycleCSV(dir string, start time.Time) (*CycleCSV, error) {
	f, err := openCSV(CycleFile(dir, start), cycleHeader)
	if err != nil {
		return nil, err
	}
	return &CycleCSV{f}, nil
}

// WriteCycle appends one cycle record.
func (c *CycleCSV) WriteCycle(rec cycle.Record) error {
	return c.write([]string{formatFloat(rec.Min), formatFloat(rec.Max), strconv.Itoa(rec.Cycle)})
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
