package record

import (
	"database/sql"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/cycle"
)

var createTablesSQL = []string{`
CREATE TABLE IF NOT EXISTS readings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    temperature REAL NOT NULL,
    cycle INTEGER NOT NULL
);`, `
CREATE TABLE IF NOT EXISTS cycles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    min REAL NOT NULL,
    max REAL NOT NULL,
    cycle INTEGER NOT NULL
);`,
}

const timestampLayout = "2006-01-02 15:04:05.000"

// SQLite stores both record kinds of a session in one database file. The
// database is closed when both of its sinks are closed.
type SQLite struct {
	path    string
	session string
	db      *sql.DB

	readings *SQLiteReadings
	cycles   *SQLiteCycles

	mu   sync.Mutex
	open int
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path, session string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &PersistenceError{Path: path, Op: "open", Err: err}
	}
	// One writer at a time; the two loops write concurrently
	db.SetMaxOpenConns(1)

	for _, stmt := range createTablesSQL {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, &PersistenceError{Path: path, Op: "open", Err: err}
		}
	}

	log.WithFields(log.Fields{"path": path, "session": session}).Info("Opened SQLite database")

	s := &SQLite{path: path, session: session, db: db, open: 2}
	s.readings = &SQLiteReadings{s: s}
	s.cycles = &SQLiteCycles{s: s}
	return s, nil
}

// Readings returns the sink for continuous readings.
func (s *SQLite) Readings() *SQLiteReadings {
	return s.readings
}

// Cycles returns the sink for completed cycles.
func (s *SQLite) Cycles() *SQLiteCycles {
	return s.cycles
}

// DB returns the underlying database.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

func (s *SQLite) exec(query string, args ...any) error {
	if _, err := s.db.Exec(query, args...); err != nil {
		return &PersistenceError{Path: s.path, Op: "write", Err: err}
	}
	return nil
}

func (s *SQLite) release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open--
	if s.open > 0 {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return &PersistenceError{Path: s.path, Op: "close", Err: err}
	}
	return nil
}

// SQLiteReadings is the readings table of one session.
type SQLiteReadings struct {
	s    *SQLite
	once sync.Once
}

// WriteReading inserts one reading.
func (r *SQLiteReadings) WriteReading(temperature float64, cycle int) error {
	return r.s.exec(
		"INSERT INTO readings(session, timestamp, temperature, cycle) VALUES(?, ?, ?, ?)",
		r.s.session, time.Now().Format(timestampLayout), temperature, cycle,
	)
}

// Close releases the sink.
func (r *SQLiteReadings) Close() error {
	var err error
	r.once.Do(func() { err = r.s.release() })
	return err
}

// SQLiteCycles is the cycles table of one session.
type SQLiteCycles struct {
	s    *SQLite
	once sync.Once
}

// WriteCycle inserts one cycle record.
func (c *SQLiteCycles) WriteCycle(rec cycle.Record) error {
	return c.s.exec(
		"INSERT INTO cycles(session, timestamp, min, max, cycle) VALUES(?, ?, ?, ?, ?)",
		c.s.session, time.Now().Format(timestampLayout), rec.Min, rec.Max, rec.Cycle,
	)
}

// Close releases the sink.
func (c *SQLiteCycles) Close() error {
	var err error
	c.once.Do(func() { err = c.s.release() })
	return err
}
