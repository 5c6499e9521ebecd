// Package datarecording stores simulation records in an SQLite database.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/structs"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"
	"golang.org/x/exp/slices"
)

// A DataRecorder buffers rows and writes them in batches. Each table stores
// one struct type whose exported fields are the columns.
type DataRecorder interface {
	// CreateTable creates a table whose columns are the fields of sample.
	CreateTable(table string, sample any)

	// InsertData buffers a row. The row must have the type of the sample the
	// table was created with.
	InsertData(table string, row any)

	// ListTables returns the table names in order.
	ListTables() []string

	// Flush writes the buffered rows in one transaction.
	Flush()

	// Close flushes and closes the database.
	Close() error
}

// DefaultBatchSize is the number of buffered rows that triggers a flush.
const DefaultBatchSize = 100000

// New creates path.sqlite3 and records into it. An empty path gets a unique
// name. New panics if the file exists. The buffered rows are flushed when the
// program exits through atexit.
func New(path string) DataRecorder {
	if path == "" {
		path = "simx_recording_" + xid.New().String()
	}

	file := path + ".sqlite3"
	if _, err := os.Stat(file); err == nil {
		panic(fmt.Errorf("file %s already exists", file))
	}

	db, err := sql.Open("sqlite3", file)
	if err != nil {
		panic(err)
	}

	r := newRecorder(db)
	r.log.WithField("file", file).Info("recording into database")

	return r
}

// NewWithDB records into an open database.
func NewWithDB(db *sql.DB) DataRecorder {
	return newRecorder(db)
}

func newRecorder(db *sql.DB) *recorder {
	r := &recorder{
		db:        db,
		tables:    make(map[string]*tableBuffer),
		batchSize: DefaultBatchSize,
		log:       logrus.WithField("component", "datarecording"),
	}

	atexit.Register(r.Flush)

	return r
}

type tableBuffer struct {
	rowType reflect.Type
	columns []string
	rows    []any
}

type recorder struct {
	db        *sql.DB
	tables    map[string]*tableBuffer
	batchSize int
	buffered  int
	closed    bool
	log       *logrus.Entry
}

func recordable(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String, reflect.Float32, reflect.Float64:
		return true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}

	return false
}

func checkRowType(t reflect.Type) error {
	if t == nil || t.Kind() != reflect.Struct {
		return errors.New("rows must be structs")
	}

	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() {
			return fmt.Errorf("field %s is not exported", f.Name)
		}

		if !recordable(f.Type.Kind()) {
			return fmt.Errorf("field %s of kind %s cannot be recorded",
				f.Name, f.Type.Kind())
		}
	}

	return nil
}

func (r *recorder) CreateTable(table string, sample any) {
	t := reflect.TypeOf(sample)
	if err := checkRowType(t); err != nil {
		panic(fmt.Errorf("table %s: %w", table, err))
	}

	if _, found := r.tables[table]; found {
		panic(fmt.Sprintf("table %s already exists", table))
	}

	columns := structs.Names(sample)
	query := fmt.Sprintf("CREATE TABLE %s (\n\t%s\n);",
		table, strings.Join(columns, ",\n\t"))

	if _, err := r.db.Exec(query); err != nil {
		r.log.WithField("query", query).Error("cannot create table")
		panic(err)
	}

	r.tables[table] = &tableBuffer{rowType: t, columns: columns}
}

func (r *recorder) InsertData(table string, row any) {
	buf, found := r.tables[table]
	if !found {
		panic(fmt.Sprintf("no table %s", table))
	}

	if t := reflect.TypeOf(row); t != buf.rowType {
		panic(fmt.Sprintf("table %s stores %s, got %s", table, buf.rowType, t))
	}

	buf.rows = append(buf.rows, row)
	r.buffered++

	if r.buffered >= r.batchSize {
		r.Flush()
	}
}

func (r *recorder) ListTables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

func (r *recorder) Flush() {
	if r.closed || r.buffered == 0 {
		return
	}

	tx, err := r.db.Begin()
	if err != nil {
		panic(err)
	}

	for _, name := range r.ListTables() {
		if err := r.flushTable(tx, name, r.tables[name]); err != nil {
			_ = tx.Rollback()
			panic(err)
		}
	}

	if err := tx.Commit(); err != nil {
		panic(err)
	}

	r.buffered = 0
}

func (r *recorder) flushTable(tx *sql.Tx, name string, buf *tableBuffer) error {
	if len(buf.rows) == 0 {
		return nil
	}

	marks := strings.TrimSuffix(strings.Repeat("?, ", len(buf.columns)), ", ")

	stmt, err := tx.Prepare("INSERT INTO " + name + " VALUES (" + marks + ")")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range buf.rows {
		if _, err := stmt.Exec(structs.Values(row)...); err != nil {
			return fmt.Errorf("inserting into %s: %w", name, err)
		}
	}

	buf.rows = nil

	return nil
}

func (r *recorder) Close() error {
	if r.closed {
		return nil
	}

	r.Flush()
	r.closed = true

	return r.db.Close()
}
