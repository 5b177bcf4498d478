// Package datarecording stores simulation records in database tables.
package datarecording

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"strings"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"
)

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a new table whose columns are the fields of the
	// sample entry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all the tables created.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush()

	// Close records the end of the execution, flushes and closes the
	// database.
	Close() error
}

// New creates a DataRecorder that writes into a new SQLite database. The
// ".sqlite3" suffix is appended to the path. An empty path picks a unique
// name.
func New(path string) DataRecorder {
	w := &sqlWriter{
		dialect:   sqliteDialect{},
		dbName:    path,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	w.Init()
	w.startExecRecorder()

	atexit.Register(func() { w.Flush() })

	return w
}

// NewWithDB creates a DataRecorder that writes into the given SQLite
// database.
func NewWithDB(db *sql.DB) DataRecorder {
	w := &sqlWriter{
		DB:        db,
		dialect:   sqliteDialect{},
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	w.startExecRecorder()

	atexit.Register(func() { w.Flush() })

	return w
}

type table struct {
	structType reflect.Type
	entries    []any
}

// sqlWriter writes data into a SQL database.
type sqlWriter struct {
	*sql.DB
	dialect sqlDialect

	dbName     string
	tables     map[string]*table
	tableOrder []string
	batchSize  int
	entryCount int

	exec *execRecorder
}

// Init establishes a connection to the database.
func (t *sqlWriter) Init() {
	if t.dbName == "" {
		t.dbName = "procsim_recording_" + xid.New().String()
	}

	filename := t.dbName + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	logrus.WithField("file", filename).Info("database created for recording")

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	t.DB = db
}

func (t *sqlWriter) startExecRecorder() {
	t.exec = newExecRecorder(t)
	t.exec.Start()
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

// fieldNames returns the column names of an entry, validating that it is a
// struct of plain fields.
func fieldNames(entry any) ([]string, error) {
	st := reflect.TypeOf(entry)
	if st == nil || st.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entry %T is not a struct", entry)
	}

	names := make([]string, 0, st.NumField())

	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)

		if !field.IsExported() {
			return nil, fmt.Errorf("field %s of %T is not exported",
				field.Name, entry)
		}

		if !isAllowedKind(field.Type.Kind()) {
			return nil, fmt.Errorf("field %s of %T has unsupported type %s",
				field.Name, entry, field.Type)
		}

		names = append(names, field.Name)
	}

	return names, nil
}

func fieldValues(entry any) []any {
	v := reflect.ValueOf(entry)
	values := make([]any, 0, v.NumField())

	for i := 0; i < v.NumField(); i++ {
		values = append(values, v.Field(i).Interface())
	}

	return values
}

func (t *sqlWriter) CreateTable(tableName string, sampleEntry any) {
	if _, exists := t.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	createTableSQL, err := t.dialect.createTableSQL(tableName, sampleEntry)
	if err != nil {
		panic(err)
	}

	t.mustExecute(createTableSQL)

	t.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
	}
	t.tableOrder = append(t.tableOrder, tableName)
}

func (t *sqlWriter) InsertData(tableName string, entry any) {
	table, exists := t.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != table.structType {
		panic(fmt.Sprintf("entry %T does not match table %s", entry, tableName))
	}

	table.entries = append(table.entries, entry)

	t.entryCount++
	if t.entryCount >= t.batchSize {
		t.Flush()
	}
}

func (t *sqlWriter) ListTables() []string {
	tables := make([]string, len(t.tableOrder))
	copy(tables, t.tableOrder)

	return tables
}

func (t *sqlWriter) Flush() {
	if t.entryCount == 0 {
		return
	}

	tx, err := t.Begin()
	if err != nil {
		panic(err)
	}

	for _, tableName := range t.tableOrder {
		table := t.tables[tableName]
		if len(table.entries) == 0 {
			continue
		}

		stmt := t.prepareStatement(tx, tableName, table.structType.NumField())

		for _, entry := range table.entries {
			_, err := stmt.Exec(fieldValues(entry)...)
			if err != nil {
				panic(err)
			}
		}

		table.entries = nil

		stmt.Close()
	}

	if err := tx.Commit(); err != nil {
		panic(err)
	}

	t.entryCount = 0
}

func (t *sqlWriter) Close() error {
	t.exec.End()
	t.Flush()

	return t.DB.Close()
}

func (t *sqlWriter) mustExecute(query string) sql.Result {
	res, err := t.Exec(query)
	if err != nil {
		logrus.WithField("query", query).Error("failed to execute")
		panic(err)
	}

	return res
}

func (t *sqlWriter) prepareStatement(
	tx *sql.Tx,
	table string,
	numFields int,
) *sql.Stmt {
	marks := make([]string, numFields)
	for i := range marks {
		marks[i] = "?"
	}

	sqlStr := "INSERT INTO " + table + " VALUES (" + strings.Join(marks, ", ") + ")"

	stmt, err := tx.Prepare(sqlStr)
	if err != nil {
		panic(err)
	}

	return stmt
}

// sqlDialect tells how a SQL database declares tables.
type sqlDialect interface {
	createTableSQL(tableName string, sampleEntry any) (string, error)
}

// sqliteDialect declares untyped columns and lets SQLite pick the storage
// class of every value.
type sqliteDialect struct{}

func (sqliteDialect) createTableSQL(tableName string, sampleEntry any) (string, error) {
	names, err := fieldNames(sampleEntry)
	if err != nil {
		return "", err
	}

	return `CREATE TABLE ` + tableName +
		` (` + "\n\t" + strings.Join(names, ", \n\t") + "\n" + `);`, nil
}
