package datarecording

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/tebeka/atexit"
)

// ClickHouseOptions tells how to reach a ClickHouse server.
type ClickHouseOptions struct {
	Addr      string
	Database  string
	Username  string
	Password  string
	BatchSize int
}

type clickHouseTable struct {
	structType reflect.Type
	rows       [][]any
}

// ClickHouseRecorder is a DataRecorder that writes into a ClickHouse server
// using batched inserts.
type ClickHouseRecorder struct {
	conn      clickhouse.Conn
	mu        sync.Mutex
	batchSize int

	tables     map[string]*clickHouseTable
	tableOrder []string
	entryCount int

	exec *execRecorder
}

// NewClickHouseRecorder connects to a ClickHouse server. It panics if the
// server cannot be reached.
func NewClickHouseRecorder(opts ClickHouseOptions) *ClickHouseRecorder {
	if opts.BatchSize == 0 {
		opts.BatchSize = 100000
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		DialTimeout:      10 * time.Second,
		MaxOpenConns:     5,
		MaxIdleConns:     5,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	})
	if err != nil {
		panic(fmt.Errorf("failed to connect to ClickHouse: %w", err))
	}

	if err := conn.Ping(context.Background()); err != nil {
		panic(fmt.Errorf("failed to ping ClickHouse: %w", err))
	}

	r := newClickHouseRecorder(conn, opts.BatchSize)
	r.exec = newExecRecorder(r)
	r.exec.Start()

	atexit.Register(func() { r.Flush() })

	return r
}

func newClickHouseRecorder(conn clickhouse.Conn, batchSize int) *ClickHouseRecorder {
	return &ClickHouseRecorder{
		conn:      conn,
		batchSize: batchSize,
		tables:    make(map[string]*clickHouseTable),
	}
}

func clickHouseColumnType(kind reflect.Kind) string {
	switch kind {
	case reflect.Bool:
		return "Bool"
	case reflect.Int, reflect.Int64:
		return "Int64"
	case reflect.Int8:
		return "Int8"
	case reflect.Int16:
		return "Int16"
	case reflect.Int32:
		return "Int32"
	case reflect.Uint, reflect.Uint64:
		return "UInt64"
	case reflect.Uint8:
		return "UInt8"
	case reflect.Uint16:
		return "UInt16"
	case reflect.Uint32:
		return "UInt32"
	case reflect.Float32:
		return "Float32"
	case reflect.Float64:
		return "Float64"
	default:
		return "String"
	}
}

func clickHouseCreateTableSQL(tableName string, sampleEntry any) (string, error) {
	names, err := fieldNames(sampleEntry)
	if err != nil {
		return "", err
	}

	st := reflect.TypeOf(sampleEntry)
	columns := make([]string, len(names))

	for i, name := range names {
		columns[i] = name + " " + clickHouseColumnType(st.Field(i).Type.Kind())
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n\t%s\n) ENGINE = MergeTree() ORDER BY tuple()",
		tableName, strings.Join(columns, ",\n\t")), nil
}

// clickHouseRow converts the fields of an entry into the exact Go types the
// driver expects for the columns, dropping named types.
func clickHouseRow(entry any) []any {
	v := reflect.ValueOf(entry)
	row := make([]any, v.NumField())

	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)

		switch f.Kind() {
		case reflect.Bool:
			row[i] = f.Bool()
		case reflect.Int, reflect.Int64:
			row[i] = f.Int()
		case reflect.Int8:
			row[i] = int8(f.Int())
		case reflect.Int16:
			row[i] = int16(f.Int())
		case reflect.Int32:
			row[i] = int32(f.Int())
		case reflect.Uint, reflect.Uint64:
			row[i] = f.Uint()
		case reflect.Uint8:
			row[i] = uint8(f.Uint())
		case reflect.Uint16:
			row[i] = uint16(f.Uint())
		case reflect.Uint32:
			row[i] = uint32(f.Uint())
		case reflect.Float32:
			row[i] = float32(f.Float())
		case reflect.Float64:
			row[i] = f.Float()
		default:
			row[i] = f.String()
		}
	}

	return row
}

// CreateTable creates a MergeTree table with a column per field.
func (r *ClickHouseRecorder) CreateTable(tableName string, sampleEntry any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	createSQL, err := clickHouseCreateTableSQL(tableName, sampleEntry)
	if err != nil {
		panic(err)
	}

	err = r.conn.Exec(context.Background(), createSQL)
	if err != nil {
		panic(fmt.Errorf("failed to create table %s: %w", tableName, err))
	}

	r.tables[tableName] = &clickHouseTable{
		structType: reflect.TypeOf(sampleEntry),
	}
	r.tableOrder = append(r.tableOrder, tableName)
}

// InsertData buffers an entry. The buffer is sent once the batch is full.
func (r *ClickHouseRecorder) InsertData(tableName string, entry any) {
	r.mu.Lock()

	table, exists := r.tables[tableName]
	if !exists {
		r.mu.Unlock()
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != table.structType {
		r.mu.Unlock()
		panic(fmt.Sprintf("entry %T does not match table %s", entry, tableName))
	}

	table.rows = append(table.rows, clickHouseRow(entry))
	r.entryCount++
	full := r.entryCount >= r.batchSize
	r.mu.Unlock()

	if full {
		r.Flush()
	}
}

// ListTables returns the tables created through the recorder.
func (r *ClickHouseRecorder) ListTables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables := make([]string, len(r.tableOrder))
	copy(tables, r.tableOrder)

	return tables
}

// AddExecInfo attaches a property to the execution record.
func (r *ClickHouseRecorder) AddExecInfo(property, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.exec.add(property, value)
}

// Flush sends one batch per table.
func (r *ClickHouseRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entryCount == 0 {
		return
	}

	ctx := context.Background()

	for _, tableName := range r.tableOrder {
		table := r.tables[tableName]
		if len(table.rows) == 0 {
			continue
		}

		batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO "+tableName)
		if err != nil {
			panic(fmt.Errorf("failed to prepare batch for %s: %w", tableName, err))
		}

		for _, row := range table.rows {
			if err := batch.Append(row...); err != nil {
				panic(fmt.Errorf("failed to append to batch: %w", err))
			}
		}

		if err := batch.Send(); err != nil {
			panic(fmt.Errorf("failed to send batch: %w", err))
		}

		table.rows = table.rows[:0]
	}

	r.entryCount = 0
}

// Close writes the execution record, flushes and closes the connection.
func (r *ClickHouseRecorder) Close() error {
	r.exec.End()
	r.Flush()

	if err := r.conn.Close(); err != nil {
		return fmt.Errorf("failed to close ClickHouse connection: %w", err)
	}

	return nil
}
