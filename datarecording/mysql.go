package datarecording

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	// Need to use MySQL connections.
	_ "github.com/go-sql-driver/mysql"
	"github.com/tebeka/atexit"
)

// NewMySQLRecorder creates a DataRecorder that writes into the MySQL database
// named by the DSN, for example "user:pass@tcp(localhost:3306)/procsim".
func NewMySQLRecorder(dsn string) DataRecorder {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		panic(err)
	}

	if err := db.Ping(); err != nil {
		panic(fmt.Errorf("failed to connect to MySQL: %w", err))
	}

	w := &sqlWriter{
		DB:        db,
		dialect:   mysqlDialect{},
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	w.startExecRecorder()

	atexit.Register(func() { w.Flush() })

	return w
}

// mysqlDialect declares a typed column per field.
type mysqlDialect struct{}

func mysqlColumnType(kind reflect.Kind) string {
	switch kind {
	case reflect.Bool:
		return "BOOLEAN"
	case reflect.Int8:
		return "TINYINT"
	case reflect.Int16:
		return "SMALLINT"
	case reflect.Int32:
		return "INT"
	case reflect.Int, reflect.Int64:
		return "BIGINT"
	case reflect.Uint8:
		return "TINYINT UNSIGNED"
	case reflect.Uint16:
		return "SMALLINT UNSIGNED"
	case reflect.Uint32:
		return "INT UNSIGNED"
	case reflect.Uint, reflect.Uint64:
		return "BIGINT UNSIGNED"
	case reflect.Float32:
		return "FLOAT"
	case reflect.Float64:
		return "DOUBLE"
	default:
		return "TEXT"
	}
}

func (mysqlDialect) createTableSQL(tableName string, sampleEntry any) (string, error) {
	names, err := fieldNames(sampleEntry)
	if err != nil {
		return "", err
	}

	st := reflect.TypeOf(sampleEntry)
	columns := make([]string, len(names))

	for i, name := range names {
		columns[i] = "`" + name + "` " + mysqlColumnType(st.Field(i).Type.Kind())
	}

	return "CREATE TABLE IF NOT EXISTS `" + tableName + "` (\n\t" +
		strings.Join(columns, ",\n\t") + "\n);", nil
}
