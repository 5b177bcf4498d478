package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
)

// QueryParams narrows down the rows returned by Query.
type QueryParams struct {
	// Where is a condition without the WHERE keyword. Its placeholders are
	// filled from Args.
	Where string
	Args  []any

	// OrderBy is a sort order without the ORDER BY keywords.
	OrderBy string

	// Limit caps the number of rows. Zero means all rows.
	Limit  int
	Offset int
}

func (p QueryParams) filter() string {
	if p.Where == "" {
		return ""
	}

	return " WHERE " + p.Where
}

func (p QueryParams) clauses() string {
	s := p.filter()

	if p.OrderBy != "" {
		s += " ORDER BY " + p.OrderBy
	}

	switch {
	case p.Limit > 0:
		s += fmt.Sprintf(" LIMIT %d", p.Limit)
	case p.Offset > 0:
		s += " LIMIT -1"
	}

	if p.Offset > 0 {
		s += fmt.Sprintf(" OFFSET %d", p.Offset)
	}

	return s
}

// DataReader reads back the tables written by a SQLite DataRecorder.
type DataReader interface {
	// StoredTables returns the names of the tables in the database.
	StoredTables(ctx context.Context) ([]string, error)

	// Count returns the number of rows of a table.
	Count(ctx context.Context, tableName string) (int, error)

	// Query decodes the matching rows of a table into pointers to values of
	// the same struct type as sample. It also returns how many rows match
	// before Limit and Offset apply.
	Query(
		ctx context.Context,
		tableName string,
		sample any,
		params QueryParams,
	) (results []any, total int, err error)

	Close() error
}

type sqliteReader struct {
	db *sql.DB
}

// NewReader opens a SQLite database written by a DataRecorder.
func NewReader(dbFilename string) DataReader {
	db, err := sql.Open("sqlite3", dbFilename)
	if err != nil {
		panic(err)
	}

	return &sqliteReader{db: db}
}

// NewReaderWithDB reads from an open database.
func NewReaderWithDB(db *sql.DB) DataReader {
	return &sqliteReader{db: db}
}

func (r *sqliteReader) StoredTables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}

		names = append(names, name)
	}

	return names, rows.Err()
}

func (r *sqliteReader) Count(ctx context.Context, tableName string) (int, error) {
	return r.count(ctx, tableName, QueryParams{})
}

func (r *sqliteReader) count(
	ctx context.Context,
	tableName string,
	params QueryParams,
) (int, error) {
	var n int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+tableName+params.filter(),
		params.Args...,
	).Scan(&n)

	return n, err
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	sample any,
	params QueryParams,
) ([]any, int, error) {
	columns, err := fieldNames(sample)
	if err != nil {
		return nil, 0, err
	}

	total, err := r.count(ctx, tableName, params)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s",
		strings.Join(columns, ", "), tableName, params.clauses())

	rows, err := r.db.QueryContext(ctx, query, params.Args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	// fieldNames accepts only structs whose every field is a column, so the
	// i-th column is the i-th field.
	st := reflect.TypeOf(sample)
	targets := make([]any, len(columns))

	var results []any

	for rows.Next() {
		row := reflect.New(st)
		for i := range columns {
			targets[i] = row.Elem().Field(i).Addr().Interface()
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, 0, err
		}

		results = append(results, row.Interface())
	}

	return results, total, rows.Err()
}

func (r *sqliteReader) Close() error {
	return r.db.Close()
}
