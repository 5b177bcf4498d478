package datarecording

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBRecorder is a DataRecorder that stores every table as a MongoDB
// collection.
type MongoDBRecorder struct {
	mu        sync.Mutex
	client    *mongo.Client
	database  *mongo.Database
	batchSize int

	tables     map[string]*mongoTable
	tableOrder []string
	entryCount int

	exec *execRecorder
}

type mongoTable struct {
	structType reflect.Type
	docs       []any
}

// NewMongoDBRecorder connects to the server at the URI and records into a
// database with the given name. An empty name picks a unique one.
func NewMongoDBRecorder(uri, dbName string) *MongoDBRecorder {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		panic(fmt.Errorf("failed to connect to MongoDB: %w", err))
	}

	if dbName == "" {
		dbName = "procsim_recording_" + xid.New().String()
	}

	logrus.WithField("database", dbName).Info("MongoDB database used for recording")

	r := &MongoDBRecorder{
		client:    client,
		database:  client.Database(dbName),
		batchSize: 100000,
		tables:    make(map[string]*mongoTable),
	}

	r.exec = newExecRecorder(r)
	r.exec.Start()

	atexit.Register(func() { r.Flush() })

	return r
}

// mongoDocument converts an entry into a document whose keys are the field
// names.
func mongoDocument(entry any) bson.D {
	v := reflect.ValueOf(entry)
	st := v.Type()
	doc := make(bson.D, 0, v.NumField())
	row := clickHouseRow(entry)

	for i := 0; i < v.NumField(); i++ {
		doc = append(doc, bson.E{Key: st.Field(i).Name, Value: row[i]})
	}

	return doc
}

// CreateTable registers a collection for the entries of the sample's type.
func (r *MongoDBRecorder) CreateTable(tableName string, sampleEntry any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := fieldNames(sampleEntry); err != nil {
		panic(err)
	}

	if _, exists := r.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	r.tables[tableName] = &mongoTable{structType: reflect.TypeOf(sampleEntry)}
	r.tableOrder = append(r.tableOrder, tableName)
}

// InsertData buffers a document.
func (r *MongoDBRecorder) InsertData(tableName string, entry any) {
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

	table.docs = append(table.docs, mongoDocument(entry))
	r.entryCount++
	full := r.entryCount >= r.batchSize
	r.mu.Unlock()

	if full {
		r.Flush()
	}
}

// ListTables returns the collections created through the recorder.
func (r *MongoDBRecorder) ListTables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables := make([]string, len(r.tableOrder))
	copy(tables, r.tableOrder)

	return tables
}

// AddExecInfo attaches a property to the execution record.
func (r *MongoDBRecorder) AddExecInfo(property, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.exec.add(property, value)
}

// Flush inserts the buffered documents.
func (r *MongoDBRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entryCount == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for _, tableName := range r.tableOrder {
		table := r.tables[tableName]
		if len(table.docs) == 0 {
			continue
		}

		_, err := r.database.Collection(tableName).InsertMany(ctx, table.docs)
		if err != nil {
			panic(fmt.Errorf("failed to insert into %s: %w", tableName, err))
		}

		table.docs = nil
	}

	r.entryCount = 0
}

// Close writes the execution record, flushes and disconnects.
func (r *MongoDBRecorder) Close() error {
	r.exec.End()
	r.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return r.client.Disconnect(ctx)
}
